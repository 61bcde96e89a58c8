package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/adapters/filter"
	"github.com/mikey/email-threat-triage/internal/core"
	"github.com/mikey/email-threat-triage/internal/di"
)

// Exit codes
const (
	exitSafe       = 0
	exitError      = 1
	exitSuspicious = 2
	exitMalicious  = 3
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(exitError)
	}

	code := exitError
	if err := container.Invoke(func(logger *zap.Logger, cli *filter.CliFilter) {
		code = run(logger, cli, flags)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
	}
	os.Exit(code)
}

func run(logger *zap.Logger, cli *filter.CliFilter, flags *di.CLIFlags) int {
	defer logger.Sync()

	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			logger.Error("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
			return exitError
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	raw, err := io.ReadAll(emailReader)
	if err != nil {
		logger.Error("Failed to read email", zap.Error(err))
		return exitError
	}

	verdict, err := cli.AnalyzeRaw(context.Background(), raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	switch verdict.Classification {
	case core.ClassificationMalicious:
		return exitMalicious
	case core.ClassificationSuspicious:
		return exitSuspicious
	default:
		return exitSafe
	}
}
