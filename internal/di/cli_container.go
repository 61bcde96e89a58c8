package di

import (
	"flag"
	"os"
	"strings"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/adapters/filter"
	"github.com/mikey/email-threat-triage/internal/config"
	"github.com/mikey/email-threat-triage/internal/core"
	"github.com/mikey/email-threat-triage/internal/logging"
	"github.com/mikey/email-threat-triage/internal/ports"
	"github.com/mikey/email-threat-triage/internal/utils"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Analysis flags
	TrustedDomains  string
	CheckMX         bool
	AnalyzerTimeout time.Duration
	Confidence      int

	// Input and output flags
	InputFile  string
	Format     string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return ParseFlagSet(flag.CommandLine, os.Args[1:])
}

// ParseFlagSet parses args into a CLIFlags struct using fs
func ParseFlagSet(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}

	fs.StringVar(&flags.TrustedDomains, "trusted", "", "Comma-separated list of trusted sender domains")
	fs.BoolVar(&flags.CheckMX, "check-mx", false, "Look up MX records of the sender domain")
	fs.DurationVar(&flags.AnalyzerTimeout, "timeout", 5*time.Second, "Time limit for each analyzer")
	fs.IntVar(&flags.Confidence, "confidence", core.DefaultConfidence, "Confidence percentage reported on verdicts")

	fs.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	fs.StringVar(&flags.Format, "format", filter.FormatText, "Output format (text, json, yaml)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging and analyzer details")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	fs.Parse(args)
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideEngine(container); err != nil {
		return nil, err
	}

	// No metrics for one-shot runs
	if err := container.Provide(func() core.MetricsRecorder { return core.NopMetrics{} }); err != nil {
		return nil, err
	}

	// Register triage service with no cache, history or events
	if err := container.Provide(func(orchestrator *core.Orchestrator, logger *zap.Logger) ports.Triage {
		return core.NewTriageService(
			orchestrator,
			nil,
			nil,
			nil,
			core.NopMetrics{},
			logger,
			false,
			time.Duration(0),
		)
	}); err != nil {
		return nil, err
	}

	// Register CLI filter
	if err := container.Provide(func(
		flags *CLIFlags,
		triage ports.Triage,
		tp *utils.TextProcessor,
		logger *zap.Logger,
	) (*filter.CliFilter, error) {
		return filter.NewCliFilter(triage, tp, logger, os.Stdout, flags.Format, flags.Verbose)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("analysis.analyzer_timeout", flags.AnalyzerTimeout.String())
	v.Set("analysis.confidence", flags.Confidence)
	v.Set("domain.check_mx", flags.CheckMX)

	if flags.TrustedDomains != "" {
		domains := strings.Split(flags.TrustedDomains, ",")
		for i, domain := range domains {
			domains[i] = strings.TrimSpace(domain)
		}
		v.Set("domain.trusted_domains", domains)
	}

	return config.NewFromViper(v)
}
