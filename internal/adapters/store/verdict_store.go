package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/core"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

const (
	tableName        = "verdicts"
	defaultListLimit = 20
	maximumListLimit = 500
)

const createIndex = `CREATE INDEX IF NOT EXISTS idx_verdicts_analyzed_at ON verdicts(analyzed_at)`

var schemas = map[string][]string{
	DriverSQLite: {`
		CREATE TABLE IF NOT EXISTS verdicts (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			subject TEXT NOT NULL,
			classification TEXT NOT NULL,
			final_risk_score INTEGER NOT NULL,
			analyzed_at INTEGER NOT NULL,
			verdict BLOB NOT NULL
		)`, createIndex},
	DriverPostgres: {`
		CREATE TABLE IF NOT EXISTS verdicts (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			subject TEXT NOT NULL,
			classification TEXT NOT NULL,
			final_risk_score INTEGER NOT NULL,
			analyzed_at BIGINT NOT NULL,
			verdict BYTEA NOT NULL
		)`, createIndex},
}

// SQLStore keeps verdict history in SQLite or PostgreSQL
type SQLStore struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	logger *zap.Logger
}

// NewSQLStore opens the database and creates the schema if needed
func NewSQLStore(driver, dsn string, logger *zap.Logger) (*SQLStore, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		placeholder = sq.Dollar
	}

	logger.Info("Verdict store ready", zap.String("driver", driver))

	return &SQLStore{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger: logger,
	}, nil
}

// Save records a verdict; saving the same ID twice is an error
func (s *SQLStore) Save(ctx context.Context, v *core.SecurityVerdict) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}

	query, args, err := s.sb.Insert(tableName).
		Columns("id", "sender", "subject", "classification", "final_risk_score", "analyzed_at", "verdict").
		Values(v.ID, v.Metadata.Sender, v.Metadata.Subject, string(v.Classification), v.FinalRiskScore,
			v.Metadata.AnalyzedAt.UnixNano(), blob).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save verdict %s: %w", v.ID, err)
	}
	return nil
}

// Get loads a verdict by ID
func (s *SQLStore) Get(ctx context.Context, id string) (*core.SecurityVerdict, error) {
	query, args, err := s.sb.Select("verdict").
		From(tableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	var blob []byte
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load verdict %s: %w", id, err)
	}

	var v core.SecurityVerdict
	if err := json.Unmarshal(blob, &v); err != nil {
		return nil, fmt.Errorf("failed to decode verdict %s: %w", id, err)
	}
	return &v, nil
}

// ListRecent returns the newest verdicts first
func (s *SQLStore) ListRecent(ctx context.Context, limit int) ([]core.VerdictSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maximumListLimit {
		limit = maximumListLimit
	}

	query, args, err := s.sb.Select("id", "sender", "subject", "classification", "final_risk_score", "analyzed_at").
		From(tableName).
		OrderBy("analyzed_at DESC", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list verdicts: %w", err)
	}
	defer rows.Close()

	out := make([]core.VerdictSummary, 0, limit)
	for rows.Next() {
		var sum core.VerdictSummary
		var classification string
		var analyzedAt int64
		if err := rows.Scan(&sum.ID, &sum.Sender, &sum.Subject, &classification, &sum.FinalRiskScore, &analyzedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		sum.Classification = core.Classification(classification)
		sum.AnalyzedAt = time.Unix(0, analyzedAt).UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate verdicts: %w", err)
	}

	return out, nil
}

// Ping checks the database connection
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}
