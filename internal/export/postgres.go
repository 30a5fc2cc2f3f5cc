package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/spigell/prospector/internal/leads"
)

const defaultTable = "opportunities"

var (
	ErrNoDSN     = errors.New("postgres sink requires a dsn")
	tablePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresSink upserts rows keyed on (company, person).
type PostgresSink struct {
	db    *sql.DB
	table string
}

// OpenPostgres connects with dsn and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn, table string) (*PostgresSink, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := NewPostgresSink(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// NewPostgresSink wraps an open database handle.
func NewPostgresSink(db *sql.DB, table string) (*PostgresSink, error) {
	if table == "" {
		table = defaultTable
	}
	if !tablePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresSink{db: db, table: table}, nil
}

func (s *PostgresSink) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		id SERIAL PRIMARY KEY,
		company TEXT NOT NULL,
		person TEXT NOT NULL,
		email TEXT,
		relevance_score DOUBLE PRECISION,
		signal_type INTEGER,
		source_url TEXT,
		status TEXT,
		notes TEXT,
		run_id TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (company, person)
	)`)
	return err
}

// upsert builds the statement for one row.
func (s *PostgresSink) upsert(row leads.Row) sq.InsertBuilder {
	return psql.Insert(s.table).
		Columns("company", "person", "email", "relevance_score", "signal_type",
			"source_url", "status", "notes", "run_id", "created_at").
		Values(row.Company, row.Person, row.Email, row.RelevanceScore, row.SignalType,
			row.SourceURL, row.Status, row.Notes, row.RunID, row.Timestamp).
		Suffix(`ON CONFLICT (company, person) DO UPDATE SET
			email = EXCLUDED.email,
			relevance_score = EXCLUDED.relevance_score,
			signal_type = EXCLUDED.signal_type,
			source_url = EXCLUDED.source_url,
			status = EXCLUDED.status,
			notes = EXCLUDED.notes,
			run_id = EXCLUDED.run_id`)
}

func (s *PostgresSink) Append(ctx context.Context, row leads.Row) error {
	query, args, err := s.upsert(row).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", row.Company, row.Person, err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
