// Package history keeps a durable record of visits in PostgreSQL.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/patrol-cli/api/schemas"
)

// DBPool abstracts *pgxpool.Pool so tests can use pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	sqlCreateTable = `
        CREATE TABLE IF NOT EXISTS visit_history (
            id             TEXT PRIMARY KEY,
            label          TEXT NOT NULL,
            destination    TEXT NOT NULL,
            query          TEXT NOT NULL DEFAULT '',
            profile        TEXT NOT NULL DEFAULT '',
            status         TEXT NOT NULL,
            failure_reason TEXT NOT NULL DEFAULT '',
            artifact       TEXT NOT NULL DEFAULT '',
            final_url      TEXT NOT NULL DEFAULT '',
            trace          JSONB NOT NULL DEFAULT '[]',
            started_at     TIMESTAMPTZ NOT NULL,
            finished_at    TIMESTAMPTZ NOT NULL
        );
    `
	sqlCreateIndex = `CREATE INDEX IF NOT EXISTS visit_history_started_at_idx ON visit_history (started_at DESC);`

	sqlInsert = `
        INSERT INTO visit_history (id, label, destination, query, profile, status, failure_reason, artifact, final_url, trace, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (id) DO NOTHING;
    `
	sqlRecent = `
        SELECT id, label, destination, query, profile, status, failure_reason, artifact, final_url, trace::text, started_at, finished_at
        FROM visit_history
        ORDER BY started_at DESC
        LIMIT $1;
    `
)

// Store records session results.
type Store struct {
	pool    DBPool
	log     *zap.Logger
	timeout time.Duration
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("history"), timeout: timeout}, nil
}

// Connect opens a pgx pool for dsn and wraps it in a Store with its schema in
// place. The returned func closes the pool.
func Connect(ctx context.Context, dsn string, logger *zap.Logger, timeout time.Duration) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s, err := New(ctx, pool, logger, timeout)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// EnsureSchema creates the history table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	for _, stmt := range []string{sqlCreateTable, sqlCreateIndex} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create visit history schema: %w", err)
		}
	}
	return nil
}

// Record inserts one result. Recording the same ID twice is a no-op.
func (s *Store) Record(ctx context.Context, r schemas.SessionResult) error {
	trace, err := json.Marshal(traceOrEmpty(r.Trace))
	if err != nil {
		return fmt.Errorf("failed to encode trace: %w", err)
	}
	artifact := ""
	if r.Artifact != nil {
		artifact = r.Artifact.FileName
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.pool.Exec(ctx, sqlInsert,
		r.ID, r.Target.Label, r.Target.Destination, r.Target.Query, r.Profile,
		string(r.Status), r.FailureReason, artifact, r.FinalURL, string(trace),
		r.StartedAt.UTC(), r.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert visit %s: %w", r.ID, err)
	}
	s.log.Debug("Visit recorded.", zap.String("session_id", r.ID))
	return nil
}

// Recent returns up to limit results, newest first. Artifact references carry
// the file name only.
func (s *Store) Recent(ctx context.Context, limit int) ([]schemas.SessionResult, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, sqlRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query visit history: %w", err)
	}
	defer rows.Close()

	var out []schemas.SessionResult
	for rows.Next() {
		var (
			r                schemas.SessionResult
			status, artifact string
			trace            string
		)
		if err := rows.Scan(
			&r.ID, &r.Target.Label, &r.Target.Destination, &r.Target.Query, &r.Profile,
			&status, &r.FailureReason, &artifact, &r.FinalURL, &trace,
			&r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan visit history row: %w", err)
		}
		r.Status = schemas.SessionStatus(status)
		if artifact != "" {
			r.Artifact = &schemas.ArtifactRef{FileName: artifact}
		}
		if err := json.Unmarshal([]byte(trace), &r.Trace); err != nil {
			s.log.Warn("Malformed trace in visit history.", zap.String("session_id", r.ID), zap.Error(err))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read visit history: %w", err)
	}
	return out, nil
}

func traceOrEmpty(trace []string) []string {
	if trace == nil {
		return []string{}
	}
	return trace
}
