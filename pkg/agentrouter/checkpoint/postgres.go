package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists checkpoints in a Postgres table through a pgx pool.
// The caller owns the pool unless the store was built with OpenPostgresStore.
type PostgresStore struct {
	db    *pgxpool.Pool
	table string
	owned bool

	mu     sync.RWMutex
	closed bool
}

// NewPostgresStore wraps an existing pool and creates the table if missing.
func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{db: db, table: "workflow_checkpoints"}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenPostgresStore dials connString and owns the resulting pool.
func OpenPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewPostgresStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			workflow_id TEXT PRIMARY KEY,
			revision INTEGER NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			data BYTEA NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (s *PostgresStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, workflowID string, data []byte) error {
	if workflowID == "" {
		return ErrEmptyID
	}
	if s.isClosed() {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO workflow_checkpoints (workflow_id, revision, updated_at, data)
		VALUES ($1, 1, clock_timestamp(), $2)
		ON CONFLICT (workflow_id) DO UPDATE SET
			revision = workflow_checkpoints.revision + 1,
			updated_at = clock_timestamp(),
			data = EXCLUDED.data
	`, workflowID, data)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, workflowID string) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT data FROM workflow_checkpoints WHERE workflow_id = $1`,
		workflowID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]Info, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(ctx, `
		SELECT workflow_id, revision, updated_at, octet_length(data)
		FROM workflow_checkpoints
		ORDER BY updated_at, workflow_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.WorkflowID, &info.Revision, &info.UpdatedAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scan checkpoint info: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, workflowID string) error {
	if s.isClosed() {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(ctx,
		`DELETE FROM workflow_checkpoints WHERE workflow_id = $1`,
		workflowID,
	); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.owned {
		s.db.Close()
	}
	return nil
}
