// Package agentstore implements domain.AgentConfigStore.
package agentstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"docroute/internal/domain"
)

// SQLiteStore keeps agent definitions in SQLite, keyed by (scope, key).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and migrates it.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, storeErr("NewSQLiteStore", fmt.Errorf("create data dir: %w", err))
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storeErr("NewSQLiteStore", fmt.Errorf("open agent db: %w", err))
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, storeErr("NewSQLiteStore", fmt.Errorf("set WAL mode: %w", err))
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, storeErr("NewSQLiteStore", fmt.Errorf("migrate agent db: %w", err))
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS agents (
			scope       TEXT NOT NULL,
			key         TEXT NOT NULL,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_active   INTEGER NOT NULL DEFAULT 1,
			updated_at  TEXT NOT NULL,
			PRIMARY KEY (scope, key)
		)
	`)
	return err
}

func storeErr(op string, err error) error {
	return domain.NewSubSystemError("agentstore", op, domain.ErrAgentStore, err.Error())
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListActiveAgents returns the active definitions of scope, ordered by key.
func (s *SQLiteStore) ListActiveAgents(ctx context.Context, scope string) ([]domain.AgentDefinition, error) {
	defs, err := s.list(ctx, scope, true)
	if err != nil {
		return nil, storeErr("SQLiteStore.ListActiveAgents", err)
	}
	return defs, nil
}

// ListAgents returns every definition of scope, active or not.
func (s *SQLiteStore) ListAgents(ctx context.Context, scope string) ([]domain.AgentDefinition, error) {
	defs, err := s.list(ctx, scope, false)
	if err != nil {
		return nil, storeErr("SQLiteStore.ListAgents", err)
	}
	return defs, nil
}

func (s *SQLiteStore) list(ctx context.Context, scope string, activeOnly bool) ([]domain.AgentDefinition, error) {
	q := "SELECT key, name, description, is_active FROM agents WHERE scope = ?"
	if activeOnly {
		q += " AND is_active = 1"
	}
	rows, err := s.db.QueryContext(ctx, q+" ORDER BY key", scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []domain.AgentDefinition
	for rows.Next() {
		var (
			d      domain.AgentDefinition
			key    string
			active int
		)
		if err := rows.Scan(&key, &d.Name, &d.Description, &active); err != nil {
			return nil, err
		}
		d.Key = domain.AgentKey(key)
		d.IsActive = active == 1
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// Upsert inserts or replaces one definition.
func (s *SQLiteStore) Upsert(ctx context.Context, scope string, d domain.AgentDefinition) error {
	if err := upsert(ctx, s.db, scope, d); err != nil {
		return storeErr("SQLiteStore.Upsert", err)
	}
	return nil
}

// Seed upserts defs in a single transaction.
func (s *SQLiteStore) Seed(ctx context.Context, scope string, defs []domain.AgentDefinition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("SQLiteStore.Seed", err)
	}
	for _, d := range defs {
		if err := upsert(ctx, tx, scope, d); err != nil {
			tx.Rollback()
			return storeErr("SQLiteStore.Seed", fmt.Errorf("agent %q: %w", d.Key, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("SQLiteStore.Seed", err)
	}
	return nil
}

// SetActive toggles an agent. Returns ErrNotFound for an unknown key.
func (s *SQLiteStore) SetActive(ctx context.Context, scope string, key domain.AgentKey, active bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE agents SET is_active = ?, updated_at = ? WHERE scope = ? AND key = ?",
		boolInt(active), now(), scope, string(key),
	)
	if err != nil {
		return storeErr("SQLiteStore.SetActive", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NewSubSystemError("agentstore", "SQLiteStore.SetActive", domain.ErrNotFound, string(key))
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, scope string, d domain.AgentDefinition) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO agents (scope, key, name, description, is_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		scope, string(d.Key), d.Name, d.Description, boolInt(d.IsActive), now(),
	)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
