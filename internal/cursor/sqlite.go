//go:build sqlite
// +build sqlite

package cursor

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "h1mon/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("cursor.path is required for sqlite driver")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Load(ctx context.Context) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT last_id FROM cursor WHERE slot = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StoreError{Op: "load", Path: "cursor.slot=1", Err: err}
	}
	if !validID(strings.TrimSpace(id)) {
		return "", false, &StoreError{
			Op:   "load",
			Path: "cursor.slot=1",
			Err:  fmt.Errorf("%w: %q", ErrCorrupt, truncateForLog(id)),
		}
	}
	return strings.TrimSpace(id), true, nil
}

// Save upserts the single cursor row; the statement is atomic on its own.
func (s *sqliteStore) Save(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if !validID(id) {
		return &StoreError{Op: "save", Path: "cursor.slot=1", Err: fmt.Errorf("refusing to persist invalid id %q", id)}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cursor(slot, last_id, updated_at) VALUES(1, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET last_id = excluded.last_id, updated_at = excluded.updated_at`,
		id, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &StoreError{Op: "save", Path: "cursor.slot=1", Err: err}
	}
	s.log.Debug("cursor saved", logx.String("id", id), logx.String("driver", "sqlite"))
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
