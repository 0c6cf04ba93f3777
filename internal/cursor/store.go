package cursor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "h1mon/pkg/logx"
)

// ErrCorrupt marks state that exists but cannot be parsed. Callers must not
// overwrite the underlying file/row when they see this.
var ErrCorrupt = errors.New("cursor state corrupt")

// StoreError wraps a failed store operation with enough context to diagnose
// without a debugger.
type StoreError struct {
	Op   string // "load" | "save"
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cursor %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Config configures cursor persistence.
//
// Driver values:
//   - "file": single small text file, atomic replace (default)
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store persists the id of the most recently notified report.
type Store interface {
	// Load returns the cursor id, or ok=false if no prior state exists
	// (normal first run). A corrupt value returns an error wrapping
	// ErrCorrupt.
	Load(ctx context.Context) (id string, ok bool, err error)
	// Save atomically replaces the stored id.
	Save(ctx context.Context, id string) error
	Close() error
}

// Open initializes the configured store. An empty driver means "file".
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown cursor driver: " + driver)
	}
}

// validID reports whether s looks like a report id (1..n digits).
// Anything else in the store is treated as corruption.
func validID(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
