package cursor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logx "h1mon/pkg/logx"
)

// fileStore keeps the cursor in a single small text file: one identifier
// plus a trailing newline, nothing else.
type fileStore struct {
	path string
	log  logx.Logger
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("cursor.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{path: path, log: log}, nil
}

func (s *fileStore) Load(ctx context.Context) (string, bool, error) {
	_ = ctx
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, &StoreError{Op: "load", Path: s.path, Err: err}
	}

	id := strings.TrimSpace(string(b))
	if !validID(id) {
		return "", false, &StoreError{
			Op:   "load",
			Path: s.path,
			Err:  fmt.Errorf("%w: %q", ErrCorrupt, truncateForLog(id)),
		}
	}
	return id, true, nil
}

// Save writes to a temp file in the same directory and renames it over the
// cursor file, so the store never contains a partially written value.
func (s *fileStore) Save(ctx context.Context, id string) error {
	_ = ctx
	id = strings.TrimSpace(id)
	if !validID(id) {
		return &StoreError{Op: "save", Path: s.path, Err: fmt.Errorf("refusing to persist invalid id %q", id)}
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return &StoreError{Op: "save", Path: s.path, Err: err}
	}
	if _, err := f.WriteString(id + "\n"); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return &StoreError{Op: "save", Path: s.path, Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return &StoreError{Op: "save", Path: s.path, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return &StoreError{Op: "save", Path: s.path, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return &StoreError{Op: "save", Path: s.path, Err: err}
	}

	s.log.Debug("cursor saved", logx.String("id", id), logx.String("path", s.path))
	return nil
}

func (s *fileStore) Close() error { return nil }

func truncateForLog(s string) string {
	if len(s) > 64 {
		return s[:61] + "..."
	}
	return s
}
