// Package workspace provides the delegator-scoped file store leaf
// capabilities write to, with a SQLite index of human-readable
// descriptions for listing.
package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jllopis/automata/pkg/errors"
)

// Entry pairs a stored path with its recorded description.
type Entry struct {
	Name        string
	Description string
}

// Store persists content under <root>/<scope>/<name> and records a
// description per (scope, name) in SQLite. The scope is the top-level
// delegator identity, so sibling hierarchies never see each other's
// files.
type Store struct {
	root string
	db   *sql.DB
}

// Open creates a store rooted at root with its description index at
// indexPath, ensuring schema.
func Open(root, indexPath string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	if dir := filepath.Dir(indexPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", indexPath)
	if err != nil {
		return nil, fmt.Errorf("open workspace index: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{root: root, db: db}, nil
}

// Close releases the description index.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes content under the scope, creating intermediate directories
// as needed, and records the description for later listing.
func (s *Store) Save(ctx context.Context, scope, name, content, description string) error {
	path, err := s.resolve(scope, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dirs for %q: %w", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %q: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workspace_entries (scope, path, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, path) DO UPDATE SET
			description = excluded.description,
			updated_at = excluded.updated_at
	`, scope, name, description, time.Now().UTC())
	return err
}

// Load retrieves content by relative path. A missing path yields a typed
// NOT_FOUND error so callers can answer with a corrective message.
func (s *Store) Load(ctx context.Context, scope, name string) (string, error) {
	path, err := s.resolve(scope, name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New(errors.CodeNotFound,
				fmt.Sprintf("no file %q in workspace scope %q", name, scope), err)
		}
		return "", fmt.Errorf("read %q: %w", name, err)
	}
	return string(data), nil
}

// List enumerates entries under the scope paired with their recorded
// descriptions. Listing a scope nothing was ever written to fails.
func (s *Store) List(ctx context.Context, scope string) ([]Entry, error) {
	if _, err := os.Stat(filepath.Join(s.root, scopeDir(scope))); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeNotFound,
				fmt.Sprintf("workspace scope %q does not exist", scope), err)
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, description
		FROM workspace_entries
		WHERE scope = ?
		ORDER BY path ASC
	`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.Name, &entry.Description); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// resolve maps (scope, name) onto the filesystem, rejecting paths that
// would escape the scope directory.
func (s *Store) resolve(scope, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New(errors.CodeInvalidInput, "empty file name", nil)
	}
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("file name %q escapes the workspace scope", name), nil)
	}
	return filepath.Join(s.root, scopeDir(scope), cleaned), nil
}

func scopeDir(scope string) string {
	if scope == "" {
		return "_root"
	}
	return scope
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS workspace_entries (
			scope TEXT NOT NULL,
			path TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP,
			PRIMARY KEY (scope, path)
		);
		CREATE INDEX IF NOT EXISTS idx_workspace_scope ON workspace_entries(scope);
	`)
	return err
}
