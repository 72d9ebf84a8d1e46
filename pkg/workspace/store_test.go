package workspace

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jllopis/automata/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "ws"), filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveLoadRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "web_dev", "a.txt", "hello", "greeting"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	content, err := store.Load(ctx, "web_dev", "a.txt")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if content != "hello" {
		t.Errorf("expected %q, got %q", "hello", content)
	}
}

func TestSaveCreatesNestedDirs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "web_dev", "site/css/main.css", "body{}", "styles"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Load(ctx, "web_dev", "site/css/main.css"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
}

func TestListWithDescriptions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "web_dev", "b.txt", "2", "second file"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, "web_dev", "a.txt", "1", "first file"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := store.List(ctx, "web_dev")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "a.txt" || entries[0].Description != "first file" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Name != "b.txt" || entries[1].Description != "second file" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestSaveOverwritesDescription(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "s", "a.txt", "v1", "old"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, "s", "a.txt", "v2", "new"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := store.List(ctx, "s")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Description != "new" {
		t.Errorf("expected single entry with updated description, got %+v", entries)
	}
	content, _ := store.Load(ctx, "s", "a.txt")
	if content != "v2" {
		t.Errorf("expected overwritten content, got %q", content)
	}
}

func TestScopeIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "alpha", "a.txt", "alpha content", ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Load(ctx, "beta", "a.txt"); err == nil {
		t.Fatalf("scopes must not see each other's files")
	}
}

func TestLoadMissingIsNotFound(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save(context.Background(), "s", "exists.txt", "x", ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := store.Load(context.Background(), "s", "missing.txt")
	if errors.CodeOf(err) != errors.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestListUnknownScopeIsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.List(context.Background(), "never_written")
	if errors.CodeOf(err) != errors.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"", "  ", "../outside.txt", "/etc/passwd", "a/../../b"} {
		err := store.Save(ctx, "s", name, "x", "")
		if errors.CodeOf(err) != errors.CodeInvalidInput {
			t.Errorf("name %q must be rejected as invalid input, got %v", name, err)
		}
	}
}

func TestEmptyScopeUsesRootDir(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, "", "top.txt", "x", "top level"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	entries, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "top.txt" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}
