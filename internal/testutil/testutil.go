// Package testutil provides shared test helpers for building source trees and databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/storage"
)

// WriteTree writes files (slash-separated relative path → content) under dir.
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// TestSource creates a temporary source tree and a storage.FS rooted at it.
func TestSource(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	WriteTree(t, dir, files)
	src, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, src
}

// TestDB creates a temporary SQLite search index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "search.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
