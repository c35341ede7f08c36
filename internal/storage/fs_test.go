package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
)

func tempSource(t *testing.T, files map[string]string) *FS {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestList_MarkdownOnlyInLexicalOrder(t *testing.T) {
	s := tempSource(t, map[string]string{
		"b.md":            "b",
		"a.md":            "a",
		"sub/c.md":        "c",
		"readme.txt":      "not md",
		".drafts/x.md":    "hidden",
		"assets/notes.md": "asset",
	})

	items, err := s.List("", "assets")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []string
	for _, it := range items {
		got = append(got, it.Path)
		if it.Checksum == "" {
			t.Errorf("%s: empty checksum", it.Path)
		}
	}
	want := []string{"a.md", "b.md", "sub/c.md"}
	if len(got) != len(want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListAll(t *testing.T) {
	s := tempSource(t, map[string]string{
		"assets/site.css":     "body{}",
		"assets/img/logo.svg": "<svg/>",
	})
	got, err := s.ListAll("assets")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(got) != 2 || got[0] != "assets/img/logo.svg" || got[1] != "assets/site.css" {
		t.Errorf("got %v", got)
	}

	none, err := s.ListAll("missing")
	if err != nil || len(none) != 0 {
		t.Errorf("missing dir: %v, %v", none, err)
	}
}

func TestRead_NotFound(t *testing.T) {
	s := tempSource(t, nil)
	_, err := s.Read("nope.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempSource(t, nil)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(f, nil, 0o644)
	if _, err := NewFS(f); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestPublish_ReplacesOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "_site")
	p, err := NewDirPublisher(out)
	if err != nil {
		t.Fatalf("NewDirPublisher: %v", err)
	}

	if err := p.Publish([]models.Page{
		{Path: "index.html", Content: []byte("v1")},
		{Path: "stale.html", Content: []byte("old")},
	}); err != nil {
		t.Fatalf("Publish v1: %v", err)
	}
	if err := p.Publish([]models.Page{
		{Path: "index.html", Content: []byte("v2")},
		{Path: "chapters/vue.html", Content: []byte("vue")},
	}); err != nil {
		t.Fatalf("Publish v2: %v", err)
	}

	got, _ := os.ReadFile(filepath.Join(out, "index.html"))
	if string(got) != "v2" {
		t.Errorf("index = %q", got)
	}
	if _, err := os.Stat(filepath.Join(out, "stale.html")); !errors.Is(err, os.ErrNotExist) {
		t.Error("stale page survived republish")
	}
	if _, err := os.Stat(filepath.Join(out, "chapters", "vue.html")); err != nil {
		t.Errorf("nested page missing: %v", err)
	}

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(out), ".quire-staging-*"))
	if len(leftovers) != 0 {
		t.Errorf("leftover staging dirs: %v", leftovers)
	}
}

func TestPublish_FailureKeepsPreviousOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "_site")
	p, _ := NewDirPublisher(out)
	_ = p.Publish([]models.Page{{Path: "index.html", Content: []byte("good")}})

	err := p.Publish([]models.Page{
		{Path: "index.html", Content: []byte("bad")},
		{Path: "../escape.html", Content: []byte("x")},
	})
	if err == nil {
		t.Fatal("expected error for escaping page path")
	}
	got, _ := os.ReadFile(filepath.Join(out, "index.html"))
	if string(got) != "good" {
		t.Errorf("output changed after failed publish: %q", got)
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(out), ".quire-staging-*"))
	if len(leftovers) != 0 {
		t.Errorf("leftover staging dirs: %v", leftovers)
	}
}
