package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
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

const testConfig = `app:
  log_format: text
site:
  title: Frameworks
  source: ${QUIRE_TEST_ROOT}/content
  output: ${QUIRE_TEST_ROOT}/_site
chapters:
  - title: Intro
    file: intro.md
  - title: Vue
    file: vue
`

func TestRun_BuildFailureExitsNonZero(t *testing.T) {
	root := t.TempDir()
	t.Setenv("QUIRE_TEST_ROOT", root)
	writeFiles(t, root, map[string]string{
		"quire.yaml":       testConfig,
		"content/intro.md": "# Intro\n",
		"content/vue.md":   "---\ntitle: Vue\nno closing delimiter\n",
	})

	code := run(context.Background(), []string{"quire", "build", "-c", filepath.Join(root, "quire.yaml")})
	if code == 0 {
		t.Fatal("exit code = 0, want non-zero")
	}
	if _, err := os.Stat(filepath.Join(root, "_site")); !os.IsNotExist(err) {
		t.Error("failed build wrote output")
	}
}

func TestRun_BuildSucceeds(t *testing.T) {
	root := t.TempDir()
	t.Setenv("QUIRE_TEST_ROOT", root)
	writeFiles(t, root, map[string]string{
		"quire.yaml":       testConfig,
		"content/intro.md": "# Intro\n",
		"content/vue.md":   "# Vue\n",
	})

	code := run(context.Background(), []string{"quire", "build", "-c", filepath.Join(root, "quire.yaml")})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	data, err := os.ReadFile(filepath.Join(root, "_site", "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	intro := strings.Index(string(data), `href="intro.html"`)
	vue := strings.Index(string(data), `href="vue.html"`)
	if intro < 0 || vue < 0 || intro > vue {
		t.Errorf("index links missing or out of order:\n%s", data)
	}
}

func TestRun_FlagsOverrideWithoutConfigFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"content/notes.md": "# Notes\n"})

	code := run(context.Background(), []string{"quire", "build",
		"-c", filepath.Join(root, "missing.yaml"),
		"--source", filepath.Join(root, "content"),
		"--output", filepath.Join(root, "out"),
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if _, err := os.Stat(filepath.Join(root, "out", "notes.html")); err != nil {
		t.Errorf("notes.html not published: %v", err)
	}

	// The same unlisted document fails under --strict.
	code = run(context.Background(), []string{"quire", "build",
		"-c", filepath.Join(root, "missing.yaml"),
		"--source", filepath.Join(root, "content"),
		"--output", filepath.Join(root, "out"),
		"--strict",
	})
	if code == 0 {
		t.Error("--strict with an orphan should exit non-zero")
	}
}

func TestRun_InvalidConfigExitsNonZero(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"quire.yaml": "site:\n  unknown_key: 1\n"})

	if code := run(context.Background(), []string{"quire", "build", "-c", filepath.Join(root, "quire.yaml")}); code == 0 {
		t.Error("unknown config key should exit non-zero")
	}
}
