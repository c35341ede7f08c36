package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/quire/internal/models"
)

// DirPublisher writes a complete site into a staging directory next to the
// output directory and swaps it in only once every page has been written.
type DirPublisher struct {
	out string // absolute output directory
}

// NewDirPublisher creates a publisher for the given output directory. The
// directory need not exist yet.
func NewDirPublisher(out string) (*DirPublisher, error) {
	abs, err := resolveDir(out)
	if err != nil {
		return nil, err
	}
	if abs == filepath.Dir(abs) {
		return nil, fmt.Errorf("storage: refusing to publish to filesystem root")
	}
	return &DirPublisher{out: abs}, nil
}

// Dir returns the absolute output directory.
func (p *DirPublisher) Dir() string { return p.out }

// Publish writes pages to a fresh staging dir, then replaces the output dir.
// On any error the existing output is left untouched.
func (p *DirPublisher) Publish(pages []models.Page) error {
	parent := filepath.Dir(p.out)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir parent: %w", err)
	}

	staging, err := os.MkdirTemp(parent, ".quire-staging-*")
	if err != nil {
		return fmt.Errorf("storage: create staging: %w", err)
	}

	success := false
	defer func() {
		if !success {
			_ = os.RemoveAll(staging)
		}
	}()

	for _, pg := range pages {
		if err := writeFile(staging, pg); err != nil {
			return err
		}
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		return fmt.Errorf("storage: chmod staging: %w", err)
	}

	if err := p.swap(staging); err != nil {
		return err
	}
	success = true
	return nil
}

func writeFile(root string, pg models.Page) error {
	abs, err := safeJoin(root, pg.Path)
	if err != nil {
		return err
	}
	if abs == root {
		return fmt.Errorf("storage: empty page path")
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := os.WriteFile(abs, pg.Content, 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", pg.Path, err)
	}
	return nil
}

// swap moves the previous output aside, renames staging into place and then
// drops the previous output.
func (p *DirPublisher) swap(staging string) error {
	var old string
	if _, err := os.Stat(p.out); err == nil {
		old = staging + ".old"
		if err := os.Rename(p.out, old); err != nil {
			return fmt.Errorf("storage: move old output: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: stat output: %w", err)
	}

	if err := os.Rename(staging, p.out); err != nil {
		if old != "" {
			_ = os.Rename(old, p.out)
		}
		return fmt.Errorf("storage: rename staging: %w", err)
	}

	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			return fmt.Errorf("storage: remove old output: %w", err)
		}
	}
	return nil
}
