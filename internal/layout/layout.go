// Package layout loads named html/template wrappers and applies them around rendered bodies.
package layout

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
)

//go:embed defaults/*.html
var defaults embed.FS

const ext = ".html"

// Site carries site-wide values available to every layout.
type Site struct {
	Title        string
	Description  string
	Language     string
	HighlightCSS bool
	LiveReload   bool
}

// Page carries per-document values.
type Page struct {
	ID          string
	Title       string
	Description string
	Params      map[string]any
	IsIndex     bool
}

// Data is the value a layout is executed with.
type Data struct {
	Site     Site
	Page     Page
	Content  template.HTML
	Root     string // relative prefix from the page back to the output root
	Chapters []models.Chapter
	Prev     *models.Chapter
	Next     *models.Chapter
}

// Registry holds parsed layouts by name. It is read-only after Load.
type Registry struct {
	layouts map[string]*template.Template
}

// Load parses the embedded defaults, then every *.html file in dir (if dir is
// non-empty and exists). Files in dir override defaults of the same name.
func Load(dir string) (*Registry, error) {
	r := &Registry{layouts: make(map[string]*template.Template)}

	if err := r.addFS(defaults, "defaults"); err != nil {
		return nil, err
	}

	if dir == "" {
		return r, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("layout: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("layout: not a directory: %s", dir)
	}
	if err := r.addFS(os.DirFS(dir), "."); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) addFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("layout: read %s: %w", root, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, e.Name())))
		if err != nil {
			return fmt.Errorf("layout: read %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ext)
		tmpl, err := template.New(name).Option("missingkey=zero").Parse(string(data))
		if err != nil {
			return fmt.Errorf("layout: parse %s: %w", e.Name(), err)
		}
		r.layouts[name] = tmpl
	}
	return nil
}

// Has reports whether a layout with the given name exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.layouts[name]
	return ok
}

// Names returns the sorted layout names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.layouts))
	for n := range r.layouts {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Render executes the named layout with data.
func (r *Registry) Render(name string, data Data) ([]byte, error) {
	tmpl, ok := r.layouts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperr.ErrMissingLayout, name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrTemplate, name, err)
	}
	return buf.Bytes(), nil
}
