// Package models defines the domain types shared by the quire build pipeline.
package models

import (
	"path"
	"strings"
)

// IndexID is the reserved identifier of the generated table-of-contents page.
const IndexID = "index"

// Document is one Markdown source file.
type Document struct {
	ID       string         `json:"id"`   // source path without .md, slash separated
	Path     string         `json:"path"` // source path relative to the source dir
	Metadata map[string]any `json:"metadata,omitempty"`
	Body     string         `json:"body"`
	Title    string         `json:"title"`
	Checksum string         `json:"checksum"`
}

// Layout returns the layout named by the metadata block, or "" when none is declared.
func (d *Document) Layout() string {
	if s, ok := d.Metadata["layout"].(string); ok {
		return s
	}
	return ""
}

// Description returns the metadata description, if any.
func (d *Document) Description() string {
	if s, ok := d.Metadata["description"].(string); ok {
		return s
	}
	return ""
}

// OutputPath is the path of the rendered page relative to the output dir.
func (d *Document) OutputPath() string {
	return OutputPath(d.ID)
}

// ChapterRecord is one entry of the externally supplied reading order.
type ChapterRecord struct {
	Title string `yaml:"title" json:"title"`
	File  string `yaml:"file" json:"file"`
}

// Chapter is a resolved chapter record: its title is final and its target exists.
type Chapter struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	ID       string `json:"id"`
	Href     string `json:"href"`
}

// Page is one output file: a rendered document, the index, or a copied asset.
type Page struct {
	Path    string
	Content []byte
}

// SourceFile is a file discovered in the source tree.
type SourceFile struct {
	Path     string
	Checksum string
}

// OutputPath maps a document identifier to its HTML output path.
func OutputPath(id string) string {
	return id + ".html"
}

// NormalizeTarget maps a chapter "file" entry to a document identifier:
// "intro", "./intro.md" and "intro.html" all name "intro".
func NormalizeTarget(file string) string {
	t := strings.TrimSpace(strings.ReplaceAll(file, "\\", "/"))
	t = path.Clean("/" + t)[1:]
	for _, ext := range []string{".md", ".markdown", ".html"} {
		if strings.HasSuffix(t, ext) {
			return strings.TrimSuffix(t, ext)
		}
	}
	return t
}
