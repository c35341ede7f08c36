// Package storage reads the book source tree and publishes rendered output.
package storage

import "github.com/starford/quire/internal/models"

// Source is the read side of a build: the Markdown tree and its assets.
type Source interface {
	// List returns every .md file under dir (relative to the root), in lexical
	// order, skipping any path under one of the excluded directories.
	List(dir string, exclude ...string) ([]models.SourceFile, error)
	// ListAll returns every regular file under dir, in lexical order.
	ListAll(dir string) ([]string, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
}

// Publisher is the write side of a build.
type Publisher interface {
	// Publish replaces the output tree with exactly the given pages.
	Publish(pages []models.Page) error
}
