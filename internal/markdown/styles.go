package markdown

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// stylesByName resolves a chroma style, falling back to chroma's default.
func stylesByName(name string) *chroma.Style {
	return styles.Get(name)
}

// KnownStyle reports whether chroma ships a style with the given name.
func KnownStyle(name string) bool {
	_, ok := styles.Registry[name]
	return ok
}
