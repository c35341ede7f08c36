// Package markdown converts Markdown bodies to HTML fragments with goldmark.
package markdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrConversion indicates goldmark failed to render a body.
var ErrConversion = errors.New("markdown conversion failed")

// Converter turns a Markdown body into an HTML fragment.
type Converter interface {
	ToHTML(ctx context.Context, body string) (string, error)
}

// Options tunes the goldmark pipeline.
type Options struct {
	// HighlightStyle is a chroma style name. Empty disables highlighting.
	HighlightStyle string
	// Unsafe lets raw HTML in the body pass through.
	Unsafe bool
}

// Goldmark converts Markdown using goldmark with GFM, footnotes and chroma highlighting.
type Goldmark struct {
	md goldmark.Markdown
}

// NewGoldmark creates a Goldmark converter.
func NewGoldmark(opts Options) *Goldmark {
	exts := []goldmark.Extender{
		extension.GFM,
		extension.Footnote,
	}
	if opts.HighlightStyle != "" {
		exts = append(exts, highlighting.NewHighlighting(
			highlighting.WithStyle(opts.HighlightStyle),
			highlighting.WithFormatOptions(
				chromahtml.WithClasses(true),
			),
		))
	}

	rendererOpts := []goldmark.Option{
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	}
	if opts.Unsafe {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(html.WithUnsafe()))
	}

	return &Goldmark{md: goldmark.New(rendererOpts...)}
}

// ToHTML renders body to an HTML fragment. goldmark has no context support,
// so conversion runs in a goroutine raced against ctx.
func (g *Goldmark) ToHTML(ctx context.Context, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}

	done := make(chan result, 1)

	go func() {
		var buf bytes.Buffer
		if err := g.md.Convert([]byte(body), &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrConversion, err)}
			return
		}
		done <- result{html: buf.String()}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.html, r.err
	}
}

// Stylesheet returns the chroma CSS for the given style, for use as a static asset.
func Stylesheet(style string) ([]byte, error) {
	if style == "" {
		return nil, nil
	}
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, stylesByName(style)); err != nil {
		return nil, fmt.Errorf("markdown: write highlight css: %w", err)
	}
	return buf.Bytes(), nil
}
