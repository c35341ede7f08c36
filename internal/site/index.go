package site

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/layout"
	"github.com/starford/quire/internal/markdown"
	"github.com/starford/quire/internal/models"
)

var tocTemplate = template.Must(template.New("toc").Parse(
	`<nav class="toc">
<ol>
{{- range . }}
<li><a href="{{ .Href }}">{{ .Title }}</a></li>
{{- end }}
</ol>
</nav>
`))

// renderTOC lists every chapter exactly once, in the given order.
func renderTOC(chapters []models.Chapter) (string, error) {
	var buf bytes.Buffer
	if err := tocTemplate.Execute(&buf, chapters); err != nil {
		return "", fmt.Errorf("site: render toc: %w", err)
	}
	return buf.String(), nil
}

// buildIndex renders index.html: the optional index document's body followed
// by the chapter listing.
func (b *Builder) buildIndex(layouts *layout.Registry, intro *parsed, chapters []models.Chapter) (models.Page, error) {
	toc, err := renderTOC(chapters)
	if err != nil {
		return models.Page{}, err
	}

	page := layout.Page{
		ID:      models.IndexID,
		Title:   b.opts.Title,
		IsIndex: true,
	}
	name := b.opts.IndexLayout
	content := toc

	if intro != nil {
		doc := intro.doc
		if doc.Layout() != "" {
			name = doc.Layout()
		}
		if t, ok := doc.Metadata["title"].(string); ok && t != "" {
			page.Title = t
		}
		page.Description = doc.Description()
		page.Params = doc.Metadata
		content = intro.fragment + toc
	}
	if page.Description == "" {
		page.Description = b.opts.Description
	}

	html, err := layouts.Render(name, layout.Data{
		Site:     b.siteData(),
		Page:     page,
		Content:  template.HTML(content), //nolint:gosec // toc is escaped by html/template
		Chapters: chapters,
	})
	if err != nil {
		return models.Page{}, apperr.ForDocument(models.IndexID, err)
	}
	return models.Page{Path: models.OutputPath(models.IndexID), Content: html}, nil
}

// collectAssets copies the assets directory and adds the highlight stylesheet
// unless the source already ships one at the same path.
func (b *Builder) collectAssets() ([]models.Page, error) {
	var pages []models.Page
	if b.opts.AssetsDir != "" {
		paths, err := b.src.ListAll(b.opts.AssetsDir)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			data, err := b.src.Read(p)
			if err != nil {
				return nil, err
			}
			pages = append(pages, models.Page{Path: p, Content: data})
		}
	}

	if b.opts.Highlight == "" {
		return pages, nil
	}
	for _, p := range pages {
		if p.Path == HighlightCSSPath {
			return pages, nil
		}
	}
	css, err := markdown.Stylesheet(b.opts.Highlight)
	if err != nil {
		return nil, err
	}
	return append(pages, models.Page{Path: HighlightCSSPath, Content: css}), nil
}
