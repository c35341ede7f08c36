// Package site builds the static book: it parses every document, renders it
// inside its layout, and generates the table-of-contents page from the
// configured chapter order.
package site

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/frontmatter"
	"github.com/starford/quire/internal/layout"
	"github.com/starford/quire/internal/markdown"
	"github.com/starford/quire/internal/metrics"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/storage"
)

// HighlightCSSPath is where the generated syntax highlighting stylesheet is written.
const HighlightCSSPath = "assets/highlight.css"

// Options controls a build.
type Options struct {
	Title         string
	Description   string
	Language      string
	LayoutsDir    string
	AssetsDir     string   // relative to the source root; copied verbatim
	Exclude       []string // source-relative dirs never scanned for documents
	DefaultLayout string
	IndexLayout   string
	Highlight     string
	UnsafeHTML    bool
	Strict        bool
	Workers       int
	LiveReload    bool
	Chapters      []models.ChapterRecord
}

// Site is the result of a successful build. Nothing in it depends on time or
// scheduling, so equal inputs give equal Sites.
type Site struct {
	Documents []*models.Document // sorted by ID
	Chapters  []models.Chapter   // in reading order
	Orphans   []string           // document IDs not listed in the chapter order
	Pages     []models.Page      // sorted by Path
	Checksum  string
}

// Document returns the document with the given ID.
func (s *Site) Document(id string) (*models.Document, bool) {
	i := sort.Search(len(s.Documents), func(i int) bool { return s.Documents[i].ID >= id })
	if i < len(s.Documents) && s.Documents[i].ID == id {
		return s.Documents[i], true
	}
	return nil, false
}

// Builder turns a source tree into a Site.
type Builder struct {
	src      storage.Source
	opts     Options
	md       markdown.Converter
	logger   *slog.Logger
	recorder metrics.Recorder
}

// New creates a Builder. The layouts directory is read here to report a
// broken layout early, and again at the start of every Build.
func New(src storage.Source, opts Options, logger *slog.Logger) (*Builder, error) {
	if _, err := layout.Load(opts.LayoutsDir); err != nil {
		return nil, err
	}
	if opts.DefaultLayout == "" {
		opts.DefaultLayout = "default"
	}
	if opts.IndexLayout == "" {
		opts.IndexLayout = opts.DefaultLayout
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		src:  src,
		opts: opts,
		md: markdown.NewGoldmark(markdown.Options{
			HighlightStyle: opts.Highlight,
			Unsafe:         opts.UnsafeHTML,
		}),
		logger:   logger,
		recorder: metrics.NoopRecorder{},
	}, nil
}

// WithRecorder sets the metrics recorder.
func (b *Builder) WithRecorder(r metrics.Recorder) *Builder {
	if r != nil {
		b.recorder = r
	}
	return b
}

// parsed is a document after Parse and Markdown conversion.
type parsed struct {
	doc      *models.Document
	fragment string
}

// Build runs the whole pipeline. The first failing document aborts the build
// and no Site is returned.
func (b *Builder) Build(ctx context.Context) (site *Site, err error) {
	start := time.Now()
	defer func() {
		b.recorder.ObserveBuildDuration(time.Since(start))
		if err != nil {
			b.recorder.IncBuildOutcome(metrics.OutcomeFailed)
			return
		}
		b.recorder.IncBuildOutcome(metrics.OutcomeSuccess)
		b.recorder.SetPages(len(site.Pages))
	}()

	// Layouts are edited while serving, so every build reads them afresh.
	layouts, err := layout.Load(b.opts.LayoutsDir)
	if err != nil {
		return nil, err
	}

	exclude := append([]string{b.opts.AssetsDir}, b.opts.Exclude...)
	files, err := b.src.List("", exclude...)
	if err != nil {
		return nil, err
	}

	docs, err := b.parseAll(ctx, files)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*parsed, len(docs))
	for _, p := range docs {
		byID[p.doc.ID] = p
	}

	chapters, err := resolveChapters(b.opts.Chapters, byID)
	if err != nil {
		return nil, err
	}

	orphans, err := b.checkOrphans(docs, chapters)
	if err != nil {
		return nil, err
	}

	pages, err := b.renderAll(ctx, layouts, docs, chapters)
	if err != nil {
		return nil, err
	}

	index, err := b.buildIndex(layouts, byID[models.IndexID], chapters)
	if err != nil {
		return nil, err
	}
	pages = append(pages, index)

	assets, err := b.collectAssets()
	if err != nil {
		return nil, err
	}
	pages = append(pages, assets...)

	if err := checkUniquePaths(pages); err != nil {
		return nil, err
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })

	out := &Site{
		Chapters: chapters,
		Orphans:  orphans,
		Pages:    pages,
		Checksum: checksum.Site(pages),
	}
	for _, p := range docs {
		out.Documents = append(out.Documents, p.doc)
	}
	sort.Slice(out.Documents, func(i, j int) bool { return out.Documents[i].ID < out.Documents[j].ID })

	b.logger.Info("site built",
		slog.Int("documents", len(docs)),
		slog.Int("chapters", len(chapters)),
		slog.Int("pages", len(pages)),
		slog.String("checksum", out.Checksum),
		slog.Duration("elapsed", time.Since(start)))
	return out, nil
}

// parseAll parses and converts every document concurrently. Results keep the
// order of files, which List returns sorted.
func (b *Builder) parseAll(ctx context.Context, files []models.SourceFile) ([]*parsed, error) {
	out := make([]*parsed, len(files))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			started := time.Now()
			p, err := b.parseOne(gCtx, f)
			if err != nil {
				return err
			}
			b.recorder.ObserveRenderDuration(time.Since(started))
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Builder) parseOne(ctx context.Context, f models.SourceFile) (*parsed, error) {
	id := strings.TrimSuffix(f.Path, ".md")

	data, err := b.src.Read(f.Path)
	if err != nil {
		return nil, apperr.ForDocument(id, err)
	}
	res, err := frontmatter.Parse(data)
	if err != nil {
		return nil, apperr.ForDocument(id, fmt.Errorf("parse %s: %w", f.Path, err))
	}

	doc := &models.Document{
		ID:       id,
		Path:     f.Path,
		Metadata: res.Metadata,
		Body:     res.Body,
		Title:    res.Title,
		Checksum: f.Checksum,
	}
	if doc.Title == "" {
		doc.Title = id
	}

	fragment, err := b.md.ToHTML(ctx, res.Body)
	if err != nil {
		return nil, apperr.ForDocument(id, err)
	}

	b.logger.Debug("document parsed",
		slog.String("id", id),
		slog.Bool("metadata", res.HasMetadata))
	return &parsed{doc: doc, fragment: fragment}, nil
}

// resolveChapters maps configured records to documents, in configured order.
func resolveChapters(records []models.ChapterRecord, byID map[string]*parsed) ([]models.Chapter, error) {
	chapters := make([]models.Chapter, 0, len(records))
	for i, rec := range records {
		id := models.NormalizeTarget(rec.File)
		p, ok := byID[id]
		if !ok || id == models.IndexID {
			return nil, apperr.ForDocument(id,
				fmt.Errorf("chapters[%d] %q: %w", i, rec.File, apperr.ErrMissingChapter))
		}
		title := strings.TrimSpace(rec.Title)
		if title == "" {
			title = p.doc.Title
		}
		chapters = append(chapters, models.Chapter{
			Position: i + 1,
			Title:    title,
			ID:       id,
			Href:     models.OutputPath(id),
		})
	}
	return chapters, nil
}

// checkOrphans reports documents no chapter points at. In strict mode the
// first orphan fails the build.
func (b *Builder) checkOrphans(docs []*parsed, chapters []models.Chapter) ([]string, error) {
	listed := make(map[string]struct{}, len(chapters))
	for _, ch := range chapters {
		listed[ch.ID] = struct{}{}
	}

	var orphans []string
	for _, p := range docs {
		id := p.doc.ID
		if id == models.IndexID {
			continue
		}
		if _, ok := listed[id]; ok {
			continue
		}
		if b.opts.Strict {
			return nil, apperr.ForDocument(id, apperr.ErrOrphanDocument)
		}
		b.logger.Warn("document not reachable from the table of contents", slog.String("id", id))
		orphans = append(orphans, id)
	}
	return orphans, nil
}

// renderAll wraps every non-index document in its layout.
func (b *Builder) renderAll(ctx context.Context, layouts *layout.Registry, docs []*parsed, chapters []models.Chapter) ([]models.Page, error) {
	position := make(map[string]int, len(chapters))
	for i, ch := range chapters {
		position[ch.ID] = i
	}

	pages := make([]models.Page, len(docs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, p := range docs {
		if p.doc.ID == models.IndexID {
			continue
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			var prev, next *models.Chapter
			if pos, ok := position[p.doc.ID]; ok {
				if pos > 0 {
					prev = &chapters[pos-1]
				}
				if pos+1 < len(chapters) {
					next = &chapters[pos+1]
				}
			}
			page, err := b.render(layouts, p, chapters, prev, next)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := pages[:0]
	for _, pg := range pages {
		if pg.Path != "" {
			out = append(out, pg)
		}
	}
	return out, nil
}

// render applies the document's layout (or the default) around its body.
func (b *Builder) render(layouts *layout.Registry, p *parsed, chapters []models.Chapter, prev, next *models.Chapter) (models.Page, error) {
	doc := p.doc
	name := doc.Layout()
	if name == "" {
		name = b.opts.DefaultLayout
	}

	title := doc.Title
	for _, ch := range chapters {
		if ch.ID == doc.ID {
			title = ch.Title
			break
		}
	}

	html, err := layouts.Render(name, layout.Data{
		Site: b.siteData(),
		Page: layout.Page{
			ID:          doc.ID,
			Title:       title,
			Description: doc.Description(),
			Params:      doc.Metadata,
		},
		Content:  template.HTML(p.fragment), //nolint:gosec // goldmark output, raw HTML only with unsafe_html
		Root:     rootFor(doc.ID),
		Chapters: chapters,
		Prev:     prev,
		Next:     next,
	})
	if err != nil {
		return models.Page{}, apperr.ForDocument(doc.ID, err)
	}
	return models.Page{Path: doc.OutputPath(), Content: html}, nil
}

func (b *Builder) siteData() layout.Site {
	return layout.Site{
		Title:        b.opts.Title,
		Description:  b.opts.Description,
		Language:     b.opts.Language,
		HighlightCSS: b.opts.Highlight != "",
		LiveReload:   b.opts.LiveReload,
	}
}

// rootFor returns the relative prefix from a page back to the output root.
func rootFor(id string) string {
	return strings.Repeat("../", strings.Count(id, "/"))
}

func checkUniquePaths(pages []models.Page) error {
	seen := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		if _, dup := seen[p.Path]; dup {
			return fmt.Errorf("site: two outputs map to %s", p.Path)
		}
		seen[p.Path] = struct{}{}
	}
	return nil
}
