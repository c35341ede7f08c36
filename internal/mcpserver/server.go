// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the built book to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/site"
	"github.com/starford/quire/internal/storage"
)

// Resource URIs.
const (
	TOCURI    = "quire://toc"
	FormatURI = "quire://chapter-format"
)

const maxSearchResults = 20

// Server wraps the MCP server with the book tools.
type Server struct {
	mcp   *server.MCPServer
	src   storage.Source
	idx   index.PageIndex
	title string

	mu   sync.RWMutex
	site *site.Site
}

// New creates a new MCP server over a built site. src is the source tree the
// site was built from; idx must already be synced with the site.
func New(title, version string, src storage.Source, idx index.PageIndex, built *site.Site) *Server {
	s := &Server{src: src, idx: idx, title: title, site: built}

	s.mcp = server.NewMCPServer(
		"quire",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_chapters",
		mcp.WithDescription("List the book's chapters in reading order, plus documents not listed in the table of contents."),
	), s.listChapters)

	s.mcp.AddTool(mcp.NewTool("read_chapter",
		mcp.WithDescription("Read one chapter. Returns the Markdown source by default, or the rendered HTML page."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Chapter identifier, e.g. intro, intro.md or guide/setup.html")),
		mcp.WithString("format", mcp.Description("markdown (default) or html"), mcp.Enum("markdown", "html")),
	), s.readChapter)

	s.mcp.AddTool(mcp.NewTool("search_chapters",
		mcp.WithDescription("Full-text search through chapter titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchChapters)

	s.mcp.AddResource(
		mcp.NewResource(TOCURI, "Table of Contents",
			mcp.WithResourceDescription("The book's chapters in reading order as a Markdown list."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTOCResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Chapter Format",
			mcp.WithResourceDescription("How a chapter source file is structured."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio serves MCP on stdin/stdout until stdin closes or ctx is done.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen serves MCP over an arbitrary line-delimited JSON-RPC stream.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// SetSite replaces the site the tools answer from. It is called after every
// successful rebuild.
func (s *Server) SetSite(built *site.Site) {
	s.mu.Lock()
	s.site = built
	s.mu.Unlock()
}

func (s *Server) current() *site.Site {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.site
}

type chapterEntry struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	File     string `json:"file"`
	Href     string `json:"href"`
}

type chapterList struct {
	Chapters []chapterEntry `json:"chapters"`
	Orphans  []string       `json:"orphans,omitempty"`
}

func (s *Server) listChapters(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	built := s.current()
	out := chapterList{Chapters: make([]chapterEntry, 0, len(built.Chapters)), Orphans: built.Orphans}
	for _, ch := range built.Chapters {
		out.Chapters = append(out.Chapters, chapterEntry{
			Position: ch.Position,
			Title:    ch.Title,
			File:     ch.ID,
			Href:     ch.Href,
		})
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readChapter(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := req.GetString("format", "markdown")

	built := s.current()
	id := models.NormalizeTarget(file)
	doc, ok := built.Document(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", file)), nil
	}

	switch format {
	case "markdown":
		data, err := s.src.Read(doc.Path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", file)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	case "html":
		for _, pg := range built.Pages {
			if pg.Path == doc.OutputPath() {
				return mcp.NewToolResultText(string(pg.Content)), nil
			}
		}
		return mcp.NewToolResultError(fmt.Sprintf("no rendered page for %s", file)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", format)), nil
	}
}

func (s *Server) searchChapters(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.idx.Search(query, maxSearchResults)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

// TOC renders the table of contents as a numbered Markdown list.
func (s *Server) TOC() string {
	built := s.current()
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.title)
	for _, ch := range built.Chapters {
		fmt.Fprintf(&b, "%d. [%s](%s)\n", ch.Position, ch.Title, ch.Href)
	}
	return b.String()
}

func (s *Server) readTOCResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      TOCURI,
			MIMEType: "text/markdown",
			Text:     s.TOC(),
		},
	}, nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     ChapterFormat,
		},
	}, nil
}
