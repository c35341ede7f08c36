package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quire/internal/markdown"
	"github.com/starford/quire/internal/models"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig      `yaml:"app"`
	Site     SiteConfig             `yaml:"site"`
	Chapters []models.ChapterRecord `yaml:"chapters"`
	Search   SearchConfig           `yaml:"search"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := validateChapters(c.Chapters); err != nil {
		return err
	}
	return c.Search.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds the preview server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SiteConfig describes the book: where its sources live, where output goes
// and how pages are rendered.
//
// Layouts and Assets are relative to Source.
type SiteConfig struct {
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	Language      string `yaml:"language"`
	Source        string `yaml:"source"`
	Output        string `yaml:"output"`
	Layouts       string `yaml:"layouts"`
	Assets        string `yaml:"assets"`
	DefaultLayout string `yaml:"default_layout"`
	IndexLayout   string `yaml:"index_layout"`
	Highlight     string `yaml:"highlight"`
	UnsafeHTML    bool   `yaml:"unsafe_html"`
	Strict        bool   `yaml:"strict"`
	Workers       int    `yaml:"workers"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	if c.IndexLayout == "" {
		c.IndexLayout = c.DefaultLayout
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Title, validation.Required),
		validation.Field(&c.Source, validation.Required),
		validation.Field(&c.Output, validation.Required, validation.By(distinctFrom(c.Source))),
		validation.Field(&c.DefaultLayout, validation.Required),
		validation.Field(&c.Highlight, validation.By(knownStyle)),
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

// LayoutsDir returns the layouts directory resolved against Source.
func (c *SiteConfig) LayoutsDir() string {
	if c.Layouts == "" || filepath.IsAbs(c.Layouts) {
		return c.Layouts
	}
	return filepath.Join(c.Source, c.Layouts)
}

// WorkerCount returns the render concurrency, defaulting to the CPU count.
func (c *SiteConfig) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

func distinctFrom(source string) validation.RuleFunc {
	return func(value any) error {
		out, _ := value.(string)
		a, errA := filepath.Abs(out)
		b, errB := filepath.Abs(source)
		if errA == nil && errB == nil && a == b {
			return errors.New("must differ from the source directory")
		}
		return nil
	}
}

func knownStyle(value any) error {
	s, _ := value.(string)
	if s == "" || markdown.KnownStyle(s) {
		return nil
	}
	return fmt.Errorf("unknown highlight style %q", s)
}

// validateChapters checks the reading order: every record names a target,
// no target appears twice, and the reserved index page is never a chapter.
func validateChapters(chapters []models.ChapterRecord) error {
	seen := make(map[string]int, len(chapters))
	for i, ch := range chapters {
		id := models.NormalizeTarget(ch.File)
		if id == "" {
			return fmt.Errorf("chapters[%d]: file is required", i)
		}
		if id == models.IndexID {
			return fmt.Errorf("chapters[%d]: %q is reserved for the table of contents", i, ch.File)
		}
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("chapters[%d]: %q already listed at chapters[%d]", i, ch.File, prev)
		}
		seen[id] = i
	}
	return nil
}

// SearchConfig holds the SQLite search index configuration used by serve and mcp.
type SearchConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SQLitePath, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 4000,
			},
		},
		Site: SiteConfig{
			Title:         "Untitled Book",
			Language:      "en",
			Source:        "./content",
			Output:        "./_site",
			Layouts:       "_layouts",
			Assets:        "assets",
			DefaultLayout: "default",
			IndexLayout:   "default",
			Highlight:     "github",
		},
		Search: SearchConfig{
			SQLitePath: "./.quire/search.db",
		},
	}
}
