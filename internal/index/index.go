package index

// PageIndex defines the search index operations used by the server and the
// MCP tools. Consumers depend on this interface rather than *DB.
type PageIndex interface {
	UpsertPage(p PageRow, body string) error
	DeletePage(id string) error
	GetPage(id string) (*PageRow, error)
	ListChapters() ([]PageRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies PageIndex at compile time.
var _ PageIndex = (*DB)(nil)
