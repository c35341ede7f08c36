package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/quire/internal/apperr"
)

// PageRow represents a row in the pages table. Position is the 1-based
// reading order, or 0 for documents not in the chapter list.
type PageRow struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Href     string `json:"href"`
	Position int    `json:"position"`
	Checksum string `json:"checksum"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Href    string `json:"href"`
	Snippet string `json:"snippet"`
}

// UpsertPage inserts or replaces a page and its FTS entry within a transaction.
func (db *DB) UpsertPage(p PageRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO pages (id, title, href, position, checksum, body)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title    = excluded.title,
			href     = excluded.href,
			position = excluded.position,
			checksum = excluded.checksum,
			body     = excluded.body
	`, p.ID, p.Title, p.Href, p.Position, p.Checksum, body)
	if err != nil {
		return fmt.Errorf("index: upsert page: %w", err)
	}

	if err := ftsUpsert(tx, p.ID, p.Title, body); err != nil {
		return err
	}

	return tx.Commit()
}

// DeletePage removes a page and its FTS entry.
func (db *DB) DeletePage(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM pages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete page: %w", err)
	}
	return tx.Commit()
}

// GetPage returns a single page row.
func (db *DB) GetPage(id string) (*PageRow, error) {
	var p PageRow
	err := db.conn.QueryRow(`SELECT id, title, href, position, checksum FROM pages WHERE id = ?`, id).
		Scan(&p.ID, &p.Title, &p.Href, &p.Position, &p.Checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: page %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get page: %w", err)
	}
	return &p, nil
}

// ListChapters returns the pages in the chapter list, in reading order.
func (db *DB) ListChapters() ([]PageRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, title, href, position, checksum
		FROM pages
		WHERE position > 0
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("index: list chapters: %w", err)
	}
	defer rows.Close()

	var out []PageRow
	for rows.Next() {
		var p PageRow
		if err := rows.Scan(&p.ID, &p.Title, &p.Href, &p.Position, &p.Checksum); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AllChecksums returns id → checksum for every indexed page.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}
