package index

import (
	"log/slog"

	"github.com/starford/quire/internal/models"
)

// Sync brings the index in line with a finished build:
//   - new or changed documents (by checksum or chapter placement) are upserted
//   - documents no longer in the source are deleted
func Sync(db PageIndex, docs []*models.Document, chapters []models.Chapter, logger *slog.Logger) error {
	existing, err := db.AllChecksums()
	if err != nil {
		return err
	}

	placed := make(map[string]models.Chapter, len(chapters))
	for _, ch := range chapters {
		placed[ch.ID] = ch
	}

	live := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		live[d.ID] = struct{}{}

		row := PageRow{ID: d.ID, Title: d.Title, Href: d.OutputPath(), Checksum: d.Checksum}
		if ch, ok := placed[d.ID]; ok {
			row.Title = ch.Title
			row.Position = ch.Position
		}
		// The checksum alone misses reordering, so compare the stored row too.
		if cs, ok := existing[d.ID]; ok && cs == d.Checksum {
			if cur, err := db.GetPage(d.ID); err == nil && *cur == row {
				continue
			}
		}

		if err := db.UpsertPage(row, d.Body); err != nil {
			logger.Warn("sync: index failed", slog.String("id", d.ID), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: indexed", slog.String("id", d.ID))
	}

	for id := range existing {
		if _, ok := live[id]; ok {
			continue
		}
		if err := db.DeletePage(id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("id", id))
		}
	}
	return nil
}
