package index

import (
	"log/slog"
	"time"

	"github.com/starford/raido/internal/router"
	"github.com/starford/raido/internal/store"
	"github.com/starford/raido/internal/update"
)

// Sync walks one update store and brings its slice of the index up to
// date: new/changed files are parsed and upserted, files removed from
// disk are deleted from the index.
func Sync(db *DB, origin update.Origin, p store.Provider, logger *slog.Logger) error {
	infos, err := p.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums(string(origin))
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		disk[info.Path] = struct{}{}

		if checksums[info.Path] == info.Checksum {
			continue
		}

		data, err := p.Read(info.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", info.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexRecord(db, origin, info.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", info.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("origin", string(origin)), slog.String("path", info.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteRecord(string(origin), p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("origin", string(origin)), slog.String("path", p))
			}
		}
	}

	return nil
}

// indexRecord parses data and upserts it into the DB. Unchanged
// content (same checksum as the indexed row) is skipped, so the
// double events fsnotify fires for an atomic tmp+rename write don't
// cause redundant upserts.
func indexRecord(db *DB, origin update.Origin, path string, data []byte) error {
	rec, err := update.Parse(path, origin, data)
	if err != nil {
		return err
	}
	if prev, csErr := db.GetChecksum(string(origin), path); csErr == nil && prev == rec.Checksum {
		return nil
	}
	scope := router.Classify(rec)

	row := RecordRow{
		Origin:        string(origin),
		Path:          path,
		ID:            rec.ID,
		Title:         rec.Title,
		Priority:      rec.Meta.Priority,
		Scope:         scope.Value,
		ScopeInferred: scope.Inferred,
		UpdateType:    rec.Meta.EffectiveType(),
		Checksum:      rec.Checksum,
		IndexedAt:     time.Now(),
	}
	return db.UpsertRecord(row, rec.Body)
}
