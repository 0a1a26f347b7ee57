package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/doc-cleanser/constants"
)

// LoadDirectory walks root, filters by extension, skips hidden entries if requested and loads
// each match. Files whose content hash was already seen in this walk are reported as
// deduplicated and not returned again. Documents come back in walk (lexical) order.
func (l *Loader) LoadDirectory(ctx context.Context, root string) ([]Loaded, []FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}

	var (
		docs    []Loaded
		results []FileResult
		stats   DirStats
	)
	seen := map[string]string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if l.opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := l.exts[constants.NormalizeExt(filepath.Ext(path))]; !ok {
			return nil
		}
		stats.Matched++

		loaded, err := l.LoadFile(ctx, path)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if first, dup := seen[loaded.HashHex]; dup {
			l.logger.Info("ingest.file.duplicate", "path", loaded.Path, "first", first)
			results = append(results, FileResult{Path: loaded.Path, DocumentID: loaded.Document.ID, Deduplicated: true})
			stats.Succeeded++
			stats.Deduplicated++
			return nil
		}
		seen[loaded.HashHex] = loaded.Path

		docs = append(docs, loaded)
		results = append(results, FileResult{Path: loaded.Path, DocumentID: loaded.Document.ID})
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return docs, results, stats, fmt.Errorf("walk: %w", err)
	}
	l.logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return docs, results, stats, nil
}
