package ingest

import (
	"context"
	"log/slog"
)

// FileResult is the per-file ingest outcome.
type FileResult struct {
	Path         string
	DocumentID   string
	Deduplicated bool
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Options controls how files become documents.
type Options struct {
	// IncludeExts narrows the accepted extensions; empty means every supported format.
	IncludeExts []string
	SkipHidden  bool
	ClientName  string
	ClientLogo  []byte
}

// Loader turns files on disk into pipeline documents.
type Loader struct {
	logger *slog.Logger
	opts   Options
	exts   map[string]struct{}
}

func NewLoader(opts Options, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, opts: opts, exts: extSet(opts.IncludeExts)}
}

// Ingestor is the behavior the CLI depends on.
type Ingestor interface {
	LoadFile(ctx context.Context, path string) (Loaded, error)
	LoadDirectory(ctx context.Context, root string) ([]Loaded, []FileResult, DirStats, error)
}

var _ Ingestor = (*Loader)(nil)
