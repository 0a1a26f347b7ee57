package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

// Loaded is a document read from disk plus where it came from.
type Loaded struct {
	Path     string
	HashHex  string
	Document entity.Document
}

// LoadFile reads one file. The extension decides the declared format; an unknown extension is
// kept verbatim so the pipeline reports it as unsupported instead of guessing.
func (l *Loader) LoadFile(ctx context.Context, path string) (Loaded, error) {
	var out Loaded
	if err := ctx.Err(); err != nil {
		return out, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		l.logger.Error("ingest.file.abs_failed", "path", path, "error", err)
		return out, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return out, err
	}
	if info.IsDir() {
		return out, fmt.Errorf("%s is a directory", abs)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		l.logger.Error("ingest.file.read_failed", "path", abs, "error", err)
		return out, err
	}
	if len(content) == 0 {
		return out, errors.New("file is empty")
	}
	doc, hashHex := NewDocument(filepath.Base(abs), "", content, l.opts.ClientName, l.opts.ClientLogo)
	out = Loaded{Path: abs, HashHex: hashHex, Document: doc}
	l.logger.Debug("ingest.file.loaded", "path", abs, "format", doc.Format, "bytes", len(content))
	return out, nil
}

// NewDocument builds a document whose ID is derived from its content hash. An empty format is
// taken from the name's extension; an unknown extension is kept verbatim.
func NewDocument(name string, format constants.Format, content []byte, clientName string, logo []byte) (entity.Document, string) {
	sum := sha256.Sum256(content)
	hashHex := hex.EncodeToString(sum[:])
	if format == "" {
		ext := constants.NormalizeExt(filepath.Ext(name))
		if format = constants.MapExtToFormat(ext); format == "" {
			format = constants.Format(ext)
		}
	}
	return entity.Document{
		ID:         hashHex[:16],
		Name:       name,
		Format:     format,
		Content:    content,
		ClientName: clientName,
		ClientLogo: logo,
	}, hashHex
}
