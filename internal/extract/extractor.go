package extract

import (
	"context"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

// Extractor dispatches on document format. OCR and rasterization are optional collaborators.
type Extractor struct {
	ocr    Recognizer
	raster PageRasterizer
	logger *slog.Logger
}

func NewExtractor(ocr Recognizer, raster PageRasterizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{ocr: ocr, raster: raster, logger: logger}
}

type formatFunc func(ctx context.Context, b *builder, data []byte) error

func (e *Extractor) handlers() map[constants.Format]formatFunc {
	return map[constants.Format]formatFunc{
		constants.TXT:  extractTXT,
		constants.CSV:  extractCSV,
		constants.MD:   extractMarkdown,
		constants.HTML: extractHTML,
		constants.PDF:  e.extractPDF,
		constants.PPTX: extractPPTX,
		constants.DOCX: extractDOCX,
		constants.XLSX: extractXLSX,
		constants.PNG:  extractImage,
		constants.JPEG: extractImage,
		constants.GIF:  extractImage,
		constants.BMP:  extractImage,
		constants.TIFF: extractImage,
		constants.WEBP: extractImage,
	}
}

// ResolveFormat returns the declared format, sniffing the bytes only when none was declared.
func ResolveFormat(declared constants.Format, data []byte) (constants.Format, error) {
	if strings.TrimSpace(string(declared)) != "" {
		f := constants.MapExtToFormat(string(declared))
		if f == "" {
			return "", common.UnsupportedFormat(string(declared))
		}
		return f, nil
	}
	mt := mimetype.Detect(data)
	f := constants.MapExtToFormat(mt.Extension())
	if f == "" {
		return "", common.UnsupportedFormat(mt.String())
	}
	return f, nil
}

// Extract produces the ordered block sequence for doc. The document is not modified.
func (e *Extractor) Extract(ctx context.Context, doc entity.Document) (entity.ExtractedContent, error) {
	start := time.Now()
	format, err := ResolveFormat(doc.Format, doc.Content)
	if err != nil {
		e.logger.Warn("extract.unsupported_format", "document_id", doc.ID, "format", doc.Format)
		return entity.ExtractedContent{}, err
	}
	handler, ok := e.handlers()[format]
	if !ok {
		return entity.ExtractedContent{}, common.UnsupportedFormat(string(format))
	}

	e.logger.Debug("extract.start", "document_id", doc.ID, "format", format, "bytes", len(doc.Content))
	b := &builder{ocr: e.ocr, logger: e.logger, format: format}
	if err := handler(ctx, b, doc.Content); err != nil {
		e.logger.Error("extract.failed", "document_id", doc.ID, "format", format, "error", err)
		return entity.ExtractedContent{}, err
	}

	out := entity.ExtractedContent{
		DocumentID: doc.ID,
		Format:     format,
		Blocks:     b.blocks,
		Images:     b.images,
		Warnings:   b.warnings,
	}
	e.logger.Info("extract.ok",
		"document_id", doc.ID,
		"format", format,
		"blocks", len(out.Blocks),
		"images", len(out.Images),
		"warnings", len(out.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// builder accumulates blocks in document order and runs OCR on image regions as they arrive.
type builder struct {
	ocr      Recognizer
	logger   *slog.Logger
	format   constants.Format
	blocks   []entity.TextBlock
	images   []entity.ImageRegion
	warnings []string
}

func (b *builder) addText(text string, loc entity.Location) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.blocks = append(b.blocks, entity.TextBlock{
		Index:      len(b.blocks),
		Text:       text,
		Provenance: constants.ProvenanceNative,
		Location:   loc,
		ImageIndex: -1,
		Confidence: 1,
	})
}

func (b *builder) warn(msg string) {
	b.warnings = append(b.warnings, msg)
}

// addImage registers an image region and merges its OCR text at the current position.
func (b *builder) addImage(ctx context.Context, img image.Image, loc entity.Location) {
	loc.Box = img.Bounds()
	region := entity.ImageRegion{Index: len(b.images), Location: loc, Image: img}
	b.images = append(b.images, region)

	if b.ocr == nil {
		b.warn("OCR unavailable: image region skipped for text recognition")
		return
	}
	rec, err := b.ocr.Recognize(ctx, img)
	if err != nil {
		b.logger.Warn("extract.ocr.region_failed", "image_index", region.Index, "page", loc.Page, "error", err)
		b.warn(common.Warning(err))
		return
	}
	if strings.TrimSpace(rec.Text) == "" {
		return
	}
	b.blocks = append(b.blocks, entity.TextBlock{
		Index:         len(b.blocks),
		Text:          rec.Text,
		Provenance:    constants.ProvenanceOCR,
		Location:      loc,
		ImageIndex:    region.Index,
		Confidence:    rec.Confidence,
		LowConfidence: rec.LowConfidence,
		Tokens:        rec.Tokens,
	})
}
