package entity

import (
	"image"

	"github.com/joseph-ayodele/doc-cleanser/constants"
)

// Document is an ingested input. Immutable once created.
type Document struct {
	ID         string           `json:"id" validate:"required"`
	Name       string           `json:"name"`
	Format     constants.Format `json:"format"`
	Content    []byte           `json:"-"`
	ClientName string           `json:"client_name,omitempty"`
	ClientLogo []byte           `json:"-"` // encoded image, optional
}

// Location points back into the source document.
type Location struct {
	Page      int             `json:"page,omitempty"`      // 1-based PDF page or slide
	Paragraph int             `json:"paragraph,omitempty"` // 1-based paragraph in txt, md, html and docx
	Row       int             `json:"row,omitempty"`       // 1-based row in csv and xlsx
	Sheet     string          `json:"sheet,omitempty"`
	Part      string          `json:"part,omitempty"` // docx header or footer part, e.g. "header1"
	Box       image.Rectangle `json:"box,omitempty"`
}

// TokenRef locates one OCR token inside its block text.
type TokenRef struct {
	Start      int             `json:"start"`
	End        int             `json:"end"`
	Box        image.Rectangle `json:"box"`
	Confidence float32         `json:"confidence"`
	Low        bool            `json:"low,omitempty"`
}

// TextBlock is one unit of extracted text. Blocks are the unit of redaction context.
type TextBlock struct {
	Index         int                  `json:"index"`
	Text          string               `json:"text"`
	Provenance    constants.Provenance `json:"provenance"`
	Location      Location             `json:"location"`
	ImageIndex    int                  `json:"image_index"` // -1 for native text
	Confidence    float32              `json:"confidence,omitempty"`
	LowConfidence bool                 `json:"low_confidence,omitempty"`
	Tokens        []TokenRef           `json:"tokens,omitempty"`
}

// ImageRegion is a raster region enumerated from the document.
type ImageRegion struct {
	Index    int         `json:"index"`
	Location Location    `json:"location"`
	Image    image.Image `json:"-"`
}

// ExtractedContent is the ordered output of the format extractor.
type ExtractedContent struct {
	DocumentID string           `json:"document_id"`
	Format     constants.Format `json:"format"`
	Blocks     []TextBlock      `json:"blocks"`
	Images     []ImageRegion    `json:"-"`
	Warnings   []string         `json:"warnings,omitempty"`
}

// Text joins all block texts with blank lines.
func (c ExtractedContent) Text() string {
	n := 0
	for _, b := range c.Blocks {
		n += len(b.Text) + 2
	}
	out := make([]byte, 0, n)
	for i, b := range c.Blocks {
		if i > 0 {
			out = append(out, '\n', '\n')
		}
		out = append(out, b.Text...)
	}
	return string(out)
}
