//go:build gosseract

package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strconv"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/doc-cleanser/internal/ocr"
)

// ClientProvider uses libtesseract through gosseract. Requires cgo and the gosseract build tag.
type ClientProvider struct {
	cfg           Config
	clientFactory func() *gosseract.Client
}

func NewClientProvider(cfg Config) (ocr.Provider, error) {
	return &ClientProvider{cfg: cfg, clientFactory: gosseract.NewClient}, nil
}

func (p *ClientProvider) Recognize(ctx context.Context, img image.Image, opts ocr.Options) ([]ocr.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := p.clientFactory()
	defer c.Close()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if opts.Language != "" {
		if err := c.SetLanguage(opts.Language); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if p.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(p.cfg.TessdataDir); err != nil {
			return nil, fmt.Errorf("set tessdata: %w", err)
		}
	}
	if p.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(p.cfg.PSM)); err != nil {
			return nil, fmt.Errorf("set psm: %w", err)
		}
	}

	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}
	tokens := make([]ocr.Token, 0, len(boxes))
	lineIDs := map[string]int{}
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		key := strconv.Itoa(b.BlockNum) + "/" + strconv.Itoa(b.ParNum) + "/" + strconv.Itoa(b.LineNum)
		id, ok := lineIDs[key]
		if !ok {
			id = len(lineIDs) + 1
			lineIDs[key] = id
		}
		tokens = append(tokens, ocr.Token{
			Text:       b.Word,
			Confidence: float32(b.Confidence / 100.0),
			Box:        b.Box,
			Line:       id,
		})
	}
	return tokens, ctx.Err()
}
