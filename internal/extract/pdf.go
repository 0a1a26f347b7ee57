package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
	"github.com/joseph-ayodele/doc-cleanser/internal/ocr"
)

// extractPDF reads the text layer page by page. Pages without text are rasterized and OCR'd in place.
func (e *Extractor) extractPDF(ctx context.Context, b *builder, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = common.CorruptInput(string(constants.PDF), fmt.Errorf("pdf reader panic: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return common.CorruptInput(string(constants.PDF), err)
	}

	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, perr := p.GetPlainText(nil)
		if perr != nil {
			b.logger.Warn("extract.pdf.page_text_failed", "page", i, "error", perr)
		}
		txt = ocr.Normalize(txt)
		if strings.TrimSpace(txt) != "" {
			b.addText(txt, entity.Location{Page: i})
			continue
		}
		e.scannedPage(ctx, b, data, i)
	}
	return nil
}

func (e *Extractor) scannedPage(ctx context.Context, b *builder, data []byte, page int) {
	if e.raster == nil {
		b.warn(fmt.Sprintf("page %d has no text layer and no rasterizer is configured", page))
		return
	}
	img, err := e.raster.RasterizePage(ctx, data, page)
	if err != nil {
		b.logger.Warn("extract.pdf.rasterize_failed", "page", page, "error", err)
		b.warn(common.Warning(common.RecognitionFailure(fmt.Sprintf("rasterize page %d", page), err)))
		return
	}
	b.addImage(ctx, img, entity.Location{Page: page})
}
