package extract

import (
	"context"
	"image"

	"github.com/joseph-ayodele/doc-cleanser/internal/ocr"
)

// Recognizer turns an image region into text. *ocr.Adapter implements it.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (ocr.Recognition, error)
}

// PageRasterizer renders a single PDF page. *ocr.Rasterizer implements it.
type PageRasterizer interface {
	RasterizePage(ctx context.Context, data []byte, page int) (image.Image, error)
}
