//go:build !gosseract

package tesseract

import (
	"errors"

	"github.com/joseph-ayodele/doc-cleanser/internal/ocr"
)

// NewClientProvider is unavailable without the gosseract build tag.
func NewClientProvider(Config) (ocr.Provider, error) {
	return nil, errors.New("binary built without gosseract; rebuild with -tags gosseract or set OCR_ENGINE=exec")
}
