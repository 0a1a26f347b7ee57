package ocr

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
	"github.com/joseph-ayodele/doc-cleanser/internal/metrics"
)

// Options are recognition hints passed through to the provider.
type Options struct {
	Language    string // tesseract language code, e.g. "eng"
	Orientation int    // degrees, 0 = upright; providers may ignore
}

// Token is one recognized word. Confidence is in 0..1, negative when the provider has none.
type Token struct {
	Text       string
	Confidence float32
	Box        image.Rectangle
	Line       int // reading-order line ordinal
}

// Provider is the OCR capability: recognize(image) -> tokens.
type Provider interface {
	Recognize(ctx context.Context, img image.Image, opts Options) ([]Token, error)
}

type Config struct {
	Language      string        // default "eng"
	Timeout       time.Duration // per call, default 60s
	LowConfidence float32       // tokens below are flagged, default 0.6
	Preprocess    bool          // grayscale + Otsu + upscale small images
}

// Recognition is the adapter output for one image region.
type Recognition struct {
	Text          string
	Tokens        []entity.TokenRef
	Confidence    float32
	LowConfidence bool
	Duration      time.Duration
}

// Adapter wraps a Provider with preprocessing, a timeout and confidence flagging.
type Adapter struct {
	cfg      Config
	provider Provider
	logger   *slog.Logger
}

func NewAdapter(provider Provider, cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.LowConfidence <= 0 {
		cfg.LowConfidence = 0.6
	}
	return &Adapter{cfg: cfg, provider: provider, logger: logger}
}

// Recognize converts img into text. Empty text is a valid result; unreadable input is RecognitionFailure.
func (a *Adapter) Recognize(ctx context.Context, img image.Image) (Recognition, error) {
	start := time.Now()
	if img == nil || img.Bounds().Empty() {
		return Recognition{}, common.RecognitionFailure("empty image region", nil)
	}

	input, scale := img, 1.0
	if a.cfg.Preprocess {
		input, scale = Preprocess(img)
	}

	ctx, cancel := common.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	tokens, err := a.provider.Recognize(ctx, input, Options{Language: a.cfg.Language})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			a.logger.Error("ocr.recognize.timeout", "timeout", a.cfg.Timeout, "elapsed_ms", time.Since(start).Milliseconds())
			return Recognition{}, common.RecognitionFailure("ocr timed out", ctx.Err())
		}
		a.logger.Error("ocr.recognize.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Recognition{}, common.RecognitionFailure("ocr provider failed", err)
	}

	rec := a.assemble(tokens, scale)
	rec.Duration = time.Since(start)
	a.logger.Debug("ocr.recognize.ok",
		"tokens", len(rec.Tokens),
		"text_len", len(rec.Text),
		"confidence", rec.Confidence,
		"low_confidence", rec.LowConfidence,
		"elapsed_ms", rec.Duration.Milliseconds(),
	)
	return rec, nil
}

// assemble joins tokens into lines and maps boxes back to the caller's coordinates.
func (a *Adapter) assemble(tokens []Token, scale float64) Recognition {
	var b strings.Builder
	refs := make([]entity.TokenRef, 0, len(tokens))
	var sum float64
	var n, low int
	prevLine := 0
	for _, t := range tokens {
		text := Normalize(t.Text)
		if text == "" {
			continue
		}
		if len(refs) > 0 {
			if t.Line != prevLine {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		prevLine = t.Line

		ref := entity.TokenRef{
			Start:      b.Len(),
			Box:        unscale(t.Box, scale),
			Confidence: t.Confidence,
		}
		b.WriteString(text)
		ref.End = b.Len()
		if t.Confidence >= 0 {
			sum += float64(t.Confidence)
			n++
			if t.Confidence < a.cfg.LowConfidence {
				ref.Low = true
				low++
			}
		}
		refs = append(refs, ref)
	}

	text := b.String()
	var conf float32
	if n > 0 {
		conf = float32(sum / float64(n))
	} else {
		conf = heuristicConfidence(text)
	}
	if low > 0 {
		metrics.OCRLowConfidenceTokens.Add(float64(low))
	}
	return Recognition{
		Text:          text,
		Tokens:        refs,
		Confidence:    conf,
		LowConfidence: text != "" && conf < a.cfg.LowConfidence,
	}
}

func unscale(r image.Rectangle, scale float64) image.Rectangle {
	if scale == 1 {
		return r
	}
	return image.Rect(
		int(float64(r.Min.X)/scale), int(float64(r.Min.Y)/scale),
		int(float64(r.Max.X)/scale+0.5), int(float64(r.Max.Y)/scale+0.5),
	)
}
