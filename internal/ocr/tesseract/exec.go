// Package tesseract provides OCR providers backed by Tesseract.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/doc-cleanser/internal/ocr"
)

type Config struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default
}

// ExecProvider shells out to the tesseract CLI and parses its TSV output.
type ExecProvider struct {
	cfg    Config
	runner ocr.Runner
	logger *slog.Logger
}

func NewExecProvider(cfg Config, runner ocr.Runner, logger *slog.Logger) *ExecProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if runner == nil {
		runner = ocr.NewExecRunner(logger)
	}
	return &ExecProvider{cfg: cfg, runner: runner, logger: logger}
}

func (p *ExecProvider) Recognize(ctx context.Context, img image.Image, opts ocr.Options) ([]ocr.Token, error) {
	tmpDir, err := os.MkdirTemp("", "dc-ocr-*")
	if err != nil {
		return nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			p.logger.Warn("failed to remove temp dir", "dir", path, "error", err)
		}
	}(tmpDir)

	path := filepath.Join(tmpDir, "region.png")
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("encode region: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	lang := opts.Language
	if lang == "" {
		lang = "eng"
	}
	args := []string{path, "stdout", "-l", lang}
	if p.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(p.cfg.PSM))
	}
	if p.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(p.cfg.OEM))
	}
	if p.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", p.cfg.TessdataDir)
	}
	// TSV output
	args = append(args, "tsv")

	out, errb, err := p.runner.Run(ctx, p.cfg.Tesseract, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract TSV: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return ParseTSV(string(out)), nil
}

// ParseTSV turns tesseract TSV rows into word tokens in reading order.
// Columns: level page block par line word left top width height conf text.
func ParseTSV(tsv string) []ocr.Token {
	lines := strings.Split(tsv, "\n")
	var tokens []ocr.Token
	lineIDs := map[string]int{}
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		} // word rows only
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		key := cols[1] + "/" + cols[2] + "/" + cols[3] + "/" + cols[4]
		id, ok := lineIDs[key]
		if !ok {
			id = len(lineIDs) + 1
			lineIDs[key] = id
		}
		left, _ := strconv.Atoi(cols[6])
		top, _ := strconv.Atoi(cols[7])
		width, _ := strconv.Atoi(cols[8])
		height, _ := strconv.Atoi(cols[9])
		conf := float32(-1)
		if v, err := strconv.ParseFloat(cols[10], 64); err == nil && v >= 0 {
			conf = float32(v / 100.0)
		}
		tokens = append(tokens, ocr.Token{
			Text:       text,
			Confidence: conf,
			Box:        image.Rect(left, top, left+width, top+height),
			Line:       id,
		})
	}
	return tokens
}
