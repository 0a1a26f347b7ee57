package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// stderrLimit caps captured diagnostics; tesseract can be chatty on noisy scans.
const stderrLimit = 8 << 10

// ExecRunner runs the OCR helper binaries (tesseract, pdftoppm) on the host.
// Stdout carries recognized document text, so it is returned but never logged.
type ExecRunner struct {
	Logger *slog.Logger
}

func NewExecRunner(logger *slog.Logger) ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return ExecRunner{Logger: logger}
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		logger.Error("ocr.exec.not_found", "cmd", name, "error", err)
		return nil, nil, fmt.Errorf("%s not available: %w", name, err)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, args...)
	var out bytes.Buffer
	errb := &capped{max: stderrLimit}
	cmd.Stdout = &out
	cmd.Stderr = errb

	err = cmd.Run()
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			err = fmt.Errorf("%s timed out: %w", name, ctxErr)
		}
		logger.Error("ocr.exec.failed",
			"cmd", name,
			"argc", len(args),
			"elapsed_ms", elapsed,
			"error", err,
			"stderr", errb.String(),
		)
		return out.Bytes(), errb.Bytes(), err
	}
	logger.Debug("ocr.exec.ok", "cmd", name, "elapsed_ms", elapsed, "stdout_bytes", out.Len())
	return out.Bytes(), errb.Bytes(), nil
}

// capped keeps the first max bytes written and silently discards the rest.
type capped struct {
	bytes.Buffer
	max int
}

func (c *capped) Write(p []byte) (int, error) {
	if room := c.max - c.Len(); room > 0 {
		if len(p) > room {
			c.Buffer.Write(p[:room])
		} else {
			c.Buffer.Write(p)
		}
	}
	return len(p), nil
}
