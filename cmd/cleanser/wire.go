package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/doc-cleanser/internal/async"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/extract"
	"github.com/joseph-ayodele/doc-cleanser/internal/llm"
	"github.com/joseph-ayodele/doc-cleanser/internal/llm/gemini"
	"github.com/joseph-ayodele/doc-cleanser/internal/llm/openai"
	"github.com/joseph-ayodele/doc-cleanser/internal/ocr"
	"github.com/joseph-ayodele/doc-cleanser/internal/ocr/tesseract"
	"github.com/joseph-ayodele/doc-cleanser/internal/pipeline"
	"github.com/joseph-ayodele/doc-cleanser/internal/redact"
	"github.com/joseph-ayodele/doc-cleanser/internal/redact/presidio"
	"github.com/joseph-ayodele/doc-cleanser/internal/repository"
)

// app holds everything a command needs. close releases it in reverse order.
type app struct {
	cfg       *common.Config
	logger    *slog.Logger
	processor *pipeline.Processor
	runner    *async.BatchRunner
	ledger    repository.LedgerRepository
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp loads configuration and wires the pipeline. withLLM=false builds a redaction-only pipeline.
func newApp(ctx context.Context, withLLM bool) (*app, error) {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stderr)
	if err := cfg.Validate(withLLM); err != nil {
		logger.Error("invalid configuration", "error", err)
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	runner := ocr.NewExecRunner(logger)
	provider, err := newOCRProvider(cfg.OCR, runner, logger)
	if err != nil {
		return nil, err
	}
	adapter := ocr.NewAdapter(provider, ocr.Config{
		Language:      cfg.OCR.Lang,
		Timeout:       cfg.OCR.Timeout,
		LowConfidence: cfg.OCR.LowConfidence,
		Preprocess:    true,
	}, logger)
	raster := ocr.NewRasterizer(runner, cfg.OCR.Pdftoppm, cfg.OCR.DPI, logger)
	extractor := extract.NewExtractor(adapter, raster, logger)

	engine := redact.NewEngine(newDetector(cfg.Redaction, logger), redact.Options{
		DetectorTimeout: cfg.Redaction.DetectorTimeout,
		MinConfidence:   cfg.Redaction.MinConfidence,
		LogoThreshold:   cfg.Redaction.LogoThreshold,
	}, logger)

	var insights pipeline.InsightExtractor
	if withLLM {
		p, closeFn, err := newLLMProvider(ctx, cfg.LLM, logger)
		if err != nil {
			return nil, err
		}
		if closeFn != nil {
			a.closers = append(a.closers, closeFn)
		}
		x, err := llm.NewExtractor(p, llm.Options{
			Timeout:           cfg.LLM.Timeout,
			ServiceRetries:    cfg.LLM.ServiceRetries,
			MaxInputTokens:    cfg.LLM.MaxInputTokens,
			ForwardIncomplete: cfg.LLM.ForwardIncomplete,
		}, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		insights = x
	}

	db, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Ledger.DSN,
		MaxConns:        10,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     3 * time.Second,
	}, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	a.ledger = repository.NewLedgerRepository(db, logger)

	a.processor = pipeline.NewProcessor(logger, extractor, engine, insights, a.ledger)
	a.runner = async.NewBatchRunner(a.processor, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithDocumentTimeout(cfg.Pipeline.DocumentTimeout),
		async.WithLedger(a.ledger),
	)
	return a, nil
}

func newOCRProvider(cfg common.OCRConfig, runner ocr.Runner, logger *slog.Logger) (ocr.Provider, error) {
	tc := tesseract.Config{Tesseract: cfg.Tesseract, TessdataDir: cfg.TessdataDir, PSM: 6, OEM: 1}
	switch cfg.Engine {
	case "gosseract":
		return tesseract.NewClientProvider(tc)
	case "exec":
		return tesseract.NewExecProvider(tc, runner, logger), nil
	}
	return nil, fmt.Errorf("unknown OCR engine %q", cfg.Engine)
}

func newDetector(cfg common.RedactionConfig, logger *slog.Logger) redact.Detector {
	members := []redact.Detector{redact.NewPatternDetector()}
	if cfg.EnableNER {
		members = append(members, redact.NewProseDetector())
	}
	if cfg.PresidioURL != "" {
		members = append(members, presidio.New(cfg.PresidioURL, cfg.DetectorTimeout, logger))
	}
	logger.Info("redaction detectors ready", "count", len(members), "ner", cfg.EnableNER, "presidio", cfg.PresidioURL != "")
	return redact.NewMultiDetector(members...)
}

func newLLMProvider(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Provider, func(), error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil, nil
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.GeminiKey,
			Model:       cfg.GeminiModel,
			Temperature: cfg.Temperature,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, func() {
			if err := c.Close(); err != nil {
				logger.Warn("gemini client close failed", "error", err)
			}
		}, nil
	}
	return nil, nil, errors.New("unknown LLM provider " + cfg.Provider)
}
