package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
	"github.com/joseph-ayodele/doc-cleanser/internal/metrics"
	"github.com/joseph-ayodele/doc-cleanser/internal/redact"
)

// Options tune the extractor. Zero values fall back to the defaults below.
type Options struct {
	Timeout           time.Duration // per provider call
	ServiceRetries    int           // extra attempts after a transport failure
	Backoff           time.Duration // linear: attempt n waits n*Backoff
	MaxInputTokens    int
	ForwardIncomplete bool
}

// Extractor turns an anonymized document into structured findings.
type Extractor struct {
	provider Provider
	opts     Options
	schema   map[string]any
	compiled *jsonschema.Schema
	logger   *slog.Logger
}

// NewExtractor compiles the findings schema once.
func NewExtractor(provider Provider, opts Options, logger *slog.Logger) (*Extractor, error) {
	if provider == nil {
		return nil, errors.New("llm: provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.ServiceRetries < 0 {
		opts.ServiceRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	schema := BuildFindingsJSONSchema()
	compiled, err := CompileSchema(schema)
	if err != nil {
		return nil, err
	}
	return &Extractor{provider: provider, opts: opts, schema: schema, compiled: compiled, logger: logger}, nil
}

// Extract asks the provider for findings over the cleansed text of doc.
//
// The document must be reconciled and free of residual client-name matches in the text that
// would be sent; otherwise ErrUnreconciledSpans is returned and the provider is never called.
// Malformed output is retried once with a stricter instruction; on a second failure the result
// is empty and the error wraps ErrMalformedModelOutput.
func (e *Extractor) Extract(ctx context.Context, doc entity.AnonymizedDocument, clientName string) (entity.FindingsResult, error) {
	rid := uuid.New().String()
	start := time.Now()
	matcher := redact.NewClientMatcher(clientName)
	out := entity.FindingsResult{Findings: []entity.StructuredFinding{}}

	if err := e.checkPrecondition(doc, matcher); err != nil {
		e.logger.Error("llm.extract.precondition_failed", "req_id", rid, "document_id", doc.DocumentID, "error", err)
		return out, err
	}

	if n := doc.IncompleteBlocks(); n > 0 && !e.opts.ForwardIncomplete {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %d block(s) withheld from extraction", common.CodeRedactionIncomplete, n))
	}
	text := doc.Text(e.opts.ForwardIncomplete)
	if text == "" {
		e.logger.Info("llm.extract.empty", "req_id", rid, "document_id", doc.DocumentID)
		return out, nil
	}
	text, cut := Truncate(text, e.opts.MaxInputTokens)
	if cut {
		out.Warnings = append(out.Warnings, fmt.Sprintf("input truncated to %d tokens", e.opts.MaxInputTokens))
	}

	e.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", e.provider.Name(),
		"document_id", doc.DocumentID,
		"text_len", len(text),
		"truncated", cut,
	)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx := ctx
		if attempt > 0 {
			callCtx = WithStrictMode(ctx)
			metrics.LLMRetries.WithLabelValues("malformed").Inc()
			e.logger.Warn("llm.extract.retry", "req_id", rid, "reason", "malformed", "error", lastErr)
		}
		raw, err := e.call(callCtx, rid, text)
		if err != nil {
			return out, err
		}
		res, err := e.parse(raw)
		if err != nil {
			metrics.LLMCalls.WithLabelValues(e.provider.Name(), "malformed").Inc()
			lastErr = err
			continue
		}
		metrics.LLMCalls.WithLabelValues(e.provider.Name(), "ok").Inc()
		res.Warnings = append(out.Warnings, res.Warnings...)
		if n := scrub(&res, matcher); n > 0 {
			e.logger.Warn("llm.extract.scrubbed", "req_id", rid, "values", n)
		}
		e.logger.Info("llm.extract.ok",
			"req_id", rid,
			"findings", len(res.Findings),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return res, nil
	}

	e.logger.Error("llm.extract.malformed", "req_id", rid, "error", lastErr, "elapsed_ms", time.Since(start).Milliseconds())
	return out, common.MalformedModelOutput("model output failed validation after strict retry", lastErr)
}

func (e *Extractor) checkPrecondition(doc entity.AnonymizedDocument, matcher *redact.ClientMatcher) error {
	unreconciled := func(msg string) error {
		return common.NewAppError(common.CodeUnreconciledSpans, msg, common.ErrUnreconciledSpans)
	}
	if !doc.Reconciled || !redact.Reconciled(doc.Spans) {
		return unreconciled("redaction spans are not reconciled")
	}
	for _, b := range doc.Blocks {
		if b.RedactionIncomplete && !e.opts.ForwardIncomplete {
			continue
		}
		if len(matcher.Residual(b.Text)) > 0 {
			return unreconciled(fmt.Sprintf("client name still present in block %d", b.Index))
		}
	}
	return nil
}

// call invokes the provider with linear backoff on service failures.
func (e *Extractor) call(ctx context.Context, rid, text string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= e.opts.ServiceRetries; attempt++ {
		if attempt > 0 {
			metrics.LLMRetries.WithLabelValues("service").Inc()
			e.logger.Warn("llm.extract.retry", "req_id", rid, "reason", "service", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, common.ExtractionServiceError("cancelled while waiting to retry", ctx.Err())
			case <-time.After(time.Duration(attempt) * e.opts.Backoff):
			}
		}
		callCtx, cancel := common.WithTimeout(ctx, e.opts.Timeout)
		raw, err := e.provider.Extract(callCtx, text, e.schema)
		cancel()
		if err == nil {
			return raw, nil
		}
		lastErr = err
		metrics.LLMCalls.WithLabelValues(e.provider.Name(), "error").Inc()
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	e.logger.Error("llm.extract.service_error", "req_id", rid, "error", lastErr)
	return nil, common.ExtractionServiceError(e.provider.Name()+" call failed", lastErr)
}

func (e *Extractor) parse(raw []byte) (entity.FindingsResult, error) {
	normalized, _, err := NormalizeFindingsJSON(raw, e.logger)
	if err != nil {
		return entity.FindingsResult{}, err
	}
	if err := ValidateJSONAgainstSchema(e.compiled, normalized); err != nil {
		return entity.FindingsResult{}, err
	}
	return DecodeFindings(normalized)
}

// scrub nulls any finding value that still names the client. It returns the number of values cleared.
func scrub(res *entity.FindingsResult, matcher *redact.ClientMatcher) int {
	if matcher == nil {
		return 0
	}
	n := 0
	for i := range res.Findings {
		for field, v := range res.Findings[i].Map() {
			if len(matcher.Residual(v)) > 0 {
				res.Findings[i].Set(field, nil)
				n++
			}
		}
	}
	if len(matcher.Residual(res.Description)) > 0 {
		res.Description = ""
		n++
	}
	return n
}
