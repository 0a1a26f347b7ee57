package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
	"github.com/joseph-ayodele/doc-cleanser/internal/extract"
	"github.com/joseph-ayodele/doc-cleanser/internal/metrics"
	"github.com/joseph-ayodele/doc-cleanser/internal/redact"
	"github.com/joseph-ayodele/doc-cleanser/internal/report"
)

// ContentExtractor is stage 1.
type ContentExtractor interface {
	Extract(ctx context.Context, doc entity.Document) (entity.ExtractedContent, error)
}

// Redactor is stage 2.
type Redactor interface {
	Redact(ctx context.Context, content entity.ExtractedContent, clientName string, logo image.Image) entity.AnonymizedDocument
}

// InsightExtractor is stage 3.
type InsightExtractor interface {
	Extract(ctx context.Context, doc entity.AnonymizedDocument, clientName string) (entity.FindingsResult, error)
}

var (
	_ ContentExtractor = (*extract.Extractor)(nil)
	_ Redactor         = (*redact.Engine)(nil)
)

// Ledger records per-document status transitions. Optional.
type Ledger interface {
	StartJob(ctx context.Context, job entity.CleanseJob) error
	SetStatus(ctx context.Context, jobID string, status constants.JobStatus) error
	FinishJob(ctx context.Context, jobID string, entry entity.ReportEntry, failure error) error
}

// Processor runs one document through extract, redact and insight extraction, in that order.
// It holds no per-document state and is safe for concurrent use.
type Processor struct {
	logger   *slog.Logger
	extract  ContentExtractor
	redact   Redactor
	insights InsightExtractor
	ledger   Ledger
}

// NewProcessor wires the stages. insights may be nil for redaction-only runs; ledger may be nil.
func NewProcessor(logger *slog.Logger, extract ContentExtractor, redactor Redactor, insights InsightExtractor, ledger Ledger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, extract: extract, redact: redactor, insights: insights, ledger: ledger}
}

// Redact runs the first two stages only.
func (p *Processor) Redact(ctx context.Context, doc entity.Document) (entity.AnonymizedDocument, error) {
	return p.redactDoc(ctx, doc, "")
}

func (p *Processor) redactDoc(ctx context.Context, doc entity.Document, jobID string) (entity.AnonymizedDocument, error) {
	if err := common.ValidateStruct(doc); err != nil {
		return entity.AnonymizedDocument{}, err
	}
	content, err := timed("extract", func() (entity.ExtractedContent, error) {
		return p.extract.Extract(ctx, doc)
	})
	if err != nil {
		return entity.AnonymizedDocument{}, err
	}
	p.setStatus(ctx, jobID, constants.JobStatusExtracted)

	var logoWarning string
	logo, err := redact.DecodeLogo(doc.ClientLogo)
	if err != nil {
		logoWarning = "client logo unreadable: logo matching skipped"
		p.logger.Warn("processor.logo.decode_failed", "document_id", doc.ID, "error", err)
	}

	start := time.Now()
	anon := p.redact.Redact(ctx, content, doc.ClientName, logo)
	metrics.StageDuration.WithLabelValues("redact").Observe(time.Since(start).Seconds())
	if logoWarning != "" {
		anon.Warnings = append(anon.Warnings, logoWarning)
	}
	return anon, nil
}

// Process produces the document's report entry. Failures never escape: they become warnings,
// and so does a panic in any stage.
func (p *Processor) Process(ctx context.Context, seq int, doc entity.Document) (entry entity.ReportEntry) {
	start := time.Now()
	ctx = common.WithDocumentID(ctx, doc.ID)
	entry = entity.ReportEntry{
		Seq:          seq,
		DocumentID:   doc.ID,
		DocumentName: redact.MaskName(doc.Name, doc.ClientName),
		Format:       doc.Format,
		Findings:     []entity.StructuredFinding{},
		Warnings:     []string{},
	}

	var jobID string
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := common.StageCrashed(r)
		p.logger.Error("processor.panic", "document_id", doc.ID, "panic", r, "stack", string(debug.Stack()))
		entry.Warnings = append(entry.Warnings, common.Warning(err))
		p.finish(ctx, jobID, entry, err, start)
	}()

	jobID = p.startJob(ctx, seq, doc)

	anon, err := p.redactDoc(ctx, doc, jobID)
	if err != nil {
		entry.Warnings = append(entry.Warnings, common.Warning(err))
		p.finish(ctx, jobID, entry, err, start)
		return entry
	}
	if anon.Format != "" {
		entry.Format = anon.Format
	}
	p.setStatus(ctx, jobID, constants.JobStatusRedacted)

	counts := anon.CountByCategory()
	for _, n := range counts {
		entry.RedactionCount += n
	}
	entry.Sensitivity = report.Sensitivity(counts)
	entry.Warnings = append(entry.Warnings, anon.Warnings...)

	if p.insights != nil {
		res, err := timed("insight", func() (entity.FindingsResult, error) {
			return p.insights.Extract(ctx, anon, doc.ClientName)
		})
		entry.Description = res.Description
		if res.Findings != nil {
			entry.Findings = res.Findings
		}
		entry.Warnings = append(entry.Warnings, res.Warnings...)
		if err != nil {
			entry.Warnings = append(entry.Warnings, common.Warning(err))
			p.logger.Warn("processor.insight.failed", "document_id", doc.ID, "kind", common.ErrorKind(err))
		}
	}

	p.finish(ctx, jobID, entry, nil, start)
	return entry
}

// timed runs fn and records its latency under stage.
func timed[T any](stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds()) }()
	return fn()
}

func (p *Processor) startJob(ctx context.Context, seq int, doc entity.Document) string {
	runID := common.RunIDFromContext(ctx)
	if p.ledger == nil || runID == "" {
		return ""
	}
	jobID := uuid.New().String()
	err := p.ledger.StartJob(context.WithoutCancel(ctx), entity.CleanseJob{
		ID:           jobID,
		RunID:        runID,
		Seq:          seq,
		DocumentID:   doc.ID,
		DocumentName: redact.MaskName(doc.Name, doc.ClientName),
		Format:       string(doc.Format),
		Status:       string(constants.JobStatusRunning),
		StartedAt:    time.Now(),
	})
	if err != nil {
		p.logger.Warn("processor.ledger.start_failed", "document_id", doc.ID, "error", err)
		return ""
	}
	return jobID
}

func (p *Processor) setStatus(ctx context.Context, jobID string, status constants.JobStatus) {
	if jobID == "" {
		return
	}
	if err := p.ledger.SetStatus(context.WithoutCancel(ctx), jobID, status); err != nil {
		p.logger.Warn("processor.ledger.status_failed", "job_id", jobID, "status", status, "error", err)
	}
}

func (p *Processor) finish(ctx context.Context, jobID string, entry entity.ReportEntry, failure error, start time.Time) {
	outcome := "ok"
	switch {
	case failure != nil:
		outcome = "failed"
	case len(entry.Warnings) > 0:
		outcome = "warning"
	}
	format := string(entry.Format)
	if errors.Is(failure, common.ErrUnsupportedFormat) || format == "" {
		format = "unknown"
	}
	metrics.DocumentsProcessed.WithLabelValues(format, outcome).Inc()

	if jobID != "" {
		if err := p.ledger.FinishJob(context.WithoutCancel(ctx), jobID, entry, failure); err != nil {
			p.logger.Warn("processor.ledger.finish_failed", "job_id", jobID, "error", err)
		}
	}
	p.logger.Info("processor.document.done",
		"document_id", entry.DocumentID,
		"seq", entry.Seq,
		"outcome", outcome,
		"findings", len(entry.Findings),
		"warnings", len(entry.Warnings),
		"redactions", entry.RedactionCount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
