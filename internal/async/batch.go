package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
	"github.com/joseph-ayodele/doc-cleanser/internal/metrics"
	"github.com/joseph-ayodele/doc-cleanser/internal/redact"
	"github.com/joseph-ayodele/doc-cleanser/internal/report"
)

// CancelledWarning marks documents that were never handed to a worker.
const CancelledWarning = "batch cancelled before dispatch"

// BatchRunner fans a batch of documents out over a fixed worker pool.
type BatchRunner struct {
	proc    DocumentProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	ledger  RunLedger
}

type Option func(*BatchRunner)

func WithWorkers(n int) Option {
	return func(r *BatchRunner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithDocumentTimeout bounds each document's pipeline.
func WithDocumentTimeout(d time.Duration) Option {
	return func(r *BatchRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLedger(l RunLedger) Option {
	return func(r *BatchRunner) { r.ledger = l }
}

func NewBatchRunner(proc DocumentProcessor, logger *slog.Logger, opts ...Option) *BatchRunner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &BatchRunner{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run processes docs and returns one entry per input, in input order.
//
// Cancelling ctx stops dispatch. Documents already inside a worker keep running on a
// context detached from ctx and bounded only by their own timeout. Every document that
// was not dispatched still gets an entry carrying CancelledWarning.
func (r *BatchRunner) Run(ctx context.Context, docs []entity.Document) entity.Report {
	runID := uuid.New().String()
	start := time.Now()
	agg := report.NewAggregator()

	if r.ledger != nil {
		run := entity.CleanseRun{ID: runID, Documents: len(docs), StartedAt: start}
		if len(docs) > 0 {
			run.ClientName = docs[0].ClientName
		}
		if err := r.ledger.StartRun(context.WithoutCancel(ctx), run); err != nil {
			r.logger.Warn("batch.ledger.start_failed", "run_id", runID, "error", err)
		}
	}

	detached := common.WithRunID(context.WithoutCancel(ctx), runID)
	ch := make(chan Job)
	var wg sync.WaitGroup
	workers := min(r.workers, max(len(docs), 1))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range ch {
				metrics.BatchInFlight.Inc()
				docCtx, cancel := common.WithTimeout(detached, r.timeout)
				entry := r.process(docCtx, job)
				cancel()
				metrics.BatchInFlight.Dec()
				agg.Add(entry)
				r.logger.Debug("batch.document.done", "worker_id", workerID, "seq", job.Seq, "document_id", job.Doc.ID)
			}
		}(i + 1)
	}

	dispatched := 0
dispatch:
	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case ch <- Job{Seq: i, Doc: doc}:
			dispatched++
		}
	}
	close(ch)

	for i := dispatched; i < len(docs); i++ {
		agg.Add(entity.ReportEntry{
			Seq:          i,
			DocumentID:   docs[i].ID,
			DocumentName: redact.MaskName(docs[i].Name, docs[i].ClientName),
			Format:       docs[i].Format,
			Findings:     []entity.StructuredFinding{},
			Warnings:     []string{CancelledWarning},
		})
	}
	if dispatched < len(docs) {
		r.logger.Warn("batch.cancelled", "run_id", runID, "dispatched", dispatched, "skipped", len(docs)-dispatched)
	}

	wg.Wait()

	if r.ledger != nil {
		if err := r.ledger.FinishRun(context.WithoutCancel(ctx), runID); err != nil {
			r.logger.Warn("batch.ledger.finish_failed", "run_id", runID, "error", err)
		}
	}

	rep := agg.Report()
	rep.RunID = runID
	r.logger.Info("batch.done",
		"run_id", runID,
		"documents", len(docs),
		"dispatched", dispatched,
		"workers", workers,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rep
}

// process shields the pool from a processor that panics; the document still gets its entry.
func (r *BatchRunner) process(ctx context.Context, job Job) (entry entity.ReportEntry) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("batch.document.panic", "seq", job.Seq, "document_id", job.Doc.ID, "panic", v)
			entry = entity.ReportEntry{
				Seq:          job.Seq,
				DocumentID:   job.Doc.ID,
				DocumentName: redact.MaskName(job.Doc.Name, job.Doc.ClientName),
				Format:       job.Doc.Format,
				Findings:     []entity.StructuredFinding{},
				Warnings:     []string{common.Warning(common.StageCrashed(v))},
			}
		}
	}()
	return r.proc.Process(ctx, job.Seq, job.Doc)
}
