package async

import (
	"context"

	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

// Job is one document of a batch, tagged with its input position.
type Job struct {
	Seq int
	Doc entity.Document
}

// DocumentProcessor turns a document into its report entry. Implementations must not fail the batch.
type DocumentProcessor interface {
	Process(ctx context.Context, seq int, doc entity.Document) entity.ReportEntry
}

// RunLedger records batch runs. Optional.
type RunLedger interface {
	StartRun(ctx context.Context, run entity.CleanseRun) error
	FinishRun(ctx context.Context, runID string) error
}
