package pipeline

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
	"github.com/joseph-ayodele/doc-cleanser/internal/extract"
	"github.com/joseph-ayodele/doc-cleanser/internal/ocr"
	"github.com/joseph-ayodele/doc-cleanser/internal/redact"
)

type countingOCR struct{ calls int }

func (c *countingOCR) Recognize(context.Context, image.Image) (ocr.Recognition, error) {
	c.calls++
	return ocr.Recognition{}, nil
}

type countingRedactor struct {
	inner Redactor
	calls int
}

func (c *countingRedactor) Redact(ctx context.Context, content entity.ExtractedContent, clientName string, logo image.Image) entity.AnonymizedDocument {
	c.calls++
	return c.inner.Redact(ctx, content, clientName, logo)
}

type fakeInsights struct {
	result entity.FindingsResult
	err    error
	seen   []string
}

func (f *fakeInsights) Extract(_ context.Context, doc entity.AnonymizedDocument, _ string) (entity.FindingsResult, error) {
	f.seen = append(f.seen, doc.Text(false))
	return f.result, f.err
}

type recordingLedger struct {
	mu       sync.Mutex
	statuses []constants.JobStatus
	failure  error
	finished bool
}

func (l *recordingLedger) StartJob(_ context.Context, job entity.CleanseJob) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, constants.JobStatus(job.Status))
	return nil
}

func (l *recordingLedger) SetStatus(_ context.Context, _ string, status constants.JobStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, status)
	return nil
}

func (l *recordingLedger) FinishJob(_ context.Context, _ string, _ entity.ReportEntry, failure error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failure = failure
	l.finished = true
	return nil
}

type harness struct {
	ocr      *countingOCR
	redactor *countingRedactor
	insights *fakeInsights
	ledger   *recordingLedger
	proc     *Processor
}

func newHarness(insights *fakeInsights) *harness {
	h := &harness{
		ocr:      &countingOCR{},
		redactor: &countingRedactor{inner: redact.NewEngine(nil, redact.Options{}, nil)},
		insights: insights,
		ledger:   &recordingLedger{},
	}
	h.proc = NewProcessor(nil, extract.NewExtractor(h.ocr, nil, nil), h.redactor, h.insights, h.ledger)
	return h
}

func TestProcessUnsupportedFormatShortCircuits(t *testing.T) {
	h := newHarness(&fakeInsights{})
	ctx := common.WithRunID(context.Background(), "run-1")

	entry := h.proc.Process(ctx, 3, entity.Document{ID: "d1", Name: "notes.xyz", Format: "xyz", Content: []byte("hello")})

	assert.Equal(t, 3, entry.Seq)
	require.Len(t, entry.Warnings, 1)
	assert.True(t, strings.HasPrefix(entry.Warnings[0], common.CodeUnsupportedFormat))
	assert.Empty(t, entry.Findings)
	assert.Zero(t, h.ocr.calls)
	assert.Zero(t, h.redactor.calls)
	assert.Empty(t, h.insights.seen)

	assert.True(t, h.ledger.finished)
	assert.True(t, errors.Is(h.ledger.failure, common.ErrUnsupportedFormat))
	assert.Equal(t, []constants.JobStatus{constants.JobStatusRunning}, h.ledger.statuses)
}

func TestProcessForwardsOnlyCleansedText(t *testing.T) {
	h := newHarness(&fakeInsights{result: entity.FindingsResult{
		Description: "firewall export",
		Findings:    []entity.StructuredFinding{{Action: entity.Str("allow"), Port: entity.Str("443")}},
	}})
	ctx := common.WithRunID(context.Background(), "run-1")
	doc := entity.Document{
		ID:         "d1",
		Name:       "rules.txt",
		Format:     constants.TXT,
		ClientName: "Acme Corp",
		Content:    []byte("Acme Corp edge firewall\n\nallow tcp 443 from ACME-CORP office"),
	}

	entry := h.proc.Process(ctx, 0, doc)

	require.Len(t, h.insights.seen, 1)
	assert.NotContains(t, strings.ToLower(h.insights.seen[0]), "acme")
	assert.Contains(t, h.insights.seen[0], constants.Placeholder(constants.ClientName))

	assert.Equal(t, "firewall export", entry.Description)
	assert.Len(t, entry.Findings, 1)
	assert.Equal(t, 2, entry.RedactionCount)
	assert.Equal(t, constants.SensitivityHigh, entry.Sensitivity)
	assert.Empty(t, entry.Warnings)
	assert.Equal(t, []constants.JobStatus{
		constants.JobStatusRunning, constants.JobStatusExtracted, constants.JobStatusRedacted,
	}, h.ledger.statuses)
	assert.NoError(t, h.ledger.failure)
}

func TestProcessInsightFailureBecomesWarning(t *testing.T) {
	h := newHarness(&fakeInsights{
		result: entity.FindingsResult{Findings: []entity.StructuredFinding{}},
		err:    common.MalformedModelOutput("model output failed validation after strict retry", errors.New("bad")),
	})

	entry := h.proc.Process(context.Background(), 0, entity.Document{ID: "d1", Format: constants.TXT, Content: []byte("deny all")})

	assert.NotNil(t, entry.Findings)
	assert.Empty(t, entry.Findings)
	require.Len(t, entry.Warnings, 1)
	assert.Equal(t, "MalformedModelOutput: model output failed validation after strict retry", entry.Warnings[0])
	// no run id in context, so nothing is recorded
	assert.False(t, h.ledger.finished)
}

func TestProcessRejectsInvalidDocument(t *testing.T) {
	h := newHarness(&fakeInsights{})
	entry := h.proc.Process(context.Background(), 0, entity.Document{Format: constants.TXT, Content: []byte("x")})
	require.Len(t, entry.Warnings, 1)
	assert.Contains(t, entry.Warnings[0], "is required")
	assert.Zero(t, h.redactor.calls)
}

func TestProcessUnreadableLogoWarns(t *testing.T) {
	h := newHarness(&fakeInsights{})
	entry := h.proc.Process(context.Background(), 0, entity.Document{
		ID: "d1", Format: constants.TXT, Content: []byte("allow 22"), ClientLogo: []byte("not an image"),
	})
	assert.Contains(t, entry.Warnings, "client logo unreadable: logo matching skipped")
}

func TestRedactOnly(t *testing.T) {
	proc := NewProcessor(nil, extract.NewExtractor(nil, nil, nil), redact.NewEngine(nil, redact.Options{}, nil), nil, nil)
	anon, err := proc.Redact(context.Background(), entity.Document{
		ID: "d1", Format: constants.MD, ClientName: "Globex", Content: []byte("# Globex VPN\n\nUsers of globex connect via 10.0.0.1"),
	})
	require.NoError(t, err)
	assert.True(t, anon.Reconciled)
	assert.NotContains(t, strings.ToLower(anon.Text(true)), "globex")
	assert.Contains(t, anon.Text(true), "10.0.0.1")
}

type panickingRedactor struct{}

func (panickingRedactor) Redact(context.Context, entity.ExtractedContent, string, image.Image) entity.AnonymizedDocument {
	panic("index out of range")
}

func TestProcessRecoversFromStagePanic(t *testing.T) {
	h := newHarness(&fakeInsights{})
	h.redactor.inner = panickingRedactor{}
	ctx := common.WithRunID(context.Background(), "run-1")

	var entry entity.ReportEntry
	require.NotPanics(t, func() {
		entry = h.proc.Process(ctx, 4, entity.Document{ID: "d1", Name: "rules.txt", Format: constants.TXT, Content: []byte("allow 22")})
	})

	assert.Equal(t, 4, entry.Seq)
	assert.Equal(t, "d1", entry.DocumentID)
	assert.NotNil(t, entry.Findings)
	require.Len(t, entry.Warnings, 1)
	assert.Equal(t, "StageCrashed: document processing aborted: index out of range", entry.Warnings[0])
	assert.Empty(t, h.insights.seen)

	assert.True(t, h.ledger.finished)
	assert.ErrorIs(t, h.ledger.failure, common.ErrStageCrashed)
}

func TestProcessMasksClientInDocumentName(t *testing.T) {
	tests := []struct {
		name   string
		client string
		file   string
		want   string
	}{
		{"underscore joined", "Acme", "Acme_firewall.pdf", "<CLIENT_NAME_REDACTED>_firewall.pdf"},
		{"spaced variant", "Acme Corp", "ACME-CORP rules.txt", "<CLIENT_NAME_REDACTED> rules.txt"},
		{"no client", "", "Acme_firewall.pdf", "Acme_firewall.pdf"},
		{"unrelated name", "Globex", "edge.txt", "edge.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(&fakeInsights{})
			entry := h.proc.Process(context.Background(), 0, entity.Document{
				ID: "d1", Name: tt.file, Format: constants.TXT, ClientName: tt.client, Content: []byte("allow 22"),
			})
			assert.Equal(t, tt.want, entry.DocumentName)
		})
	}
}
