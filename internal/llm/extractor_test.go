package llm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

type reply struct {
	body string
	err  error
}

// scriptedProvider returns replies in order and records what it was sent.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []reply
	texts   []string
	strict  []bool
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Extract(ctx context.Context, text string, _ map[string]any) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
	p.strict = append(p.strict, IsStrict(ctx))
	if len(p.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.body), nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.texts)
}

const validReply = `{"description":"Edge firewall export","findings":[{"rule_type":"firewall","rule_id":"10","source":"10.0.0.0/8","destination":"any","port":"443","protocol":"tcp","action":"allow","principal":null,"scope":null,"description":"HTTPS from internal"}]}`

func anonymized(texts ...string) entity.AnonymizedDocument {
	d := entity.AnonymizedDocument{DocumentID: "doc-1", Format: constants.TXT, Reconciled: true}
	for i, t := range texts {
		d.Blocks = append(d.Blocks, entity.AnonymizedBlock{Index: i, Text: t, Provenance: constants.ProvenanceNative})
	}
	return d
}

func newTestExtractor(t *testing.T, p Provider, opts Options) *Extractor {
	t.Helper()
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	e, err := NewExtractor(p, opts, nil)
	require.NoError(t, err)
	return e
}

func TestExtractReturnsFindings(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{body: validReply}}}
	e := newTestExtractor(t, p, Options{})

	res, err := e.Extract(context.Background(), anonymized("allow tcp 443 from 10.0.0.0/8 for <PERSON_REDACTED>"), "Acme Corp")
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "Edge firewall export", res.Description)
	assert.Equal(t, "443", *res.Findings[0].Port)
	assert.Nil(t, res.Findings[0].Principal)
	assert.Equal(t, []bool{false}, p.strict)
}

func TestExtractMalformedTwiceReturnsEmpty(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{body: "Sure! Here are the rules:"}, {body: `{"findings": "none"}`}}}
	e := newTestExtractor(t, p, Options{})

	res, err := e.Extract(context.Background(), anonymized("deny all"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrMalformedModelOutput))
	assert.NotNil(t, res.Findings)
	assert.Empty(t, res.Findings)
	assert.Equal(t, []bool{false, true}, p.strict)
}

func TestExtractMalformedOnceRecoversWithStrictRetry(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{body: "not json"}, {body: validReply}}}
	e := newTestExtractor(t, p, Options{})

	res, err := e.Extract(context.Background(), anonymized("allow 443"), "")
	require.NoError(t, err)
	assert.Len(t, res.Findings, 1)
	assert.Equal(t, []bool{false, true}, p.strict)
}

func TestExtractRetriesServiceErrors(t *testing.T) {
	unavailable := &ProviderError{Provider: "scripted", Status: http.StatusServiceUnavailable, Err: errors.New("overloaded")}
	p := &scriptedProvider{replies: []reply{{err: unavailable}, {err: unavailable}, {body: validReply}}}
	e := newTestExtractor(t, p, Options{ServiceRetries: 2})

	res, err := e.Extract(context.Background(), anonymized("allow 443"), "")
	require.NoError(t, err)
	assert.Len(t, res.Findings, 1)
	assert.Equal(t, 3, p.calls())
}

func TestExtractServiceErrorAfterRetries(t *testing.T) {
	throttled := &ProviderError{Provider: "scripted", Status: http.StatusTooManyRequests, Err: errors.New("slow down")}
	p := &scriptedProvider{replies: []reply{{err: throttled}, {err: throttled}}}
	e := newTestExtractor(t, p, Options{ServiceRetries: 1})

	_, err := e.Extract(context.Background(), anonymized("allow 443"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrExtractionService))
	assert.Equal(t, 2, p.calls())
}

func TestExtractDoesNotRetryClientErrors(t *testing.T) {
	bad := &ProviderError{Provider: "scripted", Status: http.StatusBadRequest, Err: errors.New("bad request")}
	p := &scriptedProvider{replies: []reply{{err: bad}, {body: validReply}}}
	e := newTestExtractor(t, p, Options{ServiceRetries: 3})

	_, err := e.Extract(context.Background(), anonymized("allow 443"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrExtractionService))
	assert.Equal(t, 1, p.calls())
}

func TestExtractRejectsUnreconciledDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  entity.AnonymizedDocument
	}{
		{
			name: "flag unset",
			doc: func() entity.AnonymizedDocument {
				d := anonymized("allow 443")
				d.Reconciled = false
				return d
			}(),
		},
		{
			name: "overlapping spans",
			doc: func() entity.AnonymizedDocument {
				d := anonymized("allow 443")
				d.Spans = []entity.RedactionSpan{{Block: 0, Start: 0, End: 5}, {Block: 0, Start: 3, End: 8}}
				return d
			}(),
		},
		{
			name: "client name left in text",
			doc:  anonymized("rule owner: ACME corp"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{replies: []reply{{body: validReply}}}
			e := newTestExtractor(t, p, Options{})

			_, err := e.Extract(context.Background(), tt.doc, "Acme Corp")
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrUnreconciledSpans))
			assert.Zero(t, p.calls())
		})
	}
}

func TestExtractWithholdsIncompleteBlocks(t *testing.T) {
	doc := anonymized("allow 443 from <CLIENT_NAME_REDACTED> office", "Jane Roe at Acme Corp")
	doc.Blocks[1].RedactionIncomplete = true

	p := &scriptedProvider{replies: []reply{{body: validReply}}}
	e := newTestExtractor(t, p, Options{})

	res, err := e.Extract(context.Background(), doc, "Acme Corp")
	require.NoError(t, err)
	require.Len(t, p.texts, 1)
	assert.NotContains(t, p.texts[0], "Jane Roe")
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "withheld")
}

func TestExtractForwardsIncompleteBlocksWhenEnabled(t *testing.T) {
	doc := anonymized("allow 443", "deny 23 from <PERSON_REDACTED>")
	doc.Blocks[1].RedactionIncomplete = true

	p := &scriptedProvider{replies: []reply{{body: validReply}}}
	e := newTestExtractor(t, p, Options{ForwardIncomplete: true})

	res, err := e.Extract(context.Background(), doc, "")
	require.NoError(t, err)
	assert.Contains(t, p.texts[0], "deny 23")
	assert.Empty(t, res.Warnings)
}

func TestExtractEmptyTextSkipsProvider(t *testing.T) {
	p := &scriptedProvider{}
	e := newTestExtractor(t, p, Options{})

	res, err := e.Extract(context.Background(), anonymized(), "")
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	assert.Zero(t, p.calls())
}

func TestExtractScrubsClientNameFromFindings(t *testing.T) {
	body := `{"description":"Rules for Acme Corp","findings":[{"rule_type":"iam","principal":"acme-corp admins","action":"grant"}]}`
	p := &scriptedProvider{replies: []reply{{body: body}}}
	e := newTestExtractor(t, p, Options{})

	res, err := e.Extract(context.Background(), anonymized("grant admins to <CLIENT_NAME_REDACTED>"), "Acme Corp")
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Nil(t, res.Findings[0].Principal)
	assert.Equal(t, "grant", *res.Findings[0].Action)
	assert.Empty(t, res.Description)
}

func TestNewExtractorRequiresProvider(t *testing.T) {
	_, err := NewExtractor(nil, Options{}, nil)
	assert.Error(t, err)
}
