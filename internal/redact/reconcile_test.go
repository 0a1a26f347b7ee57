package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

func span(start, end int, cat constants.Category, conf float32) entity.RedactionSpan {
	return entity.RedactionSpan{Start: start, End: end, Category: cat, Confidence: conf}
}

func TestReconcileSpecificCategoryWinsAndRemainderIsKept(t *testing.T) {
	text := "abcdefghij"
	got := Reconcile(text, []entity.RedactionSpan{
		span(0, 10, constants.Person, 0.9),
		span(2, 8, constants.ClientName, 0.6),
	})
	require.Len(t, got, 3)
	assert.Equal(t, span(0, 2, constants.Person, 0.9), got[0])
	assert.Equal(t, span(2, 8, constants.ClientName, 0.6), got[1])
	assert.Equal(t, span(8, 10, constants.Person, 0.9), got[2])
	assert.True(t, Reconciled(got))
}

func TestReconcileEqualRank(t *testing.T) {
	text := "Jane Doe of Springfield"
	tests := []struct {
		name  string
		spans []entity.RedactionSpan
		want  entity.RedactionSpan
	}{
		{
			name:  "higher confidence wins",
			spans: []entity.RedactionSpan{span(0, 8, constants.Person, 0.6), span(5, 23, constants.Location, 0.8)},
			want:  span(5, 23, constants.Location, 0.8),
		},
		{
			name:  "longer wins on confidence tie",
			spans: []entity.RedactionSpan{span(0, 4, constants.Person, 0.7), span(0, 8, constants.Org, 0.7)},
			want:  span(0, 8, constants.Org, 0.7),
		},
		{
			name:  "earlier wins on full tie",
			spans: []entity.RedactionSpan{span(2, 8, constants.Org, 0.7), span(0, 6, constants.Person, 0.7)},
			want:  span(0, 6, constants.Person, 0.7),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(text, tt.spans)
			require.Len(t, got, 1, "the loser is discarded whole")
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestReconcileLogoOutranksClientName(t *testing.T) {
	got := Reconcile("ACME", []entity.RedactionSpan{
		span(0, 4, constants.ClientName, 1),
		span(0, 4, constants.ClientLogo, 0.85),
	})
	require.Len(t, got, 1)
	assert.Equal(t, constants.ClientLogo, got[0].Category)
}

func TestReconcileDropsPlaceholderOverlapsAndClamps(t *testing.T) {
	text := "hi <PERSON_REDACTED> there"
	got := Reconcile(text, []entity.RedactionSpan{
		span(4, 10, constants.OtherPII, 1),
		span(21, 100, constants.Person, 1),
		span(-3, 2, constants.Person, 1),
	})
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Start)
	assert.Equal(t, len(text), got[1].End)
}

func TestReconcileDiscardsWhitespaceFragments(t *testing.T) {
	got := Reconcile("Acme Corp ", []entity.RedactionSpan{
		span(0, 10, constants.Org, 0.9),
		span(0, 9, constants.ClientName, 1),
	})
	require.Len(t, got, 1)
	assert.Equal(t, constants.ClientName, got[0].Category)
}

func TestApply(t *testing.T) {
	text := "call Bob at 555-0100"
	out := Apply(text, []entity.RedactionSpan{
		span(5, 8, constants.Person, 1),
		span(12, 20, constants.OtherPII, 1),
	})
	assert.Equal(t, "call <PERSON_REDACTED> at <PII_REDACTED>", out)
	assert.Equal(t, text, Apply(text, nil))
}

func TestReconciledDetectsOverlapAndDisorder(t *testing.T) {
	assert.True(t, Reconciled(nil))
	assert.False(t, Reconciled([]entity.RedactionSpan{span(0, 5, constants.Person, 1), span(4, 6, constants.Org, 1)}))
	assert.False(t, Reconciled([]entity.RedactionSpan{span(5, 6, constants.Person, 1), span(0, 2, constants.Org, 1)}))
	assert.True(t, Reconciled([]entity.RedactionSpan{
		{Block: 0, Start: 5, End: 6},
		{Block: 1, Start: 0, End: 2},
	}))
}
