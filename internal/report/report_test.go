package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

func rule(action, port string) entity.StructuredFinding {
	return entity.StructuredFinding{RuleType: entity.Str("firewall"), Action: entity.Str(action), Port: entity.Str(port)}
}

func TestAggregatorOrdersBySeqUnderConcurrency(t *testing.T) {
	a := NewAggregator()
	var wg sync.WaitGroup
	for i := 4; i >= 0; i-- {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			a.Add(entity.ReportEntry{Seq: seq, DocumentID: string(rune('a' + seq))})
		}(i)
	}
	wg.Wait()

	r := a.Report()
	require.Len(t, r.Entries, 5)
	for i, e := range r.Entries {
		assert.Equal(t, i, e.Seq)
		assert.Equal(t, string(rune('a'+i)), e.DocumentID)
		assert.NotNil(t, e.Warnings)
	}
}

func TestAggregatorDedupesWithinDocumentOnly(t *testing.T) {
	a := NewAggregator()
	a.Add(entity.ReportEntry{Seq: 0, DocumentID: "d1", Findings: []entity.StructuredFinding{
		rule("allow", "443"), rule("allow", "443"), rule("deny", "443"),
	}})
	a.Add(entity.ReportEntry{Seq: 1, DocumentID: "d2", Findings: []entity.StructuredFinding{rule("allow", "443")}})

	r := a.Report()
	assert.Len(t, r.Entries[0].Findings, 2)
	assert.Len(t, r.Entries[1].Findings, 1)
}

func TestDedupeKeepsNullDistinctFromEmpty(t *testing.T) {
	withEmpty := rule("allow", "443")
	withEmpty.Scope = entity.Str("")
	out := dedupe([]entity.StructuredFinding{rule("allow", "443"), withEmpty})
	assert.Len(t, out, 2)
}

func sampleReport() entity.Report {
	return entity.Report{Entries: []entity.ReportEntry{
		{Seq: 0, DocumentID: "d1", DocumentName: "fw.txt", Format: constants.TXT, Sensitivity: constants.SensitivityHigh,
			Findings: []entity.StructuredFinding{rule("allow", "443"), rule("deny", "23")}},
		{Seq: 1, DocumentID: "d2", DocumentName: "bad.xyz", Warnings: []string{"UnsupportedFormat: format \"xyz\" is not supported"}},
	}}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleReport())
	require.Len(t, rows, 3)
	cols := Columns()
	for _, row := range rows {
		assert.Len(t, row, len(cols))
	}
	assert.Equal(t, []string{"d1", "fw.txt", "firewall"}, rows[0][:3])
	assert.Equal(t, "deny", rows[1][2+6])
	assert.Equal(t, "d2", rows[2][0])
	assert.Empty(t, rows[2][2])
	assert.Contains(t, rows[2][len(cols)-1], "UnsupportedFormat")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(nil).WriteCSV(&buf, sampleReport()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, Columns(), records[0])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(nil).WriteXLSX(&buf, sampleReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(findingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "document_id", rows[0][0])
	assert.Equal(t, "allow", rows[1][8])

	docs, err := f.GetRows(documentsSheet)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "High", docs[1][4])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(nil).Write(&buf, "json", sampleReport()))

	var got entity.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Entries, 2)
	assert.Len(t, got.Entries[0].Findings, 2)

	assert.Error(t, NewExporter(nil).Write(&buf, "pdf", sampleReport()))
}

func TestSensitivity(t *testing.T) {
	tests := []struct {
		name   string
		counts map[constants.Category]int
		want   constants.Sensitivity
	}{
		{"nothing redacted", nil, constants.SensitivityLow},
		{"a few names", map[constants.Category]int{constants.Person: 2, constants.Location: 1}, constants.SensitivityMedium},
		{"client named", map[constants.Category]int{constants.ClientName: 1}, constants.SensitivityHigh},
		{"many identifiers", map[constants.Category]int{constants.OtherPII: 12}, constants.SensitivityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sensitivity(tt.counts))
		})
	}
}
