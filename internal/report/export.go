package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

const (
	findingsSheet  = "Findings"
	documentsSheet = "Documents"
)

// Columns is the fixed findings table header.
func Columns() []string {
	cols := make([]string, 0, len(entity.FindingFields)+3)
	cols = append(cols, "document_id", "document_name")
	cols = append(cols, entity.FindingFields...)
	return append(cols, "warnings")
}

// Rows flattens a report into one row per finding. A document without findings still gets
// one row so its warnings are visible.
func Rows(r entity.Report) [][]string {
	var rows [][]string
	for _, e := range r.Entries {
		warnings := strings.Join(e.Warnings, "; ")
		if len(e.Findings) == 0 {
			row := make([]string, 0, len(entity.FindingFields)+3)
			row = append(row, e.DocumentID, e.DocumentName)
			row = append(row, make([]string, len(entity.FindingFields))...)
			rows = append(rows, append(row, warnings))
			continue
		}
		for _, f := range e.Findings {
			row := make([]string, 0, len(entity.FindingFields)+3)
			row = append(row, e.DocumentID, e.DocumentName)
			row = append(row, f.Values()...)
			rows = append(rows, append(row, warnings))
		}
	}
	return rows
}

// Exporter renders reports in the supported output formats.
type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

// Write dispatches on format: xlsx, csv or json.
func (x *Exporter) Write(w io.Writer, format string, r entity.Report) error {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "xlsx":
		return x.WriteXLSX(w, r)
	case "csv":
		return x.WriteCSV(w, r)
	case "json":
		return x.WriteJSON(w, r)
	}
	return fmt.Errorf("report: unknown output format %q", format)
}

// WriteXLSX writes a workbook with the findings table and a per-document summary sheet.
func (x *Exporter) WriteXLSX(w io.Writer, r entity.Report) error {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", findingsSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(documentsSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	activeIndex, _ := f.GetSheetIndex(findingsSheet)
	f.SetActiveSheet(activeIndex)

	rows := Rows(r)
	if err := writeSheet(f, findingsSheet, Columns(), rows); err != nil {
		return err
	}
	_ = f.SetColWidth(findingsSheet, "A", "B", 24)
	_ = f.SetColWidth(findingsSheet, "C", "K", 18)
	_ = f.SetColWidth(findingsSheet, "L", "M", 48)

	docHeader := []string{"seq", "document_id", "document_name", "format", "sensitivity", "redaction_count", "findings", "description", "warnings"}
	docRows := make([][]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		docRows = append(docRows, []string{
			strconv.Itoa(e.Seq),
			e.DocumentID,
			e.DocumentName,
			string(e.Format),
			string(e.Sensitivity),
			strconv.Itoa(e.RedactionCount),
			strconv.Itoa(len(e.Findings)),
			truncate(e.Description, 500),
			strings.Join(e.Warnings, "; "),
		})
	}
	if err := writeSheet(f, documentsSheet, docHeader, docRows); err != nil {
		return err
	}
	_ = f.SetColWidth(documentsSheet, "B", "C", 24)
	_ = f.SetColWidth(documentsSheet, "H", "I", 60)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	x.logger.Info("export.xlsx.ok",
		"documents", len(r.Entries),
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string) error {
	put := func(col, row int, v string) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, v)
	}
	for i, h := range header {
		if err := put(i+1, 1, h); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			if err := put(c+1, r+2, v); err != nil {
				return fmt.Errorf("xlsx row %d: %w", r+1, err)
			}
		}
	}
	return nil
}

// WriteCSV writes the findings table.
func (x *Exporter) WriteCSV(w io.Writer, r entity.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns()); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	rows := Rows(r)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	x.logger.Info("export.csv.ok", "documents", len(r.Entries), "rows", len(rows))
	return nil
}

// WriteJSON writes the report grouped by document.
func (x *Exporter) WriteJSON(w io.Writer, r entity.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("json write: %w", err)
	}
	x.logger.Info("export.json.ok", "documents", len(r.Entries))
	return nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n] + "…"
}
