package extract

import (
	"bytes"
	"context"
	"image"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

// extractXLSX emits one block per non-empty row, sheet by sheet.
func extractXLSX(_ context.Context, b *builder, data []byte) error {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return common.CorruptInput(string(constants.XLSX), err)
	}
	defer func() { _ = f.Close() }()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return common.CorruptInput(string(constants.XLSX), err)
		}
		for i, row := range rows {
			b.addText(joinCells(row), entity.Location{Sheet: sheet, Row: i + 1})
		}
	}
	return nil
}

// extractImage treats the whole file as a single image region.
func extractImage(ctx context.Context, b *builder, data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return common.CorruptInput(string(b.format), err)
	}
	b.addImage(ctx, img, entity.Location{Page: 1})
	return nil
}
