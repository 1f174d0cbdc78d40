// Package export writes chart pages to spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dgnsrekt/graphview/internal/series"
)

const sheet = "Sheet1"

// XLSXContentType is the media type of WriteXLSX output.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX writes a page as a two column sheet (time, column) to w.
func WriteXLSX(w io.Writer, column string, page series.Page) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(sheet, "A1", &[]any{"time", column}); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr("yyyy-mm-dd hh:mm:ss")})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}

	for i, ts := range page.Times {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{time.Unix(ts, 0).UTC(), nil}
		if v, ok := page.Values.At(i); ok {
			row[1] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}
	if page.Len() > 0 {
		last, _ := excelize.CoordinatesToCellName(1, page.Len()+1)
		if err := f.SetCellStyle(sheet, "A2", last, dateStyle); err != nil {
			return fmt.Errorf("xlsx style: %w", err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 20); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }
