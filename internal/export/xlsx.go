package export

import (
	"fmt"
	"io"

	"github.com/markmehq/markme/internal/domain/attendance"
	"github.com/xuri/excelize/v2"
)

// WriteXLSX serializes records to a single-sheet spreadsheet with the same
// columns as the CSV export.
func WriteXLSX(w io.Writer, recs []attendance.Record) error {
	f := excelize.NewFile()

	defer func() { _ = f.Close() }()

	const sheet = "Attendance"

	index, err := f.NewSheet(sheet)

	if err != nil {
		return err
	}

	f.SetActiveSheet(index)

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	headers := []string{"Name", "Date", "TimeIn", "Status"}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)

		if err != nil {
			return err
		}

		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for i, rec := range recs {
		values := []any{
			rec.UserName,
			csvDate(rec.Day)[1:], // no apostrophe hack needed, cells are typed
			csvTime(rec.TimeIn),
			string(rec.Status),
		}

		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)

			if err != nil {
				return err
			}

			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}

	return nil
}
