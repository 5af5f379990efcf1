package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/markmehq/markme/internal/domain/attendance"
)

// csvDateLayout matches what the export consumers expect: dd/MM/yyyy, with a
// leading apostrophe so spreadsheet apps keep the cell as text instead of
// re-parsing the date.
const csvDateLayout = "02/01/2006"

func csvDate(day string) string {
	t, err := time.ParseInLocation(attendance.DayLayout, day, time.Local)

	if err != nil {
		return "'" + day
	}

	return "'" + t.Format(csvDateLayout)
}

func csvTime(t time.Time) string {
	if t.IsZero() {
		return "--:--"
	}

	return t.Local().Format("03:04 PM")
}

// WriteCSV serializes records as Name,Date,TimeIn,Status rows.
func WriteCSV(w io.Writer, recs []attendance.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Name", "Date", "TimeIn", "Status"}); err != nil {
		return err
	}

	for _, rec := range recs {
		row := []string{
			rec.UserName,
			csvDate(rec.Day),
			csvTime(rec.TimeIn),
			string(rec.Status),
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// FileName builds a timestamped export file name.
func FileName(ext string) string {
	return fmt.Sprintf("attendance_%d.%s", time.Now().UnixMilli(), ext)
}
