package export_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/markmehq/markme/internal/domain/attendance"
	"github.com/markmehq/markme/internal/export"
)

func TestWriteCSV(t *testing.T) {
	timeIn := time.Date(2026, 3, 14, 14, 5, 0, 0, time.Local)

	recs := []attendance.Record{
		{
			UserName: "Jane Doe",
			Day:      "2026-03-14",
			TimeIn:   timeIn,
			Status:   attendance.StatusPresent,
		},
	}

	var buf bytes.Buffer

	if err := export.WriteCSV(&buf, recs); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()

	if err != nil {
		t.Fatalf("re-reading output: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}

	wantHeader := []string{"Name", "Date", "TimeIn", "Status"}

	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Fatalf("header[%d]=%q, want %q", i, rows[0][i], col)
		}
	}

	row := rows[1]

	if row[0] != "Jane Doe" {
		t.Fatalf("name=%q", row[0])
	}

	// dd/MM/yyyy prefixed with an apostrophe so spreadsheets keep it as text
	if row[1] != "'14/03/2026" {
		t.Fatalf("date=%q, want '14/03/2026", row[1])
	}

	if row[2] != "02:05 PM" {
		t.Fatalf("timeIn=%q, want 02:05 PM", row[2])
	}

	if row[3] != "PRESENT" {
		t.Fatalf("status=%q", row[3])
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer

	if err := export.WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	out := strings.TrimSpace(buf.String())

	if out != "Name,Date,TimeIn,Status" {
		t.Fatalf("empty export must still carry the header, got %q", out)
	}
}

func TestFileName(t *testing.T) {
	name := export.FileName("csv")

	if !strings.HasPrefix(name, "attendance_") || !strings.HasSuffix(name, ".csv") {
		t.Fatalf("unexpected file name %q", name)
	}
}
