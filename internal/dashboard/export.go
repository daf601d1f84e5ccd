package dashboard

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/codecurser/park-vision-control-system/internal/domain"
)

var csvHeader = []string{"Plate Number", "Entry Type", "Timestamp"}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(domain.TimestampLayout)
}

// ExportCSV writes the header and one row per entry.
func ExportCSV(w io.Writer, entries []domain.ParkingEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.PlateNumber, string(e.EntryType), FormatTimestamp(e.Timestamp)}); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func ExportFilename(now time.Time) string {
	return fmt.Sprintf("parking-logs-%s.csv", now.Format("2006-01-02"))
}
