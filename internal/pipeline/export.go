package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"jobsync/internal"
	"jobsync/internal/tracker"
)

const (
	trackerSheet = "Tracker"
	summarySheet = "Summary"
)

// ExportTrackerXLSX writes rows, newest first, plus a per-status summary sheet.
func ExportTrackerXLSX(rows []internal.TrackerRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), trackerSheet); err != nil {
		return err
	}

	headers := []string{"row_id", "company", "job_title", "status", "applied_on", "application_id", "notes"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(trackerSheet, cell, h)
	}

	sorted := append([]internal.TrackerRow(nil), rows...)
	tracker.SortByAppliedOn(sorted)

	for i, row := range sorted {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(trackerSheet, cell, value)
		}

		set(1, row.RowID)
		set(2, row.Company)
		set(3, row.JobTitle)
		set(4, string(row.Status))
		if !row.AppliedOn.IsZero() {
			set(5, row.AppliedOn.Format("2006-01-02"))
		}
		set(6, row.ApplicationID)
		set(7, row.Notes)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	_ = f.SetCellValue(summarySheet, "A1", "status")
	_ = f.SetCellValue(summarySheet, "B1", "count")

	counts := tracker.StatusCounts(rows)
	for i, status := range internal.Statuses {
		r := i + 2
		_ = f.SetCellValue(summarySheet, cellName(1, r), string(status))
		_ = f.SetCellValue(summarySheet, cellName(2, r), counts[status])
	}
	totalRow := len(internal.Statuses) + 2
	_ = f.SetCellValue(summarySheet, cellName(1, totalRow), "total")
	_ = f.SetCellValue(summarySheet, cellName(2, totalRow), len(rows))

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}
