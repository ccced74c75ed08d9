// Package output renders aggregated worklog days to files for external use.
package output

import (
	"fmt"
	"strings"

	"recap/internal/timeutil"
	"recap/workitem"
)

// ExportRow is one line of the exported worklog overview: a project's day
// rollup or a single manual item, with its sync state.
type ExportRow struct {
	Date        string
	Kind        string
	Name        string
	Hours       float64
	Commits     int
	Files       int
	IssueKey    string
	Synced      bool
	Description string
}

// BuildExportRows flattens worklog days into export rows, annotating each
// with the matching sync record when one exists. Empty days produce no rows.
func BuildExportRows(days []workitem.WorklogDay, records map[string]workitem.SyncRecord) []ExportRow {
	rows := make([]ExportRow, 0, len(days)*2)

	for _, day := range days {
		date := timeutil.DayKey(day.Date)

		for _, project := range day.Projects {
			record := records[workitem.ProjectTarget(project.ProjectPath, day.Date).String()]
			rows = append(rows, ExportRow{
				Date:        date,
				Kind:        "project",
				Name:        project.ProjectName,
				Hours:       project.TotalHours,
				Commits:     project.TotalCommits,
				Files:       project.TotalFiles,
				IssueKey:    record.IssueKey,
				Synced:      record.Synced(),
				Description: project.DailySummary,
			})
		}

		for _, item := range day.Manual {
			record := records[workitem.ManualTarget(item.ID).String()]
			rows = append(rows, ExportRow{
				Date:        date,
				Kind:        "manual",
				Name:        item.Title,
				Hours:       item.Hours,
				IssueKey:    record.IssueKey,
				Synced:      record.Synced(),
				Description: item.Description,
			})
		}
	}

	return rows
}

// WriteExport writes rows in the requested format.
func WriteExport(path, format string, rows []ExportRow) error {
	switch normalizeFormat(format) {
	case "csv":
		return writeExportCSV(path, rows)
	case "excel", "xlsx":
		return writeExportExcel(path, rows)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func normalizeFormat(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}

var exportHeaders = []string{"Date", "Kind", "Name", "Hours", "Commits", "Files", "IssueKey", "Synced", "Description"}

func exportValues(row ExportRow) []string {
	return []string{
		row.Date,
		row.Kind,
		row.Name,
		fmt.Sprintf("%.2f", row.Hours),
		fmt.Sprintf("%d", row.Commits),
		fmt.Sprintf("%d", row.Files),
		row.IssueKey,
		fmt.Sprintf("%t", row.Synced),
		row.Description,
	}
}
