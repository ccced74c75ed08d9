package web

import (
	"recap/internal/timeutil"
	"recap/workitem"
)

// DayView is the JSON shape of one aggregated day with sync state attached.
type DayView struct {
	Date       string        `json:"date"`
	TotalHours float64       `json:"totalHours"`
	Projects   []ProjectView `json:"projects"`
	Manual     []ManualView  `json:"manual"`
}

type ProjectView struct {
	Target       string  `json:"target"`
	ProjectPath  string  `json:"projectPath"`
	ProjectName  string  `json:"projectName"`
	TotalHours   float64 `json:"totalHours"`
	TotalCommits int     `json:"totalCommits"`
	TotalFiles   int     `json:"totalFiles"`
	DailySummary string  `json:"dailySummary"`
	IssueKey     string  `json:"issueKey,omitempty"`
	Synced       bool    `json:"synced"`
}

type ManualView struct {
	Target      string  `json:"target"`
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Hours       float64 `json:"hours"`
	IssueKey    string  `json:"issueKey,omitempty"`
	Synced      bool    `json:"synced"`
}

type RecordView struct {
	Target          string `json:"target"`
	IssueKey        string `json:"issueKey,omitempty"`
	SyncedAt        string `json:"syncedAt,omitempty"`
	RemoteWorklogID string `json:"remoteWorklogId,omitempty"`
}

type ResultView struct {
	Successful int              `json:"successful"`
	Total      int              `json:"total"`
	DryRun     bool             `json:"dryRun"`
	Entries    []ResultItemView `json:"entries"`
}

type ResultItemView struct {
	Target          string `json:"target"`
	IssueKey        string `json:"issueKey"`
	Status          string `json:"status"`
	RemoteWorklogID string `json:"remoteWorklogId,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
}

// BuildDayViews joins aggregated days with their sync records.
func BuildDayViews(days []workitem.WorklogDay, records map[string]workitem.SyncRecord) []DayView {
	views := make([]DayView, 0, len(days))
	for _, day := range days {
		view := DayView{
			Date:       timeutil.DayKey(day.Date),
			TotalHours: day.TotalHours(),
			Projects:   make([]ProjectView, 0, len(day.Projects)),
			Manual:     make([]ManualView, 0, len(day.Manual)),
		}

		for _, project := range day.Projects {
			target := workitem.ProjectTarget(project.ProjectPath, day.Date)
			record := records[target.String()]
			view.Projects = append(view.Projects, ProjectView{
				Target:       target.String(),
				ProjectPath:  project.ProjectPath,
				ProjectName:  project.ProjectName,
				TotalHours:   project.TotalHours,
				TotalCommits: project.TotalCommits,
				TotalFiles:   project.TotalFiles,
				DailySummary: project.DailySummary,
				IssueKey:     record.IssueKey,
				Synced:       record.Synced(),
			})
		}

		for _, item := range day.Manual {
			target := workitem.ManualTarget(item.ID)
			record := records[target.String()]
			view.Manual = append(view.Manual, ManualView{
				Target:      target.String(),
				ID:          item.ID,
				Title:       item.Title,
				Description: item.Description,
				Hours:       item.Hours,
				IssueKey:    record.IssueKey,
				Synced:      record.Synced(),
			})
		}

		views = append(views, view)
	}
	return views
}

// BuildRecordViews converts persisted sync records for the API.
func BuildRecordViews(records []workitem.SyncRecord) []RecordView {
	views := make([]RecordView, 0, len(records))
	for _, record := range records {
		view := RecordView{
			Target:          record.Target.String(),
			IssueKey:        record.IssueKey,
			RemoteWorklogID: record.RemoteWorklogID,
		}
		if record.SyncedAt != nil {
			view.SyncedAt = record.SyncedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		views = append(views, view)
	}
	return views
}

// BuildResultView converts a plan execution outcome for the API.
func BuildResultView(result *workitem.SyncResult) ResultView {
	view := ResultView{
		Successful: result.Successful,
		Total:      result.Total,
		DryRun:     result.DryRun,
		Entries:    make([]ResultItemView, 0, len(result.Entries)),
	}
	for _, entry := range result.Entries {
		view.Entries = append(view.Entries, ResultItemView{
			Target:          entry.Target.String(),
			IssueKey:        entry.IssueKey,
			Status:          string(entry.Status),
			RemoteWorklogID: entry.RemoteWorklogID,
			ErrorMessage:    entry.ErrorMessage,
		})
	}
	return view
}
