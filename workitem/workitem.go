// Package workitem holds the shared data model: normalized activity records
// produced by source adapters, the aggregated per-day worklog view, and the
// sync-state types used by the reconciler.
package workitem

import "time"

// Source identifies the producer of an activity record.
type Source string

const (
	SourceCodingSession  Source = "coding-session"
	SourceVersionControl Source = "version-control"
	SourceManual         Source = "manual"
)

// Commit is one version-control commit attached to an activity record.
type Commit struct {
	Hash    string
	Message string
	Time    time.Time
	Author  string
}

// ActivityRecord is one normalized unit of observed work. Records are
// produced fresh by an adapter on every fetch and are not mutated afterwards.
type ActivityRecord struct {
	ID          int64
	Source      Source
	ProjectPath string
	ProjectName string
	Date        time.Time
	StartTime   time.Time
	EndTime     time.Time
	Hours       float64
	Title       string
	Description string
	Commits     []Commit
	Files       []string
}

// DateRange is an inclusive calendar-day range.
type DateRange struct {
	From time.Time
	To   time.Time
}

// WorklogDay is the aggregation root for one calendar date. Projects are
// ordered by descending total hours; manual items stay ungrouped so each can
// be synced on its own.
type WorklogDay struct {
	Date     time.Time
	Projects []ProjectDaySummary
	Manual   []ActivityRecord
}

// TotalHours sums project and manual hours for the day.
func (d WorklogDay) TotalHours() float64 {
	total := 0.0
	for _, project := range d.Projects {
		total += project.TotalHours
	}
	for _, item := range d.Manual {
		total += item.Hours
	}
	return total
}

// Empty reports whether the day carries no activity at all.
func (d WorklogDay) Empty() bool {
	return len(d.Projects) == 0 && len(d.Manual) == 0
}

// ProjectDaySummary is the derived per-project rollup for one date. It is
// recomputed on every aggregation pass and never mutated in place.
type ProjectDaySummary struct {
	ProjectPath  string
	ProjectName  string
	Date         time.Time
	TotalHours   float64
	TotalCommits int
	TotalFiles   int
	// DailySummary is pass-through text from an external summarizer; when no
	// summarizer ran it holds the locally built description.
	DailySummary string
	Records      []ActivityRecord
}
