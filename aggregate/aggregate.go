// Package aggregate turns normalized activity records into the canonical
// per-day, per-project worklog view. Aggregation is pure: it reads records,
// produces derived summaries, and never mutates its input.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"recap/internal/timeutil"
	"recap/workitem"
)

// Aggregate buckets records by calendar date and, within a date, by project
// path. Manual records stay ungrouped so each can be synced on its own. Every
// day in the range appears in the output, including days without any records,
// so callers can render "no work recorded" without special-casing.
func Aggregate(records []workitem.ActivityRecord, rng workitem.DateRange) []workitem.WorklogDay {
	days := timeutil.DaysInRange(rng.From, rng.To)
	byDay := make(map[string][]workitem.ActivityRecord, len(days))
	for _, record := range records {
		key := timeutil.DayKey(record.Date)
		byDay[key] = append(byDay[key], record)
	}

	out := make([]workitem.WorklogDay, 0, len(days))
	for _, day := range days {
		out = append(out, aggregateDay(day, byDay[timeutil.DayKey(day)]))
	}
	return out
}

func aggregateDay(day time.Time, records []workitem.ActivityRecord) workitem.WorklogDay {
	result := workitem.WorklogDay{Date: day}
	if len(records) == 0 {
		return result
	}

	byProject := make(map[string][]workitem.ActivityRecord)
	for _, record := range records {
		if record.Source == workitem.SourceManual {
			result.Manual = append(result.Manual, record)
			continue
		}
		byProject[record.ProjectPath] = append(byProject[record.ProjectPath], record)
	}

	sort.Slice(result.Manual, func(i, j int) bool {
		return result.Manual[i].ID < result.Manual[j].ID
	})

	for path, projectRecords := range byProject {
		summary := workitem.ProjectDaySummary{
			ProjectPath: path,
			ProjectName: projectRecords[0].ProjectName,
			Date:        day,
			Records:     append([]workitem.ActivityRecord(nil), projectRecords...),
		}

		files := make(map[string]struct{})
		for _, record := range projectRecords {
			summary.TotalHours += record.Hours
			summary.TotalCommits += len(record.Commits)
			if summary.ProjectName == "" {
				summary.ProjectName = record.ProjectName
			}
			for _, file := range record.Files {
				files[file] = struct{}{}
			}
		}
		summary.TotalFiles = len(files)
		summary.DailySummary = BuildProjectDescription(summary)

		result.Projects = append(result.Projects, summary)
	}

	sort.Slice(result.Projects, func(i, j int) bool {
		if result.Projects[i].TotalHours == result.Projects[j].TotalHours {
			return result.Projects[i].ProjectName < result.Projects[j].ProjectName
		}
		return result.Projects[i].TotalHours > result.Projects[j].TotalHours
	})

	return result
}

// ApplySummaries overrides the pass-through daily summary for matching
// targets. Summaries are keyed by the project target's canonical string.
func ApplySummaries(days []workitem.WorklogDay, summaries map[string]string) {
	if len(summaries) == 0 {
		return
	}
	for di := range days {
		for pi := range days[di].Projects {
			project := &days[di].Projects[pi]
			key := workitem.ProjectTarget(project.ProjectPath, project.Date).String()
			if text, ok := summaries[key]; ok && strings.TrimSpace(text) != "" {
				project.DailySummary = text
			}
		}
	}
}

// ProjectOverview is the project-centric reading of the same grouped
// structure, ordered by most recent activity for project-overview views.
type ProjectOverview struct {
	ProjectPath string
	ProjectName string
	LastActive  time.Time
	TotalHours  float64
	ActiveDays  int
}

// ProjectsByRecentActivity derives the overview ordering from already
// aggregated days without re-bucketing the raw records.
func ProjectsByRecentActivity(days []workitem.WorklogDay) []ProjectOverview {
	byPath := make(map[string]*ProjectOverview)
	order := make([]string, 0)

	for _, day := range days {
		for _, project := range day.Projects {
			overview, ok := byPath[project.ProjectPath]
			if !ok {
				overview = &ProjectOverview{
					ProjectPath: project.ProjectPath,
					ProjectName: project.ProjectName,
				}
				byPath[project.ProjectPath] = overview
				order = append(order, project.ProjectPath)
			}
			overview.TotalHours += project.TotalHours
			overview.ActiveDays++
			if project.Date.After(overview.LastActive) {
				overview.LastActive = project.Date
			}
		}
	}

	out := make([]ProjectOverview, 0, len(order))
	for _, path := range order {
		out = append(out, *byPath[path])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActive.Equal(out[j].LastActive) {
			return out[i].ProjectName < out[j].ProjectName
		}
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out
}

// DaysWorked counts days with at least one record carrying positive hours.
// Zero-hour records are retained in the view but do not count as worked days.
func DaysWorked(days []workitem.WorklogDay) int {
	count := 0
	for _, day := range days {
		if dayHasWork(day) {
			count++
		}
	}
	return count
}

func dayHasWork(day workitem.WorklogDay) bool {
	for _, project := range day.Projects {
		if project.TotalHours > 0 {
			return true
		}
	}
	for _, item := range day.Manual {
		if item.Hours > 0 {
			return true
		}
	}
	return false
}

// BuildProjectDescription renders the default textual summary for one
// project-day: commits first, then session titles, then touched files.
func BuildProjectDescription(summary workitem.ProjectDaySummary) string {
	parts := make([]string, 0, 4)

	commits := make([]workitem.Commit, 0, summary.TotalCommits)
	for _, record := range summary.Records {
		commits = append(commits, record.Commits...)
	}
	if len(commits) > 0 {
		lines := make([]string, 0, len(commits))
		for _, commit := range commits {
			if len(lines) == 15 {
				break
			}
			lines = append(lines, fmt.Sprintf("  - %s %s", shortHash(commit.Hash), commit.Message))
		}
		header := fmt.Sprintf("Commits (%d)", len(commits))
		if len(commits) > 15 {
			header = fmt.Sprintf("Commits (%d, first 15)", len(commits))
		}
		parts = append(parts, header+"\n"+strings.Join(lines, "\n"))
	}

	parts = append(parts, fmt.Sprintf(
		"Sessions: %d, total %.2fh", len(summary.Records), summary.TotalHours,
	))

	titles := make([]string, 0, 5)
	for _, record := range summary.Records {
		title := strings.TrimSpace(record.Title)
		if title == "" || len(titles) == 5 {
			continue
		}
		titles = append(titles, "  - "+truncate(title, 80))
	}
	if len(titles) > 0 {
		parts = append(parts, "Tasks:\n"+strings.Join(titles, "\n"))
	}

	files := uniqueFiles(summary.Records)
	if len(files) > 0 {
		shown := files
		suffix := ""
		if len(files) > 8 {
			shown = files[:8]
			suffix = fmt.Sprintf(" (+%d more)", len(files)-8)
		}
		parts = append(parts, fmt.Sprintf("Files (%d)%s\n  %s", len(files), suffix, strings.Join(shown, "\n  ")))
	}

	return strings.Join(parts, "\n\n")
}

func uniqueFiles(records []workitem.ActivityRecord) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, record := range records {
		for _, file := range record.Files {
			if _, ok := seen[file]; ok {
				continue
			}
			seen[file] = struct{}{}
			out = append(out, file)
		}
	}
	sort.Strings(out)
	return out
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
