// Package reconcile turns "what should be synced" into "what was actually
// synced": it builds sync plans from aggregated worklog days and the current
// sync-record state, executes them against the remote tracker, and writes
// back confirmed results.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"recap/tempo"
	"recap/workitem"
)

// ErrSyncInFlight is returned when a plan execution is requested while
// another one still holds the single sync permit.
var ErrSyncInFlight = errors.New("a sync is already in progress")

// Store is the slice of the storage layer the reconciler needs.
type Store interface {
	SyncRecordsByTarget() (map[string]workitem.SyncRecord, error)
	UpsertSyncRecord(record workitem.SyncRecord) error
}

// Suggester proposes issue keys for plan entries that have none persisted.
type Suggester interface {
	Suggest(projectPath, projectName string) (string, bool, error)
}

// Service owns the single-flight sync state machine. All plan executions go
// through Execute, which holds the one sync permit from plan validation until
// results are applied.
type Service struct {
	store     Store
	client    tempo.Client
	suggester Suggester

	permit  chan struct{}
	now     func() time.Time
	version atomic.Int64
}

func NewService(store Store, client tempo.Client, suggester Suggester) *Service {
	return &Service{
		store:     store,
		client:    client,
		suggester: suggester,
		permit:    make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Version returns a token that changes whenever sync-record state changes.
// Consumers poll it and re-fetch data when it moves.
func (s *Service) Version() int64 {
	return s.version.Load()
}

// MinutesForHours converts local decimal hours to the remote system's whole
// minutes. The conversion happens once, at plan construction; the aggregated
// hours themselves are never mutated.
func MinutesForHours(hours float64) int {
	return int(math.Round(hours * 60))
}

// BuildDayPlan returns one entry per project summary plus one per manual item
// for the day. Targets with a confirmed sync are excluded unless force is
// set; entries that round to zero minutes are always excluded since the
// remote system cannot represent them.
func (s *Service) BuildDayPlan(day workitem.WorklogDay, force bool) ([]workitem.SyncEntry, error) {
	records, err := s.store.SyncRecordsByTarget()
	if err != nil {
		return nil, fmt.Errorf("load sync records: %w", err)
	}
	return s.buildDayEntries(day, records, force)
}

// BuildWeekPlan concatenates day plans across the given days. Each entry
// carries its originating date, so entries for the same project on different
// days stay distinguishable.
func (s *Service) BuildWeekPlan(days []workitem.WorklogDay, force bool) ([]workitem.SyncEntry, error) {
	records, err := s.store.SyncRecordsByTarget()
	if err != nil {
		return nil, fmt.Errorf("load sync records: %w", err)
	}

	plan := make([]workitem.SyncEntry, 0, len(days)*2)
	for _, day := range days {
		entries, err := s.buildDayEntries(day, records, force)
		if err != nil {
			return nil, err
		}
		plan = append(plan, entries...)
	}
	return plan, nil
}

func (s *Service) buildDayEntries(day workitem.WorklogDay, records map[string]workitem.SyncRecord, force bool) ([]workitem.SyncEntry, error) {
	entries := make([]workitem.SyncEntry, 0, len(day.Projects)+len(day.Manual))

	for _, project := range day.Projects {
		target := workitem.ProjectTarget(project.ProjectPath, day.Date)
		record, known := records[target.String()]
		if known && record.Synced() && !force {
			continue
		}
		minutes := MinutesForHours(project.TotalHours)
		if minutes <= 0 {
			continue
		}

		issueKey := record.IssueKey
		if issueKey == "" && s.suggester != nil {
			suggested, found, err := s.suggester.Suggest(project.ProjectPath, project.ProjectName)
			if err != nil {
				return nil, fmt.Errorf("suggest issue key for %q: %w", project.ProjectPath, err)
			}
			if found {
				issueKey = suggested
			}
		}

		entries = append(entries, workitem.SyncEntry{
			Target:      target,
			IssueKey:    issueKey,
			Date:        day.Date,
			Hours:       project.TotalHours,
			Minutes:     minutes,
			Description: project.DailySummary,
		})
	}

	for _, item := range day.Manual {
		target := workitem.ManualTarget(item.ID)
		record, known := records[target.String()]
		if known && record.Synced() && !force {
			continue
		}
		minutes := MinutesForHours(item.Hours)
		if minutes <= 0 {
			continue
		}

		description := item.Title
		if item.Description != "" {
			description += "\n" + item.Description
		}

		entries = append(entries, workitem.SyncEntry{
			Target:      target,
			IssueKey:    record.IssueKey,
			Date:        day.Date,
			Hours:       item.Hours,
			Minutes:     minutes,
			Description: description,
		})
	}

	return entries, nil
}

// Execute runs one plan. In dry-run mode no network call is made and no
// record is written; the result previews every entry as pending. In commit
// mode entries are submitted sequentially with independent outcomes, and each
// confirmed success is written to the store immediately so a later failure
// never loses an acknowledged remote write.
//
// Connectivity is checked before the first submission. Once submissions have
// begun, failures are entry-level only.
func (s *Service) Execute(ctx context.Context, plan []workitem.SyncEntry, dryRun bool) (*workitem.SyncResult, error) {
	select {
	case s.permit <- struct{}{}:
	default:
		return nil, ErrSyncInFlight
	}
	defer func() { <-s.permit }()

	result := &workitem.SyncResult{
		Entries: make([]workitem.EntryResult, 0, len(plan)),
		Total:   len(plan),
		DryRun:  dryRun,
	}
	if len(plan) == 0 {
		return result, nil
	}

	for _, entry := range plan {
		if strings.TrimSpace(entry.IssueKey) == "" {
			return nil, fmt.Errorf("entry %s has no issue key", entry.Target.String())
		}
		if entry.Minutes <= 0 {
			return nil, fmt.Errorf("entry %s has no time to log", entry.Target.String())
		}
	}

	if dryRun {
		for _, entry := range plan {
			result.Entries = append(result.Entries, workitem.EntryResult{
				Target:   entry.Target,
				IssueKey: entry.IssueKey,
				Status:   workitem.StatusPending,
			})
		}
		return result, nil
	}

	if _, err := s.client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("remote tracker unreachable: %w", err)
	}

	changed := false
	for _, entry := range plan {
		worklog, err := s.client.SubmitWorklog(ctx, entry)
		if err != nil {
			result.Entries = append(result.Entries, workitem.EntryResult{
				Target:       entry.Target,
				IssueKey:     entry.IssueKey,
				Status:       workitem.StatusError,
				ErrorMessage: err.Error(),
			})
			continue
		}

		syncedAt := s.now()
		record := workitem.SyncRecord{
			Target:          entry.Target,
			IssueKey:        entry.IssueKey,
			SyncedAt:        &syncedAt,
			RemoteWorklogID: worklog.ID.String(),
		}
		if err := s.store.UpsertSyncRecord(record); err != nil {
			return nil, fmt.Errorf("record confirmed sync for %s: %w", entry.Target.String(), err)
		}
		changed = true

		result.Entries = append(result.Entries, workitem.EntryResult{
			Target:          entry.Target,
			IssueKey:        entry.IssueKey,
			Status:          workitem.StatusSuccess,
			RemoteWorklogID: worklog.ID.String(),
		})
		result.Successful++
	}

	if changed {
		s.version.Add(1)
	}
	return result, nil
}

// SyncDay builds and executes the plan for one day.
func (s *Service) SyncDay(ctx context.Context, day workitem.WorklogDay, dryRun, force bool) (*workitem.SyncResult, error) {
	plan, err := s.BuildDayPlan(day, force)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, plan, dryRun)
}

// SyncWeek builds and executes the plan for a range of days.
func (s *Service) SyncWeek(ctx context.Context, days []workitem.WorklogDay, dryRun, force bool) (*workitem.SyncResult, error) {
	plan, err := s.BuildWeekPlan(days, force)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, plan, dryRun)
}

// SyncSingle executes a one-entry plan for a single target. The skip filter
// does not apply; the caller decided to sync exactly this entry.
func (s *Service) SyncSingle(ctx context.Context, entry workitem.SyncEntry, dryRun bool) (*workitem.SyncResult, error) {
	if entry.Minutes <= 0 {
		entry.Minutes = MinutesForHours(entry.Hours)
	}
	return s.Execute(ctx, []workitem.SyncEntry{entry}, dryRun)
}
