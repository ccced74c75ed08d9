package workitem

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	manualTargetPrefix = "manual:"
	targetDayLayout    = "2006-01-02"
)

// SyncTarget identifies one syncable unit: a (projectPath, date) pair or a
// single manual item. Its string form is the idempotency key the sync-record
// store is keyed by.
type SyncTarget struct {
	ProjectPath  string
	Date         time.Time
	ManualItemID int64
}

// ProjectTarget builds the target for a project's aggregated day entry.
func ProjectTarget(projectPath string, date time.Time) SyncTarget {
	return SyncTarget{ProjectPath: projectPath, Date: date}
}

// ManualTarget builds the target for one manual item.
func ManualTarget(itemID int64) SyncTarget {
	return SyncTarget{ManualItemID: itemID}
}

// IsManual reports whether the target addresses a manual item.
func (t SyncTarget) IsManual() bool {
	return t.ManualItemID > 0
}

// String returns the canonical key form: "<projectPath>|<YYYY-MM-DD>" for
// project targets and "manual:<id>" for manual items.
func (t SyncTarget) String() string {
	if t.IsManual() {
		return manualTargetPrefix + strconv.FormatInt(t.ManualItemID, 10)
	}
	return t.ProjectPath + "|" + t.Date.Format(targetDayLayout)
}

// ParseSyncTarget parses the canonical key form back into a SyncTarget.
func ParseSyncTarget(value string) (SyncTarget, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return SyncTarget{}, fmt.Errorf("sync target is empty")
	}

	if strings.HasPrefix(value, manualTargetPrefix) {
		raw := strings.TrimPrefix(value, manualTargetPrefix)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return SyncTarget{}, fmt.Errorf("invalid manual item id in target %q", value)
		}
		return ManualTarget(id), nil
	}

	sep := strings.LastIndex(value, "|")
	if sep <= 0 || sep == len(value)-1 {
		return SyncTarget{}, fmt.Errorf("invalid sync target %q (expected <projectPath>|<YYYY-MM-DD>)", value)
	}

	day, err := time.ParseInLocation(targetDayLayout, value[sep+1:], time.Local)
	if err != nil {
		return SyncTarget{}, fmt.Errorf("invalid date in sync target %q: %w", value, err)
	}
	return ProjectTarget(value[:sep], day), nil
}

// SyncRecord is the persisted sync state for one target. It is created on the
// first successful sync (or when an issue key is remembered ahead of syncing)
// and updated on resubmission; it is never implicitly deleted. A record with
// nil SyncedAt means "known but not yet synced", which is distinct from "no
// record at all".
type SyncRecord struct {
	Target          SyncTarget
	IssueKey        string
	SyncedAt        *time.Time
	RemoteWorklogID string
}

// Synced reports whether the target has a confirmed remote write.
func (r SyncRecord) Synced() bool {
	return r.SyncedAt != nil
}

// SyncEntry is one unit of an ephemeral, request-scoped sync plan. Hours stay
// unrounded; Minutes carries the one-way conversion used at the submission
// boundary.
type SyncEntry struct {
	Target      SyncTarget
	IssueKey    string
	Date        time.Time
	Hours       float64
	Minutes     int
	Description string
}

// EntryStatus is the per-entry outcome of a plan execution.
type EntryStatus string

const (
	StatusSuccess EntryStatus = "success"
	StatusError   EntryStatus = "error"
	// StatusPending marks dry-run preview entries that were never submitted.
	StatusPending EntryStatus = "pending"
)

// EntryResult is the outcome for a single plan entry.
type EntryResult struct {
	Target          SyncTarget
	IssueKey        string
	Status          EntryStatus
	RemoteWorklogID string
	ErrorMessage    string
}

// SyncResult is the outcome of one executed plan.
type SyncResult struct {
	Entries    []EntryResult
	Successful int
	Total      int
	DryRun     bool
}
