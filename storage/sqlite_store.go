package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"recap/internal/timeutil"
	"recap/workitem"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable local state: one sync record per sync target
// (the system of record for "has this already been pushed") plus the manual
// work items backing the manual-entry source adapter.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS sync_records (
	target TEXT PRIMARY KEY,
	project_path TEXT NOT NULL DEFAULT '',
	issue_key TEXT NOT NULL DEFAULT '',
	synced_at TEXT,
	remote_worklog_id TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS manual_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	hours REAL NOT NULL CHECK(hours >= 0),
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	issue_key TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sync_records_project ON sync_records(project_path, synced_at);
CREATE INDEX IF NOT EXISTS idx_manual_items_date ON manual_items(date);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// GetSyncRecord returns the record for the exact target key. The second
// return value is false when no record exists ("never attempted").
func (s *SQLiteStore) GetSyncRecord(target workitem.SyncTarget) (workitem.SyncRecord, bool, error) {
	const query = `
SELECT target, issue_key, synced_at, remote_worklog_id
FROM sync_records
WHERE target = ?;
`
	row := s.db.QueryRow(query, target.String())
	record, err := scanSyncRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workitem.SyncRecord{}, false, nil
		}
		return workitem.SyncRecord{}, false, fmt.Errorf("query sync record %q: %w", target.String(), err)
	}
	return record, true, nil
}

// ListSyncRecords returns every persisted record, ordered by target key.
func (s *SQLiteStore) ListSyncRecords() ([]workitem.SyncRecord, error) {
	const query = `
SELECT target, issue_key, synced_at, remote_worklog_id
FROM sync_records
ORDER BY target;
`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query sync records: %w", err)
	}
	defer rows.Close()

	records := make([]workitem.SyncRecord, 0, 64)
	for rows.Next() {
		record, err := scanSyncRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync records: %w", err)
	}
	return records, nil
}

// SyncRecordsByTarget returns all records keyed by their canonical target
// string, the shape plan builders consume.
func (s *SQLiteStore) SyncRecordsByTarget() (map[string]workitem.SyncRecord, error) {
	records, err := s.ListSyncRecords()
	if err != nil {
		return nil, err
	}
	out := make(map[string]workitem.SyncRecord, len(records))
	for _, record := range records {
		out[record.Target.String()] = record
	}
	return out, nil
}

// UpsertSyncRecord creates or replaces the record for its target. A confirmed
// sync overwrites any earlier state for the same target.
func (s *SQLiteStore) UpsertSyncRecord(record workitem.SyncRecord) error {
	const stmt = `
INSERT INTO sync_records (target, project_path, issue_key, synced_at, remote_worklog_id, updated_at)
VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(target) DO UPDATE SET
	issue_key = excluded.issue_key,
	synced_at = excluded.synced_at,
	remote_worklog_id = excluded.remote_worklog_id,
	updated_at = CURRENT_TIMESTAMP;
`
	var syncedAt any
	if record.SyncedAt != nil {
		syncedAt = record.SyncedAt.Format(time.RFC3339)
	}

	if _, err := s.db.Exec(
		stmt,
		record.Target.String(),
		record.Target.ProjectPath,
		strings.TrimSpace(record.IssueKey),
		syncedAt,
		strings.TrimSpace(record.RemoteWorklogID),
	); err != nil {
		return fmt.Errorf("upsert sync record %q: %w", record.Target.String(), err)
	}
	return nil
}

// RememberIssueKey stores an issue key for a target without marking it
// synced. An existing confirmed sync keeps its synced_at and worklog id.
func (s *SQLiteStore) RememberIssueKey(target workitem.SyncTarget, issueKey string) error {
	issueKey = strings.TrimSpace(issueKey)
	if issueKey == "" {
		return fmt.Errorf("issue key is required")
	}

	const stmt = `
INSERT INTO sync_records (target, project_path, issue_key, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(target) DO UPDATE SET
	issue_key = excluded.issue_key,
	updated_at = CURRENT_TIMESTAMP;
`
	if _, err := s.db.Exec(stmt, target.String(), target.ProjectPath, issueKey); err != nil {
		return fmt.Errorf("remember issue key for %q: %w", target.String(), err)
	}
	return nil
}

// LatestIssueKeyForProject returns the issue key of the most recently updated
// record for the project, if any. Used as the suggestion fallback when no
// config rule matches.
func (s *SQLiteStore) LatestIssueKeyForProject(projectPath string) (string, bool, error) {
	const query = `
SELECT issue_key
FROM sync_records
WHERE project_path = ? AND issue_key != ''
ORDER BY updated_at DESC, target DESC
LIMIT 1;
`
	var issueKey string
	err := s.db.QueryRow(query, projectPath).Scan(&issueKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query latest issue key for %q: %w", projectPath, err)
	}
	return issueKey, true, nil
}

// InsertManualItem stores one manually entered work item and returns its ID.
func (s *SQLiteStore) InsertManualItem(item workitem.ActivityRecord) (int64, error) {
	if item.Hours < 0 {
		return 0, fmt.Errorf("manual item hours must be >= 0")
	}
	if strings.TrimSpace(item.Title) == "" {
		return 0, fmt.Errorf("manual item title is required")
	}

	const stmt = `
INSERT INTO manual_items (date, hours, title, description, issue_key)
VALUES (?, ?, ?, ?, ?);
`
	res, err := s.db.Exec(
		stmt,
		timeutil.DayKey(item.Date),
		item.Hours,
		strings.TrimSpace(item.Title),
		strings.TrimSpace(item.Description),
		"",
	)
	if err != nil {
		return 0, fmt.Errorf("insert manual item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted manual item id: %w", err)
	}
	return id, nil
}

// ListManualItems returns manual items in the inclusive day range as
// normalized activity records with Source set to manual.
func (s *SQLiteStore) ListManualItems(from, to time.Time) ([]workitem.ActivityRecord, error) {
	const query = `
SELECT id, date, hours, title, description
FROM manual_items
WHERE date >= ? AND date <= ?
ORDER BY date, id;
`
	rows, err := s.db.Query(query, timeutil.DayKey(from), timeutil.DayKey(to))
	if err != nil {
		return nil, fmt.Errorf("query manual items: %w", err)
	}
	defer rows.Close()

	items := make([]workitem.ActivityRecord, 0, 16)
	for rows.Next() {
		var (
			item    workitem.ActivityRecord
			dateRaw string
		)
		if err := rows.Scan(&item.ID, &dateRaw, &item.Hours, &item.Title, &item.Description); err != nil {
			return nil, fmt.Errorf("scan manual item: %w", err)
		}
		item.Date, err = timeutil.ParseDay(dateRaw)
		if err != nil {
			return nil, fmt.Errorf("parse manual item date %q: %w", dateRaw, err)
		}
		item.Source = workitem.SourceManual
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate manual items: %w", err)
	}
	return items, nil
}

// DeleteManualItem removes one manual item.
func (s *SQLiteStore) DeleteManualItem(id int64) (bool, error) {
	if id <= 0 {
		return false, fmt.Errorf("manual item id must be > 0")
	}

	res, err := s.db.Exec(`DELETE FROM manual_items WHERE id = ?;`, id)
	if err != nil {
		return false, fmt.Errorf("delete manual item %d: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read deleted row count: %w", err)
	}
	return rowsAffected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncRecord(row rowScanner) (workitem.SyncRecord, error) {
	var (
		targetRaw   string
		issueKey    string
		syncedAtRaw sql.NullString
		worklogID   string
	)
	if err := row.Scan(&targetRaw, &issueKey, &syncedAtRaw, &worklogID); err != nil {
		return workitem.SyncRecord{}, err
	}

	target, err := workitem.ParseSyncTarget(targetRaw)
	if err != nil {
		return workitem.SyncRecord{}, fmt.Errorf("stored target %q: %w", targetRaw, err)
	}

	record := workitem.SyncRecord{
		Target:          target,
		IssueKey:        issueKey,
		RemoteWorklogID: worklogID,
	}
	if syncedAtRaw.Valid && strings.TrimSpace(syncedAtRaw.String) != "" {
		syncedAt, err := time.Parse(time.RFC3339, syncedAtRaw.String)
		if err != nil {
			return workitem.SyncRecord{}, fmt.Errorf("parse synced_at %q: %w", syncedAtRaw.String, err)
		}
		record.SyncedAt = &syncedAt
	}
	return record, nil
}
