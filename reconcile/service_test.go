package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"recap/issue"
	"recap/tempo"
	"recap/workitem"
)

type fakeStore struct {
	records map[string]workitem.SyncRecord
	upserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]workitem.SyncRecord)}
}

func (s *fakeStore) SyncRecordsByTarget() (map[string]workitem.SyncRecord, error) {
	out := make(map[string]workitem.SyncRecord, len(s.records))
	for key, record := range s.records {
		out[key] = record
	}
	return out, nil
}

func (s *fakeStore) UpsertSyncRecord(record workitem.SyncRecord) error {
	s.upserts++
	s.records[record.Target.String()] = record
	return nil
}

type fakeClient struct {
	pingErr     error
	pings       int
	submissions []workitem.SyncEntry
	submit      func(entry workitem.SyncEntry) (tempo.Worklog, error)
	blockOn     chan struct{}
	entered     chan struct{}
}

func (c *fakeClient) Ping(context.Context) (tempo.Myself, error) {
	c.pings++
	if c.pingErr != nil {
		return tempo.Myself{}, c.pingErr
	}
	return tempo.Myself{AccountID: "acc-1"}, nil
}

func (c *fakeClient) ValidateIssue(context.Context, string) (issue.Validation, error) {
	return issue.Validation{Valid: true}, nil
}

func (c *fakeClient) SubmitWorklog(_ context.Context, entry workitem.SyncEntry) (tempo.Worklog, error) {
	if c.entered != nil {
		close(c.entered)
		c.entered = nil
	}
	if c.blockOn != nil {
		<-c.blockOn
	}
	c.submissions = append(c.submissions, entry)
	if c.submit != nil {
		return c.submit(entry)
	}
	return tempo.Worklog{ID: tempo.WorklogID(fmt.Sprintf("W%d", len(c.submissions)))}, nil
}

func (c *fakeClient) ListWorklogs(context.Context, time.Time, time.Time) ([]tempo.Worklog, error) {
	return nil, nil
}

type fakeSuggester struct {
	keys map[string]string
}

func (s fakeSuggester) Suggest(projectPath, _ string) (string, bool, error) {
	key, ok := s.keys[projectPath]
	return key, ok, nil
}

func testDay(hours float64, manualHours float64) workitem.WorklogDay {
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	day := workitem.WorklogDay{Date: date}
	if hours > 0 {
		day.Projects = []workitem.ProjectDaySummary{{
			ProjectPath:  "/code/api",
			ProjectName:  "api",
			Date:         date,
			TotalHours:   hours,
			DailySummary: "API work",
		}}
	}
	if manualHours > 0 {
		day.Manual = []workitem.ActivityRecord{{
			ID:     7,
			Source: workitem.SourceManual,
			Date:   date,
			Hours:  manualHours,
			Title:  "Sprint planning",
		}}
	}
	return day
}

func newTestService(store *fakeStore, client *fakeClient, suggester Suggester) *Service {
	service := NewService(store, client, suggester)
	service.now = func() time.Time {
		return time.Date(2026, 1, 15, 18, 0, 0, 0, time.UTC)
	}
	return service
}

func TestBuildDayPlanRoundsMinutesOnce(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := newTestService(store, &fakeClient{}, fakeSuggester{keys: map[string]string{"/code/api": "PROJ-101"}})

	plan, err := service.BuildDayPlan(testDay(4.25, 1.0), false)
	if err != nil {
		t.Fatalf("BuildDayPlan() error = %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("len(plan) = %d, want 2", len(plan))
	}
	if plan[0].Hours != 4.25 || plan[0].Minutes != 255 {
		t.Errorf("project entry = %.2fh/%dm, want 4.25h/255m", plan[0].Hours, plan[0].Minutes)
	}
	if plan[1].Hours != 1.0 || plan[1].Minutes != 60 {
		t.Errorf("manual entry = %.2fh/%dm, want 1.00h/60m", plan[1].Hours, plan[1].Minutes)
	}
	if plan[0].IssueKey != "PROJ-101" {
		t.Errorf("project issue key = %q, want suggested PROJ-101", plan[0].IssueKey)
	}
}

func TestBuildDayPlanSkipsSyncedTargets(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	syncedAt := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	day := testDay(4.25, 1.0)
	projectTarget := workitem.ProjectTarget("/code/api", day.Date)
	store.records[projectTarget.String()] = workitem.SyncRecord{
		Target:   projectTarget,
		IssueKey: "PROJ-101",
		SyncedAt: &syncedAt,
	}

	service := newTestService(store, &fakeClient{}, nil)

	plan, err := service.BuildDayPlan(day, false)
	if err != nil {
		t.Fatalf("BuildDayPlan() error = %v", err)
	}
	if len(plan) != 1 {
		t.Fatalf("len(plan) = %d, want 1 (synced project skipped)", len(plan))
	}
	if !plan[0].Target.IsManual() {
		t.Errorf("remaining entry = %s, want the manual item", plan[0].Target.String())
	}

	forced, err := service.BuildDayPlan(day, true)
	if err != nil {
		t.Fatalf("BuildDayPlan(force) error = %v", err)
	}
	if len(forced) != 2 {
		t.Fatalf("forced len(plan) = %d, want 2", len(forced))
	}
}

func TestBuildWeekPlanSkipsSyncedDay(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	syncedAt := time.Date(2026, 1, 14, 19, 0, 0, 0, time.UTC)

	days := make([]workitem.WorklogDay, 0, 7)
	monday := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		date := monday.AddDate(0, 0, i)
		days = append(days, workitem.WorklogDay{
			Date: date,
			Projects: []workitem.ProjectDaySummary{{
				ProjectPath: "/code/api",
				ProjectName: "api",
				Date:        date,
				TotalHours:  2.0,
			}},
		})
	}

	// Day 3 of the week is already confirmed.
	dayThree := workitem.ProjectTarget("/code/api", days[2].Date)
	store.records[dayThree.String()] = workitem.SyncRecord{
		Target:   dayThree,
		IssueKey: "PROJ-101",
		SyncedAt: &syncedAt,
	}

	service := newTestService(store, &fakeClient{}, fakeSuggester{keys: map[string]string{"/code/api": "PROJ-101"}})

	plan, err := service.BuildWeekPlan(days, false)
	if err != nil {
		t.Fatalf("BuildWeekPlan() error = %v", err)
	}
	if len(plan) != 6 {
		t.Fatalf("len(plan) = %d, want 6", len(plan))
	}
	for _, entry := range plan {
		if entry.Date.Equal(days[2].Date) {
			t.Errorf("plan includes already synced day %s", entry.Date.Format("2006-01-02"))
		}
	}
}

func TestExecuteEmptyPlanShortCircuits(t *testing.T) {
	t.Parallel()

	client := &fakeClient{pingErr: errors.New("no network expected")}
	service := newTestService(newFakeStore(), client, nil)

	result, err := service.Execute(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Total != 0 || result.Successful != 0 {
		t.Errorf("result = %+v, want empty success", result)
	}
	if client.pings != 0 {
		t.Errorf("pings = %d, want 0 for empty plan", client.pings)
	}
}

func TestExecuteRejectsMissingIssueKey(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	service := newTestService(newFakeStore(), client, nil)

	plan := []workitem.SyncEntry{{
		Target:  workitem.ManualTarget(7),
		Date:    time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Minutes: 60,
	}}
	if _, err := service.Execute(context.Background(), plan, false); err == nil {
		t.Fatal("Execute() error = nil for entry without issue key")
	}
	if len(client.submissions) != 0 {
		t.Errorf("submissions = %d, want 0 before precondition failure", len(client.submissions))
	}
}

func TestExecuteDryRunIsPure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	client := &fakeClient{pingErr: errors.New("dry run must not touch the network")}
	service := newTestService(store, client, fakeSuggester{keys: map[string]string{"/code/api": "PROJ-101"}})

	result, err := service.SyncDay(context.Background(), testDay(4.25, 0), true, false)
	if err != nil {
		t.Fatalf("SyncDay(dry-run) error = %v", err)
	}
	if !result.DryRun {
		t.Error("result.DryRun = false")
	}
	if len(result.Entries) != 1 || result.Entries[0].Status != workitem.StatusPending {
		t.Fatalf("entries = %+v, want one pending preview", result.Entries)
	}
	if store.upserts != 0 {
		t.Errorf("store upserts = %d, want 0 after dry run", store.upserts)
	}
	if client.pings != 0 || len(client.submissions) != 0 {
		t.Errorf("network calls made during dry run: pings=%d submissions=%d", client.pings, len(client.submissions))
	}
	if service.Version() != 0 {
		t.Errorf("Version() = %d, want 0 after dry run", service.Version())
	}
}

func TestExecuteTransportErrorLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	client := &fakeClient{pingErr: errors.New("connection refused")}
	service := newTestService(store, client, fakeSuggester{keys: map[string]string{"/code/api": "PROJ-101"}})

	_, err := service.SyncDay(context.Background(), testDay(4.25, 0), false, false)
	if err == nil {
		t.Fatal("SyncDay() error = nil, want transport failure")
	}
	if len(client.submissions) != 0 {
		t.Errorf("submissions = %d, want 0 after failed preflight", len(client.submissions))
	}
	if store.upserts != 0 {
		t.Errorf("store upserts = %d, want 0", store.upserts)
	}
}

func TestExecutePartialFailureIsolation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	client := &fakeClient{submit: func(entry workitem.SyncEntry) (tempo.Worklog, error) {
		if entry.IssueKey == "BAD-1" {
			return tempo.Worklog{}, errors.New("invalid issue")
		}
		return tempo.Worklog{ID: "W1"}, nil
	}}
	service := newTestService(store, client, nil)

	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	plan := []workitem.SyncEntry{
		{Target: workitem.ProjectTarget("/code/api", date), IssueKey: "PROJ-101", Date: date, Hours: 4.25, Minutes: 255},
		{Target: workitem.ManualTarget(7), IssueKey: "BAD-1", Date: date, Hours: 1.0, Minutes: 60},
	}

	result, err := service.Execute(context.Background(), plan, false)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Successful != 1 || result.Total != 2 {
		t.Fatalf("result = %d/%d, want 1/2", result.Successful, result.Total)
	}
	if result.Entries[0].Status != workitem.StatusSuccess || result.Entries[0].RemoteWorklogID != "W1" {
		t.Errorf("first entry = %+v, want success with W1", result.Entries[0])
	}
	if result.Entries[1].Status != workitem.StatusError || result.Entries[1].ErrorMessage == "" {
		t.Errorf("second entry = %+v, want error with message", result.Entries[1])
	}

	if len(store.records) != 1 {
		t.Fatalf("len(records) = %d, want exactly 1", len(store.records))
	}
	record := store.records[plan[0].Target.String()]
	if record.RemoteWorklogID != "W1" || !record.Synced() {
		t.Errorf("record = %+v, want confirmed W1", record)
	}
	if _, ok := store.records[plan[1].Target.String()]; ok {
		t.Error("failed entry gained a sync record")
	}
	if service.Version() != 1 {
		t.Errorf("Version() = %d, want 1", service.Version())
	}
}

func TestSyncDayThenReplanIsNoOp(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	client := &fakeClient{}
	service := newTestService(store, client, fakeSuggester{keys: map[string]string{"/code/api": "PROJ-101"}})
	day := testDay(4.25, 1.0)

	// The manual item has a remembered issue key from an earlier session.
	manualTarget := workitem.ManualTarget(7)
	store.records[manualTarget.String()] = workitem.SyncRecord{Target: manualTarget, IssueKey: "OPS-3"}

	result, err := service.SyncDay(context.Background(), day, false, false)
	if err != nil {
		t.Fatalf("SyncDay() error = %v", err)
	}
	if result.Successful != 2 || result.Total != 2 {
		t.Fatalf("result = %d/%d, want 2/2", result.Successful, result.Total)
	}
	for _, record := range store.records {
		if !record.Synced() {
			t.Errorf("record %s not confirmed", record.Target.String())
		}
	}

	plan, err := service.BuildDayPlan(day, false)
	if err != nil {
		t.Fatalf("BuildDayPlan() error = %v", err)
	}
	if len(plan) != 0 {
		t.Fatalf("second plan has %d entries, want 0", len(plan))
	}
}

func TestForcedResyncUpdatesRecord(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	client := &fakeClient{submit: func(workitem.SyncEntry) (tempo.Worklog, error) {
		return tempo.Worklog{ID: "W2"}, nil
	}}
	service := newTestService(store, client, fakeSuggester{keys: map[string]string{"/code/api": "PROJ-101"}})
	day := testDay(4.25, 0)

	target := workitem.ProjectTarget("/code/api", day.Date)
	earlier := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	store.records[target.String()] = workitem.SyncRecord{
		Target:          target,
		IssueKey:        "PROJ-101",
		SyncedAt:        &earlier,
		RemoteWorklogID: "W1",
	}

	unrelated := workitem.ManualTarget(99)
	store.records[unrelated.String()] = workitem.SyncRecord{Target: unrelated, IssueKey: "OPS-9"}

	result, err := service.SyncDay(context.Background(), day, false, true)
	if err != nil {
		t.Fatalf("SyncDay(force) error = %v", err)
	}
	if result.Successful != 1 {
		t.Fatalf("Successful = %d, want 1", result.Successful)
	}

	record := store.records[target.String()]
	if record.RemoteWorklogID != "W2" {
		t.Errorf("RemoteWorklogID = %q, want W2", record.RemoteWorklogID)
	}
	if record.SyncedAt == nil || !record.SyncedAt.After(earlier) {
		t.Errorf("SyncedAt = %v, want later than %v", record.SyncedAt, earlier)
	}
	if len(store.records) != 2 {
		t.Errorf("len(records) = %d, want 2 (unrelated record untouched)", len(store.records))
	}
}

func TestExecuteSingleFlight(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	client := &fakeClient{blockOn: make(chan struct{}), entered: make(chan struct{})}
	entered := client.entered
	service := newTestService(store, client, nil)

	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	plan := []workitem.SyncEntry{{
		Target:   workitem.ProjectTarget("/code/api", date),
		IssueKey: "PROJ-101",
		Date:     date,
		Hours:    1,
		Minutes:  60,
	}}

	done := make(chan error, 1)
	go func() {
		_, err := service.Execute(context.Background(), plan, false)
		done <- err
	}()

	// The first execution holds the permit once it reaches submission.
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first Execute never reached submission")
	}

	if _, err := service.Execute(context.Background(), plan, false); !errors.Is(err, ErrSyncInFlight) {
		t.Fatalf("second Execute() error = %v, want ErrSyncInFlight", err)
	}

	close(client.blockOn)
	if err := <-done; err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}

	if _, err := service.Execute(context.Background(), nil, false); err != nil {
		t.Fatalf("Execute() after release error = %v", err)
	}
}

func TestSyncSingleFillsMinutes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	client := &fakeClient{}
	service := newTestService(store, client, nil)

	entry := workitem.SyncEntry{
		Target:   workitem.ManualTarget(7),
		IssueKey: "OPS-3",
		Date:     time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Hours:    1.505,
	}
	result, err := service.SyncSingle(context.Background(), entry, false)
	if err != nil {
		t.Fatalf("SyncSingle() error = %v", err)
	}
	if result.Successful != 1 {
		t.Fatalf("Successful = %d, want 1", result.Successful)
	}
	if len(client.submissions) != 1 || client.submissions[0].Minutes != 90 {
		t.Errorf("submitted minutes = %+v, want 90", client.submissions)
	}
}
