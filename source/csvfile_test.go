package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"recap/workitem"
)

func writeActivityCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv fixture: %v", err)
	}
	return path
}

func TestCSVFileAdapterReadsNormalizedRecords(t *testing.T) {
	t.Parallel()

	path := writeActivityCSV(t, strings.Join([]string{
		"Date,Source,Project_Path,Project_Name,Hours,Title,Description,Commit_Hash,Files",
		"2026-01-15,coding-session,/code/api,api,\"4,25\",Session,Refactor handlers,,",
		"2026-01-15,version-control,/code/api,api,0,Fix panic,,abc1234,server.go;router.go",
		"2026-01-20,coding-session,/code/web,web,2,Out of range,,,",
		",,,,,,,,",
	}, "\n"))

	adapter := NewCSVFileAdapter(path)
	rng := workitem.DateRange{
		From: time.Date(2026, 1, 12, 0, 0, 0, 0, time.Local),
		To:   time.Date(2026, 1, 18, 0, 0, 0, 0, time.Local),
	}
	records, err := adapter.ListActivity(context.Background(), rng)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 in-range records, got %d", len(records))
	}
	if records[0].Hours != 4.25 {
		t.Errorf("decimal-comma hours = %v, want 4.25", records[0].Hours)
	}
	if records[1].Source != workitem.SourceVersionControl {
		t.Errorf("unexpected source: %s", records[1].Source)
	}
	if len(records[1].Commits) != 1 || records[1].Commits[0].Hash != "abc1234" {
		t.Errorf("unexpected commits: %+v", records[1].Commits)
	}
	if len(records[1].Files) != 2 {
		t.Errorf("unexpected files: %v", records[1].Files)
	}
}

func TestCSVFileAdapterRejectsBadRows(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		row  string
	}{
		{name: "bad date", row: "15.01.2026,coding-session,/code/api,api,1,Session,,,"},
		{name: "negative hours", row: "2026-01-15,coding-session,/code/api,api,-1,Session,,,"},
		{name: "unknown source", row: "2026-01-15,teleport,/code/api,api,1,Session,,,"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := writeActivityCSV(t, strings.Join([]string{
				"date,source,project_path,project_name,hours,title,description,commit_hash,files",
				tc.row,
			}, "\n"))
			_, err := NewCSVFileAdapter(path).ListActivity(context.Background(), workitem.DateRange{
				From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local),
				To:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.Local),
			})
			if err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestCSVFileAdapterDefaultsProjectName(t *testing.T) {
	t.Parallel()

	path := writeActivityCSV(t, strings.Join([]string{
		"date,project_path,hours,title",
		"2026-01-15,/home/dev/code/billing,1.5,Session",
	}, "\n"))
	records, err := NewCSVFileAdapter(path).ListActivity(context.Background(), workitem.DateRange{
		From: time.Date(2026, 1, 15, 0, 0, 0, 0, time.Local),
		To:   time.Date(2026, 1, 15, 0, 0, 0, 0, time.Local),
	})
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(records) != 1 || records[0].ProjectName != "billing" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if records[0].Source != workitem.SourceCodingSession {
		t.Errorf("default source = %s, want coding-session", records[0].Source)
	}
}
