package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"recap/aggregate"
	"recap/storage"
	"recap/tempo"
	"recap/workitem"
)

var (
	overviewDBPath    string
	overviewDay       string
	overviewFrom      string
	overviewTo        string
	overviewCSVInputs []string
	overviewRemote    bool
	overviewURL       string
	overviewToken     string
	overviewStateFile string
	overviewTimeout   time.Duration
)

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show aggregated worklog days with their sync state",
	Long: `Aggregate activity records into per-day worklogs and print them together
with the locally remembered sync state.

Without flags the current week is shown. Empty days inside the range are
listed too, so gaps are visible. With --remote, the worklogs currently on the
tracker for the same range are printed as well.`,
	Example: `
  # Current week
  recap overview

  # A single day
  recap overview --day 2026-01-15

  # Include normalized CSV activity exports
  recap overview --csv ./sessions.csv --csv ./commits.csv

  # Compare against the tracker
  recap overview --remote
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, err := resolveRangeFlags(overviewDay, overviewFrom, overviewTo)
		if err != nil {
			return err
		}

		store, err := storage.OpenSQLite(overviewDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), overviewTimeout)
		defer cancel()

		days, err := collectDays(ctx, buildAdapters(store, overviewCSVInputs), rng)
		if err != nil {
			return err
		}
		records, err := store.SyncRecordsByTarget()
		if err != nil {
			return err
		}

		printOverview(days, records)

		if overviewRemote {
			client, clientErr := newTrackerClient(overviewURL, overviewToken, overviewStateFile, "recap-overview/1.0")
			if clientErr != nil {
				return clientErr
			}
			worklogs, listErr := client.ListWorklogs(ctx, rng.From, rng.To)
			if listErr != nil {
				return fmt.Errorf("list remote worklogs: %w", listErr)
			}
			printRemoteWorklogs(worklogs)
		}

		return nil
	},
}

func printOverview(days []workitem.WorklogDay, records map[string]workitem.SyncRecord) {
	bold := color.New(color.Bold)
	synced := color.New(color.FgGreen)
	pending := color.New(color.FgYellow)

	total := 0.0
	for _, day := range days {
		dayLabel := day.Date.Format("Mon 2006-01-02")
		if day.Empty() {
			fmt.Printf("%s  -\n", dayLabel)
			continue
		}
		bold.Printf("%s  %.2fh\n", dayLabel, day.TotalHours())
		total += day.TotalHours()

		for _, project := range day.Projects {
			target := workitem.ProjectTarget(project.ProjectPath, day.Date)
			record, known := records[target.String()]
			state := pending.Sprint("not synced")
			issueKey := record.IssueKey
			if known && record.Synced() {
				state = synced.Sprintf("synced as %s", record.RemoteWorklogID)
			}
			if issueKey == "" {
				issueKey = "-"
			}
			fmt.Printf("  %-28s %6.2fh  commits=%d files=%d  %s  [%s]\n",
				project.ProjectName, project.TotalHours, project.TotalCommits, project.TotalFiles, issueKey, state)
		}
		for _, item := range day.Manual {
			target := workitem.ManualTarget(item.ID)
			record, known := records[target.String()]
			state := pending.Sprint("not synced")
			if known && record.Synced() {
				state = synced.Sprintf("synced as %s", record.RemoteWorklogID)
			}
			fmt.Printf("  %-28s %6.2fh  (manual)  [%s]\n", item.Title, item.Hours, state)
		}
	}

	fmt.Printf("Total: %.2fh across %d day(s) worked\n", total, aggregate.DaysWorked(days))
}

func printRemoteWorklogs(worklogs []tempo.Worklog) {
	fmt.Printf("\nRemote worklogs: %d\n", len(worklogs))
	for _, worklog := range worklogs {
		fmt.Printf("  %s  %s  %dm  %s\n", worklog.Date, worklog.IssueKey, worklog.TimeSpentMinutes, worklog.Description)
	}
}

func init() {
	rootCmd.AddCommand(overviewCmd)

	overviewCmd.Flags().StringVar(&overviewDBPath, "db", "./recap.db", "Path to local SQLite database")
	overviewCmd.Flags().StringVar(&overviewDay, "day", "", "Show a single day, format YYYY-MM-DD")
	overviewCmd.Flags().StringVar(&overviewFrom, "from", "", "Range start day (inclusive), format YYYY-MM-DD")
	overviewCmd.Flags().StringVar(&overviewTo, "to", "", "Range end day (inclusive), format YYYY-MM-DD")
	overviewCmd.Flags().StringArrayVar(&overviewCSVInputs, "csv", nil, "Normalized activity CSV export (repeatable)")
	overviewCmd.Flags().BoolVar(&overviewRemote, "remote", false, "Also list the tracker's worklogs for the range")
	overviewCmd.Flags().StringVar(&overviewURL, "url", "", "Override tracker URL from config")
	overviewCmd.Flags().StringVar(&overviewToken, "token", "", "Override tracker API token from config")
	overviewCmd.Flags().StringVar(&overviewStateFile, "state-file", "", "Path to auth state JSON (default: $HOME/.recap/tempo-auth-state.json)")
	overviewCmd.Flags().DurationVar(&overviewTimeout, "timeout", 60*time.Second, "Timeout for source and tracker calls")
}
