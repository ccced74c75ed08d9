package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"recap/aggregate"
	"recap/config"
	"recap/issue"
	"recap/reconcile"
	"recap/storage"
	"recap/workitem"
)

var (
	syncDBPath    string
	syncDay       string
	syncFrom      string
	syncTo        string
	syncTarget    string
	syncCSVInputs []string
	syncSummaries string
	syncDryRun    bool
	syncForce     bool
	syncURL       string
	syncToken     string
	syncStateFile string
	syncTimeout   time.Duration
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync aggregated worklogs to the remote time tracker",
	Long: `Build a sync plan from the aggregated worklog days and submit it to the
remote tracker.

Entries whose target is already recorded as synced are skipped unless --force
is set. Hours are rounded to whole minutes exactly once, when the plan is
built. On partial failure the successful entries keep their sync records; only
the failed ones are left for the next run.

In --dry-run mode the plan is printed without any network calls or local
writes.`,
	Example: `
  # Preview this week's plan
  recap sync --dry-run

  # Sync a single day
  recap sync --day 2026-01-15

  # Sync an explicit range
  recap sync --from 2026-01-12 --to 2026-01-18

  # Re-sync one target even though it is recorded as synced
  recap sync --target "/code/api|2026-01-15" --force

  # Submit externally written daily descriptions instead of generated ones
  recap sync --summaries ./summaries.json
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, err := resolveRangeFlags(syncDay, syncFrom, syncTo)
		if err != nil {
			return err
		}

		store, err := storage.OpenSQLite(syncDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		client, err := newTrackerClient(syncURL, syncToken, syncStateFile, "recap-sync/1.0")
		if err != nil {
			return err
		}

		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		resolver := issue.NewResolver(issueRulesFromConfig(cfg.Rules), store, client)
		service := reconcile.NewService(store, client, resolver)

		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		days, err := collectDays(ctx, buildAdapters(store, syncCSVInputs), rng)
		if err != nil {
			return err
		}
		if syncSummaries != "" {
			summaries, sumErr := loadSummaries(syncSummaries)
			if sumErr != nil {
				return sumErr
			}
			aggregate.ApplySummaries(days, summaries)
		}

		var result *workitem.SyncResult
		if syncTarget != "" {
			result, err = syncSingleTarget(ctx, service, days, syncTarget)
		} else {
			result, err = service.SyncWeek(ctx, days, syncDryRun, syncForce)
		}
		if err != nil {
			if errors.Is(err, reconcile.ErrSyncInFlight) {
				return errors.New("another sync is already running")
			}
			return err
		}

		printSyncResult(result)
		return nil
	},
}

// syncSingleTarget picks one entry out of the forced plan for the loaded
// range and submits only that entry.
func syncSingleTarget(ctx context.Context, service *reconcile.Service, days []workitem.WorklogDay, rawTarget string) (*workitem.SyncResult, error) {
	target, err := workitem.ParseSyncTarget(rawTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid --target value: %w", err)
	}

	plan, err := service.BuildWeekPlan(days, true)
	if err != nil {
		return nil, err
	}
	for _, entry := range plan {
		if entry.Target.String() == target.String() {
			return service.SyncSingle(ctx, entry, syncDryRun)
		}
	}
	return nil, fmt.Errorf("target %q not found in the selected range", rawTarget)
}

func printSyncResult(result *workitem.SyncResult) {
	success := color.New(color.FgGreen)
	failure := color.New(color.FgRed)
	pending := color.New(color.FgYellow)

	if result.Total == 0 {
		fmt.Println("Nothing to sync.")
		return
	}

	for _, entry := range result.Entries {
		switch entry.Status {
		case workitem.StatusSuccess:
			success.Printf("  ok      %s -> %s (worklog %s)\n", entry.Target.String(), entry.IssueKey, entry.RemoteWorklogID)
		case workitem.StatusError:
			failure.Printf("  failed  %s -> %s: %s\n", entry.Target.String(), entry.IssueKey, entry.ErrorMessage)
		case workitem.StatusPending:
			pending.Printf("  plan    %s -> %s\n", entry.Target.String(), entry.IssueKey)
		}
	}

	if result.DryRun {
		fmt.Printf("Dry run: %d entry/entries would be submitted.\n", result.Total)
		return
	}
	fmt.Printf("Synced %d/%d entries.\n", result.Successful, result.Total)
	if result.Successful < result.Total {
		fmt.Println("Failed entries keep no sync record and will be retried on the next run.")
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncDBPath, "db", "./recap.db", "Path to local SQLite database")
	syncCmd.Flags().StringVar(&syncDay, "day", "", "Sync a single day, format YYYY-MM-DD")
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "Range start day (inclusive), format YYYY-MM-DD")
	syncCmd.Flags().StringVar(&syncTo, "to", "", "Range end day (inclusive), format YYYY-MM-DD")
	syncCmd.Flags().StringVar(&syncTarget, "target", "", `Sync one target only, e.g. "/code/api|2026-01-15" or "manual:7"`)
	syncCmd.Flags().StringArrayVar(&syncCSVInputs, "csv", nil, "Normalized activity CSV export (repeatable)")
	syncCmd.Flags().StringVar(&syncSummaries, "summaries", "", "JSON file mapping sync targets to externally written descriptions")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Print the plan without submitting or writing anything")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Re-submit entries already recorded as synced")
	syncCmd.Flags().StringVar(&syncURL, "url", "", "Override tracker URL from config")
	syncCmd.Flags().StringVar(&syncToken, "token", "", "Override tracker API token from config")
	syncCmd.Flags().StringVar(&syncStateFile, "state-file", "", "Path to auth state JSON (default: $HOME/.recap/tempo-auth-state.json)")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 120*time.Second, "Timeout for the full sync run")
}
