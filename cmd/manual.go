package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"recap/internal/timeutil"
	"recap/storage"
	"recap/workitem"
)

var (
	manualDBPath string

	manualAddDate        string
	manualAddHours       float64
	manualAddTitle       string
	manualAddDescription string

	manualListFrom string
	manualListTo   string
	manualListDay  string
)

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Manage manually entered work items",
	Long: `Manage manually entered work items.

Manual items are stored in the local database and flow through the same
aggregation and sync pipeline as session and commit activity. Each manual
item syncs on its own, independent of the projects of the same day.`,
}

var manualAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a manual work item",
	Example: `
  # One hour of sprint planning
  recap manual add --date 2026-01-15 --hours 1 --title "Sprint planning"
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := timeutil.ParseDay(manualAddDate)
		if err != nil {
			return fmt.Errorf("invalid --date value: %w", err)
		}

		store, err := storage.OpenSQLite(manualDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.InsertManualItem(workitem.ActivityRecord{
			Source:      workitem.SourceManual,
			Date:        date,
			Hours:       manualAddHours,
			Title:       manualAddTitle,
			Description: manualAddDescription,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added manual item %d (%s, %.2fh).\n", id, manualAddTitle, manualAddHours)
		return nil
	},
}

var manualListCmd = &cobra.Command{
	Use:   "list",
	Short: "List manual work items in a date range",
	Example: `
  # Current week
  recap manual list

  # A single day
  recap manual list --day 2026-01-15
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, err := resolveRangeFlags(manualListDay, manualListFrom, manualListTo)
		if err != nil {
			return err
		}

		store, err := storage.OpenSQLite(manualDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		items, err := store.ListManualItems(rng.From, rng.To)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No manual items in range.")
			return nil
		}
		for _, item := range items {
			fmt.Printf("  %-5d %s  %5.2fh  %s\n", item.ID, item.Date.Format(timeutil.DayLayout), item.Hours, item.Title)
		}
		return nil
	},
}

var manualDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a manual work item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid manual item id %q", args[0])
		}

		store, err := storage.OpenSQLite(manualDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		deleted, err := store.DeleteManualItem(id)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("manual item %d not found", id)
		}
		fmt.Printf("Deleted manual item %d.\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(manualCmd)
	manualCmd.AddCommand(manualAddCmd)
	manualCmd.AddCommand(manualListCmd)
	manualCmd.AddCommand(manualDeleteCmd)

	manualCmd.PersistentFlags().StringVar(&manualDBPath, "db", "./recap.db", "Path to local SQLite database")

	manualAddCmd.Flags().StringVar(&manualAddDate, "date", "", "Day of the work item, format YYYY-MM-DD")
	manualAddCmd.Flags().Float64Var(&manualAddHours, "hours", 0, "Fractional hours, e.g. 1.5")
	manualAddCmd.Flags().StringVar(&manualAddTitle, "title", "", "Short title of the work item")
	manualAddCmd.Flags().StringVar(&manualAddDescription, "description", "", "Optional longer description")
	_ = manualAddCmd.MarkFlagRequired("date")
	_ = manualAddCmd.MarkFlagRequired("title")

	manualListCmd.Flags().StringVar(&manualListDay, "day", "", "List a single day, format YYYY-MM-DD")
	manualListCmd.Flags().StringVar(&manualListFrom, "from", "", "Range start day (inclusive), format YYYY-MM-DD")
	manualListCmd.Flags().StringVar(&manualListTo, "to", "", "Range end day (inclusive), format YYYY-MM-DD")
}
