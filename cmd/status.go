package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"recap/storage"
)

var statusDBPath string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List locally remembered sync records",
	Long: `List every sync record in the local database.

A record without a synced-at timestamp only remembers the issue key that was
chosen for the target; it does not mark the target as synced.`,
	Example: `
  # Show all sync records
  recap status
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.OpenSQLite(statusDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListSyncRecords()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No sync records.")
			return nil
		}

		synced := color.New(color.FgGreen)
		pending := color.New(color.FgYellow)
		syncedCount := 0
		for _, record := range records {
			if record.Synced() {
				syncedCount++
				synced.Printf("  synced   %-40s %-12s worklog=%s at %s\n",
					record.Target.String(), record.IssueKey, record.RemoteWorklogID,
					record.SyncedAt.Format("2006-01-02 15:04"))
				continue
			}
			pending.Printf("  key-only %-40s %s\n", record.Target.String(), record.IssueKey)
		}
		fmt.Printf("%d record(s), %d synced.\n", len(records), syncedCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusDBPath, "db", "./recap.db", "Path to local SQLite database")
}
