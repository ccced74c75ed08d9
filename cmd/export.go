package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"recap/output"
	"recap/storage"
)

var (
	exportDBPath    string
	exportDay       string
	exportFrom      string
	exportTo        string
	exportCSVInputs []string
	exportFormat    string
	exportOutput    string
	exportTimeout   time.Duration
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export aggregated worklog days to CSV/Excel",
	Long: `Export the aggregated per-day, per-project worklog rows, including their
sync state, to CSV or Excel.

Output format can be selected explicitly via --format or inferred from the
--output extension.`,
	Example: `
  # Export the current week to CSV
  recap export --output ./week.csv

  # Export a month to Excel
  recap export --from 2026-01-01 --to 2026-01-31 --output ./january.xlsx
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, err := resolveRangeFlags(exportDay, exportFrom, exportTo)
		if err != nil {
			return err
		}

		format := exportFormat
		if strings.TrimSpace(format) == "" {
			format = detectExportFormat(exportOutput)
		}

		store, err := storage.OpenSQLite(exportDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()

		days, err := collectDays(ctx, buildAdapters(store, exportCSVInputs), rng)
		if err != nil {
			return err
		}
		records, err := store.SyncRecordsByTarget()
		if err != nil {
			return err
		}

		rows := output.BuildExportRows(days, records)
		if err := output.WriteExport(exportOutput, format, rows); err != nil {
			return err
		}
		fmt.Printf("Export completed. Rows: %d, Format: %s, File: %s\n", len(rows), format, exportOutput)
		return nil
	},
}

func detectExportFormat(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "csv":
		return "csv"
	case "xlsx", "xlsm", "xls":
		return "excel"
	default:
		return "csv"
	}
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportDBPath, "db", "./recap.db", "Path to local SQLite database")
	exportCmd.Flags().StringVar(&exportDay, "day", "", "Export a single day, format YYYY-MM-DD")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Range start day (inclusive), format YYYY-MM-DD")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Range end day (inclusive), format YYYY-MM-DD")
	exportCmd.Flags().StringArrayVar(&exportCSVInputs, "csv", nil, "Normalized activity CSV export (repeatable)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Output format: csv|excel (optional, inferred from output extension)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path")
	exportCmd.Flags().DurationVar(&exportTimeout, "timeout", 60*time.Second, "Timeout for source collection")

	_ = exportCmd.MarkFlagRequired("output")
}
