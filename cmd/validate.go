package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	validateURL       string
	validateToken     string
	validateStateFile string
	validateTimeout   time.Duration
)

var validateCmd = &cobra.Command{
	Use:   "validate <issue-key>",
	Short: "Validate an issue key against the remote tracker",
	Example: `
  # Check that PROJ-101 exists and is bookable
  recap validate PROJ-101
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newTrackerClient(validateURL, validateToken, validateStateFile, "recap-validate/1.0")
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
		defer cancel()

		validation, err := client.ValidateIssue(ctx, args[0])
		if err != nil {
			return fmt.Errorf("validate issue %s: %w", args[0], err)
		}
		if validation.Valid {
			color.New(color.FgGreen).Printf("%s is valid: %s\n", args[0], validation.Summary)
			return nil
		}
		color.New(color.FgRed).Printf("%s is not valid: %s\n", args[0], validation.Message)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateURL, "url", "", "Override tracker URL from config")
	validateCmd.Flags().StringVar(&validateToken, "token", "", "Override tracker API token from config")
	validateCmd.Flags().StringVar(&validateStateFile, "state-file", "", "Path to auth state JSON (default: $HOME/.recap/tempo-auth-state.json)")
	validateCmd.Flags().DurationVar(&validateTimeout, "timeout", 30*time.Second, "Timeout for the tracker call")
}
