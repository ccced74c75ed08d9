package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"recap/config"
)

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active, validated configuration.",
	Long: `Show the active configuration values.

This command validates the configuration before printing values.`,
	Example: `
  # Show active configuration
  recap config show
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			fmt.Println("Invalid config:", err)
			return
		}

		if configPath := viper.ConfigFileUsed(); configPath != "" {
			fmt.Println("Config file loaded from:", configPath)
			fmt.Println("Configuration:")
			fmt.Printf("tracker.url: %s\n", cfg.Tracker.URL)
			if cfg.Tracker.Token != "" {
				fmt.Println("tracker.token: (set)")
			} else {
				fmt.Println("tracker.token: (not set, session auth state is used)")
			}
			fmt.Printf("tracker.auth_state: %s\n", cfg.Tracker.AuthState)
			fmt.Printf("sync.auto: %t\n", cfg.Sync.Auto)
			fmt.Printf("sync.interval_minutes: %d\n", cfg.Sync.IntervalMinutes)
			fmt.Printf("rules: %d\n", len(cfg.Rules))
			for i, rule := range cfg.Rules {
				fmt.Printf("rules[%d].name: %s\n", i, rule.Name)
				fmt.Printf("rules[%d].project_path: %s\n", i, rule.ProjectPath)
				fmt.Printf("rules[%d].project: %s\n", i, rule.Project)
				fmt.Printf("rules[%d].issue_key: %s\n", i, rule.IssueKey)
			}
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
