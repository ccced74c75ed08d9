package cmd

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the recap configuration file",
}

func init() {
	rootCmd.AddCommand(configCmd)
}
