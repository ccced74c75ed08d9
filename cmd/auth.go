package cmd

import (
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage tracker authentication state",
}

func init() {
	rootCmd.AddCommand(authCmd)
}
