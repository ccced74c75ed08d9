package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"recap/tempo"
)

var (
	authShowCookiesStateFile string
	authShowCookiesURL       string
)

var authShowCookiesCmd = &cobra.Command{
	Use:   "show-cookies",
	Short: "Print session cookies as HTTP Cookie header.",
	Long: `Read auth state JSON and print the cookie header required by the tracker's
REST endpoints.

Output format:
JSESSIONID=<...>; seraph.rememberme.cookie=<...>`,
	Example: `
  # Print cookie header from default auth state file
  recap auth show-cookies
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stateFile, err := resolveDefaultAuthStatePath(authShowCookiesStateFile)
		if err != nil {
			return err
		}

		_, host, err := resolveTrackerURL(authShowCookiesURL)
		if err != nil {
			return err
		}

		header, err := tempo.SessionCookieHeaderFromStateFile(stateFile, host)
		if err != nil {
			return err
		}
		fmt.Println(header)
		return nil
	},
}

func init() {
	authCmd.AddCommand(authShowCookiesCmd)

	authShowCookiesCmd.Flags().StringVar(&authShowCookiesStateFile, "state-file", "", "Path to auth state JSON (default: $HOME/.recap/tempo-auth-state.json)")
	authShowCookiesCmd.Flags().StringVar(&authShowCookiesURL, "url", "", "Override tracker URL from config")
}
