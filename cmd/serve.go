package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"recap/config"
	"recap/internal/timeutil"
	"recap/issue"
	"recap/reconcile"
	"recap/storage"
	"recap/web"
	"recap/workitem"
)

var (
	servePort      int
	serveDBPath    string
	serveCSVInputs []string
	serveURL       string
	serveToken     string
	serveStateFile string
	serveNoOpen    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local JSON API for overview and sync",
	Long: `Start a local HTTP server exposing the aggregated worklog overview, the sync
records, and sync triggers as a JSON API.

When sync.auto is enabled in the config, a background scheduler runs a full
week sync on the configured interval. Scheduled and manually triggered syncs
share one in-flight slot, so they never overlap.`,
	Example: `
  # Start local server on default port
  recap serve

  # Custom port and explicit CSV activity input
  recap serve --port 9090 --csv ./sessions.csv
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}

		store, err := storage.OpenSQLite(serveDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		client, err := newTrackerClient(serveURL, serveToken, serveStateFile, "recap-serve/1.0")
		if err != nil {
			return err
		}

		resolver := issue.NewResolver(issueRulesFromConfig(cfg.Rules), store, client)
		service := reconcile.NewService(store, client, resolver)
		adapters := buildAdapters(store, serveCSVInputs)

		addr := fmt.Sprintf(":%d", servePort)
		server := &http.Server{
			Addr:    addr,
			Handler: web.NewServer(store, adapters, service, resolver),
		}

		schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
		defer schedulerCancel()
		if cfg.Sync.Auto {
			interval := time.Duration(cfg.Sync.IntervalMinutes) * time.Minute
			scheduler := reconcile.NewScheduler(interval, func(ctx context.Context) error {
				from, to := timeutil.WeekOf(timeutil.StartOfDay(timeNow()))
				days, collectErr := collectDays(ctx, adapters, workitem.DateRange{From: from, To: to})
				if collectErr != nil {
					return collectErr
				}
				_, syncErr := service.SyncWeek(ctx, days, false, false)
				return syncErr
			}, func(err error) {
				fmt.Fprintf(os.Stderr, "Warning: scheduled sync failed: %v\n", err)
			})
			go scheduler.Run(schedulerCtx)
			fmt.Printf("Background sync enabled, interval: %s\n", interval)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()

		listenURL := fmt.Sprintf("http://localhost:%d", servePort)
		fmt.Printf("Listening on %s\n", listenURL)
		if !serveNoOpen {
			if openErr := openURLInBrowser(listenURL); openErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to open browser: %v\n", openErr)
			}
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-sigCh:
			schedulerCancel()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown server: %w", err)
			}
			err := <-errCh
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	},
}

func openURLInBrowser(rawURL string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		cmd = exec.Command("xdg-open", rawURL)
	}
	return cmd.Start()
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP port for the local web server")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "./recap.db", "Path to local SQLite database")
	serveCmd.Flags().StringArrayVar(&serveCSVInputs, "csv", nil, "Normalized activity CSV export (repeatable)")
	serveCmd.Flags().StringVar(&serveURL, "url", "", "Override tracker URL from config")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Override tracker API token from config")
	serveCmd.Flags().StringVar(&serveStateFile, "state-file", "", "Path to auth state JSON (default: $HOME/.recap/tempo-auth-state.json)")
	serveCmd.Flags().BoolVar(&serveNoOpen, "no-open", false, "Do not open browser automatically")
}
