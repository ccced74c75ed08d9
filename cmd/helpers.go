package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"recap/aggregate"
	"recap/config"
	"recap/internal/timeutil"
	"recap/issue"
	"recap/source"
	"recap/storage"
	"recap/tempo"
	"recap/workitem"
)

var timeNow = time.Now

func resolveDefaultAuthStatePath(explicitPath string) (string, error) {
	if strings.TrimSpace(explicitPath) != "" {
		return explicitPath, nil
	}
	if cfg, err := config.LoadAndValidate(); err == nil && strings.TrimSpace(cfg.Tracker.AuthState) != "" {
		return cfg.Tracker.AuthState, nil
	}
	return tempo.DefaultAuthStatePath()
}

func resolveProfileDir(explicitDir string) (string, bool, error) {
	if strings.TrimSpace(explicitDir) != "" {
		return explicitDir, false, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve home directory: %w", err)
	}
	base := filepath.Join(home, ".recap")
	if err := os.MkdirAll(base, 0o700); err != nil {
		return "", false, fmt.Errorf("create directory %q: %w", base, err)
	}
	profileDir, err := os.MkdirTemp(base, "chrome-profile-*")
	if err != nil {
		return "", false, fmt.Errorf("create temporary profile dir: %w", err)
	}
	return profileDir, true, nil
}

func ensureParentDir(path string, mode os.FileMode) error {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, mode); err != nil {
		return fmt.Errorf("create directory %q: %w", parent, err)
	}
	return nil
}

func resolveTrackerURL(urlOverride string) (string, string, error) {
	rawURL := strings.TrimSpace(urlOverride)
	if rawURL == "" {
		if strings.TrimSpace(viper.ConfigFileUsed()) == "" {
			return "", "", errors.New("no config file loaded; set `tracker.url` in config or pass --url")
		}
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return "", "", fmt.Errorf("load config: %w", err)
		}
		rawURL = strings.TrimSpace(cfg.Tracker.URL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", "", fmt.Errorf("invalid url %q", rawURL)
	}

	return rawURL, parsed.Hostname(), nil
}

// newTrackerClient wires the remote client from an API token when one is
// configured, falling back to the captured browser session otherwise.
func newTrackerClient(urlOverride, tokenOverride, stateFileOverride, userAgent string) (tempo.Client, error) {
	baseURL, host, err := resolveTrackerURL(urlOverride)
	if err != nil {
		return nil, err
	}

	token := strings.TrimSpace(tokenOverride)
	if token == "" {
		if cfg, cfgErr := config.LoadAndValidate(); cfgErr == nil {
			token = strings.TrimSpace(cfg.Tracker.Token)
		}
	}
	if token != "" {
		return tempo.NewClient(tempo.ClientConfig{
			BaseURL:   baseURL,
			APIToken:  token,
			UserAgent: userAgent,
		})
	}

	stateFile, err := resolveDefaultAuthStatePath(stateFileOverride)
	if err != nil {
		return nil, err
	}
	cookieHeader, err := tempo.SessionCookieHeaderFromStateFile(stateFile, host)
	if err != nil {
		return nil, fmt.Errorf("extract session cookies: %w", err)
	}
	return tempo.NewClient(tempo.ClientConfig{
		BaseURL:        baseURL,
		SessionCookies: cookieHeader,
		UserAgent:      userAgent,
	})
}

func issueRulesFromConfig(rules []config.Rule) []issue.Rule {
	out := make([]issue.Rule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, issue.Rule{
			Name:        rule.Name,
			ProjectPath: rule.ProjectPath,
			ProjectName: rule.Project,
			IssueKey:    rule.IssueKey,
		})
	}
	return out
}

// resolveRangeFlags turns the --day / --from / --to flags into an inclusive
// day range. With no flags set, the current week is used.
func resolveRangeFlags(dayValue, fromValue, toValue string) (workitem.DateRange, error) {
	dayValue = strings.TrimSpace(dayValue)
	fromValue = strings.TrimSpace(fromValue)
	toValue = strings.TrimSpace(toValue)

	if dayValue != "" {
		if fromValue != "" || toValue != "" {
			return workitem.DateRange{}, errors.New("--day cannot be combined with --from/--to")
		}
		day, err := timeutil.ParseDay(dayValue)
		if err != nil {
			return workitem.DateRange{}, fmt.Errorf("invalid --day value: %w", err)
		}
		return workitem.DateRange{From: day, To: day}, nil
	}

	if fromValue == "" && toValue == "" {
		from, to := timeutil.WeekOf(timeutil.StartOfDay(timeNow()))
		return workitem.DateRange{From: from, To: to}, nil
	}
	if fromValue == "" || toValue == "" {
		return workitem.DateRange{}, errors.New("--from and --to must be set together")
	}

	from, err := timeutil.ParseDay(fromValue)
	if err != nil {
		return workitem.DateRange{}, fmt.Errorf("invalid --from value: %w", err)
	}
	to, err := timeutil.ParseDay(toValue)
	if err != nil {
		return workitem.DateRange{}, fmt.Errorf("invalid --to value: %w", err)
	}
	if to.Before(from) {
		return workitem.DateRange{}, errors.New("invalid range: --from must be <= --to")
	}
	return workitem.DateRange{From: from, To: to}, nil
}

// buildAdapters assembles the activity sources for one command invocation:
// the manual-item store plus any normalized CSV exports passed on the
// command line.
func buildAdapters(store *storage.SQLiteStore, csvPaths []string) []source.Adapter {
	adapters := []source.Adapter{source.NewManualAdapter(store)}
	if len(csvPaths) > 0 {
		adapters = append(adapters, source.NewCSVFileAdapter(csvPaths...))
	}
	return adapters
}

func collectDays(ctx context.Context, adapters []source.Adapter, rng workitem.DateRange) ([]workitem.WorklogDay, error) {
	records, sourceErrs := source.Collect(ctx, adapters, rng)
	for _, sourceErr := range sourceErrs {
		fmt.Fprintf(os.Stderr, "Warning: source %s failed: %v\n", sourceErr.Source, sourceErr.Err)
	}
	if len(sourceErrs) == len(adapters) && len(adapters) > 0 {
		return nil, errors.New("all activity sources failed")
	}
	return aggregate.Aggregate(records, rng), nil
}

// loadSummaries reads an external summarizer's output: a JSON object mapping
// sync target keys ("/code/api|2026-01-15") to replacement description text.
func loadSummaries(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read summaries file: %w", err)
	}
	summaries := make(map[string]string)
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, fmt.Errorf("parse summaries file %s: %w", path, err)
	}
	return summaries, nil
}
