package config

import (
	"bytes"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"strings"
)

const (
	KeyTrackerURL          = "tracker.url"
	KeyTrackerToken        = "tracker.token"
	KeyTrackerAuthState    = "tracker.auth_state"
	KeySyncAuto            = "sync.auto"
	KeySyncIntervalMinutes = "sync.interval_minutes"
	KeyRules               = "rules"
)

type Config struct {
	Tracker TrackerConfig `mapstructure:"tracker" validate:"required"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Rules   []Rule        `mapstructure:"rules"`
}

type TrackerConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
	// Token is the API token; when empty, the captured auth state file is
	// used instead.
	Token     string `mapstructure:"token"`
	AuthState string `mapstructure:"auth_state"`
}

type SyncConfig struct {
	Auto            bool `mapstructure:"auto"`
	IntervalMinutes int  `mapstructure:"interval_minutes" validate:"gte=0"`
}

// Rule maps a project to the issue key its worklogs are booked against.
type Rule struct {
	Name        string `mapstructure:"name"`
	ProjectPath string `mapstructure:"project_path"`
	Project     string `mapstructure:"project"`
	IssueKey    string `mapstructure:"issue_key"`
}

// SetDefaults sets default values if not provided
func SetDefaults() {
	setDefaults(viper.GetViper())
}

// LoadAndValidate loads config from Viper and validates it
func LoadAndValidate() (*Config, error) {
	return loadAndValidateFromViper(viper.GetViper())
}

// ValidateYAMLContent validates configuration from raw YAML content.
func ValidateYAMLContent(content []byte) (*Config, error) {
	local := viper.New()
	setDefaults(local)
	local.SetConfigType("yaml")
	if err := local.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("read config content: %w", err)
	}
	return loadAndValidateFromViper(local)
}

// ExampleYAML returns the default configuration template.
func ExampleYAML() string {
	return `# recap configuration
tracker:
  url: "https://tracker.example.com/tempo"
  # Either an API token or a captured browser auth state.
  token: ""
  auth_state: ""

sync:
  auto: false
  interval_minutes: 30

rules: []
  # - name: api
  #   project_path: "/code/api"
  #   project: "api"
  #   issue_key: "PROJ-101"
`
}

func loadAndValidateFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := validateRules(cfg.Rules); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyTrackerURL, "https://tracker.example.com/tempo")
	v.SetDefault(KeyTrackerToken, "")
	v.SetDefault(KeyTrackerAuthState, "")
	v.SetDefault(KeySyncAuto, false)
	v.SetDefault(KeySyncIntervalMinutes, 30)
	v.SetDefault(KeyRules, []map[string]any{})
}

func validateRules(rules []Rule) error {
	seen := make(map[string]struct{}, len(rules))
	for i, rule := range rules {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return fmt.Errorf("validation failed: rules[%d].name is required", i)
		}
		key := strings.ToLower(name)
		if _, exists := seen[key]; exists {
			return fmt.Errorf("validation failed: duplicate rule name %q", name)
		}
		seen[key] = struct{}{}
		if strings.TrimSpace(rule.ProjectPath) == "" && strings.TrimSpace(rule.Project) == "" {
			return fmt.Errorf("validation failed: rules[%d] requires project_path or project", i)
		}
		if strings.TrimSpace(rule.IssueKey) == "" {
			return fmt.Errorf("validation failed: rules[%d].issue_key is required", i)
		}
	}
	return nil
}
