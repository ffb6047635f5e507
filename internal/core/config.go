// Package core contains the measure engine for tracks: schema validation,
// session resolution, month summaries, personal best rankings, and the
// configuration they run under.
package core

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valter-silva-au/tracks/pkg/models"
)

// ConfigFileName is the name of the configuration file in the base directory.
const ConfigFileName = ".tracksconfig"

// ConfigurationManager loads and validates the application configuration
// from .tracksconfig and TRACKS_* environment variables.
type ConfigurationManager interface {
	LoadConfig() (*models.AppConfig, error)
	ValidateConfig(cfg *models.AppConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper.
type viperConfigManager struct {
	// basePath is the directory where .tracksconfig resides.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// configuration relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *models.AppConfig {
	return &models.AppConfig{
		Activity:     DefaultActivity,
		SchemaDir:    "activities",
		DatabasePath: "tracks.db",
		EventLogPath: ".tracks_events.jsonl",
		TimeBase:     models.TimeBaseUTC,
		LogLevel:     "info",
		HTTPAddr:     ":8080",
	}
}

// LoadConfig reads .tracksconfig from the base path. A missing file is not an
// error: defaults and environment overrides apply.
func (cm *viperConfigManager) LoadConfig() (*models.AppConfig, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("TRACKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("activity", cfg.Activity)
	v.SetDefault("schema_dir", cfg.SchemaDir)
	v.SetDefault("database.path", cfg.DatabasePath)
	v.SetDefault("events.path", cfg.EventLogPath)
	v.SetDefault("time_base", string(cfg.TimeBase))
	v.SetDefault("log.level", cfg.LogLevel)
	v.SetDefault("http.addr", cfg.HTTPAddr)
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.slack.webhook_url", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.Activity = v.GetString("activity")
	cfg.SchemaDir = v.GetString("schema_dir")
	cfg.DatabasePath = v.GetString("database.path")
	cfg.EventLogPath = v.GetString("events.path")
	cfg.TimeBase = models.TimeBase(strings.ToLower(v.GetString("time_base")))
	cfg.LogLevel = strings.ToLower(v.GetString("log.level"))
	cfg.HTTPAddr = v.GetString("http.addr")
	cfg.Notifications.Enabled = v.GetBool("notifications.enabled")
	cfg.Notifications.Slack.WebhookURL = v.GetString("notifications.slack.webhook_url")

	// Only override the schema's ranking when the user asked for it.
	if v.IsSet("personal_bests.sessions_key") || v.IsSet("personal_bests.num_best_sessions") {
		cfg.PersonalBests = &models.PersonalBestPreferences{
			SessionsKey:     v.GetString("personal_bests.sessions_key"),
			NumBestSessions: v.GetInt("personal_bests.num_best_sessions"),
		}
	}

	return cfg, nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks cfg for invalid values and reports all problems at
// once.
func (cm *viperConfigManager) ValidateConfig(cfg *models.AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.Activity == "" {
		errs = append(errs, "activity must not be empty")
	} else if !measureKeyPattern.MatchString(cfg.Activity) {
		errs = append(errs, fmt.Sprintf("activity %q is invalid, must match %s", cfg.Activity, measureKeyPattern))
	}

	if cfg.DatabasePath == "" {
		errs = append(errs, "database.path must not be empty")
	}

	if cfg.TimeBase != models.TimeBaseUTC && cfg.TimeBase != models.TimeBaseLocal {
		errs = append(errs, fmt.Sprintf("time_base %q is invalid, must be one of: utc, local", cfg.TimeBase))
	}

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.HTTPAddr == "" {
		errs = append(errs, "http.addr must not be empty")
	}

	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL == "" {
		errs = append(errs, "notifications.slack.webhook_url is required when notifications are enabled")
	}

	if pb := cfg.PersonalBests; pb != nil && pb.NumBestSessions < 1 {
		errs = append(errs, fmt.Sprintf("personal_bests.num_best_sessions must be at least 1, got %d", pb.NumBestSessions))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Location returns the time zone month buckets are computed in.
func Location(tb models.TimeBase) *time.Location {
	if tb == models.TimeBaseLocal {
		return time.Local
	}
	return time.UTC
}

// LogLevel maps a configured level name to a slog level. Unknown names map
// to info.
func LogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// DefaultConfigYAML is the .tracksconfig written by "tracks init".
func DefaultConfigYAML(activity string) string {
	cfg := DefaultConfig()
	if activity == "" {
		activity = cfg.Activity
	}
	return fmt.Sprintf(`# tracks configuration
activity: %s
schema_dir: %s
time_base: %s

database:
  path: %s

events:
  path: %s

log:
  level: %s

http:
  addr: "%s"

notifications:
  enabled: false
  slack:
    webhook_url: ""

# Uncomment to rank personal bests by another measure.
# personal_bests:
#   sessions_key: distance
#   num_best_sessions: 10
`, activity, cfg.SchemaDir, cfg.TimeBase, cfg.DatabasePath, cfg.EventLogPath, cfg.LogLevel, cfg.HTTPAddr)
}
