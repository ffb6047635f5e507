package core

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/valter-silva-au/tracks/pkg/models"
)

// =============================================================================
// Generators
// =============================================================================

func genActivityName(t *rapid.T, label string) string {
	return rapid.StringMatching(`[a-z][a-z0-9_]{0,11}`).Draw(t, label)
}

func genLogLevel(t *rapid.T, label string) string {
	return rapid.SampledFrom([]string{"debug", "info", "warn", "error"}).Draw(t, label)
}

func genTimeBase(t *rapid.T, label string) models.TimeBase {
	return rapid.SampledFrom([]models.TimeBase{models.TimeBaseUTC, models.TimeBaseLocal}).Draw(t, label)
}

// =============================================================================
// Property 7: Configuration Precedence
// =============================================================================

// Feature: tracks, Property 7: Configuration Precedence
// *For any* value written to .tracksconfig, LoadConfig SHALL return it, and
// when a TRACKS_* environment variable names the same key the environment
// value SHALL win. Keys absent from both SHALL keep their defaults.
func TestProperty_ConfigurationPrecedence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir := t.TempDir()
		fileActivity := genActivityName(rt, "fileActivity")
		fileLevel := genLogLevel(rt, "fileLevel")
		fileBase := genTimeBase(rt, "fileBase")

		writeFile(t, dir, ConfigFileName, fmt.Sprintf(
			"activity: %s\ntime_base: %s\nlog:\n  level: %s\n",
			fileActivity, fileBase, fileLevel,
		))

		wantActivity := fileActivity
		if rapid.Bool().Draw(rt, "envOverride") {
			wantActivity = genActivityName(rt, "envActivity")
			t.Setenv("TRACKS_ACTIVITY", wantActivity)
		} else {
			t.Setenv("TRACKS_ACTIVITY", "")
			wantActivity = fileActivity
		}

		cfg, err := NewConfigurationManager(dir).LoadConfig()
		if err != nil {
			rt.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Activity != wantActivity {
			rt.Fatalf("Activity = %q, want %q", cfg.Activity, wantActivity)
		}
		if cfg.LogLevel != fileLevel {
			rt.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, fileLevel)
		}
		if cfg.TimeBase != fileBase {
			rt.Fatalf("TimeBase = %q, want %q", cfg.TimeBase, fileBase)
		}
		if cfg.HTTPAddr != DefaultConfig().HTTPAddr {
			rt.Fatalf("HTTPAddr = %q, want default", cfg.HTTPAddr)
		}
	})
}

// =============================================================================
// Property 8: Configuration Validation
// =============================================================================

// Feature: tracks, Property 8: Configuration Validation
// *For any* configuration with exactly one invalid field, ValidateConfig
// SHALL return an error naming that field; *for any* configuration built from
// valid values it SHALL return nil.
func TestProperty_ConfigurationValidation(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		cfg.Activity = genActivityName(rt, "activity")
		cfg.LogLevel = genLogLevel(rt, "level")
		cfg.TimeBase = genTimeBase(rt, "timeBase")
		if rapid.Bool().Draw(rt, "withPB") {
			cfg.PersonalBests = &models.PersonalBestPreferences{
				SessionsKey:     "speed",
				NumBestSessions: rapid.IntRange(1, 50).Draw(rt, "num"),
			}
		}

		if err := cm.ValidateConfig(cfg); err != nil {
			rt.Fatalf("valid config rejected: %v", err)
		}

		var field string
		switch rapid.IntRange(0, 4).Draw(rt, "invalidField") {
		case 0:
			cfg.Activity = rapid.StringMatching(`[A-Z ][a-z ]{0,8}`).Draw(rt, "badActivity")
			field = "activity"
		case 1:
			cfg.LogLevel = rapid.SampledFrom([]string{"trace", "verbose", "fatal", ""}).Draw(rt, "badLevel")
			field = "log.level"
		case 2:
			cfg.TimeBase = models.TimeBase(rapid.SampledFrom([]string{"gmt", "UTC+1", "", "server"}).Draw(rt, "badBase"))
			field = "time_base"
		case 3:
			cfg.PersonalBests = &models.PersonalBestPreferences{
				SessionsKey:     "speed",
				NumBestSessions: -rapid.IntRange(0, 100).Draw(rt, "badNum"),
			}
			field = "num_best_sessions"
		case 4:
			cfg.Notifications = models.NotificationConfig{Enabled: true}
			field = "webhook_url"
		}

		err := cm.ValidateConfig(cfg)
		if err == nil {
			rt.Fatalf("expected validation error for %s", field)
		}
		if !strings.Contains(err.Error(), field) {
			rt.Fatalf("error %q does not name %s", err, field)
		}
	})
}
