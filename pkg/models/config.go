package models

// TimeBase selects the time zone used to derive month buckets from session
// dates.
type TimeBase string

const (
	TimeBaseUTC   TimeBase = "utc"
	TimeBaseLocal TimeBase = "local"
)

// SlackConfig holds the webhook used for new personal best notifications.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// NotificationConfig controls outbound notifications.
type NotificationConfig struct {
	Enabled bool        `yaml:"enabled" mapstructure:"enabled"`
	Slack   SlackConfig `yaml:"slack" mapstructure:"slack"`
}

// AppConfig holds settings read from .tracksconfig via Viper.
type AppConfig struct {
	Activity      string             `yaml:"activity" mapstructure:"activity"`
	SchemaDir     string             `yaml:"schema_dir" mapstructure:"schema_dir"`
	DatabasePath  string             `yaml:"database_path" mapstructure:"database_path"`
	EventLogPath  string             `yaml:"event_log_path" mapstructure:"event_log_path"`
	TimeBase      TimeBase           `yaml:"time_base" mapstructure:"time_base"`
	LogLevel      string             `yaml:"log_level" mapstructure:"log_level"`
	HTTPAddr      string             `yaml:"http_addr" mapstructure:"http_addr"`
	Notifications NotificationConfig `yaml:"notifications" mapstructure:"notifications"`

	// PersonalBests, when set, overrides the schema's personal bests
	// preferences for this installation.
	PersonalBests *PersonalBestPreferences `yaml:"personal_bests,omitempty" mapstructure:"personal_bests"`
}
