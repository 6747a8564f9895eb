// Package config loads the Socialia configuration from TOML files and
// environment variables.
package config

// Config represents the full Socialia configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
	Twitter   TwitterConfig   `mapstructure:"twitter"`
	LinkedIn  LinkedInConfig  `mapstructure:"linkedin"`
	Reddit    RedditConfig    `mapstructure:"reddit"`
	Slack     SlackConfig     `mapstructure:"slack"`
	YouTube   YouTubeConfig   `mapstructure:"youtube"`
	Bluesky   BlueskyConfig   `mapstructure:"bluesky"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig configures the dispatcher and daemon loop
type SchedulerConfig struct {
	TickerIntervalSeconds int `mapstructure:"ticker_interval_seconds"` // How often the daemon checks for due posts (default: 1)
	PostTimeoutSeconds    int `mapstructure:"post_timeout_seconds"`    // Per-post external call timeout (default: 30)
	GraceSeconds          int `mapstructure:"grace_seconds"`           // How far in the past a due time may lie (default: 60)
	PostsPerMinute        int `mapstructure:"posts_per_minute"`        // Outbound post rate limit, 0 = unlimited (default: 10)

	// Human-like posting jitter applied at schedule time
	FluctuationMaxMinutes int    `mapstructure:"fluctuation_max_minutes"` // 0 disables jitter
	FluctuationBias       string `mapstructure:"fluctuation_bias"`        // early, late, or none
}

// LogConfig configures log output
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

// TwitterConfig holds X API v2 credentials
type TwitterConfig struct {
	BearerToken string `mapstructure:"bearer_token"`
}

// LinkedInConfig holds LinkedIn API credentials
type LinkedInConfig struct {
	AccessToken string `mapstructure:"access_token"`
	PersonURN   string `mapstructure:"person_urn"`
	Visibility  string `mapstructure:"visibility"`
}

// RedditConfig holds Reddit OAuth credentials
type RedditConfig struct {
	AccessToken      string `mapstructure:"access_token"`
	UserAgent        string `mapstructure:"user_agent"`
	DefaultSubreddit string `mapstructure:"default_subreddit"`
}

// SlackConfig holds Slack bot credentials
type SlackConfig struct {
	BotToken       string `mapstructure:"bot_token"`
	DefaultChannel string `mapstructure:"default_channel"`
}

// YouTubeConfig holds YouTube Data API credentials
type YouTubeConfig struct {
	AccessToken string `mapstructure:"access_token"`
}

// BlueskyConfig holds atproto credentials
type BlueskyConfig struct {
	PDSHost     string `mapstructure:"pds_host"`
	Identifier  string `mapstructure:"identifier"`
	AppPassword string `mapstructure:"app_password"`
}

// AnalyticsConfig holds GA4 Measurement Protocol credentials
type AnalyticsConfig struct {
	MeasurementID string `mapstructure:"measurement_id"`
	APISecret     string `mapstructure:"api_secret"`
}
