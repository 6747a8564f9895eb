package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "socialia.db")

	v.SetDefault("scheduler.ticker_interval_seconds", 1)
	v.SetDefault("scheduler.post_timeout_seconds", 30)
	v.SetDefault("scheduler.grace_seconds", 60)
	v.SetDefault("scheduler.posts_per_minute", 10) // polite; avoids platform rate limits
	v.SetDefault("scheduler.fluctuation_max_minutes", 0)
	v.SetDefault("scheduler.fluctuation_bias", "none")

	v.SetDefault("log.json", false)

	v.SetDefault("linkedin.visibility", "PUBLIC")
	v.SetDefault("reddit.user_agent", "socialia/1.0")
	v.SetDefault("bluesky.pds_host", "https://bsky.social")
}

// BindSensitiveEnvVars binds credential values directly so they can be
// supplied as environment variables without appearing in any TOML file
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("twitter.bearer_token", "SOCIALIA_TWITTER_BEARER_TOKEN")
	v.BindEnv("linkedin.access_token", "SOCIALIA_LINKEDIN_ACCESS_TOKEN")
	v.BindEnv("reddit.access_token", "SOCIALIA_REDDIT_ACCESS_TOKEN")
	v.BindEnv("slack.bot_token", "SOCIALIA_SLACK_BOT_TOKEN")
	v.BindEnv("youtube.access_token", "SOCIALIA_YOUTUBE_ACCESS_TOKEN")
	v.BindEnv("bluesky.app_password", "SOCIALIA_BLUESKY_APP_PASSWORD")
	v.BindEnv("analytics.api_secret", "SOCIALIA_ANALYTICS_API_SECRET")
}
