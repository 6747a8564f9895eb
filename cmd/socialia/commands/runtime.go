package commands

import (
	"database/sql"
	"time"

	"github.com/teranos/socialia/analytics"
	"github.com/teranos/socialia/config"
	"github.com/teranos/socialia/db"
	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/internal/httpclient"
	"github.com/teranos/socialia/logger"
	"github.com/teranos/socialia/platform"
	"github.com/teranos/socialia/post"
	"github.com/teranos/socialia/schedule"
)

// openDatabase opens and migrates the database. An empty path falls
// back to the configured one.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		path, err := config.GetDatabasePath()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get database path")
		}
		if path == "" {
			path = "socialia.db"
		}
		dbPath = path
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}
	return database, nil
}

// buildRegistry constructs posters for every platform with credentials
// in the config. Unconfigured platforms are simply absent; posting to
// one fails with a clear error instead of a half-built client.
func buildRegistry(cfg *config.Config) *post.Registry {
	hc := httpclient.New(time.Duration(cfg.Scheduler.PostTimeoutSeconds) * time.Second)

	var posters []post.Poster
	if cfg.Twitter.BearerToken != "" {
		posters = append(posters, platform.NewTwitter(platform.TwitterConfig{
			BearerToken: cfg.Twitter.BearerToken,
		}, hc))
	}
	if cfg.LinkedIn.AccessToken != "" {
		posters = append(posters, platform.NewLinkedIn(platform.LinkedInConfig{
			AccessToken: cfg.LinkedIn.AccessToken,
			PersonURN:   cfg.LinkedIn.PersonURN,
			Visibility:  cfg.LinkedIn.Visibility,
		}, hc))
	}
	if cfg.Reddit.AccessToken != "" {
		posters = append(posters, platform.NewReddit(platform.RedditConfig{
			AccessToken:      cfg.Reddit.AccessToken,
			UserAgent:        cfg.Reddit.UserAgent,
			DefaultSubreddit: cfg.Reddit.DefaultSubreddit,
		}, hc))
	}
	if cfg.Slack.BotToken != "" {
		posters = append(posters, platform.NewSlack(platform.SlackConfig{
			BotToken:       cfg.Slack.BotToken,
			DefaultChannel: cfg.Slack.DefaultChannel,
		}, hc))
	}
	if cfg.YouTube.AccessToken != "" {
		posters = append(posters, platform.NewYouTube(platform.YouTubeConfig{
			AccessToken: cfg.YouTube.AccessToken,
		}, hc))
	}
	if cfg.Bluesky.Identifier != "" && cfg.Bluesky.AppPassword != "" {
		posters = append(posters, platform.NewBluesky(platform.BlueskyConfig{
			PDSHost:    cfg.Bluesky.PDSHost,
			Identifier: cfg.Bluesky.Identifier,
			Password:   cfg.Bluesky.AppPassword,
		}))
	}

	return post.NewRegistry(posters...)
}

// buildDispatcher wires the store, execution audit, and registry into a
// dispatcher using the configured limits.
func buildDispatcher(database *sql.DB, cfg *config.Config, registry *post.Registry) *schedule.Dispatcher {
	dcfg := schedule.DispatcherConfig{
		PostTimeout:    time.Duration(cfg.Scheduler.PostTimeoutSeconds) * time.Second,
		Grace:          time.Duration(cfg.Scheduler.GraceSeconds) * time.Second,
		PostsPerMinute: cfg.Scheduler.PostsPerMinute,
	}

	return schedule.NewDispatcher(
		schedule.NewStore(database),
		schedule.NewExecutionStore(database),
		registry,
		dcfg,
		logger.Logger,
	)
}

// buildTracker creates the GA4 tracker from config.
func buildTracker(cfg *config.Config) *analytics.Tracker {
	hc := httpclient.New(10 * time.Second)
	return analytics.NewTracker(analytics.Config{
		MeasurementID: cfg.Analytics.MeasurementID,
		APISecret:     cfg.Analytics.APISecret,
	}, hc, logger.Logger)
}
