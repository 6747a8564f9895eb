package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/socialia/config"
	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/logger"
	"github.com/teranos/socialia/post"
	"github.com/teranos/socialia/schedule"
	"github.com/teranos/socialia/sym"
)

// ScheduleCmd manages scheduled posts
var ScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: sym.Pulse + " Manage scheduled posts",
	Long: sym.Pulse + ` Schedule posts for later delivery.

Time expressions:
  +30m                relative minutes
  +2h                 relative hours
  14:30               today at 14:30, or tomorrow if already past
  2026-09-01 09:00    absolute date and time

Examples:
  socialia schedule add twitter "Launch!" --at "+2h"
  socialia schedule add slack "Standup in 5" --at 09:55 --channel "#team"
  socialia schedule ls
  socialia schedule cancel <job_id>
  socialia schedule run       # execute due posts once
  socialia schedule daemon    # keep executing until interrupted`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// ScheduleAddCmd schedules a new post
var ScheduleAddCmd = &cobra.Command{
	Use:   "add <platform> <text>",
	Short: "Schedule a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		at := mustString(cmd, "at")
		if at == "" {
			return errors.NewInvalidRequestError("--at is required")
		}

		dueAt, err := schedule.ParseScheduleTime(at, time.Now())
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		database, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		dispatcher := buildDispatcher(database, cfg, buildRegistry(cfg))

		fluctuate, _ := cmd.Flags().GetInt("fluctuate")
		if fluctuate == 0 {
			fluctuate = cfg.Scheduler.FluctuationMaxMinutes
		}

		job, err := dispatcher.Schedule(schedule.ScheduleRequest{
			Platform: post.Platform(args[0]),
			Payload: post.Payload{
				Text:      args[1],
				Title:     mustString(cmd, "title"),
				Subreddit: mustString(cmd, "subreddit"),
				Channel:   mustString(cmd, "channel"),
				VideoID:   mustString(cmd, "video-id"),
			},
			DueAt:              dueAt,
			FluctuationMinutes: fluctuate,
			FluctuationBias:    cfg.Scheduler.FluctuationBias,
		})
		if err != nil {
			return err
		}

		pterm.Success.Printf("Scheduled %s post %s\n", job.Platform, job.ID)
		pterm.Info.Printf("Due at %s\n", job.DueAt.Local().Format("2006-01-02 15:04:05"))
		if job.OriginalDueAt != nil {
			pterm.Info.Printf("Requested %s, shifted for a human posting pattern\n",
				job.OriginalDueAt.Local().Format("15:04:05"))
		}
		return nil
	},
}

// ScheduleLsCmd lists scheduled posts
var ScheduleLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List scheduled posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		database, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		dispatcher := buildDispatcher(database, cfg, buildRegistry(cfg))

		includeDone, _ := cmd.Flags().GetBool("all")
		jobs, err := dispatcher.List(includeDone)
		if err != nil {
			return err
		}

		if len(jobs) == 0 {
			pterm.Info.Println("No scheduled posts")
			return nil
		}

		rows := pterm.TableData{{"", "ID", "Platform", "Due", "State", "Text"}}
		for _, job := range jobs {
			rows = append(rows, []string{
				sym.ForState(job.State),
				job.ID[:8],
				string(job.Platform),
				job.DueAt.Local().Format("2006-01-02 15:04"),
				job.State,
				truncate(job.Payload.Text, 40),
			})
		}

		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

// ScheduleCancelCmd cancels a pending post
var ScheduleCancelCmd = &cobra.Command{
	Use:   "cancel <job_id>",
	Short: "Cancel a pending scheduled post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		database, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		dispatcher := buildDispatcher(database, cfg, buildRegistry(cfg))

		cancelled, err := dispatcher.Cancel(args[0])
		if err != nil {
			return err
		}
		if !cancelled {
			pterm.Warning.Printf("Post %s was not pending; nothing cancelled\n", args[0])
			return nil
		}

		pterm.Success.Printf("Cancelled %s\n", args[0])
		return nil
	},
}

// ScheduleMoveCmd moves a pending post to a new due time
var ScheduleMoveCmd = &cobra.Command{
	Use:   "move <job_id>",
	Short: "Move a pending post to a new time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at := mustString(cmd, "at")
		if at == "" {
			return errors.NewInvalidRequestError("--at is required")
		}

		dueAt, err := schedule.ParseScheduleTime(at, time.Now())
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		database, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		dispatcher := buildDispatcher(database, cfg, buildRegistry(cfg))

		if err := dispatcher.Reschedule(args[0], dueAt); err != nil {
			return err
		}

		pterm.Success.Printf("Moved %s to %s\n", args[0],
			dueAt.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

// ScheduleRunCmd executes due posts once
var ScheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute all due posts once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		database, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		dispatcher := buildDispatcher(database, cfg, buildRegistry(cfg))

		outcomes, err := dispatcher.RunDue(cmd.Context(), time.Now())
		if err != nil {
			return err
		}

		if len(outcomes) == 0 {
			pterm.Info.Println("No posts due")
			return nil
		}

		for _, outcome := range outcomes {
			if outcome.State == schedule.StatePosted {
				pterm.Success.Printf("%s %s → %s\n", outcome.JobID[:8], outcome.Platform, outcome.Result.ExternalID)
			} else {
				pterm.Error.Printf("%s %s failed: %s\n", outcome.JobID[:8], outcome.Platform, outcome.Error)
			}
		}
		return nil
	},
}

// ScheduleDaemonCmd runs the scheduler loop until interrupted
var ScheduleDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scheduler daemon",
	Long: `Run the scheduler daemon in foreground mode.

The daemon checks for due posts at the configured interval and executes
each exactly once. A live-reloaded config file changes platform
credentials without a restart. Ctrl+C shuts down gracefully, letting an
in-flight batch finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		database, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := schedule.NewStore(database)
		dispatcher := buildDispatcher(database, cfg, buildRegistry(cfg))

		tickerCfg := schedule.TickerConfig{
			Interval: time.Duration(cfg.Scheduler.TickerIntervalSeconds) * time.Second,
		}
		ticker := schedule.NewTickerWithContext(ctx, dispatcher, store, tickerCfg, logger.Logger)

		// Credential changes in the user config take effect live
		userConfig := filepath.Join(config.UserConfigDir(), "config.toml")
		if _, err := os.Stat(userConfig); err == nil {
			watcher, err := config.NewConfigWatcher(userConfig)
			if err != nil {
				logger.Warnw("Config watcher unavailable", "error", err)
			} else {
				watcher.OnReload(func(newCfg *config.Config) error {
					dispatcher.SetRegistry(buildRegistry(newCfg))
					return nil
				})
				watcher.Start()
				defer watcher.Stop()
			}
		}

		fmt.Printf("%s Socialia scheduler started\n", sym.Pulse)
		fmt.Printf("  Interval: %v\n", tickerCfg.Interval)
		fmt.Printf("  Post timeout: %ds\n", cfg.Scheduler.PostTimeoutSeconds)
		fmt.Printf("  Rate limit: %d posts/min\n", cfg.Scheduler.PostsPerMinute)
		fmt.Printf("\n%s Press Ctrl+C to stop\n\n", sym.Pulse)

		ticker.Start()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		fmt.Printf("\n%s Shutting down...\n", sym.Pulse)
		ticker.Stop()
		fmt.Printf("%s Scheduler stopped\n", sym.Pulse)
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func init() {
	ScheduleAddCmd.Flags().String("at", "", "When to post: +30m, +2h, HH:MM, or YYYY-MM-DD HH:MM")
	ScheduleAddCmd.Flags().Int("fluctuate", 0, "Randomly shift the post time by up to N minutes")
	ScheduleAddCmd.Flags().String("title", "", "Post title (reddit)")
	ScheduleAddCmd.Flags().String("subreddit", "", "Target subreddit (reddit)")
	ScheduleAddCmd.Flags().String("channel", "", "Target channel (slack)")
	ScheduleAddCmd.Flags().String("video-id", "", "Video to comment on (youtube)")

	ScheduleLsCmd.Flags().Bool("all", false, "Include posted, failed, and cancelled posts")

	ScheduleMoveCmd.Flags().String("at", "", "New time: +30m, +2h, HH:MM, or YYYY-MM-DD HH:MM")

	ScheduleCmd.AddCommand(ScheduleAddCmd)
	ScheduleCmd.AddCommand(ScheduleLsCmd)
	ScheduleCmd.AddCommand(ScheduleCancelCmd)
	ScheduleCmd.AddCommand(ScheduleMoveCmd)
	ScheduleCmd.AddCommand(ScheduleRunCmd)
	ScheduleCmd.AddCommand(ScheduleDaemonCmd)
}
