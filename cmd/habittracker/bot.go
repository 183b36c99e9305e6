package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"habit-tracker/internal/bot"
	"habit-tracker/internal/service"
)

func newBotCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot with scheduled reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd, opts)
		},
	}
}

func runBot(cmd *cobra.Command, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	telegramBot, err := bot.New(cfg.TelegramToken, bot.Services{
		Users:    a.users,
		Tasks:    a.tasks,
		Groups:   a.groups,
		Stats:    a.stats,
		Reminder: a.reminder,
		Blocks:   a.blocks,
	}, &cfg)
	if err != nil {
		return err
	}

	scheduler, err := newScheduler(a, telegramBot)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	go a.stats.Watch(ctx)

	log.Println("[info] habit tracker bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Println("[info] shutdown complete")
	return nil
}

func newScheduler(a *app, telegramBot *bot.Bot) (*service.SchedulerService, error) {
	scheduler := service.NewSchedulerService(a.cfg.Location())

	sendReports := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("report: %v", err)
		}
	}

	if a.cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval("interval report", a.cfg.ReportInterval, sendReports); err != nil {
			return nil, err
		}
	}
	if a.cfg.ReportTime != "" {
		if _, err := scheduler.ScheduleDaily("daily report", a.cfg.ReportTime, sendReports); err != nil {
			return nil, err
		}
	}
	sendAlerts := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendTimeBlockAlerts(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("time block alerts: %v", err)
		}
	}
	if _, err := scheduler.ScheduleInterval("time block alerts", time.Minute, sendAlerts); err != nil {
		return nil, err
	}

	if a.cfg.StatsCacheTTL > 0 {
		if _, err := scheduler.ScheduleInterval("stats cache sweep", a.cfg.StatsCacheTTL, a.stats.Sweep); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}
