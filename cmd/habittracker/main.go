package main

import (
	"os"

	"github.com/spf13/cobra"

	"habit-tracker/internal/config"
)

type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "habittracker",
		Short: "Task and habit tracker with hashtag statistics and heatmaps",
		Long: `habittracker keeps tasks in a local SQLite database and shows how
consistently each hashtag gets done.

Without a subcommand it runs the Telegram bot.

Quick start:
  TELEGRAM_TOKEN=... habittracker          Run the bot
  habittracker stats --user 12345          Completion rate per hashtag
  habittracker heatmap --user 12345 -t gym 52-week activity grid`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file; environment variables override it")

	cmd.AddCommand(newBotCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newHeatmapCmd(opts))
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configPath)
}
