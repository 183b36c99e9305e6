package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"habit-tracker/internal/model"
	"habit-tracker/internal/render"
	"habit-tracker/internal/service"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var telegramID int64

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print completion statistics per hashtag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), opts, telegramID, func(a *app, user *model.User) error {
				list, err := a.stats.Statistics(cmd.Context(), user)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), render.StatsANSI(list))
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&telegramID, "user", "u", 0, "Telegram user ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newHeatmapCmd(opts *rootOptions) *cobra.Command {
	var (
		telegramID int64
		tag        string
		untagged   bool
	)

	cmd := &cobra.Command{
		Use:   "heatmap",
		Short: "Draw the 52-week activity grid of one hashtag or of all of them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), opts, telegramID, func(a *app, user *model.User) error {
				ctx := cmd.Context()
				now := time.Now()

				var maps []service.Heatmap
				if tag != "" || untagged {
					h, err := a.stats.Heatmap(ctx, user, tag, now)
					if err != nil {
						return err
					}
					maps = append(maps, h)
				} else {
					all, err := a.stats.Heatmaps(ctx, user, now)
					if err != nil {
						return err
					}
					maps = all
				}

				if len(maps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks yet.")
					return nil
				}
				for _, h := range maps {
					fmt.Fprintln(cmd.OutOrStdout(), render.HeatmapANSI(h.Category, h.Grid, h.Summary))
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&telegramID, "user", "u", 0, "Telegram user ID")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "hashtag to draw")
	cmd.Flags().BoolVar(&untagged, "untagged", false, "draw tasks without a hashtag")
	cmd.MarkFlagsMutuallyExclusive("tag", "untagged")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func withUser(ctx context.Context, opts *rootOptions, telegramID int64, fn func(*app, *model.User) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.users.FindByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("no user with telegram id %d", telegramID)
		}
		return err
	}
	return fn(a, user)
}
