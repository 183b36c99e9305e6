package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"habit-tracker/internal/render"
	"habit-tracker/internal/service"
)

const (
	// defaultHeatmapWeeks fits a phone screen in a monospace block.
	defaultHeatmapWeeks = 20
	// maxHeatmapMessages caps /heatmap without a tag.
	maxHeatmapMessages = 5
)

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	list, err := b.statsSvc.Statistics(ctx, user)
	if err != nil {
		return b.replyError(msg.Chat.ID, "Statistics", err)
	}
	return b.sendText(msg.Chat.ID, render.StatsText(list))
}

// handleHeatmap serves "/heatmap [tag] [weeks]". "-" selects untagged tasks.
func (b *Bot) handleHeatmap(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	var args []string
	if msg.IsCommand() {
		args = strings.Fields(msg.CommandArguments())
	}
	weeks := defaultHeatmapWeeks
	if n := len(args); n > 0 {
		if parsed, err := strconv.Atoi(args[n-1]); err == nil {
			weeks = parsed
			args = args[:n-1]
		}
	}

	now := b.now()
	if len(args) == 0 {
		maps, err := b.statsSvc.Heatmaps(ctx, user, now)
		if err != nil {
			return b.replyError(msg.Chat.ID, "Heatmap", err)
		}
		if len(maps) == 0 {
			return b.sendText(msg.Chat.ID, "No tasks yet, so nothing to draw.")
		}
		if len(maps) > maxHeatmapMessages {
			maps = maps[:maxHeatmapMessages]
		}
		for _, h := range maps {
			if err := b.sendHeatmap(msg.Chat.ID, h, weeks); err != nil {
				return err
			}
		}
		return nil
	}

	tag := args[0]
	if tag == "-" {
		tag = ""
	}
	h, err := b.statsSvc.Heatmap(ctx, user, tag, now)
	if err != nil {
		return b.replyError(msg.Chat.ID, "Heatmap", err)
	}
	return b.sendHeatmap(msg.Chat.ID, h, weeks)
}

func (b *Bot) sendHeatmap(chatID int64, h service.Heatmap, weeks int) error {
	text := render.HeatmapText(h.Category, h.Grid, weeks) + "\n" + escape(render.SummaryText(h.Summary))
	return b.sendText(chatID, text)
}

func (b *Bot) handleTimezone(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Days are counted in <b>%s</b>. Change it with <code>/timezone Europe/Berlin</code>.",
			escape(b.statsSvc.Location(user).String())))
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Unknown time zone %q. Use an IANA name like <code>America/New_York</code>.", escape(name)))
	}
	if err := b.userRepo.SetTimezone(ctx, user, loc.String()); err != nil {
		return b.replyError(msg.Chat.ID, "User", err)
	}
	b.statsSvc.Invalidate(user.ID)

	log.Printf("[info] timezone user=%d tz=%s", user.ID, loc)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🕓 Time zone set to <b>%s</b>. It is %s there now.",
		escape(loc.String()), b.now().In(loc).Format("15:04")))
}
