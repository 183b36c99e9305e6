package bot

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"habit-tracker/internal/model"
	"habit-tracker/internal/service"
)

const (
	scheduleUsage = "<code>/schedule 3 09:00-10:30</code> or <code>/schedule 3 09:00-10:30 2024-03-06</code>"
	dayLayout     = "2006-01-02"
	dayTitle      = "Mon, Jan 2"
)

// handleSchedule serves "/schedule <task id> HH:MM-HH:MM [YYYY-MM-DD]". The
// slot is read in the user's time zone; the day defaults to today.
func (b *Bot) handleSchedule(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.parseID(msg, scheduleUsage)
	if !ok {
		return err
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 || len(args) > 3 {
		return b.sendText(msg.Chat.ID, "Usage: "+scheduleUsage)
	}
	loc := b.statsSvc.Location(user)
	day := b.now().In(loc)
	if len(args) == 3 {
		if day, err = time.ParseInLocation(dayLayout, args[2], loc); err != nil {
			return b.sendText(msg.Chat.ID, "The date must look like <code>2024-03-06</code>.")
		}
	}
	input, err := parseSlot(args[1], day)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("%s. Usage: %s", escape(err.Error()), scheduleUsage))
	}

	block, err := b.blockSvc.Schedule(ctx, user, taskID, input)
	if err != nil {
		return b.replyError(msg.Chat.ID, "Task", err)
	}
	log.Printf("[info] time block scheduled id=%d task=%d user=%d", block.ID, taskID, user.ID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗓 <b>%s</b> is scheduled for %s %s.",
		escape(block.Task.Text), block.StartAt.In(loc).Format(dayTitle), formatSlot(*block, loc)))
}

func (b *Bot) handleUnschedule(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.parseID(msg, "/unschedule 3")
	if !ok {
		return err
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	block, err := b.blockSvc.ForTask(ctx, user, taskID)
	if err != nil {
		return b.replyError(msg.Chat.ID, "Time block", err)
	}
	if err := b.blockSvc.Delete(ctx, user, block.ID); err != nil {
		return b.replyError(msg.Chat.ID, "Time block", err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Removed the time block of <b>%s</b>.", escape(block.Task.Text)))
}

// handleAgenda serves "/agenda [YYYY-MM-DD]".
func (b *Bot) handleAgenda(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	loc := b.statsSvc.Location(user)
	day := b.now().In(loc)
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		if day, err = time.ParseInLocation(dayLayout, arg, loc); err != nil {
			return b.sendText(msg.Chat.ID, "The date must look like <code>2024-03-06</code>.")
		}
	}

	blocks, err := b.blockSvc.ListForDay(ctx, user, day)
	if err != nil {
		return b.replyError(msg.Chat.ID, "Agenda", err)
	}
	if len(blocks) == 0 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Nothing scheduled for %s. Block time with %s.",
			day.Format(dayTitle), scheduleUsage))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🗓 <b>Agenda for %s</b>\n", day.Format(dayTitle)))
	for _, block := range blocks {
		icon := "▫️"
		if block.Task.IsCompleted {
			icon = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %s %s", icon, formatSlot(block, loc), escape(block.Task.Text)))
		if block.Task.Hashtag != "" {
			sb.WriteString(fmt.Sprintf(" <i>#%s</i>", escape(block.Task.Hashtag)))
		}
		sb.WriteString(fmt.Sprintf(" (task %d)\n", block.TaskID))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(sb.String()))
}

// SendTimeBlockAlerts tells users about blocks starting within the alert
// lead. A block is marked before its message goes out, so a failed send is
// logged and not retried.
func (b *Bot) SendTimeBlockAlerts(ctx context.Context) error {
	var lead time.Duration
	if b.config != nil {
		lead = b.config.AlertLead
	}
	now := b.now()
	due, err := b.blockSvc.DueSoon(ctx, now, lead)
	if err != nil {
		return err
	}

	users := make(map[uint]*model.User)
	for i := range due {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		block := &due[i]
		user, ok := users[block.UserID]
		if !ok {
			if user, err = b.userRepo.FindByID(ctx, block.UserID); err != nil {
				log.Printf("find user %d for time block %d: %v", block.UserID, block.ID, err)
				continue
			}
			users[block.UserID] = user
		}

		marked, err := b.blockSvc.MarkNotified(ctx, block)
		if err != nil {
			log.Printf("mark time block %d: %v", block.ID, err)
			continue
		}
		if !marked {
			continue
		}
		if err := b.sendText(user.TelegramID, alertText(*block, now, b.statsSvc.Location(user))); err != nil {
			log.Printf("send time block alert to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

func alertText(block model.TimeBlock, now time.Time, loc *time.Location) string {
	minutes := int(math.Ceil(block.StartAt.Sub(now).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("⏰ <b>Upcoming task</b>\n%s starts in %d %s (%s).",
		escape(block.Task.Text), minutes, unit, formatSlot(block, loc))
}

// parseSlot turns "HH:MM-HH:MM" on the calendar day of day into a time range
// in day's location.
func parseSlot(raw string, day time.Time) (service.TimeBlockInput, error) {
	from, to, ok := strings.Cut(raw, "-")
	if !ok {
		return service.TimeBlockInput{}, fmt.Errorf("time range %q needs a dash", raw)
	}
	startH, startM, err := service.ParseClock(from)
	if err != nil {
		return service.TimeBlockInput{}, err
	}
	endH, endM, err := service.ParseClock(to)
	if err != nil {
		return service.TimeBlockInput{}, err
	}
	at := func(h, m int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
	}
	return service.TimeBlockInput{Start: at(startH, startM), End: at(endH, endM)}, nil
}

func formatSlot(block model.TimeBlock, loc *time.Location) string {
	return block.StartAt.In(loc).Format("15:04") + "-" + block.EndAt.In(loc).Format("15:04")
}
