package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
	"habit-tracker/internal/stats"
)

// ReminderService builds human-readable summaries for periodic notifications.
type ReminderService struct {
	taskRepo *repository.TaskRepository
	stats    *StatsService
}

func NewReminderService(taskRepo *repository.TaskRepository, statsService *StatsService) *ReminderService {
	return &ReminderService{taskRepo: taskRepo, stats: statsService}
}

func (s *ReminderService) DailySummary(ctx context.Context, user *model.User, now time.Time) (string, error) {
	local := now.In(s.stats.Location(user))
	today := stats.DateOf(local)

	open := false
	pending, err := s.taskRepo.List(ctx, user.ID, repository.TaskFilter{Completed: &open, VisibleOnly: true})
	if err != nil {
		return "", err
	}

	done := true
	completed, err := s.taskRepo.List(ctx, user.ID, repository.TaskFilter{Completed: &done})
	if err != nil {
		return "", err
	}

	var doneToday []model.Task
	for _, task := range completed {
		if task.CompletedAt != nil && stats.DateOf(task.CompletedAt.In(local.Location())) == today {
			doneToday = append(doneToday, task)
		}
	}
	summary := stats.Summarize(stats.ComputeActivity(completed, local.Location()), today)

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", local.Format("Mon, 02 Jan 2006")))

	builder.WriteString("🔥 <b>Open tasks</b>\n")
	if len(pending) == 0 {
		builder.WriteString("— nothing open\n")
	} else {
		for _, task := range pending {
			builder.WriteString(formatTask(task))
		}
	}

	builder.WriteString("\n✅ <b>Done today</b>\n")
	if len(doneToday) == 0 {
		builder.WriteString("— nothing yet\n")
	} else {
		for _, task := range doneToday {
			builder.WriteString(formatTask(task))
		}
	}

	builder.WriteString(fmt.Sprintf("\n📈 Streak: <b>%s</b> · best %s\n",
		pluralDays(summary.CurrentStreak), pluralDays(summary.LongestStreak)))

	return strings.TrimSpace(builder.String()), nil
}

func formatTask(task model.Task) string {
	var sb strings.Builder

	icon := "🟢"
	switch {
	case task.IsCompleted:
		icon = "✔️"
	case task.IsPriority:
		icon = "⭐"
	}

	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(strings.TrimSpace(task.Text))))
	if task.Hashtag != "" {
		sb.WriteString(fmt.Sprintf(" <i>#%s</i>", html.EscapeString(task.Hashtag)))
	}
	sb.WriteString(fmt.Sprintf(" <code>[%d]</code>", task.ID))

	sb.WriteByte('\n')
	return sb.String()
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
