package bot

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"habit-tracker/internal/model"
	"habit-tracker/internal/render"
	"habit-tracker/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbUndoPrefix     = "undo:"
	cbPriorityPrefix = "priority:"
	cbDeletePrefix   = "delete:"
)

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	if args := strings.TrimSpace(msg.CommandArguments()); msg.IsCommand() && args != "" {
		return b.finishTaskCreation(ctx, msg.Chat.ID, user, service.ParseTaskLine(args))
	}

	log.Printf("[info] start new task conversation user=%d", msg.From.ID)
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageText})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what needs doing?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageText:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Send the task as text.", cancelKeyboard())
		}
		state.input.Text = text
		state.stage = stageHashtag

		var tags []string
		if user, err := b.ensureUser(ctx, msg.From); err == nil {
			tags, _ = b.taskSvc.Hashtags(ctx, user)
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 <b>Step 2:</b> pick a hashtag or type a new one (or skip).", hashtagKeyboard(tags))
	case stageHashtag:
		if !isSkipInput(text) {
			tag := service.NormalizeHashtag(text)
			if strings.ContainsAny(tag, " \t#,") {
				return b.sendWithReplyMarkup(msg.Chat.ID, "A hashtag is a single word, like <code>#reading</code>.", hashtagKeyboard(nil))
			}
			state.input.Hashtag = tag
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "⭐ <b>Step 3:</b> is it a priority?", yesNoKeyboard())
	case stagePriority:
		switch {
		case isYesInput(text):
			state.input.IsPriority = true
		case isNoInput(text):
			state.input.IsPriority = false
		default:
			return b.sendWithReplyMarkup(msg.Chat.ID, "Answer yes or no.", yesNoKeyboard())
		}
		b.clearConversation(msg.From.ID)
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		return b.finishTaskCreation(ctx, msg.Chat.ID, user, state.input)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog reset. Try /newtask again.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, user *model.User, input service.TaskInput) error {
	task, err := b.taskSvc.CreateTask(ctx, user, input)
	if err != nil {
		return b.replyError(chatID, "Task", err)
	}

	log.Printf("[info] task created id=%d user=%d tag=%q", task.ID, user.ID, task.Hashtag)

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Task:</b> %s\n", escape(normalizeText(task.Text))))
	summary.WriteString(fmt.Sprintf("• <b>Tag:</b> %s\n", escape(render.CategoryName(task.Hashtag))))
	if task.IsPriority {
		summary.WriteString("• ⭐ priority\n")
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return err
	}

	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	log.Printf("[info] list tasks for user=%d", user.ID)
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListOpen(ctx, user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "No open tasks. Add one with /newtask.")
	}

	groups := make(map[string][]model.Task)
	var order []string
	for _, task := range tasks {
		if _, ok := groups[task.Hashtag]; !ok {
			order = append(order, task.Hashtag)
		}
		groups[task.Hashtag] = append(groups[task.Hashtag], task)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i] == "" {
			return false
		}
		if order[j] == "" {
			return true
		}
		return order[i] < order[j]
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	builder.WriteString("Tap ✅ to complete, ⭐ to toggle priority.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, tag := range order {
		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", escape(render.CategoryName(tag))))
		for _, task := range groups[tag] {
			builder.WriteString(formatTaskLine(task))
			star := "☆"
			if task.IsPriority {
				star = "⭐"
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ %d · %s", task.ID, shortText(task.Text, 22)), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData(star, fmt.Sprintf("%s%d", cbPriorityPrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
			))
		}
		builder.WriteByte('\n')
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleCompletedList(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	tasks, err := b.taskSvc.ListCompleted(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "Nothing completed yet, or everything is archived.")
	}

	loc := b.statsSvc.Location(user)
	var builder strings.Builder
	builder.WriteString("✔️ <b>Completed</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		builder.WriteString(formatTaskLine(task))
		if task.CompletedAt != nil {
			builder.WriteString(fmt.Sprintf("   🕓 %s\n", task.CompletedAt.In(loc).Format("2006-01-02 15:04")))
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("↩️ %d · %s", task.ID, shortText(task.Text, 24)), fmt.Sprintf("%s%d", cbUndoPrefix, task.ID)),
		))
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(builder.String()))
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	reply.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(reply)
	return err
}

func (b *Bot) handleSetComplete(ctx context.Context, msg *tgbotapi.Message, completed bool) error {
	usage := "/complete 12"
	if !completed {
		usage = "/undo 12"
	}
	taskID, ok, err := b.parseID(msg, usage)
	if !ok {
		return err
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.setCompleteAndReply(ctx, msg.Chat.ID, user, taskID, completed)
}

func (b *Bot) setCompleteAndReply(ctx context.Context, chatID int64, user *model.User, taskID uint, completed bool) error {
	task, err := b.taskSvc.SetComplete(ctx, user, taskID, completed, b.now())
	if err != nil {
		return b.replyError(chatID, "Task", err)
	}

	log.Printf("[info] task completion id=%d user=%d completed=%t", task.ID, user.ID, completed)
	if completed {
		return b.sendText(chatID, fmt.Sprintf("✅ «%s» done.", escape(normalizeText(task.Text))))
	}
	return b.sendText(chatID, fmt.Sprintf("↩️ «%s» is open again.", escape(normalizeText(task.Text))))
}

func (b *Bot) handlePriority(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.parseID(msg, "/priority 12")
	if !ok {
		return err
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.TogglePriority(ctx, user, taskID)
	if err != nil {
		return b.replyError(msg.Chat.ID, "Task", err)
	}
	if task.IsPriority {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("⭐ «%s» is a priority now.", escape(normalizeText(task.Text))))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("☆ «%s» is no longer a priority.", escape(normalizeText(task.Text))))
}

func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.parseID(msg, "/edit 12 new text #tag")
	if !ok {
		return err
	}

	fields := strings.Fields(msg.CommandArguments())
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.CommandArguments()), fields[0]))
	if rest == "" {
		return b.sendText(msg.Chat.ID, "Add the new text: /edit 12 new text #tag")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.UpdateTask(ctx, user, taskID, service.ParseTaskLine(rest))
	if err != nil {
		return b.replyError(msg.Chat.ID, "Task", err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✏️ Updated: %s", strings.TrimSpace(formatTaskLine(*task))))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.parseID(msg, "/delete 12")
	if !ok {
		return err
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.askDeleteConfirmation(ctx, msg.Chat.ID, msg.From.ID, user, taskID)
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID, telegramID int64, user *model.User, taskID uint) error {
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		return b.replyError(chatID, "Task", err)
	}

	b.clearConversation(telegramID)
	b.setConfirmation(telegramID, confirmationRequest{targetID: task.ID, action: actionDelete})
	text := fmt.Sprintf("Delete «%s» (%d)? Completed tasks disappear from the stats too; /archive hides them instead.",
		escape(normalizeText(task.Text)), task.ID)
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		return b.replyError(chatID, "Task", err)
	}
	if err := b.taskSvc.DeleteTask(ctx, user, taskID); err != nil {
		return b.replyError(chatID, "Task", err)
	}

	log.Printf("[info] task deleted id=%d user=%d", task.ID, user.ID)
	return b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 «%s» deleted.", escape(normalizeText(task.Text))))
}

func (b *Bot) handleClear(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.clearConversation(msg.From.ID)
	b.setConfirmation(msg.From.ID, confirmationRequest{action: actionClearActive})
	return b.sendWithReplyMarkup(msg.Chat.ID, "Delete <b>every open task</b>? Completed ones stay.", confirmKeyboard())
}

func (b *Bot) clearActive(ctx context.Context, chatID int64, user *model.User) error {
	n, err := b.taskSvc.ClearActive(ctx, user)
	if err != nil {
		return b.replyError(chatID, "Tasks", err)
	}
	log.Printf("[info] cleared %d open tasks user=%d", n, user.ID)
	return b.sendTextWithRemove(chatID, fmt.Sprintf("🧹 Deleted %d open task(s).", n))
}

func (b *Bot) handleArchive(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	n, err := b.taskSvc.ClearCompleted(ctx, user)
	if err != nil {
		return b.replyError(msg.Chat.ID, "Tasks", err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📦 Archived %d completed task(s). They still count in /stats.", n))
}

func (b *Bot) handleTags(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	tags, err := b.taskSvc.Hashtags(ctx, user)
	if err != nil {
		return b.replyError(msg.Chat.ID, "Tags", err)
	}
	if len(tags) == 0 {
		return b.sendText(msg.Chat.ID, "No hashtags yet. Add one when creating a task.")
	}

	var builder strings.Builder
	builder.WriteString("🏷 <b>Hashtags</b>\n")
	for _, tag := range tags {
		builder.WriteString(fmt.Sprintf("• <code>#%s</code>\n", escape(tag)))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}

	var prefix string
	for _, p := range []string{cbCompletePrefix, cbUndoPrefix, cbPriorityPrefix, cbDeletePrefix, cbRunGroupPrefix} {
		if strings.HasPrefix(cb.Data, p) {
			prefix = p
			break
		}
	}
	if prefix == "" {
		b.ack(cb, "")
		return nil
	}

	log.Printf("[info] callback %s user=%d id=%s", strings.TrimSuffix(prefix, ":"), cb.From.ID, strings.TrimPrefix(cb.Data, prefix))
	id, err := parseCallbackID(cb.Data, prefix)
	if err != nil {
		b.ack(cb, "")
		return nil
	}
	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		b.ack(cb, "")
		return err
	}

	chatID := cb.Message.Chat.ID
	switch prefix {
	case cbCompletePrefix:
		b.ack(cb, "Done!")
		if err := b.setCompleteAndReply(ctx, chatID, user, id, true); err != nil {
			return err
		}
		return b.sendTaskList(ctx, chatID, user)
	case cbUndoPrefix:
		b.ack(cb, "Reopened")
		return b.setCompleteAndReply(ctx, chatID, user, id, false)
	case cbPriorityPrefix:
		b.ack(cb, "")
		if _, err := b.taskSvc.TogglePriority(ctx, user, id); err != nil {
			return b.replyError(chatID, "Task", err)
		}
		return b.sendTaskList(ctx, chatID, user)
	case cbDeletePrefix:
		b.ack(cb, "")
		return b.askDeleteConfirmation(ctx, chatID, cb.From.ID, user, id)
	case cbRunGroupPrefix:
		b.ack(cb, "")
		return b.runGroup(ctx, chatID, user, id)
	}
	return nil
}

func formatTaskLine(task model.Task) string {
	icon := "🟢"
	switch {
	case task.IsCompleted:
		icon = "✔️"
	case task.IsPriority:
		icon = "⭐"
	}

	line := fmt.Sprintf("%s <b>%d</b> %s", icon, task.ID, escape(normalizeText(task.Text)))
	if task.Hashtag != "" {
		line += fmt.Sprintf(" <i>#%s</i>", escape(task.Hashtag))
	}
	return line + "\n"
}
