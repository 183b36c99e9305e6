package bot

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"habit-tracker/internal/model"
	"habit-tracker/internal/render"
	"habit-tracker/internal/service"
)

const cbRunGroupPrefix = "rungroup:"

func (b *Bot) handleGroups(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	groups, err := b.groupSvc.ListGroups(ctx, user)
	if err != nil {
		return b.replyError(msg.Chat.ID, "Groups", err)
	}
	if len(groups) == 0 {
		return b.sendText(msg.Chat.ID, "No groups yet. Create one:\n<code>/newgroup Morning: stretch #health; read 10 pages #study</code>")
	}

	var builder strings.Builder
	builder.WriteString("🗂 <b>Task groups</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, group := range groups {
		builder.WriteString(formatGroup(group))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("➕ %s", shortText(group.Name, 26)), fmt.Sprintf("%s%d", cbRunGroupPrefix, group.ID)),
		))
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(builder.String()))
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	reply.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(reply)
	return err
}

func (b *Bot) handleNewGroup(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Describe the group in one line:\n<code>/newgroup Morning: stretch #health; read 10 pages #study; plan the day</code>")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	input, err := service.ParseGroupSpec(args)
	if err != nil {
		return b.replyError(msg.Chat.ID, "Group", err)
	}
	group, err := b.groupSvc.CreateGroup(ctx, user, input)
	if err != nil {
		return b.replyError(msg.Chat.ID, "Group", err)
	}

	log.Printf("[info] group created id=%d user=%d items=%d", group.ID, user.ID, len(group.Items))
	return b.sendText(msg.Chat.ID, "✅ <b>Group saved</b>\n\n"+strings.TrimSpace(formatGroup(*group))+
		fmt.Sprintf("\n\nAdd it to your tasks with /rungroup %d.", group.ID))
}

func (b *Bot) handleRunGroup(ctx context.Context, msg *tgbotapi.Message) error {
	groupID, ok, err := b.parseID(msg, "/rungroup 3")
	if !ok {
		return err
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.runGroup(ctx, msg.Chat.ID, user, groupID)
}

func (b *Bot) runGroup(ctx context.Context, chatID int64, user *model.User, groupID uint) error {
	created, err := b.groupSvc.AddGroupToTasks(ctx, user, groupID)
	if err != nil {
		if len(created) > 0 {
			log.Printf("group %d partially added (%d tasks): %v", groupID, len(created), err)
		}
		return b.replyError(chatID, "Group", err)
	}
	if len(created) == 0 {
		return b.sendText(chatID, "That group has no items yet.")
	}

	log.Printf("[info] group %d added %d tasks user=%d", groupID, len(created), user.ID)
	if err := b.sendText(chatID, fmt.Sprintf("➕ Added %d task(s).", len(created))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) handleDeleteGroup(ctx context.Context, msg *tgbotapi.Message) error {
	groupID, ok, err := b.parseID(msg, "/delgroup 3")
	if !ok {
		return err
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	group, err := b.groupSvc.GetGroup(ctx, user, groupID)
	if err != nil {
		return b.replyError(msg.Chat.ID, "Group", err)
	}

	b.clearConversation(msg.From.ID)
	b.setConfirmation(msg.From.ID, confirmationRequest{targetID: group.ID, action: actionDeleteGroup})
	return b.sendWithReplyMarkup(msg.Chat.ID,
		fmt.Sprintf("Delete the group «%s»? Tasks already added stay.", escape(group.Name)), confirmKeyboard())
}

func (b *Bot) deleteGroup(ctx context.Context, chatID int64, user *model.User, groupID uint) error {
	if err := b.groupSvc.DeleteGroup(ctx, user, groupID); err != nil {
		return b.replyError(chatID, "Group", err)
	}
	log.Printf("[info] group deleted id=%d user=%d", groupID, user.ID)
	return b.sendTextWithRemove(chatID, "🗑 Group deleted.")
}

func formatGroup(group model.TaskGroup) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%d · %s</b>\n", group.ID, escape(group.Name)))
	if group.Description != "" {
		b.WriteString(fmt.Sprintf("<i>%s</i>\n", escape(group.Description)))
	}
	if len(group.Items) == 0 {
		b.WriteString("   (empty)\n")
	}
	for _, item := range group.Items {
		line := "   • " + escape(normalizeText(item.Text))
		if item.Hashtag != "" {
			line += " <i>" + escape(render.CategoryName(item.Hashtag)) + "</i>"
		}
		b.WriteString(line + "\n")
	}
	b.WriteByte('\n')
	return b.String()
}
