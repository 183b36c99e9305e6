package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"habit-tracker/internal/config"
	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
	"habit-tracker/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageText
	stageHashtag
	stagePriority
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

type confirmationAction int

const (
	actionDelete confirmationAction = iota
	actionClearActive
	actionDeleteGroup
)

type confirmationRequest struct {
	targetID uint
	action   confirmationAction
}

// telegramAPI is the part of tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           telegramAPI
	userRepo      *repository.UserRepository
	taskSvc       *service.TaskService
	groupSvc      *service.GroupService
	statsSvc      *service.StatsService
	reminderSvc   *service.ReminderService
	blockSvc      *service.TimeBlockService
	config        *config.Config
	now           func() time.Time
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

// Services groups the collaborators of the bot.
type Services struct {
	Users    *repository.UserRepository
	Tasks    *service.TaskService
	Groups   *service.GroupService
	Stats    *service.StatsService
	Reminder *service.ReminderService
	Blocks   *service.TimeBlockService
}

func New(token string, svc Services, cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return newBot(api, svc, cfg), nil
}

func newBot(api telegramAPI, svc Services, cfg *config.Config) *Bot {
	return &Bot{
		api:           api,
		userRepo:      svc.Users,
		taskSvc:       svc.Tasks,
		groupSvc:      svc.Groups,
		statsSvc:      svc.Stats,
		reminderSvc:   svc.Reminder,
		blockSvc:      svc.Blocks,
		config:        cfg,
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("handle callback: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled. Pick something from the menu or /help.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		log.Printf("[info] conversation step %d from %d", b.getConversation(msg.From.ID).stage, msg.From.ID)
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "complete":
		return b.handleSetComplete(ctx, msg, true)
	case "undo":
		return b.handleSetComplete(ctx, msg, false)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "priority":
		return b.handlePriority(ctx, msg)
	case "edit":
		return b.handleEdit(ctx, msg)
	case "done":
		return b.handleCompletedList(ctx, msg)
	case "clear":
		return b.handleClear(ctx, msg)
	case "archive":
		return b.handleArchive(ctx, msg)
	case "tags":
		return b.handleTags(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "heatmap":
		return b.handleHeatmap(ctx, msg)
	case "groups":
		return b.handleGroups(ctx, msg)
	case "newgroup":
		return b.handleNewGroup(ctx, msg)
	case "rungroup":
		return b.handleRunGroup(ctx, msg)
	case "delgroup":
		return b.handleDeleteGroup(ctx, msg)
	case "timezone":
		return b.handleTimezone(ctx, msg)
	case "schedule":
		return b.handleSchedule(ctx, msg)
	case "unschedule":
		return b.handleUnschedule(ctx, msg)
	case "agenda":
		return b.handleAgenda(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep your tasks and show how consistent you are.</b>\n\n"+
			"Tag a task with a hashtag (<code>#gym</code>) and every completion lands on that tag's heatmap.\n\n"+
			"Start with /newtask, then try /stats and /heatmap. Everything else is in /help.",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /newtask [text #tag] — add a task (step by step without arguments)\n" +
		"• /tasks — open tasks with buttons\n" +
		"• /complete &lt;id&gt;, /undo &lt;id&gt; — mark done or reopen\n" +
		"• /priority &lt;id&gt; — toggle the star\n" +
		"• /edit &lt;id&gt; &lt;text&gt; [#tag] — change a task\n" +
		"• /delete &lt;id&gt; — remove a task\n" +
		"• /done — completed tasks\n" +
		"• /clear — delete every open task\n" +
		"• /archive — hide completed tasks (they still count)\n" +
		"• /tags — hashtags in use\n" +
		"• /stats — completion rate per hashtag\n" +
		"• /heatmap [tag] [weeks] — activity grid, use <code>-</code> for untagged\n" +
		"• /groups, /newgroup Name: item #tag; item — reusable task sets\n" +
		"• /rungroup &lt;id&gt;, /delgroup &lt;id&gt; — add a set to tasks or remove it\n" +
		"• /schedule &lt;id&gt; HH:MM-HH:MM [YYYY-MM-DD] — block time for a task\n" +
		"• /unschedule &lt;id&gt; — free the task's time block\n" +
		"• /agenda [YYYY-MM-DD] — the day's time blocks\n" +
		"• /timezone &lt;Area/City&gt; — zone used to count days\n" +
		"• /report — daily report now\n" +
		"• /cancel — stop the current dialog"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	text, err := b.reminderSvc.DailySummary(ctx, user, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the report: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

// SendDailyReports sends a summary to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}

	now := b.now()
	for i := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		user := &users[i]
		text, err := b.reminderSvc.DailySummary(ctx, user, now)
		if err != nil {
			log.Printf("build summary for user %d: %v", user.TelegramID, err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			log.Printf("send summary to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		switch req.action {
		case actionDelete:
			return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, user, req.targetID)
		case actionClearActive:
			return b.clearActive(ctx, msg.Chat.ID, user)
		case actionDeleteGroup:
			return b.deleteGroup(ctx, msg.Chat.ID, user, req.targetID)
		}
		return nil
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel, please.", confirmKeyboard())
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

// replyError turns service errors into a short chat message.
func (b *Bot) replyError(chatID int64, what string, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return b.sendText(chatID, fmt.Sprintf("%s not found.", what))
	case errors.Is(err, service.ErrInvalidInput):
		return b.sendText(chatID, fmt.Sprintf("⚠️ %s", escape(strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": "))))
	default:
		log.Printf("%s: %v", strings.ToLower(what), err)
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendMenuPlaceholder(chatID)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMenuPlaceholder(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "🔹 Main menu")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		log.Printf("callback ack: %v", err)
	}
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

// parseID reads a numeric command argument. ok is false when the user has
// already been told what went wrong.
func (b *Bot) parseID(msg *tgbotapi.Message, usage string) (uint, bool, error) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return 0, false, b.sendText(msg.Chat.ID, fmt.Sprintf("Give me an ID: %s", usage))
	}
	id, err := strconv.ParseUint(strings.Fields(args)[0], 10, 64)
	if err != nil {
		return 0, false, b.sendText(msg.Chat.ID, "The ID must be a number.")
	}
	return uint(id), true, nil
}

func parseCallbackID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func escape(text string) string {
	return html.EscapeString(text)
}
