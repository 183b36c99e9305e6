package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-tracker/internal/config"
	"habit-tracker/internal/model"
	"habit-tracker/internal/realtime"
	"habit-tracker/internal/repository"
	"habit-tracker/internal/service"
)

const telegramID int64 = 42

var fixedNow = time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	acks     []tgbotapi.CallbackConfig
	updates  chan tgbotapi.Update
	stopOnce sync.Once
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.acks = append(f.acks, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.stopOnce.Do(func() { close(f.updates) })
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (f *fakeAPI) last() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (f *fakeAPI) contains(fragment string) bool {
	for _, text := range f.texts() {
		if strings.Contains(text, fragment) {
			return true
		}
	}
	return false
}

type harness struct {
	bot *Bot
	api *fakeAPI
	svc Services
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	feed := realtime.NewMemoryFeed()
	t.Cleanup(feed.Close)

	taskRepo := repository.NewTaskRepository(db)
	tasks := service.NewTaskService(taskRepo, feed)
	stats := service.NewStatsService(taskRepo, feed, 0, time.UTC)
	svc := Services{
		Users:    repository.NewUserRepository(db),
		Tasks:    tasks,
		Groups:   service.NewGroupService(repository.NewTaskGroupRepository(db), tasks, feed),
		Stats:    stats,
		Reminder: service.NewReminderService(taskRepo, stats),
		Blocks:   service.NewTimeBlockService(repository.NewTimeBlockRepository(db), taskRepo, feed),
	}

	api := newFakeAPI()
	b := newBot(api, svc, &config.Config{})
	b.now = func() time.Time { return fixedNow }
	return &harness{bot: b, api: api, svc: svc}
}

func message(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: telegramID, FirstName: "Ada"},
		Chat: &tgbotapi.Chat{ID: telegramID, Type: "private"},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		n := strings.IndexByte(text, ' ')
		if n < 0 {
			n = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}}
	}
	return msg
}

func (h *harness) say(t *testing.T, text string) {
	t.Helper()
	h.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: message(text)})
}

func (h *harness) user(t *testing.T) *model.User {
	t.Helper()
	user, err := h.svc.Users.FindByTelegramID(context.Background(), telegramID)
	require.NoError(t, err)
	return user
}

func (h *harness) openTasks(t *testing.T) []model.Task {
	t.Helper()
	tasks, err := h.svc.Tasks.ListOpen(context.Background(), h.user(t))
	require.NoError(t, err)
	return tasks
}

func TestBot_NewTaskConversation(t *testing.T) {
	h := newHarness(t)

	h.say(t, "/newtask")
	assert.Contains(t, h.api.last(), "Step 1")
	h.say(t, "read a chapter")
	assert.Contains(t, h.api.last(), "Step 2")
	h.say(t, "two words")
	assert.Contains(t, h.api.last(), "single word")
	h.say(t, "#Reading")
	assert.Contains(t, h.api.last(), "Step 3")
	h.say(t, "maybe")
	assert.Contains(t, h.api.last(), "yes or no")
	h.say(t, btnYes)

	assert.True(t, h.api.contains("Task saved"))
	tasks := h.openTasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, "read a chapter", tasks[0].Text)
	assert.Equal(t, "reading", tasks[0].Hashtag)
	assert.True(t, tasks[0].IsPriority)
	assert.Contains(t, h.api.last(), "Open tasks")
}

func TestBot_CancelConversation(t *testing.T) {
	h := newHarness(t)

	h.say(t, "/newtask")
	h.say(t, btnCancelDialog)
	assert.Contains(t, h.api.last(), "Cancelled")
	h.say(t, "stray text")
	assert.Contains(t, h.api.last(), "did not get that")
	assert.Empty(t, h.openTasks(t))
}

func TestBot_CompleteUndoAndPriority(t *testing.T) {
	h := newHarness(t)

	h.say(t, "/newtask stretch #health")
	tasks := h.openTasks(t)
	require.Len(t, tasks, 1)
	id := tasks[0].ID

	h.say(t, fmt.Sprintf("/priority %d", id))
	assert.Contains(t, h.api.last(), "is a priority now")

	h.say(t, fmt.Sprintf("/complete %d", id))
	assert.Contains(t, h.api.last(), "done")
	assert.Empty(t, h.openTasks(t))

	h.say(t, "/done")
	assert.Contains(t, h.api.last(), "2024-03-06 12:00")

	h.say(t, fmt.Sprintf("/undo %d", id))
	assert.Contains(t, h.api.last(), "open again")
	assert.Len(t, h.openTasks(t), 1)

	h.say(t, "/complete 999")
	assert.Equal(t, "Task not found.", h.api.last())
	h.say(t, "/complete abc")
	assert.Equal(t, "The ID must be a number.", h.api.last())
}

func TestBot_EditTask(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/newtask stretch")
	id := h.openTasks(t)[0].ID

	h.say(t, fmt.Sprintf("/edit %d stretch for ten minutes #health", id))
	assert.Contains(t, h.api.last(), "Updated")

	task := h.openTasks(t)[0]
	assert.Equal(t, "stretch for ten minutes", task.Text)
	assert.Equal(t, "health", task.Hashtag)

	h.say(t, fmt.Sprintf("/edit %d", id))
	assert.Contains(t, h.api.last(), "Add the new text")
}

func TestBot_DeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/newtask one")
	id := h.openTasks(t)[0].ID

	h.say(t, fmt.Sprintf("/delete %d", id))
	assert.Contains(t, h.api.last(), "Delete «One»")
	h.say(t, btnCancel)
	assert.Len(t, h.openTasks(t), 1)

	h.say(t, fmt.Sprintf("/delete %d", id))
	h.say(t, btnConfirm)
	assert.Empty(t, h.openTasks(t))
	assert.True(t, h.api.contains("deleted"))
}

func TestBot_ClearAndArchive(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/newtask open one")
	h.say(t, "/newtask finished #work")
	for _, task := range h.openTasks(t) {
		if task.Hashtag == "work" {
			h.say(t, fmt.Sprintf("/complete %d", task.ID))
		}
	}

	h.say(t, "/clear")
	h.say(t, btnConfirm)
	assert.True(t, h.api.contains("Deleted 1 open task(s)"))
	assert.Empty(t, h.openTasks(t))

	h.say(t, "/archive")
	assert.Contains(t, h.api.last(), "Archived 1 completed task(s)")

	h.say(t, "/stats")
	assert.Contains(t, h.api.last(), "<b>#work</b>")
	assert.Contains(t, h.api.last(), "100%")
}

func TestBot_StatsAndHeatmap(t *testing.T) {
	h := newHarness(t)

	h.say(t, "/stats")
	assert.Equal(t, "No tasks yet.", h.api.last())
	h.say(t, "/heatmap")
	assert.Contains(t, h.api.last(), "nothing to draw")

	h.say(t, "/newtask run #gym")
	h.say(t, fmt.Sprintf("/complete %d", h.openTasks(t)[0].ID))
	h.say(t, "/newtask journal")

	h.say(t, "/heatmap gym 4")
	out := h.api.last()
	assert.Contains(t, out, "<b>#gym</b> · 2024-02-12 to 2024-03-10")
	assert.Contains(t, out, "<pre>")
	assert.Contains(t, out, "1 done on 1 days")

	before := len(h.api.texts())
	h.say(t, "/heatmap")
	assert.Len(t, h.api.texts(), before+2, "one message per category")

	h.say(t, "/heatmap -")
	assert.Contains(t, h.api.last(), "<b>uncategorized</b>")

	h.say(t, "/tags")
	assert.Contains(t, h.api.last(), "#gym")
}

func TestBot_Groups(t *testing.T) {
	h := newHarness(t)

	h.say(t, "/groups")
	assert.Contains(t, h.api.last(), "No groups yet")

	h.say(t, "/newgroup Morning: stretch #health; plan the day")
	assert.Contains(t, h.api.last(), "Group saved")

	groups, err := h.svc.Groups.ListGroups(context.Background(), h.user(t))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	id := groups[0].ID

	h.say(t, "/groups")
	assert.Contains(t, h.api.last(), "Morning")

	h.say(t, fmt.Sprintf("/rungroup %d", id))
	assert.True(t, h.api.contains("Added 2 task(s)"))
	assert.Len(t, h.openTasks(t), 2)

	h.say(t, fmt.Sprintf("/delgroup %d", id))
	h.say(t, btnConfirm)
	assert.True(t, h.api.contains("Group deleted"))
	h.say(t, fmt.Sprintf("/rungroup %d", id))
	assert.Equal(t, "Group not found.", h.api.last())
}

func TestBot_Timezone(t *testing.T) {
	h := newHarness(t)

	h.say(t, "/timezone")
	assert.Contains(t, h.api.last(), "<b>UTC</b>")

	h.say(t, "/timezone Mars/Olympus")
	assert.Contains(t, h.api.last(), "Unknown time zone")

	h.say(t, "/timezone Asia/Tokyo")
	assert.Contains(t, h.api.last(), "It is 21:00 there now")
	assert.Equal(t, "Asia/Tokyo", h.user(t).Timezone)
}

func TestBot_Callbacks(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/newtask water plants #home")
	id := h.openTasks(t)[0].ID

	callback := func(data string) {
		h.bot.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      data,
			From:    &tgbotapi.User{ID: telegramID, FirstName: "Ada"},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: telegramID, Type: "private"}},
			Data:    data,
		}})
	}

	callback(fmt.Sprintf("%s%d", cbPriorityPrefix, id))
	assert.True(t, h.openTasks(t)[0].IsPriority)

	callback(fmt.Sprintf("%s%d", cbCompletePrefix, id))
	assert.Empty(t, h.openTasks(t))

	callback(fmt.Sprintf("%s%d", cbUndoPrefix, id))
	assert.Len(t, h.openTasks(t), 1)

	callback("unknown:1")
	h.api.mu.Lock()
	assert.Len(t, h.api.acks, 4)
	h.api.mu.Unlock()
}

func TestBot_IgnoresGroupChats(t *testing.T) {
	h := newHarness(t)
	msg := message("/start")
	msg.Chat.Type = "group"
	h.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})
	assert.Empty(t, h.api.texts())
}

func TestBot_ReportAndDailyReports(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/start")
	assert.Contains(t, h.api.last(), "Hi, Ada")

	h.say(t, "/report")
	assert.Contains(t, h.api.last(), "Daily report")

	before := len(h.api.texts())
	require.NoError(t, h.bot.SendDailyReports(context.Background()))
	assert.Len(t, h.api.texts(), before+1)
}

func TestBot_StartStopsWithContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.bot.Start(ctx) }()

	h.api.updates <- tgbotapi.Update{Message: message("/help")}
	require.Eventually(t, func() bool { return h.api.contains("Commands") }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}
}

func TestBot_ScheduleAgendaAndAlerts(t *testing.T) {
	h := newHarness(t)
	h.say(t, "/start")
	h.say(t, "/timezone Asia/Tokyo")
	h.say(t, "/newtask stretch #health")
	tasks := h.openTasks(t)
	require.Len(t, tasks, 1)
	id := tasks[0].ID

	// fixedNow is 21:00 in Tokyo.
	h.say(t, fmt.Sprintf("/schedule %d 21:10-21:40", id))
	assert.Contains(t, h.api.last(), "<b>stretch</b> is scheduled for Wed, Mar 6 21:10-21:40")

	h.say(t, fmt.Sprintf("/schedule %d 22:00-21:00", id))
	assert.Contains(t, h.api.last(), "end must be after start")
	h.say(t, fmt.Sprintf("/schedule %d 9am", id))
	assert.Contains(t, h.api.last(), "needs a dash")
	h.say(t, fmt.Sprintf("/schedule %d 09:00-10:00 someday", id))
	assert.Contains(t, h.api.last(), "The date must look like")
	h.say(t, "/schedule 999 09:00-10:00")
	assert.Contains(t, h.api.last(), "Task not found.")

	h.say(t, "/agenda")
	assert.Contains(t, h.api.last(), "Agenda for Wed, Mar 6")
	assert.Contains(t, h.api.last(), fmt.Sprintf("21:10-21:40 stretch <i>#health</i> (task %d)", id))
	h.say(t, "/agenda 2024-03-07")
	assert.Contains(t, h.api.last(), "Nothing scheduled for Thu, Mar 7")

	require.NoError(t, h.bot.SendTimeBlockAlerts(context.Background()))
	assert.Contains(t, h.api.last(), "stretch starts in 10 minutes (21:10-21:40)")
	before := len(h.api.texts())
	require.NoError(t, h.bot.SendTimeBlockAlerts(context.Background()))
	assert.Len(t, h.api.texts(), before)

	h.say(t, fmt.Sprintf("/schedule %d 21:05-21:30 2024-03-06", id))
	require.NoError(t, h.bot.SendTimeBlockAlerts(context.Background()))
	assert.Contains(t, h.api.last(), "stretch starts in 5 minutes (21:05-21:30)")

	h.say(t, fmt.Sprintf("/unschedule %d", id))
	assert.Contains(t, h.api.last(), "Removed the time block of <b>stretch</b>")
	h.say(t, fmt.Sprintf("/unschedule %d", id))
	assert.Contains(t, h.api.last(), "Time block not found.")
}
