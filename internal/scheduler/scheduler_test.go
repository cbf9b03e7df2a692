package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fitness-debt-bot/internal/ledger"
	"github.com/fitness-debt-bot/internal/models"
	"github.com/fitness-debt-bot/internal/motivation"
	"github.com/fitness-debt-bot/internal/report"
	"github.com/fitness-debt-bot/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	chatA int64 = -101
	chatB int64 = -102
	chatC int64 = -103
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[int64]bool
}

func (f *fakeSender) SendHTML(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[chatID] {
		return errors.New("Forbidden: bot was kicked from the group chat")
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) chats() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.sent))
	for _, m := range f.sent {
		ids = append(ids, m.chatID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type fakeMotivator struct {
	calls int
}

func (f *fakeMotivator) Generate(context.Context) motivation.Content {
	f.calls++
	return motivation.Content{Fact: "fact", Tip: "tip"}
}

type fixture struct {
	now       time.Time
	ledger    *ledger.Ledger
	sender    *fakeSender
	motivator *fakeMotivator
	config    *models.BotConfig
	scheduler *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Yekaterinburg")
	require.NoError(t, err)

	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "scheduler.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		now:       time.Date(2026, 10, 18, 12, 0, 0, 0, loc),
		sender:    &fakeSender{failOn: map[int64]bool{}},
		motivator: &fakeMotivator{},
		config: &models.BotConfig{
			ReportSchedule:      "0 8 * * *",
			MotivationSchedules: []string{"0 9 * * *", "0 20 * * *"},
		},
	}
	f.ledger, err = ledger.New(store, "Asia/Yekaterinburg", zerolog.Nop(), ledger.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)

	builder := report.NewBuilder(f.ledger, nil, zerolog.Nop())
	f.scheduler, err = NewScheduler(f.ledger, builder, f.motivator, f.sender, f.config, zerolog.Nop())
	require.NoError(t, err)
	return f
}

func (f *fixture) enroll(t *testing.T, chatID, userID int64) {
	t.Helper()
	_, err := f.ledger.Enroll(context.Background(), userID, chatID, "user")
	require.NoError(t, err)
}

func TestNewScheduler_RejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	f.config.MotivationSchedules = []string{"every morning"}

	_, err := NewScheduler(f.ledger, nil, f.motivator, f.sender, f.config, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunDailyAccrualAndReport_OncePerDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.enroll(t, chatA, 1)
	f.now = f.now.AddDate(0, 0, 1)

	f.scheduler.RunDailyAccrualAndReport(ctx)
	f.scheduler.RunDailyAccrualAndReport(ctx)

	require.Equal(t, []int64{chatA}, f.sender.chats())
	assert.Contains(t, f.sender.sent[0].text, "отжимания: 160; ⚠️")

	debt, err := f.ledger.Debt(ctx, 1, chatA, models.ExercisePushups)
	require.NoError(t, err)
	assert.Equal(t, ledger.DailyQuota, debt)
}

func TestRunDailyAccrualAndReport_FailedSendIsNotRetriedSameDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.enroll(t, chatA, 1)
	f.now = f.now.AddDate(0, 0, 1)

	f.sender.failOn = map[int64]bool{chatA: true}
	f.scheduler.RunDailyAccrualAndReport(ctx)

	f.sender.failOn = nil
	f.scheduler.RunDailyAccrualAndReport(ctx)
	assert.Empty(t, f.sender.chats())

	debt, err := f.ledger.Debt(ctx, 1, chatA, models.ExercisePushups)
	require.NoError(t, err)
	assert.Equal(t, ledger.DailyQuota, debt)

	f.now = f.now.AddDate(0, 0, 1)
	f.scheduler.RunDailyAccrualAndReport(ctx)
	assert.Equal(t, []int64{chatA}, f.sender.chats())
}

func TestRunDailyAccrualAndReport_IsolatesChatFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.enroll(t, chatA, 1)
	f.enroll(t, chatB, 2)
	f.enroll(t, chatC, 3)
	f.sender.failOn[chatB] = true
	f.now = f.now.AddDate(0, 0, 1)

	f.scheduler.RunDailyAccrualAndReport(ctx)

	assert.Equal(t, []int64{chatC, chatA}, f.sender.chats())

	// The failing chat was still accrued
	debt, err := f.ledger.Debt(ctx, 2, chatB, models.ExerciseAbs)
	require.NoError(t, err)
	assert.Equal(t, ledger.DailyQuota, debt)
}

func TestRunDailyAccrualAndReport_RespectsAllowlist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.config.AllowedChatIDs = []int64{chatB}
	f.enroll(t, chatA, 1)
	f.enroll(t, chatB, 2)
	f.now = f.now.AddDate(0, 0, 1)

	f.scheduler.RunDailyAccrualAndReport(ctx)

	assert.Equal(t, []int64{chatB}, f.sender.chats())
	debt, err := f.ledger.Debt(ctx, 1, chatA, models.ExercisePushups)
	require.NoError(t, err)
	assert.Zero(t, debt)
}

func TestRunMotivationalBroadcast(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.scheduler.RunMotivationalBroadcast(ctx)
	assert.Zero(t, f.motivator.calls)
	assert.Empty(t, f.sender.chats())

	f.enroll(t, chatA, 1)
	f.enroll(t, chatB, 2)
	f.scheduler.RunMotivationalBroadcast(ctx)

	assert.Equal(t, 1, f.motivator.calls)
	require.Equal(t, []int64{chatB, chatA}, f.sender.chats())
	for _, m := range f.sender.sent {
		assert.Equal(t, motivation.Format(motivation.Content{Fact: "fact", Tip: "tip"}), m.text)
	}
}

func TestStart_ReturnsOnCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.scheduler.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
