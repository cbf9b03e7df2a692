package report

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fitness-debt-bot/internal/ledger"
	"github.com/fitness-debt-bot/internal/models"
	"github.com/fitness-debt-bot/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChat int64 = -500

type fakeResolver struct {
	names map[int64]string
}

func (f fakeResolver) ResolveDisplayName(_ context.Context, _, userID int64) (string, error) {
	if name, ok := f.names[userID]; ok {
		return name, nil
	}
	return "", errors.New("user not found")
}

type testEnv struct {
	now    time.Time
	ledger *ledger.Ledger
}

func newTestEnv(t *testing.T, start string) *testEnv {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Yekaterinburg")
	require.NoError(t, err)
	now, err := time.ParseInLocation("2006-01-02 15:04", start, loc)
	require.NoError(t, err)

	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "report.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{now: now}
	env.ledger, err = ledger.New(store, "Asia/Yekaterinburg", zerolog.Nop(), ledger.WithClock(func() time.Time { return env.now }))
	require.NoError(t, err)
	return env
}

func TestBuild_EmptyChatProducesNothing(t *testing.T) {
	env := newTestEnv(t, "2026-10-19 08:00")
	b := NewBuilder(env.ledger, nil, zerolog.Nop())

	text, err := b.Build(context.Background(), testChat)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestBuild_SortsByResolvedNameAndFlagsDebt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "2026-10-15 12:00")

	// Retrieval order is Боб, Анна, Вера
	for _, p := range []struct {
		id   int64
		name string
	}{{1, "bob_db"}, {2, "anna_db"}, {3, "Вера"}} {
		_, err := env.ledger.Enroll(ctx, p.id, testChat, p.name)
		require.NoError(t, err)
	}

	env.now = env.now.AddDate(0, 0, 4)
	_, err := env.ledger.AccrueChat(ctx, testChat)
	require.NoError(t, err)
	_, err = env.ledger.MarkDone(ctx, ledger.Entry{UserID: 2, ChatID: testChat, Exercise: models.ExercisePushups, Amount: 80, DisplayName: "anna_db"})
	require.NoError(t, err)

	resolver := fakeResolver{names: map[int64]string{1: "Боб", 2: "Анна"}}
	b := NewBuilder(env.ledger, resolver, zerolog.Nop())

	text, err := b.Build(ctx, testChat)
	require.NoError(t, err)

	want := "‼️⚠️19.10.2026⚠️‼️\n" +
		"🔥 Челлендж идет уже 4 дня\n\n" +
		"<b>Анна</b>:\n" +
		"отжимания: 80;\n" +
		"пресс: 160; ⚠️\n" +
		"<b>Боб</b>:\n" +
		"отжимания: 160; ⚠️\n" +
		"пресс: 160; ⚠️\n" +
		"<b>Вера</b>:\n" +
		"отжимания: 160; ⚠️\n" +
		"пресс: 160. ⚠️"
	assert.Equal(t, want, text)
}

func TestBuild_FirstDayAndEscapedFallbackName(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "2026-10-19 08:00")

	_, err := env.ledger.Enroll(ctx, 7, testChat, "<Tom & Jerry>")
	require.NoError(t, err)

	b := NewBuilder(env.ledger, fakeResolver{}, zerolog.Nop())
	text, err := b.Build(ctx, testChat)
	require.NoError(t, err)

	assert.Contains(t, text, "🔥 Сегодня первый день челленджа!")
	assert.Contains(t, text, "<b>&lt;Tom &amp; Jerry&gt;</b>:")
	assert.True(t, strings.HasSuffix(text, "пресс: 80."), text)
}

func TestBuild_EmptyStoredNameFallsBackToID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "2026-10-19 08:00")

	_, err := env.ledger.Enroll(ctx, 42, testChat, "")
	require.NoError(t, err)

	text, err := NewBuilder(env.ledger, nil, zerolog.Nop()).Build(ctx, testChat)
	require.NoError(t, err)
	assert.Contains(t, text, "<b>id42</b>:")
}
