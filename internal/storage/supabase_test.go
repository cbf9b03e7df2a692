package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fitness-debt-bot/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePostgREST answers /rest/v1/rpc/<name> with canned bodies and records request params
type fakePostgREST struct {
	mu     sync.Mutex
	bodies map[string]string
	params map[string]map[string]interface{}
	calls  map[string]int
}

func newFakeClient(t *testing.T, bodies map[string]string) (*Client, *fakePostgREST) {
	t.Helper()
	fake := &fakePostgREST{
		bodies: bodies,
		params: make(map[string]map[string]interface{}),
		calls:  make(map[string]int),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/rest/v1/rpc/")
		raw, _ := io.ReadAll(r.Body)
		var params map[string]interface{}
		_ = json.Unmarshal(raw, &params)

		fake.mu.Lock()
		fake.params[name] = params
		fake.calls[name]++
		body, ok := fake.bodies[name]
		fake.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"PGRST202","message":"Could not find the function"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, "service-key", 5, zerolog.Nop())
	require.NoError(t, err)
	return c, fake
}

func (f *fakePostgREST) paramsOf(name string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params[name]
}

func (f *fakePostgREST) callsOf(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func TestClient_UserTotals(t *testing.T) {
	c, fake := newFakeClient(t, map[string]string{
		"user_totals": `[{"total_pushups":2400,"total_abs":-35,"days":31}]`,
	})

	totals, err := c.UserTotals(context.Background(), 11, testChat)
	require.NoError(t, err)
	assert.Equal(t, models.UserTotals{TotalPushups: 2400, TotalAbs: -35, Days: 31}, *totals)

	params := fake.paramsOf("user_totals")
	assert.EqualValues(t, 11, params["p_user_id"])
	assert.EqualValues(t, testChat, params["p_chat_id"])
}

func TestClient_UserTotals_EmptyIsZero(t *testing.T) {
	c, _ := newFakeClient(t, map[string]string{"user_totals": `[]`})

	totals, err := c.UserTotals(context.Background(), 11, testChat)
	require.NoError(t, err)
	assert.Equal(t, models.UserTotals{}, *totals)
}

func TestClient_Leaderboard(t *testing.T) {
	c, fake := newFakeClient(t, map[string]string{
		"chat_leaderboard": `[
			{"user_id":2,"display_name":"Боб","total_pushups":5000,"total_abs":4000,"total":9000},
			{"user_id":1,"display_name":"Анна","total_pushups":100,"total_abs":20,"total":120}
		]`,
	})

	board, err := c.Leaderboard(context.Background(), testChat, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, models.LeaderboardEntry{UserID: 2, DisplayName: "Боб", TotalPushups: 5000, TotalAbs: 4000, Total: 9000}, board[0])
	assert.Equal(t, "Анна", board[1].DisplayName)

	assert.EqualValues(t, 10, fake.paramsOf("chat_leaderboard")["p_limit"])
}

func TestClient_StatsByDate(t *testing.T) {
	c, fake := newFakeClient(t, map[string]string{
		"chat_day_stats": `[{"user_id":2,"display_name":"user","pushups":50,"abs":0,"total":50}]`,
	})

	stats, err := c.StatsByDate(context.Background(), testChat, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, []models.DayStat{{UserID: 2, DisplayName: "user", Pushups: 50, Total: 50}}, stats)
	assert.Equal(t, "2026-10-19", fake.paramsOf("chat_day_stats")["p_date"])
}

func TestClient_SumCountAndFirstActivity(t *testing.T) {
	c, _ := newFakeClient(t, map[string]string{
		"counter_sum":         `[{"total":130}]`,
		"chat_first_activity": `[{"first_date":null}]`,
	})
	ctx := context.Background()

	sum, err := c.SumCount(ctx, 1, testChat, models.ExercisePushups)
	require.NoError(t, err)
	assert.Equal(t, 130, sum)

	first, err := c.FirstActivityDate(ctx, testChat)
	require.NoError(t, err)
	assert.Empty(t, first)
}

func TestClient_AccrueChat(t *testing.T) {
	c, fake := newFakeClient(t, map[string]string{
		"accrue_chat": `[{"applied":true,"participants":3}]`,
	})

	res, err := c.AccrueChat(context.Background(), models.AccrualRequest{
		Job: "daily_accrual", ChatID: testChat, Date: "2026-10-19", Since: "2026-10-12", Quota: 80,
	})
	require.NoError(t, err)
	assert.Equal(t, &models.AccrualResult{Applied: true, Participants: 3}, res)
	assert.EqualValues(t, 80, fake.paramsOf("accrue_chat")["p_quota"])
}

func TestClient_AccumulateIsNotRetried(t *testing.T) {
	c, fake := newFakeClient(t, map[string]string{
		"accumulate_counter": `{"code":"57014","message":"canceling statement due to statement timeout"}`,
	})

	err := c.Accumulate(context.Background(), delta(1, models.ExercisePushups, 10, "2026-10-19"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement timeout")
	assert.Equal(t, 1, fake.callsOf("accumulate_counter"))
}

func TestClient_ReadErrorIsRetriedThenReported(t *testing.T) {
	c, fake := newFakeClient(t, map[string]string{})

	_, err := c.Leaderboard(context.Background(), testChat, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat_leaderboard")
	assert.Equal(t, maxRetries+1, fake.callsOf("chat_leaderboard"))
}

func TestClient_CallIsBoundedByTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	c, err := NewClient(server.URL, "service-key", 1, zerolog.Nop())
	require.NoError(t, err)
	c.timeout = 50 * time.Millisecond

	start := time.Now()
	_, err = c.StatsByDate(context.Background(), testChat, "2026-10-19")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
