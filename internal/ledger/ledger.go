package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fitness-debt-bot/internal/models"
	"github.com/rs/zerolog"
)

const (
	// DailyQuota is how many repetitions of each exercise a participant owes per day
	DailyQuota = 80

	// WindowDays is the trailing window (inclusive of today-WindowDays) that defines participants
	WindowDays = 7

	// LeaderboardSize limits /leaderboard output
	LeaderboardSize = 10

	// MaxAmount bounds |amount| of a single command so counter sums stay in range
	MaxAmount = 10000

	dateLayout = "2006-01-02"
)

var (
	// ErrZeroAmount is returned for a signed add of 0
	ErrZeroAmount = errors.New("amount must not be zero")

	// ErrAmountTooLarge is returned when |amount| exceeds MaxAmount
	ErrAmountTooLarge = fmt.Errorf("amount must not exceed %d", MaxAmount)

	// ErrUnknownExercise is returned for an exercise other than pushups or abs
	ErrUnknownExercise = errors.New("unknown exercise")
)

// Store is the counter persistence the ledger works on.
// Implementations must make Accumulate an atomic read-modify-write per
// (user, chat, exercise, date) and AccrueChat atomic per chat and day.
type Store interface {
	Accumulate(ctx context.Context, delta models.CounterDelta) error
	DayCount(ctx context.Context, userID, chatID int64, exercise models.Exercise, date string) (int, error)
	SumCount(ctx context.Context, userID, chatID int64, exercise models.Exercise) (int, error)
	Participants(ctx context.Context, chatID int64, since string) ([]models.Participant, error)
	ActiveChats(ctx context.Context, since string) ([]int64, error)
	FirstActivityDate(ctx context.Context, chatID int64) (string, error)
	UserTotals(ctx context.Context, userID, chatID int64) (*models.UserTotals, error)
	Leaderboard(ctx context.Context, chatID int64, limit int) ([]models.LeaderboardEntry, error)
	StatsByDate(ctx context.Context, chatID int64, date string) ([]models.DayStat, error)
	AccrueChat(ctx context.Context, req models.AccrualRequest) (*models.AccrualResult, error)
}

// Entry is a user command applied to one exercise
type Entry struct {
	UserID      int64
	ChatID      int64
	Exercise    models.Exercise
	Amount      int
	DisplayName string
}

// AddResult is returned by Add
type AddResult struct {
	TodayTotal int
	Remaining  int // max(0, DailyQuota - TodayTotal)
}

// MarkDoneResult is returned by MarkDone
type MarkDoneResult struct {
	Enrolled bool
	Debt     int // for the entry's exercise; unused when Enrolled
	Debts    map[models.Exercise]int
}

// Ledger applies obligation semantics on top of a Store
type Ledger struct {
	store    Store
	timezone *time.Location
	now      func() time.Time
	logger   zerolog.Logger
}

// Option customizes a Ledger
type Option func(*Ledger)

// WithClock overrides the wall clock, used by tests and manual backfills
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a ledger over store, computing calendar days in timezone
func New(store Store, timezone string, logger zerolog.Logger, opts ...Option) (*Ledger, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}

	l := &Ledger{
		store:    store,
		timezone: loc,
		now:      time.Now,
		logger:   logger.With().Str("component", "ledger").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Location returns the ledger timezone
func (l *Ledger) Location() *time.Location {
	return l.timezone
}

// Now returns the current time in the ledger timezone
func (l *Ledger) Now() time.Time {
	return l.now().In(l.timezone)
}

// Today returns today's date as YYYY-MM-DD in the ledger timezone
func (l *Ledger) Today() string {
	return l.Now().Format(dateLayout)
}

func (l *Ledger) windowStart() string {
	return l.Now().AddDate(0, 0, -WindowDays).Format(dateLayout)
}

// Add applies a signed amount to today's bucket (the /pushups and /abs commands).
// The remaining value is against a single day's quota and ignores older debt.
func (l *Ledger) Add(ctx context.Context, e Entry) (*AddResult, error) {
	if !e.Exercise.Valid() {
		return nil, ErrUnknownExercise
	}
	if e.Amount == 0 {
		return nil, ErrZeroAmount
	}
	if e.Amount > MaxAmount || e.Amount < -MaxAmount {
		return nil, ErrAmountTooLarge
	}

	if err := l.accumulate(ctx, e.UserID, e.ChatID, e.Exercise, e.Amount, e.DisplayName); err != nil {
		return nil, err
	}

	total, err := l.TodayTotal(ctx, e.UserID, e.ChatID, e.Exercise)
	if err != nil {
		return nil, err
	}

	remaining := DailyQuota - total
	if remaining < 0 {
		remaining = 0
	}
	return &AddResult{TodayTotal: total, Remaining: remaining}, nil
}

// MarkDone records completed repetitions (the /отжимания and /пресс commands).
// The amount is always subtracted; an amount of 0 enrolls the user instead.
func (l *Ledger) MarkDone(ctx context.Context, e Entry) (*MarkDoneResult, error) {
	if !e.Exercise.Valid() {
		return nil, ErrUnknownExercise
	}
	if e.Amount > MaxAmount || e.Amount < -MaxAmount {
		return nil, ErrAmountTooLarge
	}

	amount := e.Amount
	if amount < 0 {
		amount = -amount
	}

	if amount == 0 {
		debts, err := l.Enroll(ctx, e.UserID, e.ChatID, e.DisplayName)
		if err != nil {
			return nil, err
		}
		return &MarkDoneResult{Enrolled: true, Debts: debts}, nil
	}

	if err := l.accumulate(ctx, e.UserID, e.ChatID, e.Exercise, -amount, e.DisplayName); err != nil {
		return nil, err
	}

	debt, err := l.Debt(ctx, e.UserID, e.ChatID, e.Exercise)
	if err != nil {
		return nil, err
	}
	return &MarkDoneResult{Debt: debt}, nil
}

// Enroll creates today's zero rows for both exercises, making the user a participant
// without changing any balance. Returns current debts.
func (l *Ledger) Enroll(ctx context.Context, userID, chatID int64, displayName string) (map[models.Exercise]int, error) {
	debts := make(map[models.Exercise]int, len(models.Exercises))
	for _, exercise := range models.Exercises {
		if err := l.accumulate(ctx, userID, chatID, exercise, 0, displayName); err != nil {
			return nil, err
		}
		debt, err := l.Debt(ctx, userID, chatID, exercise)
		if err != nil {
			return nil, err
		}
		debts[exercise] = debt
	}

	l.logger.Info().
		Int64("user_id", userID).
		Int64("chat_id", chatID).
		Str("display_name", displayName).
		Msg("User enrolled")

	return debts, nil
}

func (l *Ledger) accumulate(ctx context.Context, userID, chatID int64, exercise models.Exercise, delta int, displayName string) error {
	d := models.CounterDelta{
		UserID:      userID,
		ChatID:      chatID,
		Exercise:    exercise,
		Delta:       delta,
		DisplayName: displayName,
		Date:        l.Today(),
	}
	if err := l.store.Accumulate(ctx, d); err != nil {
		l.logger.Error().
			Err(err).
			Int64("user_id", userID).
			Int64("chat_id", chatID).
			Str("exercise", exercise.String()).
			Int("delta", delta).
			Msg("Failed to accumulate counter")
		return fmt.Errorf("failed to accumulate %s: %w", exercise, err)
	}

	l.logger.Debug().
		Int64("user_id", userID).
		Int64("chat_id", chatID).
		Str("exercise", exercise.String()).
		Int("delta", delta).
		Str("date", d.Date).
		Msg("Counter accumulated")
	return nil
}

// TodayTotal returns today's bucket for the exercise, floored at 0
func (l *Ledger) TodayTotal(ctx context.Context, userID, chatID int64, exercise models.Exercise) (int, error) {
	count, err := l.store.DayCount(ctx, userID, chatID, exercise, l.Today())
	if err != nil {
		return 0, fmt.Errorf("failed to get today total: %w", err)
	}
	return floor(count), nil
}

// Debt returns the all-time sum for the exercise, floored at 0
func (l *Ledger) Debt(ctx context.Context, userID, chatID int64, exercise models.Exercise) (int, error) {
	sum, err := l.store.SumCount(ctx, userID, chatID, exercise)
	if err != nil {
		return 0, fmt.Errorf("failed to get debt: %w", err)
	}
	return floor(sum), nil
}

// Participants returns users of the chat with a row inside the activity window
func (l *Ledger) Participants(ctx context.Context, chatID int64) ([]models.Participant, error) {
	participants, err := l.store.Participants(ctx, chatID, l.windowStart())
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	return participants, nil
}

// ActiveChats returns chats with any row inside the activity window
func (l *Ledger) ActiveChats(ctx context.Context) ([]int64, error) {
	chats, err := l.store.ActiveChats(ctx, l.windowStart())
	if err != nil {
		return nil, fmt.Errorf("failed to get active chats: %w", err)
	}
	return chats, nil
}

// FirstActivityDate returns the earliest row date of the chat; ok is false for a chat without rows
func (l *Ledger) FirstActivityDate(ctx context.Context, chatID int64) (first time.Time, ok bool, err error) {
	date, err := l.store.FirstActivityDate(ctx, chatID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get first activity date: %w", err)
	}
	if date == "" {
		return time.Time{}, false, nil
	}

	first, err = time.ParseInLocation(dateLayout, date, l.timezone)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse first activity date %q: %w", date, err)
	}
	return first, true, nil
}

// DaysSince counts whole calendar days from first to today in the ledger timezone
func (l *Ledger) DaysSince(first time.Time) int {
	now := l.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, l.timezone)
	start := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, l.timezone)
	// Round to absorb DST shifts
	return int((today.Sub(start) + 12*time.Hour) / (24 * time.Hour))
}

// UserStats returns the /my_stats view; nil when the user has no rows in the chat
func (l *Ledger) UserStats(ctx context.Context, userID, chatID int64) (*models.UserStats, error) {
	totals, err := l.store.UserTotals(ctx, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user totals: %w", err)
	}
	if totals == nil || totals.Days == 0 {
		return nil, nil
	}

	stats := &models.UserStats{
		UserTotals:  *totals,
		PushupsDebt: floor(totals.TotalPushups),
		AbsDebt:     floor(totals.TotalAbs),
		AvgPerDay:   float64(totals.TotalPushups+totals.TotalAbs) / float64(totals.Days),
	}
	return stats, nil
}

// Leaderboard returns the top users of the chat by all-time total
func (l *Ledger) Leaderboard(ctx context.Context, chatID int64) ([]models.LeaderboardEntry, error) {
	entries, err := l.store.Leaderboard(ctx, chatID, LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return entries, nil
}

// StatsToday returns per-user sums for today
func (l *Ledger) StatsToday(ctx context.Context, chatID int64) ([]models.DayStat, error) {
	stats, err := l.store.StatsByDate(ctx, chatID, l.Today())
	if err != nil {
		return nil, fmt.Errorf("failed to get stats for today: %w", err)
	}
	return stats, nil
}

func floor(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
