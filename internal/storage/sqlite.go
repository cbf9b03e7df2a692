package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fitness-debt-bot/internal/models"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const (
	upsertCounterSQL = `
		INSERT INTO exercise_counters (user_id, chat_id, exercise, date, count, display_name)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, chat_id, exercise, date)
		DO UPDATE SET count = exercise_counters.count + excluded.count,
		              display_name = excluded.display_name`

	accrueCounterSQL = `
		INSERT INTO exercise_counters (user_id, chat_id, exercise, date, count, display_name)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, chat_id, exercise, date)
		DO UPDATE SET count = exercise_counters.count + excluded.count`

	participantsSQL = `
		SELECT user_id, MAX(display_name) FROM exercise_counters
		WHERE chat_id = ? AND date >= ?
		GROUP BY user_id
		ORDER BY MIN(id)`

	perUserSumsSQL = `
		SELECT user_id, MAX(display_name),
		       COALESCE(SUM(CASE WHEN exercise = 'pushups' THEN count END), 0),
		       COALESCE(SUM(CASE WHEN exercise = 'abs' THEN count END), 0)
		FROM exercise_counters`
)

// SQLite is the local counter store. Writes go through a single connection,
// so every accumulate is serialized and runs as one upsert statement.
type SQLite struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLite opens (and migrates) the database at dbPath
func NewSQLite(dbPath string, logger zerolog.Logger) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{
		db:     db,
		logger: logger.With().Str("component", "storage").Str("backend", "sqlite").Logger(),
	}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *SQLite) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS exercise_counters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			chat_id INTEGER NOT NULL,
			exercise TEXT NOT NULL CHECK (exercise IN ('pushups', 'abs')),
			date TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			display_name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE (user_id, chat_id, exercise, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exercise_counters_chat_date ON exercise_counters(chat_id, date)`,
		`CREATE TABLE IF NOT EXISTS job_runs (
			job TEXT NOT NULL,
			chat_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (job, chat_id, date)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Ping checks the database handle
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Accumulate adds delta to the (user, chat, exercise, date) bucket, creating it when missing
func (s *SQLite) Accumulate(ctx context.Context, d models.CounterDelta) error {
	_, err := s.db.ExecContext(ctx, upsertCounterSQL,
		d.UserID, d.ChatID, d.Exercise.String(), d.Date, d.Delta, d.DisplayName)
	if err != nil {
		return fmt.Errorf("upsert counter: %w", err)
	}
	return nil
}

// DayCount returns the raw count of one bucket, 0 when it does not exist
func (s *SQLite) DayCount(ctx context.Context, userID, chatID int64, exercise models.Exercise, date string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count FROM exercise_counters
		WHERE user_id = ? AND chat_id = ? AND exercise = ? AND date = ?`,
		userID, chatID, exercise.String(), date).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select day count: %w", err)
	}
	return count, nil
}

// SumCount returns the raw all-time sum for the user, chat and exercise
func (s *SQLite) SumCount(ctx context.Context, userID, chatID int64, exercise models.Exercise) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(count), 0) FROM exercise_counters
		WHERE user_id = ? AND chat_id = ? AND exercise = ?`,
		userID, chatID, exercise.String()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("select counter sum: %w", err)
	}
	return total, nil
}

// Participants returns distinct users of the chat with a row dated on or after since,
// in order of their first row
func (s *SQLite) Participants(ctx context.Context, chatID int64, since string) ([]models.Participant, error) {
	return queryParticipants(ctx, s.db, chatID, since)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryParticipants(ctx context.Context, q queryer, chatID int64, since string) ([]models.Participant, error) {
	rows, err := q.QueryContext(ctx, participantsSQL, chatID, since)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.UserID, &p.DisplayName); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ActiveChats returns chats with any row dated on or after since
func (s *SQLite) ActiveChats(ctx context.Context, since string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT chat_id FROM exercise_counters
		WHERE date >= ?
		ORDER BY chat_id`, since)
	if err != nil {
		return nil, fmt.Errorf("select active chats: %w", err)
	}
	defer rows.Close()

	var chats []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		chats = append(chats, chatID)
	}
	return chats, rows.Err()
}

// FirstActivityDate returns the earliest row date of the chat, "" when there is none
func (s *SQLite) FirstActivityDate(ctx context.Context, chatID int64) (string, error) {
	var first sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(date) FROM exercise_counters WHERE chat_id = ?`, chatID).Scan(&first)
	if err != nil {
		return "", fmt.Errorf("select first activity: %w", err)
	}
	return first.String, nil
}

// UserTotals returns all-time raw sums and distinct active days for a user in a chat
func (s *SQLite) UserTotals(ctx context.Context, userID, chatID int64) (*models.UserTotals, error) {
	totals := &models.UserTotals{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN exercise = 'pushups' THEN count END), 0),
		       COALESCE(SUM(CASE WHEN exercise = 'abs' THEN count END), 0),
		       COUNT(DISTINCT date)
		FROM exercise_counters
		WHERE user_id = ? AND chat_id = ?`,
		userID, chatID).Scan(&totals.TotalPushups, &totals.TotalAbs, &totals.Days)
	if err != nil {
		return nil, fmt.Errorf("select user totals: %w", err)
	}
	return totals, nil
}

// Leaderboard returns the top users of a chat by all-time raw total
func (s *SQLite) Leaderboard(ctx context.Context, chatID int64, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, perUserSumsSQL+`
		WHERE chat_id = ?
		GROUP BY user_id
		ORDER BY SUM(count) DESC, MIN(id)
		LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.TotalPushups, &e.TotalAbs); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		e.Total = e.TotalPushups + e.TotalAbs
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// StatsByDate returns per-user sums for one date, sorted by total descending
func (s *SQLite) StatsByDate(ctx context.Context, chatID int64, date string) ([]models.DayStat, error) {
	rows, err := s.db.QueryContext(ctx, perUserSumsSQL+`
		WHERE chat_id = ? AND date = ?
		GROUP BY user_id
		ORDER BY SUM(count) DESC, MIN(id)`, chatID, date)
	if err != nil {
		return nil, fmt.Errorf("select stats by date: %w", err)
	}
	defer rows.Close()

	var stats []models.DayStat
	for rows.Next() {
		var st models.DayStat
		if err := rows.Scan(&st.UserID, &st.DisplayName, &st.Pushups, &st.Abs); err != nil {
			return nil, fmt.Errorf("scan day stat: %w", err)
		}
		st.Total = st.Pushups + st.Abs
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// AccrueChat claims the (job, chat, date) marker and books the quota for every
// participant in one transaction; nothing is written when any step fails.
func (s *SQLite) AccrueChat(ctx context.Context, req models.AccrualRequest) (*models.AccrualResult, error) {
	startTime := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin accrual: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO job_runs (job, chat_id, date) VALUES (?, ?, ?)`,
		req.Job, req.ChatID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("claim job run: %w", err)
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim job run: %w", err)
	}
	if claimed == 0 {
		return &models.AccrualResult{Applied: false}, nil
	}

	participants, err := queryParticipants(ctx, tx, req.ChatID, req.Since)
	if err != nil {
		return nil, err
	}

	for _, p := range participants {
		for _, exercise := range models.Exercises {
			if _, err := tx.ExecContext(ctx, accrueCounterSQL,
				p.UserID, req.ChatID, exercise.String(), req.Date, req.Quota, p.DisplayName); err != nil {
				return nil, fmt.Errorf("accrue %s for user %d: %w", exercise, p.UserID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit accrual: %w", err)
	}

	s.logger.Debug().
		Int64("chat_id", req.ChatID).
		Str("date", req.Date).
		Int("participants", len(participants)).
		Dur("duration", time.Since(startTime)).
		Msg("Accrual transaction committed")

	return &models.AccrualResult{Applied: true, Participants: len(participants)}, nil
}
