package models

import "time"

// Exercise identifies one of the two tracked exercise types
type Exercise string

const (
	// ExercisePushups is tracked by /pushups and /отжимания
	ExercisePushups Exercise = "pushups"

	// ExerciseAbs is tracked by /abs and /пресс
	ExerciseAbs Exercise = "abs"
)

// Exercises lists every tracked exercise in display order
var Exercises = []Exercise{ExercisePushups, ExerciseAbs}

// String returns string representation of Exercise
func (e Exercise) String() string {
	return string(e)
}

// Valid reports whether e is a known exercise
func (e Exercise) Valid() bool {
	return e == ExercisePushups || e == ExerciseAbs
}

// CounterRow is one daily bucket of a user's signed counter for one exercise in one chat
type CounterRow struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ChatID      int64     `json:"chat_id"`
	Exercise    Exercise  `json:"exercise"`
	Date        string    `json:"date"` // Format: YYYY-MM-DD in the bot timezone
	Count       int       `json:"count"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// CounterDelta is a single accumulate request against today's bucket
type CounterDelta struct {
	UserID      int64
	ChatID      int64
	Exercise    Exercise
	Delta       int
	DisplayName string
	Date        string // Format: YYYY-MM-DD
}

// Participant is a user with at least one counter row inside the activity window
type Participant struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// AccrualRequest asks the store to apply the daily quota to every participant of a chat,
// at most once per (Job, ChatID, Date)
type AccrualRequest struct {
	Job    string
	ChatID int64
	Date   string // day the quota is booked on
	Since  string // first day of the participant window, inclusive
	Quota  int
}

// AccrualResult describes what AccrueChat did
type AccrualResult struct {
	Applied      bool // false when the marker for this day already existed
	Participants int
}

// UserTotals holds all-time raw sums for one user in one chat
type UserTotals struct {
	TotalPushups int `json:"total_pushups"`
	TotalAbs     int `json:"total_abs"`
	Days         int `json:"days"`
}

// UserStats is the /my_stats view
type UserStats struct {
	UserTotals
	PushupsDebt int
	AbsDebt     int
	AvgPerDay   float64
}

// LeaderboardEntry is one row of the all-time leaderboard
type LeaderboardEntry struct {
	UserID       int64  `json:"user_id"`
	DisplayName  string `json:"display_name"`
	TotalPushups int    `json:"total_pushups"`
	TotalAbs     int    `json:"total_abs"`
	Total        int    `json:"total"`
}

// DayStat is one user's sums for a single date
type DayStat struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Pushups     int    `json:"pushups"`
	Abs         int    `json:"abs"`
	Total       int    `json:"total"`
}

// BotConfig represents bot configuration
type BotConfig struct {
	// Telegram settings
	TelegramToken    string
	TelegramUsername string
	AllowedChatIDs   []int64 // Empty means every group chat is served
	TelegramTimeout  int     // Seconds for identity lookups and sends

	// Gemini API settings
	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout int

	// Storage settings
	StorageBackend  string // "sqlite" or "supabase"
	SQLitePath      string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseTimeout int

	// Schedules (cron expressions evaluated in Timezone)
	ReportSchedule      string
	MotivationSchedules []string

	// App settings
	Timezone    string
	LogLevel    string
	Environment string
}

// IsAllowedChat checks if the given chat ID may use the bot
func (c *BotConfig) IsAllowedChat(chatID int64) bool {
	if len(c.AllowedChatIDs) == 0 {
		return true
	}
	for _, allowedID := range c.AllowedChatIDs {
		if allowedID == chatID {
			return true
		}
	}
	return false
}
