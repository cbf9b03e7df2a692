package report

import "fmt"

// dayWord picks the noun form for "day" after n.
// Thresholds are 1 / 2-4 / 5+; the 11-14 exception of Russian grammar is not applied.
func dayWord(n int) string {
	switch {
	case n == 1:
		return "день"
	case n >= 2 && n <= 4:
		return "дня"
	default:
		return "дней"
	}
}

// StreakLine renders the streak header for days elapsed since the chat's first activity
func StreakLine(days int) string {
	if days <= 0 {
		return "🔥 Сегодня первый день челленджа!"
	}
	return fmt.Sprintf("🔥 Челлендж идет уже %d %s", days, dayWord(days))
}
