package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/fitness-debt-bot/internal/models"
)

const privateGreeting = "👋 Привет! Я веду учет тренировок в групповых чатах. " +
	"Добавь меня в группу и напиши там /help."

const groupHelp = "💪 <b>Ежедневная норма: 80 отжиманий и 80 упражнений на пресс.</b>\n" +
	"Каждое утро норма добавляется к долгу каждого участника, активного за последние 7 дней.\n\n" +
	"📊 <b>Доступные команды:</b>\n" +
	"• /отжимания 20 - отметить 20 сделанных отжиманий (покажет остаток долга)\n" +
	"• /пресс 20 - отметить 20 упражнений на пресс\n" +
	"• /отжимания 0 - вступить в игру\n" +
	"• /pushups 80 - добавить отжимания за сегодня (можно отрицательное число)\n" +
	"• /abs 80 - добавить упражнения на пресс за сегодня\n" +
	"• /stats - статистика группы за сегодня\n" +
	"• /my_stats - твоя личная статистика\n" +
	"• /leaderboard - таблица лидеров\n" +
	"• /report - текущая сводка долгов\n" +
	"• /help - помощь"

var medals = []string{"🥇", "🥈", "🥉"}

func remainingNoun(e models.Exercise) string {
	if e == models.ExerciseAbs {
		return "пресс"
	}
	return "отжиманий"
}

func addedNoun(e models.Exercise) string {
	if e == models.ExerciseAbs {
		return "упражнений на пресс"
	}
	return "отжиманий"
}

func enrollText(name string, debts map[models.Exercise]int) string {
	return fmt.Sprintf("%s, ты в игре! 💪\nДолг: отжимания %d, пресс %d.\nКаждое утро добавляется норма 80 и 80.",
		name, debts[models.ExercisePushups], debts[models.ExerciseAbs])
}

func formatDayStats(stats []models.DayStat) string {
	if len(stats) == 0 {
		return "📊 Пока нет статистики за сегодня. Начни тренироваться!"
	}

	var sb strings.Builder
	sb.WriteString("📊 <b>Статистика за сегодня:</b>\n\n")
	for i, s := range stats {
		if i == 10 {
			break
		}
		fmt.Fprintf(&sb, "👤 %s\n", html.EscapeString(s.DisplayName))
		fmt.Fprintf(&sb, "   💪 Отжимания: %d\n", s.Pushups)
		fmt.Fprintf(&sb, "   🏋️ Пресс: %d\n", s.Abs)
		fmt.Fprintf(&sb, "   📈 Всего: %d\n\n", s.Total)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatUserStats(stats *models.UserStats) string {
	if stats == nil {
		return "У тебя пока нет статистики в этом чате."
	}

	var sb strings.Builder
	sb.WriteString("📊 <b>Твоя статистика:</b>\n\n")
	fmt.Fprintf(&sb, "💪 Всего отжиманий: %d\n", stats.TotalPushups)
	fmt.Fprintf(&sb, "🏋️ Всего упражнений на пресс: %d\n", stats.TotalAbs)
	fmt.Fprintf(&sb, "📅 Дней тренировок: %d\n", stats.Days)
	fmt.Fprintf(&sb, "📈 Среднее в день: %.1f\n", stats.AvgPerDay)
	fmt.Fprintf(&sb, "⏳ Долг: отжимания %d, пресс %d", stats.PushupsDebt, stats.AbsDebt)
	return sb.String()
}

func formatLeaderboard(entries []models.LeaderboardEntry) string {
	if len(entries) == 0 {
		return "📊 Пока нет данных для таблицы лидеров."
	}

	var sb strings.Builder
	sb.WriteString("🏆 <b>Таблица лидеров (все время):</b>\n\n")
	for i, e := range entries {
		place := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			place = medals[i]
		}
		fmt.Fprintf(&sb, "%s %s\n", place, html.EscapeString(e.DisplayName))
		fmt.Fprintf(&sb, "   💪 Отжимания: %d\n", e.TotalPushups)
		fmt.Fprintf(&sb, "   🏋️ Пресс: %d\n", e.TotalAbs)
		fmt.Fprintf(&sb, "   📈 Всего: %d\n\n", e.Total)
	}
	return strings.TrimRight(sb.String(), "\n")
}
