package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fitness-debt-bot/internal/ledger"
	"github.com/fitness-debt-bot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgGroupOnly   = "Эта команда работает только в групповом чате!"
	msgNotANumber  = "Пожалуйста, укажи число!"
	msgZeroAmount  = "Количество не может быть нулем!"
	msgStoreFailed = "Произошла ошибка. Попробуй еще раз."
)

var msgAmountTooLarge = fmt.Sprintf("Слишком большое число! Максимум %d за раз.", ledger.MaxAmount)

// handleUpdate processes incoming update
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.recoverMiddleware(func() {
		if update.Message != nil {
			b.handleMessage(ctx, update.Message)
		}
	})
}

// handleMessage routes a message to its command handler
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil || message.Chat == nil {
		return
	}

	cmd, ok := parseCommand(message.Text, b.username)
	if !ok {
		return
	}

	if !b.config.IsAllowedChat(message.Chat.ID) {
		b.logger.Debug().
			Int64("chat_id", message.Chat.ID).
			Msg("Ignoring command from chat outside allowlist")
		return
	}

	b.logger.Info().
		Str("command", cmd.name).
		Int64("chat_id", message.Chat.ID).
		Int64("user_id", message.From.ID).
		Str("username", message.From.UserName).
		Msg("Received command")

	if message.Chat.IsPrivate() {
		b.handlePrivate(ctx, message, cmd)
		return
	}

	switch cmd.name {
	case "start", "help":
		b.handleHelpCommand(ctx, message)
	case "pushups":
		b.handleAddCommand(ctx, message, cmd, models.ExercisePushups)
	case "abs":
		b.handleAddCommand(ctx, message, cmd, models.ExerciseAbs)
	case "отжимания":
		b.handleMarkDoneCommand(ctx, message, cmd, models.ExercisePushups)
	case "пресс":
		b.handleMarkDoneCommand(ctx, message, cmd, models.ExerciseAbs)
	case "stats":
		b.handleStatsCommand(ctx, message)
	case "my_stats":
		b.handleMyStatsCommand(ctx, message)
	case "leaderboard":
		b.handleLeaderboardCommand(ctx, message)
	case "report":
		b.handleReportCommand(ctx, message)
	default:
		b.logger.Debug().Str("command", cmd.name).Msg("Unknown command ignored")
	}
}

func (b *Bot) handlePrivate(ctx context.Context, message *tgbotapi.Message, cmd command) {
	switch cmd.name {
	case "start", "help":
		b.sendReply(ctx, message, privateGreeting)
	case "pushups", "abs", "отжимания", "пресс", "stats", "my_stats", "leaderboard", "report":
		b.sendReply(ctx, message, msgGroupOnly)
	}
}

// handleHelpCommand handles /help and /start commands
func (b *Bot) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) {
	_ = b.SendHTML(ctx, message.Chat.ID, groupHelp)
}

// handleAddCommand handles /pushups and /abs: a signed amount applied to today's bucket
func (b *Bot) handleAddCommand(ctx context.Context, message *tgbotapi.Message, cmd command, exercise models.Exercise) {
	amount, err := parseAmount(cmd.args)
	if errors.Is(err, errNoAmount) {
		b.sendReply(ctx, message, fmt.Sprintf("Использование: /%s [количество]\nПример: /%s 80 или /%s -20", cmd.name, cmd.name, cmd.name))
		return
	}
	if errors.Is(err, strconv.ErrRange) {
		b.sendReply(ctx, message, msgAmountTooLarge)
		return
	}
	if err != nil {
		b.sendReply(ctx, message, msgNotANumber)
		return
	}

	name := displayName(message.From)
	res, err := b.ledger.Add(ctx, ledger.Entry{
		UserID:      message.From.ID,
		ChatID:      message.Chat.ID,
		Exercise:    exercise,
		Amount:      amount,
		DisplayName: name,
	})
	if errors.Is(err, ledger.ErrZeroAmount) {
		b.sendReply(ctx, message, msgZeroAmount)
		return
	}
	if errors.Is(err, ledger.ErrAmountTooLarge) {
		b.sendReply(ctx, message, msgAmountTooLarge)
		return
	}
	if err != nil {
		b.logger.Error().
			Err(err).
			Int64("chat_id", message.Chat.ID).
			Int64("user_id", message.From.ID).
			Str("exercise", exercise.String()).
			Msg("Failed to add exercise")
		b.sendErrorMessage(ctx, message.Chat.ID, msgStoreFailed)
		return
	}

	if amount < 0 {
		b.sendReply(ctx, message, fmt.Sprintf("Молодец %s! Тебе осталось %d %s.", name, res.Remaining, remainingNoun(exercise)))
		return
	}
	b.sendReply(ctx, message, fmt.Sprintf("✅ %s добавил %d %s!\n📊 Всего за сегодня: %d", name, amount, addedNoun(exercise), res.TodayTotal))
}

// handleMarkDoneCommand handles /отжимания and /пресс: completed repetitions, or enrollment for 0
func (b *Bot) handleMarkDoneCommand(ctx context.Context, message *tgbotapi.Message, cmd command, exercise models.Exercise) {
	amount, err := parseAmount(cmd.args)
	if errors.Is(err, errNoAmount) {
		b.sendReply(ctx, message, fmt.Sprintf("Использование: /%s [количество]\nПример: /%s 20\n/%s 0 - вступить в игру", cmd.name, cmd.name, cmd.name))
		return
	}
	if errors.Is(err, strconv.ErrRange) {
		b.sendReply(ctx, message, msgAmountTooLarge)
		return
	}
	if err != nil {
		b.sendReply(ctx, message, msgNotANumber)
		return
	}

	name := displayName(message.From)
	res, err := b.ledger.MarkDone(ctx, ledger.Entry{
		UserID:      message.From.ID,
		ChatID:      message.Chat.ID,
		Exercise:    exercise,
		Amount:      amount,
		DisplayName: name,
	})
	if errors.Is(err, ledger.ErrAmountTooLarge) {
		b.sendReply(ctx, message, msgAmountTooLarge)
		return
	}
	if err != nil {
		b.logger.Error().
			Err(err).
			Int64("chat_id", message.Chat.ID).
			Int64("user_id", message.From.ID).
			Str("exercise", exercise.String()).
			Msg("Failed to mark exercise done")
		b.sendErrorMessage(ctx, message.Chat.ID, msgStoreFailed)
		return
	}

	if res.Enrolled {
		b.sendReply(ctx, message, enrollText(name, res.Debts))
		return
	}
	b.sendReply(ctx, message, fmt.Sprintf("Молодец %s! Осталось: %d", name, res.Debt))
}

// handleStatsCommand handles /stats: per-user sums for today
func (b *Bot) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) {
	stats, err := b.ledger.StatsToday(ctx, message.Chat.ID)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("Failed to get stats")
		b.sendErrorMessage(ctx, message.Chat.ID, msgStoreFailed)
		return
	}
	_ = b.SendHTML(ctx, message.Chat.ID, formatDayStats(stats))
}

// handleMyStatsCommand handles /my_stats
func (b *Bot) handleMyStatsCommand(ctx context.Context, message *tgbotapi.Message) {
	stats, err := b.ledger.UserStats(ctx, message.From.ID, message.Chat.ID)
	if err != nil {
		b.logger.Error().
			Err(err).
			Int64("chat_id", message.Chat.ID).
			Int64("user_id", message.From.ID).
			Msg("Failed to get user stats")
		b.sendErrorMessage(ctx, message.Chat.ID, msgStoreFailed)
		return
	}
	_ = b.SendHTML(ctx, message.Chat.ID, formatUserStats(stats))
}

// handleLeaderboardCommand handles /leaderboard
func (b *Bot) handleLeaderboardCommand(ctx context.Context, message *tgbotapi.Message) {
	entries, err := b.ledger.Leaderboard(ctx, message.Chat.ID)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("Failed to get leaderboard")
		b.sendErrorMessage(ctx, message.Chat.ID, msgStoreFailed)
		return
	}
	_ = b.SendHTML(ctx, message.Chat.ID, formatLeaderboard(entries))
}

// handleReportCommand renders the debt report on demand, without accruing
func (b *Bot) handleReportCommand(ctx context.Context, message *tgbotapi.Message) {
	text, err := b.reports.Build(ctx, message.Chat.ID)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("Failed to build report")
		b.sendErrorMessage(ctx, message.Chat.ID, msgStoreFailed)
		return
	}
	if text == "" {
		b.sendReply(ctx, message, "📊 За последние 7 дней нет участников. Напиши /отжимания 0, чтобы вступить в игру.")
		return
	}
	_ = b.SendHTML(ctx, message.Chat.ID, text)
}
