package ledger

import (
	"context"
	"fmt"

	"github.com/fitness-debt-bot/internal/models"
)

// AccrualJob names the job_runs marker of the daily quota accrual
const AccrualJob = "daily_accrual"

// AccrueChat adds DailyQuota of every exercise to each participant of the chat.
// It is applied at most once per chat and calendar day; a repeated call
// returns Applied=false without touching any counter.
func (l *Ledger) AccrueChat(ctx context.Context, chatID int64) (*models.AccrualResult, error) {
	req := models.AccrualRequest{
		Job:    AccrualJob,
		ChatID: chatID,
		Date:   l.Today(),
		Since:  l.windowStart(),
		Quota:  DailyQuota,
	}

	logger := l.logger.With().
		Int64("chat_id", chatID).
		Str("date", req.Date).
		Logger()

	result, err := l.store.AccrueChat(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to accrue daily quota")
		return nil, fmt.Errorf("failed to accrue chat %d: %w", chatID, err)
	}

	if !result.Applied {
		logger.Info().Msg("Daily quota already accrued for this date, skipping")
		return result, nil
	}

	logger.Info().
		Int("participants", result.Participants).
		Int("quota", req.Quota).
		Msg("Daily quota accrued")

	return result, nil
}
