package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fitness-debt-bot/internal/models"
)

// AccrueChat claims the (job, chat, date) marker and books the quota for every
// participant inside one Postgres function. Retrying is safe: a second call
// finds the marker and returns Applied=false.
func (c *Client) AccrueChat(ctx context.Context, req models.AccrualRequest) (*models.AccrualResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout*2) // Double timeout for batch operation
	defer cancel()

	var results []struct {
		Applied      bool `json:"applied"`
		Participants int  `json:"participants"`
	}

	err := c.withRetry(ctx, "accrue_chat", func() error {
		data := c.client.Rpc("accrue_chat", "", map[string]interface{}{
			"p_job":     req.Job,
			"p_chat_id": req.ChatID,
			"p_date":    req.Date,
			"p_since":   req.Since,
			"p_quota":   req.Quota,
		})
		if data == "" {
			return fmt.Errorf("failed to accrue chat: RPC returned empty")
		}
		if err := json.Unmarshal([]byte(data), &results); err != nil {
			return fmt.Errorf("failed to parse accrual result: %w", err)
		}
		if len(results) == 0 {
			return fmt.Errorf("no result returned from accrue_chat")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int64("chat_id", req.ChatID).
		Str("date", req.Date).
		Bool("applied", results[0].Applied).
		Int("participants", results[0].Participants).
		Msg("Accrual RPC completed")

	return &models.AccrualResult{
		Applied:      results[0].Applied,
		Participants: results[0].Participants,
	}, nil
}
