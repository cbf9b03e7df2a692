package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fitness-debt-bot/internal/models"
)

// Aggregations run server-side: PostgREST caps plain selects at max-rows,
// which would silently truncate all-time sums.

// UserTotals returns all-time raw sums and distinct active days for a user in a chat
func (c *Client) UserTotals(ctx context.Context, userID, chatID int64) (*models.UserTotals, error) {
	var rows []models.UserTotals
	err := c.rpcRows(ctx, "user_totals", map[string]interface{}{
		"p_user_id": userID,
		"p_chat_id": chatID,
	}, &rows)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return &models.UserTotals{}, nil
	}
	return &rows[0], nil
}

// Leaderboard returns the top users of a chat by all-time raw total
func (c *Client) Leaderboard(ctx context.Context, chatID int64, limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := c.rpcRows(ctx, "chat_leaderboard", map[string]interface{}{
		"p_chat_id": chatID,
		"p_limit":   limit,
	}, &entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// StatsByDate returns per-user sums for one date, sorted by total descending
func (c *Client) StatsByDate(ctx context.Context, chatID int64, date string) ([]models.DayStat, error) {
	var stats []models.DayStat
	err := c.rpcRows(ctx, "chat_day_stats", map[string]interface{}{
		"p_chat_id": chatID,
		"p_date":    date,
	}, &stats)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int64("chat_id", chatID).
		Str("date", date).
		Int("users", len(stats)).
		Msg("Retrieved stats by date")

	return stats, nil
}

// rpcRows calls a read-only RPC with retries and decodes its row set into out
func (c *Client) rpcRows(ctx context.Context, name string, params map[string]interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.withRetry(ctx, name, func() error {
		data := c.client.Rpc(name, "", params)
		if data == "" {
			return fmt.Errorf("failed to call %s: RPC returned empty", name)
		}
		if err := json.Unmarshal([]byte(data), out); err != nil {
			return fmt.Errorf("failed to parse %s: %s", name, truncateBody(data))
		}
		return nil
	})
}
