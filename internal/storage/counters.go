package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fitness-debt-bot/internal/models"
)

// Accumulate adds delta to the (user, chat, exercise, date) bucket via the
// accumulate_counter RPC, creating the row when missing.
// Not retried: a lost response may hide an applied increment.
func (c *Client) Accumulate(ctx context.Context, d models.CounterDelta) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := map[string]interface{}{
		"p_user_id":      d.UserID,
		"p_chat_id":      d.ChatID,
		"p_exercise":     d.Exercise.String(),
		"p_delta":        d.Delta,
		"p_display_name": d.DisplayName,
		"p_date":         d.Date,
	}

	var rows []struct {
		Count int `json:"count"`
	}
	err := c.call(ctx, func() error {
		result := c.client.Rpc("accumulate_counter", "", params)
		if result == "" {
			return fmt.Errorf("failed to accumulate counter: RPC returned empty")
		}
		if err := json.Unmarshal([]byte(result), &rows); err != nil {
			return fmt.Errorf("failed to accumulate counter: %s", truncateBody(result))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(rows) > 0 {
		c.logger.Debug().
			Int64("user_id", d.UserID).
			Int64("chat_id", d.ChatID).
			Str("exercise", d.Exercise.String()).
			Str("date", d.Date).
			Int("count", rows[0].Count).
			Msg("Counter accumulated")
	}

	return nil
}

// DayCount returns the raw count of one bucket, 0 when it does not exist
func (c *Client) DayCount(ctx context.Context, userID, chatID int64, exercise models.Exercise, date string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rows []models.CounterRow
	err := c.withRetry(ctx, "day_count", func() error {
		data, _, err := c.client.From(countersTable).
			Select("count", "", false).
			Eq("user_id", strconv.FormatInt(userID, 10)).
			Eq("chat_id", strconv.FormatInt(chatID, 10)).
			Eq("exercise", exercise.String()).
			Eq("date", date).
			Limit(1, "").
			Execute()
		if err != nil {
			return fmt.Errorf("failed to fetch day count: %w", err)
		}
		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("failed to unmarshal day count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Count, nil
}

// SumCount returns the raw all-time sum for the user, chat and exercise
func (c *Client) SumCount(ctx context.Context, userID, chatID int64, exercise models.Exercise) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rows []struct {
		Total int `json:"total"`
	}
	err := c.withRetry(ctx, "counter_sum", func() error {
		data := c.client.Rpc("counter_sum", "", map[string]interface{}{
			"p_user_id":  userID,
			"p_chat_id":  chatID,
			"p_exercise": exercise.String(),
		})
		if data == "" {
			return fmt.Errorf("failed to get counter sum: RPC returned empty")
		}
		if err := json.Unmarshal([]byte(data), &rows); err != nil {
			return fmt.Errorf("failed to parse counter sum: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// Participants returns distinct users of the chat with a row dated on or after since
func (c *Client) Participants(ctx context.Context, chatID int64, since string) ([]models.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var participants []models.Participant
	err := c.withRetry(ctx, "chat_participants", func() error {
		data := c.client.Rpc("chat_participants", "", map[string]interface{}{
			"p_chat_id": chatID,
			"p_since":   since,
		})
		if data == "" {
			return fmt.Errorf("failed to get participants: RPC returned empty")
		}
		if err := json.Unmarshal([]byte(data), &participants); err != nil {
			return fmt.Errorf("failed to parse participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int64("chat_id", chatID).
		Str("since", since).
		Int("count", len(participants)).
		Msg("Retrieved participants")

	return participants, nil
}

// ActiveChats returns chats with any row dated on or after since
func (c *Client) ActiveChats(ctx context.Context, since string) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rows []struct {
		ChatID int64 `json:"chat_id"`
	}
	err := c.withRetry(ctx, "active_chats", func() error {
		data := c.client.Rpc("active_chats", "", map[string]interface{}{
			"p_since": since,
		})
		if data == "" {
			return fmt.Errorf("failed to get active chats: RPC returned empty")
		}
		if err := json.Unmarshal([]byte(data), &rows); err != nil {
			return fmt.Errorf("failed to parse active chats: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	chats := make([]int64, 0, len(rows))
	for _, row := range rows {
		chats = append(chats, row.ChatID)
	}
	return chats, nil
}

// FirstActivityDate returns the earliest row date of the chat, "" when there is none
func (c *Client) FirstActivityDate(ctx context.Context, chatID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rows []struct {
		FirstDate *string `json:"first_date"`
	}
	err := c.withRetry(ctx, "chat_first_activity", func() error {
		data := c.client.Rpc("chat_first_activity", "", map[string]interface{}{
			"p_chat_id": chatID,
		})
		if data == "" {
			return fmt.Errorf("failed to get first activity: RPC returned empty")
		}
		if err := json.Unmarshal([]byte(data), &rows); err != nil {
			return fmt.Errorf("failed to parse first activity: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(rows) == 0 || rows[0].FirstDate == nil {
		return "", nil
	}
	return *rows[0].FirstDate, nil
}
