package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	supa "github.com/supabase-community/supabase-go"
)

const (
	countersTable = "exercise_counters"

	maxRetries  = 2
	retryStep   = 500 * time.Millisecond
	maxErrorLen = 200
)

// Client is the Supabase-backed counter store.
// supabase-go requests take no context, so every call runs through call,
// which returns when ctx expires even if the HTTP request is still in flight.
type Client struct {
	client  *supa.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewClient creates the Supabase counter store; timeout is in seconds per operation
func NewClient(supabaseURL, supabaseKey string, timeout int, logger zerolog.Logger) (*Client, error) {
	client, err := supa.NewClient(supabaseURL, supabaseKey, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		client:  client,
		timeout: time.Duration(timeout) * time.Second,
		logger:  logger.With().Str("component", "storage").Str("backend", "supabase").Logger(),
	}, nil
}

// Ping checks that the counters table is reachable
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.withRetry(ctx, "ping", func() error {
		_, _, err := c.client.From(countersTable).
			Select("id", "exact", false).
			Limit(1, "").
			Execute()
		if err != nil {
			return fmt.Errorf("supabase ping failed: %w", err)
		}
		return nil
	})
}

// Close is a no-op; PostgREST calls hold no connection state
func (c *Client) Close() error {
	return nil
}

// call runs fn and gives up when ctx is done. An abandoned fn keeps running
// in the background and its result is dropped.
func (c *Client) call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withRetry runs fn up to maxRetries+1 times with a linear backoff.
// Only idempotent operations may use it.
func (c *Client) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * retryStep
			c.logger.Warn().
				Str("operation", operation).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Retrying operation")

			select {
			case <-ctx.Done():
				return fmt.Errorf("operation %s: %w (last error: %v)", operation, ctx.Err(), lastErr)
			case <-time.After(backoff):
			}
		}

		lastErr = c.call(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("operation %s: %w", operation, ctx.Err())
		}

		c.logger.Error().
			Err(lastErr).
			Str("operation", operation).
			Int("attempt", attempt+1).
			Msg("Operation failed")
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", operation, maxRetries+1, lastErr)
}

// truncateBody shortens a PostgREST response for error messages
func truncateBody(body string) string {
	if len(body) <= maxErrorLen {
		return body
	}
	return body[:maxErrorLen] + "..."
}
