package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// recoverMiddleware handles panics in message handlers
func (b *Bot) recoverMiddleware(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Panic recovered in handler")
		}
	}()

	handler()
}

// withTimeout runs a blocking Telegram call, abandoning it after the configured timeout
func withTimeout[T any](ctx context.Context, b *Bot, call func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := call()
		done <- result{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("telegram call abandoned: %w", ctx.Err())
	}
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) error {
	_, err := withTimeout(ctx, b, func() (tgbotapi.Message, error) {
		return b.api.Send(c)
	})
	return err
}

// SendHTML sends an HTML formatted message to the chat
func (b *Bot) SendHTML(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if err := b.send(ctx, msg); err != nil {
		b.logger.Error().
			Err(err).
			Int64("chat_id", chatID).
			Msg("Failed to send message")
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// sendReply answers a message with plain text
func (b *Bot) sendReply(ctx context.Context, message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID

	if err := b.send(ctx, msg); err != nil {
		b.logger.Error().
			Err(err).
			Int64("chat_id", message.Chat.ID).
			Msg("Failed to send reply")
	}
}

// sendErrorMessage sends an error message to the chat
func (b *Bot) sendErrorMessage(ctx context.Context, chatID int64, errorMsg string) {
	msg := tgbotapi.NewMessage(chatID, errorMsg)
	if err := b.send(ctx, msg); err != nil {
		b.logger.Error().
			Err(err).
			Int64("chat_id", chatID).
			Msg("Failed to send error message")
	}
}

// ResolveDisplayName returns the member's current first and last name
func (b *Bot) ResolveDisplayName(ctx context.Context, chatID, userID int64) (string, error) {
	cfg := tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	}

	member, err := withTimeout(ctx, b, func() (tgbotapi.ChatMember, error) {
		return b.api.GetChatMember(cfg)
	})
	if err != nil {
		return "", fmt.Errorf("failed to get chat member: %w", err)
	}
	if member.User == nil {
		return "", errors.New("chat member has no user")
	}

	name := displayName(member.User)
	if name == "" {
		return "", errors.New("chat member has empty name")
	}
	return name, nil
}

// displayName joins first and last name, falling back to the username
func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		name = u.UserName
	}
	return name
}
