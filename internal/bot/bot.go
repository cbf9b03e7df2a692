package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fitness-debt-bot/internal/ledger"
	"github.com/fitness-debt-bot/internal/models"
	"github.com/fitness-debt-bot/internal/report"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// telegramAPI is the subset of tgbotapi.BotAPI the bot uses
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// defaultTimeout bounds Telegram calls when TELEGRAM_TIMEOUT is unset
const defaultTimeout = 10 * time.Second

// Bot represents the Telegram bot
type Bot struct {
	api      telegramAPI
	username string
	config   *models.BotConfig
	ledger   *ledger.Ledger
	reports  *report.Builder
	timeout  time.Duration
	logger   zerolog.Logger
	wg       sync.WaitGroup // Tracks active handlers for graceful shutdown
	stopOnce sync.Once
}

// New creates a new bot instance
func New(config *models.BotConfig, l *ledger.Ledger, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	api.Debug = config.LogLevel == "debug"

	logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authorized")

	username := api.Self.UserName
	if username == "" {
		username = config.TelegramUsername
	}
	return newBot(api, username, config, l, logger), nil
}

func newBot(api telegramAPI, username string, config *models.BotConfig, l *ledger.Ledger, logger zerolog.Logger) *Bot {
	timeout := time.Duration(config.TelegramTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	b := &Bot{
		api:      api,
		username: username,
		config:   config,
		ledger:   l,
		timeout:  timeout,
		logger:   logger.With().Str("component", "bot").Logger(),
	}
	b.reports = report.NewBuilder(l, b, logger)
	return b
}

// Start polls updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info().Msg("Starting bot...")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message"}

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Msg("Bot started, waiting for messages...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Shutting down bot...")
			b.stopUpdates()

			b.logger.Info().Msg("Waiting for active handlers to complete...")
			b.wg.Wait()
			b.logger.Info().Msg("All handlers completed")

			return nil

		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return fmt.Errorf("updates channel closed")
			}

			b.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// Stop stops the bot
func (b *Bot) Stop() {
	b.logger.Info().Msg("Stopping bot...")
	b.stopUpdates()
	b.wg.Wait()
}

// stopUpdates closes the polling loop; tgbotapi panics on a second close
func (b *Bot) stopUpdates() {
	b.stopOnce.Do(b.api.StopReceivingUpdates)
}

// GetUsername returns bot username
func (b *Bot) GetUsername() string {
	return b.username
}
