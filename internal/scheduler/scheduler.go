package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fitness-debt-bot/internal/ledger"
	"github.com/fitness-debt-bot/internal/models"
	"github.com/fitness-debt-bot/internal/motivation"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// maxParallelChats bounds per-chat fan-out of scheduled jobs
const maxParallelChats = 4

// Sender delivers HTML messages to a chat
type Sender interface {
	SendHTML(ctx context.Context, chatID int64, text string) error
}

// ReportBuilder renders the daily report of a chat
type ReportBuilder interface {
	Build(ctx context.Context, chatID int64) (string, error)
}

// Motivator produces motivational broadcast content
type Motivator interface {
	Generate(ctx context.Context) motivation.Content
}

// Scheduler runs the daily accrual and report job and the motivational broadcasts
type Scheduler struct {
	ledger    *ledger.Ledger
	reports   ReportBuilder
	motivator Motivator
	sender    Sender
	config    *models.BotConfig
	logger    zerolog.Logger

	reportSchedule      cron.Schedule
	motivationSchedules []cron.Schedule

	cron    *cron.Cron
	running sync.WaitGroup
}

// NewScheduler creates a scheduler; cron expressions are evaluated in the ledger timezone
func NewScheduler(
	l *ledger.Ledger,
	reports ReportBuilder,
	motivator Motivator,
	sender Sender,
	config *models.BotConfig,
	logger zerolog.Logger,
) (*Scheduler, error) {
	reportSchedule, err := cron.ParseStandard(config.ReportSchedule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report schedule %q: %w", config.ReportSchedule, err)
	}

	motivationSchedules := make([]cron.Schedule, 0, len(config.MotivationSchedules))
	for _, spec := range config.MotivationSchedules {
		schedule, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to parse motivation schedule %q: %w", spec, err)
		}
		motivationSchedules = append(motivationSchedules, schedule)
	}

	logger = logger.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{logger: logger}

	return &Scheduler{
		ledger:              l,
		reports:             reports,
		motivator:           motivator,
		sender:              sender,
		config:              config,
		logger:              logger,
		reportSchedule:      reportSchedule,
		motivationSchedules: motivationSchedules,
		cron: cron.New(
			cron.WithLocation(l.Location()),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}, nil
}

// Start registers the jobs and blocks until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting scheduler...")

	s.cron.Schedule(s.reportSchedule, s.job(ctx, "daily_accrual_report", s.RunDailyAccrualAndReport))
	for _, schedule := range s.motivationSchedules {
		s.cron.Schedule(schedule, s.job(ctx, "motivation", s.RunMotivationalBroadcast))
	}

	s.cron.Start()

	for _, entry := range s.cron.Entries() {
		s.logger.Info().
			Int("entry_id", int(entry.ID)).
			Time("next_run", entry.Next).
			Msg("Scheduled job")
	}
	s.logger.Info().Msg("Scheduler started and running")

	<-ctx.Done()
	s.Stop()
	s.logger.Info().Msg("Scheduler stopped")
	return ctx.Err()
}

// Stop stops the cron and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.running.Wait()
}

func (s *Scheduler) job(ctx context.Context, name string, run func(context.Context)) cron.Job {
	return cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		s.running.Add(1)
		defer s.running.Done()

		s.logger.Info().Str("job", name).Msg("Running scheduled job")
		run(ctx)
	})
}

// RunDailyAccrualAndReport accrues the daily quota in every active chat and sends its report.
// Each chat is processed independently; a failing chat never stops the others.
func (s *Scheduler) RunDailyAccrualAndReport(ctx context.Context) {
	date := s.ledger.Today()
	logger := s.logger.With().Str("date", date).Logger()

	chats, err := s.activeChats(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list active chats, accrual skipped")
		return
	}

	logger.Info().Int("chat_count", len(chats)).Msg("Running daily accrual and report")

	failed := s.forEachChat(ctx, chats, func(ctx context.Context, chatID int64) error {
		return s.processChat(ctx, chatID)
	})

	logger.Info().
		Int("chat_count", len(chats)).
		Int("failed", failed).
		Msg("Daily accrual and report completed")
}

// processChat runs accrual then report for one chat, in that order
func (s *Scheduler) processChat(ctx context.Context, chatID int64) error {
	logger := s.logger.With().Int64("chat_id", chatID).Logger()

	result, err := s.ledger.AccrueChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !result.Applied {
		logger.Info().Msg("Report already sent for this date, skipping")
		return nil
	}

	text, err := s.reports.Build(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	if text == "" {
		logger.Info().Msg("Nothing to report")
		return nil
	}

	if err := s.sender.SendHTML(ctx, chatID, text); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	logger.Info().Int("participants", result.Participants).Msg("Daily report sent")
	return nil
}

// RunMotivationalBroadcast sends one motivational message to every active chat
func (s *Scheduler) RunMotivationalBroadcast(ctx context.Context) {
	chats, err := s.activeChats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list active chats, broadcast skipped")
		return
	}
	if len(chats) == 0 {
		s.logger.Info().Msg("No active chats, broadcast skipped")
		return
	}

	content := s.motivator.Generate(ctx)
	text := motivation.Format(content)

	failed := s.forEachChat(ctx, chats, func(ctx context.Context, chatID int64) error {
		return s.sender.SendHTML(ctx, chatID, text)
	})

	s.logger.Info().
		Int("chat_count", len(chats)).
		Int("failed", failed).
		Bool("generated", content.Generated).
		Msg("Motivational broadcast completed")
}

func (s *Scheduler) activeChats(ctx context.Context) ([]int64, error) {
	chats, err := s.ledger.ActiveChats(ctx)
	if err != nil {
		return nil, err
	}

	allowed := chats[:0]
	for _, chatID := range chats {
		if s.config.IsAllowedChat(chatID) {
			allowed = append(allowed, chatID)
		} else {
			s.logger.Debug().Int64("chat_id", chatID).Msg("Chat not in allowlist, skipping")
		}
	}
	return allowed, nil
}

// forEachChat runs fn for every chat with bounded parallelism and returns the number of failures
func (s *Scheduler) forEachChat(ctx context.Context, chats []int64, fn func(context.Context, int64) error) int {
	var failed atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelChats)

	for _, chatID := range chats {
		chatID := chatID
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					s.logger.Error().
						Interface("panic", r).
						Int64("chat_id", chatID).
						Msg("Panic recovered in chat job")
				}
			}()

			if err := fn(ctx, chatID); err != nil {
				failed.Add(1)
				s.logger.Error().
					Err(err).
					Int64("chat_id", chatID).
					Msg("Chat job failed")
			}
			// Never fail the group: siblings must keep running
			return nil
		})
	}

	_ = g.Wait()
	return int(failed.Load())
}
