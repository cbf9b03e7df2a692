package report

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/fitness-debt-bot/internal/ledger"
	"github.com/fitness-debt-bot/internal/models"
	"github.com/rs/zerolog"
)

const (
	warningMark  = "⚠️"
	headerLayout = "02.01.2006"
)

// NameResolver looks up the current display name of a chat member
type NameResolver interface {
	ResolveDisplayName(ctx context.Context, chatID, userID int64) (string, error)
}

// Builder assembles the daily per-chat debt report
type Builder struct {
	ledger   *ledger.Ledger
	resolver NameResolver
	logger   zerolog.Logger
}

// line is one participant block of the report
type line struct {
	name    string
	pushups int
	abs     int
}

// NewBuilder creates a report builder; resolver may be nil to use stored names only
func NewBuilder(l *ledger.Ledger, resolver NameResolver, logger zerolog.Logger) *Builder {
	return &Builder{
		ledger:   l,
		resolver: resolver,
		logger:   logger.With().Str("component", "report").Logger(),
	}
}

// Build renders the HTML report for chatID. It returns "" when the chat has no participants.
func (b *Builder) Build(ctx context.Context, chatID int64) (string, error) {
	participants, err := b.ledger.Participants(ctx, chatID)
	if err != nil {
		return "", err
	}
	if len(participants) == 0 {
		b.logger.Debug().Int64("chat_id", chatID).Msg("No participants, report skipped")
		return "", nil
	}

	lines := make([]line, 0, len(participants))
	for _, p := range participants {
		pushupsDebt, err := b.ledger.Debt(ctx, p.UserID, chatID, models.ExercisePushups)
		if err != nil {
			return "", err
		}
		absDebt, err := b.ledger.Debt(ctx, p.UserID, chatID, models.ExerciseAbs)
		if err != nil {
			return "", err
		}

		// Debt already includes today's accrual; the extra quota is the displayed contract
		lines = append(lines, line{
			name:    b.resolveName(ctx, chatID, p),
			pushups: pushupsDebt + ledger.DailyQuota,
			abs:     absDebt + ledger.DailyQuota,
		})
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].name < lines[j].name
	})

	streak, err := b.streak(ctx, chatID)
	if err != nil {
		return "", err
	}

	return render(b.ledger.Now().Format(headerLayout), streak, lines), nil
}

func (b *Builder) resolveName(ctx context.Context, chatID int64, p models.Participant) string {
	if b.resolver != nil {
		name, err := b.resolver.ResolveDisplayName(ctx, chatID, p.UserID)
		if err == nil && name != "" {
			return name
		}
		if err != nil {
			b.logger.Debug().
				Err(err).
				Int64("chat_id", chatID).
				Int64("user_id", p.UserID).
				Msg("Name lookup failed, using stored name")
		}
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return fmt.Sprintf("id%d", p.UserID)
}

func (b *Builder) streak(ctx context.Context, chatID int64) (string, error) {
	first, ok, err := b.ledger.FirstActivityDate(ctx, chatID)
	if err != nil {
		return "", err
	}
	if !ok {
		return StreakLine(0), nil
	}
	return StreakLine(b.ledger.DaysSince(first)), nil
}

func render(date, streak string, lines []line) string {
	var sb strings.Builder
	sb.WriteString("‼️" + warningMark + date + warningMark + "‼️\n")
	sb.WriteString(streak)
	sb.WriteString("\n\n")

	for i, l := range lines {
		last := i == len(lines)-1

		sb.WriteString("<b>" + html.EscapeString(l.name) + "</b>:\n")
		sb.WriteString(amountLine("отжимания", l.pushups, false))
		sb.WriteString("\n")
		sb.WriteString(amountLine("пресс", l.abs, last))
		if !last {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func amountLine(label string, value int, last bool) string {
	end := ";"
	if last {
		end = "."
	}
	s := fmt.Sprintf("%s: %d%s", label, value, end)
	if value > ledger.DailyQuota {
		s += " " + warningMark
	}
	return s
}
