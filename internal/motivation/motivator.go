package motivation

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// Content is one motivational broadcast
type Content struct {
	Fact      string
	Tip       string
	Generated bool // false when taken from the fallback lists
}

// Motivator produces motivational content with Gemini, falling back to static texts
type Motivator struct {
	apiKey      string
	model       string
	timeout     time.Duration
	maxRetries  int
	logger      zerolog.Logger
	genaiClient *genai.Client
	mu          sync.Mutex

	generate func(ctx context.Context, prompt string) (string, error)
	pick     func(n int) int
}

// NewMotivator creates a motivator. An empty apiKey disables generation.
func NewMotivator(apiKey, model string, timeout int, logger zerolog.Logger) *Motivator {
	m := &Motivator{
		apiKey:     apiKey,
		model:      model,
		timeout:    time.Duration(timeout) * time.Second,
		maxRetries: 2,
		logger:     logger.With().Str("component", "motivation").Logger(),
		pick:       rand.Intn,
	}
	m.generate = m.generateGemini

	if apiKey == "" {
		m.logger.Warn().Msg("GEMINI_API_KEY not set, using static messages")
	}
	return m
}

// getClient returns or creates a genai client (thread-safe)
func (m *Motivator) getClient(ctx context.Context) (*genai.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.genaiClient != nil {
		return m.genaiClient, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(m.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	m.genaiClient = client
	m.logger.Info().Msg("Gemini client created and cached")
	return m.genaiClient, nil
}

// Close releases the Gemini client
func (m *Motivator) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.genaiClient == nil {
		return nil
	}
	err := m.genaiClient.Close()
	m.genaiClient = nil
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to close Gemini client")
		return err
	}
	return nil
}

// Generate returns a fact and a tip. It never fails: any generation error yields fallback content.
func (m *Motivator) Generate(ctx context.Context) Content {
	if m.apiKey == "" {
		return m.fallback()
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	fact, err := m.generateWithRetry(ctx, factPrompt)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to generate fact, using fallback")
		return m.fallback()
	}
	tip, err := m.generateWithRetry(ctx, tipPrompt)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to generate tip, using fallback")
		return m.fallback()
	}

	return Content{Fact: fact, Tip: tip, Generated: true}
}

func (m *Motivator) fallback() Content {
	return Content{
		Fact: fallbackFacts[m.pick(len(fallbackFacts))],
		Tip:  fallbackTips[m.pick(len(fallbackTips))],
	}
}

// generateWithRetry retries generation with exponential backoff: 1s, 2s
func (m *Motivator) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			m.logger.Warn().
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Retrying Gemini request")

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := m.generate(ctx, prompt)
		if err == nil {
			return truncate(text), nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("failed after %d attempts: %w", m.maxRetries+1, lastErr)
}

func (m *Motivator) generateGemini(ctx context.Context, prompt string) (string, error) {
	client, err := m.getClient(ctx)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(m.model)
	model.SetTemperature(0.8)
	model.SetMaxOutputTokens(200)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no response candidates from LLM")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", errors.New("no content in response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("empty response from LLM")
	}
	return text, nil
}

func truncate(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= MaxPartLength {
		return string(runes)
	}
	return string(runes[:MaxPartLength]) + "…"
}

// Format renders content as an HTML broadcast message
func Format(c Content) string {
	return "💪 <b>Мотивация на сегодня!</b>\n\n" +
		"📊 <b>Факт:</b> " + html.EscapeString(c.Fact) + "\n\n" +
		"💡 <b>Совет:</b> " + html.EscapeString(c.Tip)
}
