// Package chat implements the wellness assistant conversation on top of a text completion backend.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/content"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/metrics"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
	"github.com/google/uuid"
)

// Backend generates text for a prompt.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Agent produces assistant messages. Backend failures never reach the caller; they turn into fixed fallback texts.
type Agent struct {
	backend      Backend
	messages     content.Messages
	historyLimit int
	timeout      time.Duration
	now          func() time.Time
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

type Option func(*Agent)

// WithHistoryLimit keeps only the last n messages in reply prompts. Zero keeps the whole transcript.
func WithHistoryLimit(n int) Option {
	return func(a *Agent) { a.historyLimit = n }
}

func WithTimeout(d time.Duration) Option {
	return func(a *Agent) { a.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

func NewAgent(backend Backend, messages content.Messages, logger *slog.Logger, opts ...Option) *Agent {
	a := &Agent{
		backend:      backend,
		messages:     messages,
		historyLimit: 0,
		timeout:      0,
		now:          time.Now,
		metrics:      nil,
		logger:       logger.With(slog.String("source", "chat")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// UserMessage stamps text as a patient message.
func (a *Agent) UserMessage(text string) models.ChatMessage {
	return a.message(models.RoleUser, text)
}

// Seed produces the opening recommendation for a fresh prediction.
func (a *Agent) Seed(
	ctx context.Context,
	prediction models.PredictionResult,
	profile models.PatientProfile,
) models.ChatMessage {
	reply, err := a.complete(ctx, SeedPrompt(prediction, profile))
	switch {
	case err != nil:
		a.logger.LogAttrs(ctx, slog.LevelWarn, "seed recommendation failed, using fallback",
			errors.SlogError(err))
		text := strings.ReplaceAll(a.messages.SeedFallback, content.ClassPlaceholder, prediction.PredictedClass)
		return a.message(models.RoleAssistant, text)
	case reply == "":
		return a.message(models.RoleAssistant, a.messages.SeedGreeting)
	default:
		return a.message(models.RoleAssistant, reply)
	}
}

// Reply answers question. history is the transcript before question was asked.
func (a *Agent) Reply(
	ctx context.Context,
	prediction models.PredictionResult,
	profile models.PatientProfile,
	history []models.ChatMessage,
	question string,
) models.ChatMessage {
	if a.historyLimit > 0 && len(history) > a.historyLimit {
		history = history[len(history)-a.historyLimit:]
	}
	reply, err := a.complete(ctx, ReplyPrompt(prediction, profile, history, question))
	switch {
	case err != nil:
		a.logger.LogAttrs(ctx, slog.LevelWarn, "chat reply failed, using fallback", errors.SlogError(err))
		return a.message(models.RoleAssistant, a.messages.ReplyFallback)
	case reply == "":
		return a.message(models.RoleAssistant, a.messages.ReplyEmpty)
	default:
		return a.message(models.RoleAssistant, reply)
	}
}

func (a *Agent) complete(ctx context.Context, prompt string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	start := time.Now()
	reply, err := a.backend.Complete(ctx, prompt)
	a.metrics.ObserveUpstream(metrics.UpstreamChat, err, time.Since(start))
	if err != nil {
		return "", errors.Wrap(err, "complete prompt")
	}
	return reply, nil
}

func (a *Agent) message(role models.Role, text string) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: a.now().UTC(),
	}
}
