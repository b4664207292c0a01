// Package screen implements the screening commands of the oralscan CLI.
package screen

import (
	"io"
	"log/slog"
	"time"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/ai"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/chat"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/envstruct"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/logging"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "screen",
	Title: "Screening",
}

// settings share the environment variables of the web server.
type settings struct {
	PredictURL      string        `env:"ORALSCAN_PREDICT_URL" envDefault:"http://127.0.0.1:8000/api/predict/"`
	ChatURL         string        `env:"ORALSCAN_CHAT_URL" envDefault:"http://localhost:8000/api/gemini-chat/"`
	ChatBackend     string        `env:"ORALSCAN_CHAT_BACKEND" envDefault:"proxy"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL   string        `env:"ORALSCAN_OPENAI_BASE_URL" envDefault:""`
	OpenAIModel     string        `env:"ORALSCAN_OPENAI_MODEL" envDefault:""`
	ContentPath     string        `env:"ORALSCAN_CONTENT_PATH" envDefault:""`
	UpstreamTimeout time.Duration `env:"ORALSCAN_UPSTREAM_TIMEOUT" envDefault:"0s"`
	LogLevel        string        `env:"ORALSCAN_LOG_LEVEL" envDefault:"warn"`
}

func loadSettings(lookupEnv func(string) (string, bool)) (settings, error) {
	var s settings
	if err := envstruct.Populate(&s, lookupEnv); err != nil {
		return settings{}, errors.Wrap(err, "populate settings")
	}
	return s, nil
}

// newLogger logs to stderr so that it never mixes with the command output.
func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(logging.NewContextHandler(slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource:   false,
		Level:       logging.ParseLevel(level),
		ReplaceAttr: nil,
	})))
}

func newChatBackend(s settings, logger *slog.Logger) (chat.Backend, error) {
	switch s.ChatBackend {
	case "proxy":
		return chat.NewProxyBackend(s.ChatURL, nil, logger), nil
	case "openai":
		if s.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai chat backend")
		}
		return ai.NewClient(s.OpenAIAPIKey, s.OpenAIBaseURL, s.OpenAIModel), nil
	default:
		return nil, errors.Wrap(envstruct.ErrInvalidValue, "unknown chat backend",
			slog.String("backend", s.ChatBackend))
	}
}
