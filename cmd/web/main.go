package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/ai"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/chat"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/content"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/envstruct"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/logging"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/metrics"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/pprofserver"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/prediction"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/repositories"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/screening"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/sqlite"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/task"
	"github.com/donseba/go-htmx"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

const (
	chatBackendProxy  = "proxy"
	chatBackendOpenAI = "openai"
)

type application struct {
	logger         *slog.Logger
	db             *sqlite.Database
	screens        *screening.Service
	sessionManager *scs.SessionManager
	metrics        *metrics.Metrics
	htmx           *htmx.HTMX
	cors           *cors.Cors
	maxUploadBytes int64
	scrollDelay    time.Duration
	requestTimeout time.Duration
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"ORALSCAN_ADDR" envDefault:"localhost:4000"`
	// SqliteURL is the path to the SQLite database or ":memory:" for a database that lives as long as the process.
	SqliteURL   string `env:"ORALSCAN_SQLITE_URL" envDefault:":memory:"`
	PredictURL  string `env:"ORALSCAN_PREDICT_URL" envDefault:"http://127.0.0.1:8000/api/predict/"`
	ChatURL     string `env:"ORALSCAN_CHAT_URL" envDefault:"http://localhost:8000/api/gemini-chat/"`
	ChatBackend string `env:"ORALSCAN_CHAT_BACKEND" envDefault:"proxy"`
	// OpenAIAPIKey is only needed with the openai chat backend.
	OpenAIAPIKey  string `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL string `env:"ORALSCAN_OPENAI_BASE_URL" envDefault:""`
	OpenAIModel   string `env:"ORALSCAN_OPENAI_MODEL" envDefault:""`
	// ContentPath points to a YAML file overriding the built-in texts, questions and map data.
	ContentPath      string `env:"ORALSCAN_CONTENT_PATH" envDefault:""`
	ChatHistoryLimit int    `env:"ORALSCAN_CHAT_HISTORY_LIMIT" envDefault:"0"`
	// UpstreamTimeout limits each call to the prediction service and the chat backend. Zero means no limit.
	UpstreamTimeout time.Duration `env:"ORALSCAN_UPSTREAM_TIMEOUT" envDefault:"0s"`
	RequestTimeout  time.Duration `env:"ORALSCAN_REQUEST_TIMEOUT" envDefault:"2m"`
	MaxUploadBytes  int64         `env:"ORALSCAN_MAX_UPLOAD_BYTES" envDefault:"10485760"`
	ScrollDelay     time.Duration `env:"ORALSCAN_SCROLL_DELAY" envDefault:"500ms"`
	AllowedOrigins  []string      `env:"ORALSCAN_ALLOWED_ORIGINS" envDefault:""`
	PprofAddr       string        `env:"ORALSCAN_PPROF_ADDR" envDefault:""`
	SessionLifetime time.Duration `env:"ORALSCAN_SESSION_LIFETIME" envDefault:"12h"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var cfg config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	texts, err := content.Load(cfg.ContentPath)
	if err != nil {
		return errors.Wrap(err, "load content", slog.String("path", cfg.ContentPath))
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close database", errors.SlogError(closeErr))
		}
	}()
	go db.StartMaintenance(ctx, cfg.SessionLifetime)

	sessionCleanupInterval := time.Hour
	sessionStore := sqlite3store.NewWithCleanupInterval(db.ReadWrite, sessionCleanupInterval)
	defer sessionStore.StopCleanup()
	sessionManager := scs.New()
	sessionManager.Store = sessionStore
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode

	m := metrics.New()

	backend, err := newChatBackend(cfg, logger)
	if err != nil {
		return err
	}
	agent := chat.NewAgent(backend, texts.Messages, logger,
		chat.WithHistoryLimit(cfg.ChatHistoryLimit),
		chat.WithTimeout(cfg.UpstreamTimeout),
		chat.WithMetrics(m),
	)
	predictor := prediction.NewClient(cfg.PredictURL, logger,
		prediction.WithTimeout(cfg.UpstreamTimeout),
		prediction.WithMetrics(m),
	)
	screens := screening.NewService(
		repositories.NewScreenRepository(db, logger),
		predictor,
		agent,
		task.NewGuard(),
		texts,
		m,
		logger,
	)

	app := application{
		logger:         logger,
		db:             db,
		screens:        screens,
		sessionManager: sessionManager,
		metrics:        m,
		htmx:           htmx.New(),
		cors:           nil,
		maxUploadBytes: cfg.MaxUploadBytes,
		scrollDelay:    cfg.ScrollDelay,
		requestTimeout: cfg.RequestTimeout,
	}

	// An empty origin list would make cors allow every origin.
	if len(cfg.AllowedOrigins) > 0 {
		app.cors = cors.New(cors.Options{ //nolint:exhaustruct // defaults are fine for the rest.
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
		})
	}

	if cfg.PprofAddr != "" {
		pprofserver.Launch(ctx, cfg.PprofAddr, logger)
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func newChatBackend(cfg config, logger *slog.Logger) (chat.Backend, error) {
	switch cfg.ChatBackend {
	case chatBackendProxy:
		return chat.NewProxyBackend(cfg.ChatURL, nil, logger), nil
	case chatBackendOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai chat backend")
		}
		return ai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	default:
		return nil, errors.Wrap(envstruct.ErrInvalidValue, "unknown chat backend",
			slog.String("backend", cfg.ChatBackend))
	}
}

func main() {
	ctx := context.Background()
	// The .env file is optional, the environment can be set in any other way too.
	dotenvErr := godotenv.Load()

	level := slog.LevelInfo
	if v, ok := os.LookupEnv("ORALSCAN_LOG_LEVEL"); ok {
		level = logging.ParseLevel(v)
	}
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       level,
		ReplaceAttr: nil,
	})))
	if dotenvErr != nil && !errors.Is(dotenvErr, os.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelWarn, "could not load .env file", errors.SlogError(dotenvErr))
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
