package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/e2etest"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/logging"
)

// TestScreeningPage checks that the page renders the screening form with a CSRF token and the reference data is
// served. It never calls the prediction service.
func TestScreeningPage(client *e2etest.Client) error {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	if _, err := client.CSRFToken(ctx, "/", "/analyze"); err != nil {
		return errors.Wrap(err, "find screening form")
	}

	resp, err := client.Get(ctx, "/api/etiology")
	if err != nil {
		return errors.Wrap(err, "get etiology")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return errors.Wrap(e2etest.ErrUnexpectedStatus, "get etiology", slog.Int("status", resp.StatusCode))
	}
	var records []json.RawMessage
	if err = json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return errors.Wrap(err, "decode etiology")
	}
	if len(records) == 0 {
		return errors.New("no etiology records")
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		url      = "https://" + hostname
		client   *e2etest.Client
		err      error
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))

	if client, err = e2etest.NewClient(url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	readyCtx, cancel := context.WithTimeout(ctx, 30*time.Second) //nolint:mnd // 30 seconds
	err = client.WaitForReady(readyCtx, "/api/healthy")
	cancel()
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready", errors.SlogError(err))
		os.Exit(1)
	}
	if err = TestScreeningPage(client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing screening page", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
