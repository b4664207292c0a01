package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
)

const DefaultProxyEndpoint = "http://localhost:8000/api/gemini-chat/"

const maxResponseBytes = 1 << 20

var (
	ErrUnexpectedStatus  = errors.NewSentinel("unexpected status")
	ErrMalformedResponse = errors.NewSentinel("malformed response")
)

// HTTPClient is the subset of [http.Client] used by ProxyBackend.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProxyBackend forwards prompts to a JSON endpoint accepting {"prompt": ...} and answering {"response": ...}.
type ProxyBackend struct {
	endpoint   string
	httpClient HTTPClient
	logger     *slog.Logger
}

func NewProxyBackend(endpoint string, httpClient HTTPClient, logger *slog.Logger) *ProxyBackend {
	if endpoint == "" {
		endpoint = DefaultProxyEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{} //nolint:exhaustruct // defaults
	}
	return &ProxyBackend{
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger.With(slog.String("source", "chat.proxy")),
	}
}

type proxyRequest struct {
	Prompt string `json:"prompt"`
}

type proxyResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Complete returns the generated text. An empty string is a valid reply.
func (p *ProxyBackend) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(proxyRequest{Prompt: prompt})
	if err != nil {
		return "", errors.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "new request", slog.String("endpoint", p.endpoint))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "post chat request", slog.String("endpoint", p.endpoint))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.LogAttrs(ctx, slog.LevelWarn, "failed to close response body",
				errors.SlogError(errors.Wrap(closeErr, "close body")))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.Wrap(err, "read response body")
	}

	var decoded proxyResponse
	decodeErr := json.Unmarshal(data, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Wrap(ErrUnexpectedStatus, "chat service",
			slog.Int("status", resp.StatusCode),
			slog.String("upstream_error", decoded.Error))
	}
	if decodeErr != nil {
		return "", errors.Wrap(ErrMalformedResponse, "decode json", slog.String("cause", decodeErr.Error()))
	}
	return decoded.Response, nil
}
