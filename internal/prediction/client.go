// Package prediction talks to the lesion classification service.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/metrics"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
)

const DefaultEndpoint = "http://127.0.0.1:8000/api/predict/"

const maxResponseBytes = 1 << 20

var (
	ErrMissingImage      = errors.NewSentinel("missing image")
	ErrUnexpectedStatus  = errors.NewSentinel("unexpected status")
	ErrMalformedResponse = errors.NewSentinel("malformed response")
)

// HTTPClient is the subset of [http.Client] used by Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	endpoint   string
	httpClient HTTPClient
	timeout    time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTimeout bounds every call. Zero means the caller's context is the only limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(endpoint string, logger *slog.Logger, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{}, //nolint:exhaustruct // defaults
		timeout:    0,
		metrics:    nil,
		logger:     logger.With(slog.String("source", "prediction")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze submits the image and profile for classification. A missing or empty image fails with ErrMissingImage
// without contacting the service. There are no retries.
func (c *Client) Analyze(
	ctx context.Context,
	profile models.PatientProfile,
	image *models.ImageFile,
) (models.PredictionResult, error) {
	if image == nil || len(image.Data) == 0 {
		return models.PredictionResult{}, ErrMissingImage
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := c.analyze(ctx, profile, image)
	c.metrics.ObserveUpstream(metrics.UpstreamPredict, err, time.Since(start))
	if err != nil {
		return models.PredictionResult{}, err
	}
	c.metrics.ObservePrediction(result.PredictedClass)
	c.logger.LogAttrs(ctx, slog.LevelInfo, "prediction received",
		slog.String("predicted_class", result.PredictedClass),
		slog.Float64("confidence_score", result.ConfidenceScore),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

func (c *Client) analyze(
	ctx context.Context,
	profile models.PatientProfile,
	image *models.ImageFile,
) (models.PredictionResult, error) {
	body, contentType, err := encodeRequest(profile, image)
	if err != nil {
		return models.PredictionResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return models.PredictionResult{}, errors.Wrap(err, "new request", slog.String("endpoint", c.endpoint))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.PredictionResult{}, errors.Wrap(err, "post prediction request",
			slog.String("endpoint", c.endpoint))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "failed to close response body",
				errors.SlogError(errors.Wrap(closeErr, "close body")))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.PredictionResult{}, errors.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.PredictionResult{}, errors.Wrap(ErrUnexpectedStatus, "prediction service",
			slog.Int("status", resp.StatusCode),
			slog.String("upstream_error", upstreamError(data)))
	}

	return decodeResponse(data)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeRequest writes the parts in the order image, age, gender, tobacco_use.
func encodeRequest(profile models.PatientProfile, image *models.ImageFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	contentType := image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="image"; filename="%s"`, quoteEscaper.Replace(image.Filename)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", errors.Wrap(err, "create image part")
	}
	if _, err = part.Write(image.Data); err != nil {
		return nil, "", errors.Wrap(err, "write image part")
	}

	fields := []struct{ name, value string }{
		{"age", profile.Age.String()},
		{"gender", string(profile.Gender)},
		{"tobacco_use", string(profile.TobaccoUse)},
	}
	for _, f := range fields {
		if err = w.WriteField(f.name, f.value); err != nil {
			return nil, "", errors.Wrap(err, "write field", slog.String("field", f.name))
		}
	}
	if err = w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close multipart writer")
	}
	return &buf, w.FormDataContentType(), nil
}

type response struct {
	PredictedClass  string               `json:"predicted_class"`
	ConfidenceScore *float64             `json:"confidence_score"`
	AllPredictions  orderedProbabilities `json:"all_predictions"`
}

func decodeResponse(data []byte) (models.PredictionResult, error) {
	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return models.PredictionResult{}, errors.Wrap(ErrMalformedResponse, "decode json",
			slog.String("cause", err.Error()))
	}
	if r.PredictedClass == "" {
		return models.PredictionResult{}, errors.Wrap(ErrMalformedResponse, "missing predicted_class")
	}
	if r.ConfidenceScore == nil || math.IsNaN(*r.ConfidenceScore) || *r.ConfidenceScore < 0 || *r.ConfidenceScore > 1 {
		return models.PredictionResult{}, errors.Wrap(ErrMalformedResponse, "confidence_score outside [0, 1]")
	}
	return models.PredictionResult{
		PredictedClass:  r.PredictedClass,
		ConfidenceScore: *r.ConfidenceScore,
		AllPredictions:  r.AllPredictions,
	}, nil
}

// orderedProbabilities decodes a JSON object of label to probability keeping the key order of the document.
type orderedProbabilities []models.ClassProbability

func (o *orderedProbabilities) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(err, "read opening token")
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("all_predictions is not an object")
	}
	probabilities := make(orderedProbabilities, 0)
	for dec.More() {
		if tok, err = dec.Token(); err != nil {
			return errors.Wrap(err, "read label")
		}
		label, ok := tok.(string)
		if !ok {
			return errors.New("label is not a string")
		}
		var p float64
		if err = dec.Decode(&p); err != nil {
			return errors.Wrap(err, "read probability", slog.String("label", label))
		}
		probabilities = append(probabilities, models.ClassProbability{Label: label, Probability: p})
	}
	if _, err = dec.Token(); err != nil {
		return errors.Wrap(err, "read closing token")
	}
	*o = probabilities
	return nil
}

// upstreamError extracts the "error" field the service puts in failure responses.
func upstreamError(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Error
}
