package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/e2etest"
	"github.com/stretchr/testify/require"
)

const leukoplakiaResponse = `{
  "predicted_class": "Leukoplakia",
  "confidence_score": 0.873,
  "all_predictions": {"Leukoplakia": 0.873, "Lichen_Planus": 0.1, "Normal": 0.027}
}`

// pngImage starts with the PNG signature so that content sniffing recognises it.
var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type predictRequest struct {
	Age        string
	Gender     string
	TobaccoUse string
	Filename   string
	Image      []byte
}

// fakeUpstreams stands in for the prediction service and the chat proxy.
type fakeUpstreams struct {
	predict *httptest.Server
	chat    *httptest.Server

	mu              sync.Mutex
	predictStatus   int
	predictBody     string
	predictRequests []predictRequest
	chatPrompts     []string
}

func newFakeUpstreams(t *testing.T) *fakeUpstreams {
	t.Helper()
	f := &fakeUpstreams{ //nolint:exhaustruct // servers are set below.
		predictStatus: http.StatusOK,
		predictBody:   leukoplakiaResponse,
	}
	f.predict = httptest.NewServer(http.HandlerFunc(f.handlePredict))
	f.chat = httptest.NewServer(http.HandlerFunc(f.handleChat))
	t.Cleanup(f.predict.Close)
	t.Cleanup(f.chat.Close)
	return f
}

func (f *fakeUpstreams) handlePredict(w http.ResponseWriter, r *http.Request) {
	req := predictRequest{
		Age:        r.FormValue("age"),
		Gender:     r.FormValue("gender"),
		TobaccoUse: r.FormValue("tobacco_use"),
	}
	if file, header, err := r.FormFile("image"); err == nil {
		req.Filename = header.Filename
		req.Image, _ = io.ReadAll(file)
		_ = file.Close()
	}

	f.mu.Lock()
	f.predictRequests = append(f.predictRequests, req)
	status, body := f.predictStatus, f.predictBody
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeUpstreams) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.chatPrompts = append(f.chatPrompts, body.Prompt)
	n := len(f.chatPrompts)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	reply := "Seed advice."
	if n > 1 {
		reply = "Follow-up advice."
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"response": reply})
}

func (f *fakeUpstreams) failPredictions(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.predictStatus, f.predictBody = status, body
}

func (f *fakeUpstreams) predictions() []predictRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]predictRequest(nil), f.predictRequests...)
}

func (f *fakeUpstreams) prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chatPrompts...)
}

// startTestServer runs the application against the fake upstreams. env overrides the defaults.
func startTestServer(t *testing.T, upstreams *fakeUpstreams, env map[string]string) *e2etest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	vars := map[string]string{
		"ORALSCAN_ADDR":        "localhost:0",
		"ORALSCAN_PREDICT_URL": upstreams.predict.URL + "/api/predict/",
		"ORALSCAN_CHAT_URL":    upstreams.chat.URL + "/api/gemini-chat/",
	}
	for k, v := range env {
		vars[k] = v
	}
	lookupEnv := func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}

	server, err := e2etest.StartServer(ctx, io.Discard, lookupEnv, run)
	require.NoError(t, err)
	return server
}

// postForm posts values with the given CSRF token and returns the raw response.
func postForm(
	t *testing.T,
	client *e2etest.Client,
	urlPath string,
	csrfToken string,
	values url.Values,
	header http.Header,
) *http.Response {
	t.Helper()
	form := url.Values{}
	for k, v := range values {
		form[k] = v
	}
	if csrfToken != "" {
		form.Set("csrf_token", csrfToken)
	}
	req, err := client.NewRequest(context.Background(), http.MethodPost, urlPath, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}
