package prediction_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/prediction"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

var pngImage = &models.ImageFile{
	Filename:    "lesion.png",
	ContentType: "image/png",
	Data:        []byte("\x89PNG\r\n\x1a\nfake"),
}

func newClient(t *testing.T, handler http.HandlerFunc, opts ...prediction.Option) (*prediction.Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return prediction.NewClient(srv.URL+"/api/predict/", testhelpers.NewLogger(io.Discard), opts...), &calls
}

func TestClient_AnalyzeSendsMultipart(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/predict/", r.URL.Path)

		reader, err := r.MultipartReader()
		require.NoError(t, err)
		var names []string
		for {
			part, partErr := reader.NextPart()
			if partErr == io.EOF {
				break
			}
			require.NoError(t, partErr)
			names = append(names, part.FormName())
			value, readErr := io.ReadAll(part)
			require.NoError(t, readErr)
			switch part.FormName() {
			case "image":
				require.Equal(t, "lesion.png", part.FileName())
				require.Equal(t, "image/png", part.Header.Get("Content-Type"))
				require.Equal(t, pngImage.Data, value)
			case "age":
				require.Equal(t, "52", string(value))
			case "gender":
				require.Equal(t, "Female", string(value))
			case "tobacco_use":
				require.Equal(t, "Smokeless/Chewing", string(value))
			}
		}
		require.Equal(t, []string{"image", "age", "gender", "tobacco_use"}, names)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predicted_class":"Leukoplakia","confidence_score":0.873,
"all_predictions":{"Normal":0.1,"Leukoplakia":0.873,"Lichen_Planus":0.027},"debug_info":{"input_age":52}}`))
	})

	profile := models.PatientProfile{
		Age:        models.NewAge(52),
		Gender:     models.GenderFemale,
		TobaccoUse: models.TobaccoSmokeless,
	}
	got, err := client.Analyze(context.Background(), profile, pngImage)
	require.NoError(t, err)
	require.Equal(t, models.PredictionResult{
		PredictedClass:  "Leukoplakia",
		ConfidenceScore: 0.873,
		AllPredictions: []models.ClassProbability{
			{Label: "Normal", Probability: 0.1},
			{Label: "Leukoplakia", Probability: 0.873},
			{Label: "Lichen_Planus", Probability: 0.027},
		},
	}, got)
}

func TestClient_AnalyzeSendsEmptyAge(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, []string{""}, r.MultipartForm.Value["age"])
		_, _ = w.Write([]byte(`{"predicted_class":"Normal","confidence_score":1}`))
	})
	got, err := client.Analyze(context.Background(), models.DefaultProfile(), pngImage)
	require.NoError(t, err)
	require.Equal(t, "Normal", got.PredictedClass)
	require.Nil(t, got.AllPredictions)
}

func TestClient_AnalyzeMissingImage(t *testing.T) {
	client, calls := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for _, image := range []*models.ImageFile{nil, {Filename: "empty.png", ContentType: "image/png", Data: nil}} {
		_, err := client.Analyze(context.Background(), models.DefaultProfile(), image)
		require.ErrorIs(t, err, prediction.ErrMissingImage)
	}
	require.Zero(t, calls.Load())
}

func TestClient_AnalyzeFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":"AI model is not available."}`,
			wantErr: prediction.ErrUnexpectedStatus,
		},
		{
			name:    "bad request",
			status:  http.StatusBadRequest,
			body:    `{"error":"Image file is required."}`,
			wantErr: prediction.ErrUnexpectedStatus,
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			body:    `<html>oops</html>`,
			wantErr: prediction.ErrMalformedResponse,
		},
		{
			name:    "missing class",
			status:  http.StatusOK,
			body:    `{"confidence_score":0.5}`,
			wantErr: prediction.ErrMalformedResponse,
		},
		{
			name:    "missing confidence",
			status:  http.StatusOK,
			body:    `{"predicted_class":"Normal"}`,
			wantErr: prediction.ErrMalformedResponse,
		},
		{
			name:    "confidence above one",
			status:  http.StatusOK,
			body:    `{"predicted_class":"Normal","confidence_score":87.3}`,
			wantErr: prediction.ErrMalformedResponse,
		},
		{
			name:    "probabilities not an object",
			status:  http.StatusOK,
			body:    `{"predicted_class":"Normal","confidence_score":0.5,"all_predictions":[0.5]}`,
			wantErr: prediction.ErrMalformedResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Analyze(context.Background(), models.DefaultProfile(), pngImage)
			require.ErrorIs(t, err, tt.wantErr)
			require.EqualValues(t, 1, calls.Load(), "no retries")
		})
	}
}

func TestClient_AnalyzeTimeout(t *testing.T) {
	release := make(chan struct{})
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, prediction.WithTimeout(20*time.Millisecond))
	defer close(release)

	_, err := client.Analyze(context.Background(), models.DefaultProfile(), pngImage)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_AnalyzeTransportError(t *testing.T) {
	client := prediction.NewClient("http://127.0.0.1:1/api/predict/", testhelpers.NewLogger(io.Discard))
	_, err := client.Analyze(context.Background(), models.DefaultProfile(), pngImage)
	require.Error(t, err)
	require.NotErrorIs(t, err, prediction.ErrMissingImage)
}
