package main

import (
	"encoding/json"
	"net/http"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/contexthelpers"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/results"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/task"
)

type riskFactorResponse struct {
	Label  string        `json:"label"`
	Detail string        `json:"detail"`
	Badge  string        `json:"badge"`
	Level  results.Level `json:"level"`
	Fill   string        `json:"fill"`
}

type resultsResponse struct {
	PredictedClass   string               `json:"predictedClass"`
	ConfidenceLabel  string               `json:"confidenceLabel"`
	Description      string               `json:"description"`
	OverallRiskScore string               `json:"overallRiskScore"`
	RiskFactors      []riskFactorResponse `json:"riskFactors"`
}

type screenResponse struct {
	Profile    models.PatientProfile    `json:"profile"`
	Image      *models.UploadedImage    `json:"image"`
	Prediction *models.PredictionResult `json:"prediction"`
	Results    *resultsResponse         `json:"results"`
	Error      string                   `json:"error,omitempty"`
	Questions  *models.QuestionQueue    `json:"questions"`
	Transcript []models.ChatMessage     `json:"transcript"`
	Analyzing  bool                     `json:"analyzing"`
	Chatting   bool                     `json:"chatting"`
}

func newResultsResponse(view results.View) *resultsResponse {
	factors := make([]riskFactorResponse, 0, len(view.RiskFactors()))
	for _, f := range view.RiskFactors() {
		factors = append(factors, riskFactorResponse{
			Label:  f.Label,
			Detail: f.Detail,
			Badge:  f.Badge,
			Level:  f.Level,
			Fill:   f.Fill,
		})
	}
	return &resultsResponse{
		PredictedClass:   view.PredictedClass,
		ConfidenceLabel:  view.ConfidenceLabel,
		Description:      view.Description,
		OverallRiskScore: view.OverallRiskScore,
		RiskFactors:      factors,
	}
}

// screenSnapshot returns the session's screen as JSON.
func (app *application) screenSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := contexthelpers.ScreenID(ctx)
	screen, err := app.screens.Screen(ctx, id)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	resp := screenResponse{
		Profile:    screen.Profile,
		Image:      screen.Image,
		Prediction: screen.Prediction,
		Results:    nil,
		Error:      screen.Error,
		Questions:  screen.Questions,
		Transcript: screen.Transcript,
		Analyzing:  app.screens.Pending(id, task.OpAnalyze),
		Chatting:   app.screens.Pending(id, task.OpChat),
	}
	if screen.Prediction != nil {
		resp.Results = newResultsResponse(results.Render(screen.Profile, *screen.Prediction, app.screens.Content()))
	}
	app.writeJSON(w, r, resp)
}

func (app *application) etiology(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, app.screens.Content().Etiology)
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "marshal json"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
