package main

import (
	"net/http"
	"time"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/content"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/contexthelpers"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/results"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/task"
)

type BaseTemplateData struct {
	CurrentPath string
}

func newBaseTemplateData(r *http.Request) BaseTemplateData {
	return BaseTemplateData{
		CurrentPath: contexthelpers.CurrentPath(r.Context()),
	}
}

type answeredQuestion struct {
	Question string
	Answer   string
}

type questionsTemplateData struct {
	Current  string
	Number   int
	Total    int
	Answered []answeredQuestion
	// Done is set once the last question has an answer.
	Done bool
}

type screenTemplateData struct {
	BaseTemplateData

	Profile     models.PatientProfile
	Genders     []models.Gender
	TobaccoUses []models.TobaccoUse
	Image       *models.UploadedImage
	Error       string
	Results     *results.View
	Questions   *questionsTemplateData
	Transcript  []models.ChatMessage
	Etiology    []content.EtiologyRecord
	Prevalence  []content.RegionStat
	Analyzing   bool
	Chatting    bool
	// ScrollDelay is in milliseconds.
	ScrollDelay int64
}

func (app *application) newScreenTemplateData(r *http.Request, screen models.Screen) screenTemplateData {
	var (
		texts    = app.screens.Content()
		screenID = contexthelpers.ScreenID(r.Context())
		view     *results.View
	)
	if screen.Prediction != nil {
		v := results.Render(screen.Profile, *screen.Prediction, texts)
		view = &v
	}
	return screenTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Profile:          screen.Profile,
		Genders:          models.Genders,
		TobaccoUses:      models.TobaccoUses,
		Image:            screen.Image,
		Error:            screen.Error,
		Results:          view,
		Questions:        newQuestionsTemplateData(screen.Questions),
		Transcript:       screen.Transcript,
		Etiology:         texts.Etiology,
		Prevalence:       texts.Prevalence,
		Analyzing:        app.screens.Pending(screenID, task.OpAnalyze),
		Chatting:         app.screens.Pending(screenID, task.OpChat),
		ScrollDelay:      app.scrollDelay.Milliseconds(),
	}
}

func newQuestionsTemplateData(queue *models.QuestionQueue) *questionsTemplateData {
	if queue == nil || len(queue.Questions) == 0 {
		return nil
	}
	answered := make([]answeredQuestion, 0, len(queue.Answers))
	for i, question := range queue.Questions {
		if answer, ok := queue.Answers[i]; ok {
			answered = append(answered, answeredQuestion{Question: question, Answer: answer})
		}
	}
	_, lastAnswered := queue.Answers[len(queue.Questions)-1]
	return &questionsTemplateData{
		Current:  queue.Current(),
		Number:   queue.Cursor + 1,
		Total:    len(queue.Questions),
		Answered: answered,
		Done:     lastAnswered,
	}
}

// formatTime renders the chat timestamps.
func formatTime(t time.Time) string {
	return t.Format("15:04")
}
