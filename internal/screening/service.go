// Package screening owns the state of a screening session and coordinates the prediction service and the wellness
// assistant around it.
package screening

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/content"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/metrics"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/prediction"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/repositories"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/task"
	"github.com/google/uuid"
)

var (
	// ErrMissingImage is returned by Analyze when no image has been uploaded.
	ErrMissingImage = prediction.ErrMissingImage
	// ErrAnalysisFailed is joined with the upstream error when the prediction service fails.
	ErrAnalysisFailed = errors.NewSentinel("analysis failed")
	// ErrNoPrediction is returned by chat operations before the first successful analysis.
	ErrNoPrediction = errors.NewSentinel("no prediction")
	ErrBusy         = task.ErrBusy
)

// ScreenStore persists screens. Update must apply fn atomically with respect to other updates of the same screen.
type ScreenStore interface {
	Get(ctx context.Context, id string) (models.Screen, error)
	Update(ctx context.Context, id string, fn func(screen *models.Screen) error) (models.Screen, error)
	PutImage(ctx context.Context, id string, file models.ImageFile) (models.Screen, error)
	Image(ctx context.Context, id string) (models.ImageFile, error)
}

type Predictor interface {
	Analyze(ctx context.Context, profile models.PatientProfile, image *models.ImageFile) (models.PredictionResult, error)
}

type Assistant interface {
	UserMessage(text string) models.ChatMessage
	Seed(ctx context.Context, prediction models.PredictionResult, profile models.PatientProfile) models.ChatMessage
	Reply(
		ctx context.Context,
		prediction models.PredictionResult,
		profile models.PatientProfile,
		history []models.ChatMessage,
		question string,
	) models.ChatMessage
}

type Service struct {
	store     ScreenStore
	predictor Predictor
	assistant Assistant
	guard     *task.Guard
	content   *content.Content
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(
	store ScreenStore,
	predictor Predictor,
	assistant Assistant,
	guard *task.Guard,
	c *content.Content,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:     store,
		predictor: predictor,
		assistant: assistant,
		guard:     guard,
		content:   c,
		metrics:   m,
		logger:    logger.With(slog.String("source", "screening")),
	}
}

// Content returns the texts and reference data the service was configured with.
func (s *Service) Content() *content.Content {
	return s.content
}

func (s *Service) Screen(ctx context.Context, id string) (models.Screen, error) {
	screen, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Screen{}, errors.Wrap(err, "get screen")
	}
	return screen, nil
}

// Pending reports whether op is in flight for the screen.
func (s *Service) Pending(id string, op string) bool {
	return s.guard.Pending(id, op)
}

// ProfileUpdate is a single form field change.
type ProfileUpdate struct {
	Field string
	Value string
}

// UpdateProfile applies the updates in order. Either all of them are stored or none.
func (s *Service) UpdateProfile(ctx context.Context, id string, updates ...ProfileUpdate) (models.Screen, error) {
	screen, err := s.store.Update(ctx, id, func(screen *models.Screen) error {
		for _, u := range updates {
			if err := screen.Profile.Set(u.Field, u.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Screen{}, errors.Wrap(err, "update profile")
	}
	return screen, nil
}

// UploadImage replaces the screen's image. An empty file is ignored.
func (s *Service) UploadImage(ctx context.Context, id string, file models.ImageFile) (models.Screen, error) {
	if len(file.Data) == 0 {
		return s.Screen(ctx, id)
	}
	screen, err := s.store.PutImage(ctx, id, file)
	if err != nil {
		return models.Screen{}, errors.Wrap(err, "put image")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "image uploaded",
		slog.String("content_type", file.ContentType),
		slog.Int("size", len(file.Data)),
		slog.Int("version", screen.Image.Version))
	return screen, nil
}

// Image returns the bytes of the current image or [repositories.ErrNotFound].
func (s *Service) Image(ctx context.Context, id string) (models.ImageFile, error) {
	file, err := s.store.Image(ctx, id)
	if err != nil {
		return models.ImageFile{}, errors.Wrap(err, "get image")
	}
	return file, nil
}

// Analyze classifies the current image with the current profile.
//
// Without an image the screen gets the missing image message and ErrMissingImage is returned without contacting the
// prediction service. Otherwise the previous analysis is cleared first. On failure the screen gets the analysis failed
// message and the error matches ErrAnalysisFailed. On success the prediction is stored, the follow-up questions start
// over and the assistant's opening message is added. Only one analysis per screen runs at a time, a second one fails
// with ErrBusy.
func (s *Service) Analyze(ctx context.Context, id string) (models.Screen, error) {
	release, err := s.guard.TryAcquire(id, task.OpAnalyze)
	if err != nil {
		return models.Screen{}, err
	}
	defer release()

	missing := false
	screen, err := s.store.Update(ctx, id, func(screen *models.Screen) error {
		if screen.Image == nil {
			missing = true
			screen.Error = s.content.Messages.MissingImage
			return nil
		}
		screen.ResetAnalysis()
		return nil
	})
	if err != nil {
		return models.Screen{}, errors.Wrap(err, "prepare analysis")
	}
	if missing {
		return screen, ErrMissingImage
	}

	var result models.PredictionResult
	file, err := s.store.Image(ctx, id)
	if err == nil {
		result, err = s.predictor.Analyze(ctx, screen.Profile, &file)
	}
	// The outcome is stored even when the request went away meanwhile.
	storeCtx := context.WithoutCancel(ctx)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "analysis failed", errors.SlogError(err))
		screen, storeErr := s.store.Update(storeCtx, id, func(screen *models.Screen) error {
			screen.Error = s.content.Messages.AnalysisFailed
			return nil
		})
		if storeErr != nil {
			return models.Screen{}, errors.Wrap(storeErr, "store analysis failure")
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return screen, errors.Join(ErrAnalysisFailed, ErrMissingImage, err)
		}
		return screen, errors.Join(ErrAnalysisFailed, err)
	}

	analysisID := uuid.NewString()
	screen, err = s.store.Update(storeCtx, id, func(screen *models.Screen) error {
		screen.Prediction = &result
		screen.AnalysisID = analysisID
		screen.Error = ""
		screen.Questions = models.NewQuestionQueue(s.content.Questions)
		screen.Transcript = nil
		return nil
	})
	if err != nil {
		return models.Screen{}, errors.Wrap(err, "store prediction")
	}

	seed := s.assistant.Seed(ctx, result, screen.Profile)
	screen, err = s.store.Update(storeCtx, id, func(screen *models.Screen) error {
		if screen.AnalysisID != analysisID {
			return nil
		}
		// Messages sent while the seed was generated stay after it.
		screen.Transcript = append([]models.ChatMessage{seed}, screen.Transcript...)
		return nil
	})
	if err != nil {
		return models.Screen{}, errors.Wrap(err, "store seed message")
	}
	s.metrics.ObserveChatMessage(string(models.RoleAssistant))

	s.logger.LogAttrs(ctx, slog.LevelInfo, "analysis complete",
		slog.String("analysis_id", analysisID),
		slog.String("predicted_class", result.PredictedClass))
	return screen, nil
}

// SendMessage appends the patient's message, asks the assistant and appends the reply. Whitespace-only text is
// ignored. The reply is dropped when a newer analysis replaced the conversation while it was generated.
func (s *Service) SendMessage(ctx context.Context, id string, text string) (models.Screen, error) {
	if strings.TrimSpace(text) == "" {
		return s.Screen(ctx, id)
	}

	release, err := s.guard.TryAcquire(id, task.OpChat)
	if err != nil {
		return models.Screen{}, err
	}
	defer release()

	var (
		history    []models.ChatMessage
		result     models.PredictionResult
		profile    models.PatientProfile
		analysisID string
		userMsg    = s.assistant.UserMessage(text)
	)
	if _, err = s.store.Update(ctx, id, func(screen *models.Screen) error {
		if screen.Prediction == nil {
			return ErrNoPrediction
		}
		history = append([]models.ChatMessage(nil), screen.Transcript...)
		result = *screen.Prediction
		profile = screen.Profile
		analysisID = screen.AnalysisID
		screen.Transcript = append(screen.Transcript, userMsg)
		return nil
	}); err != nil {
		return models.Screen{}, errors.Wrap(err, "append user message")
	}
	s.metrics.ObserveChatMessage(string(models.RoleUser))

	reply := s.assistant.Reply(ctx, result, profile, history, text)

	dropped := false
	screen, err := s.store.Update(context.WithoutCancel(ctx), id, func(screen *models.Screen) error {
		if screen.AnalysisID != analysisID {
			dropped = true
			return nil
		}
		screen.Transcript = append(screen.Transcript, reply)
		return nil
	})
	if err != nil {
		return models.Screen{}, errors.Wrap(err, "append reply")
	}
	if dropped {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "dropped reply for replaced conversation",
			slog.String("analysis_id", analysisID))
		return screen, nil
	}
	s.metrics.ObserveChatMessage(string(models.RoleAssistant))
	return screen, nil
}

// AnswerQuestion records the answer to the current follow-up question and moves on to the next one.
func (s *Service) AnswerQuestion(ctx context.Context, id string, answer string) (models.Screen, error) {
	if strings.TrimSpace(answer) == "" {
		return s.Screen(ctx, id)
	}
	screen, err := s.store.Update(ctx, id, func(screen *models.Screen) error {
		if screen.Questions == nil {
			return ErrNoPrediction
		}
		screen.Questions.Answer(answer)
		return nil
	})
	if err != nil {
		return models.Screen{}, errors.Wrap(err, "answer question")
	}
	return screen, nil
}
