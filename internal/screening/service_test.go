package screening_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/chat"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/content"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/repositories"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/screening"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/sqlite"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/task"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

const screenID = "screen-1"

var leukoplakia = models.PredictionResult{
	PredictedClass:  "Leukoplakia",
	ConfidenceScore: 0.873,
	AllPredictions: []models.ClassProbability{
		{Label: "Leukoplakia", Probability: 0.873},
		{Label: "Normal", Probability: 0.127},
	},
}

var lesion = models.ImageFile{Filename: "lesion.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")}

type fakePredictor struct {
	calls   atomic.Int32
	result  models.PredictionResult
	err     error
	block   chan struct{}
	started chan struct{}
	profile models.PatientProfile
}

func (f *fakePredictor) Analyze(
	ctx context.Context,
	profile models.PatientProfile,
	_ *models.ImageFile,
) (models.PredictionResult, error) {
	f.calls.Add(1)
	f.profile = profile
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return models.PredictionResult{}, ctx.Err()
		}
	}
	return f.result, f.err
}

// scriptedBackend answers seed prompts and reply prompts separately.
type scriptedBackend struct {
	mu           sync.Mutex
	seedReply    string
	replyText    string
	replyStarted chan struct{}
	replyBlock   chan struct{}
	prompts      []string
}

func (b *scriptedBackend) Complete(_ context.Context, prompt string) (string, error) {
	b.mu.Lock()
	b.prompts = append(b.prompts, prompt)
	b.mu.Unlock()
	if strings.HasPrefix(prompt, "Patient has") {
		if b.replyStarted != nil {
			b.replyStarted <- struct{}{}
		}
		if b.replyBlock != nil {
			<-b.replyBlock
		}
		return b.replyText, nil
	}
	return b.seedReply, nil
}

func (b *scriptedBackend) lastPrompt() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prompts[len(b.prompts)-1]
}

func newService(t *testing.T, predictor screening.Predictor, backend chat.Backend) *screening.Service {
	t.Helper()
	ctx := context.Background()
	logger := testhelpers.NewLogger(io.Discard)
	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	c := content.Default()
	agent := chat.NewAgent(backend, c.Messages, logger)
	return screening.NewService(repositories.NewScreenRepository(db, logger), predictor, agent, task.NewGuard(), c,
		nil, logger)
}

func TestService_AnalyzeWithoutImage(t *testing.T) {
	predictor := &fakePredictor{result: leukoplakia}
	svc := newService(t, predictor, &scriptedBackend{})

	screen, err := svc.Analyze(context.Background(), screenID)
	require.ErrorIs(t, err, screening.ErrMissingImage)
	require.Equal(t, "Please upload an image.", screen.Error)
	require.Nil(t, screen.Prediction)
	require.Zero(t, predictor.calls.Load())
}

func TestService_Analyze(t *testing.T) {
	ctx := context.Background()
	predictor := &fakePredictor{result: leukoplakia}
	backend := &scriptedBackend{seedReply: "Please see a specialist soon."}
	svc := newService(t, predictor, backend)

	_, err := svc.UpdateProfile(ctx, screenID,
		screening.ProfileUpdate{Field: models.FieldAge, Value: "52"},
		screening.ProfileUpdate{Field: models.FieldTobaccoUse, Value: "Smoker"})
	require.NoError(t, err)
	_, err = svc.UploadImage(ctx, screenID, lesion)
	require.NoError(t, err)

	screen, err := svc.Analyze(ctx, screenID)
	require.NoError(t, err)
	require.EqualValues(t, 1, predictor.calls.Load())
	require.Equal(t, models.NewAge(52), predictor.profile.Age)

	require.Equal(t, &leukoplakia, screen.Prediction)
	require.NotEmpty(t, screen.AnalysisID)
	require.Empty(t, screen.Error)
	require.Equal(t, content.Default().Questions, screen.Questions.Questions)
	require.Zero(t, screen.Questions.Cursor)
	require.Empty(t, screen.Questions.Answers)
	require.Len(t, screen.Transcript, 1)
	require.Equal(t, models.RoleAssistant, screen.Transcript[0].Role)
	require.Equal(t, "Please see a specialist soon.", screen.Transcript[0].Text)
	require.Contains(t, backend.lastPrompt(), "- Age: 52 years\n")

	stored, err := svc.Screen(ctx, screenID)
	require.NoError(t, err)
	require.Equal(t, screen, stored)
}

func TestService_AnalyzeFailureClearsPreviousResult(t *testing.T) {
	ctx := context.Background()
	predictor := &fakePredictor{result: leukoplakia}
	svc := newService(t, predictor, &scriptedBackend{})
	_, err := svc.UploadImage(ctx, screenID, lesion)
	require.NoError(t, err)
	_, err = svc.Analyze(ctx, screenID)
	require.NoError(t, err)

	predictor.err = errors.New("connection refused")
	screen, err := svc.Analyze(ctx, screenID)
	require.ErrorIs(t, err, screening.ErrAnalysisFailed)
	require.Equal(t, "Analysis failed. Please check the backend server and try again.", screen.Error)
	require.Nil(t, screen.Prediction)
	require.Nil(t, screen.Questions)
	require.Empty(t, screen.Transcript)
}

func TestService_NewAnalysisResetsConversation(t *testing.T) {
	ctx := context.Background()
	predictor := &fakePredictor{result: leukoplakia}
	backend := &scriptedBackend{seedReply: "seed", replyText: "reply"}
	svc := newService(t, predictor, backend)
	_, err := svc.UploadImage(ctx, screenID, lesion)
	require.NoError(t, err)

	first, err := svc.Analyze(ctx, screenID)
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, screenID, "Is it serious?")
	require.NoError(t, err)
	_, err = svc.AnswerQuestion(ctx, screenID, "Mostly rice.")
	require.NoError(t, err)

	second, err := svc.Analyze(ctx, screenID)
	require.NoError(t, err)
	require.NotEqual(t, first.AnalysisID, second.AnalysisID)
	require.Len(t, second.Transcript, 1)
	require.Zero(t, second.Questions.Cursor)
	require.Empty(t, second.Questions.Answers)
}

func TestService_AnalyzeBusy(t *testing.T) {
	ctx := context.Background()
	predictor := &fakePredictor{
		result:  leukoplakia,
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	svc := newService(t, predictor, &scriptedBackend{})
	_, err := svc.UploadImage(ctx, screenID, lesion)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, analyzeErr := svc.Analyze(ctx, screenID)
		done <- analyzeErr
	}()
	<-predictor.started
	require.True(t, svc.Pending(screenID, task.OpAnalyze))

	_, err = svc.Analyze(ctx, screenID)
	require.ErrorIs(t, err, screening.ErrBusy)

	close(predictor.block)
	require.NoError(t, <-done)
	require.False(t, svc.Pending(screenID, task.OpAnalyze))
	require.EqualValues(t, 1, predictor.calls.Load())
}

func TestService_SendMessage(t *testing.T) {
	ctx := context.Background()
	backend := &scriptedBackend{seedReply: "seed", replyText: "Quitting tobacco helps."}
	svc := newService(t, &fakePredictor{result: leukoplakia}, backend)

	_, err := svc.SendMessage(ctx, screenID, "Hello?")
	require.ErrorIs(t, err, screening.ErrNoPrediction)

	_, err = svc.UploadImage(ctx, screenID, lesion)
	require.NoError(t, err)
	_, err = svc.Analyze(ctx, screenID)
	require.NoError(t, err)

	promptsBefore := len(backend.prompts)
	screen, err := svc.SendMessage(ctx, screenID, "   \n\t")
	require.NoError(t, err)
	require.Len(t, screen.Transcript, 1, "whitespace is ignored")
	require.Len(t, backend.prompts, promptsBefore, "no backend call for whitespace")

	screen, err = svc.SendMessage(ctx, screenID, "Should I quit?")
	require.NoError(t, err)
	require.Len(t, screen.Transcript, 3)
	require.Equal(t, models.RoleUser, screen.Transcript[1].Role)
	require.Equal(t, "Should I quit?", screen.Transcript[1].Text)
	require.Equal(t, models.RoleAssistant, screen.Transcript[2].Role)
	require.Equal(t, "Quitting tobacco helps.", screen.Transcript[2].Text)

	prompt := backend.lastPrompt()
	require.Contains(t, prompt, "Previous conversation:\nAI: seed\n\nPatient's question: Should I quit?\n")
	require.NotContains(t, prompt, "Patient: Should I quit?")
}

func TestService_SendMessagePersistsUserMessageFirst(t *testing.T) {
	ctx := context.Background()
	backend := &scriptedBackend{
		seedReply:    "seed",
		replyText:    "reply",
		replyStarted: make(chan struct{}, 1),
		replyBlock:   make(chan struct{}),
	}
	svc := newService(t, &fakePredictor{result: leukoplakia}, backend)
	_, err := svc.UploadImage(ctx, screenID, lesion)
	require.NoError(t, err)
	_, err = svc.Analyze(ctx, screenID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, sendErr := svc.SendMessage(ctx, screenID, "first")
		done <- sendErr
	}()
	<-backend.replyStarted

	screen, err := svc.Screen(ctx, screenID)
	require.NoError(t, err)
	require.Len(t, screen.Transcript, 2, "user message is visible while the reply is pending")
	require.True(t, svc.Pending(screenID, task.OpChat))

	_, err = svc.SendMessage(ctx, screenID, "second")
	require.ErrorIs(t, err, screening.ErrBusy)

	close(backend.replyBlock)
	require.NoError(t, <-done)
}

func TestService_ReplyDroppedAfterNewAnalysis(t *testing.T) {
	ctx := context.Background()
	backend := &scriptedBackend{
		seedReply:    "seed",
		replyText:    "stale reply",
		replyStarted: make(chan struct{}, 1),
		replyBlock:   make(chan struct{}),
	}
	svc := newService(t, &fakePredictor{result: leukoplakia}, backend)
	_, err := svc.UploadImage(ctx, screenID, lesion)
	require.NoError(t, err)
	_, err = svc.Analyze(ctx, screenID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, sendErr := svc.SendMessage(ctx, screenID, "question")
		done <- sendErr
	}()
	<-backend.replyStarted

	fresh, err := svc.Analyze(ctx, screenID)
	require.NoError(t, err)

	close(backend.replyBlock)
	require.NoError(t, <-done)

	screen, err := svc.Screen(ctx, screenID)
	require.NoError(t, err)
	require.Equal(t, fresh.AnalysisID, screen.AnalysisID)
	require.Len(t, screen.Transcript, 1)
	require.Equal(t, "seed", screen.Transcript[0].Text)
}

func TestService_AnswerQuestion(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &fakePredictor{result: leukoplakia}, &scriptedBackend{})

	_, err := svc.AnswerQuestion(ctx, screenID, "early")
	require.ErrorIs(t, err, screening.ErrNoPrediction)

	_, err = svc.UploadImage(ctx, screenID, lesion)
	require.NoError(t, err)
	_, err = svc.Analyze(ctx, screenID)
	require.NoError(t, err)

	var screen models.Screen
	for _, answer := range []string{"a", "b", "c", "d", "e", "f"} {
		screen, err = svc.AnswerQuestion(ctx, screenID, answer)
		require.NoError(t, err)
	}
	require.Equal(t, 4, screen.Questions.Cursor)
	require.Equal(t, map[int]string{0: "a", 1: "b", 2: "c", 3: "d", 4: "f"}, screen.Questions.Answers)
}

func TestService_UpdateProfileIsAtomic(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &fakePredictor{}, &scriptedBackend{})

	_, err := svc.UpdateProfile(ctx, screenID,
		screening.ProfileUpdate{Field: models.FieldAge, Value: "60"},
		screening.ProfileUpdate{Field: models.FieldGender, Value: "Unknown"})
	require.ErrorIs(t, err, models.ErrInvalidValue)

	screen, err := svc.Screen(ctx, screenID)
	require.NoError(t, err)
	require.Equal(t, models.DefaultProfile(), screen.Profile)
}

func TestService_UploadImage(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &fakePredictor{}, &scriptedBackend{})

	screen, err := svc.UploadImage(ctx, screenID, models.ImageFile{Filename: "", ContentType: "", Data: nil})
	require.NoError(t, err)
	require.Nil(t, screen.Image, "an empty selection is ignored")

	_, err = svc.UploadImage(ctx, screenID, lesion)
	require.NoError(t, err)
	screen, err = svc.UploadImage(ctx, screenID, models.ImageFile{
		Filename: "second.png", ContentType: "image/png", Data: []byte("png"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, screen.Image.Version)
	require.Equal(t, "second.png", screen.Image.Filename)

	file, err := svc.Image(ctx, screenID)
	require.NoError(t, err)
	require.Equal(t, []byte("png"), file.Data)
}

func TestService_AnalyzeHonoursCancellation(t *testing.T) {
	predictor := &fakePredictor{result: leukoplakia, block: make(chan struct{}), started: make(chan struct{}, 1)}
	svc := newService(t, predictor, &scriptedBackend{})
	_, err := svc.UploadImage(context.Background(), screenID, lesion)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, analyzeErr := svc.Analyze(ctx, screenID)
		done <- analyzeErr
	}()
	<-predictor.started
	cancel()

	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("analysis did not stop after cancellation")
	}
	require.ErrorIs(t, err, screening.ErrAnalysisFailed)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, svc.Pending(screenID, task.OpAnalyze))
}
