package screen

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/chat"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/content"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/prediction"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/results"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

var ErrUnsupportedImage = errors.NewSentinel("unsupported image type")

var acceptedImageTypes = []string{"image/png", "image/jpeg"}

type analyzeOptions struct {
	imagePath string
	age       string
	gender    string
	tobacco   string
	chat      bool
}

// NewAnalyzeCommand returns the command that classifies a single image and optionally continues with a wellness
// conversation on stdin.
func NewAnalyzeCommand(lookupEnv func(string) (string, bool)) *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:     "analyze",
		GroupID: Group.ID,
		Short:   "Analyze a lesion image",
		Long: `Sends the image and patient details to the prediction service and prints the results.
With --chat a wellness conversation follows, end it with "exit" or EOF.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(lookupEnv)
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), s, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.imagePath, "image", "", "path to the PNG or JPEG image")
	f.StringVar(&opts.age, "age", "", "patient age in years")
	f.StringVar(&opts.gender, "gender", string(models.GenderMale), "Male or Female")
	f.StringVar(&opts.tobacco, "tobacco", string(models.TobaccoNo), "No, Smoker or Smokeless/Chewing")
	f.BoolVar(&opts.chat, "chat", false, "start a wellness conversation after the results")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func runAnalyze(
	ctx context.Context,
	s settings,
	opts analyzeOptions,
	in io.Reader,
	out io.Writer,
	errOut io.Writer,
) error {
	logger := newLogger(errOut, s.LogLevel)
	texts, err := content.Load(s.ContentPath)
	if err != nil {
		return errors.Wrap(err, "load content", slog.String("path", s.ContentPath))
	}

	profile := models.DefaultProfile()
	for field, value := range map[string]string{
		models.FieldAge:        opts.age,
		models.FieldGender:     opts.gender,
		models.FieldTobaccoUse: opts.tobacco,
	} {
		if err = profile.Set(field, value); err != nil {
			return err
		}
	}

	image, err := readImage(opts.imagePath)
	if err != nil {
		return err
	}

	predictor := prediction.NewClient(s.PredictURL, logger, prediction.WithTimeout(s.UpstreamTimeout))
	result, err := predictor.Analyze(ctx, profile, &image)
	if err != nil {
		_, _ = fmt.Fprintln(errOut, texts.Messages.AnalysisFailed)
		return errors.Wrap(err, "analyze image")
	}
	if err = printResults(out, results.Render(profile, result, texts)); err != nil {
		return err
	}
	if !opts.chat {
		return nil
	}

	backend, err := newChatBackend(s, logger)
	if err != nil {
		return err
	}
	agent := chat.NewAgent(backend, texts.Messages, logger, chat.WithTimeout(s.UpstreamTimeout))
	return converse(ctx, agent, result, profile, in, out)
}

func readImage(path string) (models.ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ImageFile{}, errors.Wrap(err, "read image", slog.String("path", path))
	}
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), acceptedImageTypes...) {
		return models.ImageFile{}, errors.Wrap(ErrUnsupportedImage, "detect image type",
			slog.String("path", path), slog.String("type", mtype.String()))
	}
	return models.ImageFile{
		Filename:    filepath.Base(path),
		ContentType: mtype.String(),
		Data:        data,
	}, nil
}

func printResults(out io.Writer, view results.View) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0) //nolint:mnd // padding
	_, _ = fmt.Fprintf(tw, "Predicted class:\t%s\n", view.PredictedClass)
	_, _ = fmt.Fprintf(tw, "Confidence:\t%s\n", view.ConfidenceLabel)
	_, _ = fmt.Fprintf(tw, "\n%s\n\nClass probabilities\n", view.Description)
	for _, p := range view.Probabilities {
		_, _ = fmt.Fprintf(tw, "  %s\t%s%%\n", p.Label, p.Percent)
	}
	_, _ = fmt.Fprintln(tw, "\nRisk factors")
	for _, f := range view.RiskFactors() {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Label, f.Detail, f.Badge, f.Fill)
	}
	_, _ = fmt.Fprintf(tw, "\nOverall risk score:\t%s\n", view.OverallRiskScore)
	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "print results")
	}
	return nil
}

// converse reads the patient's questions line by line until EOF or "exit".
func converse(
	ctx context.Context,
	agent *chat.Agent,
	result models.PredictionResult,
	profile models.PatientProfile,
	in io.Reader,
	out io.Writer,
) error {
	seed := agent.Seed(ctx, result, profile)
	transcript := []models.ChatMessage{seed}
	_, _ = fmt.Fprintf(out, "\nAI: %s\n", seed.Text)

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		question := scanner.Text()
		trimmed := strings.TrimSpace(question)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" {
			break
		}
		reply := agent.Reply(ctx, result, profile, transcript, question)
		transcript = append(transcript, agent.UserMessage(question), reply)
		_, _ = fmt.Fprintf(out, "AI: %s\n", reply.Text)
	}
	_, _ = fmt.Fprintln(out)
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read question")
	}
	return nil
}
