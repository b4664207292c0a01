package chat

import (
	"strconv"
	"strings"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
)

// confidencePercent formats a confidence score as a percentage with one decimal.
func confidencePercent(score float64) string {
	return strconv.FormatFloat(score*100, 'f', 1, 64)
}

// SeedPrompt asks for the opening recommendation after a prediction.
func SeedPrompt(prediction models.PredictionResult, profile models.PatientProfile) string {
	var b strings.Builder
	b.WriteString("You are a compassionate medical AI assistant specializing in oral health. \n    \n")
	b.WriteString("Patient Information:\n")
	b.WriteString("- Condition: " + prediction.PredictedClass + "\n")
	b.WriteString("- Confidence: " + confidencePercent(prediction.ConfidenceScore) + "%\n")
	b.WriteString("- Age: " + profile.Age.String() + " years\n")
	b.WriteString("- Gender: " + string(profile.Gender) + "\n")
	b.WriteString("- Tobacco Use: " + string(profile.TobaccoUse) + "\n")
	b.WriteString("\n")
	b.WriteString("Provide a brief, empathetic, and actionable health recommendation (3-4 sentences). Include:\n")
	b.WriteString("1. What this condition means\n")
	b.WriteString("2. Immediate steps they should take\n")
	b.WriteString("3. Lifestyle modifications\n")
	b.WriteString("\n")
	b.WriteString("Keep it concise, supportive, and professional.")
	return b.String()
}

// ReplyPrompt asks for an answer to question given the conversation so far. history must not contain question.
func ReplyPrompt(
	prediction models.PredictionResult,
	profile models.PatientProfile,
	history []models.ChatMessage,
	question string,
) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "AI"
		if m.Role == models.RoleUser {
			speaker = "Patient"
		}
		lines = append(lines, speaker+": "+m.Text)
	}

	var b strings.Builder
	b.WriteString("Patient has " + prediction.PredictedClass + " with " +
		confidencePercent(prediction.ConfidenceScore) + "% confidence. ")
	b.WriteString("Age: " + profile.Age.String() + ", Gender: " + string(profile.Gender) +
		", Tobacco: " + string(profile.TobaccoUse) + ".\n")
	b.WriteString("\n")
	b.WriteString("Previous conversation:\n")
	b.WriteString(strings.Join(lines, "\n") + "\n")
	b.WriteString("\n")
	b.WriteString("Patient's question: " + question + "\n")
	b.WriteString("\n")
	b.WriteString("Provide a helpful, medically accurate response (2-3 sentences).")
	return b.String()
}
