// Package results turns a prediction and the patient profile into display values. The risk factors are fixed
// presentation heuristics, not clinical scores.
package results

import (
	"fmt"
	"math"
	"strconv"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
)

type Level string

const (
	LevelHigh    Level = "high"
	LevelLow     Level = "low"
	LevelNeutral Level = "neutral"
)

const (
	BadgeHighRisk          = "High Risk"
	BadgeLowRisk           = "Low Risk"
	BadgeHigherPrevalence  = "Higher Prevalence"
	BadgeLowerPrevalence   = "Lower Prevalence"
	ageRiskThreshold       = 40
	ageScale               = 80.0
	tobaccoNoFill          = 20.0
	tobaccoSmokerFill      = 80.0
	tobaccoSmokelessFill   = 90.0
	genderMaleFill         = 60.0
	genderFemaleFill       = 40.0
	percentScale           = 100.0
	maxFill                = 100.0
	probabilityDecimalsFmt = "%.2f"
)

// RiskFactor is one bar in the risk factor panel. Fill is a CSS width such as "62.5%".
type RiskFactor struct {
	Icon   string
	Label  string
	Detail string
	Badge  string
	Level  Level
	Fill   string
}

type ProbabilityRow struct {
	Label string
	// Percent has two decimals, without the percent sign.
	Percent string
	Width   string
}

type View struct {
	PredictedClass   string
	ConfidenceLabel  string
	Probabilities    []ProbabilityRow
	Description      string
	Age              RiskFactor
	Tobacco          RiskFactor
	Gender           RiskFactor
	OverallRiskScore string
}

// RiskFactors returns the factors in display order.
func (v View) RiskFactors() []RiskFactor {
	return []RiskFactor{v.Age, v.Tobacco, v.Gender}
}

// Describer looks up the explanation for a predicted class.
type Describer interface {
	Description(label string) string
}

// Render builds the results view. It is pure: the same inputs always give the same view.
func Render(profile models.PatientProfile, prediction models.PredictionResult, descriptions Describer) View {
	confidence := ConfidenceLabel(prediction.ConfidenceScore)
	rows := make([]ProbabilityRow, 0, len(prediction.AllPredictions))
	for _, p := range prediction.AllPredictions {
		rows = append(rows, ProbabilityRow{
			Label:   p.Label,
			Percent: fmt.Sprintf(probabilityDecimalsFmt, p.Probability*percentScale),
			Width:   cssPercent(p.Probability * percentScale),
		})
	}
	return View{
		PredictedClass:   prediction.PredictedClass,
		ConfidenceLabel:  confidence,
		Probabilities:    rows,
		Description:      descriptions.Description(prediction.PredictedClass),
		Age:              AgeRisk(profile.Age),
		Tobacco:          TobaccoRisk(profile.TobaccoUse),
		Gender:           GenderRisk(profile.Gender),
		OverallRiskScore: confidence,
	}
}

// ConfidenceLabel rounds the score to a whole percentage with halves rounded up, e.g. 0.873 is "87%".
func ConfidenceLabel(score float64) string {
	return strconv.FormatFloat(math.Floor(score*percentScale+0.5), 'f', 0, 64) + "%"
}

// AgeRisk is high above 40 years. The bar grows linearly up to 80 years. The empty age is low risk with an empty bar.
func AgeRisk(age models.Age) RiskFactor {
	level, badge := LevelLow, BadgeLowRisk
	if age.Valid && age.Years > ageRiskThreshold {
		level, badge = LevelHigh, BadgeHighRisk
	}
	fill := 0.0
	if age.Valid {
		fill = math.Max(0, math.Min(float64(age.Years)/ageScale*percentScale, maxFill))
	}
	return RiskFactor{
		Icon:   "👤",
		Label:  "Age Factor",
		Detail: age.String() + " years old",
		Badge:  badge,
		Level:  level,
		Fill:   cssPercent(fill),
	}
}

// TobaccoRisk is high for any tobacco habit.
func TobaccoRisk(use models.TobaccoUse) RiskFactor {
	level, badge := LevelHigh, BadgeHighRisk
	if use == models.TobaccoNo {
		level, badge = LevelLow, BadgeLowRisk
	}
	var fill float64
	switch use {
	case models.TobaccoNo:
		fill = tobaccoNoFill
	case models.TobaccoSmoker:
		fill = tobaccoSmokerFill
	case models.TobaccoSmokeless:
		fill = tobaccoSmokelessFill
	default:
		fill = tobaccoSmokelessFill
	}
	return RiskFactor{
		Icon:   "🚬",
		Label:  "Tobacco Use",
		Detail: string(use),
		Badge:  badge,
		Level:  level,
		Fill:   cssPercent(fill),
	}
}

// GenderRisk is informational only and always neutral.
func GenderRisk(gender models.Gender) RiskFactor {
	if gender == models.GenderMale {
		return RiskFactor{
			Icon:   "👨",
			Label:  "Gender",
			Detail: string(gender),
			Badge:  BadgeHigherPrevalence,
			Level:  LevelNeutral,
			Fill:   cssPercent(genderMaleFill),
		}
	}
	return RiskFactor{
		Icon:   "👩",
		Label:  "Gender",
		Detail: string(gender),
		Badge:  BadgeLowerPrevalence,
		Level:  LevelNeutral,
		Fill:   cssPercent(genderFemaleFill),
	}
}

func cssPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
