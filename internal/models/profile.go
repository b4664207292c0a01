package models

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
)

var (
	ErrUnknownField = errors.NewSentinel("unknown profile field")
	ErrInvalidValue = errors.NewSentinel("invalid profile value")
)

// Profile form field names.
const (
	FieldAge        = "age"
	FieldGender     = "gender"
	FieldTobaccoUse = "tobaccoUse"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// Genders lists the selectable genders in form order.
var Genders = []Gender{GenderMale, GenderFemale}

type TobaccoUse string

const (
	TobaccoNo        TobaccoUse = "No"
	TobaccoSmoker    TobaccoUse = "Smoker"
	TobaccoSmokeless TobaccoUse = "Smokeless/Chewing"
)

// TobaccoUses lists the selectable tobacco habits in form order.
var TobaccoUses = []TobaccoUse{TobaccoNo, TobaccoSmoker, TobaccoSmokeless}

// Age is an optional age in years. The zero value is the empty age.
type Age struct {
	Years int
	Valid bool
}

func NewAge(years int) Age {
	return Age{Years: years, Valid: true}
}

// ParseAge coerces form input to an Age. Anything that is not an integer becomes the empty age.
func ParseAge(s string) Age {
	years, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Age{}
	}
	return NewAge(years)
}

// String returns the decimal years or an empty string for the empty age.
func (a Age) String() string {
	if !a.Valid {
		return ""
	}
	return strconv.Itoa(a.Years)
}

func (a Age) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(a.Years)), nil
}

func (a *Age) UnmarshalJSON(data []byte) error {
	var years *int
	if err := json.Unmarshal(data, &years); err != nil {
		return errors.Wrap(err, "unmarshal age")
	}
	if years == nil {
		*a = Age{}
		return nil
	}
	*a = NewAge(*years)
	return nil
}

// PatientProfile is the demographic and habit metadata sent along with the image.
type PatientProfile struct {
	Age        Age        `json:"age"`
	Gender     Gender     `json:"gender"`
	TobaccoUse TobaccoUse `json:"tobaccoUse"`
}

func DefaultProfile() PatientProfile {
	return PatientProfile{
		Age:        Age{},
		Gender:     GenderMale,
		TobaccoUse: TobaccoNo,
	}
}

// Set updates a single field and leaves the others untouched.
func (p *PatientProfile) Set(field string, value string) error {
	switch field {
	case FieldAge:
		p.Age = ParseAge(value)
	case FieldGender:
		g := Gender(value)
		if g != GenderMale && g != GenderFemale {
			return errors.Wrap(ErrInvalidValue, "set gender", slog.String("value", value))
		}
		p.Gender = g
	case FieldTobaccoUse:
		t := TobaccoUse(value)
		if t != TobaccoNo && t != TobaccoSmoker && t != TobaccoSmokeless {
			return errors.Wrap(ErrInvalidValue, "set tobacco use", slog.String("value", value))
		}
		p.TobaccoUse = t
	default:
		return errors.Wrap(ErrUnknownField, "set field", slog.String("field", field))
	}
	return nil
}
