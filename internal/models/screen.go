package models

// Screen is everything the screening page shows for one session.
type Screen struct {
	Profile    PatientProfile    `json:"profile"`
	Image      *UploadedImage    `json:"image,omitempty"`
	Prediction *PredictionResult `json:"prediction,omitempty"`
	// AnalysisID identifies the analysis that produced Prediction and owns Transcript.
	AnalysisID string         `json:"analysisId,omitempty"`
	Error      string         `json:"error,omitempty"`
	Questions  *QuestionQueue `json:"questions,omitempty"`
	Transcript []ChatMessage  `json:"transcript,omitempty"`
}

func NewScreen() Screen {
	return Screen{
		Profile:    DefaultProfile(),
		Image:      nil,
		Prediction: nil,
		AnalysisID: "",
		Error:      "",
		Questions:  nil,
		Transcript: nil,
	}
}

// ResetAnalysis forgets everything derived from the previous analysis.
func (s *Screen) ResetAnalysis() {
	s.Prediction = nil
	s.AnalysisID = ""
	s.Error = ""
	s.Questions = nil
	s.Transcript = nil
}
