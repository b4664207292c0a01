package models

// PredictionResult is the classification returned by the prediction service.
type PredictionResult struct {
	PredictedClass  string             `json:"predictedClass"`
	ConfidenceScore float64            `json:"confidenceScore"`
	AllPredictions  []ClassProbability `json:"allPredictions"`
}

// ClassProbability is one row of the per-class probability table.
type ClassProbability struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}
