package model

import "time"

// LogRecord is one parsed log line. Produced by the parser, consumed by the detector.
type LogRecord struct {
	Timestamp    string  `json:"timestamp"`
	SourceFile   string  `json:"sourceFile"`
	LineNumber   uint64  `json:"lineNumber"`
	FeatureValue float64 `json:"featureValue"`
	RawText      string  `json:"rawText"`
}

// Features is the feature map handed to the online scorer.
func (r LogRecord) Features() map[string]float64 {
	return map[string]float64{"resp": r.FeatureValue}
}

type FileCursor struct {
	Path          string `json:"path"`
	LinesConsumed uint64 `json:"linesConsumed"`
}

// AlertRecord is a confirmed, classified anomaly. Never mutated after Report.
type AlertRecord struct {
	ID                  string    `json:"id"`
	Timestamp           string    `json:"timestamp"`
	SourceFile          string    `json:"sourceFile"`
	LineNumber          uint64    `json:"lineNumber"`
	FeatureValue        float64   `json:"featureValue"`
	ReconstructionError float64   `json:"reconstructionError"`
	Category            string    `json:"category"`
	SuggestedFix        string    `json:"suggestedFix"`
	Reason              string    `json:"reason"`
	RawText             string    `json:"rawText"`
	DetectedAt          time.Time `json:"detectedAt"`
}

// Candidate is surfaced to live displays when the online scorer flags a record.
type Candidate struct {
	SourceFile   string  `json:"sourceFile"`
	LineNumber   uint64  `json:"lineNumber"`
	FeatureValue float64 `json:"featureValue"`
	Score        float64 `json:"score"`
}
