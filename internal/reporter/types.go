// Package reporter provides progress reporting interfaces and implementations.
package reporter

import "time"

// InputSummary describes the input before any work starts.
type InputSummary struct {
	InputFile  string
	Duration   string
	Resolution string
	FrameRate  string
	Size       uint64
}

// EncoderSummary contains the resolved encoder configuration.
type EncoderSummary struct {
	Encoder     string
	Preset      string
	PixelFormat string
	Keyint      string
	SCD         bool
	VFilter     string
	Metric      string
}

// SearchSummary contains the crf-search target and bounds.
type SearchSummary struct {
	Metric            string
	MinScore          float64
	MaxEncodedPercent float64
	MinCRF            int
	MaxCRF            int
	Samples           int
}

// ProgressSnapshot is an update for the active progress bar.
type ProgressSnapshot struct {
	// Fraction is in [0, 1].
	Fraction float64
	Message  string
}

// SampleEncodeSummary is one sample-encode result at a CRF.
type SampleEncodeSummary struct {
	Round          int
	CRF            string
	Metric         string
	Score          float64
	EncodedPercent float64
	PredictedSize  uint64
	PredictedTime  time.Duration
	FromCache      bool
	FullPass       bool
}

// EncodeOutcome contains final encoding results.
type EncodeOutcome struct {
	InputFile    string
	OutputFile   string
	CRF          string
	OriginalSize uint64
	EncodedSize  uint64
	TotalTime    time.Duration
}

// ScoreSummary is a standalone quality measurement.
type ScoreSummary struct {
	Metric    string
	Reference string
	Distorted string
	Score     float64
}

// ReporterError contains error information.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}
