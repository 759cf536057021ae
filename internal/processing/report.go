package processing

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Report is the persisted summary of a crf-search.
type Report struct {
	Input                string          `json:"input"`
	Encoder              string          `json:"encoder"`
	CRF                  string          `json:"crf"`
	Metric               string          `json:"metric"`
	Score                float64         `json:"score"`
	EncodedPercent       float64         `json:"encoded_percent"`
	PredictedEncodeSize  uint64          `json:"predicted_encode_size"`
	PredictedEncodeTimeS float64         `json:"predicted_encode_time_s"`
	FullPass             bool            `json:"full_pass,omitempty"`
	SampleScores         []float64       `json:"sample_scores"`
	Attempts             []ReportAttempt `json:"attempts,omitempty"`
}

// ReportAttempt is one CRF tried during the search.
type ReportAttempt struct {
	CRF            string  `json:"crf"`
	Score          float64 `json:"score"`
	EncodedPercent float64 `json:"encoded_percent"`
}

// NewReport summarises res for input.
func NewReport(input string, res *SearchResult) Report {
	r := Report{
		Input:                input,
		Encoder:              res.Args.Encoder.String(),
		CRF:                  res.Args.CRFString(),
		Metric:               res.Metric.String(),
		Score:                res.Result.Score,
		EncodedPercent:       res.Result.EncodedPercent,
		PredictedEncodeSize:  res.Result.PredictedEncodeSize,
		PredictedEncodeTimeS: res.Result.PredictedEncodeTime.Seconds(),
		FullPass:             res.Result.FullPass,
		SampleScores:         make([]float64, 0, len(res.Result.Samples)),
	}
	for _, s := range res.Result.Samples {
		r.SampleScores = append(r.SampleScores, s.Score)
	}
	for _, a := range res.Attempts {
		r.Attempts = append(r.Attempts, ReportAttempt{
			CRF:            res.Args.WithCRF(float32(a.CRF)).CRFString(),
			Score:          a.Score(),
			EncodedPercent: a.EncodedPercent(),
		})
	}
	return r
}

// WriteReport atomically writes the search report as indented JSON. A
// reader never observes a partially written file.
func WriteReport(path, input string, res *SearchResult) error {
	data, err := json.MarshalIndent(NewReport(input, res), "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	pf, err := renameio.NewPendingFile(path, renameio.WithTempDir(filepath.Dir(path)), renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()

	if _, err := pf.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	return nil
}
