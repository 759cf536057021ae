package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONReporter outputs NDJSON events, one object per line.
type JSONReporter struct {
	writer             io.Writer
	mu                 sync.Mutex
	label              string
	lastProgressBucket int
	lastProgressTime   time.Time
}

// NewJSONReporter creates a new JSON reporter that writes to stdout.
func NewJSONReporter() *JSONReporter {
	return NewJSONReporterWithWriter(os.Stdout)
}

// NewJSONReporterWithWriter creates a JSON reporter with a custom writer.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{
		writer:             w,
		lastProgressBucket: -1,
	}
}

func (r *JSONReporter) timestamp() int64 {
	return time.Now().Unix()
}

func (r *JSONReporter) write(v map[string]any) {
	v["timestamp"] = r.timestamp()

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

func sampleFields(eventType string, s SampleEncodeSummary) map[string]any {
	event := map[string]any{
		"type":                    eventType,
		"crf":                     s.CRF,
		"metric":                  s.Metric,
		"score":                   s.Score,
		"encoded_percent":         s.EncodedPercent,
		"predicted_encode_size":   s.PredictedSize,
		"predicted_encode_time_s": s.PredictedTime.Seconds(),
		"from_cache":              s.FromCache,
		"full_pass":               s.FullPass,
	}
	if s.Round > 0 {
		event["round"] = s.Round
	}
	return event
}

func (r *JSONReporter) Input(summary InputSummary) {
	r.write(map[string]any{
		"type":       "input",
		"input_file": summary.InputFile,
		"size":       summary.Size,
		"duration":   summary.Duration,
		"resolution": summary.Resolution,
		"frame_rate": summary.FrameRate,
	})
}

func (r *JSONReporter) EncoderConfig(summary EncoderSummary) {
	r.write(map[string]any{
		"type":         "encoder_config",
		"encoder":      summary.Encoder,
		"preset":       summary.Preset,
		"pixel_format": summary.PixelFormat,
		"keyint":       summary.Keyint,
		"scd":          summary.SCD,
		"vfilter":      summary.VFilter,
		"metric":       summary.Metric,
	})
}

func (r *JSONReporter) SearchStarted(summary SearchSummary) {
	r.write(map[string]any{
		"type":                "search_started",
		"metric":              summary.Metric,
		"min_score":           summary.MinScore,
		"max_encoded_percent": summary.MaxEncodedPercent,
		"min_crf":             summary.MinCRF,
		"max_crf":             summary.MaxCRF,
		"samples":             summary.Samples,
	})
}

func (r *JSONReporter) ProgressStarted(label string) {
	r.mu.Lock()
	r.label = label
	r.lastProgressBucket = -1
	r.lastProgressTime = time.Time{}
	r.mu.Unlock()

	r.write(map[string]any{
		"type":  "progress_started",
		"stage": label,
	})
}

func (r *JSONReporter) Progress(snapshot ProgressSnapshot) {
	const minInterval = 5 * time.Second

	percent := min(max(snapshot.Fraction, 0), 1) * 100
	bucket := int(percent)
	now := time.Now()

	r.mu.Lock()
	intervalElapsed := r.lastProgressTime.IsZero() || now.Sub(r.lastProgressTime) >= minInterval
	shouldEmit := bucket > r.lastProgressBucket || intervalElapsed || percent >= 99.0

	if !shouldEmit {
		r.mu.Unlock()
		return
	}

	if bucket > r.lastProgressBucket {
		r.lastProgressBucket = bucket
	}
	r.lastProgressTime = now
	label := r.label
	r.mu.Unlock()

	r.write(map[string]any{
		"type":    "progress",
		"stage":   label,
		"percent": percent,
		"message": snapshot.Message,
	})
}

func (r *JSONReporter) CRFAttempt(summary SampleEncodeSummary) {
	r.write(sampleFields("crf_attempt", summary))
}

func (r *JSONReporter) SampleEncodeComplete(summary SampleEncodeSummary) {
	r.write(sampleFields("sample_encode_complete", summary))
}

func (r *JSONReporter) SearchComplete(summary SampleEncodeSummary) {
	r.write(sampleFields("search_complete", summary))
}

func (r *JSONReporter) EncodeComplete(outcome EncodeOutcome) {
	r.write(map[string]any{
		"type":             "encode_complete",
		"input_file":       outcome.InputFile,
		"output_file":      outcome.OutputFile,
		"crf":              outcome.CRF,
		"original_size":    outcome.OriginalSize,
		"encoded_size":     outcome.EncodedSize,
		"duration_seconds": int64(outcome.TotalTime.Seconds()),
	})
}

func (r *JSONReporter) ScoreComplete(summary ScoreSummary) {
	r.write(map[string]any{
		"type":      "score",
		"metric":    summary.Metric,
		"reference": summary.Reference,
		"distorted": summary.Distorted,
		"score":     summary.Score,
	})
}

func (r *JSONReporter) Warning(message string) {
	r.write(map[string]any{
		"type":    "warning",
		"message": message,
	})
}

func (r *JSONReporter) Error(err ReporterError) {
	r.write(map[string]any{
		"type":       "error",
		"title":      err.Title,
		"message":    err.Message,
		"context":    err.Context,
		"suggestion": err.Suggestion,
	})
}

func (r *JSONReporter) OperationComplete(message string) {
	r.write(map[string]any{
		"type":    "operation_complete",
		"message": message,
	})
}

func (r *JSONReporter) Verbose(message string) {
	r.write(map[string]any{
		"type":    "verbose",
		"message": message,
	})
}
