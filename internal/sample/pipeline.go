package sample

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/five82/ab-av1/internal/cache"
	"github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/ffmpeg"
	"github.com/five82/ab-av1/internal/ffprobe"
	"github.com/five82/ab-av1/internal/logging"
	"github.com/five82/ab-av1/internal/process"
	"github.com/five82/ab-av1/internal/temporary"
	"github.com/five82/ab-av1/internal/util"
)

// progressInterval throttles progress callbacks.
const progressInterval = 100 * time.Millisecond

// encodeWeight is the share of a sample's progress taken by the encode;
// scoring fills the rest.
const encodeWeight = 0.75

// Cutter extracts a sample from the input.
type Cutter interface {
	CutSample(ctx context.Context, input string, start, length time.Duration, dir string) (string, error)
}

// Encoder encodes a sample into dir and returns the output path.
type Encoder interface {
	EncodeSample(ctx context.Context, args *ffmpeg.EncoderArgs, sample, dir string, onProgress ffmpeg.ProgressFunc) (string, error)
}

// Scorer compares distorted against reference.
type Scorer interface {
	Score(ctx context.Context, reference, distorted string, onProgress func(process.Progress)) (float64, error)
}

// Cache stores encoded sample results. *cache.Store satisfies it.
type Cache interface {
	Get(key string, out any) bool
	Put(key string, v any)
}

// Encoded is the result for one sample.
type Encoded struct {
	Score       float64       `json:"score"`
	SampleSize  uint64        `json:"sample_size"`
	EncodedSize uint64        `json:"encoded_size"`
	EncodeTime  time.Duration `json:"encode_time"`
	FromCache   bool          `json:"-"`
}

// Result aggregates all samples of one sample-encode.
type Result struct {
	Score               float64
	EncodedPercent      float64
	PredictedEncodeSize uint64
	PredictedEncodeTime time.Duration
	// FromCache is set when every sample was a cache hit.
	FromCache bool
	FullPass  bool
	Samples   []Encoded
}

// Pipeline runs cut, encode and score for every sample of a plan.
type Pipeline struct {
	Cutter  Cutter
	Encoder Encoder
	Scorer  Scorer
	// Cache may be nil to disable caching.
	Cache Cache
	// Temp registers and removes outputs; defaults to the process-wide
	// registry.
	Temp *temporary.Registry

	Samples        int
	SampleDuration time.Duration
	// TempDir holds cuts and encoded samples.
	TempDir string
	// Keep retains encoded sample outputs.
	Keep bool
	// ScoreFingerprint identifies the scoring metric and options in cache
	// keys.
	ScoreFingerprint string

	Log *logging.Logger
}

func (p *Pipeline) logger() *logging.Logger {
	if p.Log == nil {
		return logging.Component("sample")
	}
	return p.Log
}

func (p *Pipeline) temp() *temporary.Registry {
	if p.Temp == nil {
		return temporary.Global()
	}
	return p.Temp
}

// Input is the probed input with its size on disk.
type Input struct {
	Probe *ffprobe.Probe
	Size  uint64
}

// NewInput probes the size of the input described by probe.
func NewInput(probe *ffprobe.Probe) (Input, error) {
	size, err := util.GetFileSize(probe.Path)
	if err != nil {
		return Input{}, errors.NewIOError("failed to stat input "+probe.Path, err)
	}
	return Input{Probe: probe, Size: size}, nil
}

// Run sample-encodes input with args. onProgress receives the overall
// fraction in [0, 1].
func (p *Pipeline) Run(ctx context.Context, in Input, args *ffmpeg.EncoderArgs, onProgress func(float64)) (*Result, error) {
	duration, err := in.Probe.Duration.Get()
	if err != nil {
		return nil, errors.NewProbeError("duration", err)
	}

	n := p.Samples
	if n == 0 {
		n = DefaultCount
	}
	plan := NewPlan(duration, n, p.SampleDuration)
	count := plan.Count()
	log := p.logger()

	fingerprint := args.Fingerprint()
	keyFP := append(fingerprint[:], []byte(p.ScoreFingerprint)...)

	report := newThrottle(onProgress)
	results := make([]Encoded, 0, count)
	for k := 0; k < count; k++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelledError()
		}
		stage := func(frac float64) { report.update((float64(k) + frac) / float64(count)) }

		sample := in.Probe.Path
		var start time.Duration
		if !plan.FullPass {
			start = plan.Starts[k]
			sample = ffmpeg.SamplePath(in.Probe.Path, start, plan.Length, p.TempDir)
		}

		key := cache.Key(cache.Identity{
			FileName:      filepath.Base(sample),
			InputDuration: duration,
			InputExt:      util.GetExtension(in.Probe.Path),
			InputSize:     in.Size,
			FullPass:      plan.FullPass,
		}, keyFP)

		var enc Encoded
		if p.Cache != nil && p.Cache.Get(key, &enc) {
			log.Debug("sample cache hit", "sample", k+1, "crf", args.CRFString(), "score", enc.Score)
			enc.FromCache = true
			results = append(results, enc)
			stage(1)
			continue
		}

		enc, err = p.encodeOne(ctx, plan, sample, start, in, args, stage)
		if err != nil {
			if errors.IsCancelled(err) || ctx.Err() != nil {
				return nil, errors.NewCancelledError()
			}
			return nil, fmt.Errorf("sample %d/%d: %w", k+1, count, err)
		}
		if p.Cache != nil {
			p.Cache.Put(key, enc)
		}
		results = append(results, enc)
		stage(1)
	}
	report.flush()

	return aggregate(results, in.Size, duration, plan), nil
}

func (p *Pipeline) encodeOne(ctx context.Context, plan Plan, sample string, start time.Duration, in Input, args *ffmpeg.EncoderArgs, stage func(float64)) (Encoded, error) {
	if !plan.FullPass {
		var err error
		sample, err = p.Cutter.CutSample(ctx, in.Probe.Path, start, plan.Length, p.TempDir)
		if err != nil {
			return Encoded{}, err
		}
	}
	sampleSize, err := util.GetFileSize(sample)
	if err != nil {
		return Encoded{}, errors.NewIOError("failed to stat sample", err)
	}

	length := plan.Length.Seconds()
	fraction := func(pr process.Progress) float64 {
		if length <= 0 {
			return 0
		}
		return min(pr.Time.Seconds()/length, 1)
	}

	began := time.Now()
	encoded, err := p.Encoder.EncodeSample(ctx, args, sample, p.TempDir, func(pr process.Progress) {
		stage(fraction(pr) * encodeWeight)
	})
	if err != nil {
		return Encoded{}, err
	}
	encodeTime := time.Since(began)

	encodedSize, err := util.GetFileSize(encoded)
	if err != nil {
		return Encoded{}, errors.NewIOError("failed to stat encoded sample", err)
	}

	score, err := p.Scorer.Score(ctx, sample, encoded, func(pr process.Progress) {
		stage(encodeWeight + fraction(pr)*(1-encodeWeight))
	})
	if err != nil {
		return Encoded{}, err
	}

	if !p.Keep {
		if err := p.temp().Remove(encoded); err != nil {
			p.logger().Warn("failed to remove encoded sample", "path", encoded, "error", err)
		}
	}

	return Encoded{
		Score:       score,
		SampleSize:  sampleSize,
		EncodedSize: encodedSize,
		EncodeTime:  encodeTime,
	}, nil
}

func aggregate(samples []Encoded, inputSize uint64, duration time.Duration, plan Plan) *Result {
	r := &Result{Samples: samples, FullPass: plan.FullPass, FromCache: len(samples) > 0}
	if len(samples) == 0 {
		return r
	}

	var scoreSum float64
	var sampleBytes, encodedBytes uint64
	var encodeTime time.Duration
	for _, s := range samples {
		scoreSum += s.Score
		sampleBytes += s.SampleSize
		encodedBytes += s.EncodedSize
		encodeTime += s.EncodeTime
		r.FromCache = r.FromCache && s.FromCache
	}

	r.Score = scoreSum / float64(len(samples))
	r.EncodedPercent = util.EncodedPercent(sampleBytes, encodedBytes)
	r.PredictedEncodeSize = uint64(float64(inputSize) * r.EncodedPercent / 100)

	sampled := plan.Length * time.Duration(len(samples))
	if sampled > 0 {
		predicted := time.Duration(float64(encodeTime) * (float64(duration) / float64(sampled)))
		if predicted >= time.Second {
			predicted = predicted.Truncate(time.Second)
		}
		r.PredictedEncodeTime = predicted
	}
	return r
}

// throttle limits progress callbacks to one per progressInterval.
type throttle struct {
	mu   sync.Mutex
	fn   func(float64)
	last time.Time
	pend float64
	has  bool
}

func newThrottle(fn func(float64)) *throttle { return &throttle{fn: fn} }

func (t *throttle) update(v float64) {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if now.Sub(t.last) < progressInterval {
		t.pend, t.has = v, true
		return
	}
	t.last, t.has = now, false
	t.fn(v)
}

func (t *throttle) flush() {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.has {
		t.has = false
		t.fn(t.pend)
	}
}
