// Package abav1 provides a Go library for finding the best encoder CRF for
// a quality target and encoding with it.
//
// Basic usage:
//
//	searcher, err := abav1.New(
//	    abav1.WithMinVMAF(95),
//	    abav1.WithPreset("6"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	best, err := searcher.CRFSearch(ctx, "input.mkv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("crf %s: VMAF %.2f, %.0f%% of the input size\n",
//	    best.CRF, best.Score, best.EncodedPercent)
package abav1

import (
	"context"
	"time"

	"github.com/five82/ab-av1/internal/cache"
	"github.com/five82/ab-av1/internal/config"
	"github.com/five82/ab-av1/internal/ffmpeg"
	"github.com/five82/ab-av1/internal/processing"
	"github.com/five82/ab-av1/internal/reporter"
	"github.com/five82/ab-av1/internal/sample"
	"github.com/five82/ab-av1/internal/temporary"
	"github.com/five82/ab-av1/internal/tq"
	"github.com/five82/ab-av1/internal/vmaf"
)

// Reporter receives progress and result events.
type Reporter = reporter.Reporter

// NullReporter discards all events.
type NullReporter = reporter.NullReporter

// Searcher runs sample-encodes, searches and encodes with fixed settings.
type Searcher struct {
	config   *config.Config
	xpsnr    bool
	svt      []string
	vfilter  string
	reporter Reporter
}

// Result describes a sample-encode, or the chosen one of a search.
type Result struct {
	CRF                 string
	Score               float64
	EncodedPercent      float64
	PredictedEncodeSize uint64
	PredictedEncodeTime time.Duration
	FromCache           bool
}

// EncodeResult describes a finished full encode.
type EncodeResult struct {
	OutputFile   string
	CRF          string
	OriginalSize uint64
	EncodedSize  uint64
	Elapsed      time.Duration
}

// Option configures the searcher.
type Option func(*Searcher)

// New creates a Searcher with the given options applied to the defaults.
func New(opts ...Option) (*Searcher, error) {
	s := &Searcher{config: config.Default(), reporter: NullReporter{}}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// WithEncoder selects the encoder, e.g. "libsvtav1" or "libx265".
func WithEncoder(name string) Option {
	return func(s *Searcher) { s.config.Encoder = name }
}

// WithPreset sets the encoder preset.
func WithPreset(preset string) Option {
	return func(s *Searcher) { s.config.Preset = preset }
}

// WithMinVMAF sets the VMAF target.
func WithMinVMAF(score float64) Option {
	return func(s *Searcher) {
		s.config.Search.MinVMAF = score
		s.xpsnr = false
	}
}

// WithMinXPSNR scores with XPSNR and sets its target.
func WithMinXPSNR(score float64) Option {
	return func(s *Searcher) {
		s.config.Search.MinXPSNR = score
		s.xpsnr = true
	}
}

// WithMaxEncodedPercent limits the predicted size relative to the input.
func WithMaxEncodedPercent(percent float64) Option {
	return func(s *Searcher) { s.config.Search.MaxEncodedPercent = percent }
}

// WithCRFRange bounds the search, inclusive.
func WithCRFRange(minCRF, maxCRF int) Option {
	return func(s *Searcher) {
		s.config.Search.MinCRF = minCRF
		s.config.Search.MaxCRF = maxCRF
	}
}

// WithSamples sets the number and length of samples.
func WithSamples(n int, length time.Duration) Option {
	return func(s *Searcher) {
		s.config.Samples = n
		s.config.SampleDuration = length
	}
}

// WithSvtParams adds svt-av1 KEY=VALUE parameters.
func WithSvtParams(params ...string) Option {
	return func(s *Searcher) { s.svt = append(s.svt, params...) }
}

// WithVFilter applies an ffmpeg video filter before encoding.
func WithVFilter(filter string) Option {
	return func(s *Searcher) { s.vfilter = filter }
}

// WithCache enables or disables the sample-encode cache.
func WithCache(enabled bool) Option {
	return func(s *Searcher) { s.config.Cache = enabled }
}

// WithTempDir sets the parent directory of temporary files.
func WithTempDir(dir string) Option {
	return func(s *Searcher) { s.config.TempDir = dir }
}

// WithReporter receives progress and result events.
func WithReporter(rep Reporter) Option {
	return func(s *Searcher) {
		if rep != nil {
			s.reporter = rep
		}
	}
}

func (s *Searcher) session(temp *temporary.Registry) *processing.Session {
	return &processing.Session{
		Tools: ffmpeg.Tools{
			FFmpeg: s.config.Binaries.FFmpeg,
			SvtAv1: s.config.Binaries.SvtAv1,
		},
		FFprobe:  s.config.Binaries.FFprobe,
		Reporter: s.reporter,
		Temp:     temp,
	}
}

func (s *Searcher) request(input string) processing.Request {
	metric := vmaf.MetricVMAF
	if s.xpsnr {
		metric = vmaf.MetricXPSNR
	}
	return processing.Request{
		Input: input,
		Encoder: ffmpeg.Options{
			Encoder:     s.config.Encoder,
			Preset:      s.config.Preset,
			PixelFormat: s.config.PixFormat,
			VFilter:     s.vfilter,
			Svt:         s.svt,
		},
		Metric:         metric,
		VMAFArgs:       s.config.VMAF.Args,
		VMAFScale:      s.config.VMAF.Scale,
		Samples:        s.config.Samples,
		SampleDuration: s.config.SampleDuration,
		Cache:          s.config.Cache,
		TempDir:        s.config.TempDir,
	}
}

// run gives each call its own temporary registry, cleaned on return.
func (s *Searcher) run(fn func(*processing.Session) error) error {
	temp := temporary.NewRegistry()
	defer temp.Clean(false)
	return fn(s.session(temp))
}

func newResult(crf string, r *sample.Result) *Result {
	return &Result{
		CRF:                 crf,
		Score:               r.Score,
		EncodedPercent:      r.EncodedPercent,
		PredictedEncodeSize: r.PredictedEncodeSize,
		PredictedEncodeTime: r.PredictedEncodeTime,
		FromCache:           r.FromCache,
	}
}

func (s *Searcher) tqConfig() tq.Config {
	return s.config.TQConfig(s.xpsnr)
}

// SampleEncode sample-encodes input at crf.
func (s *Searcher) SampleEncode(ctx context.Context, input string, crf float32) (*Result, error) {
	var res *Result
	err := s.run(func(sess *processing.Session) error {
		req := s.request(input)
		r, err := sess.SampleEncode(ctx, req, crf)
		if err != nil {
			return err
		}
		enc, err := ffmpeg.ParseEncoder(req.Encoder.Encoder)
		if err != nil {
			return err
		}
		res = newResult((&ffmpeg.EncoderArgs{Encoder: enc, CRF: crf}).CRFString(), r)
		return nil
	})
	return res, err
}

// CRFSearch finds the highest CRF meeting the target.
func (s *Searcher) CRFSearch(ctx context.Context, input string) (*Result, error) {
	var res *Result
	err := s.run(func(sess *processing.Session) error {
		best, err := sess.CRFSearch(ctx, s.request(input), s.tqConfig())
		if err != nil {
			return err
		}
		res = newResult(best.Args.CRFString(), best.Result)
		return nil
	})
	return res, err
}

// AutoEncode searches for the best CRF and encodes input to output with
// it. An empty output is placed next to the input.
func (s *Searcher) AutoEncode(ctx context.Context, input, output string) (*Result, *EncodeResult, error) {
	var (
		res *Result
		enc *EncodeResult
	)
	err := s.run(func(sess *processing.Session) error {
		best, e, err := sess.AutoEncode(ctx, s.request(input), s.tqConfig(), processing.EncodeRequest{Output: output})
		if best != nil {
			res = newResult(best.Args.CRFString(), best.Result)
		}
		if e != nil {
			enc = newEncodeResult(e)
		}
		return err
	})
	return res, enc, err
}

// Encode encodes input to output at crf.
func (s *Searcher) Encode(ctx context.Context, input, output string, crf float32) (*EncodeResult, error) {
	var enc *EncodeResult
	err := s.run(func(sess *processing.Session) error {
		e, err := sess.Encode(ctx, s.request(input), crf, processing.EncodeRequest{Output: output})
		if err != nil {
			return err
		}
		enc = newEncodeResult(e)
		return nil
	})
	return enc, err
}

func newEncodeResult(e *processing.EncodeResult) *EncodeResult {
	return &EncodeResult{
		OutputFile:   e.Output,
		CRF:          e.CRF,
		OriginalSize: e.InputSize,
		EncodedSize:  e.OutputSize,
		Elapsed:      e.Elapsed,
	}
}

// Close releases the sample-encode cache. The searcher must not be used
// afterwards.
func (s *Searcher) Close() {
	cache.CloseShared()
}

// VMAF scores distorted against reference.
func (s *Searcher) VMAF(ctx context.Context, reference, distorted string) (float64, error) {
	return s.score(ctx, vmaf.MetricVMAF, reference, distorted)
}

// XPSNR scores distorted against reference.
func (s *Searcher) XPSNR(ctx context.Context, reference, distorted string) (float64, error) {
	return s.score(ctx, vmaf.MetricXPSNR, reference, distorted)
}

func (s *Searcher) score(ctx context.Context, metric vmaf.Metric, reference, distorted string) (float64, error) {
	return s.session(nil).Score(ctx, processing.ScoreRequest{
		Reference: reference,
		Distorted: distorted,
		Metric:    metric,
		Args:      s.config.VMAF.Args,
		Scale:     s.config.VMAF.Scale,
	})
}
