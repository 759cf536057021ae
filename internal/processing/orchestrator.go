// Package processing runs the ab-av1 operations on top of the sample
// pipeline and search engine, reporting through a reporter.Reporter.
package processing

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/five82/ab-av1/internal/cache"
	"github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/ffmpeg"
	"github.com/five82/ab-av1/internal/ffprobe"
	"github.com/five82/ab-av1/internal/logging"
	"github.com/five82/ab-av1/internal/process"
	"github.com/five82/ab-av1/internal/reporter"
	"github.com/five82/ab-av1/internal/sample"
	"github.com/five82/ab-av1/internal/temporary"
	"github.com/five82/ab-av1/internal/tq"
	"github.com/five82/ab-av1/internal/util"
	"github.com/five82/ab-av1/internal/vmaf"
)

// Request holds the settings shared by sample-encode, crf-search and
// auto-encode.
type Request struct {
	Input   string
	Encoder ffmpeg.Options

	Metric    vmaf.Metric
	VMAFArgs  []string
	VMAFScale string

	Samples        int
	SampleDuration time.Duration
	Keep           bool
	Cache          bool
	// TempDir is the parent of the run directory; defaults to the input's
	// directory.
	TempDir string
}

// EncodeRequest describes the output of a full encode.
type EncodeRequest struct {
	// Output defaults to "<stem>.<codec>.<ext>" next to the input.
	Output          string
	AudioCodec      string
	DownmixToStereo bool
}

// ScoreRequest describes a standalone vmaf or xpsnr comparison.
type ScoreRequest struct {
	Reference        string
	Distorted        string
	Metric           vmaf.Metric
	Args             []string
	Scale            string
	PixelFormat      string
	ReferenceVFilter string
}

// SearchResult is the chosen CRF with its sample-encode result.
type SearchResult struct {
	CRF    int
	Args   *ffmpeg.EncoderArgs
	Metric vmaf.Metric
	Result *sample.Result
	// Attempts lists every CRF tried, in order.
	Attempts []tq.Attempt
}

// EncodeResult contains the result of a full encode.
type EncodeResult struct {
	Output     string
	CRF        string
	InputSize  uint64
	OutputSize uint64
	Elapsed    time.Duration
}

// Session holds the tools and sinks shared by the operations of one run.
type Session struct {
	Tools    ffmpeg.Tools
	FFprobe  string
	Reporter reporter.Reporter
	// Temp defaults to the process-wide registry.
	Temp *temporary.Registry
	Log  *logging.Logger
}

func (s *Session) rep() reporter.Reporter {
	if s.Reporter == nil {
		return reporter.NullReporter{}
	}
	return s.Reporter
}

func (s *Session) temp() *temporary.Registry {
	if s.Temp == nil {
		return temporary.Global()
	}
	return s.Temp
}

func (s *Session) logger() *logging.Logger {
	if s.Log == nil {
		return logging.Component("processing")
	}
	return s.Log
}

func (s *Session) probe(ctx context.Context, path string) (*ffprobe.Probe, error) {
	if !util.FileExists(path) {
		return nil, errors.NewPreconditionError("input file not found: "+path, nil)
	}
	return (&ffprobe.Prober{Binary: s.FFprobe}).Probe(ctx, path), nil
}

func (s *Session) executor() *ffmpeg.Executor {
	e := ffmpeg.NewExecutor(s.Tools)
	e.Temp = s.temp()
	return e
}

// MetricName is the display name of a metric.
func MetricName(m vmaf.Metric) string {
	return strings.ToUpper(m.String())
}

// DistortedResolution is the resolution of the encoded output, or nil when
// a scale filter makes it unknown.
func DistortedResolution(probe *ffprobe.Probe, vfilter string) *ffprobe.Resolution {
	if strings.Contains(vfilter, "scale") {
		return nil
	}
	r, err := probe.Resolution.Get()
	if err != nil {
		return nil
	}
	return &r
}

// ComparisonPixelFormat is the higher fidelity of the encoder output and
// the input, so neither stream loses precision before comparison.
func ComparisonPixelFormat(probe *ffprobe.Probe, output ffmpeg.PixelFormat) ffmpeg.PixelFormat {
	name, err := probe.PixelFormat.Get()
	if err != nil {
		return output
	}
	input, err := ffmpeg.ParsePixelFormat(name)
	if err != nil {
		return output
	}
	return ffmpeg.MaxPixelFormat(output, input)
}

// DefaultOutput returns the default full-encode output path for input.
func DefaultOutput(input string, enc ffmpeg.Encoder) string {
	ext := "mkv"
	if e := util.GetExtension(input); e == "mp4" || e == "webm" {
		ext = e
	}
	return util.DefaultOutputPath(input, enc.Tag(), ext)
}

// prepared is the per-run state of the sample-based operations.
type prepared struct {
	probe    *ffprobe.Probe
	input    sample.Input
	args     *ffmpeg.EncoderArgs
	metric   vmaf.Metric
	pipeline *sample.Pipeline
}

func (s *Session) prepare(ctx context.Context, req Request) (*prepared, error) {
	probe, err := s.probe(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	in, err := sample.NewInput(probe)
	if err != nil {
		return nil, err
	}
	args, err := req.Encoder.Resolve(probe)
	if err != nil {
		return nil, err
	}
	scale, err := vmaf.ParseScale(req.VMAFScale)
	if err != nil {
		return nil, err
	}
	opts := vmaf.Options{
		Metric:           req.Metric,
		Args:             req.VMAFArgs,
		Scale:            scale,
		PixelFormat:      ComparisonPixelFormat(probe, args.PixelFormat),
		ReferenceVFilter: args.VFilter,
	}

	base := req.TempDir
	if base == "" {
		base = filepath.Dir(req.Input)
	}
	dir, err := s.temp().ProcessDir(base)
	if err != nil {
		return nil, errors.NewIOError("failed to create temp dir", err)
	}

	exec := s.executor()
	pipeline := &sample.Pipeline{
		Cutter:  exec,
		Encoder: exec,
		Scorer: &vmaf.Scorer{
			Analyzer:   vmaf.NewAnalyzer(s.Tools.FFmpeg),
			Options:    opts,
			Resolution: DistortedResolution(probe, args.VFilter),
		},
		Temp:             s.temp(),
		Samples:          req.Samples,
		SampleDuration:   req.SampleDuration,
		TempDir:          dir,
		Keep:             req.Keep,
		ScoreFingerprint: opts.Fingerprint(),
		Log:              s.logger().WithPrefix("sample"),
	}
	if req.Cache {
		if store := cache.Shared(ctx); store != nil {
			pipeline.Cache = store
		}
	}

	s.reportInput(probe, in.Size)
	s.reportEncoder(args, req.Metric)
	return &prepared{probe: probe, input: in, args: args, metric: req.Metric, pipeline: pipeline}, nil
}

func (s *Session) reportInput(probe *ffprobe.Probe, size uint64) {
	summary := reporter.InputSummary{InputFile: probe.Path, Size: size}
	if d, err := probe.Duration.Get(); err == nil {
		summary.Duration = util.FormatDuration(d.Seconds())
	}
	if r, err := probe.Resolution.Get(); err == nil {
		summary.Resolution = r.String()
	}
	if f, err := probe.FPS.Get(); err == nil {
		summary.FrameRate = fmt.Sprintf("%.3f", f)
	}
	s.rep().Input(summary)
}

func (s *Session) reportEncoder(args *ffmpeg.EncoderArgs, metric vmaf.Metric) {
	summary := reporter.EncoderSummary{
		Encoder:     args.Encoder.String(),
		Preset:      args.Preset.String(),
		PixelFormat: args.PixelFormat.String(),
		SCD:         args.SCD,
		VFilter:     args.VFilter,
		Metric:      MetricName(metric),
	}
	if args.Keyint != nil {
		summary.Keyint = fmt.Sprint(*args.Keyint)
	}
	s.rep().EncoderConfig(summary)
}

// SampleSummary converts a sample-encode result for reporting.
func SampleSummary(round int, crf string, metric vmaf.Metric, res *sample.Result) reporter.SampleEncodeSummary {
	return reporter.SampleEncodeSummary{
		Round:          round,
		CRF:            crf,
		Metric:         MetricName(metric),
		Score:          res.Score,
		EncodedPercent: res.EncodedPercent,
		PredictedSize:  res.PredictedEncodeSize,
		PredictedTime:  res.PredictedEncodeTime,
		FromCache:      res.FromCache,
		FullPass:       res.FullPass,
	}
}

// SampleEncode runs one sample-encode at crf.
func (s *Session) SampleEncode(ctx context.Context, req Request, crf float32) (*sample.Result, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	args := p.args.WithCRF(crf)
	rep := s.rep()

	rep.ProgressStarted("Sample encode")
	res, err := p.pipeline.Run(ctx, p.input, args, func(f float64) {
		rep.Progress(reporter.ProgressSnapshot{Fraction: f, Message: "crf " + args.CRFString()})
	})
	if err != nil {
		return nil, err
	}
	rep.SampleEncodeComplete(SampleSummary(0, args.CRFString(), p.metric, res))
	return res, nil
}

// SampleRunner sample-encodes with fully resolved arguments.
type SampleRunner func(ctx context.Context, args *ffmpeg.EncoderArgs, onProgress func(float64)) (*sample.Result, error)

// CRFSearch searches for the highest CRF meeting cfg.
func (s *Session) CRFSearch(ctx context.Context, req Request, cfg tq.Config) (*SearchResult, error) {
	res, _, err := s.crfSearch(ctx, req, cfg)
	return res, err
}

func (s *Session) crfSearch(ctx context.Context, req Request, cfg tq.Config) (*SearchResult, *prepared, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	run := func(ctx context.Context, args *ffmpeg.EncoderArgs, onProgress func(float64)) (*sample.Result, error) {
		return p.pipeline.Run(ctx, p.input, args, onProgress)
	}
	res, err := Search(ctx, cfg, p.args, p.metric, p.pipeline.Samples, run, s.rep(), s.logger().WithPrefix("tq"))
	if err != nil {
		return nil, nil, err
	}
	return res, p, nil
}

// Search drives the search engine over run and reports each attempt.
func Search(ctx context.Context, cfg tq.Config, args *ffmpeg.EncoderArgs, metric vmaf.Metric, samples int, run SampleRunner, rep reporter.Reporter, log *logging.Logger) (*SearchResult, error) {
	if samples == 0 {
		samples = sample.DefaultCount
	}
	rep.SearchStarted(reporter.SearchSummary{
		Metric:            MetricName(metric),
		MinScore:          cfg.MinScore,
		MaxEncodedPercent: cfg.MaxEncodedPercent,
		MinCRF:            cfg.MinCRF,
		MaxCRF:            cfg.MaxCRF,
		Samples:           samples,
	})
	rep.ProgressStarted("Searching")

	round := 0
	var current *ffmpeg.EncoderArgs
	search := &tq.Search{
		Config: cfg,
		Encode: func(ctx context.Context, crf int, onProgress func(float64)) (*sample.Result, error) {
			round++
			current = args.WithCRF(float32(crf))
			return run(ctx, current, onProgress)
		},
		OnAttempt: func(a tq.Attempt) {
			rep.CRFAttempt(SampleSummary(round, current.CRFString(), metric, a.Result))
		},
		OnProgress: func(f float64) {
			msg := ""
			if current != nil {
				msg = "crf " + current.CRFString()
			}
			rep.Progress(reporter.ProgressSnapshot{Fraction: f, Message: msg})
		},
		Log: log,
	}

	best, err := search.Run(ctx)
	if err != nil {
		return nil, err
	}
	res := &SearchResult{
		CRF:      best.CRF,
		Args:     args.WithCRF(float32(best.CRF)),
		Metric:   metric,
		Result:   best.Result,
		Attempts: search.Attempts(),
	}
	rep.SearchComplete(SampleSummary(0, res.Args.CRFString(), metric, best.Result))
	return res, nil
}

// Encode runs a full encode at crf.
func (s *Session) Encode(ctx context.Context, req Request, crf float32, out EncodeRequest) (*EncodeResult, error) {
	probe, err := s.probe(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	args, err := req.Encoder.Resolve(probe)
	if err != nil {
		return nil, err
	}
	s.reportEncoder(args, req.Metric)
	return s.encode(ctx, probe, args.WithCRF(crf), out)
}

// AutoEncode searches for the best CRF and then encodes the whole input
// with it.
func (s *Session) AutoEncode(ctx context.Context, req Request, cfg tq.Config, out EncodeRequest) (*SearchResult, *EncodeResult, error) {
	best, p, err := s.crfSearch(ctx, req, cfg)
	if err != nil {
		return nil, nil, err
	}
	enc, err := s.encode(ctx, p.probe, best.Args, out)
	if err != nil {
		return best, nil, err
	}
	return best, enc, nil
}

func (s *Session) encode(ctx context.Context, probe *ffprobe.Probe, args *ffmpeg.EncoderArgs, out EncodeRequest) (*EncodeResult, error) {
	output := out.Output
	if output == "" {
		output = DefaultOutput(probe.Path, args.Encoder)
	}
	audio := AudioFor(probe, out.AudioCodec, out.DownmixToStereo)
	s.logger().Info("encoding", "input", probe.Path, "output", output, "crf", args.CRFString(),
		"audio", FormatAudioDescription(audio))

	rep := s.rep()
	duration, durErr := probe.Duration.Get()
	rep.ProgressStarted("Encoding")
	start := time.Now()
	err := s.executor().Encode(ctx, args, probe.Path, output, audio, func(p process.Progress) {
		if durErr != nil || duration <= 0 {
			return
		}
		rep.Progress(reporter.ProgressSnapshot{
			Fraction: float64(p.Time) / float64(duration),
			Message:  fmt.Sprintf("%.1f fps", p.FPS),
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError()
		}
		return nil, err
	}

	res := &EncodeResult{Output: output, CRF: args.CRFString(), Elapsed: time.Since(start)}
	res.InputSize, _ = util.GetFileSize(probe.Path)
	if res.OutputSize, err = util.GetFileSize(output); err != nil {
		return nil, errors.NewIOError("failed to stat output "+output, err)
	}
	rep.EncodeComplete(reporter.EncodeOutcome{
		InputFile:    probe.Path,
		OutputFile:   output,
		CRF:          res.CRF,
		OriginalSize: res.InputSize,
		EncodedSize:  res.OutputSize,
		TotalTime:    res.Elapsed,
	})
	return res, nil
}

// Score compares distorted against reference with the requested metric.
func (s *Session) Score(ctx context.Context, req ScoreRequest) (float64, error) {
	scale, err := vmaf.ParseScale(req.Scale)
	if err != nil {
		return 0, err
	}
	if _, err := s.probe(ctx, req.Reference); err != nil {
		return 0, err
	}
	probe, err := s.probe(ctx, req.Distorted)
	if err != nil {
		return 0, err
	}

	pf := ComparisonPixelFormat(probe, ffmpeg.Yuv420p10le)
	if req.PixelFormat != "" {
		if pf, err = ffmpeg.ParsePixelFormat(req.PixelFormat); err != nil {
			return 0, err
		}
	}
	opts := vmaf.Options{
		Metric:           req.Metric,
		Args:             req.Args,
		Scale:            scale,
		PixelFormat:      pf,
		ReferenceVFilter: req.ReferenceVFilter,
	}

	rep := s.rep()
	duration, durErr := probe.Duration.Get()
	rep.ProgressStarted(MetricName(req.Metric))
	score, err := vmaf.NewAnalyzer(s.Tools.FFmpeg).Run(ctx, req.Reference, req.Distorted,
		DistortedResolution(probe, ""), opts, func(p process.Progress) {
			if durErr == nil && duration > 0 {
				rep.Progress(reporter.ProgressSnapshot{Fraction: float64(p.Time) / float64(duration)})
			}
		})
	if err != nil {
		if ctx.Err() != nil {
			return 0, errors.NewCancelledError()
		}
		return 0, err
	}
	rep.ScoreComplete(reporter.ScoreSummary{
		Metric:    MetricName(req.Metric),
		Reference: req.Reference,
		Distorted: req.Distorted,
		Score:     score,
	})
	return score, nil
}
