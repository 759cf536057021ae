package vmaf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/ffmpeg"
	"github.com/five82/ab-av1/internal/ffprobe"
	"github.com/five82/ab-av1/internal/logging"
	"github.com/five82/ab-av1/internal/process"
)

// ErrNoScore is wrapped when ffmpeg exits without printing a score.
var ErrNoScore = errors.New("no score in ffmpeg output")

var (
	vmafScoreRegex  = regexp.MustCompile(`VMAF score[:=]\s*(-?\d+(?:\.\d+)?)`)
	xpsnrMinRegex   = regexp.MustCompile(`XPSNR.*\(minimum:\s*(-?\d+(?:\.\d+)?|inf)\)`)
	xpsnrPlaneRegex = regexp.MustCompile(`\b([yuv]):\s*(-?\d+(?:\.\d+)?|inf)`)
)

// ParseVMAFScore extracts the pooled score from a libvmaf summary line.
func ParseVMAFScore(line string) (float64, bool) {
	m := vmafScoreRegex.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(m[1], 64)
	return score, err == nil
}

// ParseXPSNRScore extracts the minimum plane score from an xpsnr summary
// line. Without a "minimum:" field the lowest y/u/v value is used.
func ParseXPSNRScore(line string) (float64, bool) {
	if m := xpsnrMinRegex.FindStringSubmatch(line); m != nil {
		return parseDB(m[1])
	}
	if !strings.Contains(line, "XPSNR") {
		return 0, false
	}
	planes := xpsnrPlaneRegex.FindAllStringSubmatch(line, -1)
	if len(planes) == 0 {
		return 0, false
	}
	lowest := math.Inf(1)
	for _, p := range planes {
		v, ok := parseDB(p[2])
		if !ok {
			return 0, false
		}
		lowest = math.Min(lowest, v)
	}
	return lowest, true
}

func parseDB(s string) (float64, bool) {
	if s == "inf" {
		return math.Inf(1), true
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// Analyzer runs comparisons through ffmpeg.
type Analyzer struct {
	FFmpeg string
	Runner *process.Runner
}

// NewAnalyzer creates an analyzer using the given ffmpeg binary.
func NewAnalyzer(ffmpegBin string) *Analyzer {
	return &Analyzer{
		FFmpeg: ffmpegBin,
		Runner: &process.Runner{Logger: logging.Component("vmaf")},
	}
}

// Command builds the comparison invocation.
func (a *Analyzer) Command(reference, distorted string, distortedRes *ffprobe.Resolution, opts Options) *process.Command {
	bin := a.FFmpeg
	if bin == "" {
		bin = ffmpeg.DefaultFFmpegBinary
	}
	return &process.Command{
		Name:    "ffmpeg " + opts.Metric.String(),
		Program: bin,
		Args: []string{
			"-hide_banner",
			"-i", distorted,
			"-i", reference,
			"-filter_complex", opts.Lavfi(distortedRes),
			"-f", "null", "-",
		},
	}
}

// Run scores distorted against reference. Progress records are forwarded
// until the score line appears.
func (a *Analyzer) Run(ctx context.Context, reference, distorted string, distortedRes *ffprobe.Resolution, opts Options, onProgress func(process.Progress)) (float64, error) {
	parse := ParseVMAFScore
	if opts.Metric == MetricXPSNR {
		parse = ParseXPSNRScore
	}

	var score float64
	found := false
	handler := func(ev process.Event) {
		if found {
			return
		}
		if ev.Progress != nil {
			if onProgress != nil {
				onProgress(*ev.Progress)
			}
			return
		}
		if s, ok := parse(ev.Line); ok {
			score, found = s, true
		}
	}

	runner := a.Runner
	if runner == nil {
		runner = &process.Runner{}
	}
	if err := runner.Run(ctx, handler, a.Command(reference, distorted, distortedRes, opts)); err != nil {
		return 0, err
	}
	if !found {
		return 0, apperrors.NewParseError(fmt.Sprintf("%s of %s", opts.Metric, distorted), ErrNoScore)
	}
	return score, nil
}

// Scorer binds an analyzer to fixed options for repeated scoring.
type Scorer struct {
	Analyzer *Analyzer
	Options  Options
	// Resolution of the distorted stream, used for model and scale
	// selection.
	Resolution *ffprobe.Resolution
}

// Score runs the comparison.
func (s *Scorer) Score(ctx context.Context, reference, distorted string, onProgress func(process.Progress)) (float64, error) {
	return s.Analyzer.Run(ctx, reference, distorted, s.Resolution, s.Options, onProgress)
}
