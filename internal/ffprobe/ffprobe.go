// Package ffprobe inspects input media with ffprobe.
package ffprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/logging"
	"github.com/five82/ab-av1/internal/process"
)

// Field is a probe value that may have failed to resolve. A failure is kept
// until something reads the field.
type Field[T any] struct {
	value T
	err   error
}

// Known returns a resolved field.
func Known[T any](v T) Field[T] { return Field[T]{value: v} }

// Unknown returns a field that failed to resolve.
func Unknown[T any](err error) Field[T] { return Field[T]{err: err} }

// Get returns the value or the reason it is unavailable.
func (f Field[T]) Get() (T, error) { return f.value, f.err }

// OK reports whether the value is available.
func (f Field[T]) OK() bool { return f.err == nil }

// Resolution is a video frame size in pixels.
type Resolution struct {
	Width  uint32
	Height uint32
}

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// Probe describes an input file.
type Probe struct {
	Path             string
	Duration         Field[time.Duration]
	FPS              Field[float64]
	Resolution       Field[Resolution]
	PixelFormat      Field[string]
	HasAudio         Field[bool]
	MaxAudioChannels Field[uint32]
}

// ffprobeOutput represents the JSON output from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int64  `json:"width"`
	Height       int64  `json:"height"`
	Channels     int    `json:"channels"`
	PixFmt       string `json:"pix_fmt"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	Duration     string `json:"duration"`
}

// Prober runs ffprobe.
type Prober struct {
	// Binary defaults to "ffprobe".
	Binary string
}

// Probe inspects path. It never fails outright: when ffprobe itself fails
// every field carries that error.
func (p *Prober) Probe(ctx context.Context, path string) *Probe {
	out, err := p.run(ctx, path)
	if err != nil {
		logging.Component("ffprobe").Warn("probe failed", "input", path, "error", err)
		return failedProbe(path, err)
	}
	parsed, err := parseFFprobeOutput(out)
	if err != nil {
		return failedProbe(path, err)
	}
	return buildProbe(path, parsed)
}

func (p *Prober) run(ctx context.Context, path string) ([]byte, error) {
	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}
	return (&process.Runner{}).Output(ctx, &process.Command{
		Name:    "ffprobe",
		Program: bin,
		Args: []string{
			"-v", "error",
			"-print_format", "json",
			"-show_format",
			"-show_streams",
			path,
		},
	})
}

// parseFFprobeOutput decodes ffprobe's JSON.
func parseFFprobeOutput(data []byte) (*ffprobeOutput, error) {
	var result ffprobeOutput
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.NewParseError("failed to parse ffprobe output", err)
	}
	return &result, nil
}

func failedProbe(path string, err error) *Probe {
	return &Probe{
		Path:             path,
		Duration:         Unknown[time.Duration](err),
		FPS:              Unknown[float64](err),
		Resolution:       Unknown[Resolution](err),
		PixelFormat:      Unknown[string](err),
		HasAudio:         Unknown[bool](err),
		MaxAudioChannels: Unknown[uint32](err),
	}
}

// buildProbe resolves each field independently.
func buildProbe(path string, out *ffprobeOutput) *Probe {
	p := &Probe{Path: path}

	var video *ffprobeStream
	var audioChannels []int
	for i := range out.Streams {
		s := &out.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			audioChannels = append(audioChannels, s.Channels)
		}
	}

	p.Duration = resolveDuration(out.Format.Duration, video)

	if video == nil {
		noVideo := fmt.Errorf("no video stream found in %s", path)
		p.FPS = Unknown[float64](noVideo)
		p.Resolution = Unknown[Resolution](noVideo)
		p.PixelFormat = Unknown[string](noVideo)
	} else {
		p.FPS = resolveFPS(video)
		if video.Width > 0 && video.Height > 0 {
			p.Resolution = Known(Resolution{Width: uint32(video.Width), Height: uint32(video.Height)})
		} else {
			p.Resolution = Unknown[Resolution](fmt.Errorf("invalid dimensions %dx%d", video.Width, video.Height))
		}
		if video.PixFmt != "" {
			p.PixelFormat = Known(video.PixFmt)
		} else {
			p.PixelFormat = Unknown[string](fmt.Errorf("pixel format not reported"))
		}
	}

	p.HasAudio = Known(len(audioChannels) > 0)
	if len(audioChannels) == 0 {
		p.MaxAudioChannels = Unknown[uint32](fmt.Errorf("no audio streams"))
	} else {
		maxCh := 0
		for _, ch := range audioChannels {
			maxCh = max(maxCh, ch)
		}
		p.MaxAudioChannels = Known(uint32(maxCh))
	}

	return p
}

func resolveDuration(format string, video *ffprobeStream) Field[time.Duration] {
	candidates := []string{format}
	if video != nil {
		candidates = append(candidates, video.Duration)
	}
	var lastErr error = fmt.Errorf("duration not reported")
	for _, c := range candidates {
		if c == "" || c == "N/A" {
			continue
		}
		secs, err := strconv.ParseFloat(c, 64)
		if err != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			lastErr = fmt.Errorf("invalid duration %q", c)
			continue
		}
		return Known(time.Duration(secs * float64(time.Second)))
	}
	return Unknown[time.Duration](lastErr)
}

func resolveFPS(video *ffprobeStream) Field[float64] {
	fps, err := ParseFrameRate(video.AvgFrameRate)
	if err == nil {
		return Known(fps)
	}
	if fps, rerr := ParseFrameRate(video.RFrameRate); rerr == nil {
		return Known(fps)
	}
	return Unknown[float64](err)
}

// ParseFrameRate parses "x/y" with positive finite parts, or a plain positive
// finite decimal.
func ParseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		x, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frame rate %q", s)
		}
		y, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frame rate %q", s)
		}
		if !positiveFinite(x) || !positiveFinite(y) {
			return 0, fmt.Errorf("invalid frame rate %q", s)
		}
		return x / y, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !positiveFinite(f) {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	return f, nil
}

func positiveFinite(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
