// Package vmaf builds and runs ffmpeg libvmaf and xpsnr comparisons.
package vmaf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/ffmpeg"
	"github.com/five82/ab-av1/internal/ffprobe"
	"github.com/five82/ab-av1/internal/util"
)

const (
	model4K = "version=vmaf_4k_v0.6.1"

	// Distorted resolutions above this use the 4K model by default.
	model4KMinWidth  = 2560
	model4KMinHeight = 1440
)

// ScaleMode selects how streams are resized before comparison.
type ScaleMode int

const (
	// ScaleAuto upscales small inputs to the model's native resolution.
	ScaleAuto ScaleMode = iota
	ScaleNone
	// ScaleFixed forces Width x Height.
	ScaleFixed
)

// Scale is a parsed --vmaf-scale value.
type Scale struct {
	Mode   ScaleMode
	Width  int
	Height int
}

// ParseScale accepts "auto", "none" or "WxH", where one side may be -1.
func ParseScale(s string) (Scale, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "auto":
		return Scale{Mode: ScaleAuto}, nil
	case "none":
		return Scale{Mode: ScaleNone}, nil
	}
	ws, hs, ok := strings.Cut(s, "x")
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if !ok || errW != nil || errH != nil || w == 0 || h == 0 || w < -1 || h < -1 || (w == -1 && h == -1) {
		return Scale{}, errors.NewPreconditionError(
			fmt.Sprintf("invalid vmaf scale %q, expected auto, none or WxH", s), nil)
	}
	return Scale{Mode: ScaleFixed, Width: w, Height: h}, nil
}

func (s Scale) String() string {
	switch s.Mode {
	case ScaleNone:
		return "none"
	case ScaleFixed:
		return fmt.Sprintf("%dx%d", s.Width, s.Height)
	default:
		return "auto"
	}
}

// Args returns the libvmaf options: user args plus n_threads and, for
// large distorted inputs without an explicit model, the 4K model.
func Args(user []string, distorted *ffprobe.Resolution) []string {
	args := append([]string(nil), user...)
	if !hasKey(args, "n_threads") {
		args = append(args, fmt.Sprintf("n_threads=%d", max(util.AvailableParallelism(), 1)))
	}
	if !hasKey(args, "model") && distorted != nil && is4K(*distorted) {
		args = append(args, "model="+model4K)
	}
	return args
}

func hasKey(args []string, key string) bool {
	for _, a := range args {
		k, _, _ := strings.Cut(a, "=")
		if strings.TrimSpace(k) == key {
			return true
		}
	}
	return false
}

func is4K(r ffprobe.Resolution) bool {
	return r.Width > model4KMinWidth && r.Height > model4KMinHeight
}

// uses4KModel reports whether the resolved args select a 4K model.
func uses4KModel(args []string) bool {
	for _, a := range args {
		if k, v, _ := strings.Cut(a, "="); strings.TrimSpace(k) == "model" && strings.Contains(v, "4k") {
			return true
		}
	}
	return false
}

// ScaleFilter returns the scale filter for a stream of resolution res, or
// "" when none applies.
func ScaleFilter(scale Scale, res *ffprobe.Resolution, model4K bool) string {
	switch scale.Mode {
	case ScaleNone:
		return ""
	case ScaleFixed:
		return fmt.Sprintf("scale=%d:%d:flags=bicubic", scale.Width, scale.Height)
	}
	if res == nil {
		return ""
	}

	w, h := int64(res.Width), int64(res.Height)
	var tw, th int64
	switch {
	case !model4K && w < 1728 && h < 972:
		tw, th = 1920, 1080
	case model4K && w < 3456 && h < 1944:
		tw, th = 3840, 2160
	default:
		return ""
	}

	// Fix the side that reaches the target first so neither exceeds it.
	if h*tw > w*th {
		return fmt.Sprintf("scale=-1:%d:flags=bicubic", th)
	}
	return fmt.Sprintf("scale=%d:-1:flags=bicubic", tw)
}

// Metric is the comparison filter.
type Metric int

const (
	MetricVMAF Metric = iota
	MetricXPSNR
)

func (m Metric) String() string {
	if m == MetricXPSNR {
		return "xpsnr"
	}
	return "vmaf"
}

// Options configure a comparison.
type Options struct {
	Metric Metric
	// Args are extra libvmaf options such as "model=version=vmaf_v0.6.1neg".
	Args  []string
	Scale Scale
	// PixelFormat is applied to both streams before comparison.
	PixelFormat ffmpeg.PixelFormat
	// ReferenceVFilter is applied to the reference so it matches the
	// encoder's filtered output.
	ReferenceVFilter string
}

// Fingerprint is a stable description of everything that affects a score.
func (o Options) Fingerprint() string {
	parts := []string{o.Metric.String(), o.PixelFormat.String(), o.Scale.String(), o.ReferenceVFilter}
	if o.Metric == MetricVMAF {
		parts = append(parts, o.Args...)
	}
	return strings.Join(parts, "\x00")
}

// Lavfi builds the filter_complex graph comparing input 0 (distorted)
// against input 1 (reference).
func (o Options) Lavfi(distorted *ffprobe.Resolution) string {
	var final, scale string
	if o.Metric == MetricXPSNR {
		final = "xpsnr=eof_action=endall"
		scale = ScaleFilter(o.Scale, distorted, false)
	} else {
		args := Args(o.Args, distorted)
		final = "libvmaf=shortest=true:ts_sync_mode=nearest:" + strings.Join(args, ":")
		scale = ScaleFilter(o.Scale, distorted, uses4KModel(args))
	}

	dis := ffmpeg.NewVideoFilterChain().
		AddFormat(o.PixelFormat).
		AddFilter(scale).
		AddFilter("setpts=PTS-STARTPTS").
		Build()
	ref := ffmpeg.NewVideoFilterChain().
		AddFilter(o.ReferenceVFilter).
		AddFormat(o.PixelFormat).
		AddFilter(scale).
		AddFilter("setpts=PTS-STARTPTS").
		Build()

	return fmt.Sprintf("[0:v]%s[dis];[1:v]%s[ref];[dis][ref]%s", dis, ref, final)
}
