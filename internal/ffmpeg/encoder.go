// Package ffmpeg builds and runs encoder, sample-cut and remux invocations.
package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/five82/ab-av1/internal/errors"
)

// Encoder is an ffmpeg video encoder name such as "libsvtav1", or
// "svt-av1" for the standalone SvtAv1EncApp fed through a pipe. Unknown
// names are passed to ffmpeg unchanged.
type Encoder string

const (
	EncoderSvtAv1    Encoder = "libsvtav1"
	EncoderSvtAv1App Encoder = "svt-av1"
	EncoderAom       Encoder = "libaom-av1"
	EncoderRav1e     Encoder = "librav1e"
	EncoderX264      Encoder = "libx264"
	EncoderX265      Encoder = "libx265"
	EncoderVP9       Encoder = "libvpx-vp9"
)

// DefaultEncoder is used when no encoder is given.
const DefaultEncoder = EncoderSvtAv1

// ParseEncoder validates an encoder token.
func ParseEncoder(s string) (Encoder, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return DefaultEncoder, nil
	case strings.HasPrefix(s, "-"), strings.ContainsAny(s, " \t=:,"):
		return "", errors.NewPreconditionError(fmt.Sprintf("unknown encoder %q", s), nil)
	case s == "svtav1" || s == "SvtAv1EncApp":
		return EncoderSvtAv1App, nil
	}
	return Encoder(s), nil
}

func (e Encoder) String() string { return string(e) }

// IsAV1 reports whether the encoder produces AV1.
func (e Encoder) IsAV1() bool {
	return e == EncoderSvtAv1App || strings.Contains(string(e), "av1")
}

// IsNative reports whether the encoder runs as SvtAv1EncApp rather than
// inside ffmpeg.
func (e Encoder) IsNative() bool { return e == EncoderSvtAv1App }

func (e Encoder) isX26x() bool { return e == EncoderX264 || e == EncoderX265 }

// DefaultPixelFormat is 10-bit 4:2:0 for AV1 and 8-bit 4:2:0 otherwise.
func (e Encoder) DefaultPixelFormat() PixelFormat {
	if e.IsAV1() {
		return Yuv420p10le
	}
	return Yuv420p
}

// DefaultPreset returns the preset used when none is given, if any.
func (e Encoder) DefaultPreset() (Preset, bool) {
	if e == EncoderSvtAv1 || e == EncoderSvtAv1App {
		return NumericPreset(8), true
	}
	return Preset{}, false
}

// SupportsDecimalCRF reports whether fractional CRF values are accepted.
func (e Encoder) SupportsDecimalCRF() bool { return e.isX26x() || e.IsNative() }

// crfFlag is the ffmpeg option carrying the quality factor.
func (e Encoder) crfFlag() string {
	s := string(e)
	switch {
	case e == EncoderRav1e, strings.HasSuffix(s, "_vaapi"):
		return "-qp"
	case strings.HasSuffix(s, "_qsv"):
		return "-global_quality"
	case strings.HasSuffix(s, "_nvenc"):
		return "-cq"
	default:
		return "-crf"
	}
}

// presetFlag is the ffmpeg option carrying the speed preset.
func (e Encoder) presetFlag() string {
	switch e {
	case EncoderAom, EncoderVP9:
		return "-cpu-used"
	case EncoderRav1e:
		return "-speed"
	default:
		return "-preset"
	}
}

// Tag is a short codec label used in default output names.
func (e Encoder) Tag() string {
	s := string(e)
	switch {
	case e.IsAV1():
		return "av1"
	case e == EncoderX264 || strings.HasPrefix(s, "h264"):
		return "h264"
	case e == EncoderX265 || strings.HasPrefix(s, "hevc"):
		return "hevc"
	case strings.Contains(s, "vp9"):
		return "vp9"
	default:
		return strings.TrimPrefix(s, "lib")
	}
}

// SampleExtension is the container used for encoded samples.
func (e Encoder) SampleExtension() string {
	if e.IsNative() {
		return "ivf"
	}
	return "mkv"
}
