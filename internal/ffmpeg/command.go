package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/five82/ab-av1/internal/process"
)

// Default binary names, resolved through PATH.
const (
	DefaultFFmpegBinary  = "ffmpeg"
	DefaultFFprobeBinary = "ffprobe"
	DefaultSvtAv1Binary  = "SvtAv1EncApp"
)

// AudioOptions control the audio streams of a full encode.
type AudioOptions struct {
	// Codec is the ffmpeg audio encoder, or "copy".
	Codec string
	// Channels is the maximum input channel count, used to pick a bitrate.
	Channels        uint32
	DownmixToStereo bool
	HasAudio        bool
}

// DefaultAudioCodec is used for full encodes when --acodec is not given.
const DefaultAudioCodec = "libopus"

// CalculateAudioBitrate returns audio bitrate in kbps based on channel count.
func CalculateAudioBitrate(channels uint32) uint32 {
	switch channels {
	case 1:
		return 64 // Mono
	case 2:
		return 128 // Stereo
	case 6:
		return 256 // 5.1 surround
	case 8:
		return 384 // 7.1 surround
	default:
		return channels * 48
	}
}

// audioArgs maps audio and subtitle streams from input index idx.
func (o AudioOptions) audioArgs(idx int, container string) []string {
	var args []string
	if o.HasAudio {
		codec := o.Codec
		if codec == "" {
			codec = DefaultAudioCodec
		}
		args = append(args, "-map", fmt.Sprintf("%d:a?", idx), "-c:a", codec)
		if codec != "copy" {
			ch := o.Channels
			if o.DownmixToStereo && ch > 2 {
				args = append(args, "-ac", "2")
				ch = 2
			}
			if ch > 0 {
				args = append(args, "-b:a", fmt.Sprintf("%dk", CalculateAudioBitrate(ch)))
			}
		}
	}
	// Only matroska accepts arbitrary subtitle codecs.
	if container == "mkv" {
		args = append(args, "-map", fmt.Sprintf("%d:s?", idx), "-c:s", "copy")
	}
	return args
}

func argsToFlags(args []Arg) []string {
	out := make([]string, 0, len(args)*2)
	for _, a := range args {
		out = append(out, "-"+a.Key)
		if a.Value != "" {
			out = append(out, a.Value)
		}
	}
	return out
}

// videoArgs renders the ffmpeg output-side video options for an in-ffmpeg
// encoder. The --enc extras follow the codec-specific options so that an
// explicit user value is the one ffmpeg keeps.
func (a *EncoderArgs) videoArgs() []string {
	args := []string{"-c:v", string(a.Encoder)}
	if !a.Preset.IsZero() {
		args = append(args, a.Encoder.presetFlag(), a.Preset.String())
	}
	args = append(args, a.Encoder.crfFlag(), a.CRFString())
	args = append(args, "-pix_fmt", a.PixelFormat.String())
	if a.VFilter != "" {
		args = append(args, "-vf", a.VFilter)
	}

	enc := a.Enc
	switch {
	case a.Encoder == EncoderSvtAv1:
		b := NewSvtAv1ParamsBuilder()
		if i, ok := findArg(enc, "svtav1-params"); ok {
			b.WithRaw(enc[i].Value)
			enc = removeArg(enc, i)
		}
		b.WithSCD(a.SCD).WithArgs(a.Svt)
		if a.Keyint != nil {
			args = append(args, "-g", strconv.Itoa(*a.Keyint))
		}
		args = append(args, "-svtav1-params", b.Build())

	case a.Encoder.isX26x():
		key := strings.TrimPrefix(string(a.Encoder), "lib") + "-params"
		if a.Keyint != nil {
			if i, ok := findArg(enc, key); ok {
				if !hasParamKey(enc[i].Value, "keyint") {
					enc = append([]Arg(nil), enc...)
					enc[i].Value = enc[i].Value + ":keyint=" + strconv.Itoa(*a.Keyint)
				}
			} else {
				args = append(args, "-"+key, "keyint="+strconv.Itoa(*a.Keyint))
			}
		}

	case a.Encoder == EncoderVP9:
		if a.Keyint != nil {
			args = append(args, "-g", strconv.Itoa(*a.Keyint))
		}
		if _, ok := findArg(enc, "b:v"); !ok {
			args = append(args, "-b:v", "0")
		}

	default:
		if a.Keyint != nil {
			args = append(args, "-g", strconv.Itoa(*a.Keyint))
		}
	}

	return append(args, argsToFlags(enc)...)
}

// hasParamKey reports whether a colon-separated key=value list sets key.
func hasParamKey(params, key string) bool {
	for _, p := range strings.Split(params, ":") {
		k, _, _ := strings.Cut(p, "=")
		if strings.TrimSpace(k) == key {
			return true
		}
	}
	return false
}

func removeArg(args []Arg, i int) []Arg {
	out := make([]Arg, 0, len(args)-1)
	out = append(out, args[:i]...)
	return append(out, args[i+1:]...)
}

// y4mProducerArgs decodes input to a yuv4mpeg stream on stdout.
func (a *EncoderArgs) y4mProducerArgs(input string) []string {
	args := []string{"-y"}
	args = append(args, argsToFlags(a.EncInput)...)
	args = append(args, "-i", input, "-map", "0:v:0")
	if a.VFilter != "" {
		args = append(args, "-vf", a.VFilter)
	}
	args = append(args, argsToFlags(a.Enc)...)
	return append(args, "-pix_fmt", a.PixelFormat.String(), "-strict", "-1", "-f", "yuv4mpegpipe", "-")
}

// svtAppArgs reads yuv4mpeg from stdin and writes ivf to output.
func (a *EncoderArgs) svtAppArgs(output string) []string {
	args := []string{"-i", "stdin", "--crf", a.CRFString()}
	if !a.Preset.IsZero() {
		args = append(args, "--preset", a.Preset.String())
	}
	if a.Keyint != nil {
		args = append(args, "--keyint", strconv.Itoa(*a.Keyint))
	}
	scd := "0"
	if a.SCD {
		scd = "1"
	}
	args = append(args, "--scd", scd, "--input-depth", strconv.Itoa(a.PixelFormat.BitDepth()))
	for _, s := range a.Svt {
		args = append(args, "--"+s.Key)
		if s.Value != "" {
			args = append(args, s.Value)
		}
	}
	return append(args, "-b", output)
}

// Tools names the external binaries.
type Tools struct {
	FFmpeg string
	SvtAv1 string
}

func (t Tools) ffmpeg() string {
	if t.FFmpeg == "" {
		return DefaultFFmpegBinary
	}
	return t.FFmpeg
}

func (t Tools) svtAv1() string {
	if t.SvtAv1 == "" {
		return DefaultSvtAv1Binary
	}
	return t.SvtAv1
}

// SampleEncodeCommands returns the video-only encode of input to output.
// The native encoder yields a producer and consumer to be piped.
func (t Tools) SampleEncodeCommands(a *EncoderArgs, input, output string) []*process.Command {
	if a.Encoder.IsNative() {
		return []*process.Command{
			{Name: "ffmpeg y4m", Program: t.ffmpeg(), Args: a.y4mProducerArgs(input)},
			{Name: "svt-av1 encode", Program: t.svtAv1(), Args: a.svtAppArgs(output)},
		}
	}

	args := []string{"-y"}
	args = append(args, argsToFlags(a.EncInput)...)
	args = append(args, "-i", input, "-map", "0:v:0")
	args = append(args, a.videoArgs()...)
	args = append(args, "-an", "-sn", output)
	return []*process.Command{{Name: "ffmpeg encode", Program: t.ffmpeg(), Args: args}}
}

// FullEncodeCommand returns a single ffmpeg encode of video, audio and
// subtitles. Not valid for the native encoder, see RemuxCommand.
func (t Tools) FullEncodeCommand(a *EncoderArgs, input, output string, audio AudioOptions) *process.Command {
	args := []string{"-y"}
	args = append(args, argsToFlags(a.EncInput)...)
	args = append(args, "-i", input, "-map", "0:v:0")
	args = append(args, a.videoArgs()...)
	args = append(args, audio.audioArgs(0, containerOf(output))...)
	args = append(args, output)
	return &process.Command{Name: "ffmpeg encode", Program: t.ffmpeg(), Args: args}
}

// RemuxCommand muxes an encoded video stream with the source's audio and
// subtitles.
func (t Tools) RemuxCommand(video, source, output string, audio AudioOptions) *process.Command {
	args := []string{"-y", "-i", video, "-i", source, "-map", "0:v:0", "-c:v", "copy"}
	args = append(args, audio.audioArgs(1, containerOf(output))...)
	args = append(args, output)
	return &process.Command{Name: "ffmpeg remux", Program: t.ffmpeg(), Args: args}
}

func containerOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[i+1:])
}
