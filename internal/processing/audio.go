package processing

import (
	"fmt"

	"github.com/five82/ab-av1/internal/ffmpeg"
	"github.com/five82/ab-av1/internal/ffprobe"
	"github.com/five82/ab-av1/internal/logging"
)

// AudioFor resolves the audio handling of a full encode from the probe.
// Probe failures are not fatal: the input is then treated as having audio
// of unknown layout so the streams are still mapped.
func AudioFor(probe *ffprobe.Probe, codec string, downmix bool) ffmpeg.AudioOptions {
	log := logging.Component("audio")
	opts := ffmpeg.AudioOptions{Codec: codec, DownmixToStereo: downmix, HasAudio: true}

	has, err := probe.HasAudio.Get()
	if err != nil {
		log.Warn("audio presence unknown, mapping optional audio streams", "error", err)
	} else {
		opts.HasAudio = has
	}
	if ch, err := probe.MaxAudioChannels.Get(); err == nil {
		opts.Channels = ch
	}
	if opts.Codec == "" {
		opts.Codec = ffmpeg.DefaultAudioCodec
	}
	return opts
}

// FormatAudioDescription formats the audio handling for display.
func FormatAudioDescription(opts ffmpeg.AudioOptions) string {
	if !opts.HasAudio {
		return "No audio"
	}
	if opts.Codec == "copy" {
		return "copy"
	}
	ch := opts.Channels
	if opts.DownmixToStereo && ch > 2 {
		ch = 2
	}
	if ch == 0 {
		return opts.Codec
	}
	return fmt.Sprintf("%d channels @ %dkbps %s", ch, ffmpeg.CalculateAudioBitrate(ch), opts.Codec)
}
