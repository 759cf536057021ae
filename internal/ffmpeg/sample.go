package ffmpeg

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"github.com/five82/ab-av1/internal/process"
	"github.com/five82/ab-av1/internal/util"
)

// SamplePath returns the cut destination for a sample of input starting
// at start, e.g. "movie.sample60+20s.mkv". Start is floored to seconds.
func SamplePath(input string, start, length time.Duration, dir string) string {
	ext := util.GetExtension(input)
	switch ext {
	case "mkv", "mp4", "webm":
	default:
		ext = "mkv"
	}
	name := fmt.Sprintf("%s.sample%d+%ss.%s",
		util.GetFileStem(input),
		int64(start/time.Second),
		formatSeconds(length),
		ext)
	return filepath.Join(dir, name)
}

// EncodedSamplePath is the encoder output path in dir for sample at the
// args' crf.
func EncodedSamplePath(sample, dir string, a *EncoderArgs) string {
	name := fmt.Sprintf("%s.crf%s.%s", util.GetFileStem(sample), a.CRFString(), a.Encoder.SampleExtension())
	return filepath.Join(dir, name)
}

func formatSeconds(d time.Duration) string {
	secs := d.Seconds()
	if secs == math.Trunc(secs) {
		return strconv.FormatInt(int64(secs), 10)
	}
	return strconv.FormatFloat(secs, 'f', -1, 64)
}

// CutCommand stream-copies length of the first video stream from start.
func (t Tools) CutCommand(input string, start, length time.Duration, dest string) *process.Command {
	return &process.Command{
		Name:    "ffmpeg cut",
		Program: t.ffmpeg(),
		Args: []string{
			"-y",
			"-ss", formatSeconds(start.Truncate(time.Second)),
			"-i", input,
			"-t", formatSeconds(length),
			"-map", "0:v:0",
			"-c:v", "copy",
			"-an", "-sn",
			"-avoid_negative_ts", "make_zero",
			dest,
		},
	}
}
