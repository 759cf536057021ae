package process

import (
	"regexp"
	"strconv"
	"time"

	"github.com/five82/ab-av1/internal/util"
)

// Progress is one ffmpeg progress record.
type Progress struct {
	Frame uint64
	FPS   float32
	Time  time.Duration
}

// StreamSizes is ffmpeg's end-of-run stream size summary, in bytes.
type StreamSizes struct {
	Video    uint64
	Audio    uint64
	Subtitle uint64
	Other    uint64
}

var (
	progressRegex = regexp.MustCompile(`frame=\s*(\d+)\s+fps=\s*(\d+(?:\.\d+)?)\s.*?time=\s*(\d+:\d{2}:\d{2}(?:\.\d+)?)`)
	sizesRegex    = regexp.MustCompile(`video:\s*(\d+)[kK]i?B\s+audio:\s*(\d+)[kK]i?B\s+subtitle:\s*(\d+)[kK]i?B\s+other streams:\s*(\d+)[kK]i?B`)
)

// ParseProgress extracts a progress record from an ffmpeg stderr line.
// Lines without frame, fps and a concrete time return false.
func ParseProgress(line string) (Progress, bool) {
	m := progressRegex.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}

	frame, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return Progress{}, false
	}
	fps, err := strconv.ParseFloat(m[2], 32)
	if err != nil {
		return Progress{}, false
	}
	secs, ok := util.ParseFFmpegTime(m[3])
	if !ok {
		return Progress{}, false
	}

	return Progress{
		Frame: frame,
		FPS:   float32(fps),
		Time:  time.Duration(secs * float64(time.Second)),
	}, true
}

// ParseStreamSizes extracts the stream size summary ffmpeg prints on exit.
func ParseStreamSizes(line string) (StreamSizes, bool) {
	m := sizesRegex.FindStringSubmatch(line)
	if m == nil {
		return StreamSizes{}, false
	}

	var kb [4]uint64
	for i := range kb {
		v, err := strconv.ParseUint(m[i+1], 10, 64)
		if err != nil {
			return StreamSizes{}, false
		}
		kb[i] = v * 1024
	}

	return StreamSizes{Video: kb[0], Audio: kb[1], Subtitle: kb[2], Other: kb[3]}, true
}
