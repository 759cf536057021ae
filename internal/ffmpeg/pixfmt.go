package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/five82/ab-av1/internal/errors"
)

// PixelFormat is an encoder output pixel format. Formats are ordered by
// fidelity so the larger of two is the safer comparison format.
type PixelFormat int

const (
	Yuv420p PixelFormat = iota
	Yuv420p10le
	Yuv422p10le
	Yuv444p10le
)

var pixelFormatNames = []string{"yuv420p", "yuv420p10le", "yuv422p10le", "yuv444p10le"}

// ParsePixelFormat parses an ffmpeg pix_fmt name.
func ParsePixelFormat(s string) (PixelFormat, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range pixelFormatNames {
		if n == name {
			return PixelFormat(i), nil
		}
	}
	return 0, errors.NewPreconditionError(
		fmt.Sprintf("unsupported pixel format %q, valid options: %s", s, strings.Join(pixelFormatNames, ", ")), nil)
}

func (p PixelFormat) String() string {
	if p < 0 || int(p) >= len(pixelFormatNames) {
		return fmt.Sprintf("PixelFormat(%d)", int(p))
	}
	return pixelFormatNames[p]
}

// BitDepth returns 8 or 10.
func (p PixelFormat) BitDepth() int {
	if p == Yuv420p {
		return 8
	}
	return 10
}

// MaxPixelFormat returns the higher fidelity format.
func MaxPixelFormat(a, b PixelFormat) PixelFormat {
	return max(a, b)
}
