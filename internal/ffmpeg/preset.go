package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/five82/ab-av1/internal/errors"
)

// Preset is an encoder speed preset, either numeric (svt-av1, aom) or
// named (x264/x265 "slow", "medium").
type Preset struct {
	value   string
	numeric bool
}

// NumericPreset creates a numeric preset.
func NumericPreset(n int) Preset {
	return Preset{value: strconv.Itoa(n), numeric: true}
}

// ParsePreset accepts an integer or a lower-case name.
func ParsePreset(s string) (Preset, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Preset{}, errors.NewPreconditionError("empty preset", nil)
	}
	if n, err := strconv.Atoi(s); err == nil {
		return NumericPreset(n), nil
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return Preset{}, errors.NewPreconditionError(fmt.Sprintf("invalid preset %q", s), nil)
		}
	}
	return Preset{value: s}, nil
}

// IsZero reports whether no preset is set.
func (p Preset) IsZero() bool { return p.value == "" }

// Numeric reports whether the preset is a number.
func (p Preset) Numeric() bool { return p.numeric }

func (p Preset) String() string { return p.value }
