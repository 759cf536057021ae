package ffmpeg

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/ffprobe"
)

const (
	// keyintDefaultMinDuration is the input length from which a keyframe
	// interval is set automatically.
	keyintDefaultMinDuration = 3 * time.Minute

	// keyintDefault is the automatic keyframe interval.
	keyintDefault = 10 * time.Second
)

// KeyInterval is a user-supplied keyframe interval, as a frame count or as
// a duration to be converted with the output frame rate.
type KeyInterval struct {
	Frames   int
	Duration time.Duration
}

// ParseKeyInterval accepts a frame count ("240") or a duration ("10s", "1m").
func ParseKeyInterval(s string) (KeyInterval, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return KeyInterval{}, errors.NewPreconditionError(fmt.Sprintf("invalid keyint %q", s), nil)
		}
		return KeyInterval{Frames: n}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return KeyInterval{}, errors.NewPreconditionError(fmt.Sprintf("invalid keyint %q, expected frames or a duration like 10s", s), err)
	}
	return KeyInterval{Duration: d}, nil
}

func (k KeyInterval) String() string {
	if k.Duration > 0 {
		return k.Duration.String()
	}
	return strconv.Itoa(k.Frames)
}

// ToFrames converts the interval to frames at fps.
func (k KeyInterval) ToFrames(fps float64) int {
	if k.Duration <= 0 {
		return k.Frames
	}
	return int(math.Round(k.Duration.Seconds() * fps))
}

var fpsAliases = map[string]float64{
	"ntsc":      30000.0 / 1001.0,
	"pal":       25,
	"film":      24,
	"ntsc_film": 24000.0 / 1001.0,
}

// FilterFPS returns the output rate set by an fps filter in vfilter, e.g.
// "scale=320:-1,fps=film" or "fps=fps=30000/1001:round=near".
func FilterFPS(vfilter string) (float64, bool) {
	for _, filter := range strings.Split(vfilter, ",") {
		name, args, ok := strings.Cut(strings.TrimSpace(filter), "=")
		if !ok || strings.TrimSpace(name) != "fps" {
			continue
		}
		var value string
		for i, opt := range strings.Split(args, ":") {
			if k, v, ok := strings.Cut(opt, "="); ok {
				if k == "fps" {
					value = v
				}
			} else if i == 0 {
				value = opt
			}
		}
		if fps, ok := fpsAliases[strings.TrimSpace(value)]; ok {
			return fps, true
		}
		if fps, err := ffprobe.ParseFrameRate(value); err == nil {
			return fps, true
		}
	}
	return 0, false
}

// KeyintPolicy is the resolved keyframe configuration.
type KeyintPolicy struct {
	// Keyint in frames; nil leaves the encoder default.
	Keyint *int
	SCD    bool
}

// ResolveKeyint applies the keyframe rules. A user interval is converted
// with the filter fps, falling back to the probed fps. Without one, inputs of
// at least three minutes get a 10s interval with scene change detection.
// An explicit scd value always wins.
func ResolveKeyint(user *KeyInterval, userSCD *bool, vfilter string, probe *ffprobe.Probe) (KeyintPolicy, error) {
	fps := func() (float64, error) {
		if f, ok := FilterFPS(vfilter); ok {
			return f, nil
		}
		if probe == nil {
			return 0, errors.NewProbeError("fps", fmt.Errorf("no probe"))
		}
		f, err := probe.FPS.Get()
		if err != nil {
			return 0, errors.NewProbeError("fps", err)
		}
		return f, nil
	}

	var policy KeyintPolicy
	defaulted := false

	switch {
	case user != nil && user.Duration > 0:
		f, err := fps()
		if err != nil {
			return KeyintPolicy{}, err
		}
		frames := user.ToFrames(f)
		policy.Keyint = &frames
	case user != nil:
		frames := user.Frames
		policy.Keyint = &frames
	case probe != nil:
		dur, err := probe.Duration.Get()
		if err != nil || dur < keyintDefaultMinDuration {
			break
		}
		f, err := fps()
		if err != nil {
			break
		}
		frames := KeyInterval{Duration: keyintDefault}.ToFrames(f)
		policy.Keyint = &frames
		defaulted = true
	}

	if userSCD != nil {
		policy.SCD = *userSCD
	} else {
		policy.SCD = defaulted
	}
	return policy, nil
}
