package ffmpeg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"lukechampine.com/blake3"

	apperrors "github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/ffprobe"
)

// ErrReservedArg is wrapped by errors for extras that collide with
// dedicated flags.
var ErrReservedArg = errors.New("reserved argument")

// reservedEncArgs maps ffmpeg options that may not appear in --enc or
// --enc-input to the flag to use instead.
var reservedEncArgs = map[string]string{
	"i":        "use --input instead",
	"y":        "output overwrite is managed automatically",
	"n":        "output overwrite is managed automatically",
	"c:v":      "use --encoder instead",
	"codec:v":  "use --encoder instead",
	"vcodec":   "use --encoder instead",
	"c:a":      "use --acodec instead",
	"codec:a":  "use --acodec instead",
	"acodec":   "use --acodec instead",
	"pix_fmt":  "use --pix-format instead",
	"crf":      "use --crf instead",
	"preset":   "use --preset instead",
	"vf":       "use --vfilter instead",
	"filter:v": "use --vfilter instead",
}

// reservedSvtArgs maps svt-av1 parameters that may not appear in --svt.
var reservedSvtArgs = map[string]string{
	"crf":         "use --crf instead",
	"preset":      "use --preset instead",
	"keyint":      "use --keyint instead",
	"scd":         "use --scd instead",
	"input-depth": "use --pix-format instead",
}

// Arg is one extra option. Value is empty for bare flags.
type Arg struct {
	Key   string
	Value string
}

// ParseArg parses "opt=val", "-opt=val" or "opt". The key is split at the
// first '=' so values may contain '='.
func ParseArg(s string) (Arg, error) {
	s = strings.TrimSpace(s)
	key, value, _ := strings.Cut(s, "=")
	key = strings.TrimLeft(key, "-")
	if key == "" {
		return Arg{}, apperrors.NewPreconditionError(fmt.Sprintf("invalid argument %q", s), nil)
	}
	return Arg{Key: key, Value: value}, nil
}

func parseArgs(raw []string, reserved map[string]string, flag string) ([]Arg, error) {
	args := make([]Arg, 0, len(raw))
	for _, r := range raw {
		a, err := ParseArg(r)
		if err != nil {
			return nil, err
		}
		if hint, ok := reserved[a.Key]; ok {
			return nil, apperrors.NewPreconditionError(
				fmt.Sprintf("%s %s: %s", flag, a.Key, hint), ErrReservedArg)
		}
		args = append(args, a)
	}
	return args, nil
}

func findArg(args []Arg, key string) (int, bool) {
	for i, a := range args {
		if a.Key == key {
			return i, true
		}
	}
	return -1, false
}

// Options are the encoder settings as given by the user.
type Options struct {
	Encoder     string
	Preset      string
	PixelFormat string
	VFilter     string
	Keyint      string
	SCD         *bool
	Svt         []string
	Enc         []string
	EncInput    []string
}

// EncoderArgs is a fully resolved encoder invocation, minus input/output
// paths.
type EncoderArgs struct {
	Encoder     Encoder
	Preset      Preset
	CRF         float32
	PixelFormat PixelFormat
	VFilter     string
	Keyint      *int
	SCD         bool
	Svt         []Arg
	Enc         []Arg
	EncInput    []Arg
}

// Resolve validates the options and applies encoder defaults and the
// keyframe policy. Reserved extras are rejected here, before any process
// is spawned.
func (o Options) Resolve(probe *ffprobe.Probe) (*EncoderArgs, error) {
	enc, err := ParseEncoder(o.Encoder)
	if err != nil {
		return nil, err
	}

	args := &EncoderArgs{Encoder: enc, VFilter: strings.TrimSpace(o.VFilter)}

	if o.Preset != "" {
		if args.Preset, err = ParsePreset(o.Preset); err != nil {
			return nil, err
		}
	} else if p, ok := enc.DefaultPreset(); ok {
		args.Preset = p
	}

	args.PixelFormat = enc.DefaultPixelFormat()
	if o.PixelFormat != "" {
		if args.PixelFormat, err = ParsePixelFormat(o.PixelFormat); err != nil {
			return nil, err
		}
	}

	if args.Svt, err = parseArgs(o.Svt, reservedSvtArgs, "--svt"); err != nil {
		return nil, err
	}
	if len(args.Svt) > 0 && !(enc == EncoderSvtAv1 || enc == EncoderSvtAv1App) {
		return nil, apperrors.NewPreconditionError(fmt.Sprintf("--svt is only valid with svt-av1 encoders, not %s", enc), nil)
	}
	if args.Enc, err = parseArgs(o.Enc, reservedEncArgs, "--enc"); err != nil {
		return nil, err
	}
	if args.EncInput, err = parseArgs(o.EncInput, reservedEncArgs, "--enc-input"); err != nil {
		return nil, err
	}

	var user *KeyInterval
	if o.Keyint != "" {
		k, err := ParseKeyInterval(o.Keyint)
		if err != nil {
			return nil, err
		}
		user = &k
	}
	policy, err := ResolveKeyint(user, o.SCD, args.VFilter, probe)
	if err != nil {
		return nil, err
	}
	args.Keyint = policy.Keyint
	args.SCD = policy.SCD

	return args, nil
}

// WithCRF returns a copy with CRF set.
func (a *EncoderArgs) WithCRF(crf float32) *EncoderArgs {
	c := *a
	c.CRF = crf
	return &c
}

// CRFString formats the CRF for the encoder command line.
func (a *EncoderArgs) CRFString() string {
	if a.Encoder.SupportsDecimalCRF() {
		return fmt.Sprintf("%g", a.CRF)
	}
	return fmt.Sprintf("%d", int(math.Round(float64(a.CRF))))
}

// Fingerprint hashes the semantic content of the arguments. It is stable
// across runs and independent of command-line spelling.
func (a *EncoderArgs) Fingerprint() [32]byte {
	h := blake3.New(32, nil)
	writeStr := func(s string) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		_, _ = h.Write(n[:])
		_, _ = h.Write([]byte(s))
	}
	writeArgs := func(args []Arg) {
		writeStr(fmt.Sprintf("%d", len(args)))
		for _, arg := range args {
			writeStr(arg.Key)
			writeStr(arg.Value)
		}
	}

	writeStr(string(a.Encoder))
	writeStr(a.Preset.String())
	writeStr(a.CRFString())
	writeStr(a.PixelFormat.String())
	writeStr(a.VFilter)
	if a.Keyint != nil {
		writeStr(fmt.Sprintf("keyint=%d", *a.Keyint))
	} else {
		writeStr("keyint=")
	}
	writeStr(fmt.Sprintf("scd=%t", a.SCD))
	writeArgs(a.Svt)
	writeArgs(a.Enc)
	writeArgs(a.EncInput)

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
