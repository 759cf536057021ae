package ffmpeg

import (
	"fmt"
	"strings"
)

// SvtAv1ParamsBuilder builds the colon-joined -svtav1-params value.
type SvtAv1ParamsBuilder struct {
	params []paramKV
}

type paramKV struct {
	key   string
	value string
}

// NewSvtAv1ParamsBuilder creates a new SVT-AV1 parameters builder.
func NewSvtAv1ParamsBuilder() *SvtAv1ParamsBuilder {
	return &SvtAv1ParamsBuilder{}
}

// WithSCD sets scene change detection.
func (b *SvtAv1ParamsBuilder) WithSCD(enabled bool) *SvtAv1ParamsBuilder {
	val := "0"
	if enabled {
		val = "1"
	}
	return b.AddParam("scd", val)
}

// WithRaw appends an existing "k=v:k2=v2" string, e.g. from
// --enc svtav1-params=...
func (b *SvtAv1ParamsBuilder) WithRaw(raw string) *SvtAv1ParamsBuilder {
	for _, part := range strings.Split(raw, ":") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		b.AddParam(k, v)
	}
	return b
}

// WithArgs appends --svt extras.
func (b *SvtAv1ParamsBuilder) WithArgs(args []Arg) *SvtAv1ParamsBuilder {
	for _, a := range args {
		b.AddParam(a.Key, a.Value)
	}
	return b
}

// AddParam adds a parameter, replacing an earlier one with the same key.
func (b *SvtAv1ParamsBuilder) AddParam(key, value string) *SvtAv1ParamsBuilder {
	for i := range b.params {
		if b.params[i].key == key {
			b.params[i].value = value
			return b
		}
	}
	b.params = append(b.params, paramKV{key, value})
	return b
}

// Build builds the parameters into a colon-separated string.
func (b *SvtAv1ParamsBuilder) Build() string {
	parts := make([]string, 0, len(b.params))
	for _, p := range b.params {
		parts = append(parts, fmt.Sprintf("%s=%s", p.key, p.value))
	}
	return strings.Join(parts, ":")
}
