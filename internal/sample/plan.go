// Package sample encodes and scores short samples of an input to predict
// the quality and size of a full encode.
package sample

import "time"

// DefaultDuration is the length of each sample.
const DefaultDuration = 20 * time.Second

// DefaultCount is the default number of samples.
const DefaultCount = 3

// Plan describes where samples are taken from an input.
type Plan struct {
	// Starts are the sample start offsets, floored to whole seconds.
	Starts []time.Duration
	Length time.Duration
	// FullPass means the whole input is the single sample.
	FullPass bool
}

// Count returns the number of samples, 1 for a full pass.
func (p Plan) Count() int {
	if p.FullPass {
		return 1
	}
	return len(p.Starts)
}

// NewPlan spreads up to n samples of length evenly across duration with
// equal gaps before, between and after them. When the samples would cover
// the whole input it falls back to a full pass.
func NewPlan(duration time.Duration, n int, length time.Duration) Plan {
	if length <= 0 {
		length = DefaultDuration
	}
	samples := min(max(n, 0), int(duration/length))
	if samples == 0 || time.Duration(samples)*length >= duration {
		return Plan{Length: duration, FullPass: true}
	}

	gap := (duration - time.Duration(samples)*length) / time.Duration(samples+1)
	starts := make([]time.Duration, samples)
	for k := 1; k <= samples; k++ {
		start := gap*time.Duration(k) + length*time.Duration(k-1)
		starts[k-1] = start.Truncate(time.Second)
	}
	return Plan{Starts: starts, Length: length}
}
