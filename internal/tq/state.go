package tq

import (
	"fmt"

	"github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/sample"
)

// Attempt is one sample-encode at a CRF.
type Attempt struct {
	CRF    int
	Result *sample.Result
}

// Score returns the attempt's mean score.
func (a Attempt) Score() float64 { return a.Result.Score }

// EncodedPercent returns the attempt's predicted size percentage.
func (a Attempt) EncodedPercent() float64 { return a.Result.EncodedPercent }

// State tracks the search. Attempts are append-only.
type State struct {
	cfg      Config
	round    int
	attempts []Attempt
}

// NewState creates a state for cfg.
func NewState(cfg Config) *State {
	return &State{cfg: cfg, attempts: make([]Attempt, 0, 8)}
}

// Round is the current iteration, starting at 1 once the first attempt
// begins.
func (s *State) Round() int { return s.round }

// Attempts returns the attempts in completion order.
func (s *State) Attempts() []Attempt { return s.attempts }

func (s *State) upper(crf int) (Attempt, bool) {
	var best Attempt
	found := false
	for _, a := range s.attempts {
		if a.CRF > crf && (!found || a.CRF < best.CRF) {
			best, found = a, true
		}
	}
	return best, found
}

// lower returns the attempt with the largest CRF below crf.
func (s *State) lower(crf int) (Attempt, bool) {
	var best Attempt
	found := false
	for _, a := range s.attempts {
		if a.CRF < crf && (!found || a.CRF > best.CRF) {
			best, found = a, true
		}
	}
	return best, found
}

// NoGoodCRFError means no CRF in the bounds satisfied the target.
type NoGoodCRFError struct {
	Last Attempt
}

func (e *NoGoodCRFError) Error() string {
	return fmt.Sprintf("failed to find a suitable crf (last crf %d: score %.2f, %.0f%% encoded size)",
		e.Last.CRF, e.Last.Score(), e.Last.EncodedPercent())
}

// Unwrap classifies the error as a search failure.
func (e *NoGoodCRFError) Unwrap() error {
	return errors.NewSearchError("no suitable crf", nil)
}
