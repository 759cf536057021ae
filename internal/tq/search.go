package tq

import (
	"context"
	"math"

	"github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/logging"
	"github.com/five82/ab-av1/internal/sample"
)

// baseTolerance scales the acceptance window above the target, which
// doubles every round.
const baseTolerance = 0.1

// progressRounds is the number of rounds the progress bar assumes.
const progressRounds = 4

// Tolerance returns the score window for round r: 2^r * 0.1.
func Tolerance(r int) float64 {
	return math.Pow(2, float64(r)) * baseTolerance
}

// Progress returns the overall search fraction during round r with the
// current sample-encode at p.
func Progress(r int, p float64) float64 {
	total := max(r, progressRounds)
	return (float64(r-1) + p) / float64(total)
}

// Lerp interpolates the CRF expected to score exactly minScore between a
// good attempt (better, lower CRF) and a failing one (worse, higher CRF).
// The result lies strictly between them.
func Lerp(minScore float64, worse, better Attempt) int {
	lo, hi := better.CRF+1, worse.CRF-1
	d := better.Score() - worse.Score()
	var crf int
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		crf = (better.CRF + worse.CRF) / 2
	} else {
		f := (minScore - worse.Score()) / d
		crf = int(math.Round(float64(worse.CRF) - float64(worse.CRF-better.CRF)*f))
	}
	return min(max(crf, lo), hi)
}

// SampleEncodeFunc sample-encodes at crf.
type SampleEncodeFunc func(ctx context.Context, crf int, onProgress func(float64)) (*sample.Result, error)

// Search runs the CRF search state machine.
type Search struct {
	Config Config
	Encode SampleEncodeFunc

	// OnAttempt is called after each attempt completes.
	OnAttempt func(Attempt)
	// OnProgress receives the overall fraction.
	OnProgress func(float64)

	Log *logging.Logger

	state *State
}

// Attempts returns the attempts of the last Run in completion order.
func (s *Search) Attempts() []Attempt {
	if s.state == nil {
		return nil
	}
	return s.state.Attempts()
}

// Run searches the bounds and returns the chosen attempt, or a
// *NoGoodCRFError carrying the last attempt.
func (s *Search) Run(ctx context.Context) (*Attempt, error) {
	cfg := s.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := s.Log
	if log == nil {
		log = logging.Component("tq")
	}

	state := NewState(cfg)
	s.state = state
	crf := (cfg.MinCRF + cfg.MaxCRF) / 2

	for {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError()
		}
		state.round++
		r := state.Round()

		res, err := s.Encode(ctx, crf, func(p float64) {
			if s.OnProgress != nil {
				s.OnProgress(Progress(r, p))
			}
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.NewCancelledError()
			}
			return nil, err
		}

		current := Attempt{CRF: crf, Result: res}
		state.attempts = append(state.attempts, current)
		log.Info("crf attempt", "round", r, "crf", crf, "score", res.Score, "encoded_percent", res.EncodedPercent)
		if s.OnAttempt != nil {
			s.OnAttempt(current)
		}

		next, done, err := state.step(current)
		if err != nil || done != nil {
			if done != nil && s.OnProgress != nil {
				s.OnProgress(1)
			}
			return done, err
		}
		crf = next
	}
}

// step decides the next CRF after current, or finishes the search.
func (s *State) step(current Attempt) (next int, done *Attempt, err error) {
	cfg := s.cfg
	r := s.round

	if current.Score() > cfg.MinScore {
		upper, hasUpper := s.upper(current.CRF)
		switch {
		case current.EncodedPercent() < cfg.MaxEncodedPercent && current.Score() < cfg.MinScore+Tolerance(r):
			return 0, &current, nil
		case hasUpper && upper.CRF == current.CRF+1:
			return 0, &current, nil
		case hasUpper:
			return Lerp(cfg.MinScore, upper, current), nil, nil
		case current.CRF == cfg.MaxCRF:
			return 0, &current, nil
		case r == 1 && current.CRF+1 < cfg.MaxCRF:
			return (current.CRF + cfg.MaxCRF) / 2, nil, nil
		default:
			return cfg.MaxCRF, nil, nil
		}
	}

	lower, hasLower := s.lower(current.CRF)
	switch {
	case current.EncodedPercent() > cfg.MaxEncodedPercent || current.CRF == cfg.MinCRF:
		return 0, nil, &NoGoodCRFError{Last: current}
	case hasLower && lower.CRF == current.CRF-1:
		return 0, &lower, nil
	case hasLower:
		return Lerp(cfg.MinScore, current, lower), nil, nil
	case r == 1 && current.CRF > cfg.MinCRF+1:
		return (cfg.MinCRF + current.CRF) / 2, nil, nil
	default:
		return cfg.MinCRF, nil, nil
	}
}
