package tq

import (
	"context"
	"errors"
	"math"
	"testing"

	apperrors "github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/sample"
)

type point struct {
	score float64
	pct   float64
}

// fakeEncoder returns fn(crf) and records the CRFs it was asked for.
type fakeEncoder struct {
	fn    func(crf int) point
	calls []int
}

func (f *fakeEncoder) encode(_ context.Context, crf int, onProgress func(float64)) (*sample.Result, error) {
	f.calls = append(f.calls, crf)
	onProgress(0.5)
	p := f.fn(crf)
	return &sample.Result{Score: p.score, EncodedPercent: p.pct}, nil
}

func table(points map[int]point) func(int) point {
	return func(crf int) point {
		if p, ok := points[crf]; ok {
			return p
		}
		panic("unexpected crf")
	}
}

func runSearch(t *testing.T, cfg Config, fn func(int) point) (*Attempt, []int, error) {
	t.Helper()
	enc := &fakeEncoder{fn: fn}
	s := &Search{Config: cfg, Encode: enc.encode}
	best, err := s.Run(context.Background())
	return best, enc.calls, err
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTolerance(t *testing.T) {
	tests := []struct {
		round int
		want  float64
	}{
		{1, 0.2},
		{2, 0.4},
		{3, 0.8},
		{5, 3.2},
	}
	for _, tt := range tests {
		if got := Tolerance(tt.round); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Tolerance(%d) = %v, want %v", tt.round, got, tt.want)
		}
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		round int
		p     float64
		want  float64
	}{
		{1, 0, 0},
		{1, 0.5, 0.125},
		{4, 1, 1},
		{5, 0, 0.8},
		{6, 0.5, 5.5 / 6},
	}
	for _, tt := range tests {
		if got := Progress(tt.round, tt.p); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Progress(%d, %v) = %v, want %v", tt.round, tt.p, got, tt.want)
		}
	}
}

func TestLinearScoreExhaustsRange(t *testing.T) {
	cfg := Config{MinScore: 95, MaxEncodedPercent: 80, MinCRF: 10, MaxCRF: 55}
	// Highest reachable score is 92 at crf 10.
	linear := func(crf int) point { return point{score: 102 - float64(crf), pct: 30} }

	best, calls, err := runSearch(t, cfg, linear)
	if best != nil {
		t.Fatalf("expected no result, got crf %d", best.CRF)
	}
	if !equalInts(calls, []int{32, 21, 10}) {
		t.Errorf("tried %v, want [32 21 10]", calls)
	}

	var noGood *NoGoodCRFError
	if !errors.As(err, &noGood) {
		t.Fatalf("expected NoGoodCRFError, got %v", err)
	}
	if noGood.Last.CRF != 10 {
		t.Errorf("last attempt crf = %d, want 10", noGood.Last.CRF)
	}
	if !apperrors.IsKind(err, apperrors.KindSearch) {
		t.Error("NoGoodCRFError should classify as a search error")
	}
}

func TestOversizeFailsImmediately(t *testing.T) {
	cfg := Config{MinScore: 95, MaxEncodedPercent: 80, MinCRF: 10, MaxCRF: 55}
	oversize := func(crf int) point { return point{score: 90, pct: 100} }

	_, calls, err := runSearch(t, cfg, oversize)
	var noGood *NoGoodCRFError
	if !errors.As(err, &noGood) {
		t.Fatalf("expected NoGoodCRFError, got %v", err)
	}
	if !equalInts(calls, []int{32}) || noGood.Last.CRF != 32 {
		t.Errorf("tried %v with last %d, want a single attempt at 32", calls, noGood.Last.CRF)
	}
}

func TestAdjacentUpperNeighbourTerminates(t *testing.T) {
	cfg := Config{MinScore: 95, MaxEncodedPercent: 80, MinCRF: 20, MaxCRF: 31}
	points := map[int]point{
		25: {99, 40},
		28: {98, 50},
		31: {94, 62},
		30: {96, 85},
	}

	best, calls, err := runSearch(t, cfg, table(points))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalInts(calls, []int{25, 28, 31, 30}) {
		t.Errorf("tried %v, want [25 28 31 30]", calls)
	}
	if best.CRF != 30 {
		t.Errorf("best crf = %d, want 30", best.CRF)
	}
}

func TestWithinToleranceReturnsImmediately(t *testing.T) {
	cfg := Config{MinScore: 95, MaxEncodedPercent: 80, MinCRF: 10, MaxCRF: 55}
	best, calls, err := runSearch(t, cfg, func(int) point { return point{95.1, 40} })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.CRF != 32 || len(calls) != 1 {
		t.Errorf("got crf %d after %v, want 32 after one attempt", best.CRF, calls)
	}
}

func TestAdjacentLowerNeighbourReturned(t *testing.T) {
	cfg := Config{MinScore: 95, MaxEncodedPercent: 80, MinCRF: 10, MaxCRF: 55}
	// Sharp drop between 40 and 41.
	step := func(crf int) point {
		if crf <= 40 {
			return point{97, 30}
		}
		return point{90, 20}
	}

	best, calls, err := runSearch(t, cfg, step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.CRF != 40 {
		t.Errorf("best crf = %d after %v, want 40", best.CRF, calls)
	}
}

func TestGoodAtMaxCRFReturnsMax(t *testing.T) {
	cfg := Config{MinScore: 50, MaxEncodedPercent: 80, MinCRF: 10, MaxCRF: 55}
	best, calls, err := runSearch(t, cfg, func(int) point { return point{99, 10} })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.CRF != 55 {
		t.Errorf("best crf = %d after %v, want 55", best.CRF, calls)
	}
	if !equalInts(calls, []int{32, 43, 55}) {
		t.Errorf("tried %v, want [32 43 55]", calls)
	}
}

func TestCRFsStayInBoundsAndNeverRepeat(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		fn   func(int) point
	}{
		{"linear", Config{95, 80, 10, 55}, func(c int) point { return point{110 - 0.5*float64(c), 30} }},
		{"steep", Config{95, 80, 0, 63}, func(c int) point { return point{100 - math.Pow(float64(c)/10, 2), 30} }},
		{"flat pass", Config{90, 80, 1, 4}, func(int) point { return point{99, 20} }},
		{"flat fail", Config{90, 80, 1, 4}, func(int) point { return point{80, 20} }},
		{"single crf", Config{90, 80, 30, 30}, func(int) point { return point{95, 20} }},
		{"size bound", Config{90, 50, 10, 55}, func(c int) point { return point{120 - float64(c), 100 - float64(c)} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, calls, err := runSearch(t, tt.cfg, tt.fn)
			var noGood *NoGoodCRFError
			if err != nil && !errors.As(err, &noGood) {
				t.Fatalf("unexpected error: %v", err)
			}
			seen := map[int]bool{}
			for _, crf := range calls {
				if crf < tt.cfg.MinCRF || crf > tt.cfg.MaxCRF {
					t.Errorf("crf %d outside [%d, %d]", crf, tt.cfg.MinCRF, tt.cfg.MaxCRF)
				}
				if seen[crf] {
					t.Errorf("crf %d tried twice in %v", crf, calls)
				}
				seen[crf] = true
			}
		})
	}
}

func TestLerpStrictlyInsideBracket(t *testing.T) {
	attempt := func(crf int, score float64) Attempt {
		return Attempt{CRF: crf, Result: &sample.Result{Score: score}}
	}
	tests := []struct {
		name          string
		worse, better Attempt
		want          int
	}{
		{"interpolated", attempt(31, 94), attempt(28, 98), 30},
		{"clamped to better+1", attempt(40, 80), attempt(20, 95.01), 21},
		{"clamped to worse-1", attempt(40, 94.99), attempt(20, 99), 39},
		{"equal scores", attempt(40, 95), attempt(20, 95), 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lerp(95, tt.worse, tt.better)
			if got != tt.want {
				t.Errorf("Lerp = %d, want %d", got, tt.want)
			}
			if got <= tt.better.CRF || got >= tt.worse.CRF {
				t.Errorf("Lerp = %d not strictly inside (%d, %d)", got, tt.better.CRF, tt.worse.CRF)
			}
		})
	}
}

func TestInvalidBoundsFailBeforeEncoding(t *testing.T) {
	_, calls, err := runSearch(t, Config{MinScore: 95, MaxEncodedPercent: 80, MinCRF: 40, MaxCRF: 30}, func(int) point {
		return point{}
	})
	if !apperrors.IsKind(err, apperrors.KindPrecondition) {
		t.Errorf("expected precondition error, got %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("no encode should run, got %v", calls)
	}
}

func TestCancelledSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	enc := &fakeEncoder{fn: func(int) point {
		cancel()
		return point{90, 30}
	}}
	s := &Search{Config: *DefaultConfig(), Encode: enc.encode}

	_, err := s.Run(ctx)
	if !apperrors.IsCancelled(err) {
		t.Errorf("expected cancellation, got %v", err)
	}
	if len(enc.calls) != 1 {
		t.Errorf("search should stop after the cancelled round, got %v", enc.calls)
	}
}

func TestSearchReportsAttemptsAndProgress(t *testing.T) {
	enc := &fakeEncoder{fn: table(map[int]point{
		25: {99, 40}, 28: {98, 50}, 31: {94, 62}, 30: {96, 85},
	})}
	var attempts []int
	var progress []float64
	s := &Search{
		Config:     Config{MinScore: 95, MaxEncodedPercent: 80, MinCRF: 20, MaxCRF: 31},
		Encode:     enc.encode,
		OnAttempt:  func(a Attempt) { attempts = append(attempts, a.CRF) },
		OnProgress: func(p float64) { progress = append(progress, p) },
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalInts(attempts, []int{25, 28, 31, 30}) {
		t.Errorf("attempts = %v", attempts)
	}
	var kept []int
	for _, a := range s.Attempts() {
		kept = append(kept, a.CRF)
	}
	if !equalInts(kept, attempts) {
		t.Errorf("Attempts() = %v, want %v", kept, attempts)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 1 {
		t.Errorf("progress should end at 1, got %v", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Errorf("progress went backwards: %v", progress)
		}
	}
}
