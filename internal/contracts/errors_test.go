package contracts

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestStepError_Unwrap(t *testing.T) {
	inner := &OptimizationFailure{Iterations: 500, Tolerance: 1e-9, Residual: 0.01}
	step := &StepError{
		Component: "optimizer",
		Date:      time.Date(2017, 3, 3, 0, 0, 0, 0, time.UTC),
		Err:       inner,
	}

	var optErr *OptimizationFailure
	if !errors.As(step, &optErr) {
		t.Fatal("expected StepError to unwrap to OptimizationFailure")
	}
	if optErr.Iterations != 500 {
		t.Errorf("Iterations = %d, want 500", optErr.Iterations)
	}
}

func TestStepError_MessageIncludesDateAndComponent(t *testing.T) {
	step := &StepError{
		Component: "index engine",
		Date:      time.Date(2016, 7, 15, 0, 0, 0, 0, time.UTC),
		Err:       &DataIntegrityError{Sector: "energy", Bar: 41, Date: time.Date(2016, 1, 4, 0, 0, 0, 0, time.UTC)},
	}

	msg := step.Error()
	for _, want := range []string{"2016-07-15", "index engine", "energy"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}

func TestUniverseResolutionError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("symbol not found")
	err := &UniverseResolutionError{Ticker: "XYZ", Sector: "utilities", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to reach the inner error")
	}
}

func TestStepRecord_CloneIsDeep(t *testing.T) {
	rec := NewStepRecord(time.Date(2017, 1, 3, 0, 0, 0, 0, time.UTC), []string{"tech", "energy"})
	rec.IndexPrice["tech"] = 101.5

	cp := rec.Clone()
	cp.IndexPrice["tech"] = 999

	if rec.IndexPrice["tech"] != 101.5 {
		t.Errorf("clone mutated the original: %v", rec.IndexPrice["tech"])
	}
}
