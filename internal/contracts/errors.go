package contracts

import (
	"fmt"
	"time"
)

// UniverseResolutionError reports a ticker the execution layer cannot
// resolve or trade. Recoverable: the ticker is pruned from its sector
// and the run continues.
type UniverseResolutionError struct {
	Ticker string
	Sector string
	Err    error
}

func (e *UniverseResolutionError) Error() string {
	return fmt.Sprintf("ticker %s (sector %s) failed resolution: %v", e.Ticker, e.Sector, e.Err)
}

func (e *UniverseResolutionError) Unwrap() error {
	return e.Err
}

// DataIntegrityError reports a non-finite synthetic index level after
// fill-back/fill-forward. Fatal: it indicates missing price data the
// fill could not repair.
type DataIntegrityError struct {
	Sector string
	Bar    int
	Date   time.Time
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("non-finite index level for sector %s at bar %d (%s)",
		e.Sector, e.Bar, e.Date.Format("2006-01-02"))
}

// OptimizationFailure reports that the minimum-variance solver did not
// converge within its iteration cap. The caller decides whether to retry
// with a fresh initial guess or abort the run.
type OptimizationFailure struct {
	Iterations int
	Tolerance  float64
	Residual   float64
}

func (e *OptimizationFailure) Error() string {
	return fmt.Sprintf("minimum-variance solver did not converge after %d iterations (tol %g, residual %g)",
		e.Iterations, e.Tolerance, e.Residual)
}

// ShapeMismatchError reports malformed solver input or an out-of-range
// trigger spec. Programmer or configuration error, always fatal.
type ShapeMismatchError struct {
	Msg string
}

func (e *ShapeMismatchError) Error() string {
	return e.Msg
}

// StepError wraps a failure raised during one simulated step with the
// component and date needed to reproduce it against the same historical
// window.
type StepError struct {
	Component string
	Date      time.Time
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed in %s: %v", e.Date.Format("2006-01-02"), e.Component, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
