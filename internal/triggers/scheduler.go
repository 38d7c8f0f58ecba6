package triggers

import (
	"fmt"
	"time"

	"github.com/quantfolio/reindexer/internal/contracts"
	"github.com/quantfolio/reindexer/pkg/logger"
)

// Wildcard matches any weekday: the trigger fires on the first evaluated
// date inside its week window, at most once per calendar month.
const Wildcard = "*"

// Spec is a calendar trigger rule: a week of the month (counting from 1)
// and a weekday name, or the wildcard.
type Spec struct {
	WeekOfMonth int    `yaml:"week"`
	DayOfWeek   string `yaml:"day"`
}

// Validate checks the spec. Week 5 is allowed: its window (days 29..35)
// simply never matches in short months.
func (s Spec) Validate() error {
	if s.WeekOfMonth < 1 || s.WeekOfMonth > 5 {
		return &contracts.ShapeMismatchError{
			Msg: fmt.Sprintf("trigger week %d out of range [1, 5]", s.WeekOfMonth),
		}
	}

	if s.DayOfWeek == Wildcard {
		return nil
	}

	switch s.DayOfWeek {
	case "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday":
		return nil
	}
	return &contracts.ShapeMismatchError{
		Msg: fmt.Sprintf("trigger day %q is not a weekday name or %q", s.DayOfWeek, Wildcard),
	}
}

// window returns the inclusive day-of-month range for the spec's week.
func (s Spec) window() (int, int) {
	return (s.WeekOfMonth-1)*7 + 1, s.WeekOfMonth * 7
}

// Scheduler evaluates restructure and rebalance triggers against
// simulated dates. The only state it carries is the last-fired month per
// trigger kind, needed so a monthly wildcard fires exactly once per
// month. One instance belongs to one simulation run.
type Scheduler struct {
	restructure Spec
	rebalance   Spec

	lastRestructure int
	lastRebalance   int

	log *logger.Logger
}

// New creates a scheduler for one run. Both specs must already be
// validated.
func New(restructure, rebalance Spec, log *logger.Logger) *Scheduler {
	return &Scheduler{
		restructure: restructure,
		rebalance:   rebalance,
		log:         log,
	}
}

// RestructureDue reports whether a synthetic ETF restructure fires on
// the given date.
func (s *Scheduler) RestructureDue(date time.Time) bool {
	fired := evaluate(date, s.restructure, &s.lastRestructure)
	if fired {
		s.log.WithFields(map[string]interface{}{
			"date":    date.Format("2006-01-02"),
			"weekday": date.Weekday().String(),
		}).Info("Synthetic ETF restructure triggered")
	}
	return fired
}

// RebalanceDue reports whether a portfolio rebalance fires on the given
// date.
func (s *Scheduler) RebalanceDue(date time.Time) bool {
	fired := evaluate(date, s.rebalance, &s.lastRebalance)
	if fired {
		s.log.WithFields(map[string]interface{}{
			"date":    date.Format("2006-01-02"),
			"weekday": date.Weekday().String(),
		}).Info("Portfolio rebalance triggered")
	}
	return fired
}

// Prime evaluates both triggers once against the first simulated date
// with logging suppressed. Without this a wildcard trigger spanning the
// first simulated month would fire twice: once during first-run
// initialization and again on the next in-window day.
func (s *Scheduler) Prime(firstDate time.Time) {
	evaluate(firstDate, s.restructure, &s.lastRestructure)
	evaluate(firstDate, s.rebalance, &s.lastRebalance)
}

// Predicate returns a stateful evaluation closure over a single spec,
// detached from any scheduler. The synthetic index engine uses one
// fresh predicate per historical reconstruction so wildcard state never
// leaks between the reconstruction and the live stepping schedule.
func Predicate(spec Spec) func(time.Time) bool {
	var lastFired int
	return func(date time.Time) bool {
		return evaluate(date, spec, &lastFired)
	}
}

// evaluate is the trigger predicate. Scheduler state is only touched on
// a positive wildcard evaluation. The de-duplication key is
// year-qualified so a sparse trigger, such as a week-5 wildcard that
// skips short months, is never suppressed by a fire in the same month
// of an earlier year.
func evaluate(date time.Time, spec Spec, lastFired *int) bool {
	lo, hi := spec.window()
	if date.Day() < lo || date.Day() > hi {
		return false
	}

	if spec.DayOfWeek != Wildcard {
		return date.Weekday().String() == spec.DayOfWeek
	}

	key := date.Year()*12 + int(date.Month())
	if *lastFired == key {
		return false
	}
	*lastFired = key
	return true
}
