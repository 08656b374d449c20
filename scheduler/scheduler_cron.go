package scheduler

import (
	"errors"
	"fmt"
	"time"

	robfigcron "github.com/robfig/cron/v3"
)

// ErrInvalidCronExpression reports a schedule the cron parser rejects.
// It is the only error AddJob surfaces.
var ErrInvalidCronExpression = errors.New("invalid cron expression")

// parseSpec parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week). Exact values, lists,
// ranges, steps, and "*" are accepted in every field; when both day
// fields are restricted, a time matching either one fires (traditional
// cron).
func parseSpec(expr string) (robfigcron.Schedule, error) {
	sched, err := robfigcron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCronExpression, err)
	}
	return sched, nil
}

// nextOccurrence returns the first occurrence of expr strictly after ref,
// in ref's location. The zero time means the expression has no future
// occurrence within the evaluator's search horizon.
func nextOccurrence(expr string, ref time.Time) (time.Time, error) {
	sched, err := parseSpec(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(ref), nil
}
