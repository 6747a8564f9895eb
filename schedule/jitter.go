package schedule

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/socialia/errors"
)

// Fluctuation bias values for AddHumanFluctuation.
const (
	BiasEarly = "early"
	BiasLate  = "late"
	BiasNone  = "none"
)

// AddHumanFluctuation offsets a due time by a bounded random number of
// minutes so scheduled posts do not land on suspiciously exact times.
// bias "early" only moves the time backward, "late" only forward,
// anything else allows both directions.
func AddHumanFluctuation(t time.Time, maxMinutes int, bias string) time.Time {
	if maxMinutes <= 0 {
		return t
	}

	var offset int
	switch bias {
	case BiasEarly:
		offset = -rand.Intn(maxMinutes + 1)
	case BiasLate:
		offset = rand.Intn(maxMinutes + 1)
	default:
		offset = rand.Intn(2*maxMinutes+1) - maxMinutes
	}

	return t.Add(time.Duration(offset) * time.Minute)
}

// ParseScheduleTime parses a schedule-time expression relative to now.
//
// Supported forms:
//
//	"+30m", "+2h"       relative offsets
//	"15:04"             today at that time, or tomorrow if already past
//	"2026-01-23 15:04"  absolute date and time (local)
func ParseScheduleTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.Wrap(errors.ErrInvalidSchedule, "empty schedule time")
	}

	// Relative offsets (+1h, +30m)
	if strings.HasPrefix(s, "+") {
		if len(s) < 3 {
			return time.Time{}, errors.Wrapf(errors.ErrInvalidSchedule, "cannot parse %q", s)
		}
		amount, err := strconv.Atoi(s[1 : len(s)-1])
		if err != nil {
			return time.Time{}, errors.Wrapf(errors.ErrInvalidSchedule, "cannot parse %q", s)
		}
		switch s[len(s)-1] {
		case 'h':
			return now.Add(time.Duration(amount) * time.Hour), nil
		case 'm':
			return now.Add(time.Duration(amount) * time.Minute), nil
		default:
			return time.Time{}, errors.Wrapf(errors.ErrInvalidSchedule, "unknown time unit in %q (use 'h' or 'm')", s)
		}
	}

	// Full datetime
	if strings.Contains(s, "-") && strings.Contains(s, " ") {
		target, err := time.ParseInLocation("2006-01-02 15:04", s, now.Location())
		if err != nil {
			return time.Time{}, errors.Wrapf(errors.ErrInvalidSchedule, "cannot parse %q", s)
		}
		return target, nil
	}

	// Time only: today, or tomorrow if already past
	if strings.Contains(s, ":") {
		clock, err := time.ParseInLocation("15:04", s, now.Location())
		if err != nil {
			return time.Time{}, errors.Wrapf(errors.ErrInvalidSchedule, "cannot parse %q", s)
		}
		target := time.Date(now.Year(), now.Month(), now.Day(),
			clock.Hour(), clock.Minute(), 0, 0, now.Location())
		if !target.After(now) {
			target = target.AddDate(0, 0, 1)
		}
		return target, nil
	}

	return time.Time{}, errors.Wrapf(errors.ErrInvalidSchedule, "cannot parse %q", s)
}
