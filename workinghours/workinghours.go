// Package workinghours computes working-minute durations between instants
// under a per-chat schedule, and the wall-clock delay until an SLA
// threshold of working minutes is reached. It is pure: no I/O, no clocks
// read internally except where a "now" is explicitly passed in.
package workinghours

import (
	"fmt"
	"time"
)

// Schedule describes the working hours that apply to a chat.
type Schedule struct {
	// Timezone is an IANA zone name, e.g. "Europe/Moscow".
	Timezone string
	// WorkingDays holds ISO weekday numbers (1=Monday .. 7=Sunday).
	WorkingDays map[int]bool
	// StartTime and EndTime are "HH:MM" wall-clock times, local to Timezone.
	StartTime string
	EndTime   string
	// Holidays are "YYYY-MM-DD" dates, local to Timezone, treated as
	// non-working regardless of WorkingDays.
	Holidays map[string]bool
	// Is24x7 short-circuits everything below: working time equals
	// wall-clock time.
	Is24x7 bool
}

// Default returns the hard-coded installation default: Mon-Fri 09:00-18:00
// in the given zone.
func Default(timezone string) Schedule {
	return Schedule{
		Timezone:    timezone,
		WorkingDays: map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true},
		StartTime:   "09:00",
		EndTime:     "18:00",
		Holidays:    map[string]bool{},
	}
}

func (s Schedule) location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("workinghours: invalid timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

func parseHHMM(hhmm string, date time.Time, loc *time.Location) (time.Time, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return time.Time{}, fmt.Errorf("workinghours: invalid time-of-day %q: %w", hhmm, err)
	}
	y, mo, d := date.Date()
	return time.Date(y, mo, d, h, m, 0, 0, loc), nil
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func (s Schedule) isWorkingDay(date time.Time) bool {
	if s.Holidays[date.Format("2006-01-02")] {
		return false
	}
	return s.WorkingDays[isoWeekday(date)]
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// CalculateWorkingMinutes returns the number of working minutes between
// from and to. Satisfies additivity: for a <= b <= c,
// CalculateWorkingMinutes(a,c) == CalculateWorkingMinutes(a,b) + CalculateWorkingMinutes(b,c).
func CalculateWorkingMinutes(from, to time.Time, s Schedule) (float64, error) {
	if !to.After(from) {
		return 0, nil
	}

	if s.Is24x7 {
		return to.Sub(from).Minutes(), nil
	}

	loc, err := s.location()
	if err != nil {
		return 0, err
	}
	from = from.In(loc)
	to = to.In(loc)

	total := 0.0
	day := startOfDay(from)
	for day.Before(to) {
		nextDay := day.AddDate(0, 0, 1)
		segStart := maxTime(from, day)
		segEnd := minTime(to, nextDay)

		if segEnd.After(segStart) && s.isWorkingDay(day) {
			wStart, err := parseHHMM(s.StartTime, day, loc)
			if err != nil {
				return 0, err
			}
			wEnd, err := parseHHMM(s.EndTime, day, loc)
			if err != nil {
				return 0, err
			}
			ws := maxTime(segStart, wStart)
			we := minTime(segEnd, wEnd)
			if we.After(ws) {
				total += we.Sub(ws).Minutes()
			}
		}

		day = nextDay
	}

	return total, nil
}

// CalculateDelayUntilBreach finds the earliest instant B such that
// CalculateWorkingMinutes(from, B, S) >= threshold, and returns B minus
// now, clamped to >= 0. The delay (not the deadline) is what callers pass
// to the job queue, so a threshold spanning a weekend produces a wall-clock
// delay that skips the non-working interval.
func CalculateDelayUntilBreach(from time.Time, thresholdMinutes float64, s Schedule, now time.Time) (time.Duration, error) {
	breachAt, err := BreachInstant(from, thresholdMinutes, s)
	if err != nil {
		return 0, err
	}
	delay := breachAt.Sub(now)
	if delay < 0 {
		return 0, nil
	}
	return delay, nil
}

// BreachInstant finds the earliest instant B such that
// CalculateWorkingMinutes(from, B, S) >= thresholdMinutes.
func BreachInstant(from time.Time, thresholdMinutes float64, s Schedule) (time.Time, error) {
	if thresholdMinutes <= 0 {
		return from, nil
	}
	if s.Is24x7 {
		return from.Add(time.Duration(thresholdMinutes * float64(time.Minute))), nil
	}

	loc, err := s.location()
	if err != nil {
		return time.Time{}, err
	}
	from = from.In(loc)

	remaining := thresholdMinutes
	day := startOfDay(from)
	cursor := from

	// Bound the search so a misconfigured schedule (e.g. no working days
	// at all) cannot loop forever.
	for i := 0; i < 3650; i++ {
		if s.isWorkingDay(day) {
			wStart, err := parseHHMM(s.StartTime, day, loc)
			if err != nil {
				return time.Time{}, err
			}
			wEnd, err := parseHHMM(s.EndTime, day, loc)
			if err != nil {
				return time.Time{}, err
			}
			segStart := maxTime(cursor, wStart)
			if segStart.Before(wEnd) {
				available := wEnd.Sub(segStart).Minutes()
				if available >= remaining {
					return segStart.Add(time.Duration(remaining * float64(time.Minute))), nil
				}
				remaining -= available
			}
		}

		day = day.AddDate(0, 0, 1)
		cursor = day
	}

	return time.Time{}, fmt.Errorf("workinghours: no working day found within 10 years for schedule with days %v", s.WorkingDays)
}
