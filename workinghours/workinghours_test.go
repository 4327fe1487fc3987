package workinghours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func moscowSchedule() Schedule {
	return Default("Europe/Moscow")
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	parsed, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return parsed
}

func TestCalculateWorkingMinutesOnTimeResponse(t *testing.T) {
	from := mustTime(t, "2025-03-04 10:00")
	to := mustTime(t, "2025-03-04 10:45")

	minutes, err := CalculateWorkingMinutes(from, to, moscowSchedule())
	require.NoError(t, err)
	require.InDelta(t, 45, minutes, 0.001)
}

func TestCalculateWorkingMinutesAcrossWeekend(t *testing.T) {
	from := mustTime(t, "2025-03-07 17:50")
	to := mustTime(t, "2025-03-10 09:50")

	minutes, err := CalculateWorkingMinutes(from, to, moscowSchedule())
	require.NoError(t, err)
	require.InDelta(t, 60, minutes, 0.001)
}

func TestCalculateWorkingMinutesAdditivity(t *testing.T) {
	s := moscowSchedule()
	a := mustTime(t, "2025-03-07 08:00")
	b := mustTime(t, "2025-03-10 10:00")
	c := mustTime(t, "2025-03-11 12:00")

	ac, err := CalculateWorkingMinutes(a, c, s)
	require.NoError(t, err)
	ab, err := CalculateWorkingMinutes(a, b, s)
	require.NoError(t, err)
	bc, err := CalculateWorkingMinutes(b, c, s)
	require.NoError(t, err)

	require.InDelta(t, ac, ab+bc, 0.001)
}

func TestCalculateWorkingMinutes24x7Equivalence(t *testing.T) {
	s := moscowSchedule()
	s.Is24x7 = true
	from := mustTime(t, "2025-03-07 17:50")
	to := mustTime(t, "2025-03-10 09:50")

	minutes, err := CalculateWorkingMinutes(from, to, s)
	require.NoError(t, err)
	require.InDelta(t, to.Sub(from).Minutes(), minutes, 0.001)
}

func TestCalculateWorkingMinutesHoliday(t *testing.T) {
	s := moscowSchedule()
	s.Holidays["2025-03-10"] = true // Monday becomes a holiday
	from := mustTime(t, "2025-03-07 17:50")
	to := mustTime(t, "2025-03-11 09:50")

	minutes, err := CalculateWorkingMinutes(from, to, s)
	require.NoError(t, err)
	require.InDelta(t, 60, minutes, 0.001) // Friday's 17:50-18:00 plus Tuesday's 09:00-09:50
}

func TestBreachInstantAcrossWeekend(t *testing.T) {
	s := moscowSchedule()
	from := mustTime(t, "2025-03-07 17:50")

	breach, err := BreachInstant(from, 60, s)
	require.NoError(t, err)
	require.Equal(t, mustTime(t, "2025-03-10 09:50"), breach)
}

func TestCalculateDelayUntilBreachClampsToZero(t *testing.T) {
	s := moscowSchedule()
	from := mustTime(t, "2025-03-04 10:00")
	now := mustTime(t, "2025-03-04 12:00") // after the deadline already

	delay, err := CalculateDelayUntilBreach(from, 60, s, now)
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), delay)
}

func TestCalculateDelayUntilBreachOnTime(t *testing.T) {
	s := moscowSchedule()
	from := mustTime(t, "2025-03-04 10:00")
	now := from

	delay, err := CalculateDelayUntilBreach(from, 60, s, now)
	require.NoError(t, err)
	require.InDelta(t, (60 * time.Minute).Seconds(), delay.Seconds(), 1)
}
