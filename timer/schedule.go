package timer

import (
	"context"

	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/workinghours"
)

// ResolveSchedule builds the working-hours schedule that applies to a
// chat: chat-level rows if any exist, else the global default rows, else
// the hard-coded installation default. Holidays are merged the same way,
// additively: a date on either the chat's or the global holiday list is
// treated as non-working.
func ResolveSchedule(ctx context.Context, st *store.Store, chatID int64, is24x7 bool, fallbackTimezone string) (workinghours.Schedule, error) {
	if is24x7 {
		return workinghours.Schedule{Is24x7: true}, nil
	}

	rows, err := st.ListWorkingSchedule(ctx, &store.FindWorkingSchedule{ChatID: &chatID})
	if err != nil {
		return workinghours.Schedule{}, err
	}
	if len(rows) == 0 {
		rows, err = st.ListWorkingSchedule(ctx, &store.FindWorkingSchedule{ChatID: nil})
		if err != nil {
			return workinghours.Schedule{}, err
		}
	}

	var schedule workinghours.Schedule
	if len(rows) == 0 {
		schedule = workinghours.Default(fallbackTimezone)
	} else {
		schedule = workinghours.Schedule{
			Timezone:    rows[0].Timezone,
			WorkingDays: map[int]bool{},
			StartTime:   rows[0].StartTime,
			EndTime:     rows[0].EndTime,
			Holidays:    map[string]bool{},
		}
		for _, r := range rows {
			schedule.WorkingDays[r.Weekday] = true
		}
	}

	chatHolidays, err := st.ListHolidays(ctx, &store.FindHoliday{ChatID: &chatID})
	if err != nil {
		return workinghours.Schedule{}, err
	}
	globalHolidays, err := st.ListHolidays(ctx, &store.FindHoliday{ChatID: nil})
	if err != nil {
		return workinghours.Schedule{}, err
	}
	for _, h := range chatHolidays {
		schedule.Holidays[h.Date] = true
	}
	for _, h := range globalHolidays {
		schedule.Holidays[h.Date] = true
	}

	return schedule, nil
}
