package store

import "context"

// WorkingScheduleRow is one active weekday entry for a chat (or, when
// ChatID is nil, for the global default schedule).
type WorkingScheduleRow struct {
	ID        int64
	ChatID    *int64
	Weekday   int // ISO: 1=Monday .. 7=Sunday
	StartTime string
	EndTime   string
	Timezone  string
}

type FindWorkingSchedule struct {
	ChatID *int64 // nil matches the global default rows
}

type UpsertWorkingScheduleRow struct {
	ChatID    *int64
	Weekday   int
	StartTime string
	EndTime   string
	Timezone  string
}

func (s *Store) ListWorkingSchedule(ctx context.Context, find *FindWorkingSchedule) ([]*WorkingScheduleRow, error) {
	return s.driver.ListWorkingSchedule(ctx, find)
}

func (s *Store) UpsertWorkingSchedule(ctx context.Context, rows []*UpsertWorkingScheduleRow) ([]*WorkingScheduleRow, error) {
	return s.driver.UpsertWorkingSchedule(ctx, rows)
}

// Holiday is a single non-working calendar date, scoped to a chat or global.
type Holiday struct {
	ID     int64
	ChatID *int64 // nil = global holiday
	Date   string // "YYYY-MM-DD"
	Name   string
}

type FindHoliday struct {
	ChatID   *int64
	YearFrom int
	YearTo   int
}

type CreateHoliday struct {
	ChatID *int64
	Date   string
	Name   string
}

type DeleteHoliday struct {
	ChatID *int64
	Date   string
}

func (s *Store) ListHolidays(ctx context.Context, find *FindHoliday) ([]*Holiday, error) {
	return s.driver.ListHolidays(ctx, find)
}

func (s *Store) CreateHoliday(ctx context.Context, create *CreateHoliday) (*Holiday, error) {
	return s.driver.CreateHoliday(ctx, create)
}

func (s *Store) DeleteHoliday(ctx context.Context, del *DeleteHoliday) error {
	return s.driver.DeleteHoliday(ctx, del)
}
