package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/avito-tech/accountant-sla/store"
)

func (d *DB) ListWorkingSchedule(ctx context.Context, find *store.FindWorkingSchedule) ([]*store.WorkingScheduleRow, error) {
	where, args := []string{}, []any{}
	if find.ChatID == nil {
		where = append(where, "chat_id IS NULL")
	} else {
		where, args = append(where, "chat_id = ?"), append(args, *find.ChatID)
	}

	query := `SELECT id, chat_id, weekday, start_time, end_time, timezone FROM working_schedule
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY weekday`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list working schedule: %w", err)
	}
	defer rows.Close()

	var list []*store.WorkingScheduleRow
	for rows.Next() {
		r := &store.WorkingScheduleRow{}
		if err := rows.Scan(&r.ID, &r.ChatID, &r.Weekday, &r.StartTime, &r.EndTime, &r.Timezone); err != nil {
			return nil, fmt.Errorf("failed to scan working schedule row: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func (d *DB) UpsertWorkingSchedule(ctx context.Context, rows []*store.UpsertWorkingScheduleRow) ([]*store.WorkingScheduleRow, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var chatID *int64
	if len(rows) > 0 {
		chatID = rows[0].ChatID
	}
	if chatID == nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM working_schedule WHERE chat_id IS NULL`); err != nil {
			return nil, fmt.Errorf("failed to clear working schedule: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `DELETE FROM working_schedule WHERE chat_id = ?`, *chatID); err != nil {
			return nil, fmt.Errorf("failed to clear working schedule: %w", err)
		}
	}

	out := make([]*store.WorkingScheduleRow, 0, len(rows))
	for _, r := range rows {
		row := &store.WorkingScheduleRow{ChatID: r.ChatID, Weekday: r.Weekday, StartTime: r.StartTime, EndTime: r.EndTime, Timezone: r.Timezone}
		result, err := tx.ExecContext(ctx, `INSERT INTO working_schedule (chat_id, weekday, start_time, end_time, timezone)
			VALUES (?, ?, ?, ?, ?)`, r.ChatID, r.Weekday, r.StartTime, r.EndTime, r.Timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to insert working schedule row: %w", err)
		}
		row.ID, _ = result.LastInsertId()
		out = append(out, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit working schedule update: %w", err)
	}
	return out, nil
}

func (d *DB) ListHolidays(ctx context.Context, find *store.FindHoliday) ([]*store.Holiday, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ChatID == nil {
		where = append(where, "chat_id IS NULL")
	} else {
		where, args = append(where, "chat_id = ?"), append(args, *find.ChatID)
	}
	if find.YearFrom != 0 {
		where, args = append(where, "date >= ?"), append(args, fmt.Sprintf("%04d-01-01", find.YearFrom))
	}
	if find.YearTo != 0 {
		where, args = append(where, "date <= ?"), append(args, fmt.Sprintf("%04d-12-31", find.YearTo))
	}

	query := `SELECT id, chat_id, date, name FROM holiday WHERE ` + strings.Join(where, " AND ") + ` ORDER BY date`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	defer rows.Close()

	var list []*store.Holiday
	for rows.Next() {
		h := &store.Holiday{}
		if err := rows.Scan(&h.ID, &h.ChatID, &h.Date, &h.Name); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

func (d *DB) CreateHoliday(ctx context.Context, create *store.CreateHoliday) (*store.Holiday, error) {
	h := &store.Holiday{ChatID: create.ChatID, Date: create.Date, Name: create.Name}
	result, err := d.db.ExecContext(ctx, `INSERT INTO holiday (chat_id, date, name) VALUES (?, ?, ?)
		ON CONFLICT (COALESCE(chat_id, -1), date) DO UPDATE SET name = excluded.name`, create.ChatID, create.Date, create.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create holiday: %w", err)
	}
	h.ID, _ = result.LastInsertId()
	return h, nil
}

func (d *DB) DeleteHoliday(ctx context.Context, del *store.DeleteHoliday) error {
	stmt := `DELETE FROM holiday WHERE date = ? AND chat_id `
	var args []any
	args = append(args, del.Date)
	if del.ChatID == nil {
		stmt += "IS NULL"
	} else {
		stmt += "= ?"
		args = append(args, *del.ChatID)
	}
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("holiday not found")
	}
	return nil
}
