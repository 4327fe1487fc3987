package postgres

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
		where, args = append(where, "chat_id = "+placeholder(len(args)+1)), append(args, *find.ChatID)
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

// UpsertWorkingSchedule replaces the full weekday set for a chat (or the
// global default when ChatID is nil) in a single transaction.
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
	deleteStmt := `DELETE FROM working_schedule WHERE chat_id `
	if chatID == nil {
		deleteStmt += "IS NULL"
		if _, err := tx.ExecContext(ctx, deleteStmt); err != nil {
			return nil, fmt.Errorf("failed to clear working schedule: %w", err)
		}
	} else {
		deleteStmt += "= " + placeholder(1)
		if _, err := tx.ExecContext(ctx, deleteStmt, *chatID); err != nil {
			return nil, fmt.Errorf("failed to clear working schedule: %w", err)
		}
	}

	out := make([]*store.WorkingScheduleRow, 0, len(rows))
	for _, r := range rows {
		row := &store.WorkingScheduleRow{ChatID: r.ChatID, Weekday: r.Weekday, StartTime: r.StartTime, EndTime: r.EndTime, Timezone: r.Timezone}
		stmt := `INSERT INTO working_schedule (chat_id, weekday, start_time, end_time, timezone)
			VALUES (` + placeholders(5) + `) RETURNING id`
		if err := tx.QueryRowContext(ctx, stmt, r.ChatID, r.Weekday, r.StartTime, r.EndTime, r.Timezone).Scan(&row.ID); err != nil {
			return nil, fmt.Errorf("failed to insert working schedule row: %w", err)
		}
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
		where, args = append(where, "chat_id = "+placeholder(len(args)+1)), append(args, *find.ChatID)
	}
	if find.YearFrom != 0 {
		where, args = append(where, "date >= "+placeholder(len(args)+1)), append(args, fmt.Sprintf("%04d-01-01", find.YearFrom))
	}
	if find.YearTo != 0 {
		where, args = append(where, "date <= "+placeholder(len(args)+1)), append(args, fmt.Sprintf("%04d-12-31", find.YearTo))
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
	stmt := `INSERT INTO holiday (chat_id, date, name) VALUES (` + placeholders(3) + `)
		ON CONFLICT (COALESCE(chat_id, -1), date) DO UPDATE SET name = EXCLUDED.name RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, create.ChatID, create.Date, create.Name).Scan(&h.ID); err != nil {
		return nil, fmt.Errorf("failed to create holiday: %w", err)
	}
	return h, nil
}

func (d *DB) DeleteHoliday(ctx context.Context, del *store.DeleteHoliday) error {
	stmt := `DELETE FROM holiday WHERE date = ` + placeholder(1) + ` AND chat_id `
	var args []any
	args = append(args, del.Date)
	if del.ChatID == nil {
		stmt += "IS NULL"
	} else {
		stmt += "= " + placeholder(2)
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
