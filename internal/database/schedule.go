package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"salonbook/internal/models"
	"salonbook/internal/schedule"
)

// GetTemplate returns all seven weekday rows ordered by weekday,
// synthesizing the default configuration for weekdays that were never
// stored.
func (db *DB) GetTemplate(ctx context.Context) ([]models.DaySchedule, error) {
	query := `
        SELECT day_of_week, is_open, open_time, close_time,
               slot_duration_minutes, max_bookings_per_slot, break_start, break_end
        FROM schedule_settings ORDER BY day_of_week
    `

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query schedule settings: %w", err)
	}
	defer rows.Close()

	stored := make(map[int]models.DaySchedule, models.DaysPerWeek)
	for rows.Next() {
		day, err := scanDaySchedule(rows)
		if err != nil {
			return nil, err
		}
		stored[day.DayOfWeek] = day
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule settings: %w", err)
	}

	template := make([]models.DaySchedule, 0, models.DaysPerWeek)
	for dow := 0; dow < models.DaysPerWeek; dow++ {
		if day, ok := stored[dow]; ok {
			template = append(template, day)
		} else {
			template = append(template, models.DefaultDaySchedule(dow))
		}
	}
	return template, nil
}

// GetDaySchedule returns the stored row for a weekday, or nil when the
// weekday was never configured.
func (db *DB) GetDaySchedule(ctx context.Context, dayOfWeek int) (*models.DaySchedule, error) {
	query := `
        SELECT day_of_week, is_open, open_time, close_time,
               slot_duration_minutes, max_bookings_per_slot, break_start, break_end
        FROM schedule_settings WHERE day_of_week = ?
    `

	row := db.QueryRowContext(ctx, query, dayOfWeek)
	day, err := scanDaySchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &day, nil
}

// PutTemplate replaces the weekly template in a single transaction so
// a mid-write failure cannot leave mismatched weekday rows.
func (db *DB) PutTemplate(ctx context.Context, template []models.DaySchedule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin template transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
        INSERT INTO schedule_settings (
            day_of_week, is_open, open_time, close_time,
            slot_duration_minutes, max_bookings_per_slot, break_start, break_end, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(day_of_week) DO UPDATE SET
            is_open = excluded.is_open,
            open_time = excluded.open_time,
            close_time = excluded.close_time,
            slot_duration_minutes = excluded.slot_duration_minutes,
            max_bookings_per_slot = excluded.max_bookings_per_slot,
            break_start = excluded.break_start,
            break_end = excluded.break_end,
            updated_at = excluded.updated_at
    `

	for _, day := range template {
		var breakStart, breakEnd interface{}
		if day.BreakStart != nil && day.BreakEnd != nil {
			breakStart = day.BreakStart.Clock()
			breakEnd = day.BreakEnd.Clock()
		}

		_, err := tx.ExecContext(ctx, query,
			day.DayOfWeek,
			day.IsOpen,
			day.OpenTime.Clock(),
			day.CloseTime.Clock(),
			day.SlotDuration,
			day.MaxBookingsPerSlot,
			breakStart,
			breakEnd,
		)
		if err != nil {
			return fmt.Errorf("upsert weekday %d: %w", day.DayOfWeek, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template transaction: %w", err)
	}
	return nil
}

// GetOverride returns the override for an exact date, or nil when none
// exists.
func (db *DB) GetOverride(ctx context.Context, date string) (*models.DateOverride, error) {
	query := `
        SELECT date, is_closed, open_time, close_time, max_bookings_per_slot, reason, created_at
        FROM schedule_overrides WHERE date = ?
    `

	override, err := scanOverride(db.QueryRowContext(ctx, query, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &override, nil
}

// ListOverrides returns overrides ordered by date. An empty fromDate
// lists everything; otherwise only dates >= fromDate are returned.
func (db *DB) ListOverrides(ctx context.Context, fromDate string) ([]models.DateOverride, error) {
	query := `
        SELECT date, is_closed, open_time, close_time, max_bookings_per_slot, reason, created_at
        FROM schedule_overrides
    `
	args := []interface{}{}
	if fromDate != "" {
		query += ` WHERE date >= ?`
		args = append(args, fromDate)
	}
	query += ` ORDER BY date`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	var overrides []models.DateOverride
	for rows.Next() {
		override, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, override)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}
	return overrides, nil
}

// UpsertOverride creates or replaces the override for its date. At most
// one override exists per date.
func (db *DB) UpsertOverride(ctx context.Context, override *models.DateOverride) error {
	query := `
        INSERT INTO schedule_overrides (date, is_closed, open_time, close_time, max_bookings_per_slot, reason)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(date) DO UPDATE SET
            is_closed = excluded.is_closed,
            open_time = excluded.open_time,
            close_time = excluded.close_time,
            max_bookings_per_slot = excluded.max_bookings_per_slot,
            reason = excluded.reason
    `

	var openTime, closeTime, maxPerSlot, reason interface{}
	if override.OpenTime != nil {
		openTime = override.OpenTime.Clock()
	}
	if override.CloseTime != nil {
		closeTime = override.CloseTime.Clock()
	}
	if override.MaxBookingsPerSlot != nil {
		maxPerSlot = *override.MaxBookingsPerSlot
	}
	if override.Reason != "" {
		reason = override.Reason
	}

	_, err := db.ExecContext(ctx, query, override.Date, override.IsClosed, openTime, closeTime, maxPerSlot, reason)
	if err != nil {
		return fmt.Errorf("upsert override %s: %w", override.Date, err)
	}
	return nil
}

// DeleteOverride removes the override for a date. Deleting a date
// without an override is not an error.
func (db *DB) DeleteOverride(ctx context.Context, date string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM schedule_overrides WHERE date = ?`, date)
	if err != nil {
		return fmt.Errorf("delete override %s: %w", date, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDaySchedule(row rowScanner) (models.DaySchedule, error) {
	var day models.DaySchedule
	var openTime, closeTime string
	var breakStart, breakEnd sql.NullString

	err := row.Scan(
		&day.DayOfWeek,
		&day.IsOpen,
		&openTime,
		&closeTime,
		&day.SlotDuration,
		&day.MaxBookingsPerSlot,
		&breakStart,
		&breakEnd,
	)
	if err != nil {
		return models.DaySchedule{}, err
	}

	if day.OpenTime, err = schedule.ParseClock(openTime); err != nil {
		return models.DaySchedule{}, fmt.Errorf("weekday %d open_time: %w", day.DayOfWeek, err)
	}
	if day.CloseTime, err = schedule.ParseClock(closeTime); err != nil {
		return models.DaySchedule{}, fmt.Errorf("weekday %d close_time: %w", day.DayOfWeek, err)
	}

	if breakStart.Valid && breakEnd.Valid {
		bs, err := schedule.ParseClock(breakStart.String)
		if err != nil {
			return models.DaySchedule{}, fmt.Errorf("weekday %d break_start: %w", day.DayOfWeek, err)
		}
		be, err := schedule.ParseClock(breakEnd.String)
		if err != nil {
			return models.DaySchedule{}, fmt.Errorf("weekday %d break_end: %w", day.DayOfWeek, err)
		}
		day.BreakStart = &bs
		day.BreakEnd = &be
	}

	return day, nil
}

func scanOverride(row rowScanner) (models.DateOverride, error) {
	var override models.DateOverride
	var openTime, closeTime, reason sql.NullString
	var maxPerSlot sql.NullInt64

	err := row.Scan(
		&override.Date,
		&override.IsClosed,
		&openTime,
		&closeTime,
		&maxPerSlot,
		&reason,
		&override.CreatedAt,
	)
	if err != nil {
		return models.DateOverride{}, err
	}

	if openTime.Valid {
		m, err := schedule.ParseClock(openTime.String)
		if err != nil {
			return models.DateOverride{}, fmt.Errorf("override %s open_time: %w", override.Date, err)
		}
		override.OpenTime = &m
	}
	if closeTime.Valid {
		m, err := schedule.ParseClock(closeTime.String)
		if err != nil {
			return models.DateOverride{}, fmt.Errorf("override %s close_time: %w", override.Date, err)
		}
		override.CloseTime = &m
	}
	if maxPerSlot.Valid {
		v := int(maxPerSlot.Int64)
		override.MaxBookingsPerSlot = &v
	}
	if reason.Valid {
		override.Reason = reason.String
	}

	return override, nil
}
