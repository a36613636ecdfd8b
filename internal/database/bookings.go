package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/models"
	"salonbook/internal/schedule"
)

// AdmitBooking inserts a booking after re-checking slot occupancy
// inside one transaction. The occupancy count and the insert share the
// transaction, so two concurrent submissions cannot both take the last
// opening. Returns ErrSlotFull without inserting when the slot is at
// capacity.
func (db *DB) AdmitBooking(ctx context.Context, booking *models.Booking, maxPerSlot int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin admission transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var occupied int
	countQuery := `
        SELECT COUNT(*) FROM bookings
        WHERE booking_date = ? AND booking_minute = ? AND status IN (?, ?)
    `
	err = tx.QueryRowContext(ctx, countQuery,
		booking.Date, int(booking.SlotMinute),
		models.StatusPending, models.StatusConfirmed,
	).Scan(&occupied)
	if err != nil {
		return fmt.Errorf("count slot occupancy: %w", err)
	}

	if occupied >= maxPerSlot {
		return ErrSlotFull
	}

	services, err := json.Marshal(booking.Services)
	if err != nil {
		return fmt.Errorf("encode services snapshot: %w", err)
	}

	now := time.Now()
	insertQuery := `
        INSERT INTO bookings (
            id, customer_name, customer_email, customer_phone, services,
            booking_date, booking_minute, booking_time, status, notes, total_price, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = tx.ExecContext(ctx, insertQuery,
		booking.ID,
		booking.CustomerName,
		booking.CustomerEmail,
		booking.CustomerPhone,
		string(services),
		booking.Date,
		int(booking.SlotMinute),
		booking.SlotLabel,
		booking.Status,
		booking.Notes,
		booking.TotalPrice,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit admission transaction: %w", err)
	}

	booking.CreatedAt = now
	return nil
}

// GetBooking returns a booking by ID.
func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := bookingSelect + ` WHERE id = ?`

	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListBookings returns all bookings, newest booking date and latest
// slot first, matching the admin dashboard ordering.
func (db *DB) ListBookings(ctx context.Context) ([]models.Booking, error) {
	query := bookingSelect + ` ORDER BY booking_date DESC, booking_minute DESC, created_at DESC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}

// UpdateBookingStatus sets the status of a booking. The caller checks
// transition validity; this is a plain write.
func (db *DB) UpdateBookingStatus(ctx context.Context, id, status string) error {
	result, err := db.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBooking removes a booking at any status.
func (db *DB) DeleteBooking(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPendingByPhone counts pending bookings held by a phone number.
func (db *DB) CountPendingByPhone(ctx context.Context, phone string) (int, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE customer_phone = ? AND status = ?`

	var count int
	err := db.QueryRowContext(ctx, query, phone, models.StatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending bookings: %w", err)
	}
	return count, nil
}

// SlotOccupancy groups pending+confirmed bookings for a date by slot
// minute. Cancelled and completed bookings never consume capacity.
func (db *DB) SlotOccupancy(ctx context.Context, date string) (map[schedule.Minutes]int, error) {
	query := `
        SELECT booking_minute, COUNT(*) FROM bookings
        WHERE booking_date = ? AND status IN (?, ?)
        GROUP BY booking_minute
    `

	rows, err := db.QueryContext(ctx, query, date, models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("query slot occupancy: %w", err)
	}
	defer rows.Close()

	occupancy := make(map[schedule.Minutes]int)
	for rows.Next() {
		var minute, count int
		if err := rows.Scan(&minute, &count); err != nil {
			return nil, fmt.Errorf("scan slot occupancy: %w", err)
		}
		occupancy[schedule.Minutes(minute)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slot occupancy: %w", err)
	}
	return occupancy, nil
}

const bookingSelect = `
        SELECT id, customer_name, customer_email, customer_phone, services,
               booking_date, booking_minute, booking_time, status, notes, total_price, created_at
        FROM bookings`

func scanBooking(row rowScanner) (models.Booking, error) {
	var booking models.Booking
	var services string
	var minute int
	var notes sql.NullString

	err := row.Scan(
		&booking.ID,
		&booking.CustomerName,
		&booking.CustomerEmail,
		&booking.CustomerPhone,
		&services,
		&booking.Date,
		&minute,
		&booking.SlotLabel,
		&booking.Status,
		&notes,
		&booking.TotalPrice,
		&booking.CreatedAt,
	)
	if err != nil {
		return models.Booking{}, err
	}

	booking.SlotMinute = schedule.Minutes(minute)
	if notes.Valid {
		booking.Notes = notes.String
	}
	if err := json.Unmarshal([]byte(services), &booking.Services); err != nil {
		return models.Booking{}, fmt.Errorf("decode services snapshot for %s: %w", booking.ID, err)
	}

	return booking, nil
}
