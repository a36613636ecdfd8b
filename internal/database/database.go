package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"salonbook/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrSlotFull is returned by AdmitBooking when the slot has no
	// remaining capacity.
	ErrSlotFull = errors.New("slot is fully booked")
)

type DB struct {
	*sql.DB
	log zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// _txlock=immediate serializes writer transactions up front, so the
	// admission count+insert cannot deadlock between deferred readers.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	if err := seedDefaultSchedule(db); err != nil {
		return nil, fmt.Errorf("seed default schedule: %w", err)
	}

	var dbLogger zerolog.Logger
	if logger != nil {
		dbLogger = logger.With().Str("component", "database").Logger()
	}
	dbLogger.Info().Str("path", path).Msg("database initialized")

	return &DB{DB: db, log: dbLogger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS schedule_settings (
            day_of_week INTEGER PRIMARY KEY,
            is_open BOOLEAN NOT NULL DEFAULT 1,
            open_time TEXT NOT NULL,
            close_time TEXT NOT NULL,
            slot_duration_minutes INTEGER NOT NULL,
            max_bookings_per_slot INTEGER NOT NULL,
            break_start TEXT,
            break_end TEXT,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS schedule_overrides (
            date TEXT PRIMARY KEY,
            is_closed BOOLEAN NOT NULL DEFAULT 0,
            open_time TEXT,
            close_time TEXT,
            max_bookings_per_slot INTEGER,
            reason TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            customer_name TEXT NOT NULL,
            customer_email TEXT NOT NULL DEFAULT '',
            customer_phone TEXT NOT NULL,
            services TEXT NOT NULL,
            booking_date TEXT NOT NULL,
            booking_minute INTEGER NOT NULL,
            booking_time TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            notes TEXT,
            total_price REAL NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_date_minute ON bookings(booking_date, booking_minute)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_phone ON bookings(customer_phone)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("executing query %s: %w", query, err)
		}
	}
	return nil
}

// seedDefaultSchedule writes the default weekly template on first
// initialization. Weekdays an admin already configured are left alone.
func seedDefaultSchedule(db *sql.DB) error {
	query := `
        INSERT OR IGNORE INTO schedule_settings (
            day_of_week, is_open, open_time, close_time,
            slot_duration_minutes, max_bookings_per_slot, break_start, break_end
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `

	for dow := 0; dow < models.DaysPerWeek; dow++ {
		day := models.DefaultDaySchedule(dow)
		_, err := db.Exec(query,
			day.DayOfWeek,
			day.IsOpen,
			day.OpenTime.Clock(),
			day.CloseTime.Clock(),
			day.SlotDuration,
			day.MaxBookingsPerSlot,
			day.BreakStart.Clock(),
			day.BreakEnd.Clock(),
		)
		if err != nil {
			return fmt.Errorf("seed weekday %d: %w", dow, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
