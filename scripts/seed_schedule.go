// Seed tool: loads a weekly schedule from YAML and replaces the stored
// template, so a fresh deployment starts from the salon's real hours
// instead of the built-in defaults.
//
//	go run scripts/seed_schedule.go -schedule configs/schedule.yaml -db ./data/salonbook.db
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"salonbook/internal/database"
	"salonbook/internal/models"
	"salonbook/internal/schedule"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type dayYAML struct {
	DayOfWeek          int     `yaml:"day_of_week"`
	IsOpen             bool    `yaml:"is_open"`
	OpenTime           string  `yaml:"open_time"`
	CloseTime          string  `yaml:"close_time"`
	SlotDuration       int     `yaml:"slot_duration_minutes"`
	MaxBookingsPerSlot int     `yaml:"max_bookings_per_slot"`
	BreakStart         *string `yaml:"break_start"`
	BreakEnd           *string `yaml:"break_end"`
}

type scheduleConfig struct {
	Days []dayYAML `yaml:"days"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		schedulePath = flag.String("schedule", "configs/schedule.yaml", "path to schedule.yaml")
		dbPath       = flag.String("db", "./data/salonbook.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*schedulePath)
	if err != nil {
		return fmt.Errorf("read schedule: %w", err)
	}
	var cfg scheduleConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse schedule: %w", err)
	}
	if len(cfg.Days) != models.DaysPerWeek {
		return fmt.Errorf("expected %d weekday entries, got %d", models.DaysPerWeek, len(cfg.Days))
	}

	rows := make([]models.DaySchedule, 0, len(cfg.Days))
	for _, day := range cfg.Days {
		row, err := toRow(day)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PutTemplate(ctx, rows); err != nil {
		return fmt.Errorf("write template: %w", err)
	}

	logger.Info().Int("days", len(rows)).Str("db", *dbPath).Msg("weekly schedule seeded")
	return nil
}

func toRow(day dayYAML) (models.DaySchedule, error) {
	row := models.DaySchedule{
		DayOfWeek:          day.DayOfWeek,
		IsOpen:             day.IsOpen,
		SlotDuration:       day.SlotDuration,
		MaxBookingsPerSlot: day.MaxBookingsPerSlot,
	}

	var err error
	if row.OpenTime, err = schedule.ParseClock(day.OpenTime); err != nil {
		return row, fmt.Errorf("day %d open_time: %w", day.DayOfWeek, err)
	}
	if row.CloseTime, err = schedule.ParseClock(day.CloseTime); err != nil {
		return row, fmt.Errorf("day %d close_time: %w", day.DayOfWeek, err)
	}
	if day.BreakStart != nil {
		v, err := schedule.ParseClock(*day.BreakStart)
		if err != nil {
			return row, fmt.Errorf("day %d break_start: %w", day.DayOfWeek, err)
		}
		row.BreakStart = &v
	}
	if day.BreakEnd != nil {
		v, err := schedule.ParseClock(*day.BreakEnd)
		if err != nil {
			return row, fmt.Errorf("day %d break_end: %w", day.DayOfWeek, err)
		}
		row.BreakEnd = &v
	}
	return row, nil
}
