package models

import (
	"time"

	"salonbook/internal/schedule"
)

// ServiceItem is the per-service snapshot embedded in a booking.
// Prices are frozen at booking time; there is no foreign key back to
// the service catalog.
type ServiceItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Duration string  `json:"duration"`
}

type Booking struct {
	ID            string           `json:"id"`
	CustomerName  string           `json:"customerName"`
	CustomerEmail string           `json:"customerEmail"`
	CustomerPhone string           `json:"customerPhone"`
	Services      []ServiceItem    `json:"services"`
	Date          string           `json:"bookingDate"` // YYYY-MM-DD
	SlotMinute    schedule.Minutes `json:"-"`
	SlotLabel     string           `json:"bookingTime"` // "9:00 AM"
	Status        string           `json:"status"`      // pending, confirmed, completed, cancelled
	Notes         string           `json:"notes,omitempty"`
	TotalPrice    float64          `json:"totalPrice"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// TimeSlot is one entry of the availability response.
type TimeSlot struct {
	Time           string `json:"time"`
	Available      bool   `json:"available"`
	RemainingSlots int    `json:"remainingSlots"`
	MaxSlots       int    `json:"maxSlots"`
}

// DayAvailability is the full availability payload for a date.
type DayAvailability struct {
	Date     string       `json:"date"`
	IsOpen   bool         `json:"isOpen"`
	Reason   string       `json:"reason,omitempty"`
	Slots    []TimeSlot   `json:"slots"`
	Settings *DaySettings `json:"settings,omitempty"`
}

// DaySettings echoes the effective configuration used to build the grid.
type DaySettings struct {
	OpenTime           string `json:"openTime"`
	CloseTime          string `json:"closeTime"`
	SlotDuration       int    `json:"slotDuration"`
	MaxBookingsPerSlot int    `json:"maxBookingsPerSlot"`
}
