// Package schedule holds the pure time-grid math for the booking day:
// minute-of-day values, their 12-hour display labels and the slot grid
// generator. Nothing here touches the clock, storage or the network.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// Minutes is a minute-of-day value (0 = midnight, 540 = 9:00 AM).
// Slots are keyed by Minutes internally; the "9:00 AM" label exists
// only at the JSON boundary and in display columns.
type Minutes int

const minutesPerDay = 24 * 60

// ParseClock parses "HH:MM" or "HH:MM:SS" into a minute-of-day value.
// Seconds are accepted for storage compatibility and discarded.
func ParseClock(s string) (Minutes, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in clock value %q", s)
	}
	mins, err := strconv.Atoi(parts[1])
	if err != nil || mins < 0 || mins > 59 {
		return 0, fmt.Errorf("invalid minute in clock value %q", s)
	}

	return Minutes(hours*60 + mins), nil
}

// ParseLabel parses a 12-hour display label such as "9:00 AM" or
// "12:30 PM" back into a minute-of-day value.
func ParseLabel(s string) (Minutes, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid slot label %q", s)
	}

	period := strings.ToUpper(fields[1])
	if period != "AM" && period != "PM" {
		return 0, fmt.Errorf("invalid period in slot label %q", s)
	}

	parts := strings.Split(fields[0], ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time in slot label %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 1 || hours > 12 {
		return 0, fmt.Errorf("invalid hour in slot label %q", s)
	}
	mins, err := strconv.Atoi(parts[1])
	if err != nil || mins < 0 || mins > 59 {
		return 0, fmt.Errorf("invalid minute in slot label %q", s)
	}

	if period == "PM" && hours != 12 {
		hours += 12
	}
	if period == "AM" && hours == 12 {
		hours = 0
	}

	return Minutes(hours*60 + mins), nil
}

// Clock renders the value as "HH:MM:SS" for storage.
func (m Minutes) Clock() string {
	return fmt.Sprintf("%02d:%02d:00", int(m)/60, int(m)%60)
}

// Label renders the value in 12-hour display form: "9:00 AM", "12:30 PM".
func (m Minutes) Label() string {
	hours := int(m) / 60
	mins := int(m) % 60

	period := "AM"
	if hours >= 12 {
		period = "PM"
	}

	displayHour := hours % 12
	if displayHour == 0 {
		displayHour = 12
	}

	return fmt.Sprintf("%d:%02d %s", displayHour, mins, period)
}

// Valid reports whether the value lies within a single day.
func (m Minutes) Valid() bool {
	return m >= 0 && m < minutesPerDay
}

// Slots generates the ordered slot-start grid for one day: starting at
// open, stepping by stepMinutes while strictly before close. A slot
// whose start falls inside [breakStart, breakEnd) is skipped; the
// exclusion tests the start instant only, never the slot's span. Pass
// breakStart = breakEnd = 0 (or any empty interval) for no break.
//
// The result is strictly increasing by construction. Open >= close
// yields an empty grid.
func Slots(open, close Minutes, stepMinutes int, breakStart, breakEnd Minutes) []Minutes {
	if stepMinutes <= 0 || open >= close {
		return nil
	}

	hasBreak := breakStart < breakEnd

	var grid []Minutes
	for current := open; current < close; current += Minutes(stepMinutes) {
		if hasBreak && current >= breakStart && current < breakEnd {
			continue
		}
		grid = append(grid, current)
	}
	return grid
}

// Labels maps a grid to its display labels, preserving order.
func Labels(grid []Minutes) []string {
	labels := make([]string, len(grid))
	for i, m := range grid {
		labels[i] = m.Label()
	}
	return labels
}
