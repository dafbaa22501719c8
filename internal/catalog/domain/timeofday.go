package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the exclusive upper bound of a time of day.
const MinutesPerDay = 24 * 60

var ErrInvalidTimeOfDay = errors.New("invalid_time_of_day")

// ParseTimeOfDay converts "HH:MM" into minutes after midnight.
func ParseTimeOfDay(value string) (int, error) {
	value = strings.TrimSpace(value)
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, ErrInvalidTimeOfDay
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 || hours > 23 {
		return 0, ErrInvalidTimeOfDay
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, ErrInvalidTimeOfDay
	}
	return hours*60 + minutes, nil
}

// FormatTimeOfDay renders minutes after midnight as "HH:MM".
func FormatTimeOfDay(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
