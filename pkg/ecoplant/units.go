// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ecoplant

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Time units accepted from the UI
const (
	UnitSeconds = "segundos"
	UnitMinutes = "minutos"
	UnitHours   = "horas"
)

// Offset between device time (GMT0) and local time (GMT-5)
const LocalOffsetHours = 5

// hour12Pattern accepts "8 a", "10 p.m", "7:00 a", "3:00 pm", "12 a.m."
var hour12Pattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*([ap])\.?\s*(?:m\.?)?\s*$`)

// SecondsToHuman formats a duration in Spanish, e.g. "1 hora, 2 minutos y 3 segundos"
func SecondsToHuman(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	parts := []string{}
	if hours > 0 {
		parts = append(parts, pluralize(hours, "hora"))
	}
	if minutes > 0 {
		parts = append(parts, pluralize(minutes, "minuto"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, pluralize(seconds, "segundo"))
	}

	if len(parts) == 1 {
		return parts[0]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + " y " + last
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// UnitToSeconds converts a magnitude in segundos, minutos or horas to seconds
func UnitToSeconds(unit string, magnitude float64) (int, error) {
	var factor float64
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case UnitSeconds:
		factor = 1
	case UnitMinutes:
		factor = 60
	case UnitHours:
		factor = 3600
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}
	return int(math.Round(magnitude * factor)), nil
}

// To12Hour renders a 24-hour value as a zero-padded 12-hour clock hour
func To12Hour(hour24 int) string {
	hour24 = ShiftTimezone(hour24, 0)
	if hour24 == 0 || hour24 == 12 {
		return "12"
	}
	return fmt.Sprintf("%02d", hour24%12)
}

// Meridiem returns "a.m" or "p.m" for a 24-hour value
func Meridiem(hour24 int) string {
	if ShiftTimezone(hour24, 0) < 12 {
		return "a.m"
	}
	return "p.m"
}

// ShiftTimezone adds offsetHours and wraps into [0,24)
func ShiftTimezone(hour24, offsetHours int) int {
	return ((hour24+offsetHours)%24 + 24) % 24
}

// ToGMT0 converts a local (GMT-5) hour to device time
func ToGMT0(hour24 int) int {
	return ShiftTimezone(hour24, LocalOffsetHours)
}

// ToLocal converts a device (GMT0) hour to local GMT-5 time
func ToLocal(hour24 int) int {
	return ShiftTimezone(hour24, -LocalOffsetHours)
}

// Parse12HourToken converts tokens like "8 a" or "10 p.m" to a 24-hour value
func Parse12HourToken(token string) (int, error) {
	m := hour12Pattern.FindStringSubmatch(token)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHour, token)
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHour, token)
	}

	pm := strings.EqualFold(m[3], "p")
	switch {
	case hour == 12 && !pm:
		return 0, nil
	case hour == 12 && pm:
		return 12, nil
	case pm:
		return hour + 12, nil
	default:
		return hour, nil
	}
}
