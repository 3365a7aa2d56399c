// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ecoplant

import "fmt"

// FormatWindow renders a GMT0 operating window in local time, e.g.
// "08:00 a.m a 06:00 p.m". Equal start and end hours mean the device runs
// all day and render as "24 horas".
func FormatWindow(startGMT0, endGMT0 int) string {
	if startGMT0 == endGMT0 {
		return AlwaysOn
	}
	return formatLocalHour(ToLocal(startGMT0)) + " a " + formatLocalHour(ToLocal(endGMT0))
}

func formatLocalHour(hour24 int) string {
	return fmt.Sprintf("%s:00 %s", To12Hour(hour24), Meridiem(hour24))
}
