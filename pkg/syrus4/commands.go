// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package syrus4

import (
	"fmt"
	"strings"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
)

// BuildSetCommand returns the publish command that sets code on the device.
// Syrus 4 commands are self-contained, so no template is needed.
//
// An empty string with a nil error means the converted value is out of range.
func BuildSetCommand(code ecoplant.OperationCode, magnitude float64, unit string, calibration *int) (string, error) {
	key, err := WireKey(code)
	if err != nil {
		return "", err
	}

	value, ok, err := ecoplant.WireValue(code, magnitude, unit, calibration)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	return fmt.Sprintf(`%s "{"%s":%d}"`, SetPrefix, key, value), nil
}

// BuildWindowCommand converts a local 12-hour window into a single publish
// command. Each hour is moved to device time with a plain +5 wraparound and
// re-encoded as a "HH-00-am" token.
func BuildWindowCommand(startToken, endToken string) (string, error) {
	start, err := ecoplant.Parse12HourToken(startToken)
	if err != nil {
		return "", err
	}
	end, err := ecoplant.Parse12HourToken(endToken)
	if err != nil {
		return "", err
	}

	start = (start + deviceOffsetHours) % 24
	end = (end + deviceOffsetHours) % 24

	return fmt.Sprintf(`%s "{"%s":"%s","%s":"%s"}"`,
		SetPrefix, KeyStartTime, FormatHourToken(start), KeyEndTime, FormatHourToken(end)), nil
}

// FormatHourToken renders a 24-hour value as a device token, e.g. 13 -> "01-00-pm"
func FormatHourToken(hour24 int) string {
	meridiem := strings.ReplaceAll(ecoplant.Meridiem(hour24), ".", "")
	return ecoplant.To12Hour(hour24) + "-00-" + meridiem
}
