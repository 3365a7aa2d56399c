// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ecoplant

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Millivolts per gallon-per-minute on the flow sensor ADC
const millivoltsPerGPM = 100

// Device description markers
const (
	calibrationEndMarker = "END_PARAMS"
)

// calibrationPattern extracts mv_zero from the device description
var calibrationPattern = regexp.MustCompile(`mv_zero\s*:\s*(-?\d+)`)

// VoltageToGpm converts a raw millivolt reading to GPM using the device zero offset
func VoltageToGpm(raw, calibration int) int {
	return int(math.Round(float64(raw-calibration) / millivoltsPerGPM))
}

// GpmToVoltage converts a GPM threshold back to the millivolt wire value
func GpmToVoltage(gpm float64, calibration int) int {
	return int(math.Round(gpm*millivoltsPerGPM)) + calibration
}

// ExtractCalibration finds mv_zero:<value> in the parameter block of a
// device description. The block ends at END_PARAMS when the marker is present.
func ExtractCalibration(description string) (int, bool) {
	if idx := strings.Index(description, calibrationEndMarker); idx >= 0 {
		description = description[:idx]
	}
	m := calibrationPattern.FindStringSubmatch(description)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// WireValue converts user input to the integer carried on the wire.
// ok is false when the value is outside [0, MaxValue].
func WireValue(code OperationCode, magnitude float64, unit string, calibration *int) (value int, ok bool, err error) {
	cfg, err := code.Config()
	if err != nil {
		return 0, false, err
	}

	if cfg.Alert {
		if calibration == nil {
			return 0, false, ErrMissingCalibration
		}
		value = GpmToVoltage(magnitude, *calibration)
	} else {
		value, err = UnitToSeconds(unit, magnitude)
		if err != nil {
			return 0, false, err
		}
	}

	if value < 0 || value > cfg.MaxValue {
		return value, false, nil
	}
	return value, true, nil
}

// DisplayValue renders a wire value for its operation: durations as Spanish
// text and thresholds as whole GPM. ok is false for thresholds without calibration.
func DisplayValue(code OperationCode, raw int, calibration *int) (string, bool) {
	cfg, err := code.Config()
	if err != nil {
		return "", false
	}
	if !cfg.Alert {
		return SecondsToHuman(raw), true
	}
	if calibration == nil {
		return "", false
	}
	return strconv.Itoa(VoltageToGpm(raw, *calibration)), true
}
