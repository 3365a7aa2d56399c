// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package syrus3

import (
	"fmt"
	"strings"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
)

// Command builders produce strings ready for the gateway's command endpoint.
// Syrus 3 set commands are derived from the last query response seen for the
// same parameter, because the response carries fields beyond the value.

// BuildSetCommand rewrites template (a query response for code) into a set
// command carrying the new value.
//
// An empty string with a nil error means the converted value is out of range
// for the parameter; callers must not send anything in that case.
func BuildSetCommand(code ecoplant.OperationCode, magnitude float64, unit string, calibration *int, template string) (string, error) {
	if _, err := SuccessHeader(code); err != nil {
		return "", err
	}
	if template == "" {
		return "", fmt.Errorf("%w: %s", ecoplant.ErrMissingTemplate, code)
	}

	loc := successPatterns[code].FindStringSubmatchIndex(template)
	if loc == nil {
		return "", fmt.Errorf("%w: %s", ecoplant.ErrMalformedTemplate, code)
	}

	value, ok, err := ecoplant.WireValue(code, magnitude, unit, calibration)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	// loc[2]:loc[3] is the digit group
	command := template[:loc[2]] + fmt.Sprintf("%0*d", valueDigits, value) + template[loc[3]:]
	return toSetCommand(command), nil
}

// toSetCommand removes framing and the trailing signature, and turns a
// response marker into a set marker.
func toSetCommand(frame string) string {
	frame = strings.TrimPrefix(frame, frameStart)
	for _, marker := range signatureMarkers {
		if i := strings.Index(frame, marker); i >= 0 {
			frame = frame[:i]
		}
	}
	frame = strings.TrimRight(frame, frameEnd)
	if len(frame) > 0 && frame[0] == markerResponse {
		frame = string(markerSet) + frame[1:]
	}
	return frame
}

// QueryCommand returns the command that makes the device report code's value
func QueryCommand(code ecoplant.OperationCode) (string, error) {
	header, err := SuccessHeader(code)
	if err != nil {
		return "", err
	}
	return string(markerQuery) + header[1:], nil
}

// ScheduleQueryCommands returns the queries for all three schedule slots
func ScheduleQueryCommands() []string {
	commands := make([]string, 0, scheduleSlots)
	for slot := 0; slot < scheduleSlots; slot++ {
		commands = append(commands, fmt.Sprintf("%cGT0%d1", markerQuery, slot))
	}
	return commands
}
