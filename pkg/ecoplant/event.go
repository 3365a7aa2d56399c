// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ecoplant

import (
	"regexp"
	"strconv"
	"strings"
)

// Realtime envelope markers
const (
	processEventMarker = "REV"
	flowEventMarker    = "BL="
)

var flowEventPattern = regexp.MustCompile(`BL=(\d+)`)

// EventKind distinguishes realtime envelope events
type EventKind int

// Event kinds
const (
	EventProcess EventKind = iota
	EventFlow
)

// Event is a realtime envelope event that is not a parameter frame
type Event struct {
	Kind EventKind `json:"kind"`
	// Process code for EventProcess
	Process int `json:"process,omitempty"`
	// Raw millivolt reading for EventFlow
	Raw int `json:"raw,omitempty"`
	// GPM is only meaningful when HasGPM is set
	GPM    int  `json:"gpm,omitempty"`
	HasGPM bool `json:"has_gpm,omitempty"`
}

// ParseEvent recognizes process-code (REVnn...) and flow-value (BL=nnnn)
// events. Flow readings are converted to GPM when calibration is known.
func ParseEvent(frame string, calibration *int) (Event, bool) {
	frame = strings.TrimLeft(frame, ">")

	if strings.HasPrefix(frame, processEventMarker) {
		if len(frame) < 5 {
			return Event{}, false
		}
		code, err := strconv.Atoi(frame[3:5])
		if err != nil {
			return Event{}, false
		}
		return Event{Kind: EventProcess, Process: code}, true
	}

	if strings.Contains(frame, flowEventMarker) {
		m := flowEventPattern.FindStringSubmatch(frame)
		if m == nil {
			return Event{}, false
		}
		raw, err := strconv.Atoi(m[1])
		if err != nil {
			return Event{}, false
		}
		ev := Event{Kind: EventFlow, Raw: raw}
		if calibration != nil {
			ev.GPM = VoltageToGpm(raw, *calibration)
			ev.HasGPM = true
		}
		return ev, true
	}

	return Event{}, false
}
