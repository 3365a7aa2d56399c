// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"fmt"
	"strings"
	"time"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
)

// Statistics tracks what a realtime channel delivered and at what rate.
// It is not safe for concurrent use.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames   uint64
	Results       uint64
	Rejections    uint64
	ProcessEvents uint64
	FlowEvents    uint64
	Unknown       uint64
	PerKey        map[ecoplant.SocketKey]uint64

	// Rates (calculated)
	FrameRate     float64 // frames/sec
	RejectionRate float64 // rejections/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		PerKey:         make(map[ecoplant.SocketKey]uint64),
	}
}

// RecordResult counts a decoded parameter frame
func (s *Statistics) RecordResult(r ecoplant.Result) {
	s.TotalFrames++
	if r.Value == ecoplant.InvalidParameter {
		s.Rejections++
	} else {
		s.Results++
		s.PerKey[r.Key]++
	}
	s.LastUpdateTime = time.Now()
}

// RecordEvent counts a realtime envelope event
func (s *Statistics) RecordEvent(ev ecoplant.Event) {
	s.TotalFrames++
	switch ev.Kind {
	case ecoplant.EventProcess:
		s.ProcessEvents++
	case ecoplant.EventFlow:
		s.FlowEvents++
	}
	s.LastUpdateTime = time.Now()
}

// RecordUnknown counts a frame that decoded as nothing
func (s *Statistics) RecordUnknown() {
	s.TotalFrames++
	s.Unknown++
	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates frame and rejection rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.RejectionRate = float64(s.Rejections) / elapsed
	}
}

// Idle returns how long ago the last frame arrived
func (s *Statistics) Idle() time.Duration {
	return time.Since(s.LastUpdateTime)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var resultPercent, unknownPercent float64
	if s.TotalFrames > 0 {
		resultPercent = float64(s.Results) * 100.0 / float64(s.TotalFrames)
		unknownPercent = float64(s.Unknown) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	fmt.Fprintf(&b, "Total Frames:    %8d\n", s.TotalFrames)
	fmt.Fprintf(&b, "Results:         %8d (%.1f%%)\n", s.Results, resultPercent)
	for _, key := range ecoplant.SocketKeys {
		if n := s.PerKey[key]; n > 0 {
			fmt.Fprintf(&b, "  %-24s %5d\n", key, n)
		}
	}
	if s.Rejections > 0 {
		fmt.Fprintf(&b, "Rejections:      %8d\n", s.Rejections)
	}
	if s.ProcessEvents > 0 || s.FlowEvents > 0 {
		fmt.Fprintf(&b, "Events:          %8d (process %d, flow %d)\n", s.ProcessEvents+s.FlowEvents, s.ProcessEvents, s.FlowEvents)
	}
	if s.Unknown > 0 {
		fmt.Fprintf(&b, "Unknown Frames:  %8d (%.1f%%)\n", s.Unknown, unknownPercent)
	}
	fmt.Fprintf(&b, "Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	fmt.Fprintf(&b, "Rejection Rate:  %8.2f rejections/sec\n", s.RejectionRate)
	b.WriteString("================================\n")

	return b.String()
}
