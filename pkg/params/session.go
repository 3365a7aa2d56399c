// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"maps"
	"strings"
	"sync"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
	"github.com/ecoplant/ecostat/pkg/syrus3"
	"github.com/ecoplant/ecostat/pkg/syrus4"
)

// Session is the per-device state behind a realtime connection: the
// generation, calibration, Syrus 3 templates and schedule assembly, and the
// latest value seen for every parameter.
type Session struct {
	mu          sync.Mutex
	deviceID    string
	generation  Generation
	calibration *int
	live        map[ecoplant.SocketKey]string

	templates *TemplateCache
	assembler *syrus3.Assembler
}

// NewSession creates a session for one device
func NewSession(deviceID string, gen Generation, calibration *int) *Session {
	return &Session{
		deviceID:    deviceID,
		generation:  gen,
		calibration: calibration,
		live:        make(map[ecoplant.SocketKey]string),
		templates:   NewTemplateCache(),
		assembler:   syrus3.NewAssembler(),
	}
}

// Observe feeds an inbound frame through the session. It returns the
// normalized result when the frame completes one.
func (s *Session) Observe(frame string) (ecoplant.Result, bool) {
	s.mu.Lock()
	deviceID, gen, calibration := s.deviceID, s.generation, s.calibration
	s.mu.Unlock()

	var (
		result ecoplant.Result
		ok     bool
	)
	switch gen {
	case Syrus3:
		s.templates.Observe(deviceID, frame)
		result, ok = syrus3.DecodeFrame(frame, calibration)
		if !ok && syrus3.IsScheduleFrame(frame) {
			result, ok = s.assembler.Add(frame)
		}
	case Syrus4:
		result, ok = syrus4.DecodeFrame(frame, calibration)
	}
	if !ok {
		return ecoplant.Result{}, false
	}

	s.mu.Lock()
	// A device switch while decoding makes this result stale
	if s.deviceID == deviceID {
		s.live[result.Key] = result.Value
	}
	s.mu.Unlock()

	return result, true
}

// ObserveBulk merges a Syrus 4 parameter dump into the live values without
// overwriting anything already seen on the realtime channel.
func (s *Session) ObserveBulk(text string) syrus4.BulkParams {
	s.mu.Lock()
	defer s.mu.Unlock()

	bulk := syrus4.DecodeBulkParams(text, s.calibration)
	for key, value := range bulk.Values() {
		if _, ok := s.live[key]; !ok {
			s.live[key] = value
		}
	}
	return bulk
}

// SwitchDevice points the session at another device and clears all state
// gathered for the previous one.
func (s *Session) SwitchDevice(deviceID string, gen Generation, calibration *int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates.Forget(s.deviceID)
	s.assembler.Reset()
	s.deviceID = deviceID
	s.generation = gen
	s.calibration = calibration
	s.live = make(map[ecoplant.SocketKey]string)
}

// SetCalibration records mv_zero once it has been fetched
func (s *Session) SetCalibration(calibration *int) {
	s.mu.Lock()
	s.calibration = calibration
	s.mu.Unlock()
}

// CalibrationFromDescription extracts mv_zero from the device description
// and stores it. It reports whether a value was found.
func (s *Session) CalibrationFromDescription(description string) bool {
	mv, ok := ecoplant.ExtractCalibration(description)
	if !ok {
		return false
	}
	s.SetCalibration(&mv)
	return true
}

// BuildCommand builds a set command for the session's device, using the
// cached template on Syrus 3.
func (s *Session) BuildCommand(code ecoplant.OperationCode, magnitude float64, unit string) (string, error) {
	s.mu.Lock()
	deviceID, gen, calibration := s.deviceID, s.generation, s.calibration
	s.mu.Unlock()

	template, _ := s.templates.Template(deviceID, code)
	return BuildCommand(gen, code, magnitude, unit, calibration, template)
}

// BuildWindowCommand builds the window commands for the session's generation
func (s *Session) BuildWindowCommand(startToken, endToken string) ([]string, error) {
	return BuildWindowCommand(s.Generation(), startToken, endToken)
}

// HasTemplate reports whether a set command can be built for code without
// querying the device first.
func (s *Session) HasTemplate(code ecoplant.OperationCode) bool {
	s.mu.Lock()
	deviceID, gen := s.deviceID, s.generation
	s.mu.Unlock()

	if gen != Syrus3 {
		return true
	}
	_, ok := s.templates.Template(deviceID, code)
	return ok
}

// IsRejection reports whether frame is a rejected set command
func (s *Session) IsRejection(frame string) bool {
	return s.Generation() == Syrus3 && strings.Contains(frame, syrus3.ErrorMarker)
}

// DeviceID returns the current device
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

// Generation returns the current device generation
func (s *Session) Generation() Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Calibration returns mv_zero, or nil if it has not been loaded
func (s *Session) Calibration() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibration
}

// Live returns a copy of the latest values
func (s *Session) Live() map[ecoplant.SocketKey]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.live)
}
