// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package syrus3

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
)

// ExtractByHeader returns the digits between header and the following ';'
func ExtractByHeader(frame, header string) (int, bool) {
	return extract(headerPattern(header), frame)
}

func extract(pattern *regexp.Regexp, frame string) (int, bool) {
	m := pattern.FindStringSubmatch(frame)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// FrameOperation reports which parameter a query response carries.
// Rejection frames never match.
func FrameOperation(frame string) (ecoplant.OperationCode, bool) {
	if strings.Contains(frame, ErrorMarker) {
		return 0, false
	}
	for _, code := range ecoplant.Operations {
		if successPatterns[code].MatchString(frame) {
			return code, true
		}
	}
	return 0, false
}

// DecodeFrame converts a parameter frame into a normalized result.
// A frame carrying ErrorMarker only ever decodes as a rejection, even when
// it also contains a query response header. ok is false for frames that are
// not parameter frames, and for thresholds when calibration is nil.
func DecodeFrame(frame string, calibration *int) (ecoplant.Result, bool) {
	if strings.Contains(frame, ErrorMarker) {
		return decodeRejection(frame)
	}

	for _, code := range ecoplant.Operations {
		raw, ok := extract(successPatterns[code], frame)
		if !ok {
			continue
		}
		cfg, _ := code.Config()
		value, ok := ecoplant.DisplayValue(code, raw, calibration)
		if !ok {
			return ecoplant.Result{}, false
		}
		return ecoplant.Result{Key: cfg.Key, Value: value}, true
	}

	return ecoplant.Result{}, false
}

func decodeRejection(frame string) (ecoplant.Result, bool) {
	for _, code := range ecoplant.Operations {
		header, _ := ErrorHeader(code)
		if strings.Contains(frame, header) {
			cfg, _ := code.Config()
			return ecoplant.Result{Key: cfg.Key, Value: ecoplant.InvalidParameter}, true
		}
	}
	if scheduleHeaderPattern.MatchString(frame) {
		return ecoplant.Result{Key: ecoplant.KeySchedule, Value: ecoplant.InvalidParameter}, true
	}
	return ecoplant.Result{}, false
}
