// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package syrus4

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
)

var (
	// punctuationSpace matches whitespace around fragment punctuation
	punctuationSpace = regexp.MustCompile(`\s*([:,{}])\s*`)

	// hourTokenPattern matches device schedule tokens like "01-00-pm"
	hourTokenPattern = regexp.MustCompile(`(?i)^(\d{1,2})-(\d{2})-([ap])m$`)

	fieldPatterns = map[string]*regexp.Regexp{}
)

func init() {
	for _, key := range []string{KeyFiltration, KeyBackwash, KeyRinse, KeyFlowAlert, KeyFlowAlarm, KeyStartTime, KeyEndTime} {
		fieldPatterns[key] = regexp.MustCompile(fmt.Sprintf(`"%s":"?([^",}]+)"?`, regexp.QuoteMeta(key)))
	}
}

// decodeOrder is the key scan order; the first key present wins
var decodeOrder = []struct {
	key  string
	code ecoplant.OperationCode
}{
	{KeyFiltration, ecoplant.Filtration},
	{KeyBackwash, ecoplant.Backwash},
	{KeyRinse, ecoplant.Rinse},
	{KeyFlowAlert, ecoplant.FlowAlert},
	{KeyFlowAlarm, ecoplant.InsufficientFlowAlarm},
}

// Normalize unescapes quotes and removes whitespace around the fragment's
// punctuation, so `{ \"fil_time\" : 120 }` becomes `{"fil_time":120}`.
func Normalize(frame string) string {
	frame = strings.ReplaceAll(frame, `\"`, `"`)
	return punctuationSpace.ReplaceAllString(frame, "$1")
}

// FieldValue returns the raw value of key in a normalized frame
func FieldValue(frame, key string) (string, bool) {
	pattern, ok := fieldPatterns[key]
	if !ok {
		return "", false
	}
	m := pattern.FindStringSubmatch(frame)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsScheduleFrame reports whether frame carries both schedule keys
func IsScheduleFrame(frame string) bool {
	frame = Normalize(frame)
	return strings.Contains(frame, quoted(KeyStartTime)) && strings.Contains(frame, quoted(KeyEndTime))
}

// DecodeFrame converts a Syrus 4 frame into a normalized result. ok is false
// when no parameter key is present, the value cannot be parsed, a threshold
// arrives without calibration, or a schedule lacks one of its two times.
func DecodeFrame(frame string, calibration *int) (ecoplant.Result, bool) {
	frame = Normalize(frame)

	for _, field := range decodeOrder {
		if !strings.Contains(frame, quoted(field.key)) {
			continue
		}
		raw, ok := FieldValue(frame, field.key)
		if !ok {
			return ecoplant.Result{}, false
		}
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return ecoplant.Result{}, false
		}
		display, ok := ecoplant.DisplayValue(field.code, value, calibration)
		if !ok {
			return ecoplant.Result{}, false
		}
		cfg, _ := field.code.Config()
		return ecoplant.Result{Key: cfg.Key, Value: display}, true
	}

	if strings.Contains(frame, quoted(KeyStartTime)) {
		return decodeSchedule(frame)
	}
	return ecoplant.Result{}, false
}

func decodeSchedule(frame string) (ecoplant.Result, bool) {
	startToken, ok := FieldValue(frame, KeyStartTime)
	if !ok {
		return ecoplant.Result{}, false
	}
	endToken, ok := FieldValue(frame, KeyEndTime)
	if !ok {
		return ecoplant.Result{}, false
	}
	start, err := ParseHourToken(startToken)
	if err != nil {
		return ecoplant.Result{}, false
	}
	end, err := ParseHourToken(endToken)
	if err != nil {
		return ecoplant.Result{}, false
	}
	return ecoplant.Result{Key: ecoplant.KeySchedule, Value: ecoplant.FormatWindow(start, end)}, true
}

// ParseHourToken converts a device token like "01-00-pm" into a 24-hour value
func ParseHourToken(token string) (int, error) {
	m := hourTokenPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ecoplant.ErrInvalidHour, token)
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return 0, fmt.Errorf("%w: %q", ecoplant.ErrInvalidHour, token)
	}
	pm := strings.EqualFold(m[3], "p")
	switch {
	case hour == 12 && !pm:
		return 0, nil
	case hour == 12:
		return 12, nil
	case pm:
		return hour + 12, nil
	default:
		return hour, nil
	}
}

func quoted(key string) string {
	return `"` + key + `"`
}
