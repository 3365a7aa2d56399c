// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package syrus4

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
)

// BulkParams is the decoded parameter dump. Fields the dump did not carry,
// or that could not be converted, are empty.
type BulkParams struct {
	Filtration string `json:"filtrado"`
	Backwash   string `json:"retrolavado"`
	Rinse      string `json:"enjuague"`
	Alert      string `json:"valorAlertaFlujo"`
	Alarm      string `json:"valorAlarmaInsuficiente"`
	Schedule   string `json:"horario"`
}

// bulkValueFormat is the shared "KEY value" pattern
const bulkValueFormat = `\b%s\s+(\S+)`

var bulkPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, key := range []string{BulkFiltration, BulkBackwash, BulkRinse, BulkFlowAlert, BulkFlowAlarm, BulkStartHours, BulkEndHours} {
		bulkPatterns[key] = regexp.MustCompile(fmt.Sprintf(bulkValueFormat, regexp.QuoteMeta(key)))
	}
}

// BulkInt returns the integer value of key in a bulk dump
func BulkInt(text, key string) (int, bool) {
	pattern, ok := bulkPatterns[key]
	if !ok {
		return 0, false
	}
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// DecodeBulkParams reads every parameter from the response to BulkQueryCommand
func DecodeBulkParams(text string, calibration *int) BulkParams {
	return BulkParams{
		Filtration: bulkField(text, ecoplant.Filtration, calibration),
		Backwash:   bulkField(text, ecoplant.Backwash, calibration),
		Rinse:      bulkField(text, ecoplant.Rinse, calibration),
		Alert:      bulkField(text, ecoplant.FlowAlert, calibration),
		Alarm:      bulkField(text, ecoplant.InsufficientFlowAlarm, calibration),
		Schedule:   bulkSchedule(text),
	}
}

func bulkField(text string, code ecoplant.OperationCode, calibration *int) string {
	key, err := BulkKey(code)
	if err != nil {
		return ""
	}
	raw, ok := BulkInt(text, key)
	if !ok {
		return ""
	}
	value, _ := ecoplant.DisplayValue(code, raw, calibration)
	return value
}

func bulkSchedule(text string) string {
	start, ok := BulkInt(text, BulkStartHours)
	if !ok || start < 0 || start > 23 {
		return ""
	}
	end, ok := BulkInt(text, BulkEndHours)
	if !ok || end < 0 || end > 23 {
		return ""
	}
	return ecoplant.FormatWindow(start, end)
}

// Values maps the non-empty fields to their socket keys
func (p BulkParams) Values() map[ecoplant.SocketKey]string {
	values := make(map[ecoplant.SocketKey]string, len(ecoplant.SocketKeys))
	for key, value := range map[ecoplant.SocketKey]string{
		ecoplant.KeyFiltration: p.Filtration,
		ecoplant.KeyBackwash:   p.Backwash,
		ecoplant.KeyRinse:      p.Rinse,
		ecoplant.KeyFlowAlert:  p.Alert,
		ecoplant.KeyFlowAlarm:  p.Alarm,
		ecoplant.KeySchedule:   p.Schedule,
	} {
		if value != "" {
			values[key] = value
		}
	}
	return values
}
