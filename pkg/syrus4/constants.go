// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package syrus4 implements the command strings spoken by Syrus 4
// controllers. Parameters travel as a JSON-like fragment wrapped in a
// redis-cli publish command, and the configuration dump is a list of
// space-separated KEY value pairs.
package syrus4

import (
	"fmt"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
)

// SetPrefix wraps every Syrus 4 set command
const SetPrefix = "SXAEC::apx-redis-cli publish user"

// BulkQueryCommand asks the device for its full parameter dump
const BulkQueryCommand = "SXAEC::apx-config-params get"

// Fragment keys
const (
	KeyFiltration = "fil_time"
	KeyBackwash   = "invw_time"
	KeyRinse      = "rinse_time"
	KeyFlowAlert  = "adc_fil_warning_thr"
	KeyFlowAlarm  = "adc_fil_alarm_thr"
	KeyStartTime  = "start_time"
	KeyEndTime    = "end_time"
)

// Bulk dump keys
const (
	BulkFiltration = "FILTRATION_TIME"
	BulkBackwash   = "INV_WASHING_TIME"
	BulkRinse      = "RINSE_TIME"
	BulkFlowAlert  = "ADC_WARNING_THRESHOLD"
	BulkFlowAlarm  = "ADC_ALARM_THRESHOLD"
	BulkStartHours = "START_HOURS"
	BulkEndHours   = "END_HOURS"
)

// Version lookup
const (
	ProductIdentifier = "ecoplant"
	VersionSuffix     = "4G"
	VersionNotFound   = "Versión no encontrada"
	VersionMissing    = "No disponible"
)

// Offset applied when re-encoding schedule tokens for the device
const deviceOffsetHours = 5

// WireKey returns the fragment key for an operation
func WireKey(code ecoplant.OperationCode) (string, error) {
	switch code {
	case ecoplant.Filtration:
		return KeyFiltration, nil
	case ecoplant.Backwash:
		return KeyBackwash, nil
	case ecoplant.Rinse:
		return KeyRinse, nil
	case ecoplant.FlowAlert:
		return KeyFlowAlert, nil
	case ecoplant.InsufficientFlowAlarm:
		return KeyFlowAlarm, nil
	default:
		return "", fmt.Errorf("%w: %d", ecoplant.ErrUnknownOperation, int(code))
	}
}

// BulkKey returns the bulk dump key for an operation
func BulkKey(code ecoplant.OperationCode) (string, error) {
	switch code {
	case ecoplant.Filtration:
		return BulkFiltration, nil
	case ecoplant.Backwash:
		return BulkBackwash, nil
	case ecoplant.Rinse:
		return BulkRinse, nil
	case ecoplant.FlowAlert:
		return BulkFlowAlert, nil
	case ecoplant.InsufficientFlowAlarm:
		return BulkFlowAlarm, nil
	default:
		return "", fmt.Errorf("%w: %d", ecoplant.ErrUnknownOperation, int(code))
	}
}
