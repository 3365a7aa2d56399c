// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ecoplant holds the protocol-independent pieces shared by the Syrus 3
// and Syrus 4 codecs: operation codes and their limits, the normalized result
// shape, time and flow unit conversions, and schedule window formatting.
//
// Nothing in this package performs I/O.
package ecoplant

import "fmt"

// OperationCode identifies a configurable Ecoplant parameter
type OperationCode int

// Operation code values
const (
	Filtration OperationCode = iota
	Backwash
	Rinse
	FlowAlert
	InsufficientFlowAlarm
)

// Operations lists every operation code in display order
var Operations = []OperationCode{
	Filtration,
	Backwash,
	Rinse,
	FlowAlert,
	InsufficientFlowAlarm,
}

// SocketKey is the normalized key consumers see regardless of device generation
type SocketKey string

// Socket keys
const (
	KeyFiltration SocketKey = "filtrado"
	KeyBackwash   SocketKey = "retrolavado"
	KeyRinse      SocketKey = "enjuague"
	KeyFlowAlert  SocketKey = "valorAlertaFlujo"
	KeyFlowAlarm  SocketKey = "valorAlarmaInsuficiente"
	KeySchedule   SocketKey = "horario"
)

// SocketKeys lists every key a Result can carry
var SocketKeys = []SocketKey{
	KeyFiltration,
	KeyBackwash,
	KeyRinse,
	KeyFlowAlert,
	KeyFlowAlarm,
	KeySchedule,
}

// Fixed user-facing values produced by the decoders
const (
	InvalidParameter = "Parámetro inválido."
	AlwaysOn         = "24 horas"
)

// Wire value limits
const (
	MaxFiltrationSeconds  = 86400
	MaxWashSeconds        = 3600
	MaxThresholdMillivolt = 5000
)

// ParameterConfig describes how an operation's value is converted and bounded
type ParameterConfig struct {
	Code     OperationCode
	Key      SocketKey
	MaxValue int
	// Alert-class parameters are GPM thresholds carried as millivolts.
	// Everything else is a duration carried as seconds.
	Alert bool
}

// Config returns the static configuration for an operation code
func (c OperationCode) Config() (ParameterConfig, error) {
	switch c {
	case Filtration:
		return ParameterConfig{Code: c, Key: KeyFiltration, MaxValue: MaxFiltrationSeconds}, nil
	case Backwash:
		return ParameterConfig{Code: c, Key: KeyBackwash, MaxValue: MaxWashSeconds}, nil
	case Rinse:
		return ParameterConfig{Code: c, Key: KeyRinse, MaxValue: MaxWashSeconds}, nil
	case FlowAlert:
		return ParameterConfig{Code: c, Key: KeyFlowAlert, MaxValue: MaxThresholdMillivolt, Alert: true}, nil
	case InsufficientFlowAlarm:
		return ParameterConfig{Code: c, Key: KeyFlowAlarm, MaxValue: MaxThresholdMillivolt, Alert: true}, nil
	default:
		return ParameterConfig{}, fmt.Errorf("%w: %d", ErrUnknownOperation, int(c))
	}
}

// String returns the operation name used on the command line
func (c OperationCode) String() string {
	switch c {
	case Filtration:
		return "filtration"
	case Backwash:
		return "backwash"
	case Rinse:
		return "rinse"
	case FlowAlert:
		return "flow-alert"
	case InsufficientFlowAlarm:
		return "flow-alarm"
	default:
		return fmt.Sprintf("operation(%d)", int(c))
	}
}

// ParseOperation parses an operation name or its socket key
func ParseOperation(name string) (OperationCode, error) {
	for _, op := range Operations {
		cfg, _ := op.Config()
		if name == op.String() || name == string(cfg.Key) {
			return op, nil
		}
	}
	switch name {
	case "invw_time", "inverse-wash":
		return Backwash, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// Result is the single shape consumers see for any decoded frame
type Result struct {
	Key   SocketKey `json:"key"`
	Value string    `json:"value"`
}
