// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package syrus3 implements the TAIP-style ASCII frames spoken by Syrus 3
// controllers: parameter query responses, set-command rejections and the
// three-slot GT schedule register.
package syrus3

import (
	"fmt"
	"regexp"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
)

// Query response headers, one per operation
const (
	HeaderFiltration = "SGC04TC"
	HeaderBackwash   = "SGC07TC"
	HeaderRinse      = "SGC10TC"
	HeaderFlowAlert  = "RXAGA03V"
	HeaderFlowAlarm  = "RXAGA00V"
)

// Set-command rejection headers, one per operation
const (
	ErrorHeaderFiltration = "SED06NA0"
	ErrorHeaderBackwash   = "SED14NV0"
	ErrorHeaderRinse      = "SED34NV0"
	ErrorHeaderFlowAlert  = "SXAGA03"
	ErrorHeaderFlowAlarm  = "SXAGA00"
)

// ErrorMarker is present in every rejected set command echo
const ErrorMarker = "RER"

// Leading message markers
const (
	markerResponse = 'R'
	markerSet      = 'S'
	markerQuery    = 'Q'
)

// Framing and signature tokens stripped from templates
const (
	frameStart = ">"
	frameEnd   = "<"
)

var signatureMarkers = []string{"ID=", "*"}

// Wire value width in set commands
const valueDigits = 5

// headerValueFormat is the single pattern for "<HEADER><digits>;"
const headerValueFormat = `%s(\d+);`

var successPatterns = func() map[ecoplant.OperationCode]*regexp.Regexp {
	patterns := make(map[ecoplant.OperationCode]*regexp.Regexp, len(ecoplant.Operations))
	for _, code := range ecoplant.Operations {
		header, _ := SuccessHeader(code)
		patterns[code] = headerPattern(header)
	}
	return patterns
}()

func headerPattern(header string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(headerValueFormat, regexp.QuoteMeta(header)))
}

// SuccessHeader returns the query response header for an operation
func SuccessHeader(code ecoplant.OperationCode) (string, error) {
	switch code {
	case ecoplant.Filtration:
		return HeaderFiltration, nil
	case ecoplant.Backwash:
		return HeaderBackwash, nil
	case ecoplant.Rinse:
		return HeaderRinse, nil
	case ecoplant.FlowAlert:
		return HeaderFlowAlert, nil
	case ecoplant.InsufficientFlowAlarm:
		return HeaderFlowAlarm, nil
	default:
		return "", fmt.Errorf("%w: %d", ecoplant.ErrUnknownOperation, int(code))
	}
}

// ErrorHeader returns the set-command rejection header for an operation
func ErrorHeader(code ecoplant.OperationCode) (string, error) {
	switch code {
	case ecoplant.Filtration:
		return ErrorHeaderFiltration, nil
	case ecoplant.Backwash:
		return ErrorHeaderBackwash, nil
	case ecoplant.Rinse:
		return ErrorHeaderRinse, nil
	case ecoplant.FlowAlert:
		return ErrorHeaderFlowAlert, nil
	case ecoplant.InsufficientFlowAlarm:
		return ErrorHeaderFlowAlarm, nil
	default:
		return "", fmt.Errorf("%w: %d", ecoplant.ErrUnknownOperation, int(code))
	}
}
