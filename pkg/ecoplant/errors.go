// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ecoplant

import "errors"

// Precondition failures. Decode misses are not errors; decoders report them
// with a false ok value instead.
var (
	ErrInvalidUnit        = errors.New("invalid time unit")
	ErrUnknownOperation   = errors.New("unknown operation")
	ErrMissingTemplate    = errors.New("no frame observed for parameter")
	ErrMalformedTemplate  = errors.New("template frame does not carry the parameter payload")
	ErrMissingCalibration = errors.New("calibration value (mv_zero) not loaded")
	ErrInvalidHour        = errors.New("invalid 12-hour token")
)
