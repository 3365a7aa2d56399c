// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"github.com/ecoplant/ecostat/pkg/ecoplant"
	"github.com/ecoplant/ecostat/pkg/syrus4"
)

// QueryState is the progress of the parameter query sent to the device
type QueryState int

// Query states
const (
	QueryPending QueryState = iota
	QueryDone
	QueryFailed
)

// Status of a reconciled parameter
type Status string

// Parameter statuses
const (
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Parameter is one reconciled value
type Parameter struct {
	Value  string `json:"value"`
	Status Status `json:"status"`
}

// ParameterSet holds a Parameter for every socket key
type ParameterSet map[ecoplant.SocketKey]Parameter

// Reconcile merges realtime values with a Syrus 4 bulk snapshot. A live value
// always wins; the snapshot is only consulted for Syrus 4 devices. A key with
// no value is loading while the query is pending and an error once the query
// has finished or failed.
func Reconcile(live map[ecoplant.SocketKey]string, bulk *syrus4.BulkParams, gen Generation, state QueryState) ParameterSet {
	var snapshot map[ecoplant.SocketKey]string
	if gen == Syrus4 && bulk != nil {
		snapshot = bulk.Values()
	}

	set := make(ParameterSet, len(ecoplant.SocketKeys))
	for _, key := range ecoplant.SocketKeys {
		value := live[key]
		if value == "" {
			value = snapshot[key]
		}

		switch {
		case value != "":
			set[key] = Parameter{Value: value, Status: StatusSuccess}
		case state == QueryPending:
			set[key] = Parameter{Status: StatusLoading}
		default:
			set[key] = Parameter{Status: StatusError}
		}
	}
	return set
}

// Complete reports whether every parameter has a value
func (s ParameterSet) Complete() bool {
	for _, key := range ecoplant.SocketKeys {
		if s[key].Status != StatusSuccess {
			return false
		}
	}
	return true
}
