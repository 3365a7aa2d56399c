// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sink forwards normalized parameter results to Redis and MQTT so
// other services see every device in the same shape.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
)

// Message is the payload published for every result
type Message struct {
	DeviceID  string             `json:"device_id"`
	Key       ecoplant.SocketKey `json:"key"`
	Value     string             `json:"value"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewMessage stamps a result with its device and the current time
func NewMessage(deviceID string, r ecoplant.Result) Message {
	return Message{DeviceID: deviceID, Key: r.Key, Value: r.Value, Timestamp: time.Now().UTC()}
}

// Encode returns the JSON form of the message
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Sink receives decoded results
type Sink interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Multi fans a message out to every sink and joins their errors
type Multi []Sink

// Publish sends msg to every sink, even when an earlier one fails
func (m Multi) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
