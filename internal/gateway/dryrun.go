// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SentCommand is a command captured by DryRun
type SentCommand struct {
	ID       string
	DeviceID string
	Command  string
}

// DryRun is an Executor that records commands instead of sending them
type DryRun struct {
	mu   sync.Mutex
	sent []SentCommand
}

// NewDryRun creates an empty DryRun executor
func NewDryRun() *DryRun {
	return &DryRun{}
}

// Execute records command and returns a fresh correlation id
func (d *DryRun) Execute(_ context.Context, deviceID, command string) (string, error) {
	id := uuid.NewString()

	d.mu.Lock()
	d.sent = append(d.sent, SentCommand{ID: id, DeviceID: deviceID, Command: command})
	d.mu.Unlock()

	logrus.WithFields(logrus.Fields{"device": deviceID, "id": id}).Infof("dry run: %s", command)
	return id, nil
}

// WaitResult returns an empty response immediately
func (d *DryRun) WaitResult(_ context.Context, _ string) (string, error) {
	return "", nil
}

// Sent returns a copy of every recorded command
func (d *DryRun) Sent() []SentCommand {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]SentCommand, len(d.sent))
	copy(out, d.sent)
	return out
}
