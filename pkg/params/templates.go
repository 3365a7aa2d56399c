// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"sync"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
	"github.com/ecoplant/ecostat/pkg/syrus3"
)

// TemplateCache keeps the last Syrus 3 query response seen for each device
// and parameter. Set commands are built by rewriting these frames.
// It is safe for concurrent use.
type TemplateCache struct {
	mu     sync.RWMutex
	frames map[string]map[ecoplant.OperationCode]string
}

// NewTemplateCache creates an empty cache
func NewTemplateCache() *TemplateCache {
	return &TemplateCache{frames: make(map[string]map[ecoplant.OperationCode]string)}
}

// Observe stores frame if it is a query response. It reports whether the
// frame was kept.
func (c *TemplateCache) Observe(deviceID, frame string) bool {
	code, ok := syrus3.FrameOperation(frame)
	if !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	device, ok := c.frames[deviceID]
	if !ok {
		device = make(map[ecoplant.OperationCode]string)
		c.frames[deviceID] = device
	}
	device[code] = frame
	return true
}

// Template returns the last frame observed for code on deviceID
func (c *TemplateCache) Template(deviceID string, code ecoplant.OperationCode) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	frame, ok := c.frames[deviceID][code]
	return frame, ok
}

// Forget drops every template for deviceID
func (c *TemplateCache) Forget(deviceID string) {
	c.mu.Lock()
	delete(c.frames, deviceID)
	c.mu.Unlock()
}
