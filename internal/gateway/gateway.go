// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gateway is a client for the IoT gateway's command-execution and
// device-metadata REST endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecoplant/ecostat/pkg/syrus4"
)

// Command result states reported by the gateway
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

var (
	// ErrResultTimeout is returned when a command has no result after every poll attempt
	ErrResultTimeout = errors.New("command result not available")
	// ErrCommandFailed is returned when the gateway reports the command as failed
	ErrCommandFailed = errors.New("command failed on device")
)

// Executor sends commands to a device and collects their responses
type Executor interface {
	Execute(ctx context.Context, deviceID, command string) (string, error)
	WaitResult(ctx context.Context, id string) (string, error)
}

// CommandResult is the gateway's view of one executed command
type CommandResult struct {
	Status   string `json:"status"`
	Response string `json:"response"`
}

// Options configures a Client
type Options struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxAttempts  int
}

// Client talks to the gateway REST API
type Client struct {
	baseURL      string
	token        string
	http         *http.Client
	pollInterval time.Duration
	maxAttempts  int
	log          *logrus.Entry
}

// NewClient creates a gateway client
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("gateway URL is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		token:        opts.Token,
		http:         &http.Client{Timeout: opts.Timeout},
		pollInterval: opts.PollInterval,
		maxAttempts:  opts.MaxAttempts,
		log:          logrus.WithField("component", "gateway"),
	}, nil
}

// Execute queues command for deviceID and returns the correlation id
func (c *Client) Execute(ctx context.Context, deviceID, command string) (string, error) {
	body, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}
	path := "/devices/" + url.PathEscape(deviceID) + "/commands"
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", fmt.Errorf("execute command: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("execute command: gateway returned no id")
	}

	c.log.WithFields(logrus.Fields{"device": deviceID, "id": resp.ID}).Debugf("TX: %s", command)
	return resp.ID, nil
}

// Result fetches the current state of a command
func (c *Client) Result(ctx context.Context, id string) (CommandResult, error) {
	var result CommandResult
	if err := c.do(ctx, http.MethodGet, "/commands/"+url.PathEscape(id), nil, &result); err != nil {
		return CommandResult{}, fmt.Errorf("fetch result: %w", err)
	}
	return result, nil
}

// WaitResult polls until the command completes, fails, or the attempt
// budget runs out.
func (c *Client) WaitResult(ctx context.Context, id string) (string, error) {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		result, err := c.Result(ctx, id)
		if err != nil {
			return "", err
		}

		switch result.Status {
		case StatusDone:
			c.log.WithField("id", id).Debugf("RX: %s", result.Response)
			return result.Response, nil
		case StatusFailed:
			return "", fmt.Errorf("%w: %s", ErrCommandFailed, result.Response)
		}

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrResultTimeout, c.maxAttempts)
}

// Description returns the free-text device description that carries mv_zero
func (c *Client) Description(ctx context.Context, deviceID string) (string, error) {
	var resp struct {
		Description string `json:"description"`
	}
	if err := c.do(ctx, http.MethodGet, "/devices/"+url.PathEscape(deviceID), nil, &resp); err != nil {
		return "", fmt.Errorf("fetch device: %w", err)
	}
	return resp.Description, nil
}

// Instances lists the applications installed on a Syrus 4 device
func (c *Client) Instances(ctx context.Context, deviceID string) ([]syrus4.Instance, error) {
	var instances []syrus4.Instance
	if err := c.do(ctx, http.MethodGet, "/devices/"+url.PathEscape(deviceID)+"/apps", nil, &instances); err != nil {
		return nil, fmt.Errorf("fetch apps: %w", err)
	}
	return instances, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// Send executes every command in order and waits for each response.
// It stops at the first failure.
func Send(ctx context.Context, exec Executor, deviceID string, commands ...string) ([]string, error) {
	responses := make([]string, 0, len(commands))
	for _, command := range commands {
		id, err := exec.Execute(ctx, deviceID, command)
		if err != nil {
			return responses, err
		}
		response, err := exec.WaitResult(ctx, id)
		if err != nil {
			return responses, err
		}
		responses = append(responses, response)
	}
	return responses, nil
}
