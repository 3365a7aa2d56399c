// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/ecoplant/ecostat/internal/gateway"
	"github.com/ecoplant/ecostat/pkg/params"
)

// TAIP console framing
const (
	frameStart      = '>'
	frameTerminator = '<'
)

// FrameConnection reads and writes whole protocol frames over serial or WebSocket
type FrameConnection interface {
	ReadFrame() (string, error)
	WriteFrame(frame string) error
	Close() error
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// SerialConnection wraps a Syrus 3 TAIP console
type SerialConnection struct {
	port    io.ReadWriteCloser
	scanner *bufio.Scanner
}

// NewSerialConnection frames the byte stream of port
func NewSerialConnection(port io.ReadWriteCloser) *SerialConnection {
	scanner := bufio.NewScanner(port)
	scanner.Split(splitFrames)
	return &SerialConnection{port: port, scanner: scanner}
}

// splitFrames cuts the console stream after every '<' and at line ends.
// The terminator is kept so signatures stay attached to their frame.
func splitFrames(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "<\n"); i >= 0 {
		end := i
		if data[i] == frameTerminator {
			end = i + 1
		}
		return i + 1, data[:end], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ReadFrame returns the next non-empty frame
func (s *SerialConnection) ReadFrame() (string, error) {
	for s.scanner.Scan() {
		frame := strings.TrimSpace(s.scanner.Text())
		if frame != "" {
			return frame, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// WriteFrame sends frame wrapped in TAIP delimiters
func (s *SerialConnection) WriteFrame(frame string) error {
	_, err := fmt.Fprintf(s.port, "%c%s%c\r\n", frameStart, frame, frameTerminator)
	return err
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// WebSocketConnection wraps the realtime WebSocket channel. Every text
// message carries one frame.
type WebSocketConnection struct {
	conn   *websocket.Conn
	closed bool // Track if connection has failed/closed
}

func (w *WebSocketConnection) ReadFrame() (string, error) {
	// Return immediately if connection is known to be closed
	if w.closed {
		return "", ErrConnectionClosed
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			// Mark connection as closed to prevent further read attempts
			w.closed = true
			return "", err
		}

		// Frames are ASCII; skip anything else
		if messageType != websocket.TextMessage {
			continue
		}

		frame := strings.TrimSpace(string(data))
		if frame == "" {
			continue
		}
		return frame, nil
	}
}

func (w *WebSocketConnection) WriteFrame(frame string) error {
	return w.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (FrameConnection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return NewSerialConnection(port), nil
}

// OpenWebSocketConnection opens the realtime WebSocket. A non-empty token is
// sent as a Bearer credential.
func OpenWebSocketConnection(wsURL, token string, skipSSLVerify bool) (FrameConnection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetToken retrieves the gateway token from configuration or prompts the user
func GetToken() (string, error) {
	// ECOSTAT_GATEWAY_TOKEN and the config file both land here
	if cfg.Gateway.Token != "" {
		return cfg.Gateway.Token, nil
	}

	fmt.Fprint(os.Stderr, "Gateway token: ")

	// Read token without echo
	tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		token, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		cfg.Gateway.Token = strings.TrimSpace(token)
		return cfg.Gateway.Token, nil
	}

	fmt.Fprintln(os.Stderr)
	cfg.Gateway.Token = string(tokenBytes)
	return cfg.Gateway.Token, nil
}

// OpenConnection opens either a serial or WebSocket connection based on configuration
func OpenConnection() (FrameConnection, string, error) {
	if cfg.Realtime.WSURL != "" {
		conn, err := OpenWebSocketConnection(cfg.Realtime.WSURL, cfg.Gateway.Token, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", cfg.Realtime.WSURL), nil
	}

	if cfg.Realtime.SerialPort != "" {
		conn, err := OpenSerialConnection(cfg.Realtime.SerialPort, cfg.Realtime.BaudRate)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", cfg.Realtime.SerialPort, cfg.Realtime.BaudRate), nil
	}

	return nil, "", errors.New("either --port or --url must be specified")
}

// OpenGateway returns the executor used for outbound commands and the
// metadata client. With --dry-run the executor only logs, and the client is
// nil unless a gateway URL is configured.
func OpenGateway() (gateway.Executor, *gateway.Client, error) {
	var client *gateway.Client
	if cfg.Gateway.URL != "" {
		token, err := GetToken()
		if err != nil {
			return nil, nil, err
		}
		client, err = gateway.NewClient(gateway.Options{
			BaseURL:      cfg.Gateway.URL,
			Token:        token,
			Timeout:      cfg.Gateway.Timeout,
			PollInterval: cfg.Gateway.PollInterval,
			MaxAttempts:  cfg.Gateway.MaxAttempts,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	if dryRun {
		return gateway.NewDryRun(), client, nil
	}
	if client == nil {
		return nil, nil, errors.New("either --gateway-url or --dry-run must be specified")
	}
	return client, client, nil
}

// requireDevice returns the configured device id
func requireDevice() (string, error) {
	if cfg.Device.ID == "" {
		return "", errors.New("--device must be specified")
	}
	return cfg.Device.ID, nil
}

// newSession creates a session for the configured device and loads its
// calibration, from --mv-zero or from the gateway's device description.
func newSession(ctx context.Context, client *gateway.Client) *params.Session {
	session := params.NewSession(cfg.Device.ID, cfg.Generation(), cfg.Device.MvZero)
	if cfg.Device.MvZero != nil || client == nil || cfg.Device.ID == "" {
		return session
	}

	description, err := client.Description(ctx, cfg.Device.ID)
	if err != nil {
		logrus.Warnf("Calibration unavailable: %v", err)
		return session
	}
	if !session.CalibrationFromDescription(description) {
		logrus.Warn("Device description carries no mv_zero; flow thresholds will not decode")
	}
	return session
}
