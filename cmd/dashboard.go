// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ecoplant/ecostat/internal/gateway"
	"github.com/ecoplant/ecostat/pkg/params"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI for monitoring and configuring a device",
	Long: `Monitor and configure an Ecoplant device via an interactive terminal UI.

This command shows the device's operating parameters as they are reported on
the realtime channel, reconciled with the gateway query responses, and lets
you change any of them.

Features:
  - Live parameter table (loading / success / error per parameter)
  - Flow and process events
  - Set commands for every parameter and the operating window
  - Event logging
  - Automatic reconnection on connection loss

Tab switches between the parameter list and the value input. Values are typed
as "<number> [unit]" (e.g. "5 minutos", "12") or, for the operating window,
"<start> - <end>" (e.g. "7:00 a - 3:00 p").

Realtime frames come from --url or --port; queries and commands go through
the gateway (--gateway-url or --dry-run). Either one may be omitted.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn     FrameConnection
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	done     chan struct{}
}

func (cm *connectionManager) getConn() FrameConnection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn FrameConnection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var exec gateway.Executor
	var client *gateway.Client
	if cfg.Gateway.URL != "" || dryRun {
		var err error
		exec, client, err = OpenGateway()
		if err != nil {
			return err
		}
	}
	session := newSession(ctx, client)

	var cm *connectionManager
	connInfo := "no realtime connection"
	if cfg.Realtime.WSURL != "" || cfg.Realtime.SerialPort != "" {
		conn, info, err := OpenConnection()
		if err != nil {
			return err
		}
		cm = &connectionManager{conn: conn, connInfo: info, done: make(chan struct{})}
		connInfo = info
	}
	if cm == nil && exec == nil {
		return errors.New("either a realtime connection (--url/--port) or a gateway (--gateway-url/--dry-run) is required")
	}

	// The TUI owns the terminal; keep log output out of it
	logrus.SetLevel(logrus.ErrorLevel)

	m := initialDashboardModel(ctx, session, exec, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if cm != nil {
		cm.p = p
		go cm.readerLoop()
		cm.sendQueries(session.Generation())
	}

	_, err := p.Run()
	if cm != nil {
		close(cm.done) // Signal goroutines to stop
		if conn := cm.getConn(); conn != nil {
			conn.Close()
		}
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// readerLoop forwards frames to the TUI with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		conn := cm.getConn()
		frame, err := conn.ReadFrame()
		if err == nil {
			cm.p.Send(frameMsg{frame: frame, at: time.Now()})
			continue
		}

		// Check if we're shutting down
		select {
		case <-cm.done:
			return
		default:
		}

		cm.p.Send(connectionLostMsg{err: err})
		if !cm.reconnect() {
			return // Shutdown requested during reconnect
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// sendQueries asks a console-attached Syrus 3 device to report every
// parameter. WebSocket channels are fed by the gateway instead.
func (cm *connectionManager) sendQueries(gen params.Generation) {
	if _, ok := cm.getConn().(*SerialConnection); !ok {
		return
	}
	queries, err := params.QueryCommands(gen)
	if err != nil {
		return
	}
	for _, q := range queries {
		if err := cm.getConn().WriteFrame(q); err != nil {
			return
		}
	}
}
