// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecoplant/ecostat/pkg/params"
)

var waitTimeout int

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Test connection by waiting for a decodable frame",
	Long: `Wait for a frame that decodes into a parameter result or a realtime event.

This command connects to a serial console or the realtime WebSocket and waits
for any frame the configured generation understands. Unrecognized frames are
counted and skipped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a decodable frame
  2 - Connection error

Useful for checking that a device is reporting before running "set".`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().IntVar(&waitTimeout, "timeout", 30, "Timeout in seconds to wait for a frame")
}

func runWait(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	session := params.NewSession(cfg.Device.ID, cfg.Generation(), cfg.Device.MvZero)

	fmt.Printf("Ecostat - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", waitTimeout)
	fmt.Printf("Waiting for a %s frame...\n\n", session.Generation())

	outcomeChan := make(chan frameOutcome, 1)
	errChan := make(chan error, 1)

	go func() {
		skipped := 0
		for {
			frame, err := conn.ReadFrame()
			if err != nil {
				errChan <- err
				return
			}

			outcome := classifyFrame(session, frame)
			if !outcome.isResult && !outcome.isEvent {
				skipped++
				continue
			}
			if skipped > 0 {
				fmt.Printf("(skipped %d unrecognized frames)\n", skipped)
			}
			outcomeChan <- outcome
			return
		}
	}()

	select {
	case outcome := <-outcomeChan:
		fmt.Printf("SUCCESS: Received frame\n")
		fmt.Printf("  Frame: %s\n", outcome.frame)
		fmt.Printf("  Decoded: %s\n", outcome)
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(waitTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No decodable frame received within %d seconds\n", waitTimeout)
		os.Exit(1)
	}

	return nil
}
