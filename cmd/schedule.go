// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecoplant/ecostat/internal/gateway"
)

var scheduleTimeout int

var scheduleCmd = &cobra.Command{
	Use:   "schedule <start> <end>",
	Short: "Change the daily operating window of a device",
	Long: `Build the operating window commands and send them through the gateway.

Hours are local (GMT-5) 12-hour tokens such as "8 a", "7:00 a", "3:00 pm" or
"10 p.m". Equal start and end hours select the 24 hour window.

Syrus 3 devices receive three schedule slot commands; a window that crosses
midnight in device time is split across the slots. Syrus 4 devices receive a
single command.

Examples:
  ecostat schedule -d 356612022312345 "7:00 a" "3:00 p"
  ecostat schedule -g syrus4 --dry-run "8 a" "8 a"

Exit codes:
  0 - Window sent
  1 - Invalid hour, rejected, or no response
  2 - Connection error`,
	Args: cobra.ExactArgs(2),
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().IntVar(&scheduleTimeout, "timeout", 120, "Timeout in seconds for the whole exchange")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	device, err := requireDevice()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(scheduleTimeout)*time.Second)
	defer cancel()

	exec, client, err := OpenGateway()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	session := newSession(ctx, client)

	commands, err := session.BuildWindowCommand(args[0], args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid window: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Ecostat - Operating Window\n")
	fmt.Printf("Device: %s (%s)\n", device, session.Generation())
	fmt.Printf("Window: %s to %s (%d command(s))\n\n", args[0], args[1], len(commands))

	rejected := false
	for i, command := range commands {
		fmt.Printf("TX %d/%d: %s\n", i+1, len(commands), command)
		responses, err := gateway.Send(ctx, exec, device, command)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
			os.Exit(exitCodeFor(err))
		}
		if dryRun {
			continue
		}

		fmt.Printf("RX %d/%d: %s\n", i+1, len(commands), responses[0])
		if session.IsRejection(responses[0]) {
			rejected = true
		}
		if result, ok := session.Observe(responses[0]); ok {
			fmt.Printf("  %s = %s\n", result.Key, result.Value)
		}
	}

	if rejected {
		fmt.Printf("\nREJECTED: device refused the window\n")
		os.Exit(1)
	}
	return nil
}
