// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecoplant/ecostat/internal/gateway"
	"github.com/ecoplant/ecostat/pkg/ecoplant"
	"github.com/ecoplant/ecostat/pkg/params"
)

var (
	setTimeout  int
	setTemplate string
)

var setCmd = &cobra.Command{
	Use:   "set <operation> <value> [unit]",
	Short: "Change one operating parameter on a device",
	Long: `Build a set command for one parameter and send it through the gateway.

Operations:
  filtration   (filtrado)                  duration, up to 24 horas
  backwash     (retrolavado)               duration, up to 60 minutos
  rinse        (enjuague)                  duration, up to 60 minutos
  flow-alert   (valorAlertaFlujo)          GPM threshold, needs mv_zero
  flow-alarm   (valorAlarmaInsuficiente)   GPM threshold, needs mv_zero

Durations take a unit: segundos (default), minutos or horas.

Syrus 3 set commands are derived from the device's own query response, so the
parameter is queried first unless --template supplies a response frame.

Exit codes:
  0 - Value accepted by the device
  1 - Value out of range, rejected, or no response
  2 - Connection error`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().IntVar(&setTimeout, "timeout", 60, "Timeout in seconds for the whole exchange")
	setCmd.Flags().StringVar(&setTemplate, "template", "", "Syrus 3 query response to derive the command from")
}

func runSet(cmd *cobra.Command, args []string) error {
	code, err := ecoplant.ParseOperation(args[0])
	if err != nil {
		return err
	}
	magnitude, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[1], err)
	}
	unit := "segundos"
	if len(args) == 3 {
		unit = args[2]
	}
	device, err := requireDevice()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(setTimeout)*time.Second)
	defer cancel()

	exec, client, err := OpenGateway()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	session := newSession(ctx, client)

	fmt.Printf("Ecostat - Set Parameter\n")
	fmt.Printf("Device: %s (%s)\n", device, session.Generation())
	fmt.Printf("Operation: %s = %s %s\n\n", code, args[1], unit)

	if setTemplate != "" {
		session.Observe(setTemplate)
	}
	if !session.HasTemplate(code) {
		fmt.Printf("Querying template for %s\n", code)
		if err := fetchTemplate(ctx, exec, session, code); err != nil {
			fmt.Fprintf(os.Stderr, "Template query failed: %v\n", err)
			os.Exit(exitCodeFor(err))
		}
	}

	command, err := session.BuildCommand(code, magnitude, unit)
	if err != nil {
		return err
	}
	if params.IsOutOfRange(command) {
		pc, _ := code.Config()
		fmt.Printf("OUT OF RANGE: %s %s exceeds the limit for %s\n", args[1], unit, pc.Key)
		os.Exit(1)
	}

	fmt.Printf("TX: %s\n", command)
	started := time.Now()
	responses, err := gateway.Send(ctx, exec, device, command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
	fmt.Printf("RX: %s (%v)\n", responses[0], time.Since(started).Round(time.Millisecond))

	if dryRun {
		return nil
	}

	result, ok := session.Observe(responses[0])
	switch {
	case ok && result.Value == ecoplant.InvalidParameter:
		fmt.Printf("REJECTED: device refused %s\n", result.Key)
		os.Exit(1)
	case ok:
		fmt.Printf("OK: %s = %s\n", result.Key, result.Value)
	default:
		fmt.Printf("OK: command delivered\n")
	}
	return nil
}

// fetchTemplate queries code on a Syrus 3 device so the session can derive
// the set command from the response.
func fetchTemplate(ctx context.Context, exec gateway.Executor, session *params.Session, code ecoplant.OperationCode) error {
	query, err := params.QueryCommand(session.Generation(), code)
	if err != nil {
		return err
	}

	responses, err := gateway.Send(ctx, exec, session.DeviceID(), query)
	if err != nil {
		return err
	}
	session.Observe(responses[0])
	if !session.HasTemplate(code) {
		return fmt.Errorf("%w: device answered %q", ecoplant.ErrMissingTemplate, responses[0])
	}
	return nil
}

// exitCodeFor maps a gateway error to the command's exit code
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, gateway.ErrResultTimeout),
		errors.Is(err, gateway.ErrCommandFailed),
		errors.Is(err, ecoplant.ErrMissingTemplate),
		errors.Is(err, context.DeadlineExceeded):
		return 1
	default:
		return 2
	}
}
