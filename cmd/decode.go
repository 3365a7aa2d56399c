// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
	"github.com/ecoplant/ecostat/pkg/params"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [frame...]",
	Short: "Decode protocol frames given as arguments or on stdin",
	Long: `Decode Syrus 3 or Syrus 4 frames into normalized parameter results.

Frames are taken from the arguments, or read one per line from stdin when no
arguments are given. Frames are fed through a single session, so Syrus 3
schedule slots given together are assembled into one window.

Flow readings (BL=) and alert thresholds are converted to GPM only when the
calibration is known (--mv-zero or ECOSTAT_MV_ZERO).

Examples:
  ecostat decode 'SGC04TC00120;'
  ecostat decode -g syrus4 '{"fil_time":300}'
  cat capture.log | ecostat decode`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	session := params.NewSession(cfg.Device.ID, cfg.Generation(), cfg.Device.MvZero)
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		for _, frame := range args {
			fmt.Fprintln(out, classifyFrame(session, frame))
		}
		return nil
	}

	return decodeStream(session, cmd.InOrStdin(), out)
}

// decodeStream decodes one frame per non-empty line of r
func decodeStream(session *params.Session, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		frame := strings.TrimSpace(scanner.Text())
		if frame == "" {
			continue
		}
		fmt.Fprintln(w, classifyFrame(session, frame))
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("read frames: %w", err)
	}
	return nil
}

// frameOutcome is what a single inbound frame turned out to be
type frameOutcome struct {
	frame    string
	result   ecoplant.Result
	isResult bool
	event    ecoplant.Event
	isEvent  bool
}

// classifyFrame feeds frame through session and falls back to the realtime
// envelope events when it is not a parameter frame.
func classifyFrame(session *params.Session, frame string) frameOutcome {
	o := frameOutcome{frame: frame}
	if o.result, o.isResult = session.Observe(frame); o.isResult {
		return o
	}
	o.event, o.isEvent = ecoplant.ParseEvent(frame, session.Calibration())
	return o
}

func (o frameOutcome) String() string {
	switch {
	case o.isResult && o.result.Value == ecoplant.InvalidParameter:
		return fmt.Sprintf("[REJECTED] %s", o.result.Key)
	case o.isResult:
		return fmt.Sprintf("[RESULT] %s = %s", o.result.Key, o.result.Value)
	case o.isEvent && o.event.Kind == ecoplant.EventProcess:
		return fmt.Sprintf("[PROCESS] %02d", o.event.Process)
	case o.isEvent && o.event.HasGPM:
		return fmt.Sprintf("[FLOW] %d mV (%d GPM)", o.event.Raw, o.event.GPM)
	case o.isEvent:
		return fmt.Sprintf("[FLOW] %d mV", o.event.Raw)
	default:
		return fmt.Sprintf("[UNKNOWN] %s", o.frame)
	}
}

// decodeFile decodes a capture file holding one frame per line
func decodeFile(session *params.Session, path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return decodeStream(session, f, w)
}
