// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package syrus3

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
)

// GT schedule frame layout (31 characters):
//
//	[0:6]   <R|S>GT0<slot>1
//	[6:12]  start date, always 000000
//	[12:18] start time HHMMSS (GMT0)
//	[18:24] end date, always 000000
//	[24:30] end time HHMMSS (GMT0)
//	[30]    ';'
//
// The device holds a two-slot window register mirrored into three GT slots,
// so a window that crosses midnight is written as two ranges.
const (
	scheduleSlots      = 3
	scheduleFrameLen   = 31
	startHourOffset    = 12
	endHourOffset      = 24
	scheduleAnyDate    = "000000"
	scheduleEndOfDay   = "235959"
	scheduleStartOfDay = "000000"
)

// scheduleHeaderPattern matches RGT001/RGT011/RGT021 and their SGT set forms
var scheduleHeaderPattern = regexp.MustCompile(`[RS]GT0([0-2])1`)

// IsScheduleFrame reports whether frame belongs to the GT schedule register
func IsScheduleFrame(frame string) bool {
	return scheduleHeaderPattern.MatchString(frame)
}

// Assembler collects the three schedule slot frames of one device and
// produces the operating window once all of them have arrived.
// It is safe for concurrent use.
type Assembler struct {
	mu    sync.Mutex
	slots [scheduleSlots]string
}

// NewAssembler creates an empty schedule assembler
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Add stores a schedule frame. When the third distinct slot arrives the
// window is returned and the accumulated frames are discarded.
func (a *Assembler) Add(frame string) (ecoplant.Result, bool) {
	if strings.Contains(frame, ErrorMarker) {
		return ecoplant.Result{}, false
	}
	loc := scheduleHeaderPattern.FindStringSubmatchIndex(frame)
	if loc == nil {
		return ecoplant.Result{}, false
	}
	body := frame[loc[0]:]
	if len(body) < scheduleFrameLen-1 {
		return ecoplant.Result{}, false
	}
	if _, ok := hourAt(body, startHourOffset); !ok {
		return ecoplant.Result{}, false
	}
	if _, ok := hourAt(body, endHourOffset); !ok {
		return ecoplant.Result{}, false
	}
	slot := int(frame[loc[2]] - '0')

	a.mu.Lock()
	defer a.mu.Unlock()

	a.slots[slot] = body
	for _, s := range a.slots {
		if s == "" {
			return ecoplant.Result{}, false
		}
	}

	start, _ := hourAt(a.slots[0], startHourOffset)
	end, _ := hourAt(a.slots[1], endHourOffset)
	a.slots = [scheduleSlots]string{}

	return ecoplant.Result{Key: ecoplant.KeySchedule, Value: ecoplant.FormatWindow(start, end)}, true
}

// Pending returns how many slots are waiting for the rest of the window
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, s := range a.slots {
		if s != "" {
			n++
		}
	}
	return n
}

// Reset drops any partially assembled window
func (a *Assembler) Reset() {
	a.mu.Lock()
	a.slots = [scheduleSlots]string{}
	a.mu.Unlock()
}

func hourAt(body string, offset int) (int, bool) {
	if len(body) < offset+2 {
		return 0, false
	}
	h, err := strconv.Atoi(body[offset : offset+2])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// BuildWindowCommand converts a local 12-hour window ("7:00 a", "3:00 p") into
// the three GT slot commands.
//
// When the GMT0 end hour falls in [1,12) or start equals end (all day), the
// window is split: slot 0 runs from start to 23:59:59, slot 1 from 00:00:00
// to end, and slot 2 repeats slot 0. Otherwise all three slots carry the same
// start to end range.
func BuildWindowCommand(startToken, endToken string) ([]string, error) {
	start, err := ecoplant.Parse12HourToken(startToken)
	if err != nil {
		return nil, err
	}
	end, err := ecoplant.Parse12HourToken(endToken)
	if err != nil {
		return nil, err
	}
	start = ecoplant.ToGMT0(start)
	end = ecoplant.ToGMT0(end)

	startTime := fmt.Sprintf("%02d0000", start)
	endTime := fmt.Sprintf("%02d0000", end)

	if (end >= 1 && end < 12) || start == end {
		return []string{
			scheduleCommand(0, startTime, scheduleEndOfDay),
			scheduleCommand(1, scheduleStartOfDay, endTime),
			scheduleCommand(2, startTime, scheduleEndOfDay),
		}, nil
	}

	return []string{
		scheduleCommand(0, startTime, endTime),
		scheduleCommand(1, startTime, endTime),
		scheduleCommand(2, startTime, endTime),
	}, nil
}

func scheduleCommand(slot int, startTime, endTime string) string {
	return fmt.Sprintf("%cGT0%d1%s%s%s%s;", markerSet, slot, scheduleAnyDate, startTime, scheduleAnyDate, endTime)
}
