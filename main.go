// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Ecostat - Ecoplant Device Protocol Tool
//
// A CLI tool for decoding, monitoring and configuring Syrus 3 and Syrus 4
// irrigation controllers through their realtime channel and gateway.

package main

import (
	"os"

	"github.com/ecoplant/ecostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
