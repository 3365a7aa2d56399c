// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ecoplant/ecostat/internal/config"
)

var (
	configPath string
	logLevel   string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsNoSSLVerify bool

	// Device flags
	deviceID   string
	generation string
	mvZero     int

	// Gateway flags
	gatewayURL string
	dryRun     bool

	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "ecostat",
	Short: "Ecoplant Syrus Protocol Tool",
	Long: `Ecostat - A CLI tool for monitoring and configuring Ecoplant filtration
devices over their Syrus 3 and Syrus 4 text protocols.

Decodes realtime frames into normalized parameters, builds set commands for
either device generation and sends them through the IoT gateway.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path

Settings are read from --config (YAML), then .env, then ECOSTAT_* variables,
then flags. The gateway token is read from ECOSTAT_GATEWAY_TOKEN, or prompted
interactively if not set. A --token flag is intentionally not provided to
avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device (Syrus 3 console)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "Realtime WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Device flags
	rootCmd.PersistentFlags().StringVarP(&deviceID, "device", "d", "", "Device identifier (IMEI)")
	rootCmd.PersistentFlags().StringVarP(&generation, "generation", "g", "", "Device generation (syrus3 or syrus4)")
	rootCmd.PersistentFlags().IntVar(&mvZero, "mv-zero", 0, "Calibration zero offset in mV (skips the description lookup)")

	// Gateway flags
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway-url", "", "Gateway REST base URL")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log commands instead of sending them")
}

// loadConfig builds cfg from the config sources and applies any flags the
// user set explicitly.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		loaded.Log.Level = logLevel
	}
	if flags.Changed("port") {
		loaded.Realtime.SerialPort = portName
	}
	if flags.Changed("baud") {
		loaded.Realtime.BaudRate = baudRate
	}
	if flags.Changed("url") {
		loaded.Realtime.WSURL = wsURL
	}
	if flags.Changed("device") {
		loaded.Device.ID = deviceID
	}
	if flags.Changed("generation") {
		loaded.Device.Generation = generation
	}
	if flags.Changed("mv-zero") {
		mv := mvZero
		loaded.Device.MvZero = &mv
	}
	if flags.Changed("gateway-url") {
		loaded.Gateway.URL = gatewayURL
	}

	if err := loaded.Validate(); err != nil {
		return err
	}
	loaded.SetupLogging()
	cfg = loaded

	logrus.WithFields(logrus.Fields{
		"device":     cfg.Device.ID,
		"generation": cfg.Generation(),
	}).Debug("Configuration loaded")
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
