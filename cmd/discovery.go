// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecoplant/ecostat/internal/gateway"
	"github.com/ecoplant/ecostat/pkg/ecoplant"
	"github.com/ecoplant/ecostat/pkg/params"
	"github.com/ecoplant/ecostat/pkg/syrus4"
)

var discoveryTimeout int

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Identify a device through the gateway",
	Long: `Look up the configured device on the gateway and report what it is.

The device description is checked for the mv_zero flow calibration and, on
Syrus 4 devices, the installed applications are listed together with the
Ecoplant firmware label.

Examples:
  ecostat discovery --gateway-url https://gw.example.com --device 867000000000001
  ecostat discovery --device 867000000000001 --generation 3

Exit codes:
  0 - Device identified
  1 - Device found but not usable (no calibration or no Ecoplant application)
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 10, "Timeout in seconds for the gateway lookups")
}

// deviceIdentity is what the gateway knows about one device
type deviceIdentity struct {
	DeviceID    string
	Generation  params.Generation
	Description string
	Calibration *int
	Instances   []syrus4.Instance
	Version     string
}

// usable reports whether commands can be built for every operation
func (d deviceIdentity) usable() bool {
	if d.Calibration == nil {
		return false
	}
	if d.Generation == params.Syrus4 {
		return d.Version != syrus4.VersionMissing && d.Version != syrus4.VersionNotFound
	}
	return true
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	deviceID, err := requireDevice()
	if err != nil {
		return err
	}

	_, client, err := OpenGateway()
	if err != nil || client == nil {
		fmt.Fprintf(os.Stderr, "Connection error: a gateway (--gateway-url) is required for discovery\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(discoveryTimeout)*time.Second)
	defer cancel()

	fmt.Printf("Ecostat - Device Discovery\n")
	fmt.Printf("Gateway: %s\n", cfg.Gateway.URL)
	fmt.Printf("Timeout: %d seconds\n\n", discoveryTimeout)

	identity, err := discoverDevice(ctx, client, deviceID, cfg.Generation())
	if err != nil {
		fmt.Printf("LOOKUP FAILED: %v\n", err)
		os.Exit(2)
	}

	printIdentity(os.Stdout, identity)

	if !identity.usable() {
		os.Exit(1)
	}
	return nil
}

// discoverDevice fetches the description and, for Syrus 4, the installed
// applications of deviceID
func discoverDevice(ctx context.Context, client *gateway.Client, deviceID string, gen params.Generation) (deviceIdentity, error) {
	identity := deviceIdentity{DeviceID: deviceID, Generation: gen}

	description, err := client.Description(ctx, deviceID)
	if err != nil {
		return identity, err
	}
	identity.Description = description
	if mv, ok := ecoplant.ExtractCalibration(description); ok {
		identity.Calibration = &mv
	}

	if gen == params.Syrus4 {
		instances, err := client.Instances(ctx, deviceID)
		if err != nil {
			return identity, err
		}
		identity.Instances = instances
		identity.Version = syrus4.DecodeVersionInfo(instances)
	}

	return identity, nil
}

func printIdentity(w io.Writer, d deviceIdentity) {
	fmt.Fprintf(w, "Device found:\n")
	fmt.Fprintf(w, "  ID: %s\n", d.DeviceID)
	fmt.Fprintf(w, "  Generation: %s\n", d.Generation)
	if d.Calibration != nil {
		fmt.Fprintf(w, "  Calibration: mv_zero=%d\n", *d.Calibration)
	} else {
		fmt.Fprintf(w, "  Calibration: missing (flow thresholds cannot be converted)\n")
	}

	if d.Generation == params.Syrus4 {
		fmt.Fprintf(w, "  Applications: %d\n", len(d.Instances))
		for _, inst := range d.Instances {
			fmt.Fprintf(w, "    %-24s %s\n", inst.AppName, inst.Version)
		}
		fmt.Fprintf(w, "  Version: %s\n", d.Version)
	}

	fmt.Fprintf(w, "\n--- Discovery summary ---\n")
	if d.usable() {
		fmt.Fprintf(w, "Device ready for configuration\n")
	} else {
		fmt.Fprintf(w, "Device is missing calibration or firmware information\n")
	}
}
