// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ecoplant/ecostat/internal/api"
	"github.com/ecoplant/ecostat/internal/gateway"
	"github.com/ecoplant/ecostat/internal/monitor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the protocol translation layer over HTTP",
	Long: `Run the HTTP API used by the web dashboard.

The API decodes frames, builds set and window commands for either device
generation, decodes bulk dumps and version lists, and reconciles parameter
sets. When a gateway is configured (or --dry-run is given) it can also send
built commands to a device.

Requests under /v1 require "Authorization: Bearer <token>" when api.bearer_token
(ECOSTAT_API_TOKEN) is set. Prometheus metrics are served separately on
monitor.addr (ECOSTAT_METRICS_ADDR) when configured.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var exec gateway.Executor
	if cfg.Gateway.URL != "" || dryRun {
		var err error
		exec, _, err = OpenGateway()
		if err != nil {
			return err
		}
	} else {
		logrus.Info("No gateway configured; command sending is disabled")
	}

	metrics := monitor.NewMetrics()
	server := api.New(api.Options{
		Addr:        cfg.API.Addr,
		BearerToken: cfg.API.BearerToken,
		Executor:    exec,
		Metrics:     metrics,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	if cfg.Monitor.Addr != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, cfg.Monitor.Addr)
		})
	}
	return g.Wait()
}
