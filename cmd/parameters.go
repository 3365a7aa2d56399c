// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ecoplant/ecostat/internal/gateway"
	"github.com/ecoplant/ecostat/internal/sink"
	"github.com/ecoplant/ecostat/pkg/ecoplant"
	"github.com/ecoplant/ecostat/pkg/params"
	"github.com/ecoplant/ecostat/pkg/syrus4"
)

var (
	paramsTimeout int
	paramsJSON    bool
	paramsCached  bool
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Query and display every operating parameter of a device",
	Long: `Query a device for all of its operating parameters and print them.

Syrus 3 devices are asked one query per parameter plus the three schedule
slots. Syrus 4 devices answer a single bulk query, and their installed
application version is looked up as well.

A parameter the device did not report is shown with status "error".

With --cached the values last published to Redis by "monitor" are shown
instead, without contacting the device.`,
	RunE: runParams,
}

func init() {
	rootCmd.AddCommand(paramsCmd)
	paramsCmd.Flags().IntVar(&paramsTimeout, "timeout", 120, "Timeout in seconds for all queries")
	paramsCmd.Flags().BoolVar(&paramsJSON, "json", false, "Print the parameters as JSON")
	paramsCmd.Flags().BoolVar(&paramsCached, "cached", false, "Show the values stored in Redis instead of querying the device")
}

// deviceReport is everything "params" learned about a device
type deviceReport struct {
	DeviceID   string              `json:"device_id"`
	Generation string              `json:"generation"`
	Version    string              `json:"version,omitempty"`
	Parameters params.ParameterSet `json:"parameters"`
	Bulk       *syrus4.BulkParams  `json:"bulk,omitempty"`
	Raw        map[string]string   `json:"raw,omitempty"`
	Elapsed    string              `json:"elapsed"`

	state params.QueryState
}

func runParams(cmd *cobra.Command, args []string) error {
	device, err := requireDevice()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(paramsTimeout)*time.Second)
	defer cancel()

	if paramsCached {
		report, err := cachedParameters(ctx, device)
		if err != nil {
			return err
		}
		return writeReport(cmd.OutOrStdout(), report)
	}

	exec, client, err := OpenGateway()
	if err != nil {
		return err
	}
	session := newSession(ctx, client)

	started := time.Now()
	report, err := collectParameters(ctx, exec, session)
	if err != nil {
		return err
	}
	if client != nil && session.Generation() == params.Syrus4 {
		instances, err := client.Instances(ctx, device)
		if err != nil {
			logrus.Warnf("Version lookup failed: %v", err)
		}
		report.Version = syrus4.DecodeVersionInfo(instances)
	}
	report.Elapsed = time.Since(started).Round(time.Millisecond).String()

	return writeReport(cmd.OutOrStdout(), report)
}

func writeReport(w io.Writer, report deviceReport) error {
	if paramsJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(w, report)
	return nil
}

// cachedParameters reads the latest published values of device from Redis
func cachedParameters(ctx context.Context, device string) (deviceReport, error) {
	if cfg.Redis.Addr == "" {
		return deviceReport{}, errors.New("--cached requires redis.addr (ECOSTAT_REDIS_ADDR)")
	}
	store, err := sink.NewRedisSink(ctx, sink.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Channel:  cfg.Redis.Channel,
	})
	if err != nil {
		return deviceReport{}, err
	}
	defer store.Close()

	stored, err := store.Latest(ctx, device)
	if err != nil {
		return deviceReport{}, fmt.Errorf("read cached values: %w", err)
	}
	return cachedReport(device, cfg.Generation(), stored), nil
}

// cachedReport reconciles stored values as if every query had completed
func cachedReport(device string, gen params.Generation, stored map[string]string) deviceReport {
	live := make(map[ecoplant.SocketKey]string, len(stored))
	for _, key := range ecoplant.SocketKeys {
		if value, ok := stored[string(key)]; ok {
			live[key] = value
		}
	}
	return deviceReport{
		DeviceID:   device,
		Generation: gen.String(),
		Parameters: params.Reconcile(live, nil, gen, params.QueryDone),
		Elapsed:    "cached",
		state:      params.QueryDone,
	}
}

// collectParameters sends every query for the session's generation and
// reconciles the responses. A failed query is logged and leaves its
// parameters in the error state.
func collectParameters(ctx context.Context, exec gateway.Executor, session *params.Session) (deviceReport, error) {
	gen := session.Generation()
	queries, err := params.QueryCommands(gen)
	if err != nil {
		return deviceReport{}, err
	}

	report := deviceReport{
		DeviceID:   session.DeviceID(),
		Generation: gen.String(),
		Raw:        make(map[string]string, len(queries)),
	}

	state := params.QueryDone
	for _, query := range queries {
		responses, err := gateway.Send(ctx, exec, session.DeviceID(), query)
		if err != nil {
			logrus.WithField("query", query).Warnf("Query failed: %v", err)
			state = params.QueryFailed
			if ctx.Err() != nil {
				break
			}
			continue
		}
		response := responses[0]
		report.Raw[query] = response

		if gen == params.Syrus4 {
			bulk := session.ObserveBulk(response)
			report.Bulk = &bulk
			continue
		}
		session.Observe(response)
	}

	report.state = state
	report.Parameters = params.Reconcile(session.Live(), report.Bulk, gen, state)
	return report, nil
}

func printReport(w io.Writer, r deviceReport) {
	fmt.Fprintf(w, "Device: %s (%s)\n", r.DeviceID, r.Generation)
	if r.Version != "" {
		fmt.Fprintf(w, "Version: %s\n", r.Version)
	}
	fmt.Fprintln(w)

	for _, key := range ecoplant.SocketKeys {
		p := r.Parameters[key]
		value := p.Value
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "  %-24s %-32s [%s]\n", key, value, p.Status)
	}
	fmt.Fprintf(w, "\nCompleted in %s\n", r.Elapsed)
}
