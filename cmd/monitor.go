// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ecoplant/ecostat/internal/monitor"
	"github.com/ecoplant/ecostat/internal/sink"
	"github.com/ecoplant/ecostat/pkg/params"
)

var (
	monitorQuery         bool
	monitorReplay        string
	monitorStatsInterval int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display decoded realtime frames as they arrive",
	Long: `Continuously decode and display Syrus frames from the realtime channel.

Every frame is decoded for the configured generation. Parameter results,
rejections, process codes and flow readings are printed as they arrive.

When configured, results are also:
  - counted on a Prometheus endpoint (monitor.addr / ECOSTAT_METRICS_ADDR)
  - published to Redis (redis.addr / ECOSTAT_REDIS_ADDR)
  - published to MQTT as retained messages (mqtt.broker / ECOSTAT_MQTT_BROKER)

With --query the parameter queries are written to the connection first, so a
Syrus 3 console reports every value without waiting for changes.

With --replay a capture file is decoded instead of opening a connection.

With --stats-interval a summary of frame counts and rates is printed
periodically and once more on exit.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorQuery, "query", false, "Send the parameter queries after connecting")
	monitorCmd.Flags().StringVar(&monitorReplay, "replay", "", "Decode a capture file (one frame per line) instead of connecting")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 0, "Statistics summary interval in seconds (0 disables)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorReplay != "" {
		session := params.NewSession(cfg.Device.ID, cfg.Generation(), cfg.Device.MvZero)
		return decodeFile(session, monitorReplay, cmd.OutOrStdout())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, client, err := OpenGateway()
	if err != nil {
		// Metadata is optional here; calibration can come from --mv-zero
		logrus.Debugf("Gateway unavailable: %v", err)
	}
	session := newSession(ctx, client)

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	metrics := monitor.NewMetrics()
	if cfg.Monitor.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Monitor.Addr); err != nil {
				logrus.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	sinks, err := openSinks(ctx)
	if err != nil {
		return err
	}
	defer sinks.Close()

	fmt.Printf("Ecostat - Realtime Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Device: %s (%s)\n", orUnknown(session.DeviceID()), session.Generation())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if monitorQuery {
		queries, err := params.QueryCommands(session.Generation())
		if err != nil {
			return err
		}
		for _, q := range queries {
			if err := conn.WriteFrame(q); err != nil {
				return fmt.Errorf("send query %s: %w", q, err)
			}
		}
	}

	// Unblock ReadFrame on shutdown
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	stats := params.NewStatistics()
	statsInterval := time.Duration(monitorStatsInterval) * time.Second
	lastStats := time.Now()
	defer func() {
		if statsInterval > 0 {
			fmt.Print(stats)
		}
	}()

	generationLabel := session.Generation().String()
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(err, ErrConnectionClosed) {
				logrus.Info("Connection closed")
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		metrics.FramesReceived.WithLabelValues(generationLabel).Inc()
		outcome := classifyFrame(session, frame)
		fmt.Println(outcome)

		switch {
		case outcome.isResult:
			stats.RecordResult(outcome.result)
			metrics.ObserveResult(outcome.result)
			msg := sink.NewMessage(session.DeviceID(), outcome.result)
			if err := sinks.Publish(ctx, msg); err != nil {
				logrus.Warnf("Publish failed: %v", err)
			}
		case outcome.isEvent:
			stats.RecordEvent(outcome.event)
			metrics.ObserveEvent(outcome.event)
		default:
			stats.RecordUnknown()
			metrics.DecodeMisses.Inc()
			logrus.Debugf("Unrecognized frame: %q", frame)
		}

		if statsInterval > 0 && time.Since(lastStats) >= statsInterval {
			fmt.Print(stats)
			lastStats = time.Now()
		}
	}
}

// openSinks connects every configured result sink
func openSinks(ctx context.Context) (sink.Multi, error) {
	var sinks sink.Multi

	if cfg.Redis.Addr != "" {
		r, err := sink.NewRedisSink(ctx, sink.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, r)
	}

	if cfg.MQTT.Broker != "" {
		m, err := sink.NewMQTTSink(sink.MQTTOptions{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		})
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, m)
	}

	return sinks, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
