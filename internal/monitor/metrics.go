// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package monitor exposes Prometheus metrics for frames, decoded results,
// realtime events and gateway commands.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
)

// Metrics holds every ecostat collector
type Metrics struct {
	registry *prometheus.Registry

	FramesReceived  *prometheus.CounterVec
	ResultsDecoded  *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	DecodeMisses    prometheus.Counter
	CommandsSent    *prometheus.CounterVec
	CommandErrors   *prometheus.CounterVec
	CommandDuration prometheus.Histogram
	FlowGPM         prometheus.Gauge
	ProcessCode     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecostat_frames_received_total",
			Help: "Frames read from the realtime connection",
		}, []string{"generation"}),

		ResultsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecostat_results_decoded_total",
			Help: "Frames decoded into a parameter result",
		}, []string{"key"}),

		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecostat_rejections_total",
			Help: "Set commands rejected by the device",
		}, []string{"key"}),

		DecodeMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecostat_decode_misses_total",
			Help: "Frames that were neither a parameter nor an event",
		}),

		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecostat_commands_sent_total",
			Help: "Commands sent through the gateway",
		}, []string{"kind"}),

		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecostat_command_errors_total",
			Help: "Commands that failed or timed out",
		}, []string{"kind"}),

		CommandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecostat_command_duration_seconds",
			Help:    "Time from command submission to device response",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),

		FlowGPM: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecostat_flow_gpm",
			Help: "Last flow reading in gallons per minute",
		}),

		ProcessCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecostat_process_code",
			Help: "Last process code reported by the device",
		}),
	}

	m.registry.MustRegister(
		m.FramesReceived,
		m.ResultsDecoded,
		m.Rejections,
		m.DecodeMisses,
		m.CommandsSent,
		m.CommandErrors,
		m.CommandDuration,
		m.FlowGPM,
		m.ProcessCode,
	)
	return m
}

// ObserveResult counts a decoded result, separating rejections
func (m *Metrics) ObserveResult(r ecoplant.Result) {
	if r.Value == ecoplant.InvalidParameter {
		m.Rejections.WithLabelValues(string(r.Key)).Inc()
		return
	}
	m.ResultsDecoded.WithLabelValues(string(r.Key)).Inc()
}

// ObserveEvent updates the realtime gauges
func (m *Metrics) ObserveEvent(ev ecoplant.Event) {
	switch ev.Kind {
	case ecoplant.EventProcess:
		m.ProcessCode.Set(float64(ev.Process))
	case ecoplant.EventFlow:
		if ev.HasGPM {
			m.FlowGPM.Set(float64(ev.GPM))
		}
	}
}

// ObserveCommand records one gateway round trip
func (m *Metrics) ObserveCommand(kind string, started time.Time, err error) {
	m.CommandsSent.WithLabelValues(kind).Inc()
	if err != nil {
		m.CommandErrors.WithLabelValues(kind).Inc()
		return
	}
	m.CommandDuration.Observe(time.Since(started).Seconds())
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics and /health on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
