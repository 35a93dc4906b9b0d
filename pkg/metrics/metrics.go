// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/logger"
	"github.com/JustDevDev/thermolink/pkg/sentry"
)

const (
	// Component Labels.
	ComponentGraphStore  = "graph_store"
	ComponentPersistence = "persistence"
	ComponentLiveChannel = "live_channel"
	ComponentPlaceLookup = "place_lookup"
	ComponentSession     = "session"
	ComponentAPI         = "api"

	// Save and load results.
	ResultOK      = "ok"
	ResultEmpty   = "empty"
	ResultCorrupt = "corrupt"
	ResultError   = "error"

	// Telemetry drop reasons.
	DropUnknownNode = "unknown_node"
	DropNotSensor   = "not_sensor"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "thermolink"
	subsystem = "diagram"

	// Error counters.
	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	telemetryApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "telemetry_entries_applied_total",
			Help:      "Telemetry entries patched onto a sensor node",
		},
	)

	telemetryDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "telemetry_entries_dropped_total",
			Help:      "Telemetry entries that matched no sensor node",
		},
		[]string{"reason"},
	)

	savesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "saves_total",
			Help:      "Diagram saves by result",
		},
		[]string{"result"},
	)

	saveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "save_duration_seconds",
			Help:      "Duration of a full diagram save (visual blob and topology)",
			Buckets:   prometheus.DefBuckets,
		},
	)

	loadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "loads_total",
			Help:      "Diagram loads by result (ok, empty, corrupt, error)",
		},
		[]string{"result"},
	)

	reconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "channel_reconnect_attempts_total",
			Help:      "Automatic reconnect attempts of the live channel",
		},
	)

	channelConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "channel_connected",
			Help:      "1 while the live channel is open",
		},
	)

	editMode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "edit_mode",
			Help:      "1 while the diagram is in edit mode",
		},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of requests to the thermolink backend",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	placeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "place_lookups_total",
			Help:      "Place searches by source (cache, backend, stale)",
		},
		[]string{"source"},
	)
)

// IncErrorCount increments the error counter for a component.
func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

// IncErrorCountAndLog increments the error counter for a component and logs a debug message if a logger is provided.
func IncErrorCountAndLog(component, instance string, err error, log *zap.SugaredLogger) {
	IncErrorCount(component, instance)

	if log != nil {
		log.Debugf("Component %s instance %s failed: %v", component, instance, err)
	}
}

func IncTelemetryApplied() {
	telemetryApplied.Inc()
}

func IncTelemetryDropped(reason string) {
	telemetryDropped.WithLabelValues(reason).Inc()
}

// ObserveSave records the result and duration of a save.
func ObserveSave(result string, duration time.Duration) {
	savesTotal.WithLabelValues(result).Inc()
	saveDuration.Observe(duration.Seconds())
}

func IncLoad(result string) {
	loadsTotal.WithLabelValues(result).Inc()
}

func IncReconnectAttempt() {
	reconnectAttempts.Inc()
}

func SetChannelConnected(connected bool) {
	channelConnected.Set(boolToFloat(connected))
}

func SetEditMode(editing bool) {
	editMode.Set(boolToFloat(editing))
}

// ObserveBackendRequest records the duration of a backend request.
func ObserveBackendRequest(method, endpoint, status string, duration time.Duration) {
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

func IncPlaceLookup(source string) {
	placeLookups.WithLabelValues(source).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}

	return 0
}

// SetupMetricsEndpoint starts an HTTP server to expose metrics
// This should be called once at application startup.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssue(err, sentry.IssueTypeError, logger.For(logger.ComponentMetricServer))
		}
	}()

	return server
}
