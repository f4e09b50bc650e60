// Package metrics provides Prometheus metrics for ingestion, fan-out and
// the live gateway.
package metrics

import (
    "fmt"
    "time"

    "github.com/prometheus/client_golang/prometheus"
)

// Result labels shared by the counters below.
const (
    ResultSuccess    = "success"
    ResultInvalid    = "invalid"
    ResultDenied     = "denied"
    ResultError      = "error"
    ResultTimeout    = "timeout"
)

// Metrics contains every collector the server exports.  A nil *Metrics is
// valid and records nothing, which keeps tests free of registry setup.
type Metrics struct {
    // Ingestion
    ImportsTotal    *prometheus.CounterVec   // imports by result
    ImportDuration  prometheus.Histogram     // wall time of one import including hooks
    EntitiesCreated *prometheus.CounterVec   // lazily created systems, talkgroups, units
    HookDuration    *prometheus.HistogramVec // post-commit hook latency by hook

    // Fan-out
    FanoutPublishes *prometheus.CounterVec // publishes by result
    FanoutChannels  prometheus.Histogram   // channels per published event

    // Live gateway
    LiveConnections prometheus.Gauge       // open websocket connections
    LiveDelivered   prometheus.Counter     // messages queued to connections
    LiveDropped     *prometheus.CounterVec // messages dropped by reason

    registry prometheus.Registerer
}

// New creates the collectors and registers them with registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
    m := &Metrics{registry: registry}
    m.initMetrics()
    for _, c := range m.collectors() {
        if err := registry.Register(c); err != nil {
            return nil, fmt.Errorf("failed to register trunk-player metrics: %w", err)
        }
    }
    return m, nil
}

func (m *Metrics) initMetrics() {
    m.ImportsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "trunkplayer_imports_total",
            Help: "Transmission imports by result",
        },
        []string{"result"}, // success, invalid, denied, error
    )
    m.ImportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
        Name:    "trunkplayer_import_duration_seconds",
        Help:    "Time taken to import one transmission, post-commit hooks included",
        Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
    })
    m.EntitiesCreated = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "trunkplayer_entities_created_total",
            Help: "Systems, talkgroups and units created on first reference during import",
        },
        []string{"kind"}, // system, talkgroup, unit
    )
    m.HookDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Name:    "trunkplayer_import_hook_duration_seconds",
            Help:    "Latency of post-commit import hooks",
            Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
        },
        []string{"hook", "result"},
    )
    m.FanoutPublishes = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "trunkplayer_fanout_publishes_total",
            Help: "Live fan-out publishes by result",
        },
        []string{"result"}, // success, error, timeout
    )
    m.FanoutChannels = prometheus.NewHistogram(prometheus.HistogramOpts{
        Name:    "trunkplayer_fanout_channels",
        Help:    "Number of live channels addressed by one transmission",
        Buckets: []float64{2, 3, 4, 6, 8, 12, 16, 32},
    })
    m.LiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
        Name: "trunkplayer_live_connections",
        Help: "Currently open live websocket connections",
    })
    m.LiveDelivered = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "trunkplayer_live_messages_delivered_total",
        Help: "Messages queued for delivery to live connections",
    })
    m.LiveDropped = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "trunkplayer_live_messages_dropped_total",
            Help: "Messages not delivered to a live connection, by reason",
        },
        []string{"reason"}, // buffer_full, closed, filtered
    )
}

func (m *Metrics) collectors() []prometheus.Collector {
    return []prometheus.Collector{
        m.ImportsTotal, m.ImportDuration, m.EntitiesCreated, m.HookDuration,
        m.FanoutPublishes, m.FanoutChannels,
        m.LiveConnections, m.LiveDelivered, m.LiveDropped,
    }
}

// RecordImport counts one import outcome and its duration.
func (m *Metrics) RecordImport(result string, d time.Duration) {
    if m == nil {
        return
    }
    m.ImportsTotal.WithLabelValues(result).Inc()
    if result == ResultSuccess {
        m.ImportDuration.Observe(d.Seconds())
    }
}

// RecordEntityCreated counts a lazily created system, talkgroup or unit.
func (m *Metrics) RecordEntityCreated(kind string) {
    if m == nil {
        return
    }
    m.EntitiesCreated.WithLabelValues(kind).Inc()
}

// RecordHook observes one post-commit hook run.
func (m *Metrics) RecordHook(hook, result string, d time.Duration) {
    if m == nil {
        return
    }
    m.HookDuration.WithLabelValues(hook, result).Observe(d.Seconds())
}

// RecordFanout counts one fan-out publish addressed to n channels.
func (m *Metrics) RecordFanout(result string, n int) {
    if m == nil {
        return
    }
    m.FanoutPublishes.WithLabelValues(result).Inc()
    m.FanoutChannels.Observe(float64(n))
}

// LiveConnected adjusts the open connection gauge by delta.
func (m *Metrics) LiveConnected(delta int) {
    if m == nil {
        return
    }
    m.LiveConnections.Add(float64(delta))
}

// RecordDelivered counts one message queued to a connection.
func (m *Metrics) RecordDelivered() {
    if m == nil {
        return
    }
    m.LiveDelivered.Inc()
}

// RecordDropped counts one message not delivered to a connection.
func (m *Metrics) RecordDropped(reason string) {
    if m == nil {
        return
    }
    m.LiveDropped.WithLabelValues(reason).Inc()
}
