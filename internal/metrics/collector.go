// Package metrics exposes the reflector's Prometheus instrumentation:
// live sessions and clients, packet counters per queue, the processor
// path cache size, and sync-gate hold time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "goreflector"

// Label names.
const (
	labelListener = "listener"
	labelModule   = "module"
	labelReason   = "reason"
)

// Collector holds all reflector Prometheus metrics. Of these, only
// PathCacheSize is updated by the daemon (from its stale-client reaper);
// the others change only through their setter methods, which nothing
// outside this package's tests calls.
type Collector struct {
	// Sessions tracks the number of currently registered listener
	// sessions (internal/session.Manager.RegisterListener /
	// UnregisterListener).
	Sessions prometheus.Gauge

	// Clients tracks the number of client-list entries per listener
	// (internal/session.Manager.ClientAdd / ClientRemove).
	Clients *prometheus.GaugeVec

	// PacketsReceived counts datagrams read by a listener module.
	PacketsReceived *prometheus.CounterVec

	// PacketsSent counts datagrams written by a sender module.
	PacketsSent *prometheus.CounterVec

	// PacketsDropped counts packets discarded before reaching a sender,
	// labeled by the module and reason (e.g. "no_clients", "filtered").
	PacketsDropped *prometheus.CounterVec

	// PathCacheSize reports the processor master's memoized path count
	// (internal/processor.Master.CacheSize).
	PathCacheSize prometheus.Gauge

	// GateHoldSeconds observes how long the admin sync Gate is held per
	// request (internal/admin.Gate.Enter/Exit).
	GateHoldSeconds prometheus.Histogram
}

// NewCollector creates a Collector with all metrics registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.Clients,
		c.PacketsReceived,
		c.PacketsSent,
		c.PacketsDropped,
		c.PathCacheSize,
		c.GateHoldSeconds,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "listeners",
			Help:      "Number of currently registered listener sessions.",
		}),

		Clients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "clients",
			Help:      "Number of client-list entries per listener.",
		}, []string{labelListener}),

		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packet",
			Name:      "received_total",
			Help:      "Total datagrams received per listener module.",
		}, []string{labelModule}),

		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packet",
			Name:      "sent_total",
			Help:      "Total datagrams sent per sender module.",
		}, []string{labelModule}),

		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packet",
			Name:      "dropped_total",
			Help:      "Total packets dropped before reaching a sender.",
		}, []string{labelModule, labelReason}),

		PathCacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "path_cache_size",
			Help:      "Number of memoized processor paths currently held.",
		}),

		GateHoldSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "gate_hold_seconds",
			Help:      "Duration the synchronous admin request gate was held.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// -------------------------------------------------------------------------
// Session / client gauges
// -------------------------------------------------------------------------

// SetSessions sets the live listener-session gauge.
func (c *Collector) SetSessions(n int) {
	c.Sessions.Set(float64(n))
}

// SetClients sets the live client-count gauge for listener.
func (c *Collector) SetClients(listener string, n int) {
	c.Clients.WithLabelValues(listener).Set(float64(n))
}

// -------------------------------------------------------------------------
// Packet counters
// -------------------------------------------------------------------------

// IncPacketsReceived increments the received-packet counter for module.
func (c *Collector) IncPacketsReceived(module string) {
	c.PacketsReceived.WithLabelValues(module).Inc()
}

// IncPacketsSent increments the sent-packet counter for module.
func (c *Collector) IncPacketsSent(module string) {
	c.PacketsSent.WithLabelValues(module).Inc()
}

// IncPacketsDropped increments the dropped-packet counter for module and reason.
func (c *Collector) IncPacketsDropped(module, reason string) {
	c.PacketsDropped.WithLabelValues(module, reason).Inc()
}

// -------------------------------------------------------------------------
// Processor / admin gauges
// -------------------------------------------------------------------------

// SetPathCacheSize sets the processor path-cache-size gauge.
func (c *Collector) SetPathCacheSize(n int) {
	c.PathCacheSize.Set(float64(n))
}

// ObserveGateHold records how long the sync Gate was held for one request.
func (c *Collector) ObserveGateHold(seconds float64) {
	c.GateHoldSeconds.Observe(seconds)
}
