package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/dantte-lp/goreflector/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	if c.Sessions == nil {
		t.Error("Sessions is nil")
	}
	if c.Clients == nil {
		t.Error("Clients is nil")
	}
	if c.PacketsReceived == nil {
		t.Error("PacketsReceived is nil")
	}
	if c.PacketsSent == nil {
		t.Error("PacketsSent is nil")
	}
	if c.PacketsDropped == nil {
		t.Error("PacketsDropped is nil")
	}
	if c.PathCacheSize == nil {
		t.Error("PathCacheSize is nil")
	}
	if c.GateHoldSeconds == nil {
		t.Error("GateHoldSeconds is nil")
	}

	// Verify all metrics are registered by gathering them.
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestSessionsAndClients(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.SetSessions(3)
	if v := gaugeValue(t, c.Sessions); v != 3 {
		t.Errorf("Sessions = %v, want 3", v)
	}

	c.SetClients("udp-127.0.0.1:6000", 5)
	if v := gaugeVecValue(t, c.Clients, "udp-127.0.0.1:6000"); v != 5 {
		t.Errorf("Clients(listener) = %v, want 5", v)
	}

	c.SetClients("udp-127.0.0.1:6000", 2)
	if v := gaugeVecValue(t, c.Clients, "udp-127.0.0.1:6000"); v != 2 {
		t.Errorf("Clients(listener) after update = %v, want 2", v)
	}
}

func TestPacketCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncPacketsReceived("udp-0")
	c.IncPacketsReceived("udp-0")
	c.IncPacketsReceived("udp-0")

	if v := counterVecValue(t, c.PacketsReceived, "udp-0"); v != 3 {
		t.Errorf("PacketsReceived = %v, want 3", v)
	}

	c.IncPacketsSent("sender")
	c.IncPacketsSent("sender")

	if v := counterVecValue(t, c.PacketsSent, "sender"); v != 2 {
		t.Errorf("PacketsSent = %v, want 2", v)
	}

	c.IncPacketsDropped("filter", "no_clients")

	if v := counterVecValue(t, c.PacketsDropped, "filter", "no_clients"); v != 1 {
		t.Errorf("PacketsDropped = %v, want 1", v)
	}
}

func TestPathCacheSize(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.SetPathCacheSize(7)

	if v := gaugeValue(t, c.PathCacheSize); v != 7 {
		t.Errorf("PathCacheSize = %v, want 7", v)
	}
}

func TestObserveGateHold(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.ObserveGateHold(0.002)
	c.ObserveGateHold(0.01)

	m := &dto.Metric{}
	if err := c.GateHoldSeconds.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	if got := m.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("GateHoldSeconds sample count = %d, want 2", got)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func gaugeVecValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func counterVecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
