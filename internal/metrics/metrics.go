// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the engine's Prometheus instrumentation:
// packet-in throughput, trace-tree growth, and the handful of failure
// counters an operator watches to know whether the reactive table is
// keeping up with the network.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every Prometheus collector this engine registers.
type Metrics struct {
	PacketInTotal       *prometheus.CounterVec
	PacketInLatency     *prometheus.HistogramVec
	TreeLeafCount        prometheus.Gauge
	UnhandledPacketTotal prometheus.Counter
	PriorityExceededTotal *prometheus.CounterVec
	FlowModTotal         *prometheus.CounterVec
	LiveFlowCount        *prometheus.GaugeVec
	SwitchesConnected    prometheus.Gauge
}

// New constructs a Metrics with every collector created but not yet
// registered.
func New() *Metrics {
	return &Metrics{
		PacketInTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reactived_packet_in_total",
			Help: "Total packet-in messages processed, by classification.",
		}, []string{"switch_id", "class"}),

		PacketInLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reactived_packet_in_duration_seconds",
			Help:    "Time spent handling one packet-in, from dispatch to installer completion.",
			Buckets: prometheus.DefBuckets,
		}, []string{"switch_id"}),

		TreeLeafCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reactived_tree_leaf_count",
			Help: "Number of Flow leaves currently reachable in the trace tree.",
		}),

		UnhandledPacketTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reactived_unhandled_packet_total",
			Help: "Packet-ins for which every handler in the pipeline returned Undefined.",
		}),

		PriorityExceededTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reactived_priority_exceeded_total",
			Help: "Times a Test allocation found no priority room and triggered a rebalance.",
		}, []string{"switch_id"}),

		FlowModTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reactived_flow_mod_total",
			Help: "Flow-mods sent to switches, by operation.",
		}, []string{"switch_id", "op"}),

		LiveFlowCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reactived_live_flow_count",
			Help: "Flows currently tracked in a switch's live-flow map, by state.",
		}, []string{"switch_id", "state"}),

		SwitchesConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reactived_switches_connected",
			Help: "Number of switches with a live control connection.",
		}),
	}
}

// MustRegister registers every collector against reg.
func (m *Metrics) MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		m.PacketInTotal,
		m.PacketInLatency,
		m.TreeLeafCount,
		m.UnhandledPacketTotal,
		m.PriorityExceededTotal,
		m.FlowModTotal,
		m.LiveFlowCount,
		m.SwitchesConnected,
	)
}
