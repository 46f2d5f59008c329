// Package metrics defines the controller's Prometheus metrics. All
// metrics use the "sdnmpi_" prefix. This is self-instrumentation of
// the control plane's own behavior — it is unrelated to PortStats
// telemetry collected from switches, whose rates go to Monitor's rate
// observer, not the scrape endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sdnmpi"

// --- PacketIn / flow install metrics ---

var (
	// PacketInsTotal counts PacketIn messages by classification.
	PacketInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packet_ins_total",
		Help:      "Total PacketIn messages handled, by router classification.",
	}, []string{"class"})

	// FlowModsTotal counts FlowMod messages installed.
	FlowModsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flow_mods_total",
		Help:      "Total FlowMod messages installed, by branch.",
	}, []string{"branch"})

	// RouteSearchDuration tracks TopologyDB.FindRoute latency.
	RouteSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "route_search_duration_seconds",
		Help:      "Duration of route search calls.",
		Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})
)

// --- Topology metrics ---

var (
	// SwitchesConnected is a gauge of currently connected switches.
	SwitchesConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "switches_connected",
		Help:      "Number of currently connected switches.",
	})

	// LinksDiscovered is a gauge of currently known inter-switch links.
	LinksDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "links_discovered",
		Help:      "Number of currently known inter-switch links.",
	})

	// HostsKnown is a gauge of currently known hosts.
	HostsKnown = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hosts_known",
		Help:      "Number of currently known hosts.",
	})
)

// --- RankDB metrics ---

var (
	// ProcessesActive is a gauge of currently allocated MPI ranks.
	ProcessesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "processes_active",
		Help:      "Number of currently allocated MPI ranks.",
	})

	// AnnouncementsTotal counts decoded announcement datagrams.
	AnnouncementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "announcements_total",
		Help:      "Total announcement datagrams processed, by kind.",
	}, []string{"kind"})

	// AnnouncementErrorsTotal counts malformed announcement datagrams.
	AnnouncementErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "announcement_errors_total",
		Help:      "Total malformed announcement datagrams dropped.",
	})
)

// --- RPCHub metrics ---

var (
	// SubscribersConnected is a gauge of currently connected RPC subscribers.
	SubscribersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscribers_connected",
		Help:      "Number of currently connected RPC subscribers.",
	})

	// SubscriberEvictionsTotal counts subscribers evicted after a transport error.
	SubscriberEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscriber_evictions_total",
		Help:      "Total RPC subscribers evicted after a transport error.",
	})
)
