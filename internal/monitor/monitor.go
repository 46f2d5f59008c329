// Package monitor polls every connected switch for port counters on a
// fixed interval and turns consecutive snapshots into per-second
// rates.
package monitor

import (
	"context"
	"time"

	"github.com/sdnmpi/controller/internal/model"
	"github.com/sdnmpi/controller/internal/ofproto"
)

// PollInterval is the fixed cadence port stats are collected on.
const PollInterval = 1 * time.Second

// SwitchSet enumerates the currently connected switches to poll.
type SwitchSet func() map[model.DPID]ofproto.Switch

// RateObserver is called once per port per poll after a prior
// snapshot exists to diff against.
type RateObserver func(model.PortRate)

// Monitor polls port stats and computes rates.
type Monitor struct {
	switches SwitchSet
	onRate   RateObserver
	now      func() time.Time

	last map[model.DPID]map[uint16]model.PortStats
}

// New creates a Monitor. now is injected so tests can control wall
// clock time; production callers pass time.Now.
func New(switches SwitchSet, onRate RateObserver, now func() time.Time) *Monitor {
	return &Monitor{
		switches: switches,
		onRate:   onRate,
		now:      now,
		last:     make(map[model.DPID]map[uint16]model.PortStats),
	}
}

// Run polls every PollInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce()
		}
	}
}

func (m *Monitor) pollOnce() {
	for dpid, sw := range m.switches() {
		replies, err := sw.RequestPortStats(ofproto.PortStatsRequest{PortNo: ofproto.PortAll})
		if err != nil {
			continue
		}
		for _, reply := range replies {
			m.observe(dpid, reply)
		}
	}
}

// observe records one port's stats reply and, when a prior
// observation exists for that port, emits the computed rate.
func (m *Monitor) observe(dpid model.DPID, reply ofproto.PortStatsReply) {
	nowS := float64(m.now().UnixNano()) / 1e9
	stats := model.PortStats{
		DPID:       dpid,
		PortNo:     reply.PortNo,
		TimestampS: nowS,
		RxPackets:  reply.RxPackets,
		RxBytes:    reply.RxBytes,
		TxPackets:  reply.TxPackets,
		TxBytes:    reply.TxBytes,
	}

	ports, ok := m.last[dpid]
	if !ok {
		ports = make(map[uint16]model.PortStats)
		m.last[dpid] = ports
	}
	prev, hasPrev := ports[reply.PortNo]
	ports[reply.PortNo] = stats

	if !hasPrev {
		return
	}
	elapsed := stats.TimestampS - prev.TimestampS
	if elapsed <= 0 {
		return
	}
	m.onRate(model.PortRate{
		DPID:      dpid,
		PortNo:    reply.PortNo,
		RxPackets: float64(stats.RxPackets-prev.RxPackets) / elapsed,
		RxBytes:   float64(stats.RxBytes-prev.RxBytes) / elapsed,
		TxPackets: float64(stats.TxPackets-prev.TxPackets) / elapsed,
		TxBytes:   float64(stats.TxBytes-prev.TxBytes) / elapsed,
	})
}
