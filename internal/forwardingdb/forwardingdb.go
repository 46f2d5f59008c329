// Package forwardingdb memoises the (dpid, src MAC, dst MAC) -> egress
// port flows already installed on each switch, so Router never
// installs the same FlowMod twice.
package forwardingdb

import (
	"sync"

	"github.com/sdnmpi/controller/internal/model"
	"github.com/sdnmpi/controller/internal/signal"
)

// DB is the per-switch forwarding memo. The zero value is not usable; use New.
type DB struct {
	mu    sync.RWMutex
	table map[model.ForwardingKey]uint16

	Changed signal.Signal[model.ForwardingEntry]
}

// New creates an empty forwarding memo.
func New() *DB {
	return &DB{table: make(map[model.ForwardingKey]uint16)}
}

// Has reports whether a flow for (dpid, src, dst) is already installed.
func (d *DB) Has(dpid model.DPID, src, dst model.MAC) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.table[model.ForwardingKey{DPID: dpid, Src: src, Dst: dst}]
	return ok
}

// Record memoises that dpid now forwards (src, dst) out outPort, and
// fires Changed.
func (d *DB) Record(dpid model.DPID, src, dst model.MAC, outPort uint16) {
	d.mu.Lock()
	d.table[model.ForwardingKey{DPID: dpid, Src: src, Dst: dst}] = outPort
	d.mu.Unlock()
	d.Changed.Fire(model.ForwardingEntry{DPID: dpid, Src: src, Dst: dst, OutPort: outPort})
}

// SnapshotAsList flattens the memo into the entry list RPCHub sends
// subscribers on connect.
func (d *DB) SnapshotAsList() []model.ForwardingEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entries := make([]model.ForwardingEntry, 0, len(d.table))
	for key, port := range d.table {
		entries = append(entries, model.ForwardingEntry{
			DPID: key.DPID, Src: key.Src, Dst: key.Dst, OutPort: port,
		})
	}
	return entries
}
