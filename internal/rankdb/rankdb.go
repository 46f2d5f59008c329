// Package rankdb tracks the live mapping from MPI rank to the host
// MAC currently running that rank, as reported by announcement
// datagrams.
package rankdb

import (
	"sync"

	"github.com/sdnmpi/controller/internal/model"
	"github.com/sdnmpi/controller/internal/signal"
)

// DB is the rank allocation table. The zero value is not usable; use New.
type DB struct {
	mu        sync.RWMutex
	rankToMAC map[int32]model.MAC

	ProcessAdded   signal.Signal[model.RankEntry]
	ProcessDeleted signal.Signal[int32]
}

// New creates an empty rank allocation table.
func New() *DB {
	return &DB{rankToMAC: make(map[int32]model.MAC)}
}

// AddProcess records that rank is now running on mac, overwriting any
// prior entry for that rank, and fires ProcessAdded.
func (d *DB) AddProcess(rank int32, mac model.MAC) {
	d.mu.Lock()
	d.rankToMAC[rank] = mac
	d.mu.Unlock()
	d.ProcessAdded.Fire(model.RankEntry{Rank: rank, MAC: mac})
}

// DeleteProcess removes rank's allocation, if any, and fires
// ProcessDeleted unconditionally, matching the announcement stream's
// exit events for ranks the controller may never have seen launch.
func (d *DB) DeleteProcess(rank int32) {
	d.mu.Lock()
	delete(d.rankToMAC, rank)
	d.mu.Unlock()
	d.ProcessDeleted.Fire(rank)
}

// Resolve returns the host MAC running rank, if known.
func (d *DB) Resolve(rank int32) (model.MAC, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	mac, ok := d.rankToMAC[rank]
	return mac, ok
}

// Snapshot returns every current rank allocation.
func (d *DB) Snapshot() []model.RankEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entries := make([]model.RankEntry, 0, len(d.rankToMAC))
	for rank, mac := range d.rankToMAC {
		entries = append(entries, model.RankEntry{Rank: rank, MAC: mac})
	}
	return entries
}
