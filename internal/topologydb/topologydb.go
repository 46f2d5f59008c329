// Package topologydb owns the discovered network graph: switches,
// links, hosts, and the spanning tree derived from them. It carries
// the two hardest algorithms in the control plane: loop-free route
// search and broadcast-port pruning.
package topologydb

import (
	"sync"

	"github.com/sdnmpi/controller/internal/model"
	"github.com/sdnmpi/controller/internal/ofproto"
	"github.com/sdnmpi/controller/internal/signal"
)

// Hop is one step of a resolved route: send the frame out OutPort on
// the switch named DPID.
type Hop struct {
	DPID    model.DPID
	OutPort uint16
}

// Snapshot is the RPC-facing view of the current graph.
type Snapshot struct {
	Switches []model.Switch
	Links    []model.Link
	Hosts    []model.Host
}

type linkEntry struct {
	dst  model.DPID
	link model.Link
}

// DB is the topology graph. The zero value is not usable; use New.
//
// Switches and links are kept in insertion order — not Go map
// iteration order — because route search and spanning tree traversal
// are specified to be deterministic given insertion order.
type DB struct {
	mu sync.RWMutex

	switchOrder []model.DPID
	switches    map[model.DPID]model.Switch

	adjacency map[model.DPID][]linkEntry

	hosts map[model.MAC]model.Host

	disabledPorts map[model.DPID]map[uint16]struct{}

	SwitchAdded   signal.Signal[model.Switch]
	SwitchDeleted signal.Signal[model.DPID]
	LinkAdded     signal.Signal[model.Link]
	LinkDeleted   signal.Signal[model.Link]
	HostAdded     signal.Signal[model.Host]
}

// New creates an empty topology graph.
func New() *DB {
	return &DB{
		switches:      make(map[model.DPID]model.Switch),
		adjacency:     make(map[model.DPID][]linkEntry),
		hosts:         make(map[model.MAC]model.Host),
		disabledPorts: make(map[model.DPID]map[uint16]struct{}),
	}
}

// AddSwitch registers a newly connected datapath.
func (d *DB) AddSwitch(sw model.Switch) {
	d.mu.Lock()
	if _, exists := d.switches[sw.DPID]; !exists {
		d.switchOrder = append(d.switchOrder, sw.DPID)
	}
	d.switches[sw.DPID] = sw
	d.recomputeSpanningTreeLocked()
	d.mu.Unlock()
	d.SwitchAdded.Fire(sw)
}

// DeleteSwitch removes dpid along with every link touching it, so a
// disconnected switch can no longer appear on any route. Deleting an
// absent switch is silent. Each removed link fires LinkDeleted before
// SwitchDeleted fires.
func (d *DB) DeleteSwitch(dpid model.DPID) {
	d.mu.Lock()
	var removedLinks []model.Link
	_, existed := d.switches[dpid]
	if existed {
		delete(d.switches, dpid)
		for i, id := range d.switchOrder {
			if id == dpid {
				d.switchOrder = append(d.switchOrder[:i], d.switchOrder[i+1:]...)
				break
			}
		}
		for _, e := range d.adjacency[dpid] {
			removedLinks = append(removedLinks, e.link)
		}
		delete(d.adjacency, dpid)
		for src, entries := range d.adjacency {
			kept := entries[:0]
			for _, e := range entries {
				if e.dst == dpid {
					removedLinks = append(removedLinks, e.link)
					continue
				}
				kept = append(kept, e)
			}
			d.adjacency[src] = kept
		}
	}
	d.recomputeSpanningTreeLocked()
	d.mu.Unlock()
	for _, link := range removedLinks {
		d.LinkDeleted.Fire(link)
	}
	if existed {
		d.SwitchDeleted.Fire(dpid)
	}
}

// AddLink records a directed link src->dst. Discovery reports both
// directions as two separate calls when a link is bidirectional.
func (d *DB) AddLink(link model.Link) {
	d.mu.Lock()
	srcDPID, dstDPID := link.Src.DPID, link.Dst.DPID
	entries := d.adjacency[srcDPID]
	replaced := false
	for i, e := range entries {
		if e.dst == dstDPID {
			entries[i] = linkEntry{dst: dstDPID, link: link}
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, linkEntry{dst: dstDPID, link: link})
	}
	d.adjacency[srcDPID] = entries
	d.recomputeSpanningTreeLocked()
	d.mu.Unlock()
	d.LinkAdded.Fire(link)
}

// DeleteLink removes the directed link src->dst. Deleting an absent
// link is silent.
func (d *DB) DeleteLink(link model.Link) {
	d.mu.Lock()
	srcDPID, dstDPID := link.Src.DPID, link.Dst.DPID
	entries := d.adjacency[srcDPID]
	existed := false
	for i, e := range entries {
		if e.dst == dstDPID {
			d.adjacency[srcDPID] = append(entries[:i], entries[i+1:]...)
			existed = true
			break
		}
	}
	d.recomputeSpanningTreeLocked()
	d.mu.Unlock()
	if existed {
		d.LinkDeleted.Fire(link)
	}
}

// AddHost records a host attached to a switch port.
func (d *DB) AddHost(host model.Host) {
	d.mu.Lock()
	d.hosts[host.MAC] = host
	d.recomputeSpanningTreeLocked()
	d.mu.Unlock()
	d.HostAdded.Fire(host)
}

// recomputeSpanningTreeLocked must be called with mu held.
func (d *DB) recomputeSpanningTreeLocked() {
	disabled := make(map[model.DPID]map[uint16]struct{})
	markInterSwitchPort := func(dpid model.DPID, port uint16) {
		set, ok := disabled[dpid]
		if !ok {
			set = make(map[uint16]struct{})
			disabled[dpid] = set
		}
		set[port] = struct{}{}
	}
	for _, srcDPID := range d.switchOrder {
		for _, e := range d.adjacency[srcDPID] {
			markInterSwitchPort(e.link.Src.DPID, e.link.Src.PortNo)
			markInterSwitchPort(e.link.Dst.DPID, e.link.Dst.PortNo)
		}
	}

	if len(d.switchOrder) > 0 {
		// The smallest DPID is the root, not the first by insertion
		// order: a deterministic, reproducible choice independent of
		// connect ordering.
		root := d.switchOrder[0]
		for _, dpid := range d.switchOrder[1:] {
			if dpid < root {
				root = dpid
			}
		}
		visited := make(map[model.DPID]struct{})
		d.dfsSpanningTree(root, disabled, visited)
	}

	d.disabledPorts = disabled
}

func (d *DB) dfsSpanningTree(src model.DPID, disabled map[model.DPID]map[uint16]struct{}, visited map[model.DPID]struct{}) {
	visited[src] = struct{}{}
	for _, e := range d.adjacency[src] {
		if _, seen := visited[e.dst]; seen {
			continue
		}
		// A link known in one direction only never becomes a tree edge.
		reverse := false
		for _, r := range d.adjacency[e.dst] {
			if r.dst == src {
				reverse = true
				break
			}
		}
		if !reverse {
			continue
		}
		if set, ok := disabled[e.link.Src.DPID]; ok {
			delete(set, e.link.Src.PortNo)
		}
		if set, ok := disabled[e.link.Dst.DPID]; ok {
			delete(set, e.link.Dst.PortNo)
		}
		d.dfsSpanningTree(e.dst, disabled, visited)
	}
}

// FindRoute searches for a loop-free path from srcMAC to dstMAC.
// Returns an empty slice if either endpoint cannot be resolved or no
// path exists. The search is not shortest-path; it returns the first
// path discovered by a last-in-first-out depth-first expansion,
// tie-broken by adjacency insertion order.
func (d *DB) FindRoute(srcMAC, dstMAC model.MAC) []Hop {
	d.mu.RLock()
	defer d.mu.RUnlock()

	srcDPID, ok := d.attachmentDPID(srcMAC)
	if !ok {
		return nil
	}
	dstDPID, ok := d.attachmentDPID(dstMAC)
	if !ok {
		return nil
	}

	path := d.dfsRoute(srcDPID, dstDPID)
	if path == nil {
		return nil
	}

	hops := make([]Hop, 0, len(path))
	for i := 0; i < len(path)-1; i++ {
		dpid := path[i]
		next := path[i+1]
		entries := d.adjacency[dpid]
		for _, e := range entries {
			if e.dst == next {
				hops = append(hops, Hop{DPID: dpid, OutPort: e.link.Src.PortNo})
				break
			}
		}
	}

	terminalPort, ok := d.terminalPort(dstMAC, dstDPID)
	if !ok {
		return nil
	}
	hops = append(hops, Hop{DPID: dstDPID, OutPort: terminalPort})
	return hops
}

// attachmentDPID resolves mac to the DPID of the switch it is
// attached to: mac is first checked as a switch's own local-port
// address (the MAC-as-DPID coercion), then as a known host.
func (d *DB) attachmentDPID(mac model.MAC) (model.DPID, bool) {
	candidate := mac.AsDPID()
	if _, isSwitch := d.switches[candidate]; isSwitch {
		return candidate, true
	}
	if host, ok := d.hosts[mac]; ok {
		if _, ok := d.switches[host.Port.DPID]; ok {
			return host.Port.DPID, true
		}
	}
	return 0, false
}

// terminalPort returns the port a frame destined for mac should exit
// on dpid: LOCAL if mac names the switch itself, or the host's
// attachment port.
func (d *DB) terminalPort(mac model.MAC, dpid model.DPID) (uint16, bool) {
	if mac.AsDPID() == dpid {
		if _, ok := d.switches[dpid]; ok {
			return ofproto.PortLocal, true
		}
	}
	if host, ok := d.hosts[mac]; ok {
		return host.Port.PortNo, true
	}
	return 0, false
}

// dfsRoute performs the iterative, stack-based depth-first search
// specified for route discovery: a global visited set and
// last-in-first-out expansion of the path stack.
func (d *DB) dfsRoute(srcDPID, dstDPID model.DPID) []model.DPID {
	visited := map[model.DPID]struct{}{srcDPID: {}}
	paths := [][]model.DPID{{srcDPID}}
	for len(paths) > 0 {
		current := paths[len(paths)-1]
		paths = paths[:len(paths)-1]
		dpid := current[len(current)-1]
		if dpid == dstDPID {
			return current
		}
		for _, e := range d.adjacency[dpid] {
			if _, seen := visited[e.dst]; seen {
				continue
			}
			visited[e.dst] = struct{}{}
			next := make([]model.DPID, len(current)+1)
			copy(next, current)
			next[len(current)] = e.dst
			paths = append(paths, next)
		}
	}
	return nil
}

// IsEdgePort reports whether port on dpid is enabled for broadcast:
// it carries no known inter-switch link, or it carries a spanning-tree
// edge. Only link ports pruned from the spanning tree report false.
func (d *DB) IsEdgePort(dpid model.DPID, port uint16) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	set, ok := d.disabledPorts[dpid]
	if !ok {
		return true
	}
	_, disabled := set[port]
	return !disabled
}

// EnabledPorts returns the ports on dpid that broadcast should flood
// out: every port minus the disabled set. The caller supplies the
// switch's full port list since DB does not track per-switch ports
// beyond what appears in links.
func (d *DB) EnabledPorts(dpid model.DPID, allPorts []uint16) []uint16 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	disabled := d.disabledPorts[dpid]
	out := make([]uint16, 0, len(allPorts))
	for _, p := range allPorts {
		if _, isDisabled := disabled[p]; !isDisabled {
			out = append(out, p)
		}
	}
	return out
}

// CurrentTopology returns a snapshot of the full graph for RPC clients.
func (d *DB) CurrentTopology() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap := Snapshot{}
	for _, dpid := range d.switchOrder {
		snap.Switches = append(snap.Switches, d.switches[dpid])
	}
	for _, entries := range d.adjacency {
		for _, e := range entries {
			snap.Links = append(snap.Links, e.link)
		}
	}
	for _, h := range d.hosts {
		snap.Hosts = append(snap.Hosts, h)
	}
	return snap
}
