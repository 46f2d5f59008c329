// Package rpchub fans discovery and mutation events out to connected
// subscribers over a lightweight RPC feed: each outbound message is a
// method name plus positional arguments, with no reply expected.
package rpchub

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sdnmpi/controller/internal/forwardingdb"
	"github.com/sdnmpi/controller/internal/journal"
	"github.com/sdnmpi/controller/internal/metrics"
	"github.com/sdnmpi/controller/internal/model"
	"github.com/sdnmpi/controller/internal/rankdb"
	"github.com/sdnmpi/controller/internal/topologydb"
)

// Call is one RPC frame sent to a subscriber: a method name and its
// positional arguments.
type Call struct {
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// Transport is the send side of one subscriber's connection. A
// websocket-backed implementation lives in internal/httpapi;
// decoupling it here keeps rpchub's fan-out logic transport-agnostic
// and unit-testable without a live socket.
type Transport interface {
	Send(Call) error
	Close() error
}

type subscriber struct {
	id        string
	transport Transport
}

// Hub maintains the subscriber set and broadcasts mutation events to
// it. Reads to build snapshots come from the owning DBs; Hub itself
// holds no domain state.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber

	fdb   *forwardingdb.DB
	ranks *rankdb.DB
	topo  *topologydb.DB

	// journal is nil unless the operator enabled the audit log; every
	// broadcast call is appended to it when present.
	journal *journal.Journal
}

// New creates a Hub and connects it to the signals its snapshot and
// incremental messages are derived from. j may be nil to disable
// audit logging.
func New(fdb *forwardingdb.DB, ranks *rankdb.DB, topo *topologydb.DB, j *journal.Journal) *Hub {
	h := &Hub{
		subscribers: make(map[string]*subscriber),
		fdb:         fdb,
		ranks:       ranks,
		topo:        topo,
		journal:     j,
	}
	fdb.Changed.Connect(h.onFDBChanged)
	ranks.ProcessAdded.Connect(h.onProcessAdded)
	ranks.ProcessDeleted.Connect(h.onProcessDeleted)
	topo.SwitchAdded.Connect(h.onSwitchAdded)
	topo.SwitchDeleted.Connect(h.onSwitchDeleted)
	topo.LinkAdded.Connect(h.onLinkAdded)
	topo.LinkDeleted.Connect(h.onLinkDeleted)
	topo.HostAdded.Connect(h.onHostAdded)
	return h
}

// Join admits a new subscriber and pushes the three snapshot
// messages: forwarding table, rank table, topology.
func (h *Hub) Join(transport Transport) string {
	id := uuid.NewString()
	sub := &subscriber{id: id, transport: transport}

	h.mu.Lock()
	h.subscribers[id] = sub
	h.mu.Unlock()
	metrics.SubscribersConnected.Inc()

	h.sendTo(sub, Call{Method: "init_fdb", Args: []any{h.fdb.SnapshotAsList()}})
	h.sendTo(sub, Call{Method: "init_rankdb", Args: []any{h.ranks.Snapshot()}})
	h.sendTo(sub, Call{Method: "init_topologydb", Args: []any{h.topo.CurrentTopology()}})
	return id
}

// Leave removes a subscriber, e.g. after its connection closes.
func (h *Hub) Leave(id string) {
	h.mu.Lock()
	_, existed := h.subscribers[id]
	delete(h.subscribers, id)
	h.mu.Unlock()
	if existed {
		metrics.SubscribersConnected.Dec()
	}
}

// ReportInvalidReply logs a malformed reply from a retained
// subscriber. Per the fan-out policy, a bad reply is not grounds for
// eviction — only a transport-level send failure is.
func (h *Hub) ReportInvalidReply(id string, err error) {
	log.Printf("rpchub: subscriber %s sent an invalid reply: %v", id, err)
}

func (h *Hub) broadcast(call Call) {
	if h.journal != nil {
		if err := h.journal.Record(time.Now().UnixNano(), call.Method, call.Args); err != nil {
			log.Printf("rpchub: journal write failed for %s: %v", call.Method, err)
		}
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		h.sendTo(s, call)
	}
}

// sendTo delivers call to one subscriber. A transport error evicts
// the subscriber; the send itself happens outside the subscriber-map
// lock since it is a suspension point (network I/O).
func (h *Hub) sendTo(s *subscriber, call Call) {
	if err := s.transport.Send(call); err != nil {
		log.Printf("rpchub: evicting subscriber %s after transport error: %v", s.id, err)
		h.Leave(s.id)
		metrics.SubscriberEvictionsTotal.Inc()
	}
}

func (h *Hub) onFDBChanged(e model.ForwardingEntry) {
	h.broadcast(Call{Method: "update_fdb", Args: []any{e.DPID, e.Dst, e.OutPort}})
}

func (h *Hub) onProcessAdded(e model.RankEntry) {
	h.broadcast(Call{Method: "add_process", Args: []any{e.Rank, e.MAC}})
}

func (h *Hub) onProcessDeleted(rank int32) {
	h.broadcast(Call{Method: "delete_process", Args: []any{rank}})
}

func (h *Hub) onSwitchAdded(sw model.Switch) {
	h.broadcast(Call{Method: "add_switch", Args: []any{sw}})
}

func (h *Hub) onSwitchDeleted(dpid model.DPID) {
	h.broadcast(Call{Method: "delete_switch", Args: []any{dpid}})
}

func (h *Hub) onLinkAdded(l model.Link) {
	h.broadcast(Call{Method: "add_link", Args: []any{l}})
}

func (h *Hub) onLinkDeleted(l model.Link) {
	h.broadcast(Call{Method: "delete_link", Args: []any{l}})
}

func (h *Hub) onHostAdded(host model.Host) {
	h.broadcast(Call{Method: "add_host", Args: []any{host}})
}
