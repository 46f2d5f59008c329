// Package topologymgr owns broadcast handling and the topology
// request/reply surface: proactive catch-all flow installation on
// switch connect, spanning-tree-pruned flooding of broadcast frames,
// and route lookups delegated to topologydb.
package topologymgr

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sdnmpi/controller/internal/bus"
	"github.com/sdnmpi/controller/internal/metrics"
	"github.com/sdnmpi/controller/internal/model"
	"github.com/sdnmpi/controller/internal/ofproto"
	"github.com/sdnmpi/controller/internal/topologydb"
)

// Envelope kinds the manager answers on its bus mailbox.
const (
	KindCurrentTopology = "topology.current"
	KindFindRoute       = "topology.find_route"
	KindBroadcast       = "topology.broadcast"
	KindPacketIn        = "topology.packet_in"
)

// Hop is one step of a resolved route, re-exported so Router callers
// need no direct topologydb dependency for reply decoding.
type Hop = topologydb.Hop

// FindRouteQuery is the payload for a FindRoute request.
type FindRouteQuery struct {
	Src model.MAC
	Dst model.MAC
}

// BroadcastRequest is the payload for a Broadcast request: flood data
// along the spanning tree, originating from srcDPID/srcPort.
type BroadcastRequest struct {
	Data    []byte
	SrcDPID model.DPID
	SrcPort uint16
}

// PacketInEvent is the payload published to the manager's mailbox for
// each broadcast-destined PacketIn pulled off a switch session.
type PacketInEvent struct {
	Session ofproto.Switch
	DPID    model.DPID
	Pkt     ofproto.PacketIn
}

// Manager handles switch-connect setup and broadcast PacketIns.
type Manager struct {
	topo *topologydb.DB
}

// New creates a topology manager backed by topo.
func New(topo *topologydb.DB) *Manager {
	return &Manager{topo: topo}
}

// Register wires the manager's request/reply and event surface onto c.
func (m *Manager) Register(c *bus.Component) {
	c.On(KindCurrentTopology, m.CurrentTopology)
	c.On(KindFindRoute, m.FindRoute)
	c.On(KindBroadcast, m.Broadcast)
	c.On(KindPacketIn, m.packetIn)
}

func (m *Manager) packetIn(ctx context.Context, payload any) (any, error) {
	e := payload.(PacketInEvent)
	return nil, m.HandleBroadcastPacketIn(e.Session, e.DPID, e.Pkt)
}

// OnSwitchConnect installs the catch-all broadcast-to-controller flow
// every switch needs so the manager sees every broadcast frame.
func (m *Manager) OnSwitchConnect(sw ofproto.Switch) error {
	dst := model.Broadcast
	return sw.SendFlowMod(ofproto.FlowMod{
		Match: ofproto.Match{
			DlDst: (*[6]byte)(&dst),
		},
		Priority: ofproto.PriorityCatchAll,
		Actions:  []ofproto.Action{ofproto.ActionOutput{Port: ofproto.PortController}},
	})
}

// HandleBroadcastPacketIn processes one broadcast-destined PacketIn.
// IPv6 multicast frames are dropped and given a permanent drop flow;
// announcement UDP traffic is left to ProcessManager; everything else
// is flooded along the spanning tree via Broadcast.
func (m *Manager) HandleBroadcastPacketIn(sw ofproto.Switch, dpid model.DPID, pkt ofproto.PacketIn) error {
	dst := model.MAC(pkt.DlDst)
	if dst.IsIPv6Multicast() {
		return sw.SendFlowMod(ofproto.FlowMod{
			Match: ofproto.Match{
				DlDst: (*[6]byte)(&dst),
			},
			Priority: ofproto.PriorityDrop,
			Actions:  nil,
		})
	}
	if pkt.DlType == ofproto.EtherTypeIPv4 && pkt.NwProto == ofproto.IPProtoUDP && pkt.TpDst == ofproto.AnnouncementUDPPort {
		return nil
	}
	_, err := m.Broadcast(context.Background(), BroadcastRequest{
		Data:    pkt.Data,
		SrcDPID: dpid,
		SrcPort: pkt.InPort,
	})
	return err
}

// CurrentTopology returns a snapshot of the discovered graph.
func (m *Manager) CurrentTopology(ctx context.Context, payload any) (any, error) {
	return m.topo.CurrentTopology(), nil
}

// FindRoute answers a route lookup request.
func (m *Manager) FindRoute(ctx context.Context, payload any) (any, error) {
	q := payload.(FindRouteQuery)
	timer := prometheus.NewTimer(metrics.RouteSearchDuration)
	hops := m.topo.FindRoute(q.Src, q.Dst)
	timer.ObserveDuration()
	return hops, nil
}

// Broadcast floods data out of every enabled (non-disabled) port on
// every known switch, plus LOCAL. The originating port is not removed
// from the action list; the originating switch's PacketOut names it
// as InPort, every other switch's PacketOut names NONE.
func (m *Manager) Broadcast(ctx context.Context, payload any) (any, error) {
	req := payload.(BroadcastRequest)
	snap := m.topo.CurrentTopology()
	for _, sw := range snap.Switches {
		ports := make([]uint16, 0, len(sw.Ports)+1)
		for _, p := range sw.Ports {
			ports = append(ports, p.PortNo)
		}
		enabled := m.topo.EnabledPorts(sw.DPID, ports)
		actions := make([]ofproto.Action, 0, len(enabled)+1)
		for _, p := range enabled {
			actions = append(actions, ofproto.ActionOutput{Port: p})
		}
		actions = append(actions, ofproto.ActionOutput{Port: ofproto.PortLocal})
		if len(actions) == 0 {
			continue
		}
		session, ok := sw.Session.(ofproto.Switch)
		if !ok {
			continue
		}
		inPort := ofproto.PortNone
		if sw.DPID == req.SrcDPID {
			inPort = req.SrcPort
		}
		if err := session.SendPacketOut(ofproto.PacketOut{
			InPort:   inPort,
			BufferID: ofproto.NoBuffer,
			Actions:  actions,
			Data:     req.Data,
		}); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
