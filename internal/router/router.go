// Package router is the decision core: it classifies every
// non-broadcast PacketIn as ordinary unicast or MPI virtual-MAC
// traffic, resolves a path, installs flows along it, and replies with
// a PacketOut so the triggering frame is not held up waiting for the
// flow table to catch up.
package router

import (
	"context"

	"github.com/sdnmpi/controller/internal/bus"
	"github.com/sdnmpi/controller/internal/forwardingdb"
	"github.com/sdnmpi/controller/internal/metrics"
	"github.com/sdnmpi/controller/internal/model"
	"github.com/sdnmpi/controller/internal/ofproto"
	"github.com/sdnmpi/controller/internal/rankdb"
	"github.com/sdnmpi/controller/internal/topologymgr"
)

// SwitchLookup resolves a DPID to the live session used to send it
// OpenFlow messages.
type SwitchLookup func(model.DPID) (ofproto.Switch, bool)

// Router holds the collaborators the decision core consults: route
// lookups and broadcast fallback requested over TopologyManager's bus
// mailbox, flow dedup via ForwardingDB, and rank resolution via
// RankDB.
type Router struct {
	topo     *bus.Component
	fdb      *forwardingdb.DB
	ranks    *rankdb.DB
	switches SwitchLookup
}

// New creates a Router wired to its collaborators. topo is the bus
// component TopologyManager registered its handlers on.
func New(topo *bus.Component, fdb *forwardingdb.DB, ranks *rankdb.DB, switches SwitchLookup) *Router {
	return &Router{topo: topo, fdb: fdb, ranks: ranks, switches: switches}
}

// HandlePacketIn runs the full filter/classify/route/install state
// machine for one PacketIn arriving at ingressDPID.
func (r *Router) HandlePacketIn(ctx context.Context, ingressDPID model.DPID, pkt ofproto.PacketIn) error {
	if pkt.DlType == ofproto.EtherTypeLLDP {
		return nil
	}
	dst := model.MAC(pkt.DlDst)
	if dst.IsBroadcast() || dst.IsIPv6Multicast() {
		return nil
	}

	src := model.MAC(pkt.DlSrc)
	if dst.IsVirtual() {
		metrics.PacketInsTotal.WithLabelValues("mpi").Inc()
		return r.handleMPI(ctx, ingressDPID, pkt, src, dst)
	}
	metrics.PacketInsTotal.WithLabelValues("ordinary").Inc()
	return r.handleOrdinary(ctx, ingressDPID, pkt, src, dst)
}

func (r *Router) handleOrdinary(ctx context.Context, ingressDPID model.DPID, pkt ofproto.PacketIn, src, dst model.MAC) error {
	hops, err := r.findRoute(ctx, src, dst)
	if err != nil {
		return err
	}
	if len(hops) == 0 {
		return r.floodUnrouted(ctx, pkt, ingressDPID)
	}
	covered, err := r.installRoute(hops, src, dst, nil)
	if err != nil {
		return err
	}
	return r.packetOutIngress(ingressDPID, pkt, hops[0].OutPort, nil, covered)
}

func (r *Router) handleMPI(ctx context.Context, ingressDPID model.DPID, pkt ofproto.PacketIn, src, virtualDst model.MAC) error {
	_, dstRank := virtualDst.SplitVirtual()
	trueMAC, ok := r.ranks.Resolve(int32(dstRank))
	if !ok {
		return nil
	}
	hops, err := r.findRoute(ctx, src, trueMAC)
	if err != nil {
		return err
	}
	if len(hops) == 0 {
		return r.floodUnrouted(ctx, pkt, ingressDPID)
	}
	terminalRewrite := []ofproto.Action{ofproto.ActionSetDlDst{MAC: trueMAC}}
	covered, err := r.installRoute(hops, src, virtualDst, terminalRewrite)
	if err != nil {
		return err
	}
	var firstHopRewrite []ofproto.Action
	if len(hops) == 1 {
		firstHopRewrite = terminalRewrite
	}
	return r.packetOutIngress(ingressDPID, pkt, hops[0].OutPort, firstHopRewrite, covered)
}

func (r *Router) findRoute(ctx context.Context, src, dst model.MAC) ([]topologymgr.Hop, error) {
	result, err := r.topo.Request(ctx, topologymgr.KindFindRoute, topologymgr.FindRouteQuery{Src: src, Dst: dst})
	if err != nil {
		return nil, err
	}
	hops, _ := result.([]topologymgr.Hop)
	return hops, nil
}

// installRoute writes a FlowMod on every hop's switch, matching
// (dl_src=src, dl_dst=dst) and outputting the hop's port. On the
// final hop, extraTerminalActions (if any) are prepended so a
// rewrite happens just before the frame leaves the fabric. The
// returned covered flag reports whether every hop now carries a flow;
// a hop whose switch session is gone leaves the path uncovered.
func (r *Router) installRoute(hops []topologymgr.Hop, src, dst model.MAC, extraTerminalActions []ofproto.Action) (covered bool, err error) {
	covered = true
	for i, hop := range hops {
		if r.fdb.Has(hop.DPID, src, dst) {
			continue
		}
		sw, ok := r.switches(hop.DPID)
		if !ok {
			covered = false
			continue
		}
		actions := make([]ofproto.Action, 0, 2)
		if i == len(hops)-1 {
			actions = append(actions, extraTerminalActions...)
		}
		actions = append(actions, ofproto.ActionOutput{Port: hop.OutPort})

		srcBytes, dstBytes := [6]byte(src), [6]byte(dst)
		if err := sw.SendFlowMod(ofproto.FlowMod{
			Match: ofproto.Match{
				DlSrc: &srcBytes,
				DlDst: &dstBytes,
			},
			Priority:        ofproto.PriorityDefault,
			Actions:         actions,
			SendFlowRemoved: true,
		}); err != nil {
			return false, err
		}
		r.fdb.Record(hop.DPID, src, dst, hop.OutPort)
		branch := "ordinary"
		if extraTerminalActions != nil {
			branch = "mpi"
		}
		metrics.FlowModsTotal.WithLabelValues(branch).Inc()
	}
	return covered, nil
}

// packetOutIngress delivers the triggering frame immediately rather
// than waiting for the newly installed flows to take effect, mirroring
// the action list just installed for the first hop (plus any terminal
// rewrite, when the route is a single hop). Input port is NONE when
// flows now cover the entire path, the original ingress port otherwise.
func (r *Router) packetOutIngress(ingressDPID model.DPID, pkt ofproto.PacketIn, outPort uint16, extraActions []ofproto.Action, covered bool) error {
	sw, ok := r.switches(ingressDPID)
	if !ok {
		return nil
	}
	inPort := ofproto.PortNone
	if !covered {
		inPort = pkt.InPort
	}
	actions := append(append([]ofproto.Action{}, extraActions...), ofproto.ActionOutput{Port: outPort})
	out := ofproto.PacketOut{
		BufferID: pkt.BufferID,
		InPort:   inPort,
		Actions:  actions,
	}
	if pkt.BufferID == ofproto.NoBuffer {
		out.Data = pkt.Data
	}
	return sw.SendPacketOut(out)
}

func (r *Router) floodUnrouted(ctx context.Context, pkt ofproto.PacketIn, ingressDPID model.DPID) error {
	_, err := r.topo.Request(ctx, topologymgr.KindBroadcast, topologymgr.BroadcastRequest{
		Data:    pkt.Data,
		SrcDPID: ingressDPID,
		SrcPort: pkt.InPort,
	})
	return err
}
