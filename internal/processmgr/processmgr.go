// Package processmgr captures MPI process lifecycle announcements
// off the wire and maintains the rank allocation table they describe.
package processmgr

import (
	"context"
	"log"

	"github.com/sdnmpi/controller/internal/announcement"
	"github.com/sdnmpi/controller/internal/bus"
	"github.com/sdnmpi/controller/internal/metrics"
	"github.com/sdnmpi/controller/internal/model"
	"github.com/sdnmpi/controller/internal/ofproto"
	"github.com/sdnmpi/controller/internal/rankdb"
)

// Envelope kinds the manager answers on its bus mailbox.
const (
	KindResolveRank       = "process.resolve_rank"
	KindCurrentAllocation = "process.current_allocation"
	KindPacketIn          = "process.packet_in"
)

// Manager decodes announcement datagrams and maintains RankDB.
type Manager struct {
	ranks *rankdb.DB
}

// New creates a process manager backed by ranks.
func New(ranks *rankdb.DB) *Manager {
	return &Manager{ranks: ranks}
}

// Register wires the manager's request/reply and event surface onto c.
func (m *Manager) Register(c *bus.Component) {
	c.On(KindResolveRank, m.resolveRank)
	c.On(KindCurrentAllocation, m.currentAllocation)
	c.On(KindPacketIn, m.packetIn)
}

func (m *Manager) packetIn(ctx context.Context, payload any) (any, error) {
	m.HandlePacketIn(payload.(ofproto.PacketIn))
	return nil, nil
}

// OnSwitchConnect installs the highest-priority rule that steers
// announcement traffic (IPv4/UDP, dst port 61000) to the controller.
func (m *Manager) OnSwitchConnect(sw ofproto.Switch) error {
	return sw.SendFlowMod(ofproto.FlowMod{
		Match: ofproto.Match{
			DlType:     ofproto.EtherTypeIPv4,
			HasDlType:  true,
			NwProto:    ofproto.IPProtoUDP,
			HasNwProto: true,
			TpDst:      ofproto.AnnouncementUDPPort,
			HasTpDst:   true,
		},
		Priority: ofproto.PriorityAnnouncement,
		Actions:  []ofproto.Action{ofproto.ActionOutput{Port: ofproto.PortController}},
	})
}

// HandlePacketIn decodes an announcement carried in a broadcast,
// IPv4/UDP/61000 PacketIn and applies it to RankDB. Malformed
// announcements are logged and dropped, never returned as an error
// to the caller, since a bad datagram from one host must not stall
// the rest of the fabric.
func (m *Manager) HandlePacketIn(pkt ofproto.PacketIn) {
	if pkt.DlType != ofproto.EtherTypeIPv4 || pkt.NwProto != ofproto.IPProtoUDP || pkt.TpDst != ofproto.AnnouncementUDPPort {
		return
	}
	ann, err := announcement.Decode(pkt.Data)
	if err != nil {
		metrics.AnnouncementErrorsTotal.Inc()
		log.Printf("processmgr: dropping malformed announcement from %s: %v", model.MAC(pkt.DlSrc), err)
		return
	}
	metrics.AnnouncementsTotal.WithLabelValues(ann.Kind.String()).Inc()
	srcMAC := model.MAC(pkt.DlSrc)
	switch ann.Kind {
	case announcement.Launch:
		m.ranks.AddProcess(ann.Rank, srcMAC)
	case announcement.Exit:
		m.ranks.DeleteProcess(ann.Rank)
	}
}

func (m *Manager) resolveRank(ctx context.Context, payload any) (any, error) {
	rank := payload.(int32)
	mac, ok := m.ranks.Resolve(rank)
	if !ok {
		return model.MAC{}, nil
	}
	return mac, nil
}

func (m *Manager) currentAllocation(ctx context.Context, payload any) (any, error) {
	return m.ranks.Snapshot(), nil
}
