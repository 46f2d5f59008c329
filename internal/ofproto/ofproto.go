// Package ofproto names the OpenFlow 1.0 vocabulary the control
// plane speaks against switches: matches, actions, flow and packet
// messages, and the reserved port numbers. It is not a wire codec —
// Switch is the seam a real OpenFlow connection implements; this
// package only describes what gets sent across it.
package ofproto

// Reserved output port numbers, OpenFlow 1.0 section 5.2.1.
const (
	PortFlood      uint16 = 0xfffb
	PortAll        uint16 = 0xfffc
	PortController uint16 = 0xfffd
	PortLocal      uint16 = 0xfffe
	PortNone       uint16 = 0xffff
)

// Flow priorities. Higher values match first. The broadcast catch-all
// sits one below the announcement capture rule so UDP/61000 frames
// reach ProcessManager, not the generic broadcast path.
const (
	PriorityDefault      uint16 = 0x8000
	PriorityDrop         uint16 = 0x8001
	PriorityCatchAll     uint16 = 0xfffe
	PriorityAnnouncement uint16 = 0xffff
)

// EtherType values the router and topology manager test for.
const (
	EtherTypeLLDP uint16 = 0x88cc
	EtherTypeIPv4 uint16 = 0x0800
)

const (
	IPProtoUDP          uint8  = 17
	AnnouncementUDPPort uint16 = 61000
)

// NoBuffer marks a PacketIn/PacketOut as carrying no switch-side
// buffered copy — the frame data must be attached.
const NoBuffer uint32 = 0xffffffff

// Match selects the fields a FlowMod or PacketIn is matched against.
// A zero value field means "wildcard, don't care" — callers populate
// only the fields that matter for a given rule.
type Match struct {
	InPort     uint16
	DlSrc      *[6]byte
	DlDst      *[6]byte
	DlType     uint16
	NwProto    uint8
	TpDst      uint16
	HasDlType  bool
	HasNwProto bool
	HasTpDst   bool
}

// Action is implemented by every flow action this controller issues.
type Action interface {
	isAction()
}

// ActionOutput sends the packet out Port.
type ActionOutput struct {
	Port uint16
}

func (ActionOutput) isAction() {}

// ActionSetDlDst rewrites the Ethernet destination address before
// output, used for the MPI virtual-MAC last hop rewrite.
type ActionSetDlDst struct {
	MAC [6]byte
}

func (ActionSetDlDst) isAction() {}

// FlowMod installs or modifies a flow table entry on one switch. An
// empty Actions list installs a drop rule.
type FlowMod struct {
	Match        Match
	Priority     uint16
	Actions      []Action
	IdleTimeoutS uint16
	HardTimeoutS uint16
	// SendFlowRemoved requests OFPFF_SEND_FLOW_REM so eventual
	// removals of this entry are observable by the controller.
	SendFlowRemoved bool
}

// PacketIn is a frame (or its relevant fields) the switch could not
// match and forwarded to the controller.
type PacketIn struct {
	InPort   uint16
	BufferID uint32
	DlSrc    [6]byte
	DlDst    [6]byte
	DlType   uint16
	NwProto  uint8
	TpDst    uint16
	Data     []byte
}

// PacketOut asks a switch to emit a frame out the given actions,
// either replaying BufferID or, when BufferID is NoBuffer, sending the
// raw Data.
type PacketOut struct {
	InPort   uint16
	BufferID uint32
	Actions  []Action
	Data     []byte
}

// PortStatsRequest asks a switch for its per-port counters.
type PortStatsRequest struct {
	PortNo uint16
}

// PortStatsReply is one port's counters within a switch's response to
// a PortStatsRequest; a request for PortAll yields one per port.
type PortStatsReply struct {
	PortNo    uint16
	RxPackets uint64
	RxBytes   uint64
	TxPackets uint64
	TxBytes   uint64
}

// Switch is the external collaborator seam: whatever holds a live
// OpenFlow session to a datapath must implement this so the control
// plane can install flows and emit packets without knowing anything
// about the transport underneath.
type Switch interface {
	SendFlowMod(FlowMod) error
	SendPacketOut(PacketOut) error
	RequestPortStats(PortStatsRequest) ([]PortStatsReply, error)
}
