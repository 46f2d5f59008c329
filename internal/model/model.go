// Package model holds the data types shared across the control plane:
// switches, links, hosts, ranks, forwarding entries and the MAC helpers
// (virtual-MAC encoding, MAC-as-DPID coercion) used throughout.
package model

import (
	"encoding/binary"
	"fmt"
)

// DPID is a 64-bit datapath identifier naming a switch.
type DPID uint64

func (d DPID) String() string { return fmt.Sprintf("%016x", uint64(d)) }

// MAC is a 48-bit Ethernet address.
type MAC [6]byte

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// Broadcast is the Ethernet broadcast address.
var Broadcast = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// IsBroadcast reports whether m is the all-ones broadcast address.
func (m MAC) IsBroadcast() bool { return m == Broadcast }

// IsIPv6Multicast reports whether m is an IPv6 multicast destination,
// identified by the reserved 33:33:... OUI prefix.
func (m MAC) IsIPv6Multicast() bool { return m[0] == 0x33 && m[1] == 0x33 }

// IsVirtual reports whether m starts with the 02:00 octet pair marking
// a virtual MPI rank address: 02:00 | src_rank(LE16) | dst_rank(LE16).
// Per design notes, this collides with any locally-administered MAC
// whose second octet is zero; that is a documented, intentional
// tradeoff carried over from the source protocol, not a defect.
func (m MAC) IsVirtual() bool { return m[0] == 0x02 && m[1] == 0x00 }

// VirtualMAC encodes a virtual MPI destination address for the given
// source and destination ranks.
func VirtualMAC(srcRank, dstRank int16) MAC {
	var m MAC
	m[0], m[1] = 0x02, 0x00
	binary.LittleEndian.PutUint16(m[2:4], uint16(srcRank))
	binary.LittleEndian.PutUint16(m[4:6], uint16(dstRank))
	return m
}

// SplitVirtual decodes a virtual MAC into its src/dst rank fields. The
// caller must have already checked IsVirtual.
func (m MAC) SplitVirtual() (srcRank, dstRank int16) {
	srcRank = int16(binary.LittleEndian.Uint16(m[2:4]))
	dstRank = int16(binary.LittleEndian.Uint16(m[4:6]))
	return
}

// AsDPID interprets m as a DPID encoded big-endian across all six
// octets, per the source's MAC-as-DPID coercion: a switch's local
// port is addressed by a MAC equal to its DPID's low 48 bits. This is
// not a hash or lookup — any MAC value can be reinterpreted this way,
// so callers must additionally check the result names a known switch.
func (m MAC) AsDPID() DPID {
	var buf [8]byte
	copy(buf[2:], m[:])
	return DPID(binary.BigEndian.Uint64(buf[:]))
}

// DPIDToMAC is the inverse of AsDPID, used when a switch needs to
// advertise its local port as a host-reachable address.
func DPIDToMAC(d DPID) MAC {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(d))
	var m MAC
	copy(m[:], buf[2:])
	return m
}

// Port identifies a single port on a switch.
type Port struct {
	DPID   DPID
	PortNo uint16
}

// Switch is a connected datapath: its identity, ports, and an opaque
// session handle used to send it OpenFlow messages. Session is an
// external collaborator seam (see internal/ofproto.Switch); the
// control plane never inspects it, only forwards it calls.
type Switch struct {
	DPID    DPID
	Ports   []Port
	Session any
}

// Link is a directed edge from one switch port to another. Symmetric
// connectivity is represented by inserting both directions; a single
// direction is tolerated (see TopologyDB) but excluded from the
// spanning tree.
type Link struct {
	Src Port
	Dst Port
}

// Host is a MAC address attached to a single switch port. TopologyDB
// has no operation that removes a host; adding an already known MAC
// again replaces its attachment port.
type Host struct {
	MAC  MAC
	Port Port
}

// RankEntry maps one MPI rank to the host MAC it is currently running on.
type RankEntry struct {
	Rank int32
	MAC  MAC
}

// ForwardingKey identifies one installed flow's memo entry.
type ForwardingKey struct {
	DPID DPID
	Src  MAC
	Dst  MAC
}

// ForwardingEntry is one row of a switch's learned forwarding table.
type ForwardingEntry struct {
	DPID    DPID
	Src     MAC
	Dst     MAC
	OutPort uint16
}

// PortStats is one (dpid, port) snapshot of OpenFlow port counters.
type PortStats struct {
	DPID       DPID
	PortNo     uint16
	TimestampS float64
	RxPackets  uint64
	RxBytes    uint64
	TxPackets  uint64
	TxBytes    uint64
}

// PortRate is the computed per-second delta between two PortStats
// snapshots for the same port.
type PortRate struct {
	DPID      DPID
	PortNo    uint16
	RxPackets float64
	RxBytes   float64
	TxPackets float64
	TxBytes   float64
}
