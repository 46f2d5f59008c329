// Package announcement decodes the fixed-size process lifecycle
// datagrams an MPI launcher sends into the network: an 8-byte little
// endian record naming whether a rank is launching or exiting.
package announcement

import (
	"encoding/binary"

	"github.com/sdnmpi/controller/internal/sdnerr"
)

// Kind distinguishes a process launch from a process exit.
type Kind int32

const (
	Launch Kind = 0
	Exit   Kind = 1
)

func (k Kind) String() string {
	switch k {
	case Launch:
		return "launch"
	case Exit:
		return "exit"
	default:
		return "unknown"
	}
}

// Size is the fixed wire length of an Announcement: two little
// endian int32 fields, type tag then rank.
const Size = 8

// Announcement is one decoded process lifecycle event.
type Announcement struct {
	Kind Kind
	Rank int32
}

// Decode parses a fixed 8-byte announcement payload. Any length other
// than Size, or a type tag outside {Launch, Exit}, is reported as
// sdnerr.MalformedAnnouncement.
func Decode(payload []byte) (Announcement, error) {
	if len(payload) != Size {
		return Announcement{}, sdnerr.New(sdnerr.MalformedAnnouncement,
			"announcement payload must be 8 bytes")
	}
	kind := Kind(int32(binary.LittleEndian.Uint32(payload[0:4])))
	rank := int32(binary.LittleEndian.Uint32(payload[4:8]))
	if kind != Launch && kind != Exit {
		return Announcement{}, sdnerr.New(sdnerr.MalformedAnnouncement,
			"unknown announcement type tag")
	}
	return Announcement{Kind: kind, Rank: rank}, nil
}

// Encode serializes a into its 8-byte wire form, the inverse of Decode.
func Encode(a Announcement) []byte {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(a.Kind))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(a.Rank))
	return buf
}
