package monitor

import (
	"testing"
	"time"

	"github.com/sdnmpi/controller/internal/model"
	"github.com/sdnmpi/controller/internal/ofproto"
)

type fakeSwitch struct {
	replies []ofproto.PortStatsReply
}

func (f *fakeSwitch) SendFlowMod(ofproto.FlowMod) error     { return nil }
func (f *fakeSwitch) SendPacketOut(ofproto.PacketOut) error { return nil }
func (f *fakeSwitch) RequestPortStats(ofproto.PortStatsRequest) ([]ofproto.PortStatsReply, error) {
	return f.replies, nil
}

func TestFirstObservationRecordsWithoutEmittingRate(t *testing.T) {
	sw := &fakeSwitch{replies: []ofproto.PortStatsReply{{PortNo: 1, RxPackets: 100, RxBytes: 1000}}}
	switches := func() map[model.DPID]ofproto.Switch {
		return map[model.DPID]ofproto.Switch{1: sw}
	}
	now := time.Unix(1000, 0)
	var rates []model.PortRate
	m := New(switches, func(r model.PortRate) { rates = append(rates, r) }, func() time.Time { return now })

	m.pollOnce()

	if len(rates) != 0 {
		t.Fatalf("first observation must not emit a rate, got %v", rates)
	}
}

func TestSecondObservationComputesRatePerPort(t *testing.T) {
	sw := &fakeSwitch{replies: []ofproto.PortStatsReply{
		{PortNo: 1, RxPackets: 100, RxBytes: 1000, TxPackets: 10, TxBytes: 100},
		{PortNo: 2, RxPackets: 50, RxBytes: 500},
	}}
	switches := func() map[model.DPID]ofproto.Switch {
		return map[model.DPID]ofproto.Switch{1: sw}
	}
	now := time.Unix(1000, 0)
	var rates []model.PortRate
	m := New(switches, func(r model.PortRate) { rates = append(rates, r) }, func() time.Time { return now })

	m.pollOnce()

	now = now.Add(2 * time.Second)
	sw.replies = []ofproto.PortStatsReply{
		{PortNo: 1, RxPackets: 300, RxBytes: 3000, TxPackets: 30, TxBytes: 300},
		{PortNo: 2, RxPackets: 150, RxBytes: 1500},
	}
	m.pollOnce()

	if len(rates) != 2 {
		t.Fatalf("expected one rate per port after the second poll, got %d", len(rates))
	}
	byPort := map[uint16]model.PortRate{}
	for _, r := range rates {
		byPort[r.PortNo] = r
	}
	r1 := byPort[1]
	if r1.RxPackets != 100 || r1.RxBytes != 1000 || r1.TxPackets != 10 || r1.TxBytes != 100 {
		t.Fatalf("unexpected port 1 rate: %+v, want 100 pkt/s rx, 1000 B/s rx, 10 pkt/s tx, 100 B/s tx", r1)
	}
	r2 := byPort[2]
	if r2.RxPackets != 50 || r2.RxBytes != 500 {
		t.Fatalf("unexpected port 2 rate: %+v, want 50 pkt/s rx, 500 B/s rx", r2)
	}
}

func TestNewPortMidStreamRecordsWithoutEmittingRate(t *testing.T) {
	sw := &fakeSwitch{replies: []ofproto.PortStatsReply{{PortNo: 1}}}
	switches := func() map[model.DPID]ofproto.Switch {
		return map[model.DPID]ofproto.Switch{1: sw}
	}
	now := time.Unix(1000, 0)
	var rates []model.PortRate
	m := New(switches, func(r model.PortRate) { rates = append(rates, r) }, func() time.Time { return now })

	m.pollOnce()

	now = now.Add(time.Second)
	sw.replies = []ofproto.PortStatsReply{{PortNo: 1, RxPackets: 10}, {PortNo: 2, RxPackets: 99}}
	m.pollOnce()

	if len(rates) != 1 || rates[0].PortNo != 1 {
		t.Fatalf("only the previously seen port may emit a rate, got %v", rates)
	}
}

func TestSwitchErrorIsSkipped(t *testing.T) {
	switches := func() map[model.DPID]ofproto.Switch {
		return map[model.DPID]ofproto.Switch{1: &erroringSwitch{}}
	}
	m := New(switches, func(model.PortRate) { t.Fatal("should never be called") }, time.Now)
	m.pollOnce() // must not panic
}

type erroringSwitch struct{}

func (erroringSwitch) SendFlowMod(ofproto.FlowMod) error     { return nil }
func (erroringSwitch) SendPacketOut(ofproto.PacketOut) error { return nil }
func (erroringSwitch) RequestPortStats(ofproto.PortStatsRequest) ([]ofproto.PortStatsReply, error) {
	return nil, errPoll
}

var errPoll = &pollError{}

type pollError struct{}

func (*pollError) Error() string { return "poll failed" }
