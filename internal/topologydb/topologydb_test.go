package topologydb

import (
	"testing"

	"github.com/sdnmpi/controller/internal/model"
	"github.com/sdnmpi/controller/internal/ofproto"
)

func hostMAC(n byte) model.MAC {
	return model.MAC{0x02, 0, 0, 0, 0, n}
}

// buildRing wires up the four-switch ring from scenario S1:
// 1<->2 via (2,2), 1<->3 via (3,3), 2<->4 via (3,2), 3<->4 via (2,3),
// with one host on port 1 of every switch.
func buildRing(t *testing.T) *DB {
	t.Helper()
	db := New()
	for _, dpid := range []model.DPID{1, 2, 3, 4} {
		db.AddSwitch(model.Switch{DPID: dpid})
	}

	link := func(srcDPID model.DPID, srcPort uint16, dstDPID model.DPID, dstPort uint16) {
		db.AddLink(model.Link{
			Src: model.Port{DPID: srcDPID, PortNo: srcPort},
			Dst: model.Port{DPID: dstDPID, PortNo: dstPort},
		})
		db.AddLink(model.Link{
			Src: model.Port{DPID: dstDPID, PortNo: dstPort},
			Dst: model.Port{DPID: srcDPID, PortNo: srcPort},
		})
	}
	link(1, 2, 2, 2)
	link(1, 3, 3, 3)
	link(2, 3, 4, 2)
	link(3, 2, 4, 3)

	for dpid := model.DPID(1); dpid <= 4; dpid++ {
		db.AddHost(model.Host{MAC: hostMAC(byte(dpid)), Port: model.Port{DPID: dpid, PortNo: 1}})
	}
	return db
}

func hopsEqual(t *testing.T, got []Hop, want []Hop) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFindRouteScenarioS1(t *testing.T) {
	db := buildRing(t)

	hopsEqual(t, db.FindRoute(hostMAC(1), hostMAC(2)), []Hop{{DPID: 1, OutPort: 2}, {DPID: 2, OutPort: 1}})
	hopsEqual(t, db.FindRoute(hostMAC(1), hostMAC(3)), []Hop{{DPID: 1, OutPort: 3}, {DPID: 3, OutPort: 1}})
	hopsEqual(t, db.FindRoute(hostMAC(2), hostMAC(4)), []Hop{{DPID: 2, OutPort: 3}, {DPID: 4, OutPort: 1}})
}

func TestFindRouteScenarioS2SelfRoute(t *testing.T) {
	db := buildRing(t)
	hopsEqual(t, db.FindRoute(hostMAC(1), hostMAC(1)), []Hop{{DPID: 1, OutPort: 1}})
}

func TestFindRouteScenarioS3Unreachable(t *testing.T) {
	db := buildRing(t)
	db.DeleteLink(model.Link{Src: model.Port{DPID: 1, PortNo: 2}, Dst: model.Port{DPID: 2, PortNo: 2}})
	db.DeleteLink(model.Link{Src: model.Port{DPID: 1, PortNo: 3}, Dst: model.Port{DPID: 3, PortNo: 3}})

	if hops := db.FindRoute(hostMAC(1), hostMAC(2)); hops != nil {
		t.Fatalf("expected unreachable, got %v", hops)
	}
	if hops := db.FindRoute(hostMAC(1), hostMAC(4)); hops != nil {
		t.Fatalf("expected unreachable, got %v", hops)
	}
}

func TestFindRouteUnknownHostReturnsEmpty(t *testing.T) {
	db := buildRing(t)
	unknown := model.MAC{0xde, 0xad, 0xbe, 0xef, 0, 0}
	if hops := db.FindRoute(unknown, hostMAC(1)); hops != nil {
		t.Fatalf("expected empty route for unknown host, got %v", hops)
	}
}

func TestSpanningTreeRootIsSmallestDPID(t *testing.T) {
	db := New()
	// Add switches out of DPID order so root selection can't piggyback
	// on insertion order.
	for _, dpid := range []model.DPID{4, 3, 1, 2} {
		db.AddSwitch(model.Switch{DPID: dpid})
	}
	db.AddLink(model.Link{Src: model.Port{DPID: 1, PortNo: 1}, Dst: model.Port{DPID: 2, PortNo: 1}})
	db.AddLink(model.Link{Src: model.Port{DPID: 2, PortNo: 1}, Dst: model.Port{DPID: 1, PortNo: 1}})

	// Port 1 on switch 1 carries the tree edge to the root; it must
	// be enabled for broadcast.
	if !db.IsEdgePort(1, 1) {
		t.Fatal("tree edge from the smallest-DPID root should be enabled")
	}
}

func TestScenarioS6SpanningTreeOneCopyPerHostPort(t *testing.T) {
	db := buildRing(t)
	// Rooted at switch 1 (the smallest DPID), the tree reaches switch 3
	// via 1->2->4->3, so the direct redundant edge between 1 and 3 is
	// the one pruned; every other inter-switch port stays enabled.
	if db.IsEdgePort(1, 3) {
		t.Fatal("expected the redundant 1<->3 link to be disabled on switch 1's side")
	}
	if db.IsEdgePort(3, 3) {
		t.Fatal("expected the redundant 1<->3 link to be disabled on switch 3's side")
	}
	for _, p := range []struct {
		dpid model.DPID
		port uint16
	}{
		{1, 2}, {2, 2}, {2, 3}, {4, 2}, {4, 3}, {3, 2},
	} {
		if !db.IsEdgePort(p.dpid, p.port) {
			t.Fatalf("expected (dpid=%d, port=%d) to remain enabled (it is a tree edge)", p.dpid, p.port)
		}
	}

	// Every host-attachment port must remain enabled regardless.
	for dpid := model.DPID(1); dpid <= 4; dpid++ {
		if !db.IsEdgePort(dpid, 1) {
			t.Fatalf("host port (dpid=%d, port=1) must never be disabled", dpid)
		}
	}
}

func TestDeleteAbsentSwitchAndLinkAreSilent(t *testing.T) {
	db := New()
	var fired int
	db.SwitchDeleted.Connect(func(model.DPID) { fired++ })
	db.LinkDeleted.Connect(func(model.Link) { fired++ })

	db.DeleteSwitch(999)
	db.DeleteLink(model.Link{
		Src: model.Port{DPID: 1, PortNo: 1},
		Dst: model.Port{DPID: 2, PortNo: 1},
	})

	if fired != 0 {
		t.Fatalf("absent-key deletes must not fire signals, got %d", fired)
	}
}

func TestDeleteSwitchPurgesItsLinks(t *testing.T) {
	db := buildRing(t)
	var deletedLinks []model.Link
	db.LinkDeleted.Connect(func(l model.Link) { deletedLinks = append(deletedLinks, l) })

	db.DeleteSwitch(2)

	// Both directions of 1<->2 and 2<->4 must be gone.
	if len(deletedLinks) != 4 {
		t.Fatalf("expected 4 purged directed links, got %d: %v", len(deletedLinks), deletedLinks)
	}
	// Traffic from host 1 can still reach host 4 around the other side
	// of the ring, but never through the departed switch.
	hops := db.FindRoute(hostMAC(1), hostMAC(4))
	for _, h := range hops {
		if h.DPID == 2 {
			t.Fatalf("route %v traverses the deleted switch", hops)
		}
	}
	if len(hops) == 0 {
		t.Fatal("expected the ring to stay connected via 1->3->4")
	}
}

func TestEndpointSwitchLocalResolution(t *testing.T) {
	db := New()
	db.AddSwitch(model.Switch{DPID: 1})
	db.AddSwitch(model.Switch{DPID: 2})
	db.AddLink(model.Link{Src: model.Port{DPID: 1, PortNo: 1}, Dst: model.Port{DPID: 2, PortNo: 1}})
	db.AddLink(model.Link{Src: model.Port{DPID: 2, PortNo: 1}, Dst: model.Port{DPID: 1, PortNo: 1}})

	switchMAC := model.DPIDToMAC(2)
	host := hostMAC(9)
	db.AddHost(model.Host{MAC: host, Port: model.Port{DPID: 1, PortNo: 2}})

	hops := db.FindRoute(host, switchMAC)
	hopsEqual(t, hops, []Hop{{DPID: 1, OutPort: 1}, {DPID: 2, OutPort: ofproto.PortLocal}})
}
