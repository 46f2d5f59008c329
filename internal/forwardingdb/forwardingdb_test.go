package forwardingdb

import (
	"testing"

	"github.com/sdnmpi/controller/internal/model"
)

func TestHasRecordSnapshot(t *testing.T) {
	db := New()
	src := model.MAC{0, 0, 0, 0, 0, 1}
	dst := model.MAC{0, 0, 0, 0, 0, 2}

	if db.Has(1, src, dst) {
		t.Fatal("empty memo reports a flow as already installed")
	}

	db.Record(1, src, dst, 5)
	if !db.Has(1, src, dst) {
		t.Fatal("Record did not persist the flow")
	}
	if db.Has(2, src, dst) {
		t.Fatal("Has must be scoped per DPID")
	}

	snap := db.SnapshotAsList()
	if len(snap) != 1 || snap[0] != (model.ForwardingEntry{DPID: 1, Src: src, Dst: dst, OutPort: 5}) {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestRecordOverwriteFiresChangedEachTime(t *testing.T) {
	db := New()
	var fired []model.ForwardingEntry
	db.Changed.Connect(func(e model.ForwardingEntry) { fired = append(fired, e) })

	src := model.MAC{0, 0, 0, 0, 0, 1}
	dst := model.MAC{0, 0, 0, 0, 0, 2}
	db.Record(1, src, dst, 3)
	db.Record(1, src, dst, 7)

	if len(fired) != 2 || fired[0].OutPort != 3 || fired[1].OutPort != 7 {
		t.Fatalf("unexpected Changed fires: %+v", fired)
	}
	if !db.Has(1, src, dst) {
		t.Fatal("expected flow to remain recorded after overwrite")
	}
	snap := db.SnapshotAsList()
	if len(snap) != 1 || snap[0].OutPort != 7 {
		t.Fatalf("expected overwrite to replace, not duplicate: %+v", snap)
	}
}
