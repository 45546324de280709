// internal/engine/actions_test.go
package engine

import (
	"errors"
	"testing"

	"github.com/zeloscloud/zelos-extension-modbus/internal/codec"
	"github.com/zeloscloud/zelos-extension-modbus/internal/regmap"
)

func TestActionGetStatus(t *testing.T) {
	tr := &fakeTransport{}
	e, _ := testEngine(t, tr)

	res, err := e.Actions()["get_status"](Request{})
	if err != nil {
		t.Fatalf("get_status err=%v", err)
	}
	st, ok := res.(Status)
	if !ok {
		t.Fatalf("get_status result type %T", res)
	}
	if st.Connected || st.PollCount != 0 || st.ErrorCount != 0 {
		t.Fatalf("status: %+v", st)
	}
}

func TestActionReadByName(t *testing.T) {
	tr := &fakeTransport{
		words: map[string][]uint16{
			rkey(regmap.KindHolding, 0): {1000},
		},
	}
	e, _ := testEngine(t, tr)

	res, err := e.Actions()["read_by_name"](Request{Register: "voltage"})
	if err != nil {
		t.Fatalf("read_by_name err=%v", err)
	}
	rr := res.(ReadResult)
	if rr.Name != "voltage" || rr.Value != 100.0 {
		t.Fatalf("read_by_name: %+v", rr)
	}

	// The action connects on demand.
	tr.mu.Lock()
	connects := tr.connects
	tr.mu.Unlock()
	if connects != 1 {
		t.Fatalf("connects: got %d, want 1", connects)
	}
}

func TestActionReadByNameNotFound(t *testing.T) {
	e, _ := testEngine(t, &fakeTransport{})

	_, err := e.Actions()["read_by_name"](Request{Register: "bogus"})
	if !errors.Is(err, regmap.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	if _, err := e.Actions()["read_by_name"](Request{}); err == nil {
		t.Fatalf("missing register name must be rejected")
	}
}

func TestActionWriteByName(t *testing.T) {
	tr := &fakeTransport{}
	e, _ := testEngine(t, tr)

	res, err := e.Actions()["write_by_name"](Request{Register: "voltage", Value: 95.0})
	if err != nil {
		t.Fatalf("write_by_name err=%v", err)
	}
	wr := res.(WriteResult)
	if wr.Name != "voltage" || wr.Address != 0 {
		t.Fatalf("write_by_name: %+v", wr)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.writes) != 1 {
		t.Fatalf("writes: got %d", len(tr.writes))
	}
	// 95.0 engineering units at scale 0.1 is raw 950.
	if tr.writes[0].words[0] != 950 {
		t.Fatalf("raw write: got %d, want 950", tr.writes[0].words[0])
	}
}

func TestActionWriteByNameRejected(t *testing.T) {
	tr := &fakeTransport{}
	e, _ := testEngine(t, tr)

	_, err := e.Actions()["write_by_name"](Request{Register: "alarm", Value: true})
	if !errors.Is(err, ErrWriteRejected) {
		t.Fatalf("want ErrWriteRejected, got %v", err)
	}
	if tr.writeCount() != 0 {
		t.Fatalf("rejected write must not touch the transport")
	}
	tr.mu.Lock()
	connects := tr.connects
	tr.mu.Unlock()
	if connects != 0 {
		t.Fatalf("rejected write must not connect")
	}
}

func TestActionReadByAddress(t *testing.T) {
	tr := &fakeTransport{
		words: map[string][]uint16{
			rkey(regmap.KindInput, 7): {0xFFFF},
		},
	}
	e, _ := testEngine(t, tr)

	res, err := e.Actions()["read_by_address"](Request{Kind: regmap.KindInput, Address: 7, Datatype: codec.Int16})
	if err != nil {
		t.Fatalf("read_by_address err=%v", err)
	}
	rr := res.(ReadResult)
	if rr.Value != int64(-1) {
		t.Fatalf("read_by_address: got %v, want -1", rr.Value)
	}
}

func TestActionReadByAddressDefaults(t *testing.T) {
	tr := &fakeTransport{
		bits: map[string]bool{rkey(regmap.KindCoil, 1): true},
	}
	e, _ := testEngine(t, tr)

	// Bit kinds default to bool, word kinds to uint16.
	res, err := e.ReadByAddress(regmap.KindCoil, 1, "", "", 0)
	if err != nil {
		t.Fatalf("ReadByAddress err=%v", err)
	}
	if res.Value != true || res.Datatype != codec.Bool {
		t.Fatalf("coil default: %+v", res)
	}

	if _, err := e.ReadByAddress(regmap.Kind("analog"), 0, "", "", 0); err == nil {
		t.Fatalf("unknown kind must be rejected")
	}
}

func TestActionWriteByAddress(t *testing.T) {
	tr := &fakeTransport{}
	e, _ := testEngine(t, tr)

	if _, err := e.WriteByAddress(regmap.KindInput, 3, codec.Uint16, "", 1, uint64(1)); !errors.Is(err, ErrWriteRejected) {
		t.Fatalf("input register write: want ErrWriteRejected, got %v", err)
	}

	res, err := e.WriteByAddress(regmap.KindHolding, 3, codec.Uint16, "", 1, uint64(7))
	if err != nil {
		t.Fatalf("WriteByAddress err=%v", err)
	}
	if res.Address != 3 {
		t.Fatalf("WriteByAddress: %+v", res)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.writes) != 1 || tr.writes[0].words[0] != 7 {
		t.Fatalf("writes: %+v", tr.writes)
	}
}

func TestActionListings(t *testing.T) {
	e, _ := testEngine(t, &fakeTransport{})

	res, err := e.Actions()["list_items"](Request{})
	if err != nil {
		t.Fatalf("list_items err=%v", err)
	}
	all := res.([]Item)
	if len(all) != 4 {
		t.Fatalf("list_items: got %d, want 4", len(all))
	}
	if all[0].Name != "voltage" {
		t.Fatalf("declaration order lost: %+v", all[0])
	}

	res, err = e.Actions()["list_writable_items"](Request{})
	if err != nil {
		t.Fatalf("list_writable_items err=%v", err)
	}
	writable := res.([]Item)
	if len(writable) != 3 {
		t.Fatalf("list_writable_items: got %d, want 3", len(writable))
	}
	for _, it := range writable {
		if !it.Writable {
			t.Fatalf("non-writable item listed: %+v", it)
		}
	}
}
