// internal/sink/sink_test.go
package sink

import (
	"errors"
	"testing"
)

type capture struct {
	groups   []string
	closeErr error
	closed   bool
}

func (c *capture) Emit(group string, values map[string]any) {
	c.groups = append(c.groups, group)
}

func (c *capture) Close() error {
	c.closed = true
	return c.closeErr
}

func TestMultiFansOut(t *testing.T) {
	a := &capture{}
	b := &capture{}
	m := Multi{a, b}

	m.Emit("power", map[string]any{"voltage": 230.1})

	if len(a.groups) != 1 || a.groups[0] != "power" {
		t.Fatalf("first sink got %v", a.groups)
	}
	if len(b.groups) != 1 || b.groups[0] != "power" {
		t.Fatalf("second sink got %v", b.groups)
	}
}

func TestMultiCloseClosesAll(t *testing.T) {
	boom := errors.New("boom")
	a := &capture{closeErr: boom}
	b := &capture{}
	m := Multi{a, b}

	err := m.Close()
	if !a.closed || !b.closed {
		t.Fatalf("closed = %v/%v, want both", a.closed, b.closed)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
