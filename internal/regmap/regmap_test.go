// internal/regmap/regmap_test.go
package regmap

import (
	"errors"
	"strings"
	"testing"

	"github.com/zeloscloud/zelos-extension-modbus/internal/codec"
)

const sampleMap = `
device: power_meter
groups:
  - name: voltage
    registers:
      - name: voltage_l1
        address: 0
        kind: holding
        datatype: float32
        unit: V
      - name: voltage_l2
        address: 2
        kind: holding
        datatype: float32
        unit: V
  - name: status
    registers:
      - name: temperature
        address: 20
        kind: input
        datatype: int16
        scale: 0.1
        unit: degC
      - name: alarm
        address: 2
        kind: discrete_input
        datatype: bool
      - name: relay1
        address: 0
        kind: coil
        datatype: bool
  - name: setpoints
    registers:
      - name: voltage_high
        address: 100
        kind: holding
        datatype: uint16
      - name: cal_factor
        address: 110
        kind: holding
        datatype: float32
        byte_order: big_swap
        writable: false
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleMap))
	if err != nil {
		t.Fatalf("Parse err=%v", err)
	}

	if m.Device != "power_meter" {
		t.Fatalf("device: got %q", m.Device)
	}
	if m.Len() != 7 {
		t.Fatalf("len: got %d, want 7", m.Len())
	}

	groups := m.Groups()
	want := []string{"voltage", "status", "setpoints"}
	if len(groups) != len(want) {
		t.Fatalf("groups: got %d", len(groups))
	}
	for i, g := range groups {
		if g.Name != want[i] {
			t.Fatalf("group order: got %q at %d, want %q", g.Name, i, want[i])
		}
	}
}

func TestParseDefaults(t *testing.T) {
	m, err := Parse([]byte(`
groups:
  - name: g
    registers:
      - name: bare
        address: 5
      - name: switch
        address: 0
        kind: coil
`))
	if err != nil {
		t.Fatalf("Parse err=%v", err)
	}

	d, err := m.ByName("bare")
	if err != nil {
		t.Fatalf("ByName err=%v", err)
	}
	if d.Kind != KindHolding || d.Datatype != codec.Uint16 || d.ByteOrder != codec.BigEndian {
		t.Fatalf("defaults: %+v", d)
	}
	if d.Scale != 1.0 {
		t.Fatalf("scale default: got %v", d.Scale)
	}
	if !d.Writable {
		t.Fatalf("holding register should default writable")
	}
	if m.Device != "modbus" {
		t.Fatalf("device default: got %q", m.Device)
	}

	c, err := m.ByName("switch")
	if err != nil {
		t.Fatalf("ByName err=%v", err)
	}
	if c.Datatype != codec.Bool {
		t.Fatalf("coil datatype default: got %q, want bool", c.Datatype)
	}
}

func TestWritableResolution(t *testing.T) {
	m, err := Parse([]byte(sampleMap))
	if err != nil {
		t.Fatalf("Parse err=%v", err)
	}

	cases := map[string]bool{
		"voltage_l1":   true,  // holding default
		"voltage_l2":   true,  // holding default
		"temperature":  false, // input default
		"alarm":        false, // discrete_input default
		"relay1":       true,  // coil default
		"cal_factor":   false, // explicit override on holding
		"voltage_high": true,
	}
	for name, want := range cases {
		d, err := m.ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q) err=%v", name, err)
		}
		if d.Writable != want {
			t.Fatalf("%s writable: got %v, want %v", name, d.Writable, want)
		}
	}

	// voltage_l1, voltage_l2, relay1, voltage_high.
	writable := m.Writable()
	if len(writable) != 4 {
		t.Fatalf("Writable: got %d, want 4", len(writable))
	}
}

func TestLookups(t *testing.T) {
	m, err := Parse([]byte(sampleMap))
	if err != nil {
		t.Fatalf("Parse err=%v", err)
	}

	d, err := m.ByAddress(KindInput, 20)
	if err != nil {
		t.Fatalf("ByAddress err=%v", err)
	}
	if d.Name != "temperature" {
		t.Fatalf("ByAddress: got %q", d.Name)
	}

	if _, err := m.ByName("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ByName(nope): want ErrNotFound, got %v", err)
	}
	if _, err := m.ByAddress(KindCoil, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ByAddress miss: want ErrNotFound, got %v", err)
	}
}

func TestParseFailures(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			"duplicate register name",
			`
groups:
  - name: a
    registers:
      - {name: x, address: 0}
  - name: b
    registers:
      - {name: x, address: 1}
`,
			"duplicate register name",
		},
		{
			"duplicate group name",
			`
groups:
  - name: a
    registers: [{name: x, address: 0}]
  - name: a
    registers: [{name: y, address: 1}]
`,
			"duplicate group",
		},
		{
			"unknown kind",
			`
groups:
  - name: a
    registers: [{name: x, address: 0, kind: analog}]
`,
			"unknown kind",
		},
		{
			"unknown datatype",
			`
groups:
  - name: a
    registers: [{name: x, address: 0, datatype: uint128}]
`,
			"unknown datatype",
		},
		{
			"unknown byte order",
			`
groups:
  - name: a
    registers: [{name: x, address: 0, datatype: uint32, byte_order: middle}]
`,
			"unknown byte order",
		},
		{
			"bool on holding",
			`
groups:
  - name: a
    registers: [{name: x, address: 0, kind: holding, datatype: bool}]
`,
			"bool requires coil or discrete_input",
		},
		{
			"uint16 on coil",
			`
groups:
  - name: a
    registers: [{name: x, address: 0, kind: coil, datatype: uint16}]
`,
			"requires bool",
		},
		{
			"address out of range",
			`
groups:
  - name: a
    registers: [{name: x, address: 70000}]
`,
			"cannot unmarshal",
		},
		{
			"missing name",
			`
groups:
  - name: a
    registers: [{address: 0}]
`,
			"name required",
		},
		{
			"no groups",
			`device: empty`,
			"at least one group",
		},
	}

	for _, tc := range cases {
		_, err := Parse([]byte(tc.doc))
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestWordCount(t *testing.T) {
	d := Definition{Datatype: codec.Float64}
	if d.WordCount() != 4 {
		t.Fatalf("float64 word count: got %d", d.WordCount())
	}
	d.Datatype = codec.Bool
	if d.WordCount() != 1 {
		t.Fatalf("bool word count: got %d", d.WordCount())
	}
}
