// internal/regmap/regmap.go

// Package regmap holds the declarative register map: named, typed register
// definitions grouped for emission, validated once at load and immutable
// afterwards.
package regmap

import (
	"errors"
	"fmt"

	"github.com/zeloscloud/zelos-extension-modbus/internal/codec"
)

// Kind identifies the addressable register class on the device.
type Kind string

const (
	KindHolding       Kind = "holding"
	KindInput         Kind = "input"
	KindCoil          Kind = "coil"
	KindDiscreteInput Kind = "discrete_input"
)

// ValidKind reports whether k is a member of the supported set.
func ValidKind(k Kind) bool {
	switch k {
	case KindHolding, KindInput, KindCoil, KindDiscreteInput:
		return true
	default:
		return false
	}
}

// IsBit reports whether k addresses single bits rather than 16-bit words.
func (k Kind) IsBit() bool {
	return k == KindCoil || k == KindDiscreteInput
}

// Definition is one addressable item. Writable is resolved at load time:
// explicit values win, otherwise holding registers and coils are writable.
type Definition struct {
	Name        string
	Address     uint16
	Kind        Kind
	Datatype    codec.Datatype
	Unit        string
	Scale       float64
	ByteOrder   codec.ByteOrder
	Writable    bool
	Description string
}

// WordCount returns the number of registers the definition spans.
func (d *Definition) WordCount() int {
	n, err := codec.WordCount(d.Datatype)
	if err != nil {
		return 1
	}
	return n
}

// Group is a named, ordered sequence of definitions. Grouping only shapes
// downstream emission; registers of mixed kinds may coexist.
type Group struct {
	Name      string
	Registers []Definition
}

// Map is a device name plus its ordered groups and a name index.
type Map struct {
	Device string

	groups []Group
	index  map[string]*Definition
}

var ErrNotFound = errors.New("regmap: register not found")

// New builds a Map from already-resolved groups, running the same
// validation as Parse.
func New(device string, groups []Group) (*Map, error) {
	m := &Map{Device: device, groups: groups}
	if err := m.buildIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Map) buildIndex() error {
	m.index = make(map[string]*Definition)
	seenGroups := make(map[string]struct{})

	for gi := range m.groups {
		g := &m.groups[gi]
		if g.Name == "" {
			return fmt.Errorf("regmap: group %d: name required", gi)
		}
		if _, dup := seenGroups[g.Name]; dup {
			return fmt.Errorf("regmap: duplicate group %q", g.Name)
		}
		seenGroups[g.Name] = struct{}{}

		for ri := range g.Registers {
			d := &g.Registers[ri]
			if err := validate(d); err != nil {
				return fmt.Errorf("regmap: group %q: %w", g.Name, err)
			}
			if _, dup := m.index[d.Name]; dup {
				return fmt.Errorf("regmap: duplicate register name %q", d.Name)
			}
			m.index[d.Name] = d
		}
	}
	return nil
}

func validate(d *Definition) error {
	if d.Name == "" {
		return errors.New("register name required")
	}
	if !ValidKind(d.Kind) {
		return fmt.Errorf("register %q: unknown kind %q", d.Name, d.Kind)
	}
	if !codec.ValidDatatype(d.Datatype) {
		return fmt.Errorf("register %q: unknown datatype %q", d.Name, d.Datatype)
	}
	if !codec.ValidByteOrder(d.ByteOrder) {
		return fmt.Errorf("register %q: unknown byte order %q", d.Name, d.ByteOrder)
	}
	if d.Datatype == codec.Bool && !d.Kind.IsBit() {
		return fmt.Errorf("register %q: bool requires coil or discrete_input, got %q", d.Name, d.Kind)
	}
	if d.Kind.IsBit() && d.Datatype != codec.Bool {
		return fmt.Errorf("register %q: kind %q requires bool, got %q", d.Name, d.Kind, d.Datatype)
	}
	if d.Scale == 0 {
		return fmt.Errorf("register %q: scale must be non-zero", d.Name)
	}
	return nil
}

// ByName looks up a definition by its unique name.
func (m *Map) ByName(name string) (*Definition, error) {
	d, ok := m.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return d, nil
}

// ByAddress looks up a definition by kind and address.
func (m *Map) ByAddress(kind Kind, address uint16) (*Definition, error) {
	for gi := range m.groups {
		for ri := range m.groups[gi].Registers {
			d := &m.groups[gi].Registers[ri]
			if d.Kind == kind && d.Address == address {
				return d, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s@%d", ErrNotFound, kind, address)
}

// Groups returns the groups in declaration order. The result is shared and
// must not be mutated.
func (m *Map) Groups() []Group {
	return m.groups
}

// Registers returns every definition in declaration order.
func (m *Map) Registers() []Definition {
	var out []Definition
	for _, g := range m.groups {
		out = append(out, g.Registers...)
	}
	return out
}

// Writable returns every definition resolved as writable, in declaration
// order.
func (m *Map) Writable() []Definition {
	var out []Definition
	for _, g := range m.groups {
		for _, d := range g.Registers {
			if d.Writable {
				out = append(out, d)
			}
		}
	}
	return out
}

// Len returns the total number of definitions.
func (m *Map) Len() int {
	return len(m.index)
}
