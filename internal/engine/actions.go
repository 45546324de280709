// internal/engine/actions.go
package engine

import (
	"errors"
	"fmt"

	"github.com/zeloscloud/zelos-extension-modbus/internal/codec"
	"github.com/zeloscloud/zelos-extension-modbus/internal/regmap"
)

// Item describes one register for the listing actions.
type Item struct {
	Name      string          `json:"name"`
	Address   uint16          `json:"address"`
	Kind      regmap.Kind     `json:"kind"`
	Datatype  codec.Datatype  `json:"datatype"`
	Unit      string          `json:"unit,omitempty"`
	Scale     float64         `json:"scale"`
	ByteOrder codec.ByteOrder `json:"byte_order"`
	Writable  bool            `json:"writable"`
}

// ReadResult is the typed result of a read action.
type ReadResult struct {
	Name     string         `json:"name,omitempty"`
	Address  uint16         `json:"address"`
	Kind     regmap.Kind    `json:"kind"`
	Datatype codec.Datatype `json:"datatype"`
	Value    any            `json:"value"`
	Unit     string         `json:"unit,omitempty"`
}

// WriteResult echoes a completed write.
type WriteResult struct {
	Name    string      `json:"name,omitempty"`
	Address uint16      `json:"address"`
	Kind    regmap.Kind `json:"kind"`
	Value   any         `json:"value"`
}

// adHoc builds a definition for address-based actions that bypass the map.
func adHoc(kind regmap.Kind, address uint16, dt codec.Datatype, bo codec.ByteOrder, scale float64) (*regmap.Definition, error) {
	if !regmap.ValidKind(kind) {
		return nil, fmt.Errorf("engine: unknown register kind %q", kind)
	}
	if dt == "" {
		if kind.IsBit() {
			dt = codec.Bool
		} else {
			dt = codec.Uint16
		}
	}
	if !codec.ValidDatatype(dt) {
		return nil, codec.ErrUnsupportedDatatype
	}
	if bo == "" {
		bo = codec.BigEndian
	}
	if !codec.ValidByteOrder(bo) {
		return nil, codec.ErrUnsupportedByteOrder
	}
	if scale == 0 {
		scale = 1
	}
	return &regmap.Definition{
		Name:      fmt.Sprintf("%s@%d", kind, address),
		Address:   address,
		Kind:      kind,
		Datatype:  dt,
		ByteOrder: bo,
		Scale:     scale,
		Writable:  kind == regmap.KindHolding || kind == regmap.KindCoil,
	}, nil
}

// ReadByAddress reads and decodes one ad-hoc register, connecting first
// if needed.
func (e *Engine) ReadByAddress(kind regmap.Kind, address uint16, dt codec.Datatype, bo codec.ByteOrder, scale float64) (ReadResult, error) {
	d, err := adHoc(kind, address, dt, bo, scale)
	if err != nil {
		return ReadResult{}, err
	}
	if err := e.ensureConnected(); err != nil {
		return ReadResult{}, err
	}
	v, err := e.read(d)
	if err != nil {
		return ReadResult{}, err
	}
	return ReadResult{Address: address, Kind: kind, Datatype: d.Datatype, Value: v}, nil
}

// WriteByAddress encodes and writes one ad-hoc register.
func (e *Engine) WriteByAddress(kind regmap.Kind, address uint16, dt codec.Datatype, bo codec.ByteOrder, scale float64, value any) (WriteResult, error) {
	d, err := adHoc(kind, address, dt, bo, scale)
	if err != nil {
		return WriteResult{}, err
	}
	if !d.Writable {
		return WriteResult{}, fmt.Errorf("%w: %q", ErrWriteRejected, d.Name)
	}
	if err := e.ensureConnected(); err != nil {
		return WriteResult{}, err
	}
	if err := e.Write(d, value); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Address: address, Kind: kind, Value: value}, nil
}

// ReadByName reads a mapped register by its unique name.
func (e *Engine) ReadByName(name string) (ReadResult, error) {
	d, err := e.m.ByName(name)
	if err != nil {
		return ReadResult{}, err
	}
	if err := e.ensureConnected(); err != nil {
		return ReadResult{}, err
	}
	v, err := e.read(d)
	if err != nil {
		return ReadResult{}, err
	}
	return ReadResult{
		Name:     d.Name,
		Address:  d.Address,
		Kind:     d.Kind,
		Datatype: d.Datatype,
		Value:    v,
		Unit:     d.Unit,
	}, nil
}

// WriteByName writes a mapped register by its unique name. Non-writable
// registers are rejected before any transport traffic.
func (e *Engine) WriteByName(name string, value any) (WriteResult, error) {
	d, err := e.m.ByName(name)
	if err != nil {
		return WriteResult{}, err
	}
	if !d.Writable {
		return WriteResult{}, fmt.Errorf("%w: %q", ErrWriteRejected, d.Name)
	}
	if err := e.ensureConnected(); err != nil {
		return WriteResult{}, err
	}
	if err := e.Write(d, value); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Name: d.Name, Address: d.Address, Kind: d.Kind, Value: value}, nil
}

// ListItems returns every mapped register in declaration order.
func (e *Engine) ListItems() []Item {
	return items(e.m.Registers())
}

// ListWritable returns the writable subset in declaration order.
func (e *Engine) ListWritable() []Item {
	return items(e.m.Writable())
}

func items(defs []regmap.Definition) []Item {
	out := make([]Item, 0, len(defs))
	for _, d := range defs {
		out = append(out, Item{
			Name:      d.Name,
			Address:   d.Address,
			Kind:      d.Kind,
			Datatype:  d.Datatype,
			Unit:      d.Unit,
			Scale:     d.Scale,
			ByteOrder: d.ByteOrder,
			Writable:  d.Writable,
		})
	}
	return out
}

// Request is the validated payload an action handler receives.
type Request struct {
	Register  string          `json:"register,omitempty"`
	Kind      regmap.Kind     `json:"kind,omitempty"`
	Address   uint16          `json:"address,omitempty"`
	Datatype  codec.Datatype  `json:"datatype,omitempty"`
	ByteOrder codec.ByteOrder `json:"byte_order,omitempty"`
	Scale     float64         `json:"scale,omitempty"`
	Value     any             `json:"value,omitempty"`
}

// Action is one entry in the dispatch table: typed request in, typed
// result or error out.
type Action func(Request) (any, error)

var errRegisterRequired = errors.New("engine: action requires a register name")

// Actions returns the name-to-handler table consumed by the external
// command dispatcher. Plain map lookup, no reflection.
func (e *Engine) Actions() map[string]Action {
	return map[string]Action{
		"get_status": func(Request) (any, error) {
			return e.Status(), nil
		},
		"read_by_address": func(r Request) (any, error) {
			return e.ReadByAddress(r.Kind, r.Address, r.Datatype, r.ByteOrder, r.Scale)
		},
		"write_by_address": func(r Request) (any, error) {
			return e.WriteByAddress(r.Kind, r.Address, r.Datatype, r.ByteOrder, r.Scale, r.Value)
		},
		"read_by_name": func(r Request) (any, error) {
			if r.Register == "" {
				return nil, errRegisterRequired
			}
			return e.ReadByName(r.Register)
		},
		"write_by_name": func(r Request) (any, error) {
			if r.Register == "" {
				return nil, errRegisterRequired
			}
			return e.WriteByName(r.Register, r.Value)
		},
		"list_items": func(Request) (any, error) {
			return e.ListItems(), nil
		},
		"list_writable_items": func(Request) (any, error) {
			return e.ListWritable(), nil
		},
	}
}
