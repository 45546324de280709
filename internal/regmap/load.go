// internal/regmap/load.go
package regmap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zeloscloud/zelos-extension-modbus/internal/codec"
)

// File schema. Groups are a list so declaration order survives parsing.
type mapFile struct {
	Device string      `yaml:"device"`
	Groups []groupFile `yaml:"groups"`
}

type groupFile struct {
	Name      string         `yaml:"name"`
	Registers []registerFile `yaml:"registers"`
}

type registerFile struct {
	Name        string          `yaml:"name"`
	Address     uint16          `yaml:"address"`
	Kind        Kind            `yaml:"kind"`
	Datatype    codec.Datatype  `yaml:"datatype"`
	Unit        string          `yaml:"unit"`
	Scale       *float64        `yaml:"scale"`
	ByteOrder   codec.ByteOrder `yaml:"byte_order"`
	Writable    *bool           `yaml:"writable"`
	Description string          `yaml:"description"`
}

// Load reads and parses a register map file.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("regmap: %w", err)
	}
	return Parse(data)
}

// Parse builds a validated Map from a YAML document. Missing optional
// fields take their documented defaults; unknown enum tokens, duplicate
// names and malformed values fail here, never at poll time.
func Parse(data []byte) (*Map, error) {
	var f mapFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("regmap: %w", err)
	}

	if f.Device == "" {
		f.Device = "modbus"
	}
	if len(f.Groups) == 0 {
		return nil, fmt.Errorf("regmap: at least one group required")
	}

	groups := make([]Group, 0, len(f.Groups))
	for _, gf := range f.Groups {
		g := Group{Name: gf.Name, Registers: make([]Definition, 0, len(gf.Registers))}
		for _, rf := range gf.Registers {
			g.Registers = append(g.Registers, resolve(rf))
		}
		groups = append(groups, g)
	}

	return New(f.Device, groups)
}

// resolve applies defaults and decides writability. Validation happens in
// New; resolve only fills in what the file left out.
func resolve(rf registerFile) Definition {
	d := Definition{
		Name:        rf.Name,
		Address:     rf.Address,
		Kind:        rf.Kind,
		Datatype:    rf.Datatype,
		Unit:        rf.Unit,
		Scale:       1.0,
		ByteOrder:   rf.ByteOrder,
		Description: rf.Description,
	}

	if d.Kind == "" {
		d.Kind = KindHolding
	}
	if d.Datatype == "" {
		if d.Kind.IsBit() {
			d.Datatype = codec.Bool
		} else {
			d.Datatype = codec.Uint16
		}
	}
	if d.ByteOrder == "" {
		d.ByteOrder = codec.BigEndian
	}
	if rf.Scale != nil {
		d.Scale = *rf.Scale
	}

	if rf.Writable != nil {
		d.Writable = *rf.Writable
	} else {
		d.Writable = d.Kind == KindHolding || d.Kind == KindCoil
	}

	return d
}
