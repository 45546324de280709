// internal/sim/powermeter.go

// Package sim provides an in-memory 3-phase power meter implementing the
// transport contract, for demo mode and engine tests. No network, no
// hardware.
package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/zeloscloud/zelos-extension-modbus/internal/codec"
	"github.com/zeloscloud/zelos-extension-modbus/internal/regmap"
	"github.com/zeloscloud/zelos-extension-modbus/internal/transport"
)

// Holding register layout.
const (
	AddrVoltageL1   = 0 // float32 pairs through address 17
	AddrVoltageL2   = 2
	AddrVoltageL3   = 4
	AddrCurrentL1   = 6
	AddrCurrentL2   = 8
	AddrCurrentL3   = 10
	AddrPowerTotal  = 12
	AddrPowerFactor = 14
	AddrFrequency   = 16
	AddrEnergyTotal = 18 // uint32
	AddrTemperature = 20 // int16, tenths of a degree

	// Writable setpoints.
	AddrVoltageHigh = 100 // uint16
	AddrVoltageLow  = 101 // uint16
	AddrPowerLimit  = 102 // int32
	AddrEnergyReset = 104 // uint32

	// Word-swapped calibration floats.
	AddrCalFactor = 110 // float32, big_swap
	AddrOffsetVal = 112 // float32, big_swap
)

// Coils and discrete inputs.
const (
	CoilRelay1 = 0
	CoilRelay2 = 1
	CoilAlarm  = 2

	DiscreteDoor  = 0
	DiscreteFault = 1
	DiscreteGrid  = 2
)

// Input registers.
const (
	AddrFirmware = 0 // uint16
	AddrSerial   = 1 // uint32
	AddrUptime   = 3 // uint32
)

const (
	nominalVoltage   = 230.0
	nominalFrequency = 50.0
	baseLoadAmps     = 50.0
)

// PowerMeter simulates an industrial 3-phase meter. Measured registers
// are recomputed lazily on every read; setpoints keep whatever was
// written to them.
type PowerMeter struct {
	mu        sync.Mutex
	connected bool
	start     time.Time
	last      time.Time

	energyWh float64

	holding  [120]uint16
	input    [8]uint16
	coils    [8]bool
	discrete [8]bool
}

func New() *PowerMeter {
	now := time.Now()
	pm := &PowerMeter{start: now, last: now}

	pm.input[AddrFirmware] = 0x0102 // v1.2
	pm.setInput(AddrSerial, codec.Uint32, uint64(20240042))

	pm.setHolding(AddrVoltageHigh, codec.Uint16, codec.BigEndian, uint64(250))
	pm.setHolding(AddrVoltageLow, codec.Uint16, codec.BigEndian, uint64(210))
	pm.setHolding(AddrPowerLimit, codec.Int32, codec.BigEndian, int64(100000))
	pm.setHolding(AddrCalFactor, codec.Float32, codec.BigSwap, 1.0)
	pm.setHolding(AddrOffsetVal, codec.Float32, codec.BigSwap, 0.0)

	pm.discrete[DiscreteGrid] = true
	return pm
}

func (pm *PowerMeter) setHolding(addr uint16, dt codec.Datatype, bo codec.ByteOrder, v any) {
	words, err := codec.Encode(v, dt, bo, 1)
	if err != nil {
		return
	}
	copy(pm.holding[addr:], words)
}

func (pm *PowerMeter) setInput(addr uint16, dt codec.Datatype, v any) {
	words, err := codec.Encode(v, dt, codec.BigEndian, 1)
	if err != nil {
		return
	}
	copy(pm.input[addr:], words)
}

// update advances the physics to now. Caller holds pm.mu.
func (pm *PowerMeter) update(now time.Time) {
	t := now.Sub(pm.start).Seconds()
	dt := now.Sub(pm.last).Seconds()
	pm.last = now

	voltageL1 := nominalVoltage * (1.0 + 0.02*math.Sin(t*0.1))
	voltageL2 := nominalVoltage * (1.0 + 0.02*math.Sin(t*0.1+2.094))
	voltageL3 := nominalVoltage * (1.0 + 0.02*math.Sin(t*0.1+4.189))

	loadFactor := 1.0 + 0.3*math.Sin(t*0.05)
	currentL1 := math.Max(0, baseLoadAmps*loadFactor*(1.0+rand.NormFloat64()*0.05))
	currentL2 := math.Max(0, baseLoadAmps*loadFactor*(1.0+rand.NormFloat64()*0.05))
	currentL3 := math.Max(0, baseLoadAmps*loadFactor*(1.0+rand.NormFloat64()*0.05))

	powerFactor := 0.85 + 0.1*math.Sin(t*0.02)
	powerTotal := (voltageL1*currentL1 + voltageL2*currentL2 + voltageL3*currentL3) * powerFactor / 1000.0

	frequency := nominalFrequency + 0.05*math.Sin(t*0.3)

	pm.energyWh += powerTotal * dt / 3600.0 * 1000

	avgCurrent := (currentL1 + currentL2 + currentL3) / 3
	temperature := 25.0 + (avgCurrent/baseLoadAmps)*15.0

	pm.setHolding(AddrVoltageL1, codec.Float32, codec.BigEndian, voltageL1)
	pm.setHolding(AddrVoltageL2, codec.Float32, codec.BigEndian, voltageL2)
	pm.setHolding(AddrVoltageL3, codec.Float32, codec.BigEndian, voltageL3)
	pm.setHolding(AddrCurrentL1, codec.Float32, codec.BigEndian, currentL1)
	pm.setHolding(AddrCurrentL2, codec.Float32, codec.BigEndian, currentL2)
	pm.setHolding(AddrCurrentL3, codec.Float32, codec.BigEndian, currentL3)
	pm.setHolding(AddrPowerTotal, codec.Float32, codec.BigEndian, powerTotal)
	pm.setHolding(AddrPowerFactor, codec.Float32, codec.BigEndian, powerFactor)
	pm.setHolding(AddrFrequency, codec.Float32, codec.BigEndian, frequency)
	pm.setHolding(AddrEnergyTotal, codec.Uint32, codec.BigEndian, uint64(pm.energyWh))
	pm.setHolding(AddrTemperature, codec.Int16, codec.BigEndian, int64(math.Round(temperature*10)))

	pm.setInput(AddrUptime, codec.Uint32, uint64(t))

	pm.coils[CoilAlarm] = temperature > 50.0
}

// ---- transport.Transport ----

func (pm *PowerMeter) Connect() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.connected = true
	return nil
}

func (pm *PowerMeter) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.connected = false
	return nil
}

func (pm *PowerMeter) ReadBits(kind regmap.Kind, address, count uint16) ([]bool, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.connected {
		return nil, transport.NewError(transport.ReasonClosed, errors.New("sim: not connected"))
	}
	pm.update(time.Now())

	var bank []bool
	switch kind {
	case regmap.KindCoil:
		bank = pm.coils[:]
	case regmap.KindDiscreteInput:
		bank = pm.discrete[:]
	default:
		return nil, fmt.Errorf("sim: kind %q is not bit-addressable", kind)
	}

	if int(address)+int(count) > len(bank) {
		return nil, errIllegalAddress(address, count)
	}
	out := make([]bool, count)
	copy(out, bank[address:])
	return out, nil
}

func (pm *PowerMeter) ReadWords(kind regmap.Kind, address, count uint16) ([]uint16, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.connected {
		return nil, transport.NewError(transport.ReasonClosed, errors.New("sim: not connected"))
	}
	pm.update(time.Now())

	var bank []uint16
	switch kind {
	case regmap.KindHolding:
		bank = pm.holding[:]
	case regmap.KindInput:
		bank = pm.input[:]
	default:
		return nil, fmt.Errorf("sim: kind %q is not word-addressable", kind)
	}

	if int(address)+int(count) > len(bank) {
		return nil, errIllegalAddress(address, count)
	}
	out := make([]uint16, count)
	copy(out, bank[address:])
	return out, nil
}

func (pm *PowerMeter) WriteBit(address uint16, on bool) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.connected {
		return transport.NewError(transport.ReasonClosed, errors.New("sim: not connected"))
	}
	if int(address) >= len(pm.coils) {
		return errIllegalAddress(address, 1)
	}
	pm.coils[address] = on
	return nil
}

func (pm *PowerMeter) WriteWord(address uint16, value uint16) error {
	return pm.WriteWords(address, []uint16{value})
}

func (pm *PowerMeter) WriteWords(address uint16, values []uint16) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.connected {
		return transport.NewError(transport.ReasonClosed, errors.New("sim: not connected"))
	}
	if int(address)+len(values) > len(pm.holding) {
		return errIllegalAddress(address, uint16(len(values)))
	}
	copy(pm.holding[address:], values)
	return nil
}

// errIllegalAddress mimics a device exception: a protocol-class error,
// not a connection failure.
func errIllegalAddress(address, count uint16) error {
	return fmt.Errorf("sim: illegal data address %d+%d", address, count)
}
