// internal/transport/modbustcp/client.go

// Package modbustcp adapts goburrow/modbus TCP and RTU clients to the
// transport contract, classifying network failures into typed reasons.
package modbustcp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/goburrow/modbus"

	"github.com/zeloscloud/zelos-extension-modbus/internal/regmap"
	"github.com/zeloscloud/zelos-extension-modbus/internal/transport"
)

const (
	ModeTCP = "tcp"
	ModeRTU = "rtu"
)

// Config selects and parameterizes the underlying goburrow handler.
type Config struct {
	Mode    string // "tcp" or "rtu"
	Address string // host:port for tcp, device path for rtu
	UnitID  byte
	Timeout time.Duration

	// RTU only.
	BaudRate int
	DataBits int
	Parity   string
	StopBits int
}

type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// Client implements transport.Transport over a goburrow/modbus handler.
type Client struct {
	handler handler
	client  modbus.Client
}

// New builds an unconnected client; Connect establishes the link.
func New(cfg Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("modbustcp: address required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	var h handler
	switch cfg.Mode {
	case ModeTCP, "":
		th := modbus.NewTCPClientHandler(cfg.Address)
		th.Timeout = cfg.Timeout
		th.SlaveId = cfg.UnitID
		h = th
	case ModeRTU:
		rh := modbus.NewRTUClientHandler(cfg.Address)
		rh.Timeout = cfg.Timeout
		rh.SlaveId = cfg.UnitID
		if cfg.BaudRate > 0 {
			rh.BaudRate = cfg.BaudRate
		}
		if cfg.DataBits > 0 {
			rh.DataBits = cfg.DataBits
		}
		if cfg.Parity != "" {
			rh.Parity = cfg.Parity
		}
		if cfg.StopBits > 0 {
			rh.StopBits = cfg.StopBits
		}
		h = rh
	default:
		return nil, fmt.Errorf("modbustcp: unknown mode %q", cfg.Mode)
	}

	return &Client{handler: h, client: modbus.NewClient(h)}, nil
}

func (c *Client) Connect() error {
	return classify(c.handler.Connect())
}

func (c *Client) Close() error {
	return c.handler.Close()
}

func (c *Client) ReadBits(kind regmap.Kind, address, count uint16) ([]bool, error) {
	var data []byte
	var err error
	switch kind {
	case regmap.KindCoil:
		data, err = c.client.ReadCoils(address, count)
	case regmap.KindDiscreteInput:
		data, err = c.client.ReadDiscreteInputs(address, count)
	default:
		return nil, fmt.Errorf("modbustcp: kind %q is not bit-addressable", kind)
	}
	if err != nil {
		return nil, classify(err)
	}
	return unpackBits(data, int(count)), nil
}

func (c *Client) ReadWords(kind regmap.Kind, address, count uint16) ([]uint16, error) {
	var data []byte
	var err error
	switch kind {
	case regmap.KindHolding:
		data, err = c.client.ReadHoldingRegisters(address, count)
	case regmap.KindInput:
		data, err = c.client.ReadInputRegisters(address, count)
	default:
		return nil, fmt.Errorf("modbustcp: kind %q is not word-addressable", kind)
	}
	if err != nil {
		return nil, classify(err)
	}
	if len(data) != int(count)*2 {
		return nil, fmt.Errorf("modbustcp: short register payload: got %d bytes, want %d", len(data), count*2)
	}
	return unpackWords(data), nil
}

func (c *Client) WriteBit(address uint16, on bool) error {
	value := uint16(0x0000)
	if on {
		value = 0xFF00
	}
	_, err := c.client.WriteSingleCoil(address, value)
	return classify(err)
}

func (c *Client) WriteWord(address uint16, value uint16) error {
	_, err := c.client.WriteSingleRegister(address, value)
	return classify(err)
}

func (c *Client) WriteWords(address uint16, values []uint16) error {
	data := make([]byte, len(values)*2)
	for i, w := range values {
		data[2*i] = byte(w >> 8)
		data[2*i+1] = byte(w)
	}
	_, err := c.client.WriteMultipleRegisters(address, uint16(len(values)), data)
	return classify(err)
}

// classify wraps network-level failures as transport errors. Device
// exceptions (modbus.ModbusError) and malformed payloads stay untyped so
// the engine treats them as protocol errors.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return err
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return transport.NewError(transport.ReasonTimeout, err)
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return transport.NewError(transport.ReasonRefused, err)
	case errors.Is(err, syscall.ECONNRESET):
		return transport.NewError(transport.ReasonReset, err)
	case errors.Is(err, syscall.EPIPE):
		return transport.NewError(transport.ReasonBroken, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return transport.NewError(transport.ReasonClosed, err)
	}

	var oe *net.OpError
	if errors.As(err, &oe) {
		return transport.NewError(transport.ReasonBroken, err)
	}

	return err
}

// unpackBits expands the LSB-first packed bit payload.
func unpackBits(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		byteIdx := i / 8
		if byteIdx >= len(data) {
			break
		}
		out[i] = data[byteIdx]&(1<<(i%8)) != 0
	}
	return out
}

// unpackWords converts the big-endian register payload.
func unpackWords(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
