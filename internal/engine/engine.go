// internal/engine/engine.go

// Package engine owns the transport connection and drives the register
// map against it: a single poll loop with automatic reconnection, plus a
// serialized write path for callers outside the loop.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zeloscloud/zelos-extension-modbus/internal/codec"
	"github.com/zeloscloud/zelos-extension-modbus/internal/regmap"
	"github.com/zeloscloud/zelos-extension-modbus/internal/sink"
	"github.com/zeloscloud/zelos-extension-modbus/internal/transport"
)

// State is the connection state machine. Initial state is Disconnected;
// there is no terminal state, the loop runs until Stop.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

var (
	ErrNotConnected  = errors.New("engine: not connected")
	ErrWriteRejected = errors.New("engine: register not writable")
)

// Status is the snapshot returned to the action surface.
type Status struct {
	Connected  bool   `json:"connected"`
	PollCount  uint64 `json:"poll_count"`
	ErrorCount uint64 `json:"error_count"`
}

// Config carries the loop cadence. Zero values take defaults.
type Config struct {
	PollInterval      time.Duration // between successful cycles, default 1s
	ReconnectInterval time.Duration // between failed connect attempts, default 3s
}

// Engine serializes all transport access behind one mutex: at most one
// request/response pair is in flight, whether it comes from the poll loop
// or from an action caller.
type Engine struct {
	m   *regmap.Map
	tr  transport.Transport
	out sink.Sink
	log *zap.Logger

	pollInterval      time.Duration
	reconnectInterval time.Duration

	mu         sync.Mutex
	state      State
	pollCount  uint64
	errorCount uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates an engine in the Disconnected state.
func New(m *regmap.Map, tr transport.Transport, out sink.Sink, log *zap.Logger, cfg Config) (*Engine, error) {
	if m == nil {
		return nil, errors.New("engine: register map required")
	}
	if tr == nil {
		return nil, errors.New("engine: transport required")
	}
	if out == nil {
		return nil, errors.New("engine: sink required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 3 * time.Second
	}

	return &Engine{
		m:                 m,
		tr:                tr,
		out:               out,
		log:               log,
		pollInterval:      cfg.PollInterval,
		reconnectInterval: cfg.ReconnectInterval,
		stop:              make(chan struct{}),
	}, nil
}

// connect runs one attempt. Caller holds e.mu.
func (e *Engine) connect() error {
	e.state = Connecting
	if err := e.tr.Connect(); err != nil {
		e.state = Disconnected
		return err
	}
	e.state = Connected
	e.log.Info("connected")
	return nil
}

// ensureConnected is a no-op when already connected, otherwise one
// connect attempt.
func (e *Engine) ensureConnected() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Connected {
		return nil
	}
	return e.connect()
}

// read performs one transport round trip for d and decodes the result.
// A connection-class failure drops the state to Disconnected.
func (e *Engine) read(d *regmap.Definition) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Connected {
		return nil, ErrNotConnected
	}

	var v any
	var err error
	if d.Kind.IsBit() {
		var bits []bool
		bits, err = e.tr.ReadBits(d.Kind, d.Address, 1)
		if err == nil {
			if len(bits) == 0 {
				err = fmt.Errorf("engine: empty bit response for %q", d.Name)
			} else {
				v = bits[0]
			}
		}
	} else {
		var words []uint16
		words, err = e.tr.ReadWords(d.Kind, d.Address, uint16(d.WordCount()))
		if err == nil {
			v, err = codec.Decode(words, d.Datatype, d.ByteOrder, d.Scale)
		}
	}

	if transport.IsConnection(err) {
		e.state = Disconnected
	}
	return v, err
}

// Write encodes value and issues one write request. The register must be
// writable and the engine Connected; rejection happens before any
// transport traffic.
func (e *Engine) Write(d *regmap.Definition, value any) error {
	if !d.Writable {
		return fmt.Errorf("%w: %q", ErrWriteRejected, d.Name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Connected {
		return ErrNotConnected
	}

	var err error
	if d.Kind == regmap.KindCoil {
		var on bool
		on, err = codec.Truthy(value)
		if err != nil {
			return err
		}
		err = e.tr.WriteBit(d.Address, on)
	} else {
		var words []uint16
		words, err = codec.Encode(value, d.Datatype, d.ByteOrder, d.Scale)
		if err != nil {
			return err
		}
		if len(words) == 1 {
			err = e.tr.WriteWord(d.Address, words[0])
		} else {
			err = e.tr.WriteWords(d.Address, words)
		}
	}

	if transport.IsConnection(err) {
		e.state = Disconnected
	}
	return err
}

// Stop signals the poll loop to exit. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Disconnect closes the transport. Idempotent, callable in any state.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.tr.Close(); err != nil {
		e.log.Debug("transport close", zap.Error(err))
	}
	e.state = Disconnected
}

// Status returns the counters and connection flag.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Connected:  e.state == Connected,
		PollCount:  e.pollCount,
		ErrorCount: e.errorCount,
	}
}

// State returns the current connection state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
