// internal/engine/run.go
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zeloscloud/zelos-extension-modbus/internal/transport"
)

// Run drives the poll loop until Stop is called or ctx is canceled. No
// read failure terminates the loop: connection errors trigger an
// immediate reconnect, everything else is counted and skipped.
func (e *Engine) Run(ctx context.Context) error {
	defer e.Disconnect()

	for {
		select {
		case <-e.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := e.ensureConnected(); err != nil {
			e.log.Warn("connect failed",
				zap.Duration("retry_in", e.reconnectInterval),
				zap.Error(err))
			e.sleep(ctx, e.reconnectInterval)
			continue
		}

		if connLost := e.pollCycle(); connLost {
			// Skip the inter-cycle sleep; the next iteration retries
			// the connection without delay.
			continue
		}

		e.sleep(ctx, e.pollInterval)
	}
}

// pollCycle runs one pass over every group, emitting one event per group.
// It reports whether a connection-class failure aborted the cycle.
func (e *Engine) pollCycle() bool {
	e.mu.Lock()
	e.pollCount++
	e.mu.Unlock()

	for _, g := range e.m.Groups() {
		values := make(map[string]any, len(g.Registers))

		for i := range g.Registers {
			d := &g.Registers[i]
			v, err := e.read(d)
			if err == nil {
				values[d.Name] = v
				continue
			}

			if transport.IsConnection(err) {
				e.log.Warn("connection lost",
					zap.String("register", d.Name),
					zap.Error(err))
				return true
			}

			// Protocol or codec failure: the value is omitted from this
			// cycle's emission, the rest of the cycle continues.
			e.mu.Lock()
			e.errorCount++
			e.mu.Unlock()
			e.log.Warn("read failed",
				zap.String("register", d.Name),
				zap.Error(err))
		}

		if len(values) > 0 {
			e.out.Emit(g.Name, values)
		}
	}
	return false
}

// sleep waits for d, returning early when the engine is stopped or ctx
// is canceled.
func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-e.stop:
	case <-ctx.Done():
	case <-t.C:
	}
}
