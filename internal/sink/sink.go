// internal/sink/sink.go

// Package sink receives decoded, scaled register values, one emission per
// group per poll cycle.
package sink

import "go.uber.org/zap"

// Sink is the engine's sole output contract.
type Sink interface {
	Emit(group string, values map[string]any)
	Close() error
}

// Log writes emissions to a structured logger.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

func (s *Log) Emit(group string, values map[string]any) {
	s.log.Info("poll values", zap.String("group", group), zap.Any("values", values))
}

func (s *Log) Close() error {
	return nil
}

// Multi fans one emission out to several sinks.
type Multi []Sink

func (m Multi) Emit(group string, values map[string]any) {
	for _, s := range m {
		s.Emit(group, values)
	}
}

func (m Multi) Close() error {
	var last error
	for _, s := range m {
		if err := s.Close(); err != nil {
			last = err
		}
	}
	return last
}
