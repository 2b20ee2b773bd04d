package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink receives emitted events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}

// ZapSink logs events as structured lines. Critical and high events log at
// error and warn level respectively; the rest at info.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("security")}
}

func (s *ZapSink) Emit(_ context.Context, event Event) {
	level := zapcore.InfoLevel
	switch event.Severity {
	case SeverityCritical:
		level = zapcore.ErrorLevel
	case SeverityHigh:
		level = zapcore.WarnLevel
	}

	ce := s.logger.Check(level, event.Type)
	if ce == nil {
		return
	}
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("severity", string(event.Severity)),
		zap.Int("confidence", event.Confidence),
		zap.Time("at", event.Timestamp),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.Details != "" {
		fields = append(fields, zap.String("details", event.Details))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	ce.Write(fields...)
}

// Appender persists events durably.
type Appender interface {
	AppendSecurityEvent(ctx context.Context, event Event) error
}

// StoreSink forwards events to an Appender. Append failures are logged and
// otherwise discarded.
type StoreSink struct {
	store  Appender
	logger *zap.Logger
}

func NewStoreSink(store Appender, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{store: store, logger: logger}
}

func (s *StoreSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.AppendSecurityEvent(ctx, event); err != nil {
		s.logger.Warn("security event append failed",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}

// MultiSink fans an event out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
