package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind names a session lifecycle event.
type Kind string

// Session event kinds.
const (
	KindLoginSuccess    Kind = "login_success"
	KindLoginFailure    Kind = "login_failure"
	KindLogout          Kind = "logout"
	KindRegisterSuccess Kind = "register_success"
	KindRegisterFailure Kind = "register_failure"
	KindRefreshSuccess  Kind = "refresh_success"
	KindRefreshFailure  Kind = "refresh_failure"
	KindRefreshRejected Kind = "refresh_rejected"
	KindSessionExpired  Kind = "session_expired"
	KindGuardDenied     Kind = "guard_denied"
	KindGuardForbidden  Kind = "guard_forbidden"
	KindStorageFailure  Kind = "storage_failure"
)

// Critical reports whether k records the end or loss of a session. The relay
// waits briefly for buffer space before dropping these.
func (k Kind) Critical() bool {
	switch k {
	case KindRefreshRejected, KindSessionExpired, KindStorageFailure:
		return true
	}
	return false
}

// Event is one session lifecycle record. The relay fills Timestamp and
// RequestID when the emitter leaves them empty.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      Kind              `json:"kind"`
	Subject   string            `json:"subject,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

// Emit discards event.
func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink returns a sink holding up to buffer undelivered events.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

// Emit blocks until event is buffered or ctx is done.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events is the channel tests and UI loops read from.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink writes to w. Writes are serialized.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit writes event as one JSON line. Encoding errors drop the event.
func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// ZapSink writes each event as one structured log entry. Failed events are
// logged at warn, the rest at info.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink logs through l under the "audit" name.
func NewZapSink(l *zap.Logger) *ZapSink {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapSink{logger: l.Named("audit")}
}

// Emit logs event with the kind as the message.
func (s *ZapSink) Emit(_ context.Context, event Event) {
	fields := make([]zap.Field, 0, 6+len(event.Metadata))
	fields = append(fields,
		zap.Time("timestamp", event.Timestamp),
		zap.Bool("success", event.Success),
	)
	if event.Subject != "" {
		fields = append(fields, zap.String("subject", event.Subject))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.String("meta."+k, v))
	}
	if event.Success {
		s.logger.Info(string(event.Kind), fields...)
		return
	}
	s.logger.Warn(string(event.Kind), fields...)
}
