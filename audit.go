package goSession

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/audit"
)

// AuditEvent is one session lifecycle record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the relay goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

type (
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZapSink        = audit.ZapSink
)

var (
	NewChannelSink    = audit.NewChannelSink
	NewJSONWriterSink = audit.NewJSONWriterSink
	NewZapSink        = audit.NewZapSink
)

// AuditKind names a session lifecycle event.
type AuditKind = audit.Kind

const (
	auditEventLoginSuccess    = audit.KindLoginSuccess
	auditEventLoginFailure    = audit.KindLoginFailure
	auditEventLogout          = audit.KindLogout
	auditEventRegisterSuccess = audit.KindRegisterSuccess
	auditEventRegisterFailure = audit.KindRegisterFailure
	auditEventRefreshSuccess  = audit.KindRefreshSuccess
	auditEventRefreshFailure  = audit.KindRefreshFailure
	auditEventRefreshRejected = audit.KindRefreshRejected
	auditEventSessionExpired  = audit.KindSessionExpired
	auditEventGuardDenied     = audit.KindGuardDenied
	auditEventGuardForbidden  = audit.KindGuardForbidden
	auditEventStorageFailure  = audit.KindStorageFailure
)

// auditCriticalWait bounds how long a session-ending event waits for relay
// buffer space before it is dropped.
const auditCriticalWait = 250 * time.Millisecond

// AuditErrorCode is the stable error label written to [AuditEvent].Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRejected           AuditErrorCode = "rejected"
	auditErrNoRefreshToken     AuditErrorCode = "no_refresh_token"
	auditErrNetwork            AuditErrorCode = "network_failure"
	auditErrUnavailable        AuditErrorCode = "storage_unavailable"
	auditErrDecode             AuditErrorCode = "decode_failure"
	auditErrCanceled           AuditErrorCode = "canceled"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrNoRefreshToken):
		return auditErrNoRefreshToken
	case errors.Is(err, ErrStorageUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrNetworkFailure):
		return auditErrNetwork
	case errors.Is(err, ErrDecode):
		return auditErrDecode
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	case errors.Is(err, ErrAuthRejected), errors.Is(err, identity.ErrRejected):
		return auditErrRejected
	default:
		return auditErrInternal
	}
}

func (in *instruments) emitAudit(
	ctx context.Context,
	kind AuditKind,
	success bool,
	subject string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if in == nil || in.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Kind:     kind,
		Subject:  subject,
		Success:  success,
		Metadata: metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	in.audit.Emit(ctx, event)
}
