package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter exporters publish, in exposition order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed logins."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logouts."},
	{ID: goSession.MetricRegisterSuccess, Name: "gosession_register_success_total", Help: "Successful registrations."},
	{ID: goSession.MetricRegisterFailure, Name: "gosession_register_failure_total", Help: "Failed registrations."},
	{ID: goSession.MetricRequestAuthenticated, Name: "gosession_request_authenticated_total", Help: "Requests sent with a bearer token."},
	{ID: goSession.MetricRequestAnonymous, Name: "gosession_request_anonymous_total", Help: "Non-exempt requests sent without a token."},
	{ID: goSession.MetricRequestExempt, Name: "gosession_request_exempt_total", Help: "Requests marked no-auth."},
	{ID: goSession.MetricUnauthorizedResponse, Name: "gosession_unauthorized_response_total", Help: "401 responses to authenticated requests."},
	{ID: goSession.MetricRetryWithoutRefresh, Name: "gosession_retry_without_refresh_total", Help: "401s retried with a token rotated by another request."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful token refreshes."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Refreshes that failed without a server verdict."},
	{ID: goSession.MetricRefreshRejected, Name: "gosession_refresh_rejected_total", Help: "Refreshes rejected by the identity service."},
	{ID: goSession.MetricRefreshShared, Name: "gosession_refresh_shared_total", Help: "401s that joined a refresh already in flight."},
	{ID: goSession.MetricSessionExpired, Name: "gosession_session_expired_total", Help: "Sessions ended by a terminal refresh rejection."},
	{ID: goSession.MetricGuardAllowed, Name: "gosession_guard_allowed_total", Help: "Navigations allowed by the guard."},
	{ID: goSession.MetricGuardDenied, Name: "gosession_guard_denied_total", Help: "Navigations denied for lack of a session."},
	{ID: goSession.MetricGuardForbidden, Name: "gosession_guard_forbidden_total", Help: "Navigations denied by a role requirement."},
	{ID: goSession.MetricStorageFailure, Name: "gosession_storage_failure_total", Help: "Token store operations that failed."},
	{ID: goSession.MetricDecodeFailure, Name: "gosession_decode_failure_total", Help: "Access tokens that could not be decoded."},
}

// HistogramDefs lists every histogram exporters publish.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRefreshLatency, Name: "gosession_refresh_latency_seconds", Help: "Refresh round-trip latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// AuditDroppedName is the counter of audit events dropped under backpressure.
const AuditDroppedName = "gosession_audit_dropped_total"

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
