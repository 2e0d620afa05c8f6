package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when there is no client to read from.
	ErrNilSource = errors.New("nil metrics source")
)

// Attribute keys carried by the session instruments.
const (
	AttrOutcome  = attribute.Key("gosession.outcome")
	AttrAuth     = attribute.Key("gosession.auth")
	AttrReason   = attribute.Key("gosession.reason")
	AttrDecision = attribute.Key("gosession.decision")
	AttrKind     = attribute.Key("gosession.audit.kind")
	AttrLE       = attribute.Key("le")
)

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDroppedByKind() map[goSession.AuditKind]uint64
}

type seriesDef struct {
	id    goSession.MetricID
	attrs []attribute.KeyValue
}

type instrumentDef struct {
	name   string
	desc   string
	unit   string
	series []seriesDef
}

// sessionInstruments groups the client counters by what they say about the
// session. Each counter is one attribute set of one instrument.
var sessionInstruments = []instrumentDef{
	{
		name: "gosession.login.attempts", desc: "Login attempts by outcome.", unit: "{attempt}",
		series: []seriesDef{
			{goSession.MetricLoginSuccess, []attribute.KeyValue{AttrOutcome.String("success")}},
			{goSession.MetricLoginFailure, []attribute.KeyValue{AttrOutcome.String("failure")}},
		},
	},
	{
		name: "gosession.registrations", desc: "Registrations by outcome.", unit: "{registration}",
		series: []seriesDef{
			{goSession.MetricRegisterSuccess, []attribute.KeyValue{AttrOutcome.String("success")}},
			{goSession.MetricRegisterFailure, []attribute.KeyValue{AttrOutcome.String("failure")}},
		},
	},
	{
		name: "gosession.requests", desc: "Outgoing requests by how they were authenticated.", unit: "{request}",
		series: []seriesDef{
			{goSession.MetricRequestAuthenticated, []attribute.KeyValue{AttrAuth.String("bearer")}},
			{goSession.MetricRequestAnonymous, []attribute.KeyValue{AttrAuth.String("anonymous")}},
			{goSession.MetricRequestExempt, []attribute.KeyValue{AttrAuth.String("exempt")}},
		},
	},
	{
		name: "gosession.unauthorized_responses", desc: "401 responses to requests that carried a bearer token.", unit: "{response}",
		series: []seriesDef{{id: goSession.MetricUnauthorizedResponse}},
	},
	{
		name: "gosession.refresh.attempts", desc: "Refresh calls made to the identity service, by outcome.", unit: "{refresh}",
		series: []seriesDef{
			{goSession.MetricRefreshSuccess, []attribute.KeyValue{AttrOutcome.String("success")}},
			{goSession.MetricRefreshFailure, []attribute.KeyValue{AttrOutcome.String("failure")}},
			{goSession.MetricRefreshRejected, []attribute.KeyValue{AttrOutcome.String("rejected")}},
		},
	},
	{
		name: "gosession.refresh.avoided", desc: "401s recovered without a refresh call of their own.", unit: "{response}",
		series: []seriesDef{
			{goSession.MetricRefreshShared, []attribute.KeyValue{AttrReason.String("shared")}},
			{goSession.MetricRetryWithoutRefresh, []attribute.KeyValue{AttrReason.String("already_rotated")}},
		},
	},
	{
		name: "gosession.session.ends", desc: "Sessions ended, by reason.", unit: "{session}",
		series: []seriesDef{
			{goSession.MetricLogout, []attribute.KeyValue{AttrReason.String("logout")}},
			{goSession.MetricSessionExpired, []attribute.KeyValue{AttrReason.String("expired")}},
		},
	},
	{
		name: "gosession.guard.decisions", desc: "Navigation guard decisions.", unit: "{decision}",
		series: []seriesDef{
			{goSession.MetricGuardAllowed, []attribute.KeyValue{AttrDecision.String("allowed")}},
			{goSession.MetricGuardDenied, []attribute.KeyValue{AttrDecision.String("denied")}},
			{goSession.MetricGuardForbidden, []attribute.KeyValue{AttrDecision.String("forbidden")}},
		},
	},
	{
		name: "gosession.store.failures", desc: "Token store operations that failed.", unit: "{operation}",
		series: []seriesDef{{id: goSession.MetricStorageFailure}},
	},
	{
		name: "gosession.token.decode_failures", desc: "Stored access tokens that could not be decoded.", unit: "{token}",
		series: []seriesDef{{id: goSession.MetricDecodeFailure}},
	},
}

type observedSeries struct {
	id  goSession.MetricID
	opt metric.ObserveOption
}

type observedInstrument struct {
	instrument metric.Int64ObservableCounter
	series     []observedSeries
}

// OTelExporter keeps the callback registration alive until Close.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	instruments  []observedInstrument

	latencyBuckets metric.Int64ObservableGauge
	latencyCount   metric.Int64ObservableGauge
	bucketOpts     [8]metric.ObserveOption

	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments for client on meter.
func NewOTelExporter(meter metric.Meter, client *goSession.Client) (*OTelExporter, error) {
	if client == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, client)
}

// NewOTelExporterFromSource registers instruments for any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:      source,
		instruments: make([]observedInstrument, 0, len(sessionInstruments)),
	}
	observables := make([]metric.Observable, 0, len(sessionInstruments)+3)

	for _, def := range sessionInstruments {
		ins, err := meter.Int64ObservableCounter(def.name,
			metric.WithDescription(def.desc),
			metric.WithUnit(def.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.name, err)
		}
		oi := observedInstrument{instrument: ins, series: make([]observedSeries, 0, len(def.series))}
		for _, s := range def.series {
			oi.series = append(oi.series, observedSeries{id: s.id, opt: metric.WithAttributes(s.attrs...)})
		}
		e.instruments = append(e.instruments, oi)
		observables = append(observables, ins)
	}

	var err error
	e.latencyBuckets, err = meter.Int64ObservableGauge("gosession.refresh.latency.bucket",
		metric.WithDescription("Cumulative refresh round-trips at or under the le bound in seconds."),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create refresh latency buckets: %w", err)
	}
	e.latencyCount, err = meter.Int64ObservableGauge("gosession.refresh.latency.count",
		metric.WithDescription("Refresh round-trips timed."),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create refresh latency count: %w", err)
	}
	for i, bound := range internaldefs.HistogramUpperBounds {
		e.bucketOpts[i] = metric.WithAttributes(AttrLE.String(strconv.FormatFloat(bound, 'g', -1, 64)))
	}
	e.bucketOpts[len(e.bucketOpts)-1] = metric.WithAttributes(AttrLE.String("+Inf"))

	e.auditDropped, err = meter.Int64ObservableCounter("gosession.audit.dropped",
		metric.WithDescription("Audit events lost to relay backpressure, by event kind."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.latencyBuckets, e.latencyCount, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, ins := range e.instruments {
		for _, s := range ins.series {
			o.ObserveInt64(ins.instrument, int64(snapshot.Counters[s.id]), s.opt)
		}
	}

	cumulative := internaldefs.CumulativeBuckets(
		internaldefs.NormalizeBuckets(snapshot.Histograms[goSession.MetricRefreshLatency]),
	)
	for i, n := range cumulative {
		o.ObserveInt64(e.latencyBuckets, int64(n), e.bucketOpts[i])
	}
	o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))

	for kind, n := range e.source.AuditDroppedByKind() {
		o.ObserveInt64(e.auditDropped, int64(n), metric.WithAttributes(AttrKind.String(string(kind))))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
