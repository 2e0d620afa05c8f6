package otel

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	goSession "github.com/MrEthical07/goSession"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goSession.MetricsSnapshot
	dropped  map[goSession.AuditKind]uint64
}

func (f *fakeSource) MetricsSnapshot() goSession.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goSession.MetricsSnapshot{
		Counters:   make(map[goSession.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goSession.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDroppedByKind() map[goSession.AuditKind]uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[goSession.AuditKind]uint64, len(f.dropped))
	for k, v := range f.dropped {
		out[k] = v
	}
	return out
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// collect flattens every int64 point into "name|key=value" entries. Points
// without attributes are keyed by name alone.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	got := map[string]int64{}
	add := func(name string, dp metricdata.DataPoint[int64]) {
		key := name
		for _, kv := range dp.Attributes.ToSlice() {
			key += "|" + string(kv.Key) + "=" + kv.Value.Emit()
		}
		got[key] = dp.Value
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					add(m.Name, dp)
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					add(m.Name, dp)
				}
			}
		}
	}
	return got
}

func TestExporterGroupsSessionCounters(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:        3,
				goSession.MetricRefreshSuccess:      5,
				goSession.MetricRefreshRejected:     1,
				goSession.MetricRefreshShared:       4,
				goSession.MetricRetryWithoutRefresh: 2,
				goSession.MetricLogout:              3,
				goSession.MetricSessionExpired:      1,
				goSession.MetricRequestExempt:       7,
				goSession.MetricStorageFailure:      6,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricRefreshLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: map[goSession.AuditKind]uint64{"session_expired": 2},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	got := collect(t, reader)
	want := map[string]int64{
		"gosession.login.attempts|gosession.outcome=success":           3,
		"gosession.login.attempts|gosession.outcome=failure":           0,
		"gosession.refresh.attempts|gosession.outcome=success":         5,
		"gosession.refresh.attempts|gosession.outcome=rejected":        1,
		"gosession.refresh.avoided|gosession.reason=shared":            4,
		"gosession.refresh.avoided|gosession.reason=already_rotated":   2,
		"gosession.session.ends|gosession.reason=logout":               3,
		"gosession.session.ends|gosession.reason=expired":              1,
		"gosession.requests|gosession.auth=exempt":                     7,
		"gosession.store.failures":                                     6,
		"gosession.refresh.latency.bucket|le=0.025":                    1,
		"gosession.refresh.latency.bucket|le=2.5":                      7,
		"gosession.refresh.latency.bucket|le=+Inf":                     8,
		"gosession.refresh.latency.count":                              8,
		"gosession.audit.dropped|gosession.audit.kind=session_expired": 2,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %d, want %d", k, got[k], v)
		}
		if _, ok := got[k]; !ok {
			t.Errorf("%s not reported", k)
		}
	}
}

func TestExporterEveryCounterHasASeries(t *testing.T) {
	seen := map[goSession.MetricID]bool{}
	for _, def := range sessionInstruments {
		for _, s := range def.series {
			if seen[s.id] {
				t.Fatalf("metric %d mapped twice", s.id)
			}
			seen[s.id] = true
		}
	}
	for id := goSession.MetricLoginSuccess; id < goSession.MetricRefreshLatency; id++ {
		if !seen[id] {
			t.Fatalf("metric %d has no instrument", id)
		}
	}
}

func TestExporterReadsClient(t *testing.T) {
	reader, provider := newReader(t)

	c, err := goSession.New().Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	exp, err := NewOTelExporter(provider.Meter("gosession-test"), c)
	if err != nil {
		t.Fatalf("NewOTelExporter failed: %v", err)
	}
	defer exp.Close()

	if d := c.Guard().CanActivate(context.Background(), "home"); d.Allowed {
		t.Fatal("expected a denial without a session")
	}
	if got := collect(t, reader)["gosession.guard.decisions|gosession.decision=denied"]; got != 1 {
		t.Fatalf("denied decisions = %d, want 1", got)
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	_, provider := newReader(t)
	meter := provider.Meter("gosession-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
	if _, err := NewOTelExporter(meter, nil); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err == nil {
		t.Fatal("expected error for nil meter")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess: 1,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricRefreshLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goSession.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
