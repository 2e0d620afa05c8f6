package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	goSession "github.com/MrEthical07/goSession"
)

type fakeSource struct {
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goSession.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func TestCollectorReportsZeroWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	})

	expected := `
# HELP gosession_login_success_total Successful logins.
# TYPE gosession_login_success_total counter
gosession_login_success_total 0
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "gosession_login_success_total"); err != nil {
		t.Fatalf("unexpected collect output: %v", err)
	}
}

func TestCollectorIncludesCounterAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricRefreshShared: 7,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricRefreshLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	expected := `
# HELP gosession_refresh_shared_total 401s that joined a refresh already in flight.
# TYPE gosession_refresh_shared_total counter
gosession_refresh_shared_total 7
# HELP gosession_audit_dropped_total Audit events lost to relay backpressure.
# TYPE gosession_audit_dropped_total counter
gosession_audit_dropped_total 2
# HELP gosession_refresh_latency_seconds Refresh round-trip latency.
# TYPE gosession_refresh_latency_seconds histogram
gosession_refresh_latency_seconds_bucket{le="0.025"} 1
gosession_refresh_latency_seconds_bucket{le="0.05"} 3
gosession_refresh_latency_seconds_bucket{le="0.1"} 6
gosession_refresh_latency_seconds_bucket{le="0.25"} 10
gosession_refresh_latency_seconds_bucket{le="0.5"} 15
gosession_refresh_latency_seconds_bucket{le="1"} 21
gosession_refresh_latency_seconds_bucket{le="2.5"} 28
gosession_refresh_latency_seconds_bucket{le="+Inf"} 36
gosession_refresh_latency_seconds_sum 0
gosession_refresh_latency_seconds_count 36
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"gosession_refresh_shared_total",
		"gosession_audit_dropped_total",
		"gosession_refresh_latency_seconds",
	)
	if err != nil {
		t.Fatalf("unexpected collect output: %v", err)
	}
}

func TestCollectorDescribesEverySeries(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	})
	// 20 counters, one histogram, audit dropped.
	if got := testutil.CollectAndCount(c); got != 22 {
		t.Fatalf("expected 22 series, got %d", got)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{goSession.MetricLoginSuccess: 1},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(c).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "gosession_login_success_total 1") {
		t.Fatalf("expected login_success in body, got:\n%s", body)
	}
}
