package goSession

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/goSession/internal/audit"
)

// instruments bundles the logger, counters and audit relay shared by the
// transport, the guard and the client.
type instruments struct {
	logger  *zap.Logger
	metrics *Metrics
	audit   *audit.Relay
}

func newInstruments(logger *zap.Logger, metrics *Metrics, relay *audit.Relay) *instruments {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instruments{logger: logger, metrics: metrics, audit: relay}
}

func (in *instruments) log() *zap.Logger {
	if in == nil || in.logger == nil {
		return zap.NewNop()
	}
	return in.logger
}

func (in *instruments) metricInc(id MetricID) {
	if in == nil {
		return
	}
	in.metrics.Inc(id)
}

func (in *instruments) metricObserve(id MetricID, d time.Duration) {
	if in == nil {
		return
	}
	in.metrics.Observe(id, d)
}

func (in *instruments) storageFailed(ctx context.Context, op string, err error) {
	in.metricInc(MetricStorageFailure)
	in.log().Error("token store failure",
		zap.String("op", op),
		zap.String("request_id", requestIDFromContext(ctx)),
		zap.Error(err),
	)
	in.emitAudit(ctx, auditEventStorageFailure, false, "", err, func() map[string]string {
		return map[string]string{"op": op}
	})
}
