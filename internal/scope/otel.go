package scope

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ivlev/vectorscope/internal/scope"

type metrics struct {
	draws     metric.Int64Counter
	dropped   metric.Int64Counter
	rejected  metric.Int64Counter
	coalesced metric.Int64Counter
}

// newMetrics creates the scheduler counters on the global meter (no-op if not configured).
func newMetrics() (metrics, error) {
	m := otel.Meter(instrumentationName)

	var (
		ms  metrics
		err error
	)
	ms.draws, err = m.Int64Counter("scope.draws",
		metric.WithDescription("Draws submitted"))
	if err != nil {
		return ms, fmt.Errorf("creating draws counter: %w", err)
	}
	ms.dropped, err = m.Int64Counter("scope.frames.dropped",
		metric.WithDescription("Frames replaced by a newer frame before being drawn"))
	if err != nil {
		return ms, fmt.Errorf("creating dropped counter: %w", err)
	}
	ms.rejected, err = m.Int64Counter("scope.frames.rejected",
		metric.WithDescription("Frames that failed to bind"))
	if err != nil {
		return ms, fmt.Errorf("creating rejected counter: %w", err)
	}
	ms.coalesced, err = m.Int64Counter("scope.triggers.coalesced",
		metric.WithDescription("Triggers folded into a pending draw"))
	if err != nil {
		return ms, fmt.Errorf("creating coalesced counter: %w", err)
	}
	return ms, nil
}
