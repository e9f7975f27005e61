package broadcast

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/uell/livelink/internal/broadcast"

type metrics struct {
	ticks    metric.Int64Counter
	frames   metric.Int64Counter
	skipped  metric.Int64Counter
	bytes    metric.Int64Counter
	sessions metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{}

	var err error
	if out.ticks, err = m.Int64Counter("broadcast.ticks",
		metric.WithDescription("Passes over the tracked set")); err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	if out.frames, err = m.Int64Counter("broadcast.frames.sent",
		metric.WithDescription("Entity samples written to the peer")); err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}
	if out.skipped, err = m.Int64Counter("broadcast.entities.skipped",
		metric.WithDescription("Entities skipped because they could not be sampled")); err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}
	if out.bytes, err = m.Int64Counter("broadcast.bytes.sent",
		metric.WithDescription("Bytes written to the peer"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("creating bytes counter: %w", err)
	}
	if out.sessions, err = m.Int64Counter("broadcast.sessions",
		metric.WithDescription("Accepted peer connections")); err != nil {
		return nil, fmt.Errorf("creating sessions counter: %w", err)
	}
	return out, nil
}
