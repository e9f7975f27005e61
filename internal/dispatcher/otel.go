package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/uell/livelink/internal/dispatcher"

type metrics struct {
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
	queueSize metric.Int64ObservableGauge
}

// newMetrics creates the command counters and a queue gauge fed by depths.
func newMetrics(depths func(observe func(lane string, depth int))) (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{}

	var err error
	if out.queueSize, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Bridge commands waiting in a handler queue")); err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		depths(func(lane string, depth int) {
			o.ObserveInt64(out.queueSize, int64(depth),
				metric.WithAttributes(attribute.String("lane", lane)))
		})
		return nil
	}, out.queueSize)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	if out.processed, err = m.Int64Counter("dispatcher.commands.processed",
		metric.WithDescription("Bridge commands handled")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if out.dropped, err = m.Int64Counter("dispatcher.commands.dropped",
		metric.WithDescription("Bridge commands dropped because a queue was full")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if out.failed, err = m.Int64Counter("dispatcher.commands.failed",
		metric.WithDescription("Bridge commands whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	return out, nil
}
