package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrQueueFull      = errors.New("queue full")
	ErrClosed         = errors.New("dispatcher closed")
)

// Event is one command line received from the host bridge.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// Arg returns the i-th argument or "" when absent.
func (e Event) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
	lane       string
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Lane puts a buffered handler on a named queue. Handlers sharing a lane
// share one worker, so their events run in dispatch order. The first
// registration on a lane sets its size.
func Lane(name string) Option {
	return func(c *config) {
		c.lane = name
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger Logger

	metrics *metrics

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	buffers  map[string]chan queued
	workers  sync.WaitGroup
	quit     chan struct{}
	closed   bool
}

// New creates a Dispatcher. Metrics go to the global OTel meter, which is a
// no-op unless a provider was installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan queued),
		quit:     make(chan struct{}),
		logger:   logger,
	}
	if d.logger == nil {
		d.logger = nopLogger{}
	}

	m, err := newMetrics(d.queueDepths)
	if err != nil {
		return nil, err
	}
	d.metrics = m

	return d, nil
}

// queueDepths reports the length of every lane queue.
func (d *Dispatcher) queueDepths(observe func(lane string, depth int)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for lane, buf := range d.buffers {
		observe(lane, len(buf))
	}
}

// Register adds a handler for the given command with optional configuration.
// Registering a command twice replaces the earlier handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(command, h)

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(command, cfg, handler)
	}

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered commands, sorted.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	slices.Sort(out)
	return out
}

// Close stops accepting events and waits for queued events to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.quit)
	d.mu.Unlock()
	d.workers.Wait()
}

// queued is one event waiting on a lane with the handler it was sent to.
type queued struct {
	e Event
	h HandlerFunc
}

func (d *Dispatcher) withBuffer(command string, cfg *config, h HandlerFunc) HandlerFunc {
	lane := cfg.lane
	if lane == "" {
		lane = command
	}

	d.mu.Lock()
	buffer, ok := d.buffers[lane]
	if !ok {
		buffer = make(chan queued, cfg.bufferSize)
		d.buffers[lane] = buffer
		d.workers.Add(1)
		go d.drain(lane, buffer)
	}
	d.mu.Unlock()

	cmdAttr := attribute.String("command", command)

	if cfg.blocking {
		return func(e Event) (any, error) {
			select {
			case <-d.quit:
				return nil, ErrClosed
			default:
			}
			select {
			case buffer <- queued{e, h}:
				return "queued", nil
			case <-d.quit:
				return nil, ErrClosed
			}
		}
	}

	return func(e Event) (any, error) {
		select {
		case <-d.quit:
			return nil, ErrClosed
		case buffer <- queued{e, h}:
			return "queued", nil
		default:
			d.metrics.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

// drain runs a lane's events until Close, then empties the queue.
func (d *Dispatcher) drain(lane string, buffer chan queued) {
	defer d.workers.Done()
	run := func(q queued) {
		if _, err := q.h(q.e); err != nil {
			d.logger.Error("queued command failed", "lane", lane, "command", q.e.Command, "error", err)
		}
	}
	for {
		select {
		case q := <-buffer:
			run(q)
		case <-d.quit:
			for len(buffer) > 0 {
				run(<-buffer)
			}
			return
		}
	}
}

func (d *Dispatcher) withMetrics(command string, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(attribute.String("command", command))
	return func(e Event) (any, error) {
		result, err := h(e)
		d.metrics.processed.Add(context.Background(), 1, attrs)
		if err != nil {
			d.metrics.failed.Add(context.Background(), 1, attrs)
		}
		return result, err
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling command", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("command failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
