// Package engine implements tool dispatch for the Otto runtime: request
// routing, grouped concurrency, and typed event emission.
package engine

import (
	"runtime"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/otto-ai/otto/internal/events"
	"github.com/otto-ai/otto/internal/logging"
	"github.com/otto-ai/otto/internal/tools"
)

// Options configures an Engine.
type Options struct {
	// Registry supplies tool implementations. Required.
	Registry *tools.Registry

	// Bus receives execution events. A nil bus gets a private one so
	// emission never branches.
	Bus *events.Bus

	// Logger for dispatch diagnostics. Nil discards.
	Logger *log.Logger

	// MaxConcurrency bounds goroutines inside one concurrent group.
	// 0 means 4 x GOMAXPROCS, clamped to [4, 32].
	MaxConcurrency int
}

// Engine routes tool requests to implementations and fans batches out
// across goroutines. Dispatch failures are captured in results, never
// returned as errors, so one bad call cannot abort a batch.
type Engine struct {
	registry *tools.Registry
	bus      *events.Bus
	logger   *log.Logger
	stats    *Collector
	tracer   trace.Tracer
	limit    int
}

// New creates an Engine from opts.
func New(opts Options) *Engine {
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(opts.Logger)
	}

	limit := opts.MaxConcurrency
	if limit <= 0 {
		limit = defaultConcurrency()
	}

	return &Engine{
		registry: opts.Registry,
		bus:      bus,
		logger:   logging.Or(opts.Logger),
		stats:    NewCollector(),
		tracer:   otel.Tracer("otto/engine"),
		limit:    limit,
	}
}

// Bus returns the engine's event bus.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Registry returns the engine's tool registry.
func (e *Engine) Registry() *tools.Registry {
	return e.registry
}

// Stats returns a snapshot of dispatch metrics.
func (e *Engine) Stats() *Snapshot {
	return e.stats.Snapshot()
}

func defaultConcurrency() int {
	n := runtime.GOMAXPROCS(0) * 4
	if n < 4 {
		n = 4
	}
	if n > 32 {
		n = 32
	}
	return n
}
