package segkit

import (
	"log/slog"

	"github.com/hupe1980/segkit/registry"
)

// DefaultMaxProxyHops bounds ResolveChain unless WithMaxProxyHops is set.
const DefaultMaxProxyHops = 8

type options struct {
	logger           *Logger
	registry         *registry.Registry
	metricsCollector MetricsCollector
	maxProxyHops     int
}

// Option configures an Engine.
type Option func(*options)

// WithLogger configures structured logging. Pass nil to disable logging.
//
//	logger := segkit.NewJSONLogger(slog.LevelDebug)
//	eng := segkit.New(h, segkit.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithRegistry sets the type registry used to name tags in errors. Create
// registers every definition it formats there.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithMetricsCollector configures a metrics collector. Pass nil to disable
// metrics collection.
//
//	metrics := &segkit.BasicMetricsCollector{}
//	eng := segkit.New(h, segkit.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithMaxProxyHops bounds how many proxies ResolveChain follows.
func WithMaxProxyHops(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxProxyHops = n
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		maxProxyHops:     DefaultMaxProxyHops,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.registry == nil {
		o.registry = registry.New()
	}
	return o
}
