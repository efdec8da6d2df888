package simtable

import (
	"log/slog"

	"github.com/hupe1980/simtable/codec"
	"github.com/hupe1980/simtable/distance"
	"github.com/hupe1980/simtable/persistence"
	"github.com/hupe1980/simtable/resource"
)

type options struct {
	metric      distance.Metric
	parallelism int
	codec       codec.Codec
	logger      *Logger
	resources   *resource.Controller
	snapshotFns []func(*persistence.Options)
}

// Option configures Indexer behavior.
type Option func(*options)

// WithMetric configures the distance metric of the retrieval index.
//
// Defaults to MetricL2.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithParallelism caps concurrent queries during batch lookups and
// evaluation. Values <= 0 fall back to GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithCodec configures the codec used for the snapshot manifest.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := simtable.NewJSONLogger(slog.LevelInfo)
//	ix, _ := simtable.New(simtable.WithLogger(logger))
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

// WithResources configures background-worker and IO limits, applied to
// snapshot save/load.
func WithResources(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = resource.NewController(cfg)
	}
}

// WithSnapshotOptions customizes snapshot persistence, e.g. compression:
//
//	simtable.New(simtable.WithSnapshotOptions(func(o *persistence.Options) {
//	    o.EmbeddingCompression = persistence.CompressionNone
//	}))
func WithSnapshotOptions(optFns ...func(*persistence.Options)) Option {
	return func(o *options) {
		o.snapshotFns = append(o.snapshotFns, optFns...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metric: distance.MetricL2,
		logger: NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.codec == nil {
		o.codec = codec.Default
	}
	return o
}
