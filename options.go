package lexgo

import (
	"golang.org/x/time/rate"

	"github.com/hupe1980/lexgo/analysis"
	"github.com/hupe1980/lexgo/codec"
	"github.com/hupe1980/lexgo/engine"
)

type options struct {
	analyzer    analysis.Analyzer
	codec       codec.Codec
	logger      *Logger
	metrics     MetricsCollector
	mergePolicy engine.MergePolicy
	mergeRate   *rate.Limiter
}

// Option configures Index open behavior.
type Option func(*options)

// WithAnalyzer configures the analyzer used for all indexed fields.
//
// If nil is passed, the standard analyzer is used.
func WithAnalyzer(a analysis.Analyzer) Option {
	return func(o *options) {
		if a == nil {
			a = analysis.NewStandard()
		}
		o.analyzer = a
	}
}

// WithCodec configures the codec used for compressed segment sections.
//
// If nil is passed, codec.Default is used. The codec only affects new
// segments; existing segments decode with the codec named in their
// header.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging. Defaults to no logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures operational metrics collection.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithMergePolicy overrides the default tiered merge policy.
func WithMergePolicy(p engine.MergePolicy) Option {
	return func(o *options) {
		o.mergePolicy = p
	}
}

// WithMergeThrottle caps background merge write throughput at the
// given number of bytes per second, keeping merges from starving
// foreground commits and searches of I/O bandwidth.
func WithMergeThrottle(bytesPerSecond int) Option {
	return func(o *options) {
		if bytesPerSecond > 0 {
			o.mergeRate = rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond)
		}
	}
}
