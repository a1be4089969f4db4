package rtkernel

import (
	"github.com/geseq/rtkernel/pkg/trace"
	"github.com/rs/zerolog"
)

type Option func(*System)

type options []Option

func (l options) applyTo(s *System) {
	for _, opt := range l {
		opt(s)
	}
}

// defaultOpts provides list of options
var defaultOpts = []Option{
	WithLogger(zerolog.Nop()),
	WithChecks(false),
	WithStackFill(false),
	WithTraceBuffer(128),
	WithTraceMask(trace.MaskNone),
}

// WithLogger sets the kernel logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *System) { s.logger = l }
}

// WithChecks enables the debug checks: lock state of I-class calls and
// sizes of objects returned to pools
func WithChecks(b bool) Option {
	return func(s *System) { s.checks = b }
}

// WithStackFill enables filling of thread working areas with StackFillValue
func WithStackFill(b bool) Option {
	return func(s *System) { s.fill = b }
}

// WithTraceBuffer sets the trace buffer size, zero disables tracing
func WithTraceBuffer(size uint64) Option {
	return func(s *System) { s.traceSize = size }
}

// WithTraceMask sets the initially suspended trace record types
func WithTraceMask(m trace.Mask) Option {
	return func(s *System) { s.traceMask = m }
}
