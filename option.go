package envproxy

import (
	"io"
	"log/slog"
)

// Option configures an Interceptor built by NewInterceptor or Install.
type Option func(*options)

// options holds configuration applied via Option functions.
type options struct {
	logger  *slog.Logger
	ctors   *AgentConstructors
	factory *AgentFactory
}

// WithLogger sets the structured logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithAgentConstructors replaces the functions used to build agents.
// Nil fields fall back to the agent package constructors.
// It is ignored when WithFactory is also given.
func WithAgentConstructors(ctors AgentConstructors) Option {
	return func(o *options) {
		o.ctors = &ctors
	}
}

// WithFactory shares an existing AgentFactory, and therefore its cache,
// between interceptors.
func WithFactory(f *AgentFactory) Option {
	return func(o *options) {
		o.factory = f
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.factory == nil {
		var ctors AgentConstructors
		if o.ctors != nil {
			ctors = *o.ctors
		}
		o.factory = NewAgentFactory(ctors)
	}
	return o
}
