package session

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultEventBuffer is the capacity of the Events channel.
const DefaultEventBuffer = 64

type options struct {
	logger      *slog.Logger
	eventBuffer int
	registerer  prometheus.Registerer
}

// Option configures a Manager.
type Option func(*options)

// WithLogger overrides the logger of the session context.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventBuffer sets the capacity of the Events channel.
func WithEventBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}

// WithRegisterer registers the session metrics with reg.
// Without it metrics are collected but not exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}
