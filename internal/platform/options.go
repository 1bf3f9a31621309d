package platform

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

// Adapter names.
const (
	AdapterFS   = "fs"
	AdapterHTTP = "http"
)

// options holds the internal configuration for opening a backend.
type options struct {
	source      core.GraphSource
	logger      *slog.Logger
	adapter     string
	registerer  prometheus.Registerer
	eventBuffer int

	autoInit     bool
	gitless      *bool
	mustExist    bool
	forceTemp    bool
	devSafety    bool
	systemDir    string
	errorHandler func(error)

	token   string
	timeout time.Duration
}

// Option defines a functional option for configuring nodebook.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter:   AdapterFS,
		autoInit:  true,
		devSafety: true,
	}
}

// WithAdapter selects the collaborator by name ("fs" or "http").
// Defaults to "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithSource injects a collaborator (e.g. a mock). Adapter options are
// ignored when a source is given.
func WithSource(src core.GraphSource) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegisterer exports session metrics through reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithEventBuffer sets the capacity of the session event channel.
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.eventBuffer = size
	}
}

// WithAutoInit creates the fs root (and git repository) when missing.
// Enabled by default.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.autoInit = auto
	}
}

// WithVersioning enables or disables git commits in the fs adapter.
// When unset, versioning follows whether the root already is a git repository.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		gitless := !enabled
		o.gitless = &gitless
	}
}

// WithMustExist requires the fs root to exist already.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithForceTemp re-roots the fs adapter in a temporary directory.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox used under `go run` and `go test`:
// while enabled (the default) the fs adapter works in a temporary directory
// unless the path already lives there.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithSystemDir names the per-user directory holding catalog and preferences.
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.systemDir = name
	}
}

// WithWatcherErrorHandler receives runtime failures of the fs watcher.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

// WithToken sets the bearer token of the http adapter.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithTimeout sets the request timeout of the http adapter.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}
