package nodebook

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gnowledge/nodeBook-sub003/internal/platform"
	"github.com/gnowledge/nodeBook-sub003/pkg/core"
	"github.com/gnowledge/nodeBook-sub003/pkg/session"
)

// --- Types ---

// Backend groups the collaborator ports an adapter provides.
type Backend = platform.Backend

// Config is the client configuration file.
type Config = platform.Config

// Loader loads configuration with layered precedence.
type Loader = platform.Loader

// --- Configuration ---

// Option defines a functional option for configuring nodebook.
type Option = platform.Option

// Adapter names accepted by WithAdapter.
const (
	AdapterFS   = platform.AdapterFS
	AdapterHTTP = platform.AdapterHTTP
)

// WithAdapter selects the collaborator by name.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithSource injects a custom collaborator.
func WithSource(src core.GraphSource) Option {
	return platform.WithSource(src)
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRegisterer exports session metrics through reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return platform.WithRegisterer(reg)
}

// WithEventBuffer sets the capacity of the session event channel.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithAutoInit creates the graph directory (and git repository) when missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithVersioning enables or disables git commits of the fs adapter.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithMustExist requires the graph directory to exist already.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the temporary sandbox used under `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithSystemDir names the per-user directory holding catalog and preferences.
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithWatcherErrorHandler receives runtime failures of the fs watcher.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// WithToken sets the bearer token of the http adapter.
func WithToken(token string) Option {
	return platform.WithToken(token)
}

// WithTimeout sets the request timeout of the http adapter.
func WithTimeout(d time.Duration) Option {
	return platform.WithTimeout(d)
}

// --- Factory ---

// Init opens a collaborator. The uri is a directory for the fs adapter and a
// base URL for the http adapter.
func Init(ctx context.Context, uri string, opts ...Option) (*Backend, error) {
	return platform.Init(ctx, uri, opts...)
}

// NewSession opens a collaborator and starts a session for user on it.
func NewSession(ctx context.Context, uri, user string, opts ...Option) (*session.Manager, *Backend, error) {
	return platform.NewSession(ctx, uri, user, opts...)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return platform.DefaultConfig()
}

// NewLoader creates a configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	return platform.NewLoader(logger)
}

// --- Safety & Utils ---

// ResolvePath determines the directory the fs adapter uses based on safety rules.
func ResolvePath(userPath string, forceTemp bool) string {
	return platform.ResolvePath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot looks upwards for a nodebook project root.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
