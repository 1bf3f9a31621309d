package platform

import (
	"context"
	"fmt"

	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/fs"
	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/httpclient"
	"github.com/gnowledge/nodeBook-sub003/pkg/core"
	"github.com/gnowledge/nodeBook-sub003/pkg/git"
	"github.com/gnowledge/nodeBook-sub003/pkg/session"
)

// Backend groups the collaborator ports an adapter provides.
type Backend struct {
	Source      core.GraphSource
	Preferences core.Preferences // nil when the source keeps no preferences
	Watcher     core.Watchable   // nil when the source cannot report changes
}

// Init opens the collaborator named by the adapter option. The uri is
// adapter-specific: a directory for "fs", a base URL for "http".
func Init(ctx context.Context, uri string, opts ...Option) (*Backend, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.source != nil {
		return backendFor(o.source), nil
	}

	switch o.adapter {
	case AdapterFS:
		repo, err := initFS(uri, o)
		if err != nil {
			return nil, err
		}
		if err := repo.Initialize(ctx); err != nil {
			return nil, err
		}
		return backendFor(repo), nil
	case AdapterHTTP:
		if uri == "" {
			return nil, fmt.Errorf("http adapter needs a base URL")
		}
		client := httpclient.New(uri,
			httpclient.WithToken(o.token),
			httpclient.WithTimeout(o.timeout),
			httpclient.WithLogger(o.logger),
		)
		return backendFor(client), nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

// NewSession opens the backend and starts a session for user on it.
func NewSession(ctx context.Context, uri, user string, opts ...Option) (*session.Manager, *Backend, error) {
	backend, err := Init(ctx, uri, opts...)
	if err != nil {
		return nil, nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	sc := core.SessionContext{UserID: user, Logger: o.logger}
	m := session.New(sc, backend.Source,
		session.WithEventBuffer(o.eventBuffer),
		session.WithRegisterer(o.registerer),
	)
	return m, backend, nil
}

func backendFor(src core.GraphSource) *Backend {
	b := &Backend{Source: src}
	if p, ok := src.(core.Preferences); ok {
		b.Preferences = p
	}
	if w, ok := src.(core.Watchable); ok {
		b.Watcher = w
	}
	return b
}

// initFS resolves the path and versioning mode of the filesystem adapter.
func initFS(path string, o *options) (*fs.Repository, error) {
	useTemp := o.forceTemp || (IsDevRun() && o.devSafety)
	resolved := ResolvePath(path, useTemp)
	if useTemp && o.logger != nil {
		o.logger.Warn("running in SAFE MODE (dev/test)", "original_path", path, "resolved_path", resolved)
	}

	systemDir := o.systemDir
	if systemDir == "" {
		systemDir = fs.DefaultSystemDir
	}

	// Without an explicit choice, an existing git repository keeps versioning
	// on and a plain directory stays gitless; a fresh root gets git.
	var gitless bool
	switch {
	case o.gitless != nil:
		gitless = *o.gitless
	case hasFile(resolved, ".git"):
		gitless = false
	case !git.IsInstalled() || hasFile(resolved, ".") || !o.autoInit:
		gitless = true
		if o.logger != nil {
			o.logger.Debug("auto-detected gitless mode", "reason", ".git missing")
		}
	}

	return fs.NewRepository(fs.Config{
		Path:         resolved,
		AutoInit:     o.autoInit,
		Gitless:      gitless,
		MustExist:    o.mustExist || (!o.autoInit && !useTemp),
		Logger:       o.logger,
		SystemDir:    systemDir,
		ErrorHandler: o.errorHandler,
	}), nil
}
