package devcom

import (
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"github.com/e5r/devcom/internal/config"
	"github.com/e5r/devcom/internal/download"
	"github.com/e5r/devcom/internal/environment"
	"github.com/e5r/devcom/internal/logging"
	"github.com/e5r/devcom/internal/platform"
	"github.com/e5r/devcom/internal/plugin"
	"github.com/e5r/devcom/internal/registry"
	"github.com/e5r/devcom/internal/resource"
	"github.com/e5r/devcom/internal/userdata"
)

// Session is the state of one CLI invocation.
type Session struct {
	Layout   userdata.Layout
	Store    *registry.Store
	Locks    *registry.LockVerifier
	Locator  *registry.Locator
	Resolver *resource.Resolver
	Fetcher  download.Fetcher
	Plugins  *plugin.Table
	Tools    platform.ToolSet
	Versions *environment.VersionStore
	Env      userdata.EnvWriter
	Logger   *log.Logger
	Out      io.Writer
}

// Options configure NewSession. Zero values fall back to the host.
type Options struct {
	Layout     *userdata.Layout
	Settings   config.Settings
	Tools      platform.ToolSet
	HTTPClient *http.Client
	Logger     *log.Logger
	Out        io.Writer
	// Progress receives download progress; nil disables it.
	Progress   io.Writer
}

// NewSession wires the registry, resolver and plugin table over the user
// root.
func NewSession(opts Options) (*Session, error) {
	var layout userdata.Layout
	if opts.Layout != nil {
		layout = *opts.Layout
	} else {
		l, err := userdata.NewLayout()
		if err != nil {
			return nil, err
		}
		layout = l
	}
	if err := layout.EnsureRoot(); err != nil {
		return nil, err
	}

	tools := opts.Tools
	if tools == nil {
		t, err := platform.Detect()
		if err != nil {
			return nil, err
		}
		tools = t
	}

	logger := logging.OrDiscard(opts.Logger)
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	clientOpts := []download.Option{download.WithLogger(logger)}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, download.WithHTTPClient(opts.HTTPClient))
	}
	clientOpts = append(clientOpts, download.WithTimeout(opts.Settings.HTTPTimeout))
	if opts.Progress != nil {
		clientOpts = append(clientOpts, download.WithProgress(opts.Progress))
	}
	fetcher := download.New(clientOpts...)

	store, err := registry.Open(layout.RegistryPath())
	if err != nil {
		return nil, err
	}
	locks := registry.NewLockVerifier(store, fetcher, layout.LockPath, logger)
	locator := &registry.Locator{Store: store, Locks: locks}

	plugins := plugin.NewTable()
	RegisterBuiltins(plugins)

	return &Session{
		Layout:  layout,
		Store:   store,
		Locks:   locks,
		Locator: locator,
		Resolver: resource.NewResolver(resource.Config{
			Layout:   layout,
			Locator:  locator,
			Fetcher:  fetcher,
			Loader:   plugins,
			Capacity: opts.Settings.CacheCapacity,
			Logger:   logger,
		}),
		Fetcher:  fetcher,
		Plugins:  plugins,
		Tools:    tools,
		Versions: environment.NewVersionStore(layout, opts.Settings.VersionsTTL, logger),
		Env:      userdata.FileEnvWriter{Layout: layout},
		Logger:   logger,
		Out:      out,
	}, nil
}

// Reset drops the in-memory resource cache and loaded lock manifests.
func (s *Session) Reset() {
	s.Resolver.Reset()
	s.Locks.Reset()
}
