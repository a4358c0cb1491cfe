package install

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/download"
	"github.com/e5r/devcom/internal/environment"
	"github.com/e5r/devcom/internal/logging"
	"github.com/e5r/devcom/internal/userdata"
)

// State is a step of the install state machine.
type State int

// States in order. RollingBack and Failed are reached from Downloading,
// Extracting or Installing.
const (
	Idle State = iota
	Downloading
	Extracting
	Installing
	Activated
	RollingBack
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Downloading:
		return "downloading"
	case Extracting:
		return "extracting"
	case Installing:
		return "installing"
	case Activated:
		return "activated"
	case RollingBack:
		return "rolling-back"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mode is how the target directory is populated.
type Mode int

// Install modes.
const (
	Fresh Mode = iota
	Reinstall
)

func (m Mode) String() string {
	if m == Reinstall {
		return "reinstall"
	}
	return "fresh"
}

// Pipeline installs versions of one environment.
type Pipeline struct {
	engine  environment.Installable
	swap    bool
	fetcher download.Fetcher
	extract func(ctx context.Context, archive, dest string) error
	layout  userdata.Layout
	logger  *log.Logger

	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)

	mu    sync.Mutex
	state State
}

// NewPipeline creates a Pipeline for e. It fails with a ContractViolation
// when e lacks an install capability.
func NewPipeline(e environment.Engine, fetcher download.Fetcher, layout userdata.Layout, logger *log.Logger) (*Pipeline, error) {
	inst, err := environment.RequireInstallable(e)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		engine:  inst,
		swap:    environment.SupportsSwap(e),
		fetcher: fetcher,
		extract: download.Extract,
		layout:  layout,
		logger:  logging.OrDiscard(logger),
	}, nil
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) transition(to State) {
	p.mu.Lock()
	from := p.state
	p.state = to
	p.mu.Unlock()

	p.logger.Debug("install state", "from", from, "to", to)
	if p.OnTransition != nil {
		p.OnTransition(from, to)
	}
}

// Result describes a completed install.
type Result struct {
	Version string
	Mode    Mode
	Dirs    Directories
}

// Install downloads, extracts and installs version. On failure the
// previous installation is restored and the original error is returned.
func (p *Pipeline) Install(ctx context.Context, version string) (*Result, error) {
	p.mu.Lock()
	p.state = Idle
	p.mu.Unlock()

	env := p.engine.Name()
	dirs := DirectoriesFor(p.layout, env, version)
	envDir := p.layout.EnvironmentPath(env)

	release, err := acquireLock(ctx, LockPath(envDir, version))
	if err != nil {
		return nil, err
	}
	defer release()

	mode, err := p.prepare(dirs)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("installing", "environment", env, "version", version, "mode", mode)

	r := &run{p: p, dirs: dirs, mode: mode, version: version}
	if err := r.setup(envDir); err != nil {
		r.rollback()
		return nil, err
	}
	if err := r.execute(ctx); err != nil {
		p.transition(RollingBack)
		r.rollback()
		p.transition(Failed)
		return nil, err
	}
	return &Result{Version: version, Mode: mode, Dirs: dirs}, nil
}

// prepare picks the install mode and recovers leftovers from interrupted
// runs: a staged .new tree is discarded and a .old backup either replaces
// a missing install or is dropped next to a present one.
func (p *Pipeline) prepare(dirs Directories) (Mode, error) {
	if err := os.RemoveAll(dirs.PathNew); err != nil {
		return Fresh, deverr.FileSystem("removing stale %s", dirs.PathNew).Wrap(err)
	}

	st, err := inspectDir(dirs.Path)
	if err != nil {
		return Fresh, err
	}
	if st == dirEmpty {
		if err := os.Remove(dirs.Path); err != nil {
			return Fresh, deverr.FileSystem("clearing empty %s", dirs.Path).Wrap(err)
		}
		st = dirAbsent
	}

	if exists(dirs.PathOld) {
		if st == dirAbsent {
			p.logger.Debug("restoring interrupted install", "path", dirs.PathOld)
			if err := os.Rename(dirs.PathOld, dirs.Path); err != nil {
				return Fresh, deverr.FileSystem("restoring %s", dirs.PathOld).Wrap(err)
			}
			return p.prepare(dirs)
		}
		if err := os.RemoveAll(dirs.PathOld); err != nil {
			return Fresh, deverr.FileSystem("removing stale %s", dirs.PathOld).Wrap(err)
		}
	}

	if st == dirPopulated {
		if !p.swap {
			return Fresh, deverr.FileSystem("%s is already installed at %s; uninstall it first", filepath.Base(dirs.Path), dirs.Path)
		}
		return Reinstall, nil
	}
	return Fresh, nil
}

// run is the state of one Install call.
type run struct {
	p       *Pipeline
	dirs    Directories
	mode    Mode
	version string

	downloadDir string
	extractDir  string
	swapped     bool
}

func (r *run) target() string {
	if r.mode == Reinstall {
		return r.dirs.PathNew
	}
	return r.dirs.Path
}

// setup creates the target and the temporary directories. It runs
// before the state machine leaves Idle.
func (r *run) setup(envDir string) error {
	if err := os.MkdirAll(r.target(), userdata.DirPermNormal); err != nil {
		return deverr.FileSystem("creating %s", r.target()).Wrap(err)
	}

	var err error
	if r.downloadDir, err = os.MkdirTemp(envDir, "."+r.version+".download-"); err != nil {
		return deverr.FileSystem("creating download directory").Wrap(err)
	}
	if r.extractDir, err = os.MkdirTemp(envDir, "."+r.version+".extract-"); err != nil {
		return deverr.FileSystem("creating extract directory").Wrap(err)
	}
	return nil
}

func (r *run) execute(ctx context.Context) error {
	p := r.p

	p.transition(Downloading)
	urls, err := p.engine.GetDownloadFileList(r.version)
	if err != nil {
		return fmt.Errorf("listing downloads for %s %s: %w", p.engine.Name(), r.version, err)
	}
	files := make([]string, 0, len(urls))
	for i, u := range urls {
		dest := filepath.Join(r.downloadDir, fileName(u, i))
		if err := p.fetcher.FetchFile(ctx, u, dest); err != nil {
			return err
		}
		files = append(files, dest)
	}

	p.transition(Extracting)
	for _, f := range files {
		if err := p.extract(ctx, f, filepath.Join(r.extractDir, filepath.Base(f))); err != nil {
			return deverr.FileSystem("extracting %s", filepath.Base(f)).Wrap(err)
		}
	}

	p.transition(Installing)
	if err := p.engine.InstallFiles(ctx, r.downloadDir, r.extractDir, r.target(), r.version); err != nil {
		return fmt.Errorf("installing %s %s: %w", p.engine.Name(), r.version, err)
	}

	if r.mode == Reinstall {
		if err := os.Rename(r.dirs.Path, r.dirs.PathOld); err != nil {
			return deverr.FileSystem("backing up %s", r.dirs.Path).Wrap(err)
		}
		r.swapped = true
		if err := os.Rename(r.dirs.PathNew, r.dirs.Path); err != nil {
			return deverr.FileSystem("activating %s", r.dirs.Path).Wrap(err)
		}
	}

	if !p.engine.SuccessfullyInstalled(r.version, r.dirs.Path) {
		return deverr.FileSystem("%s %s failed its post-install check", p.engine.Name(), r.version)
	}

	if r.mode == Reinstall {
		if err := os.RemoveAll(r.dirs.PathOld); err != nil {
			p.logger.Debug("removing backup", "path", r.dirs.PathOld, "err", err)
		}
	}
	r.cleanupTemp()
	p.transition(Activated)
	return nil
}

// rollback restores the pre-install state. Errors are logged and
// swallowed so the caller sees the original failure.
func (r *run) rollback() {
	logger := r.p.logger
	remove := func(path string) {
		if path == "" {
			return
		}
		if err := os.RemoveAll(path); err != nil {
			logger.Debug("rollback: removing", "path", path, "err", err)
		}
	}

	switch r.mode {
	case Fresh:
		remove(r.dirs.Path)
	case Reinstall:
		if r.swapped && exists(r.dirs.PathOld) {
			remove(r.dirs.Path)
			if err := os.Rename(r.dirs.PathOld, r.dirs.Path); err != nil {
				logger.Debug("rollback: restoring", "path", r.dirs.Path, "err", err)
			}
		}
		remove(r.dirs.PathNew)
	}
	r.cleanupTemp()
}

func (r *run) cleanupTemp() {
	for _, d := range []string{r.downloadDir, r.extractDir} {
		if d == "" {
			continue
		}
		if err := os.RemoveAll(d); err != nil {
			r.p.logger.Debug("removing temp directory", "path", d, "err", err)
		}
	}
}

// fileName derives a local file name from a download URL.
func fileName(raw string, i int) string {
	name := ""
	if u, err := url.Parse(raw); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		return fmt.Sprintf("download-%d", i)
	}
	return name
}
