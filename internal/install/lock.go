package install

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/e5r/devcom/internal/deverr"
)

// lockPollInterval is how often a held install lock is re-checked.
var lockPollInterval = 100 * time.Millisecond

// lockStaleAfter is the age past which a lock is reclaimed whatever its owner.
var lockStaleAfter = time.Hour

// LockPath returns the lock file guarding installs of one version.
func LockPath(envDir, version string) string {
	return filepath.Join(envDir, "."+version+".lock")
}

// lockOwner is the content of a lock file: the holder's PID and host.
type lockOwner struct {
	pid  int
	host string
}

func currentOwner() lockOwner {
	host, _ := os.Hostname()
	return lockOwner{pid: os.Getpid(), host: host}
}

func (o lockOwner) encode() []byte {
	return []byte(fmt.Sprintf("%d\n%s\n", o.pid, o.host))
}

// parseOwner reads a lock file body. A missing host means the local one.
func parseOwner(data []byte) (lockOwner, bool) {
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return lockOwner{}, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return lockOwner{}, false
	}
	o := lockOwner{pid: pid}
	if len(fields) > 1 {
		o.host = fields[1]
	}
	return o, true
}

// acquireLock creates path exclusively, waiting while another process
// holds it. Locks left by a dead local process or older than
// lockStaleAfter are reclaimed. The returned func releases the lock.
func acquireLock(ctx context.Context, path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, deverr.FileSystem("preparing lock directory").Wrap(err)
	}

	self := currentOwner()
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = f.Write(self.encode())
			_ = f.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, deverr.FileSystem("acquiring install lock %s", path).Wrap(err)
		}
		if reclaimStale(ctx, path, self.host) {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for install lock %s: %w", path, ctx.Err())
		case <-ticker.C:
		}
	}
}

// reclaimStale removes path when its holder is gone and reports whether
// it did. The lock is only removed if its content is unchanged since it
// was judged stale.
func reclaimStale(ctx context.Context, path, host string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Is(err, os.ErrNotExist)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Is(err, os.ErrNotExist)
	}

	stale := time.Since(info.ModTime()) > lockStaleAfter
	if !stale {
		owner, ok := parseOwner(data)
		if !ok || (owner.host != "" && owner.host != host) {
			return false
		}
		alive, err := process.PidExistsWithContext(ctx, int32(owner.pid))
		stale = err == nil && !alive
	}
	if !stale {
		return false
	}

	current, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(current, data) {
		return false
	}
	return os.Remove(path) == nil
}
