// Package lockfile guards a cache directory against concurrent runs with an
// advisory file lock.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrLockBusy is returned when another process holds the run lock.
var ErrLockBusy = errors.New("cache is locked by another run")

// Info describes the lock holder, written into the lock file for diagnostics.
type Info struct {
	PID       int       `json:"pid"`
	Dir       string    `json:"dir"`
	Version   string    `json:"version,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is a held run lock. Release it when the run finishes.
type Lock struct {
	f *os.File
}

// Acquire takes the exclusive run lock at path, failing fast when another
// process holds it. The lock file is created if missing and keeps holder
// info for error messages; the flock itself is the source of truth.
func Acquire(path string, info Info) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockBusy) {
			if holder, rerr := ReadInfo(path); rerr == nil && holder.PID != 0 {
				return nil, fmt.Errorf("%w (pid %d since %s)", ErrLockBusy, holder.PID, holder.StartedAt.Format(time.RFC3339))
			}
			return nil, ErrLockBusy
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	if info.PID == 0 {
		info.PID = os.Getpid()
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now().UTC()
	}
	data, err := json.Marshal(info)
	if err == nil {
		_ = f.Truncate(0)
		_, _ = f.WriteAt(data, 0)
	}

	return &Lock{f: f}, nil
}

// Release drops the lock. The lock file stays on disk; a stale file without
// a held flock never blocks the next run.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := flockUnlock(l.f); err != nil {
		_ = l.f.Close()
		return fmt.Errorf("failed to unlock: %w", err)
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// ReadInfo reads the holder info recorded in a lock file.
func ReadInfo(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse lock info: %w", err)
	}
	return &info, nil
}
