// Package pagestore persists synced tasks on local disk.
//
// A store owns one cache directory. Layout:
//
//	tasks.json    full task snapshot, authoritative on load
//	tasks.csv     flat snapshot for spreadsheet use, derived from tasks.json
//	state.json    per-task sync watermarks and run bookkeeping
//	meta.json     cache identity, owned by the configfile package
//	attachments/  downloaded files, one subdirectory per task
//	lock          exclusive-run guard, owned by the lockfile package
//
// All writes go through a temp file in the same directory followed by an
// atomic rename, so a killed process never leaves a half-written snapshot.
package pagestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/taskmill/taskmill/internal/lockfile"
	"github.com/taskmill/taskmill/internal/types"
)

const (
	SnapshotJSONName = "tasks.json"
	SnapshotCSVName  = "tasks.csv"
	StateFileName    = "state.json"
	LockFileName     = "lock"
	AttachmentsDir   = "attachments"
)

type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) SnapshotJSONPath() string { return filepath.Join(s.dir, SnapshotJSONName) }
func (s *Store) SnapshotCSVPath() string  { return filepath.Join(s.dir, SnapshotCSVName) }
func (s *Store) StatePath() string        { return filepath.Join(s.dir, StateFileName) }
func (s *Store) LockPath() string         { return filepath.Join(s.dir, LockFileName) }

// Init creates the cache directory tree.
func (s *Store) Init() error {
	if err := os.MkdirAll(filepath.Join(s.dir, AttachmentsDir), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	return nil
}

// Lock acquires the exclusive-run lock for this cache directory.
// Returns lockfile.ErrLockBusy when another run holds it.
func (s *Store) Lock(version string) (*lockfile.Lock, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	return lockfile.Acquire(s.LockPath(), lockfile.Info{
		PID:     os.Getpid(),
		Dir:     s.dir,
		Version: version,
	})
}

// LoadSnapshot reads tasks.json into a map keyed by task ID.
// A cache directory that has never been synced yields ErrNotInitialized.
func (s *Store) LoadSnapshot() (map[string]*types.Task, error) {
	data, err := os.ReadFile(s.SnapshotJSONPath()) // #nosec G304 - controlled path from config
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", s.dir, types.ErrNotInitialized)
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var list []*types.Task
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	tasks := make(map[string]*types.Task, len(list))
	for _, t := range list {
		if t == nil || t.ID == "" {
			continue
		}
		tasks[t.ID] = t
	}
	return tasks, nil
}

// SaveSnapshot writes tasks.json and tasks.csv atomically, in that order.
// The JSON file is authoritative; a CSV failure after a successful JSON
// write is returned but leaves the store loadable.
func (s *Store) SaveSnapshot(tasks map[string]*types.Task) error {
	if err := s.Init(); err != nil {
		return err
	}

	list := make([]*types.Task, 0, len(tasks))
	for _, id := range types.SortTaskIDs(tasks) {
		list = append(list, tasks[id])
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	data = append(data, '\n')

	if err := WriteFileAtomic(s.SnapshotJSONPath(), data); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := s.writeCSV(list); err != nil {
		return fmt.Errorf("writing csv snapshot: %w", err)
	}
	return nil
}

// WriteFileAtomic writes data to path via a temp file in the same directory
// and an atomic rename. Permissions are tightened to 0600 afterwards; a
// chmod failure is a non-fatal warning.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tempFile, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("flushing temp file: %w", err)
	}
	_ = tempFile.Close()

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", base, err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to set permissions on %s: %v\n", base, err)
	}
	return nil
}
