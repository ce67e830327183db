package pagestore

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SyncState tracks which remote edit each cached task reflects. A task's
// watermark is advanced only after its content and attachments are durably
// on disk, so a crash can cause re-fetching but never a stale cache that
// claims to be current.
type SyncState struct {
	Watermarks map[string]time.Time `json:"watermarks"`
	LastRun    time.Time            `json:"last_run"`
	LastRunID  string               `json:"last_run_id,omitempty"`
	Runs       int                  `json:"runs"`
}

func NewSyncState() *SyncState {
	return &SyncState{Watermarks: make(map[string]time.Time)}
}

// Watermark returns the recorded last-edited timestamp for a task.
func (st *SyncState) Watermark(id string) (time.Time, bool) {
	wm, ok := st.Watermarks[id]
	return wm, ok
}

func (st *SyncState) SetWatermark(id string, wm time.Time) {
	if st.Watermarks == nil {
		st.Watermarks = make(map[string]time.Time)
	}
	st.Watermarks[id] = wm.UTC()
}

// Prune drops watermarks for tasks no longer present remotely.
// Returns the number of entries removed.
func (st *SyncState) Prune(keep func(id string) bool) int {
	removed := 0
	for id := range st.Watermarks {
		if !keep(id) {
			delete(st.Watermarks, id)
			removed++
		}
	}
	return removed
}

// LoadState reads state.json. A missing file yields a fresh state so the
// first sync of a new cache directory needs no special casing.
func (s *Store) LoadState() (*SyncState, error) {
	data, err := os.ReadFile(s.StatePath()) // #nosec G304 - controlled path from config
	if os.IsNotExist(err) {
		return NewSyncState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sync state: %w", err)
	}

	var st SyncState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing sync state: %w", err)
	}
	if st.Watermarks == nil {
		st.Watermarks = make(map[string]time.Time)
	}
	return &st, nil
}

func (s *Store) SaveState(st *SyncState) error {
	if err := s.Init(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sync state: %w", err)
	}
	data = append(data, '\n')
	if err := WriteFileAtomic(s.StatePath(), data); err != nil {
		return fmt.Errorf("writing sync state: %w", err)
	}
	return nil
}
