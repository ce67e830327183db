package pagestore

import (
	"encoding/csv"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/taskmill/internal/lockfile"
	"github.com/taskmill/taskmill/internal/types"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func sampleTasks() map[string]*types.Task {
	due := ts("2026-03-10T00:00:00Z")
	return map[string]*types.Task{
		"rec-b": {
			ID:         "rec-b",
			DisplayID:  12,
			Title:      "Ship importer",
			Status:     types.StatusDoing,
			Priority:   types.PriorityHigh,
			Due:        &due,
			CreatedAt:  ts("2026-03-01T09:00:00Z"),
			UpdatedAt:  ts("2026-03-05T10:00:00Z"),
			ParentID:   "rec-a",
			Tags:       []string{"infra"},
			ActiveTags: []string{"infra", "q1"},
			Files:      []types.FileRef{{Name: "notes.md", URL: "https://files/notes.md"}},
		},
		"rec-a": {
			ID:         "rec-a",
			DisplayID:  4,
			Title:      "Q1 infra",
			Status:     types.StatusToDo,
			CreatedAt:  ts("2026-02-20T08:00:00Z"),
			UpdatedAt:  ts("2026-03-04T10:00:00Z"),
			SubItemIDs: []string{"rec-b"},
			Tags:       []string{"q1"},
			ActiveTags: []string{"q1"},
		},
	}
}

func TestLoadSnapshotUninitialized(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.LoadSnapshot()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotInitialized))
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.SaveSnapshot(sampleTasks()))

	got, err := s.LoadSnapshot()
	require.NoError(t, err)
	require.Len(t, got, 2)

	b := got["rec-b"]
	require.NotNil(t, b)
	assert.Equal(t, "Ship importer", b.Title)
	assert.Equal(t, types.StatusDoing, b.Status)
	assert.Equal(t, "rec-a", b.ParentID)
	assert.Equal(t, []string{"infra", "q1"}, b.ActiveTags)
	require.Len(t, b.Files, 1)
	assert.Equal(t, "notes.md", b.Files[0].Name)
}

func TestSaveSnapshotIsDeterministic(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.SaveSnapshot(sampleTasks()))
	first, err := os.ReadFile(s.SnapshotJSONPath())
	require.NoError(t, err)

	require.NoError(t, s.SaveSnapshot(sampleTasks()))
	second, err := os.ReadFile(s.SnapshotJSONPath())
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestSaveSnapshotLeavesNoTempFiles(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.SaveSnapshot(sampleTasks()))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp.", "leftover temp file %s", e.Name())
	}
}

func TestCSVSnapshot(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.SaveSnapshot(sampleTasks()))

	f, err := os.Open(s.SnapshotCSVPath())
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 tasks

	assert.Equal(t, csvHeader, rows[0])
	// Rows sorted by task ID.
	assert.Equal(t, "rec-a", rows[1][0])
	assert.Equal(t, "rec-b", rows[2][0])
	assert.Equal(t, "12", rows[2][1])
	assert.Equal(t, "doing", rows[2][3])
	assert.Equal(t, "2026-03-10T00:00:00Z", rows[2][7])
	assert.Equal(t, "infra;q1", rows[2][13])
	assert.Equal(t, "notes.md", rows[2][14])
}

func TestStateRoundTrip(t *testing.T) {
	s := New(t.TempDir())

	st, err := s.LoadState()
	require.NoError(t, err)
	assert.Empty(t, st.Watermarks)

	st.SetWatermark("rec-a", ts("2026-03-04T10:00:00Z"))
	st.SetWatermark("rec-b", ts("2026-03-05T10:00:00Z"))
	st.LastRun = ts("2026-03-06T00:00:00Z")
	st.Runs = 3
	require.NoError(t, s.SaveState(st))

	got, err := s.LoadState()
	require.NoError(t, err)
	assert.Equal(t, 3, got.Runs)
	wm, ok := got.Watermark("rec-b")
	require.True(t, ok)
	assert.True(t, wm.Equal(ts("2026-03-05T10:00:00Z")))
	_, ok = got.Watermark("rec-missing")
	assert.False(t, ok)
}

func TestStatePrune(t *testing.T) {
	st := NewSyncState()
	st.SetWatermark("keep", ts("2026-03-01T00:00:00Z"))
	st.SetWatermark("drop", ts("2026-03-01T00:00:00Z"))

	removed := st.Prune(func(id string) bool { return id == "keep" })
	assert.Equal(t, 1, removed)
	_, ok := st.Watermark("drop")
	assert.False(t, ok)
	_, ok = st.Watermark("keep")
	assert.True(t, ok)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"notes.md", "notes.md"},
		{`bad<name>:v2?.txt`, "bad_name__v2_.txt"},
		{"a/b\\c", "a_b_c"},
		{"", "unnamed"},
		{"..", "unnamed"},
		{strings.Repeat("x", 300), strings.Repeat("x", 255)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "input %q", tt.in)
	}
}

func TestWriteAttachment(t *testing.T) {
	s := New(t.TempDir())
	task := &types.Task{ID: "rec-b", DisplayID: 12}

	rel, err := s.WriteAttachment(task, "spec draft?.md", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "attachments/12/spec draft_.md", rel)
	assert.True(t, s.HasAttachment(rel))

	data, err := os.ReadFile(s.AttachmentPath(rel))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteAttachmentWithoutDisplayID(t *testing.T) {
	s := New(t.TempDir())
	task := &types.Task{ID: "rec-xyz"}

	rel, err := s.WriteAttachment(task, "log.txt", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "attachments/rec-xyz/log.txt", rel)
}

func TestHasAttachmentMissing(t *testing.T) {
	s := New(t.TempDir())
	assert.False(t, s.HasAttachment(""))
	assert.False(t, s.HasAttachment("attachments/9/gone.txt"))
}

func TestLockBlocksSecondRun(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	lock, err := s.Lock("0.1.0")
	require.NoError(t, err)
	defer func() { _ = lock.Release() }()

	_, err = New(dir).Lock("0.1.0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, lockfile.ErrLockBusy))

	require.NoError(t, lock.Release())

	again, err := s.Lock("0.1.0")
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestStateFilePermissions(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.SaveState(NewSyncState()))

	info, err := os.Stat(s.StatePath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
