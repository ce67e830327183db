package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/taskmill/internal/normalize"
	"github.com/taskmill/taskmill/internal/notion"
	"github.com/taskmill/taskmill/internal/pagestore"
	"github.com/taskmill/taskmill/internal/types"
)

// fakeSource serves an in-memory database and counts calls per method.
type fakeSource struct {
	mu       sync.Mutex
	records  []notion.Record
	blocks   map[string][]notion.Block
	comments map[string][]notion.Comment
	files    map[string][]byte

	pageSize int // records per listing page, 0 = everything at once

	// When listErr is set, listing fails after failAfterPages pages.
	listErr        error
	failAfterPages int

	blockErrs   map[string]error
	onBlockTree func(pageID string)

	listCalls     int
	blockCalls    map[string]int
	commentCalls  int
	downloadCalls int
}

func newFakeSource(records ...notion.Record) *fakeSource {
	return &fakeSource{
		records:    records,
		blocks:     map[string][]notion.Block{},
		comments:   map[string][]notion.Comment{},
		files:      map[string][]byte{},
		blockErrs:  map[string]error{},
		blockCalls: map[string]int{},
	}
}

func (f *fakeSource) ListRecords(ctx context.Context, cursor string) ([]notion.Record, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil && f.listCalls > f.failAfterPages {
		return nil, "", f.listErr
	}
	size := f.pageSize
	if size <= 0 {
		size = len(f.records)
	}
	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := start + size
	next := ""
	if end < len(f.records) {
		next = strconv.Itoa(end)
	} else {
		end = len(f.records)
	}
	page := make([]notion.Record, end-start)
	copy(page, f.records[start:end])
	return page, next, nil
}

func (f *fakeSource) BlockTree(ctx context.Context, pageID string) ([]notion.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockCalls[pageID]++
	if f.onBlockTree != nil {
		f.onBlockTree(pageID)
	}
	if err := f.blockErrs[pageID]; err != nil {
		return nil, err
	}
	return f.blocks[pageID], nil
}

func (f *fakeSource) Comments(ctx context.Context, pageID string) ([]notion.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentCalls++
	return f.comments[pageID], nil
}

func (f *fakeSource) DownloadFile(ctx context.Context, fileURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadCalls++
	data, ok := f.files[fileURL]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", fileURL)
	}
	return data, nil
}

func (f *fakeSource) contentCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.blockCalls {
		n += c
	}
	return n
}

func record(id, title string, edited time.Time) notion.Record {
	e := edited
	return notion.Record{
		ID:             id,
		CreatedTime:    edited.Add(-24 * time.Hour),
		LastEditedTime: &e,
		Properties: map[string]notion.Property{
			"Name":   {Type: "title", Title: notion.RichText{{PlainText: title}}},
			"Status": {Type: "status", Status: &notion.SelectValue{Name: "3 To Do"}},
		},
	}
}

func newTestEngine(t *testing.T, src Source) (*Engine, *pagestore.Store) {
	t.Helper()
	store := pagestore.New(t.TempDir())
	require.NoError(t, store.Init())
	return NewEngine(src, store, normalize.NewMapper()), store
}

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestSyncFirstRun(t *testing.T) {
	src := newFakeSource(
		record("a", "Alpha", baseTime),
		record("b", "Beta", baseTime.Add(time.Minute)),
		record("c", "Gamma", baseTime.Add(2*time.Minute)),
	)
	eng, store := newTestEngine(t, src)

	res, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Listed)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 0, res.Failed)
	assert.NotEmpty(t, res.RunID)

	tasks, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "Alpha", tasks["a"].Title)

	state, err := store.LoadState()
	require.NoError(t, err)
	wm, ok := state.Watermark("b")
	require.True(t, ok)
	assert.True(t, wm.Equal(baseTime.Add(time.Minute)))
	assert.Equal(t, 1, state.Runs)
}

func TestSyncSecondRunIsAllCacheHits(t *testing.T) {
	src := newFakeSource(
		record("a", "Alpha", baseTime),
		record("b", "Beta", baseTime),
	)
	eng, store := newTestEngine(t, src)

	_, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)
	before, err := os.ReadFile(store.SnapshotJSONPath())
	require.NoError(t, err)
	calls := src.contentCalls()

	res, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Fetched)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, calls, src.contentCalls(), "cache hits must not fetch content")

	after, err := os.ReadFile(store.SnapshotJSONPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestSyncFetchesOnlyChangedTasks(t *testing.T) {
	src := newFakeSource(
		record("a", "Alpha", baseTime),
		record("b", "Beta", baseTime),
		record("c", "Gamma", baseTime),
	)
	eng, store := newTestEngine(t, src)
	_, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)

	src.mu.Lock()
	src.records[1] = record("b", "Beta v2", baseTime.Add(time.Hour))
	src.mu.Unlock()

	res, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 2, src.blockCalls["b"])
	assert.Equal(t, 1, src.blockCalls["a"])

	tasks, err := store.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, "Beta v2", tasks["b"].Title)
}

func TestSyncFullRefetchesEverything(t *testing.T) {
	src := newFakeSource(record("a", "Alpha", baseTime))
	eng, _ := newTestEngine(t, src)

	_, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)
	res, err := eng.Sync(context.Background(), Options{Full: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 2, src.blockCalls["a"])
}

func TestSyncTimestampRegressionKeepsCachedVersion(t *testing.T) {
	src := newFakeSource(record("a", "Alpha", baseTime))
	eng, store := newTestEngine(t, src)
	_, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)

	// Remote clock went backwards; the newer cached copy must survive.
	src.mu.Lock()
	src.records[0] = record("a", "Alpha stale", baseTime.Add(-time.Hour))
	src.mu.Unlock()

	res, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Fetched)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "older than watermark")

	tasks, err := store.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, "Alpha", tasks["a"].Title)

	state, err := store.LoadState()
	require.NoError(t, err)
	wm, ok := state.Watermark("a")
	require.True(t, ok)
	assert.True(t, wm.Equal(baseTime), "watermark must not move on regression")
}

func TestSyncDegradesTaskOnContentFailure(t *testing.T) {
	src := newFakeSource(
		record("a", "Alpha", baseTime),
		record("b", "Beta", baseTime),
	)
	src.blockErrs["b"] = errors.New("503 from upstream")
	eng, store := newTestEngine(t, src)

	res, err := eng.Sync(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degraded")

	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"b"}, res.Degraded)

	tasks, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.True(t, tasks["b"].MetadataOnly)
	assert.Contains(t, tasks["b"].DegradedReason, "503")
	assert.False(t, tasks["a"].MetadataOnly)

	state, err := store.LoadState()
	require.NoError(t, err)
	_, ok := state.Watermark("b")
	assert.False(t, ok, "degraded task keeps no watermark")

	// Next run retries the degraded task and heals it.
	src.mu.Lock()
	delete(src.blockErrs, "b")
	src.mu.Unlock()

	res, err = eng.Sync(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 1, res.Skipped)

	tasks, err = store.LoadSnapshot()
	require.NoError(t, err)
	assert.False(t, tasks["b"].MetadataOnly)
	assert.Empty(t, tasks["b"].DegradedReason)
}

func TestSyncDryRunWritesNothing(t *testing.T) {
	src := newFakeSource(
		record("a", "Alpha", baseTime),
		record("b", "Beta", baseTime),
	)
	eng, store := newTestEngine(t, src)

	res, err := eng.Sync(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.Equal(t, 2, res.Listed)
	assert.Equal(t, 2, res.Fetched, "reports what a real run would fetch")
	assert.Equal(t, 0, src.contentCalls())

	_, err = store.LoadSnapshot()
	assert.ErrorIs(t, err, types.ErrNotInitialized)

	state, err := store.LoadState()
	require.NoError(t, err)
	assert.Equal(t, 0, state.Runs)
}

func TestSyncLimitNeverPrunes(t *testing.T) {
	src := newFakeSource(
		record("a", "Alpha", baseTime),
		record("b", "Beta", baseTime),
		record("c", "Gamma", baseTime),
	)
	eng, store := newTestEngine(t, src)
	_, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)

	res, err := eng.Sync(context.Background(), Options{Limit: 1, Full: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Listed)
	assert.Equal(t, 0, res.Removed)

	tasks, err := store.LoadSnapshot()
	require.NoError(t, err)
	assert.Len(t, tasks, 3, "tasks outside a limited listing are carried forward")
}

func TestSyncPrunesDeletedOnFullListing(t *testing.T) {
	src := newFakeSource(
		record("a", "Alpha", baseTime),
		record("b", "Beta", baseTime),
	)
	eng, store := newTestEngine(t, src)
	_, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)

	src.mu.Lock()
	src.records = src.records[:1]
	src.mu.Unlock()

	res, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)

	tasks, err := store.LoadSnapshot()
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.NotContains(t, tasks, "b")

	state, err := store.LoadState()
	require.NoError(t, err)
	_, ok := state.Watermark("b")
	assert.False(t, ok)
}

func TestSyncDuplicateListingCollapses(t *testing.T) {
	t.Run("same edit stamp", func(t *testing.T) {
		src := newFakeSource(
			record("a", "Alpha", baseTime),
			record("a", "Alpha", baseTime),
		)
		eng, _ := newTestEngine(t, src)

		res, err := eng.Sync(context.Background(), Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Listed)
		assert.Empty(t, res.Warnings)
	})

	t.Run("conflicting edit stamps keep first", func(t *testing.T) {
		src := newFakeSource(
			record("a", "First", baseTime),
			record("a", "Second", baseTime.Add(time.Hour)),
		)
		eng, store := newTestEngine(t, src)

		res, err := eng.Sync(context.Background(), Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Listed)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "duplicate id")

		tasks, err := store.LoadSnapshot()
		require.NoError(t, err)
		assert.Equal(t, "First", tasks["a"].Title)
	})
}

func TestSyncInterruptedRunResumes(t *testing.T) {
	src := newFakeSource(
		record("a", "Alpha", baseTime),
		record("b", "Beta", baseTime),
		record("c", "Gamma", baseTime),
	)
	eng, store := newTestEngine(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src.onBlockTree = func(id string) {
		if id == "b" {
			cancel()
		}
	}

	res, err := eng.Sync(ctx, Options{Workers: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
	assert.True(t, res.Interrupted)
	assert.Equal(t, 2, res.Fetched)

	// Completed work survived the interruption.
	tasks, err := store.LoadSnapshot()
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	// The next run picks up only what was left.
	src.mu.Lock()
	src.onBlockTree = nil
	src.mu.Unlock()

	res, err = eng.Sync(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, src.blockCalls["a"])
	assert.Equal(t, 1, src.blockCalls["c"])

	tasks, err = store.LoadSnapshot()
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestSyncListErrorKeepsPartialResults(t *testing.T) {
	src := newFakeSource(
		record("a", "Alpha", baseTime),
		record("b", "Beta", baseTime),
		record("c", "Gamma", baseTime),
		record("d", "Delta", baseTime),
	)
	src.pageSize = 2
	src.listErr = errors.New("api down")
	src.failAfterPages = 1
	eng, store := newTestEngine(t, src)

	res, err := eng.Sync(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partial sync")

	assert.Equal(t, 2, res.Listed)
	assert.Equal(t, 2, res.Fetched)

	tasks, err := store.LoadSnapshot()
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestSyncMissingEditTimestampAlwaysFetches(t *testing.T) {
	rec := record("a", "Alpha", baseTime)
	rec.LastEditedTime = nil
	src := newFakeSource(rec)
	eng, store := newTestEngine(t, src)

	_, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)
	_, err = eng.Sync(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, src.blockCalls["a"])

	state, err := store.LoadState()
	require.NoError(t, err)
	_, ok := state.Watermark("a")
	assert.False(t, ok)
}

func TestSyncAttachmentReuse(t *testing.T) {
	rec := record("a", "Alpha", baseTime)
	rec.Properties["Files & media"] = notion.Property{Type: "files", Files: []notion.FileValue{
		{Name: "notes.md", Type: "file", File: &notion.FileLink{URL: "https://files/notes.md"}},
	}}
	src := newFakeSource(rec)
	src.files["https://files/notes.md"] = []byte("# notes")
	eng, store := newTestEngine(t, src)

	_, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, src.downloadCalls)

	tasks, err := store.LoadSnapshot()
	require.NoError(t, err)
	local := tasks["a"].Files[0].LocalPath
	require.NotEmpty(t, local)
	assert.True(t, store.HasAttachment(local))

	// A content change with the same file reference reuses the download.
	changed := record("a", "Alpha v2", baseTime.Add(time.Hour))
	changed.Properties["Files & media"] = rec.Properties["Files & media"]
	src.mu.Lock()
	src.records[0] = changed
	src.mu.Unlock()

	_, err = eng.Sync(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, src.downloadCalls)

	tasks, err = store.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, local, tasks["a"].Files[0].LocalPath)
}

func TestSyncSkipAttachments(t *testing.T) {
	rec := record("a", "Alpha", baseTime)
	rec.Properties["Files & media"] = notion.Property{Type: "files", Files: []notion.FileValue{
		{Name: "notes.md", Type: "file", File: &notion.FileLink{URL: "https://files/notes.md"}},
	}}
	src := newFakeSource(rec)
	src.files["https://files/notes.md"] = []byte("# notes")
	eng, store := newTestEngine(t, src)

	_, err := eng.Sync(context.Background(), Options{SkipAttachments: true})
	require.NoError(t, err)
	assert.Equal(t, 0, src.downloadCalls)

	tasks, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.Len(t, tasks["a"].Files, 1)
	assert.Empty(t, tasks["a"].Files[0].LocalPath)
}

func TestSyncLinksRelationsAndActiveTags(t *testing.T) {
	parent := record("p", "Platform", baseTime)
	parent.Properties["Tags"] = notion.Property{Type: "multi_select", MultiSelect: []notion.SelectValue{{Name: "infra"}}}

	child := record("c", "Child", baseTime)
	child.Properties["Parent item"] = notion.Property{Type: "relation", Relation: []notion.Ref{{ID: "p"}}}
	child.Properties["Tags"] = notion.Property{Type: "multi_select", MultiSelect: []notion.SelectValue{{Name: "api"}}}

	dangling := record("d", "Orphan", baseTime)
	dangling.Properties["Parent item"] = notion.Property{Type: "relation", Relation: []notion.Ref{{ID: "ghost"}}}

	src := newFakeSource(parent, child, dangling)
	eng, store := newTestEngine(t, src)

	res, err := eng.Sync(context.Background(), Options{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "ghost")

	tasks, err := store.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, tasks["p"].SubItemIDs)
	assert.Equal(t, []string{"api", "infra"}, tasks["c"].ActiveTags)
	assert.Empty(t, tasks["d"].ParentID)
}
