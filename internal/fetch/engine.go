// Package fetch drives incremental synchronization from the remote task
// database into the local page store.
//
// A run lists every record, compares each against its stored watermark, and
// fetches content only for records that changed. Content fetches run on a
// bounded worker pool. The snapshot is persisted before any watermark moves,
// so an interrupted or partially failed run re-fetches at most the tasks
// that were not durably completed.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/taskmill/taskmill/internal/normalize"
	"github.com/taskmill/taskmill/internal/notion"
	"github.com/taskmill/taskmill/internal/pagestore"
	"github.com/taskmill/taskmill/internal/types"
)

// DefaultWorkers bounds the content-fetch pool when Options.Workers is zero.
const DefaultWorkers = 4

// Options control one sync run.
type Options struct {
	// Full ignores watermarks and re-fetches every record's content.
	Full bool

	// DryRun lists and diffs but fetches no content and writes nothing.
	DryRun bool

	// Limit caps how many records are listed. Zero means all. A limited
	// run never prunes tasks missing from its partial listing.
	Limit int

	// Workers bounds concurrent content fetches.
	Workers int

	// SkipAttachments leaves attachment files out of this run.
	SkipAttachments bool
}

// Result summarizes one sync run.
type Result struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	DryRun    bool          `json:"dry_run,omitempty"`

	Listed  int `json:"listed"`
	Fetched int `json:"fetched"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Removed int `json:"removed"`

	// Degraded lists tasks persisted metadata-only this run. Their
	// watermarks did not advance, so content is retried next run.
	Degraded []string `json:"degraded,omitempty"`

	Warnings    []string `json:"warnings,omitempty"`
	Interrupted bool     `json:"interrupted,omitempty"`
}

// Engine orchestrates one sync: list, diff, fetch, link, persist.
type Engine struct {
	Source Source
	Store  *pagestore.Store
	Mapper *normalize.Mapper

	// Callbacks for UI feedback (optional).
	OnMessage func(msg string)
	OnWarning func(msg string)
}

// NewEngine wires a sync engine over a source, a store and a mapper.
func NewEngine(source Source, store *pagestore.Store, mapper *normalize.Mapper) *Engine {
	return &Engine{Source: source, Store: store, Mapper: mapper}
}

// Sync performs one run. It returns the run result even alongside an error:
// everything fetched before a failure or cancellation is already persisted.
func (e *Engine) Sync(ctx context.Context, opts Options) (*Result, error) {
	started := time.Now().UTC()
	result := &Result{
		RunID:     ulid.Make().String(),
		StartedAt: started,
		DryRun:    opts.DryRun,
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	state, err := e.Store.LoadState()
	if err != nil {
		return result, err
	}
	cached, err := e.Store.LoadSnapshot()
	if err != nil {
		if !isNotInitialized(err) {
			return result, err
		}
		cached = make(map[string]*types.Task)
	}

	records, listErr := e.listAll(ctx, opts, result)
	result.Listed = len(records)
	if listErr != nil && len(records) == 0 {
		return result, fmt.Errorf("sync %s: %w", result.RunID, listErr)
	}

	jobs, tasks := e.diff(records, cached, state, opts, result)

	if opts.DryRun {
		e.msg("[dry-run] %d changed, %d cached, %d listed", len(jobs), result.Skipped, result.Listed)
		result.Fetched = len(jobs)
		result.Duration = time.Since(started)
		return result, nil
	}

	completed := e.fetchContent(ctx, jobs, cached, tasks, opts, result)
	if ctx.Err() != nil {
		result.Interrupted = true
	}

	for _, w := range normalize.LinkRelations(tasks) {
		e.warn("%s", w)
		result.Warnings = append(result.Warnings, w)
	}
	for _, ierr := range normalize.ResolveActiveTags(tasks) {
		e.warn("%s", ierr.Error())
		result.Warnings = append(result.Warnings, ierr.Error())
	}

	// Deleted-record pruning is safe only after a complete, uninterrupted
	// listing; otherwise absent cached tasks are carried forward.
	fullListing := listErr == nil && !result.Interrupted && opts.Limit == 0
	if fullListing {
		for id := range cached {
			if _, ok := tasks[id]; !ok {
				result.Removed++
			}
		}
		if result.Removed > 0 {
			e.msg("Removing %d task(s) deleted remotely", result.Removed)
		}
	} else {
		for id, t := range cached {
			if _, ok := tasks[id]; !ok {
				tasks[id] = t
			}
		}
	}

	if err := e.Store.SaveSnapshot(tasks); err != nil {
		return result, fmt.Errorf("sync %s: %w", result.RunID, err)
	}

	// Watermarks move only now, after the snapshot and attachments are
	// on disk. Degraded tasks are deliberately absent from completed.
	for id, wm := range completed {
		state.SetWatermark(id, wm)
	}
	if fullListing {
		state.Prune(func(id string) bool {
			_, ok := tasks[id]
			return ok
		})
	}
	state.LastRun = started
	state.LastRunID = result.RunID
	state.Runs++
	if err := e.Store.SaveState(state); err != nil {
		return result, fmt.Errorf("sync %s: %w", result.RunID, err)
	}

	result.Duration = time.Since(started)
	e.msg("Synced %d fetched, %d cached, %d failed in %s (run %s)",
		result.Fetched, result.Skipped, result.Failed, result.Duration.Round(time.Millisecond), result.RunID)

	switch {
	case listErr != nil:
		return result, fmt.Errorf("partial sync %s: %w", result.RunID, listErr)
	case result.Interrupted:
		return result, fmt.Errorf("sync %s interrupted: %w", result.RunID, ctx.Err())
	case result.Failed > 0:
		return result, fmt.Errorf("sync %s: %d task(s) degraded to metadata-only", result.RunID, result.Failed)
	}
	return result, nil
}

// listAll pages through the database listing. Duplicate IDs inside one
// listing collapse silently when their edit stamps agree; otherwise the
// first record wins and both sides are reported.
func (e *Engine) listAll(ctx context.Context, opts Options, result *Result) ([]notion.Record, error) {
	var out []notion.Record
	index := make(map[string]int)
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			result.Interrupted = true
			return out, err
		}
		records, next, err := e.Source.ListRecords(ctx, cursor)
		if err != nil {
			return out, fmt.Errorf("listing records: %w", err)
		}
		for _, rec := range records {
			if rec.ID == "" {
				continue
			}
			if prev, dup := index[rec.ID]; dup {
				if !sameEdit(out[prev].LastEditedTime, rec.LastEditedTime) {
					ierr := &types.IntegrityError{TaskID: rec.ID, Reason: "duplicate id with conflicting last-edited, keeping first"}
					e.warn("%s", ierr.Error())
					result.Warnings = append(result.Warnings, ierr.Error())
				}
				continue
			}
			index[rec.ID] = len(out)
			out = append(out, rec)
			if opts.Limit > 0 && len(out) >= opts.Limit {
				return out, nil
			}
		}
		if next == "" {
			return out, nil
		}
		cursor = next
	}
}

// diff splits the listing into cache hits and content jobs.
func (e *Engine) diff(records []notion.Record, cached map[string]*types.Task, state *pagestore.SyncState, opts Options, result *Result) ([]notion.Record, map[string]*types.Task) {
	var jobs []notion.Record
	tasks := make(map[string]*types.Task, len(records))

	for _, rec := range records {
		wm, hasWM := state.Watermark(rec.ID)
		prev := cached[rec.ID]

		changed := opts.Full || rec.LastEditedTime == nil || !hasWM || prev == nil
		if !changed {
			switch {
			case rec.LastEditedTime.Equal(wm):
				// cache hit
			case rec.LastEditedTime.Before(wm):
				w := fmt.Sprintf("task %s: remote last-edited %s is older than watermark %s, keeping cached version",
					rec.ID, rec.LastEditedTime.Format(time.RFC3339), wm.Format(time.RFC3339))
				e.warn("%s", w)
				result.Warnings = append(result.Warnings, w)
			default:
				changed = true
			}
		}

		if changed {
			jobs = append(jobs, rec)
			continue
		}
		tasks[rec.ID] = prev
		result.Skipped++
	}
	return jobs, tasks
}

// fetchContent runs content jobs on the bounded pool and returns the
// watermarks of fully persisted tasks. Cancellation stops scheduling and
// leaves unstarted jobs for the next run.
func (e *Engine) fetchContent(ctx context.Context, jobs []notion.Record, cached, tasks map[string]*types.Task, opts Options, result *Result) map[string]time.Time {
	completed := make(map[string]time.Time, len(jobs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, rec := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			task, err := e.fetchTask(gctx, rec, cached[rec.ID], opts)

			mu.Lock()
			defer mu.Unlock()
			tasks[task.ID] = task
			if err != nil {
				result.Failed++
				result.Degraded = append(result.Degraded, task.ID)
				e.warn("task %s: degraded to metadata-only: %v", task.ID, err)
				return nil
			}
			result.Fetched++
			if rec.LastEditedTime != nil {
				completed[task.ID] = *rec.LastEditedTime
			}
			return nil
		})
	}
	_ = g.Wait()
	return completed
}

// fetchTask retrieves one task's content. Any failure returns the task
// degraded to metadata-only; the caller keeps its watermark unmoved.
func (e *Engine) fetchTask(ctx context.Context, rec notion.Record, prev *types.Task, opts Options) (*types.Task, error) {
	task := e.Mapper.Task(rec)

	raw, err := e.Source.BlockTree(ctx, rec.ID)
	if err != nil {
		return degrade(task, fmt.Errorf("fetching blocks: %w", err)), err
	}
	task.Blocks = e.Mapper.Blocks(raw)

	comments, err := e.Source.Comments(ctx, rec.ID)
	if err != nil {
		return degrade(task, fmt.Errorf("fetching comments: %w", err)), err
	}
	task.Comments = e.Mapper.Comments(comments)

	if !opts.SkipAttachments {
		for i := range task.Files {
			if err := e.fetchAttachment(ctx, task, &task.Files[i], prev); err != nil {
				return degrade(task, err), err
			}
		}
	}

	return task, nil
}

// fetchAttachment downloads one file, reusing the cached copy when the
// remote reference is unchanged and the file is still on disk.
func (e *Engine) fetchAttachment(ctx context.Context, task *types.Task, ref *types.FileRef, prev *types.Task) error {
	if prev != nil {
		for _, old := range prev.Files {
			if old.Name == ref.Name && old.URL == ref.URL && e.Store.HasAttachment(old.LocalPath) {
				ref.LocalPath = old.LocalPath
				return nil
			}
		}
	}

	data, err := e.Source.DownloadFile(ctx, ref.URL)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", ref.Name, err)
	}
	rel, err := e.Store.WriteAttachment(task, ref.Name, data)
	if err != nil {
		return err
	}
	ref.LocalPath = rel
	return nil
}

func degrade(task *types.Task, err error) *types.Task {
	task.MetadataOnly = true
	task.DegradedReason = err.Error()
	task.Blocks = nil
	task.Comments = nil
	return task
}

func sameEdit(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func isNotInitialized(err error) bool {
	return errors.Is(err, types.ErrNotInitialized)
}

func (e *Engine) msg(format string, args ...interface{}) {
	if e.OnMessage != nil {
		e.OnMessage(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) warn(format string, args ...interface{}) {
	if e.OnWarning != nil {
		e.OnWarning(fmt.Sprintf(format, args...))
	}
}
