package report

import (
	"sort"
	"time"

	"github.com/taskmill/taskmill/internal/analyze"
	"github.com/taskmill/taskmill/internal/types"
)

// Goal-list trimming: a window with more than GoalLimit intake tasks keeps
// only those due within GoalDueHorizon of the anchor or ranked high/critical.
const (
	GoalLimit      = 15
	GoalDueHorizon = 14 * 24 * time.Hour
)

// Options tunes window selection.
type Options struct {
	// Tags restricts selection to tasks whose active tag set intersects it.
	Tags []string

	// IncludeBody keeps container tasks with body content in the lists.
	// Without it, projects appear only as group headers.
	IncludeBody bool

	// IncludeOther adds the catch-all list of note/paused tasks created in
	// the window.
	IncludeOther bool
}

// Entry is one selected task with its presentation group (the parent task's
// title, empty for parentless tasks).
type Entry struct {
	Task  *types.Task
	Group string
}

// WindowData is everything a report document needs for one window.
type WindowData struct {
	Kind      Kind
	Anchor    time.Time
	Start     time.Time // inclusive
	End       time.Time // exclusive
	TagFilter []string

	Goals        []Entry
	GoalsTrimmed bool
	Completed    []Entry
	InProgress   []Entry
	Other        []Entry

	// Velocity has exactly Kind.Days() entries, zero-filled.
	Velocity     []analyze.DayCount
	StatusCounts map[types.Status]int
}

// Window selects tasks for the half-open interval [anchor - days, anchor).
//
// Goals are the window's intake: to-do tasks created inside it. Completed
// tasks are selected by their done timestamp, so work finished exactly at
// the anchor rolls into the next window. The in-progress list ignores dates:
// it is the current doing set.
func Window(tasks map[string]*types.Task, kind Kind, anchor time.Time, opts Options) *WindowData {
	start, end := kind.Bounds(anchor)
	data := &WindowData{
		Kind:         kind,
		Anchor:       anchor.UTC(),
		Start:        start,
		End:          end,
		TagFilter:    opts.Tags,
		StatusCounts: make(map[types.Status]int),
	}

	velocity := make([]int, kind.Days())

	for _, id := range types.SortTaskIDs(tasks) {
		t := tasks[id]
		if t.Invalid != "" {
			continue
		}
		if len(opts.Tags) > 0 && !hasAnyTag(t.ActiveTags, opts.Tags) {
			continue
		}

		entry := Entry{Task: t, Group: parentTitle(tasks, t)}
		selected := false

		switch t.Status {
		case types.StatusToDo:
			if inWindow(t.CreatedAt, start, end) && keepInList(t, opts) {
				data.Goals = append(data.Goals, entry)
				selected = true
			}
		case types.StatusDone:
			done := t.DoneAt()
			if done != nil && inWindow(*done, start, end) {
				if inSlice := int(done.Sub(start).Hours() / 24); inSlice >= 0 && inSlice < len(velocity) {
					velocity[inSlice]++
				}
				if keepInList(t, opts) {
					data.Completed = append(data.Completed, entry)
					selected = true
				}
			}
		case types.StatusDoing:
			if t.IsLeaf() {
				data.InProgress = append(data.InProgress, entry)
				selected = true
			}
		case types.StatusNotes, types.StatusPaused:
			if opts.IncludeOther && inWindow(t.CreatedAt, start, end) {
				data.Other = append(data.Other, entry)
				selected = true
			}
		}

		if selected {
			data.StatusCounts[t.Status]++
		}
	}

	data.Goals, data.GoalsTrimmed = trimGoals(data.Goals, anchor.UTC())

	sortEntries(data.Goals, byPriorityThenDue)
	sortEntries(data.Completed, byDoneDesc)
	sortEntries(data.InProgress, byPriorityThenDue)
	sortEntries(data.Other, byPriorityThenDue)

	data.Velocity = make([]analyze.DayCount, kind.Days())
	for i := range velocity {
		data.Velocity[i] = analyze.DayCount{
			Day:   start.AddDate(0, 0, i).Format("2006-01-02"),
			Count: velocity[i],
		}
	}

	return data
}

// trimGoals applies the overload rule: past GoalLimit entries, keep tasks
// due within the horizon (or overdue) and tasks ranked high or critical.
func trimGoals(goals []Entry, anchor time.Time) ([]Entry, bool) {
	if len(goals) <= GoalLimit {
		return goals, false
	}
	cutoff := anchor.Add(GoalDueHorizon)
	kept := goals[:0]
	for _, e := range goals {
		dueSoon := e.Task.Due != nil && !e.Task.Due.After(cutoff)
		if dueSoon || e.Task.Priority.Score() <= 1 {
			kept = append(kept, e)
		}
	}
	return kept, true
}

// keepInList drops container tasks that would add nothing but their title.
// With body rendering enabled a project with content stays.
func keepInList(t *types.Task, opts Options) bool {
	if t.IsLeaf() {
		return true
	}
	return opts.IncludeBody && len(t.Blocks) > 0
}

func inWindow(ts, start, end time.Time) bool {
	return !ts.Before(start) && ts.Before(end)
}

func parentTitle(tasks map[string]*types.Task, t *types.Task) string {
	if t.ParentID == "" {
		return ""
	}
	if parent, ok := tasks[t.ParentID]; ok {
		return parent.Title
	}
	return ""
}

type entryLess func(a, b Entry) bool

// sortEntries orders by group first so the writer can emit group headers in
// a single pass, then by the section's own ordering.
func sortEntries(entries []Entry, less entryLess) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Group != entries[j].Group {
			return entries[i].Group < entries[j].Group
		}
		return less(entries[i], entries[j])
	})
}

func byPriorityThenDue(a, b Entry) bool {
	if as, bs := a.Task.Priority.Score(), b.Task.Priority.Score(); as != bs {
		return as < bs
	}
	switch {
	case a.Task.Due != nil && b.Task.Due == nil:
		return true
	case a.Task.Due == nil && b.Task.Due != nil:
		return false
	case a.Task.Due != nil && b.Task.Due != nil && !a.Task.Due.Equal(*b.Task.Due):
		return a.Task.Due.Before(*b.Task.Due)
	}
	return a.Task.ID < b.Task.ID
}

func byDoneDesc(a, b Entry) bool {
	ad, bd := a.Task.DoneAt(), b.Task.DoneAt()
	switch {
	case ad != nil && bd == nil:
		return true
	case ad == nil && bd != nil:
		return false
	case ad != nil && bd != nil && !ad.Equal(*bd):
		return ad.After(*bd)
	}
	return a.Task.ID < b.Task.ID
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
