// Package analyze computes actionable buckets and trend series from a task
// snapshot. It is a pure function of the task set and a clock: no I/O, no
// mutation of the input, and deterministic output for identical input.
package analyze

import (
	"sort"
	"time"

	"github.com/taskmill/taskmill/internal/types"
)

// Classification horizons.
const (
	ImmediateHorizon = 48 * time.Hour
	WeekHorizon      = 7 * 24 * time.Hour

	DefaultStagnantAfter = 30 * 24 * time.Hour
	DefaultStagnantLimit = 5
)

// Options tunes one analysis run.
type Options struct {
	// Tags restricts analysis to tasks whose active tag set intersects it.
	// Empty means no filtering.
	Tags []string

	// StagnantAfter is how long a task may go unedited before it is called
	// out. Zero applies DefaultStagnantAfter.
	StagnantAfter time.Duration

	// StagnantLimit caps the stagnant list. Zero applies
	// DefaultStagnantLimit; negative means unlimited.
	StagnantLimit int
}

// DayCount is one point of a per-day series. Day is a UTC calendar date
// (YYYY-MM-DD), so lexical order is chronological order.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Result is the full analysis output. Bucket entries are task IDs in
// presentation order (priority, then due date, then display id).
type Result struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	TagFilter   []string  `json:"tag_filter,omitempty"`

	Immediate []string `json:"immediate"`
	ThisWeek  []string `json:"this_week"`
	Backlog   []string `json:"backlog"`

	StatusCounts   map[types.Status]int   `json:"status_counts"`
	PriorityCounts map[types.Priority]int `json:"priority_counts"`

	ActiveProjects []string `json:"active_projects,omitempty"`
	Overdue        []string `json:"overdue,omitempty"`
	Stagnant       []string `json:"stagnant,omitempty"`

	Velocity []DayCount `json:"velocity,omitempty"`
	Intake   []DayCount `json:"intake,omitempty"`

	// Excluded lists invalid tasks left out of every bucket and count.
	// Degraded lists metadata-only tasks that are analyzed but incomplete.
	Excluded []string `json:"excluded,omitempty"`
	Degraded []string `json:"degraded,omitempty"`
}

// Analyze classifies every valid task in the snapshot as of now.
//
// Leaf tasks in an actionable status land in exactly one bucket: Immediate
// when due within 48 hours (or already overdue, or critical priority),
// ThisWeek when due within 7 days, Backlog otherwise. Projects are counted
// but never bucketed. Terminal and note/paused statuses are counted only.
func Analyze(tasks map[string]*types.Task, now time.Time, opts Options) *Result {
	now = now.UTC()
	if opts.StagnantAfter <= 0 {
		opts.StagnantAfter = DefaultStagnantAfter
	}
	if opts.StagnantLimit == 0 {
		opts.StagnantLimit = DefaultStagnantLimit
	}

	res := &Result{
		GeneratedAt:    now,
		TagFilter:      opts.Tags,
		Immediate:      []string{},
		ThisWeek:       []string{},
		Backlog:        []string{},
		StatusCounts:   make(map[types.Status]int),
		PriorityCounts: make(map[types.Priority]int),
	}

	scope := make(map[string]*types.Task, len(tasks))
	var projects, stagnant []string
	velocity := make(map[string]int)
	intake := make(map[string]int)

	for _, id := range types.SortTaskIDs(tasks) {
		t := tasks[id]

		if t.Invalid != "" {
			res.Excluded = append(res.Excluded, id)
			continue
		}
		if len(opts.Tags) > 0 && !intersects(t.ActiveTags, opts.Tags) {
			continue
		}

		scope[id] = t
		res.Total++
		res.StatusCounts[t.Status]++
		res.PriorityCounts[t.Priority]++
		if t.MetadataOnly {
			res.Degraded = append(res.Degraded, id)
		}

		intake[day(t.CreatedAt)]++
		if t.Status == types.StatusDone {
			if done := t.DoneAt(); done != nil {
				velocity[day(*done)]++
			}
		}

		if t.IsProject() {
			projects = append(projects, id)
			continue
		}
		if !t.Status.IsActionable() {
			continue
		}

		switch {
		case t.Priority == types.PriorityCritical,
			t.Due != nil && t.Due.Sub(now) <= ImmediateHorizon:
			res.Immediate = append(res.Immediate, id)
		case t.Due != nil && t.Due.Sub(now) <= WeekHorizon:
			res.ThisWeek = append(res.ThisWeek, id)
		default:
			res.Backlog = append(res.Backlog, id)
		}

		if t.Due != nil && t.Due.Before(now) {
			res.Overdue = append(res.Overdue, id)
		}
		if now.Sub(t.UpdatedAt) >= opts.StagnantAfter {
			stagnant = append(stagnant, id)
		}
	}

	sortBucket(res.Immediate, scope)
	sortBucket(res.ThisWeek, scope)
	sortBucket(res.Backlog, scope)
	sortBucket(res.Overdue, scope)

	res.ActiveProjects = activeProjects(projects, scope)
	res.Stagnant = capStagnant(stagnant, scope, opts.StagnantLimit)
	res.Velocity = toSeries(velocity)
	res.Intake = toSeries(intake)

	return res
}

// activeProjects keeps projects with at least one non-terminal sub-item
// in scope.
func activeProjects(projects []string, scope map[string]*types.Task) []string {
	var active []string
	for _, id := range projects {
		for _, sub := range scope[id].SubItemIDs {
			if child, ok := scope[sub]; ok && !child.Status.IsTerminal() {
				active = append(active, id)
				break
			}
		}
	}
	return active
}

// capStagnant orders candidates oldest edit first and applies the limit.
func capStagnant(ids []string, scope map[string]*types.Task, limit int) []string {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := scope[ids[i]], scope[ids[j]]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return ids[i] < ids[j]
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

// sortBucket orders task IDs for presentation: priority rank, then due date
// with undated tasks last, then display id as a stable human-facing tiebreak.
func sortBucket(ids []string, scope map[string]*types.Task) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := scope[ids[i]], scope[ids[j]]
		if as, bs := a.Priority.Score(), b.Priority.Score(); as != bs {
			return as < bs
		}
		switch {
		case a.Due != nil && b.Due == nil:
			return true
		case a.Due == nil && b.Due != nil:
			return false
		case a.Due != nil && b.Due != nil && !a.Due.Equal(*b.Due):
			return a.Due.Before(*b.Due)
		}
		if a.DisplayID != b.DisplayID {
			return a.DisplayID < b.DisplayID
		}
		return ids[i] < ids[j]
	})
}

func toSeries(counts map[string]int) []DayCount {
	if len(counts) == 0 {
		return nil
	}
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	series := make([]DayCount, 0, len(days))
	for _, d := range days {
		series = append(series, DayCount{Day: d, Count: counts[d]})
	}
	return series
}

func day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func intersects(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
