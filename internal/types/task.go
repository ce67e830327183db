// Package types defines core data structures for the taskmill pipeline.
package types

import (
	"fmt"
	"sort"
	"time"
)

// Task is one record from the remote task database, normalized into the
// canonical shape every downstream stage consumes.
type Task struct {
	ID        string     `json:"id"`
	DisplayID int        `json:"display_id,omitempty"`
	Title     string     `json:"title"`
	Status    Status     `json:"status,omitempty"`
	Priority  Priority   `json:"priority,omitempty"`
	Started   *time.Time `json:"started,omitempty"`
	Completed *time.Time `json:"completed,omitempty"`
	Due       *time.Time `json:"due,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"` // remote last-edited timestamp
	URL       string     `json:"url,omitempty"`

	ParentID   string   `json:"parent_id,omitempty"`   // weak reference, 0 or 1
	SubItemIDs []string `json:"subitem_ids,omitempty"` // weak references, 0..N

	Tags       []string `json:"tags,omitempty"`
	ActiveTags []string `json:"active_tags,omitempty"` // union of own and ancestor tags, sorted

	Files    []FileRef `json:"files,omitempty"`
	Comments []Comment `json:"comments,omitempty"`
	Blocks   []Block   `json:"blocks,omitempty"`

	// MetadataOnly marks a task whose body/comments/attachments could not be
	// retrieved this run. Its watermark is not advanced, so content retrieval
	// is retried on the next sync.
	MetadataOnly   bool   `json:"metadata_only,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`

	// Invalid carries the reason a record is excluded from analysis
	// (parent-chain cycle, conflicting duplicate). Empty for healthy tasks.
	Invalid string `json:"invalid,omitempty"`
}

// FileRef is an attached file on a task.
type FileRef struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	LocalPath string `json:"local_path,omitempty"` // set once downloaded
}

// Comment is a discussion entry on a task.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Text      string    `json:"text"`
}

// IsProject reports whether the task is a container with sub-items.
// Projects are excluded from actionable buckets.
func (t *Task) IsProject() bool {
	return len(t.SubItemIDs) > 0
}

// IsLeaf reports whether the task is a unit of actionable work (no sub-items).
func (t *Task) IsLeaf() bool {
	return len(t.SubItemIDs) == 0
}

// DoneAt returns the timestamp a done task should be counted at: the
// completed date when present, otherwise the last-edited timestamp.
// Returns nil for tasks that are not done and carry no completed date.
func (t *Task) DoneAt() *time.Time {
	if t.Completed != nil {
		return t.Completed
	}
	if t.Status == StatusDone {
		u := t.UpdatedAt
		return &u
	}
	return nil
}

// Validate checks field values after normalization.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("task %s: title is required", t.ID)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("task %s: invalid status: %s", t.ID, t.Status)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("task %s: invalid priority: %s", t.ID, t.Priority)
	}
	if t.UpdatedAt.IsZero() {
		return fmt.Errorf("task %s: last-edited timestamp is required", t.ID)
	}
	return nil
}

// SetDefaults applies defaults for fields omitted in cached snapshots.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = StatusNotes
	}
	if t.Priority == "" {
		t.Priority = PriorityNote
	}
}

// SortTaskIDs returns the ids of tasks in lexical order. Downstream stages
// treat the task set as unordered; anything user-visible sorts first.
func SortTaskIDs(tasks map[string]*Task) []string {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Status is the workflow state of a task.
type Status string

// Task status constants. Terminal statuses never appear in actionable buckets.
const (
	StatusDone      Status = "done"
	StatusDoing     Status = "doing"
	StatusToDo      Status = "to_do"
	StatusPaused    Status = "paused"
	StatusNotes     Status = "notes"
	StatusDuplicate Status = "duplicate"
	StatusCanceled  Status = "canceled"
)

// IsValid checks if the status value is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusDone, StatusDoing, StatusToDo, StatusPaused, StatusNotes, StatusDuplicate, StatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether the status removes a task from consideration.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDone, StatusCanceled, StatusDuplicate:
		return true
	}
	return false
}

// IsActionable reports whether a task in this status still needs work.
func (s Status) IsActionable() bool {
	return s == StatusToDo || s == StatusDoing
}

// Priority is the urgency rank of a task.
type Priority string

// Task priority constants, most urgent first.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityNote     Priority = "note"
)

// IsValid checks if the priority value is one of the known ranks.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityNote:
		return true
	}
	return false
}

// Score returns the sort rank of the priority: 0 (critical) through 4 (note).
// Unknown priorities rank last.
func (p Priority) Score() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	case PriorityNote:
		return 4
	}
	return 5
}
