package types

import (
	"strings"
	"testing"
	"time"
)

func TestTaskValidate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		task    Task
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid task",
			task: Task{
				ID:        "page-1",
				Title:     "Write release notes",
				Status:    StatusToDo,
				Priority:  PriorityMedium,
				CreatedAt: now,
				UpdatedAt: now,
			},
			wantErr: false,
		},
		{
			name: "missing id",
			task: Task{
				Title:     "No id",
				Status:    StatusToDo,
				Priority:  PriorityLow,
				UpdatedAt: now,
			},
			wantErr: true,
			errMsg:  "id is required",
		},
		{
			name: "missing title",
			task: Task{
				ID:        "page-2",
				Status:    StatusToDo,
				Priority:  PriorityLow,
				UpdatedAt: now,
			},
			wantErr: true,
			errMsg:  "title is required",
		},
		{
			name: "invalid status",
			task: Task{
				ID:        "page-3",
				Title:     "Bad status",
				Status:    Status("archived"),
				Priority:  PriorityLow,
				UpdatedAt: now,
			},
			wantErr: true,
			errMsg:  "invalid status",
		},
		{
			name: "invalid priority",
			task: Task{
				ID:        "page-4",
				Title:     "Bad priority",
				Status:    StatusDoing,
				Priority:  Priority("urgent"),
				UpdatedAt: now,
			},
			wantErr: true,
			errMsg:  "invalid priority",
		},
		{
			name: "missing last-edited",
			task: Task{
				ID:       "page-5",
				Title:    "No timestamp",
				Status:   StatusDoing,
				Priority: PriorityHigh,
			},
			wantErr: true,
			errMsg:  "last-edited timestamp is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %q, want substring %q", err.Error(), tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	terminal := []Status{StatusDone, StatusCanceled, StatusDuplicate}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
		if s.IsActionable() {
			t.Errorf("%s should not be actionable", s)
		}
	}

	actionable := []Status{StatusToDo, StatusDoing}
	for _, s := range actionable {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
		if !s.IsActionable() {
			t.Errorf("%s should be actionable", s)
		}
	}

	// Paused and notes are neither terminal nor actionable.
	for _, s := range []Status{StatusPaused, StatusNotes} {
		if s.IsTerminal() || s.IsActionable() {
			t.Errorf("%s should be neither terminal nor actionable", s)
		}
	}

	if Status("archived").IsValid() {
		t.Error("unknown status should not validate")
	}
}

func TestPriorityScoreOrdering(t *testing.T) {
	ordered := []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityNote}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Score() >= ordered[i].Score() {
			t.Errorf("%s should rank before %s", ordered[i-1], ordered[i])
		}
	}
	if Priority("unknown").Score() <= PriorityNote.Score() {
		t.Error("unknown priority should rank after note")
	}
}

func TestDoneAtFallback(t *testing.T) {
	completed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	edited := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	withDate := Task{ID: "a", Status: StatusDone, Completed: &completed, UpdatedAt: edited}
	if got := withDate.DoneAt(); got == nil || !got.Equal(completed) {
		t.Errorf("DoneAt = %v, want completed date %v", got, completed)
	}

	// Done without a completed date falls back to last-edited.
	noDate := Task{ID: "b", Status: StatusDone, UpdatedAt: edited}
	if got := noDate.DoneAt(); got == nil || !got.Equal(edited) {
		t.Errorf("DoneAt = %v, want last-edited %v", got, edited)
	}

	open := Task{ID: "c", Status: StatusToDo, UpdatedAt: edited}
	if got := open.DoneAt(); got != nil {
		t.Errorf("DoneAt for open task = %v, want nil", got)
	}
}

func TestProjectLeafSplit(t *testing.T) {
	project := Task{ID: "p", SubItemIDs: []string{"c1", "c2"}}
	if !project.IsProject() || project.IsLeaf() {
		t.Error("task with sub-items should be a project")
	}
	leaf := Task{ID: "l"}
	if leaf.IsProject() || !leaf.IsLeaf() {
		t.Error("task without sub-items should be a leaf")
	}
}

func TestBlockPlainText(t *testing.T) {
	toggle := Block{
		Kind: BlockToggle,
		Text: "Details",
		Children: []Block{
			{Kind: BlockText, Text: "- nested item"},
			{Kind: BlockEquation, Expression: "a^2+b^2=c^2"},
		},
	}
	lines := toggle.PlainText()
	want := []string{"Details", "  - nested item", "  $a^2+b^2=c^2$"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	table := Block{Kind: BlockTable, Rows: [][]string{{"h1", "h2"}, {"a", "b"}}, HasHeader: true}
	rows := table.PlainText()
	if len(rows) != 2 || rows[0] != "| h1 | h2 |" {
		t.Errorf("table rows = %v", rows)
	}

	code := Block{Kind: BlockCode, Text: "fmt.Println(1)", Language: "go"}
	got := code.PlainText()
	if len(got) != 3 || got[0] != "```go" || got[2] != "```" {
		t.Errorf("code lines = %v", got)
	}
}
