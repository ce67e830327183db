package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/taskmill/taskmill/internal/types"
)

// LinkRelations validates parent/sub-item references across a full task set.
// References to records outside the set are dropped with a warning, and a
// parent's sub-item list is backfilled when only the child side of the
// relation was set, so the forest is consistent in both directions.
func LinkRelations(tasks map[string]*types.Task) []string {
	var warnings []string

	for _, id := range types.SortTaskIDs(tasks) {
		t := tasks[id]

		if t.ParentID != "" {
			if _, ok := tasks[t.ParentID]; !ok {
				warnings = append(warnings, fmt.Sprintf("task %s: dropping dangling parent reference %s", id, t.ParentID))
				t.ParentID = ""
			}
		}

		if len(t.SubItemIDs) > 0 {
			kept := t.SubItemIDs[:0]
			for _, sub := range t.SubItemIDs {
				if _, ok := tasks[sub]; ok {
					kept = append(kept, sub)
				} else {
					warnings = append(warnings, fmt.Sprintf("task %s: dropping dangling sub-item reference %s", id, sub))
				}
			}
			t.SubItemIDs = kept
		}
	}

	// Backfill after dangling references are gone so a child never points
	// at a parent that does not list it.
	for _, id := range types.SortTaskIDs(tasks) {
		t := tasks[id]
		if t.ParentID == "" {
			continue
		}
		parent := tasks[t.ParentID]
		if !contains(parent.SubItemIDs, id) {
			parent.SubItemIDs = append(parent.SubItemIDs, id)
			sort.Strings(parent.SubItemIDs)
		}
	}

	return warnings
}

// ResolveActiveTags computes each task's active tag set: the union of its
// own tags and every ancestor's tags. Chains are walked with an explicit
// worklist and memoized per task, so shared ancestors are resolved once.
// Parent cycles mark every member invalid and cut the union at the cycle
// boundary instead of recursing forever.
func ResolveActiveTags(tasks map[string]*types.Task) []*types.IntegrityError {
	memo := make(map[string][]string, len(tasks))
	var integrity []*types.IntegrityError

	for _, id := range types.SortTaskIDs(tasks) {
		if _, done := memo[id]; done {
			tasks[id].ActiveTags = memo[id]
			continue
		}

		// Walk up the parent chain until a memoized ancestor, a root, or a
		// repeat (cycle).
		var chain []string
		index := make(map[string]int)
		cur := id
		cycleAt := -1
		for {
			if _, done := memo[cur]; done {
				break
			}
			if at, seen := index[cur]; seen {
				cycleAt = at
				break
			}
			index[cur] = len(chain)
			chain = append(chain, cur)
			parent := tasks[cur].ParentID
			if parent == "" || tasks[parent] == nil {
				break
			}
			cur = parent
		}

		if cycleAt >= 0 {
			members := chain[cycleAt:]
			reason := "parent chain cycle: " + strings.Join(members, " -> ")
			for _, mid := range members {
				t := tasks[mid]
				if t.Invalid == "" {
					t.Invalid = reason
					integrity = append(integrity, &types.IntegrityError{TaskID: mid, Reason: reason})
				}
				// Union stops at the cycle boundary.
				memo[mid] = sortedUnion(t.Tags, nil)
			}
			chain = chain[:cycleAt]
		}

		// Unwind outermost first so each task unions with a memoized parent.
		for i := len(chain) - 1; i >= 0; i-- {
			t := tasks[chain[i]]
			memo[chain[i]] = sortedUnion(t.Tags, memo[t.ParentID])
		}

		tasks[id].ActiveTags = memo[id]
	}

	return integrity
}

func sortedUnion(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	sort.Strings(merged)
	return dedupe(merged)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
