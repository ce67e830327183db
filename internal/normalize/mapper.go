// Package normalize converts raw Notion records into canonical tasks.
//
// The remote database keys properties by display name and uses workspace
// labels like "3 To Do" and "Critical (48hrs)". The Mapper translates both
// through a configurable mapping so a renamed column or status option is a
// config change, not a code change.
package normalize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/taskmill/taskmill/internal/notion"
	"github.com/taskmill/taskmill/internal/types"
)

// PropertyMap names the database columns each task field is read from.
type PropertyMap struct {
	Title     string `yaml:"title"`
	DisplayID string `yaml:"display_id"`
	Status    string `yaml:"status"`
	Priority  string `yaml:"priority"`
	Started   string `yaml:"started"`
	Completed string `yaml:"completed"`
	Due       string `yaml:"due"`
	Files     string `yaml:"files"`
	Parent    string `yaml:"parent"`
	SubItems  string `yaml:"sub_items"`
	Tags      string `yaml:"tags"`
}

// DefaultPropertyMap matches the column names the stock task database uses.
func DefaultPropertyMap() PropertyMap {
	return PropertyMap{
		Title:     "Name",
		DisplayID: "NID",
		Status:    "Status",
		Priority:  "Priority",
		Started:   "Started",
		Completed: "Completed",
		Due:       "Due",
		Files:     "Files & media",
		Parent:    "Parent item",
		SubItems:  "Sub-item",
		Tags:      "Tags",
	}
}

// DefaultStatusLabels maps workspace status option names to canonical
// statuses. Keys are compared after normalizeLabel, so the numbered
// prefixes and the trailing emoji the stock board uses all resolve.
func DefaultStatusLabels() map[string]types.Status {
	return map[string]types.Status{
		"to do":     types.StatusToDo,
		"todo":      types.StatusToDo,
		"doing":     types.StatusDoing,
		"done":      types.StatusDone,
		"paused":    types.StatusPaused,
		"notes":     types.StatusNotes,
		"duplicate": types.StatusDuplicate,
		"canceled":  types.StatusCanceled,
		"cancelled": types.StatusCanceled,
	}
}

// DefaultPriorityLabels maps workspace priority option names to canonical
// priorities. The stock labels carry a time-horizon suffix ("Critical
// (48hrs)") which normalizeLabel strips.
func DefaultPriorityLabels() map[string]types.Priority {
	return map[string]types.Priority{
		"critical": types.PriorityCritical,
		"high":     types.PriorityHigh,
		"medium":   types.PriorityMedium,
		"low":      types.PriorityLow,
		"note":     types.PriorityNote,
	}
}

// Mapper translates raw records and blocks into canonical tasks.
type Mapper struct {
	Props          PropertyMap
	StatusLabels   map[string]types.Status
	PriorityLabels map[string]types.Priority

	// OnWarning receives one line per unmapped label or malformed value.
	// Nil disables warnings.
	OnWarning func(string)
}

func NewMapper() *Mapper {
	return &Mapper{
		Props:          DefaultPropertyMap(),
		StatusLabels:   DefaultStatusLabels(),
		PriorityLabels: DefaultPriorityLabels(),
	}
}

func (m *Mapper) warnf(format string, args ...interface{}) {
	if m.OnWarning != nil {
		m.OnWarning(fmt.Sprintf(format, args...))
	}
}

// Task maps one record's metadata. Body blocks, comments and attachment
// downloads are attached by the caller; relation fields hold raw IDs until
// LinkRelations runs over the full set.
func (m *Mapper) Task(rec notion.Record) *types.Task {
	t := &types.Task{
		ID:        rec.ID,
		URL:       rec.URL,
		CreatedAt: rec.CreatedTime.UTC(),
	}
	if rec.LastEditedTime != nil {
		t.UpdatedAt = rec.LastEditedTime.UTC()
	} else {
		// Records without a last-edited timestamp are re-fetched every run;
		// the created time keeps UpdatedAt meaningful for staleness checks.
		t.UpdatedAt = rec.CreatedTime.UTC()
	}

	props := rec.Properties

	t.Title = prop(props, m.Props.Title).Title.Plain()
	if t.Title == "" {
		t.Title = "Untitled"
	}

	if uid := prop(props, m.Props.DisplayID).UniqueID; uid != nil {
		t.DisplayID = uid.Number
	}

	t.Status = m.mapStatus(rec.ID, selectName(prop(props, m.Props.Status)))
	t.Priority = m.mapPriority(rec.ID, selectName(prop(props, m.Props.Priority)))

	t.Started = m.mapDate(rec.ID, m.Props.Started, prop(props, m.Props.Started).Date)
	t.Completed = m.mapDate(rec.ID, m.Props.Completed, prop(props, m.Props.Completed).Date)
	t.Due = m.mapDate(rec.ID, m.Props.Due, prop(props, m.Props.Due).Date)

	if rels := prop(props, m.Props.Parent).Relation; len(rels) > 0 {
		t.ParentID = rels[0].ID
		if len(rels) > 1 {
			m.warnf("task %s: multiple parent relations, keeping %s", rec.ID, t.ParentID)
		}
	}
	for _, rel := range prop(props, m.Props.SubItems).Relation {
		if rel.ID != "" {
			t.SubItemIDs = append(t.SubItemIDs, rel.ID)
		}
	}
	sort.Strings(t.SubItemIDs)

	t.Tags = m.mapTags(prop(props, m.Props.Tags))

	for _, f := range prop(props, m.Props.Files).Files {
		url := f.SourceURL()
		if url == "" {
			continue
		}
		name := f.Name
		if name == "" {
			name = "unnamed"
		}
		t.Files = append(t.Files, types.FileRef{Name: name, URL: url})
	}

	return t
}

// mapTags reads a multi-select column, or a formula column computing a
// comma-separated tag string.
func (m *Mapper) mapTags(p notion.Property) []string {
	var tags []string
	switch {
	case len(p.MultiSelect) > 0:
		for _, opt := range p.MultiSelect {
			if opt.Name != "" {
				tags = append(tags, opt.Name)
			}
		}
	case p.Formula != nil && p.Formula.String != nil:
		for _, part := range strings.Split(*p.Formula.String, ",") {
			if part = strings.TrimSpace(part); part != "" {
				tags = append(tags, part)
			}
		}
	}
	sort.Strings(tags)
	return dedupe(tags)
}

func (m *Mapper) mapStatus(id, label string) types.Status {
	if label == "" {
		return types.StatusNotes
	}
	if st, ok := m.StatusLabels[normalizeLabel(label)]; ok {
		return st
	}
	m.warnf("task %s: unmapped status %q, treating as notes", id, label)
	return types.StatusNotes
}

func (m *Mapper) mapPriority(id, label string) types.Priority {
	if label == "" {
		return types.PriorityNote
	}
	if p, ok := m.PriorityLabels[normalizeLabel(label)]; ok {
		return p
	}
	m.warnf("task %s: unmapped priority %q, treating as note", id, label)
	return types.PriorityNote
}

func (m *Mapper) mapDate(id, field string, d *notion.DateValue) *time.Time {
	if d == nil || d.Start == "" {
		return nil
	}
	parsed, err := parseRemoteDate(d.Start)
	if err != nil {
		m.warnf("task %s: unparseable %s date %q", id, field, d.Start)
		return nil
	}
	return &parsed
}

// Comments converts the raw comment thread, oldest first.
func (m *Mapper) Comments(raw []notion.Comment) []types.Comment {
	if len(raw) == 0 {
		return nil
	}
	out := make([]types.Comment, 0, len(raw))
	for _, c := range raw {
		text := c.RichText.Plain()
		if text == "" {
			continue
		}
		out = append(out, types.Comment{
			ID:        c.ID,
			Author:    c.CreatedBy.ID,
			CreatedAt: c.CreatedTime.UTC(),
			Text:      text,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// normalizeLabel lowercases a workspace label and strips the decoration the
// stock board adds: a numeric sort prefix ("3 To Do"), a parenthesized
// horizon ("High (1wk)") and any trailing non-letter runes ("6 Done 🙌").
func normalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))

	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}

	fields := strings.Fields(s)
	if len(fields) > 1 && isDigits(fields[0]) {
		fields = fields[1:]
	}
	s = strings.Join(fields, " ")

	return strings.TrimFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseRemoteDate accepts the API's date payloads: full RFC 3339 or a bare
// YYYY-MM-DD, which is taken as UTC midnight.
func parseRemoteDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func prop(props map[string]notion.Property, name string) notion.Property {
	if name == "" {
		return notion.Property{}
	}
	return props[name]
}

func selectName(p notion.Property) string {
	if p.Status != nil {
		return p.Status.Name
	}
	if p.Select != nil {
		return p.Select.Name
	}
	return ""
}

func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
