package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/taskmill/taskmill/internal/analyze"
	"github.com/taskmill/taskmill/internal/pagestore"
	"github.com/taskmill/taskmill/internal/types"
)

const (
	DefaultBodyMaxLines       = 3
	DefaultMaxAttachmentChars = 1000
)

// DefaultReadableExtensions is the attachment inlining allowlist. Everything
// else is assumed binary or layout-hostile and stays a filename on disk.
func DefaultReadableExtensions() []string {
	return []string{".txt", ".md", ".csv", ".json", ".log", ".yaml", ".yml"}
}

// Writer renders window data into report artifacts under Dir.
type Writer struct {
	Dir      string
	Operator string

	IncludeBody  bool
	BodyMaxLines int

	// InlineAttachments reads allowlisted attachment files from
	// AttachmentsRoot (the cache directory) into the document.
	InlineAttachments  bool
	AttachmentsRoot    string
	ReadableExtensions []string
	MaxAttachmentChars int
}

// ArtifactName builds the deterministic markdown filename for a window:
// <kind>_<anchor-date>.md, with the first filter tag as a suffix when set.
func ArtifactName(kind Kind, anchor time.Time, tags []string) string {
	return baseName(kind, anchor, tags) + ".md"
}

// SeriesName is the JSON sidecar filename for the same window.
func SeriesName(kind Kind, anchor time.Time, tags []string) string {
	return baseName(kind, anchor, tags) + "_series.json"
}

func baseName(kind Kind, anchor time.Time, tags []string) string {
	name := fmt.Sprintf("%s_%s", kind, anchor.UTC().Format("2006-01-02"))
	if len(tags) > 0 {
		if slug := slugify(tags[0]); slug != "" {
			name += "_" + slug
		}
	}
	return name
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	return b.String()
}

// WriteWindow renders the markdown document and its JSON series sidecar.
// Both paths are returned even when only the first write succeeded.
func (w *Writer) WriteWindow(data *WindowData) (mdPath, seriesPath string, err error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", "", &types.RenderError{Path: w.Dir, Err: err}
	}

	mdPath = filepath.Join(w.Dir, ArtifactName(data.Kind, data.Anchor, data.TagFilter))
	if err := pagestore.WriteFileAtomic(mdPath, []byte(w.Document(data))); err != nil {
		return mdPath, "", &types.RenderError{Path: mdPath, Err: err}
	}

	seriesPath = filepath.Join(w.Dir, SeriesName(data.Kind, data.Anchor, data.TagFilter))
	payload, err := json.MarshalIndent(seriesPayload(data), "", "  ")
	if err != nil {
		return mdPath, seriesPath, &types.RenderError{Path: seriesPath, Err: err}
	}
	payload = append(payload, '\n')
	if err := pagestore.WriteFileAtomic(seriesPath, payload); err != nil {
		return mdPath, seriesPath, &types.RenderError{Path: seriesPath, Err: err}
	}

	return mdPath, seriesPath, nil
}

// WriteAnalysis writes the analysis summary JSON next to the reports.
func WriteAnalysis(dir string, res *analyze.Result) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &types.RenderError{Path: dir, Err: err}
	}
	path := filepath.Join(dir, "analysis.json")
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", &types.RenderError{Path: path, Err: err}
	}
	data = append(data, '\n')
	if err := pagestore.WriteFileAtomic(path, data); err != nil {
		return "", &types.RenderError{Path: path, Err: err}
	}
	return path, nil
}

type seriesFile struct {
	Kind         string               `json:"kind"`
	Anchor       string               `json:"anchor"`
	Start        string               `json:"start"`
	End          string               `json:"end"`
	TagFilter    []string             `json:"tag_filter,omitempty"`
	Goals        int                  `json:"goals"`
	Completed    int                  `json:"completed"`
	InProgress   int                  `json:"in_progress"`
	Velocity     []analyze.DayCount   `json:"velocity"`
	StatusCounts map[types.Status]int `json:"status_counts"`
}

func seriesPayload(data *WindowData) seriesFile {
	return seriesFile{
		Kind:         string(data.Kind),
		Anchor:       data.Anchor.Format(time.RFC3339),
		Start:        data.Start.Format(time.RFC3339),
		End:          data.End.Format(time.RFC3339),
		TagFilter:    data.TagFilter,
		Goals:        len(data.Goals),
		Completed:    len(data.Completed),
		InProgress:   len(data.InProgress),
		Velocity:     data.Velocity,
		StatusCounts: data.StatusCounts,
	}
}

// Document renders the full markdown report for one window.
func (w *Writer) Document(data *WindowData) string {
	var b strings.Builder

	dateRange := fmt.Sprintf("%s to %s", data.Start.Format("2006-01-02"), data.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "# %s Status Report: %s\n\n", data.Kind.Title(), dateRange)
	fmt.Fprintf(&b, "Period: %s (%s)\n", dateRange, data.Kind)
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().UTC().Format("2006-01-02"))
	if w.Operator != "" {
		fmt.Fprintf(&b, "Prepared by: %s\n", w.Operator)
	}
	if len(data.TagFilter) > 0 {
		fmt.Fprintf(&b, "Tag filter: %s\n", strings.Join(data.TagFilter, ", "))
	}
	b.WriteString("\n")

	w.section(&b, "To Do", data.Goals, "No goals picked up in this period.")
	if data.GoalsTrimmed {
		b.WriteString("_Goal list trimmed to due-soon and high-priority tasks._\n\n")
	}
	w.section(&b, "Completed Tasks", data.Completed, "No tasks completed in this period.")
	w.section(&b, "In Progress", data.InProgress, "No tasks currently in progress.")

	if len(data.Other) > 0 {
		b.WriteString("## Uncategorized / Other Tasks\n\n")
		b.WriteString("These tasks do not match the standard sections.\n\n")
		w.entries(&b, data.Other)
	}

	w.statusSection(&b, data.StatusCounts)
	w.velocitySection(&b, data.Velocity)

	return b.String()
}

func (w *Writer) section(b *strings.Builder, title string, entries []Entry, emptyLine string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(entries) == 0 {
		b.WriteString(emptyLine + "\n\n")
		return
	}
	w.entries(b, entries)
}

func (w *Writer) entries(b *strings.Builder, entries []Entry) {
	currentGroup := "\x00" // sentinel distinct from any real group
	for _, e := range entries {
		if e.Group != currentGroup {
			currentGroup = e.Group
			group := e.Group
			if group == "" {
				group = "General / No Project"
			}
			fmt.Fprintf(b, "### %s\n\n", group)
		}
		b.WriteString(w.taskLine(e.Task))
		w.taskBody(b, e.Task)
	}
	b.WriteString("\n")
}

func (w *Writer) taskLine(t *types.Task) string {
	var details []string
	if t.Priority != "" && t.Priority != types.PriorityNote {
		details = append(details, string(t.Priority))
	}
	if t.Status == types.StatusDone {
		if done := t.DoneAt(); done != nil {
			details = append(details, "completed "+done.UTC().Format("2006-01-02"))
		}
	} else if t.Due != nil {
		details = append(details, "due "+t.Due.UTC().Format("2006-01-02"))
	}
	if t.MetadataOnly {
		details = append(details, "metadata only")
	}

	line := "- "
	if t.DisplayID > 0 {
		line += fmt.Sprintf("#%d ", t.DisplayID)
	}
	line += t.Title
	if len(details) > 0 {
		line += " (" + strings.Join(details, ", ") + ")"
	}
	return line + "\n"
}

func (w *Writer) taskBody(b *strings.Builder, t *types.Task) {
	if w.IncludeBody {
		maxLines := w.BodyMaxLines
		if maxLines <= 0 {
			maxLines = DefaultBodyMaxLines
		}
		lines := types.FlattenBlocks(t.Blocks)
		if len(lines) > maxLines {
			lines = lines[:maxLines]
		}
		for _, line := range lines {
			fmt.Fprintf(b, "  %s\n", line)
		}
	}
	if w.InlineAttachments {
		for _, f := range t.Files {
			w.inlineAttachment(b, f)
		}
	}
}

// inlineAttachment renders a readable attachment's leading content. Missing
// or unreadable files are skipped; the report must render with whatever is
// on disk.
func (w *Writer) inlineAttachment(b *strings.Builder, f types.FileRef) {
	if f.LocalPath == "" || w.AttachmentsRoot == "" {
		return
	}
	if !w.readable(f.Name) {
		return
	}
	data, err := os.ReadFile(filepath.Join(w.AttachmentsRoot, filepath.FromSlash(f.LocalPath))) // #nosec G304 - cache-relative path
	if err != nil {
		return
	}

	maxChars := w.MaxAttachmentChars
	if maxChars <= 0 {
		maxChars = DefaultMaxAttachmentChars
	}
	content := string(data)
	truncated := false
	if len(content) > maxChars {
		content = content[:maxChars]
		truncated = true
	}

	fmt.Fprintf(b, "  --- Attachment: %s ---\n", f.Name)
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		fmt.Fprintf(b, "  %s\n", line)
	}
	if truncated {
		b.WriteString("  ... [Truncated]\n")
	}
}

func (w *Writer) readable(name string) bool {
	exts := w.ReadableExtensions
	if len(exts) == 0 {
		exts = DefaultReadableExtensions()
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range exts {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (w *Writer) statusSection(b *strings.Builder, counts map[types.Status]int) {
	if len(counts) == 0 {
		return
	}
	b.WriteString("## Status\n\n")
	statuses := make([]string, 0, len(counts))
	for st := range counts {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		fmt.Fprintf(b, "- %s: %d\n", st, counts[types.Status(st)])
	}
	b.WriteString("\n")
}

func (w *Writer) velocitySection(b *strings.Builder, velocity []analyze.DayCount) {
	if len(velocity) == 0 {
		return
	}
	b.WriteString("## Velocity\n\n")
	b.WriteString("| Day | Done |\n|-----|------|\n")
	for _, dc := range velocity {
		fmt.Fprintf(b, "| %s | %d |\n", dc.Day, dc.Count)
	}
	b.WriteString("\n")
}
