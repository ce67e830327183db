package pagestore

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/taskmill/taskmill/internal/types"
)

// csvHeader defines the flat snapshot columns. Multi-valued fields are
// joined with ";" which the remote database never allows in IDs or tags.
var csvHeader = []string{
	"id", "display_id", "title", "status", "priority",
	"started", "completed", "due", "created_at", "updated_at",
	"parent_id", "subitem_ids", "tags", "active_tags",
	"files", "url", "metadata_only", "invalid",
}

func (s *Store) writeCSV(list []*types.Task) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range list {
		if err := w.Write(csvRow(t)); err != nil {
			return fmt.Errorf("encoding row for %s: %w", t.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return WriteFileAtomic(s.SnapshotCSVPath(), buf.Bytes())
}

func csvRow(t *types.Task) []string {
	files := make([]string, 0, len(t.Files))
	for _, f := range t.Files {
		files = append(files, f.Name)
	}
	return []string{
		t.ID,
		csvInt(t.DisplayID),
		t.Title,
		string(t.Status),
		string(t.Priority),
		csvTime(t.Started),
		csvTime(t.Completed),
		csvTime(t.Due),
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.UpdatedAt.UTC().Format(time.RFC3339),
		t.ParentID,
		strings.Join(t.SubItemIDs, ";"),
		strings.Join(t.Tags, ";"),
		strings.Join(t.ActiveTags, ";"),
		strings.Join(files, ";"),
		t.URL,
		csvBool(t.MetadataOnly),
		t.Invalid,
	}
}

func csvInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func csvTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func csvBool(b bool) string {
	if b {
		return "true"
	}
	return ""
}
