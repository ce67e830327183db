package pagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/taskmill/taskmill/internal/types"
)

// invalidFilenameChars are replaced with "_" before a remote attachment
// name touches the filesystem.
const invalidFilenameChars = `<>:"/\|?*`

const maxFilenameLen = 255

// SanitizeFilename makes a remote attachment name safe as a single path
// element. Empty names become "unnamed".
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidFilenameChars, r) || r < 0x20 {
			return '_'
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		cleaned = "unnamed"
	}
	if len(cleaned) > maxFilenameLen {
		cleaned = cleaned[:maxFilenameLen]
	}
	return cleaned
}

// attachmentFolder names the per-task directory. The human-facing display
// ID is preferred; tasks without one fall back to the opaque record ID.
func attachmentFolder(t *types.Task) string {
	if t.DisplayID > 0 {
		return strconv.Itoa(t.DisplayID)
	}
	return SanitizeFilename(t.ID)
}

// WriteAttachment stores one downloaded file under attachments/<task>/<name>
// and returns its path relative to the cache directory. Relative paths keep
// the snapshot portable when the cache directory moves.
func (s *Store) WriteAttachment(t *types.Task, name string, data []byte) (string, error) {
	rel := filepath.Join(AttachmentsDir, attachmentFolder(t), SanitizeFilename(name))
	abs := filepath.Join(s.dir, rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", fmt.Errorf("creating attachment directory: %w", err)
	}
	if err := WriteFileAtomic(abs, data); err != nil {
		return "", fmt.Errorf("writing attachment %s: %w", name, err)
	}
	return filepath.ToSlash(rel), nil
}

// AttachmentPath resolves a snapshot-relative attachment path to an
// absolute one.
func (s *Store) AttachmentPath(rel string) string {
	return filepath.Join(s.dir, filepath.FromSlash(rel))
}

// HasAttachment reports whether a previously recorded attachment is still
// present on disk.
func (s *Store) HasAttachment(rel string) bool {
	if rel == "" {
		return false
	}
	info, err := os.Stat(s.AttachmentPath(rel))
	return err == nil && info.Mode().IsRegular()
}
