package normalize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taskmill/taskmill/internal/types"
)

// MappingFile is the on-disk override format for workspaces that renamed
// columns or status options. Absent sections keep the defaults.
//
//	properties:
//	  title: "Task name"
//	  due: "Deadline"
//	status:
//	  "In Review": doing
//	priority:
//	  "P0": critical
type MappingFile struct {
	Properties *PropertyMap      `yaml:"properties,omitempty"`
	Status     map[string]string `yaml:"status,omitempty"`
	Priority   map[string]string `yaml:"priority,omitempty"`
}

// LoadMappingFile parses a mapping override file. A missing path returns
// (nil, nil) so an unset config key costs nothing.
func LoadMappingFile(path string) (*MappingFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 - controlled path from config
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}

	var f MappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing mapping file %s: %w", path, err)
	}
	return &f, nil
}

// ApplyOverrides merges a mapping file into the mapper. Property overrides
// replace names field by field; status and priority entries are added to
// the label maps and must name a canonical value.
func (m *Mapper) ApplyOverrides(f *MappingFile) error {
	if f == nil {
		return nil
	}

	if f.Properties != nil {
		mergeProps(&m.Props, f.Properties)
	}

	for label, value := range f.Status {
		st := types.Status(value)
		if !st.IsValid() {
			return &types.ConfigError{
				Key:    "mapping.status",
				Reason: fmt.Sprintf("%q maps to unknown status %q", label, value),
			}
		}
		m.StatusLabels[normalizeLabel(label)] = st
	}

	for label, value := range f.Priority {
		p := types.Priority(value)
		if !p.IsValid() {
			return &types.ConfigError{
				Key:    "mapping.priority",
				Reason: fmt.Sprintf("%q maps to unknown priority %q", label, value),
			}
		}
		m.PriorityLabels[normalizeLabel(label)] = p
	}

	return nil
}

func mergeProps(dst, src *PropertyMap) {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.DisplayID != "" {
		dst.DisplayID = src.DisplayID
	}
	if src.Status != "" {
		dst.Status = src.Status
	}
	if src.Priority != "" {
		dst.Priority = src.Priority
	}
	if src.Started != "" {
		dst.Started = src.Started
	}
	if src.Completed != "" {
		dst.Completed = src.Completed
	}
	if src.Due != "" {
		dst.Due = src.Due
	}
	if src.Files != "" {
		dst.Files = src.Files
	}
	if src.Parent != "" {
		dst.Parent = src.Parent
	}
	if src.SubItems != "" {
		dst.SubItems = src.SubItems
	}
	if src.Tags != "" {
		dst.Tags = src.Tags
	}
}
