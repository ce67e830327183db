// Package configfile reads and writes the cache directory metadata file.
//
// meta.json records which Notion database a cache directory belongs to and
// which snapshot format version wrote it. Commands consult it before touching
// the cache so that pointing taskmill at a directory populated from a
// different database fails loudly instead of silently merging two task sets.
package configfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taskmill/taskmill/internal/types"
)

const MetaFileName = "meta.json"

// FormatVersion is bumped when the snapshot layout changes incompatibly.
const FormatVersion = 1

type Config struct {
	FormatVersion int       `json:"format_version"`
	DatabaseID    string    `json:"database_id"`
	CreatedAt     time.Time `json:"created_at"`

	// Tool version that created the cache. Informational only.
	CreatedBy string `json:"created_by,omitempty"`
}

func DefaultConfig(databaseID string) *Config {
	return &Config{
		FormatVersion: FormatVersion,
		DatabaseID:    databaseID,
		CreatedAt:     time.Now().UTC(),
	}
}

func MetaPath(cacheDir string) string {
	return filepath.Join(cacheDir, MetaFileName)
}

// Load reads meta.json from cacheDir. A missing file returns (nil, nil) so
// callers can distinguish "never initialized" from a real read error.
func Load(cacheDir string) (*Config, error) {
	data, err := os.ReadFile(MetaPath(cacheDir)) // #nosec G304 - controlled path from config
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache metadata: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing cache metadata: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Save(cacheDir string) error {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache metadata: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(MetaPath(cacheDir), data, 0600); err != nil {
		return fmt.Errorf("writing cache metadata: %w", err)
	}
	return nil
}

// Ensure loads the cache metadata, creating it on first use. It returns a
// ConfigError when the directory already belongs to a different database or
// was written by a newer format version.
func Ensure(cacheDir, databaseID, version string) (*Config, error) {
	cfg, err := Load(cacheDir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultConfig(databaseID)
		cfg.CreatedBy = version
		if err := cfg.Save(cacheDir); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if cfg.DatabaseID != "" && databaseID != "" && cfg.DatabaseID != databaseID {
		return nil, &types.ConfigError{
			Key:    "notion.database_id",
			Reason: fmt.Sprintf("cache directory %s belongs to database %s", cacheDir, cfg.DatabaseID),
		}
	}
	if cfg.FormatVersion > FormatVersion {
		return nil, &types.ConfigError{
			Key:    "cache.dir",
			Reason: fmt.Sprintf("cache format version %d is newer than this build supports (%d)", cfg.FormatVersion, FormatVersion),
		}
	}
	return cfg, nil
}
