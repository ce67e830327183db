// Package config wraps process-wide configuration behind a viper singleton:
// defaults, an optional YAML config file, a local .env and environment
// variables, in ascending precedence. Flags bind on top through BindPFlag.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/taskmill/taskmill/internal/types"
)

// Configuration keys.
const (
	KeyToken      = "notion.token"
	KeyDatabaseID = "notion.database_id"
	KeyBaseURL    = "notion.base_url"
	KeyPageSize   = "notion.page_size"
	KeyTimeout    = "notion.timeout"

	KeyCacheDir    = "cache.dir"
	KeyReportDir   = "report.dir"
	KeyOperator    = "operator"
	KeyMappingFile = "mapping.file"
	KeyTags        = "tags"

	KeyWorkers     = "sync.workers"
	KeyAttachments = "sync.attachments"

	KeyIncludeBody  = "report.include_body"
	KeyIncludeOther = "report.include_other"

	KeyStagnantAfter = "analyze.stagnant_after"
	KeyStagnantLimit = "analyze.stagnant_limit"

	KeyJSON    = "json"
	KeyQuiet   = "quiet"
	KeyVerbose = "verbose"
	KeyNoColor = "no-color"
)

// v is the package-level viper instance. Every getter nil-guards it, so
// reads before Initialize return zero values instead of panicking.
var v *viper.Viper

// Initialize builds the configuration. A local .env is loaded into the
// environment first, then defaults, the config file (explicit path or
// discovery under the user config dir and the working directory) and
// environment variables apply in ascending precedence. Safe to call again;
// the instance is rebuilt from scratch.
func Initialize(cfgFile string) error {
	_ = godotenv.Load()

	vNew := viper.New()
	registerDefaults(vNew)

	vNew.SetEnvPrefix("TM")
	vNew.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vNew.AutomaticEnv()

	// The original tool's env names keep working unprefixed.
	_ = vNew.BindEnv(KeyToken, "TM_NOTION_TOKEN", "NOTION_API_TOKEN")
	_ = vNew.BindEnv(KeyDatabaseID, "TM_NOTION_DATABASE_ID", "NOTION_DATABASE_ID")

	if cfgFile != "" {
		vNew.SetConfigFile(cfgFile)
		if err := vNew.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	} else {
		vNew.SetConfigName("config")
		vNew.SetConfigType("yaml")
		vNew.AddConfigPath(DefaultConfigDir())
		vNew.AddConfigPath(".")
		if err := vNew.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	v = vNew
	return nil
}

func registerDefaults(v *viper.Viper) {
	v.SetDefault(KeyBaseURL, "")
	v.SetDefault(KeyPageSize, 100)
	v.SetDefault(KeyTimeout, 30*time.Second)
	v.SetDefault(KeyCacheDir, ".taskmill")
	v.SetDefault(KeyReportDir, "reports")
	v.SetDefault(KeyOperator, "")
	v.SetDefault(KeyMappingFile, "")
	v.SetDefault(KeyTags, []string{})
	v.SetDefault(KeyWorkers, 4)
	v.SetDefault(KeyAttachments, true)
	v.SetDefault(KeyIncludeBody, false)
	v.SetDefault(KeyIncludeOther, false)
	v.SetDefault(KeyStagnantAfter, "30d")
	v.SetDefault(KeyStagnantLimit, 5)
}

// DefaultConfigDir is where the config file is discovered and written:
// $XDG_CONFIG_HOME/taskmill or the OS equivalent.
func DefaultConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "taskmill")
}

// DefaultConfigFile is the path `tm init` and `tm config set` write to.
func DefaultConfigFile() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// ConfigFileUsed returns the config file the instance was loaded from, or
// empty when running on defaults and environment only.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// BindPFlag routes a cobra/pflag flag into the configuration so a flag set
// on the command line takes precedence over file and environment values.
func BindPFlag(key string, flag *pflag.Flag) error {
	if v == nil {
		return fmt.Errorf("config not initialized")
	}
	return v.BindPFlag(key, flag)
}

// Validate checks the keys every remote operation needs. Purely local
// commands skip it.
func Validate() error {
	if GetString(KeyToken) == "" {
		return &types.ConfigError{Key: KeyToken, Reason: "API token not set (TM_NOTION_TOKEN or NOTION_API_TOKEN)"}
	}
	if GetString(KeyDatabaseID) == "" {
		return &types.ConfigError{Key: KeyDatabaseID, Reason: "database id not set (TM_NOTION_DATABASE_ID or NOTION_DATABASE_ID)"}
	}
	return nil
}

// SaveValues merges values into the config file at path, creating the file
// and its directory on first use. Env vars and defaults are not written.
func SaveValues(path string, values map[string]interface{}) error {
	if path == "" {
		path = DefaultConfigFile()
	}

	fv := viper.New()
	fv.SetConfigFile(path)
	if err := fv.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	for key, value := range values {
		fv.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := fv.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// Get returns the raw value for key, or nil before Initialize.
func Get(key string) interface{} {
	if v == nil {
		return nil
	}
	return v.Get(key)
}

// GetString returns the string value for key, or "" before Initialize.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool returns the bool value for key, or false before Initialize.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt returns the int value for key, or 0 before Initialize.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration returns the duration value for key, or 0 before Initialize.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringSlice returns the slice value for key, or an empty slice before
// Initialize.
func GetStringSlice(key string) []string {
	if v == nil {
		return []string{}
	}
	return v.GetStringSlice(key)
}

// Set overrides a value for the lifetime of the process. No-op before
// Initialize.
func Set(key string, value interface{}) {
	if v == nil {
		return
	}
	v.Set(key, value)
}

// IsSet reports whether key has any non-default value.
func IsSet(key string) bool {
	if v == nil {
		return false
	}
	return v.IsSet(key)
}

// AllSettings returns the merged configuration map, or an empty map before
// Initialize.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
