package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmill/taskmill/internal/config"
	"github.com/taskmill/taskmill/internal/ui"
)

// knownKeys maps every supported config key to a short description, used for
// 'config list' annotations and to catch typos in 'config set'.
var knownKeys = map[string]string{
	config.KeyToken:         "Notion API token",
	config.KeyDatabaseID:    "task database id",
	config.KeyBaseURL:       "API base URL override (testing)",
	config.KeyPageSize:      "records per list page",
	config.KeyTimeout:       "HTTP timeout",
	config.KeyCacheDir:      "snapshot and attachment directory",
	config.KeyReportDir:     "report output directory",
	config.KeyOperator:      "name in report headers",
	config.KeyMappingFile:   "property/label override file",
	config.KeyTags:          "default tag filter",
	config.KeyWorkers:       "concurrent content fetches",
	config.KeyAttachments:   "download attachments",
	config.KeyIncludeBody:   "inline task content in reports",
	config.KeyIncludeOther:  "include the uncategorized report section",
	config.KeyStagnantAfter: "unedited-for threshold (e.g. 30d)",
	config.KeyStagnantLimit: "max stagnant tasks listed",
	config.KeyJSON:          "default to JSON output",
	config.KeyQuiet:         "default to quiet output",
	config.KeyVerbose:       "default to verbose output",
	config.KeyNoColor:       "default to unstyled output",
}

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupSetup,
	Short:   "Inspect and edit configuration values",
	Long: `Manage the config file. Values resolve in order: command-line flags,
TM_* environment variables, the config file, built-in defaults.

Examples:
  tm config set notion.database_id 2f26ee68df10452b8f64bcf5ed1b45bb
  tm config set report.dir ~/reports
  tm config get cache.dir
  tm config list`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := config.Get(key)
		if value == nil {
			return fmt.Errorf("unknown config key %q", key)
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"key": key, "value": value})
			return nil
		}
		fmt.Println(formatValue(value))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write one value to the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if _, ok := knownKeys[key]; !ok {
			return fmt.Errorf("unknown config key %q; see 'tm config list'", key)
		}

		path := cfgFile
		if path == "" {
			path = config.ConfigFileUsed()
		}
		if err := config.SaveValues(path, map[string]interface{}{key: value}); err != nil {
			return err
		}
		if path == "" {
			path = config.DefaultConfigFile()
		}

		if jsonOutput {
			outputJSON(map[string]string{"key": key, "value": value, "file": path})
			return nil
		}
		info(fmt.Sprintf("set %s = %s in %s", key, value, path))
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if jsonOutput {
			settings := config.AllSettings()
			redactSettings(settings)
			outputJSON(settings)
			return nil
		}

		if path := config.ConfigFileUsed(); path != "" {
			fmt.Println(ui.Muted("config file: " + path))
		} else {
			fmt.Println(ui.Muted("config file: none (defaults + environment)"))
		}
		fmt.Println()

		keys := make([]string, 0, len(knownKeys))
		for key := range knownKeys {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := formatValue(config.Get(key))
			if key == config.KeyToken && value != "" {
				value = redact(value)
			}
			if value == "" {
				value = ui.Muted("(unset)")
			}
			fmt.Printf("  %-24s %-22s %s\n", key, value, ui.Muted(knownKeys[key]))
		}
		return nil
	},
}

func formatValue(value interface{}) string {
	switch val := value.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(val, ",")
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// redactSettings masks the token in a nested settings map in place.
func redactSettings(settings map[string]interface{}) {
	section, ok := settings["notion"].(map[string]interface{})
	if !ok {
		return
	}
	if token, ok := section["token"].(string); ok && token != "" {
		section["token"] = redact(token)
	}
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}
