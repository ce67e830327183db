package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/taskmill/taskmill/internal/config"
	"github.com/taskmill/taskmill/internal/configfile"
	"github.com/taskmill/taskmill/internal/normalize"
	"github.com/taskmill/taskmill/internal/notion"
	"github.com/taskmill/taskmill/internal/ui"
)

// Status constants for doctor checks.
const (
	statusOK      = "ok"
	statusWarning = "warning"
	statusError   = "error"
)

type doctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Fix     string `json:"fix,omitempty"`
}

type doctorResult struct {
	Checks    []doctorCheck `json:"checks"`
	OverallOK bool          `json:"overall_ok"`
	Version   string        `json:"version"`
}

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: GroupSetup,
	Short:   "Check configuration and remote schema health",
	Long: `Sanity check the taskmill setup:
  - Config file and credentials (API token, database id)
  - Mapping file overrides, when configured
  - Cache directory metadata (right database, compatible format)
  - Remote database reachability
  - Schema: every configured property exists with the expected type

Exits non-zero when any check fails, so it can gate scripted syncs.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		result := runDoctor()

		if jsonOutput {
			outputJSON(result)
		} else {
			printDoctor(result)
		}
		if !result.OverallOK {
			return fmt.Errorf("doctor found problems")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor() doctorResult {
	var checks []doctorCheck
	add := func(c doctorCheck) { checks = append(checks, c) }

	// Config file
	if path := config.ConfigFileUsed(); path != "" {
		add(doctorCheck{Name: "config file", Status: statusOK, Message: path})
	} else {
		add(doctorCheck{
			Name:    "config file",
			Status:  statusWarning,
			Message: "none found, using defaults and environment",
			Fix:     "run 'tm init' to create " + config.DefaultConfigFile(),
		})
	}

	// Credentials
	token := config.GetString(config.KeyToken)
	if token != "" {
		add(doctorCheck{Name: "API token", Status: statusOK, Message: redact(token)})
	} else {
		add(doctorCheck{
			Name:   "API token",
			Status: statusError,
			Fix:    "set TM_NOTION_TOKEN or NOTION_API_TOKEN, or run 'tm init'",
		})
	}
	databaseID := config.GetString(config.KeyDatabaseID)
	if databaseID != "" {
		add(doctorCheck{Name: "database id", Status: statusOK, Message: databaseID})
	} else {
		add(doctorCheck{
			Name:   "database id",
			Status: statusError,
			Fix:    "set TM_NOTION_DATABASE_ID or NOTION_DATABASE_ID, or run 'tm init'",
		})
	}

	// Mapping overrides
	mapper, err := buildMapper()
	if err != nil {
		add(doctorCheck{Name: "mapping file", Status: statusError, Message: err.Error()})
	} else if path := config.GetString(config.KeyMappingFile); path != "" {
		add(doctorCheck{Name: "mapping file", Status: statusOK, Message: path})
	}

	// Cache directory
	cacheDir := config.GetString(config.KeyCacheDir)
	meta, err := configfile.Load(cacheDir)
	switch {
	case err != nil:
		add(doctorCheck{Name: "cache directory", Status: statusError, Message: err.Error()})
	case meta == nil:
		add(doctorCheck{
			Name:    "cache directory",
			Status:  statusWarning,
			Message: cacheDir + " not initialized",
			Fix:     "run 'tm sync' to create it",
		})
	case databaseID != "" && meta.DatabaseID != "" && meta.DatabaseID != databaseID:
		add(doctorCheck{
			Name:    "cache directory",
			Status:  statusError,
			Message: fmt.Sprintf("%s belongs to database %s", cacheDir, meta.DatabaseID),
			Fix:     "point cache.dir somewhere else or fix notion.database_id",
		})
	default:
		add(doctorCheck{Name: "cache directory", Status: statusOK, Message: cacheDir})
	}

	// Remote schema. Only attempted with credentials in place.
	if token != "" && databaseID != "" && mapper != nil {
		db, err := newClient().Schema(rootCtx)
		if err != nil {
			add(doctorCheck{Name: "remote database", Status: statusError, Message: err.Error()})
		} else {
			name := db.Title.Plain()
			if name == "" {
				name = db.ID
			}
			add(doctorCheck{Name: "remote database", Status: statusOK, Message: name})
			checks = append(checks, schemaChecks(db, mapper.Props)...)
		}
	}

	result := doctorResult{Checks: checks, OverallOK: true, Version: Version}
	for _, c := range checks {
		if c.Status == statusError {
			result.OverallOK = false
		}
	}
	return result
}

// schemaChecks verifies each configured property against the remote schema.
// Title and status are load-bearing (sync output is useless without them);
// everything else degrades gracefully, so mismatches are warnings.
func schemaChecks(db *notion.Database, props normalize.PropertyMap) []doctorCheck {
	type expectation struct {
		name     string
		propType string
		core     bool
	}
	expected := []expectation{
		{props.Title, "title", true},
		{props.Status, "status", true},
		{props.DisplayID, "unique_id", false},
		{props.Priority, "select", false},
		{props.Started, "date", false},
		{props.Completed, "date", false},
		{props.Due, "date", false},
		{props.Files, "files", false},
		{props.Parent, "relation", false},
		{props.SubItems, "relation", false},
		{props.Tags, "multi_select", false},
	}
	sort.Slice(expected, func(i, j int) bool { return expected[i].name < expected[j].name })

	var checks []doctorCheck
	for _, e := range expected {
		if e.name == "" {
			continue
		}
		label := "property " + e.name
		missingStatus := statusWarning
		if e.core {
			missingStatus = statusError
		}

		prop, ok := db.Properties[e.name]
		switch {
		case !ok:
			checks = append(checks, doctorCheck{
				Name:    label,
				Status:  missingStatus,
				Message: "not in schema",
				Fix:     "rename the column or override it in the mapping file",
			})
		case prop.Type != e.propType:
			checks = append(checks, doctorCheck{
				Name:    label,
				Status:  missingStatus,
				Message: fmt.Sprintf("type %s, expected %s", prop.Type, e.propType),
			})
		default:
			checks = append(checks, doctorCheck{Name: label, Status: statusOK, Message: e.propType})
		}
	}
	return checks
}

func printDoctor(result doctorResult) {
	fmt.Printf("tm doctor v%s\n\n", result.Version)

	var pass, warn, fail int
	for _, check := range result.Checks {
		var icon string
		switch check.Status {
		case statusOK:
			icon = ui.PassIcon()
			pass++
		case statusWarning:
			icon = ui.WarnIcon()
			warn++
		default:
			icon = ui.FailIcon()
			fail++
		}
		fmt.Printf("  %s %s", icon, check.Name)
		if check.Message != "" {
			fmt.Print(ui.Muted(" " + check.Message))
		}
		fmt.Println()
		if check.Fix != "" && check.Status != statusOK {
			fmt.Printf("      %s\n", ui.Muted("fix: "+check.Fix))
		}
	}

	fmt.Println()
	fmt.Println(ui.Rule())
	fmt.Printf("%s %d passed  %s %d warnings  %s %d failed\n",
		ui.PassIcon(), pass, ui.WarnIcon(), warn, ui.FailIcon(), fail)
}

// redact shows just enough of a secret to confirm which one is loaded.
func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
