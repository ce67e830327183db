package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/taskmill/taskmill/internal/config"
	"github.com/taskmill/taskmill/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: GroupSetup,
	Short:   "Interactive setup: credentials, database, cache location",
	Long: `Walk through the initial setup in an interactive form and write the
config file. Existing values are pre-filled, so 'tm init' also works for
editing a setup in place.

The token needs read access to the task database (a Notion internal
integration shared with it). Non-interactive environments should set
TM_NOTION_TOKEN and TM_NOTION_DATABASE_ID instead.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !ui.IsTerminal() {
			return fmt.Errorf("init needs an interactive terminal; set TM_NOTION_TOKEN and TM_NOTION_DATABASE_ID instead")
		}

		token := config.GetString(config.KeyToken)
		databaseID := config.GetString(config.KeyDatabaseID)
		operator := config.GetString(config.KeyOperator)
		cacheDir := config.GetString(config.KeyCacheDir)

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Notion API token").
					Description("Internal integration secret with read access to the database").
					EchoMode(huh.EchoModePassword).
					Value(&token).
					Validate(required("token")),

				huh.NewInput().
					Title("Database ID").
					Description("32-character id from the database URL").
					Placeholder("e.g. 2f26ee68df10452b8f64bcf5ed1b45bb").
					Value(&databaseID).
					Validate(required("database id")),

				huh.NewInput().
					Title("Operator name").
					Description("Shown as 'Prepared by' in report headers (optional)").
					Value(&operator),

				huh.NewInput().
					Title("Cache directory").
					Description("Where snapshots and attachments live").
					Value(&cacheDir),

				huh.NewConfirm().
					Title("Write config?").
					Affirmative("Save").
					Negative("Cancel"),
			),
		)

		if err := form.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				info("setup cancelled")
				return nil
			}
			return fmt.Errorf("form error: %w", err)
		}

		path := cfgFile
		if path == "" {
			path = config.ConfigFileUsed()
		}
		if path == "" {
			path = config.DefaultConfigFile()
		}

		values := map[string]interface{}{
			config.KeyToken:      strings.TrimSpace(token),
			config.KeyDatabaseID: strings.TrimSpace(databaseID),
			config.KeyOperator:   strings.TrimSpace(operator),
		}
		if dir := strings.TrimSpace(cacheDir); dir != "" {
			values[config.KeyCacheDir] = dir
		}
		if err := config.SaveValues(path, values); err != nil {
			return err
		}

		info(fmt.Sprintf("%s wrote %s", ui.PassIcon(), path))
		info(ui.Muted("next: 'tm doctor' to verify the setup, then 'tm sync'"))
		return nil
	},
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
}
