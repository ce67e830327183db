package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmill/taskmill/internal/config"
	"github.com/taskmill/taskmill/internal/report"
	"github.com/taskmill/taskmill/internal/timeparse"
	"github.com/taskmill/taskmill/internal/ui"
)

var reportCmd = &cobra.Command{
	Use:       "report [kind]",
	GroupID:   GroupCore,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"daily", "weekly", "biweekly", "monthly", "yearly"},
	Short:     "Write a status report for a time window (default weekly)",
	Long: `Build a report bundle for the window ending at the anchor: a markdown
document (goals, completed work, in-progress tasks, velocity) plus a JSON
series file for trend tooling.

The anchor defaults to now and accepts compact offsets ("-1w"), dates
("2026-03-01") and natural language ("last monday"):

  tm report weekly --anchor -1w      # last week's report
  tm report monthly --anchor "1st"   # month ending at a date
  tm report daily --preview          # render today's to the terminal`,
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := ""
		if len(args) == 1 {
			arg = args[0]
		}
		kind, err := report.ParseKind(arg)
		if err != nil {
			return err
		}

		anchor := time.Now().UTC()
		if expr, _ := cmd.Flags().GetString("anchor"); expr != "" {
			t, err := timeparse.Parse(expr, time.Now())
			if err != nil {
				return fmt.Errorf("parsing --anchor: %w", err)
			}
			anchor = t.UTC()
		}

		tags, _ := cmd.Flags().GetStringSlice("tags")
		if !cmd.Flags().Changed("tags") {
			tags = config.GetStringSlice(config.KeyTags)
		}
		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			outDir = config.GetString(config.KeyReportDir)
		}
		preview, _ := cmd.Flags().GetBool("preview")

		tasks, store, err := loadSnapshot()
		if err != nil {
			return err
		}

		data := report.Window(tasks, kind, anchor, report.Options{
			Tags:         tags,
			IncludeBody:  config.GetBool(config.KeyIncludeBody),
			IncludeOther: config.GetBool(config.KeyIncludeOther),
		})

		writer := &report.Writer{
			Dir:               outDir,
			Operator:          config.GetString(config.KeyOperator),
			IncludeBody:       config.GetBool(config.KeyIncludeBody),
			InlineAttachments: true,
			AttachmentsRoot:   store.Dir(),
		}

		mdPath, seriesPath, err := writer.WriteWindow(data)
		if err != nil {
			return err
		}

		if preview {
			fmt.Print(ui.RenderMarkdown(writer.Document(data)))
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{
				"kind":        string(data.Kind),
				"anchor":      data.Anchor.Format(time.RFC3339),
				"start":       data.Start.Format(time.RFC3339),
				"end":         data.End.Format(time.RFC3339),
				"goals":       len(data.Goals),
				"completed":   len(data.Completed),
				"in_progress": len(data.InProgress),
				"report":      mdPath,
				"series":      seriesPath,
			})
			return nil
		}

		window := fmt.Sprintf("%s to %s", data.Start.Format("2006-01-02"), data.End.Format("2006-01-02"))
		info(fmt.Sprintf("%s %s report for %s", ui.PassIcon(), kind, window))
		info(fmt.Sprintf("  %d goals, %d completed, %d in progress", len(data.Goals), len(data.Completed), len(data.InProgress)))
		if data.GoalsTrimmed {
			info(ui.Muted("  goal list trimmed to due-soon and high-priority tasks"))
		}
		info("  " + ui.Muted(mdPath))
		info("  " + ui.Muted(seriesPath))
		return nil
	},
}

func init() {
	reportCmd.Flags().String("anchor", "", "Window end: compact (-1w), date (2026-03-01) or natural language")
	reportCmd.Flags().StringSlice("tags", nil, "Restrict to tasks carrying any of these tags")
	reportCmd.Flags().String("out", "", "Output directory (default from config)")
	reportCmd.Flags().Bool("preview", false, "Render the document to the terminal")
	rootCmd.AddCommand(reportCmd)
}
