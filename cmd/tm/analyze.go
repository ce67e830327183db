package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmill/taskmill/internal/analyze"
	"github.com/taskmill/taskmill/internal/config"
	"github.com/taskmill/taskmill/internal/report"
	"github.com/taskmill/taskmill/internal/timeparse"
	"github.com/taskmill/taskmill/internal/types"
	"github.com/taskmill/taskmill/internal/ui"
)

const bodyPreviewLines = 3

var analyzeCmd = &cobra.Command{
	Use:     "analyze",
	GroupID: GroupCore,
	Short:   "Classify cached tasks into actionable buckets",
	Long: `Classify every cached task by urgency: Immediate (due within 48 hours,
overdue, or critical), This Week (due within 7 days), or Backlog. Also
reports overdue and stagnant tasks, active projects, and completion trends.

Analysis reads only the local cache; run 'tm sync' first to refresh it.
The summary is written to <report-dir>/analysis.json alongside the styled
terminal output.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tags, _ := cmd.Flags().GetStringSlice("tags")
		if !cmd.Flags().Changed("tags") {
			tags = config.GetStringSlice(config.KeyTags)
		}
		showBody, _ := cmd.Flags().GetBool("body")
		if !cmd.Flags().Changed("body") {
			showBody = config.GetBool(config.KeyIncludeBody)
		}
		stagnantExpr, _ := cmd.Flags().GetString("stagnant-after")
		if !cmd.Flags().Changed("stagnant-after") {
			stagnantExpr = config.GetString(config.KeyStagnantAfter)
		}
		stagnantAfter, err := timeparse.ParseThreshold(stagnantExpr)
		if err != nil {
			return fmt.Errorf("parsing --stagnant-after: %w", err)
		}

		tasks, _, err := loadSnapshot()
		if err != nil {
			return err
		}

		result := analyze.Analyze(tasks, time.Now().UTC(), analyze.Options{
			Tags:          tags,
			StagnantAfter: stagnantAfter,
			StagnantLimit: config.GetInt(config.KeyStagnantLimit),
		})

		path, err := report.WriteAnalysis(config.GetString(config.KeyReportDir), result)
		if err != nil {
			return err
		}
		verbosef("analysis written to %s", path)

		if jsonOutput {
			outputJSON(result)
			return nil
		}
		printAnalysis(result, tasks, path, showBody)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringSlice("tags", nil, "Restrict to tasks carrying any of these tags")
	analyzeCmd.Flags().Bool("body", false, "Show the first lines of task content under each entry")
	analyzeCmd.Flags().String("stagnant-after", "", "Unedited-for threshold before a task is called out (e.g. 30d, 2w)")
	rootCmd.AddCommand(analyzeCmd)
}

func printAnalysis(res *analyze.Result, tasks map[string]*types.Task, path string, showBody bool) {
	title := fmt.Sprintf("Task Analysis: %d tasks", res.Total)
	if len(res.TagFilter) > 0 {
		title += fmt.Sprintf(" tagged %s", strings.Join(res.TagFilter, ", "))
	}
	fmt.Println(ui.Header(title))
	fmt.Println(ui.Rule())

	printBucket("Immediate", ui.FailIcon(), res.Immediate, tasks, showBody)
	printBucket("This Week", ui.WarnIcon(), res.ThisWeek, tasks, showBody)
	printBucket("Backlog", ui.SkipIcon(), res.Backlog, tasks, false)

	if len(res.Overdue) > 0 {
		fmt.Printf("%s %s\n", ui.Fail("Overdue:"), joinTaskLabels(res.Overdue, tasks))
	}
	if len(res.Stagnant) > 0 {
		fmt.Printf("%s %s\n", ui.Warn("Stagnant:"), joinTaskLabels(res.Stagnant, tasks))
	}
	if len(res.ActiveProjects) > 0 {
		fmt.Printf("%s %s\n", ui.Accent("Active projects:"), joinTaskLabels(res.ActiveProjects, tasks))
	}

	fmt.Println()
	fmt.Println(statusLine(res.StatusCounts))
	if line := seriesLine("Velocity", res.Velocity); line != "" {
		fmt.Println(line)
	}
	if line := seriesLine("Intake", res.Intake); line != "" {
		fmt.Println(line)
	}

	for _, id := range res.Excluded {
		if t := tasks[id]; t != nil {
			warnf("excluded %s: %s", taskLabel(t), t.Invalid)
		}
	}
	if len(res.Degraded) > 0 {
		warnf("%d task(s) are metadata-only; run 'tm sync' to retry their content", len(res.Degraded))
	}

	fmt.Println()
	fmt.Println(ui.Muted("summary written to " + path))
}

func printBucket(title, icon string, ids []string, tasks map[string]*types.Task, showBody bool) {
	fmt.Printf("%s %s\n", ui.Header(title), ui.Muted(fmt.Sprintf("(%d)", len(ids))))
	for _, id := range ids {
		t := tasks[id]
		if t == nil {
			continue
		}
		fmt.Printf("  %s %s\n", icon, taskSummary(t))
		if showBody {
			for _, line := range bodyExcerpt(t) {
				fmt.Println(ui.Muted("      " + line))
			}
		}
	}
	fmt.Println()
}

// taskLabel is the short handle for a task: its display id when it has one,
// otherwise the truncated title.
func taskLabel(t *types.Task) string {
	if t.DisplayID > 0 {
		return fmt.Sprintf("#%d", t.DisplayID)
	}
	return ui.Truncate(t.Title, 32)
}

func taskSummary(t *types.Task) string {
	label := t.Title
	if t.DisplayID > 0 {
		label = fmt.Sprintf("#%d %s", t.DisplayID, t.Title)
	}

	var details []string
	if t.Priority != "" && t.Priority != types.PriorityNote {
		details = append(details, string(t.Priority))
	}
	if t.Due != nil {
		details = append(details, "due "+t.Due.UTC().Format("2006-01-02"))
	}
	if t.MetadataOnly {
		details = append(details, "metadata only")
	}
	if len(details) > 0 {
		label += " " + ui.Muted("("+strings.Join(details, ", ")+")")
	}
	return label
}

func joinTaskLabels(ids []string, tasks map[string]*types.Task) string {
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		if t := tasks[id]; t != nil {
			labels = append(labels, taskLabel(t))
		}
	}
	return strings.Join(labels, ", ")
}

func bodyExcerpt(t *types.Task) []string {
	lines := types.FlattenBlocks(t.Blocks)
	if len(lines) > bodyPreviewLines {
		lines = lines[:bodyPreviewLines]
	}
	return lines
}

// statusLine renders status counts most-active-first, e.g.
// "Status: 4 doing, 9 to_do, 31 done".
func statusLine(counts map[types.Status]int) string {
	order := []types.Status{
		types.StatusDoing, types.StatusToDo, types.StatusPaused,
		types.StatusNotes, types.StatusDone, types.StatusCanceled,
		types.StatusDuplicate,
	}
	var parts []string
	for _, st := range order {
		if n := counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, st))
		}
	}
	if len(parts) == 0 {
		return ui.Muted("Status: no tasks")
	}
	return ui.Accent("Status: ") + strings.Join(parts, ", ")
}

// seriesLine renders a per-day count series as a compact sparkline-ish row.
func seriesLine(name string, series []analyze.DayCount) string {
	if len(series) == 0 {
		return ""
	}
	counts := make([]string, len(series))
	for i, dc := range series {
		counts[i] = fmt.Sprintf("%d", dc.Count)
	}
	return ui.Accent(name+" ("+series[0].Day+" on): ") + strings.Join(counts, " ")
}
