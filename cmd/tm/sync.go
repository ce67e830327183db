package main

import (
	"github.com/spf13/cobra"

	"github.com/taskmill/taskmill/internal/config"
	"github.com/taskmill/taskmill/internal/configfile"
	"github.com/taskmill/taskmill/internal/fetch"
	"github.com/taskmill/taskmill/internal/pagestore"
	"github.com/taskmill/taskmill/internal/telemetry"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: GroupCore,
	Short:   "Fetch changed tasks from Notion into the local cache",
	Long: `Synchronize the local cache with the remote task database:
1. List all records (metadata only)
2. Diff against per-task watermarks to find what changed
3. Fetch content, comments and attachments for changed tasks only
4. Persist the snapshot, then advance watermarks

An interrupted sync keeps everything fetched so far; the next run picks up
the remainder. Use --full to ignore watermarks and refetch everything.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		full, _ := cmd.Flags().GetBool("full")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		limit, _ := cmd.Flags().GetInt("limit")
		workers, _ := cmd.Flags().GetInt("workers")
		noAttachments, _ := cmd.Flags().GetBool("no-attachments")

		if !cmd.Flags().Changed("workers") {
			workers = config.GetInt(config.KeyWorkers)
		}
		attachments := !noAttachments
		if !cmd.Flags().Changed("no-attachments") {
			attachments = config.GetBool(config.KeyAttachments)
		}

		if err := config.Validate(); err != nil {
			return err
		}

		cacheDir := config.GetString(config.KeyCacheDir)
		databaseID := config.GetString(config.KeyDatabaseID)
		if _, err := configfile.Ensure(cacheDir, databaseID, Version); err != nil {
			return err
		}

		store := pagestore.New(cacheDir)
		if err := store.Init(); err != nil {
			return err
		}
		lock, err := store.Lock(Version)
		if err != nil {
			return err
		}
		defer func() { _ = lock.Release() }()

		mapper, err := buildMapper()
		if err != nil {
			return err
		}

		engine := fetch.NewEngine(telemetry.WrapSource(newClient()), store, mapper)
		engine.OnMessage = info
		engine.OnWarning = func(msg string) { warnf("%s", msg) }

		result, err := engine.Sync(rootCtx, fetch.Options{
			Full:            full,
			DryRun:          dryRun,
			Limit:           limit,
			Workers:         workers,
			SkipAttachments: !attachments,
		})
		if jsonOutput && result != nil {
			outputJSON(result)
		}
		return err
	},
}

func init() {
	syncCmd.Flags().Bool("full", false, "Refetch every task, ignoring watermarks")
	syncCmd.Flags().Bool("dry-run", false, "Show what would be fetched without writing anything")
	syncCmd.Flags().Int("limit", 0, "Stop listing after N records (0 = no limit)")
	syncCmd.Flags().Int("workers", 0, "Concurrent content fetches (default from config)")
	syncCmd.Flags().Bool("no-attachments", false, "Skip attachment downloads")
	rootCmd.AddCommand(syncCmd)
}
