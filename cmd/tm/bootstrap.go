package main

import (
	"errors"
	"fmt"

	"github.com/taskmill/taskmill/internal/config"
	"github.com/taskmill/taskmill/internal/normalize"
	"github.com/taskmill/taskmill/internal/notion"
	"github.com/taskmill/taskmill/internal/pagestore"
	"github.com/taskmill/taskmill/internal/types"
)

// newClient builds the Notion client from configuration. Validate must have
// passed before any call is made.
func newClient() *notion.Client {
	client := notion.NewClient(
		config.GetString(config.KeyBaseURL),
		config.GetString(config.KeyToken),
		config.GetString(config.KeyDatabaseID),
	)
	if size := config.GetInt(config.KeyPageSize); size > 0 {
		client.PageSize = size
	}
	if timeout := config.GetDuration(config.KeyTimeout); timeout > 0 {
		client.HTTPClient.Timeout = timeout
	}
	return client
}

// buildMapper creates the property mapper, with overrides from the mapping
// file when one is configured.
func buildMapper() (*normalize.Mapper, error) {
	m := normalize.NewMapper()
	m.OnWarning = func(msg string) { warnf("%s", msg) }

	path := config.GetString(config.KeyMappingFile)
	if path == "" {
		return m, nil
	}
	overrides, err := normalize.LoadMappingFile(path)
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		warnf("mapping file %s not found, using defaults", path)
		return m, nil
	}
	if err := m.ApplyOverrides(overrides); err != nil {
		return nil, err
	}
	verbosef("applied mapping overrides from %s", path)
	return m, nil
}

// loadSnapshot opens the cache and reads the current task snapshot. A cache
// that has never been synced gets a pointed hint instead of a raw ENOENT.
func loadSnapshot() (map[string]*types.Task, *pagestore.Store, error) {
	store := pagestore.New(config.GetString(config.KeyCacheDir))
	tasks, err := store.LoadSnapshot()
	if errors.Is(err, types.ErrNotInitialized) {
		return nil, nil, fmt.Errorf("no task snapshot in %s; run 'tm sync' first", store.Dir())
	}
	if err != nil {
		return nil, nil, err
	}
	return tasks, store, nil
}
