package fetch

import (
	"context"

	"github.com/taskmill/taskmill/internal/notion"
)

// Source is the remote boundary the engine pulls from. The notion.Client
// satisfies it; tests and the telemetry decorator wrap it.
type Source interface {
	// ListRecords returns one page of database records plus the cursor for
	// the next page; an empty cursor ends pagination.
	ListRecords(ctx context.Context, cursor string) ([]notion.Record, string, error)

	// BlockTree returns the full nested content of a page.
	BlockTree(ctx context.Context, pageID string) ([]notion.Block, error)

	// Comments returns the page's discussion thread.
	Comments(ctx context.Context, pageID string) ([]notion.Comment, error)

	// DownloadFile fetches one attachment body.
	DownloadFile(ctx context.Context, fileURL string) ([]byte, error)
}
