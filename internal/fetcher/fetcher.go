package fetcher

import (
	"context"
	"net/url"
)

// Fetcher retrieves remote files to local paths.
type Fetcher interface {
	// DownloadToFile GETs rawURL and writes the body to path. Returns bytes written.
	DownloadToFile(ctx context.Context, rawURL, path string) (int64, error)

	// PostFormToFile POSTs form as application/x-www-form-urlencoded and
	// writes the response body to path. Returns bytes written.
	PostFormToFile(ctx context.Context, rawURL string, form url.Values, path string) (int64, error)
}
