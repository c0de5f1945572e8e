package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Opener fetches the raw bytes behind a locator.
type Opener func(ctx context.Context, locator string) (io.ReadCloser, error)

// DefaultOpener resolves http(s) URLs over HTTP, file:// URIs and plain
// paths from the local filesystem.
func DefaultOpener() Opener {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, locator string) (io.ReadCloser, error) {
		u, err := url.Parse(locator)
		if err != nil || len(u.Scheme) <= 1 {
			// Plain path (a one-letter scheme is a Windows drive).
			return os.Open(locator)
		}

		switch u.Scheme {
		case "file":
			return os.Open(u.Path)
		case "http", "https":
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				return nil, fmt.Errorf("unexpected status %s", resp.Status)
			}
			return resp.Body, nil
		default:
			return nil, fmt.Errorf("unsupported locator scheme %q", u.Scheme)
		}
	}
}
