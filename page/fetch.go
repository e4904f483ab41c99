package page

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// UserAgent identifies pagecat on plain HTTP fetches.
const UserAgent = "pagecat/1.0 (feed extraction)"

// FetchSnapshot fetches a page over HTTP and parses it. No script runs, so
// the result only contains server-rendered markup and has no layout
// information.
func FetchSnapshot(ctx context.Context, pageURL string) (*Snapshot, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	return NewSnapshot(resp.Body, resp.Request.URL.String())
}

// LoadSnapshot reads a saved HTML file. base, when non-empty, is the URL the
// page was saved from.
func LoadSnapshot(path, base string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	return NewSnapshot(f, base)
}

// OpenSnapshot fetches target when it is an http(s) URL and otherwise reads
// it as a local file.
func OpenSnapshot(ctx context.Context, target string) (*Snapshot, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return FetchSnapshot(ctx, target)
	}
	return LoadSnapshot(target, "")
}
