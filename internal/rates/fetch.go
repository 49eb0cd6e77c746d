package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFeedBytes bounds the body read from an upstream feed.
const maxFeedBytes = 1 << 20

// NewHTTPClient creates the client used for upstream feeds. Proxies come
// from the environment.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// FetchFeed GETs url and decodes the body as a feed.
func FetchFeed(ctx context.Context, client *http.Client, url string) (*Feed, error) {
	if client == nil {
		client = NewHTTPClient(30 * time.Second)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %s", resp.Status)
	}

	var f Feed
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return &f, nil
}
