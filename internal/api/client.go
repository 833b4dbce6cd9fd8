package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var httpClient = &http.Client{Timeout: 8 * time.Second}

var ErrDisabled = errors.New("reputation lookup disabled")

// Config holds API configuration
type Config struct {
	BaseURL  string
	CacheTTL time.Duration
}

type cached struct {
	karma int
	at    time.Time
}

// Client looks up a handle's karma on an external service. Results are cached
// per handle for CacheTTL; failures are not cached.
type Client struct {
	config Config
	http   *http.Client
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cached
}

func NewClient(baseURL string) *Client {
	return &Client{
		config: Config{BaseURL: baseURL, CacheTTL: 5 * time.Minute},
		http:   httpClient,
		now:    time.Now,
		cache:  make(map[string]cached),
	}
}

func (c *Client) Enabled() bool { return c != nil && strings.TrimSpace(c.config.BaseURL) != "" }

func (c *Client) apiGet(ctx context.Context, path string, out interface{}) error {
	base := strings.TrimRight(c.config.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type karmaResponse struct {
	Karma *int `json:"karma"`
}

// Reputation returns the karma score for handle.
func (c *Client) Reputation(ctx context.Context, handle string) (int, error) {
	if !c.Enabled() {
		return 0, ErrDisabled
	}
	c.mu.RLock()
	hit, ok := c.cache[handle]
	c.mu.RUnlock()
	if ok && c.now().Sub(hit.at) < c.config.CacheTTL {
		return hit.karma, nil
	}

	var out karmaResponse
	if err := c.apiGet(ctx, "/api/karma/"+url.PathEscape(handle), &out); err != nil {
		return 0, fmt.Errorf("karma for %q: %w", handle, err)
	}
	if out.Karma == nil {
		return 0, fmt.Errorf("karma for %q: missing field", handle)
	}

	c.mu.Lock()
	c.cache[handle] = cached{karma: *out.Karma, at: c.now()}
	c.mu.Unlock()
	return *out.Karma, nil
}
