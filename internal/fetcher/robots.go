package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

type RobotsCache struct {
	cache     map[string]*robotsEntry
	ttl       time.Duration
	userAgent string
	mu        sync.RWMutex
}

// robotsEntry is one host's parsed robots.txt. A nil data allows everything.
type robotsEntry struct {
	data      *robotstxt.RobotsData
	expiresAt time.Time
}

func NewRobotsCache(ttl time.Duration, userAgent string) *RobotsCache {
	return &RobotsCache{
		cache:     make(map[string]*robotsEntry),
		ttl:       ttl,
		userAgent: userAgent,
	}
}

// IsAllowed fetches and caches robots.txt per host. Unreachable robots.txt
// allows everything; status codes follow robotstxt.FromStatusAndBytes (4xx
// allows all, 5xx disallows all and is not cached).
func (rc *RobotsCache) IsAllowed(ctx context.Context, target *url.URL, client *http.Client) (bool, error) {
	host := target.Host

	rc.mu.RLock()
	cached, exists := rc.cache[host]
	rc.mu.RUnlock()

	if exists && time.Now().Before(cached.expiresAt) {
		return cached.allows(target.RequestURI(), rc.userAgent), nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", target.Scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return true, nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return true, nil
	}
	entry := newRobotsEntry(resp.StatusCode, body, rc.ttl)

	if resp.StatusCode < http.StatusInternalServerError {
		rc.mu.Lock()
		rc.cache[host] = entry
		rc.mu.Unlock()
	}

	return entry.allows(target.RequestURI(), rc.userAgent), nil
}

func newRobotsEntry(status int, body []byte, ttl time.Duration) *robotsEntry {
	entry := &robotsEntry{expiresAt: time.Now().Add(ttl)}
	if data, err := robotstxt.FromStatusAndBytes(status, body); err == nil {
		entry.data = data
	}
	return entry
}

func (e *robotsEntry) allows(path, userAgent string) bool {
	if e.data == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	return e.data.TestAgent(path, userAgent)
}
