// Package metadata fetches content metadata (names, posters, episode
// lists) from a Cinemeta-compatible service. Responses are cached:
// metadata is stable, unlike stream results which are always fetched
// fresh.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"streamdock/pkg/logger"
)

const cacheSize = 256

// Meta is one content item's metadata.
type Meta struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Poster      string   `json:"poster,omitempty"`
	Background  string   `json:"background,omitempty"`
	Logo        string   `json:"logo,omitempty"`
	Description string   `json:"description,omitempty"`
	ReleaseInfo string   `json:"releaseInfo,omitempty"`
	IMDbRating  string   `json:"imdbRating,omitempty"`
	Runtime     string   `json:"runtime,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Videos      []Video  `json:"videos,omitempty"`
}

// Video is one playable video of a meta item (an episode for series).
type Video struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Title     string     `json:"title,omitempty"`
	Season    int        `json:"season"`
	Episode   int        `json:"episode"`
	Number    int        `json:"number,omitempty"`
	Released  *time.Time `json:"released,omitempty"`
	Overview  string     `json:"overview,omitempty"`
	Thumbnail string     `json:"thumbnail,omitempty"`
}

// DisplayName returns the episode title. Services disagree on the field
// name.
func (v Video) DisplayName() string {
	if v.Name != "" {
		return v.Name
	}
	return v.Title
}

// EpisodeNumber tolerates services that publish number instead of
// episode.
func (v Video) EpisodeNumber() int {
	if v.Episode != 0 {
		return v.Episode
	}
	return v.Number
}

type metaResponse struct {
	Meta Meta `json:"meta"`
}

// Client queries a Cinemeta-compatible metadata service.
type Client struct {
	baseURL string
	client  *http.Client
	cache   *expirable.LRU[string, *Meta]
	mu      sync.RWMutex
}

// NewClient creates a metadata client. Lookups are cached for ttl.
func NewClient(baseURL string, ttl time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: expirable.NewLRU[string, *Meta](cacheSize, nil, ttl),
	}
}

// SetBaseURL swaps the metadata service and purges the cache. Wired to
// config updates.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	changed := c.baseURL != baseURL
	c.baseURL = baseURL
	c.mu.Unlock()
	if changed {
		c.cache.Purge()
		logger.Info("Metadata service changed", "url", baseURL)
	}
}

// Meta fetches metadata for one content item.
func (c *Client) Meta(ctx context.Context, contentType, metaID string) (*Meta, error) {
	key := contentType + ":" + metaID
	if m, ok := c.cache.Get(key); ok {
		return m, nil
	}

	c.mu.RLock()
	base := c.baseURL
	c.mu.RUnlock()

	reqURL := fmt.Sprintf("%s/meta/%s/%s.json", base, url.PathEscape(contentType), url.PathEscape(metaID))
	logger.Debug("Metadata request", "url", reqURL)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata service returned status %d for %s/%s", resp.StatusCode, contentType, metaID)
	}

	var result metaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}
	if result.Meta.ID == "" {
		return nil, fmt.Errorf("no metadata for %s/%s", contentType, metaID)
	}

	meta := result.Meta
	c.cache.Add(key, &meta)
	return &meta, nil
}

// Video finds a video of the meta item by id.
func (m *Meta) Video(videoID string) (Video, bool) {
	for _, v := range m.Videos {
		if v.ID == videoID {
			return v, true
		}
	}
	return Video{}, false
}
