package stremio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"streamdock/pkg/logger"
)

const userAgent = "streamdock/0.1"

// Client is an HTTP client for the addon transport protocol. One client
// is shared across all installed addons.
type Client struct {
	client *http.Client
}

// NewClient creates the addon transport client
func NewClient() *Client {
	// TLS skip verify for self-signed certs (common on self-hosted addon gateways)
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
	}

	// Some addon gateways set session cookies on a redirect before
	// serving responses; a jar keeps those across calls.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		jar = nil
	}

	return &Client{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
			Jar:       jar,
		},
	}
}

// BaseURL strips a trailing /manifest.json from a transport URL. Addons
// are advertised by their manifest URL; resources hang off its parent.
func BaseURL(transportURL string) string {
	u := strings.TrimRight(transportURL, "/")
	u = strings.TrimSuffix(u, "/manifest.json")
	return u
}

// ManifestURL normalizes a user-supplied addon URL to its manifest URL.
// Accepts stremio:// URLs as pasted from addon catalogs.
func ManifestURL(raw string) string {
	u := strings.TrimSpace(raw)
	if strings.HasPrefix(u, "stremio://") {
		u = "https://" + strings.TrimPrefix(u, "stremio://")
	}
	if !strings.HasSuffix(u, "/manifest.json") {
		u = strings.TrimRight(u, "/") + "/manifest.json"
	}
	return u
}

// Manifest fetches and validates an addon manifest.
func (c *Client) Manifest(ctx context.Context, transportURL string) (*Manifest, error) {
	manifestURL := ManifestURL(transportURL)

	body, err := c.get(ctx, manifestURL)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest from %s: %w", manifestURL, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Streams fetches stream candidates for a content item from one addon.
// contentID may contain colons (series video ids like tt123:1:2).
func (c *Client) Streams(ctx context.Context, transportURL, contentType, contentID string) ([]Stream, error) {
	streamURL := fmt.Sprintf("%s/stream/%s/%s.json",
		BaseURL(transportURL), url.PathEscape(contentType), url.PathEscape(contentID))
	logger.Debug("Addon stream request", "url", streamURL)

	body, err := c.get(ctx, streamURL)
	if err != nil {
		return nil, err
	}

	var resp StreamResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse streams from %s: %w", streamURL, err)
	}
	return resp.Streams, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", rawURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", rawURL, resp.StatusCode)
	}
	return body, nil
}
