package stremio

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"streamdock/pkg/logger"
)

func TestClientManifest(t *testing.T) {
	logger.Init("ERROR")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/manifest.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "org.example.streams",
			"version": "1.2.3",
			"name": "Example Streams",
			"description": "test addon",
			"resources": ["catalog", {"name": "stream", "types": ["movie", "series"]}],
			"types": ["movie", "series"]
		}`)
	}))
	defer server.Close()

	client := NewClient()
	m, err := client.Manifest(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Manifest failed: %v", err)
	}

	if m.ID != "org.example.streams" {
		t.Errorf("Expected id org.example.streams, got %s", m.ID)
	}
	if !m.HasResource(ResourceStream) {
		t.Error("Expected stream resource to be recognized from object form")
	}
	if !m.HasResource("catalog") {
		t.Error("Expected catalog resource to be recognized from string form")
	}
	if !m.SupportsType("series") {
		t.Error("Expected series type support")
	}
}

func TestClientManifestInvalid(t *testing.T) {
	logger.Init("ERROR")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"version": "1.0.0"}`)
	}))
	defer server.Close()

	client := NewClient()
	if _, err := client.Manifest(context.Background(), server.URL); err == nil {
		t.Error("Expected validation error for manifest without id")
	}
}

func TestClientStreams(t *testing.T) {
	logger.Init("ERROR")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stream/series/tt0108778:5:14.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"streams": [
			{"url": "https://cdn.example/ep.mp4", "name": "HD", "title": "The One 1080p WEB-DL"},
			{"infoHash": "0123456789abcdef0123456789abcdef01234567", "fileIdx": 2, "title": "The One 2160p"}
		]}`)
	}))
	defer server.Close()

	client := NewClient()
	streams, err := client.Streams(context.Background(), server.URL+"/manifest.json", "series", "tt0108778:5:14")
	if err != nil {
		t.Fatalf("Streams failed: %v", err)
	}

	if len(streams) != 2 {
		t.Fatalf("Expected 2 streams, got %d", len(streams))
	}
	if streams[0].URL != "https://cdn.example/ep.mp4" {
		t.Errorf("Expected direct URL, got %s", streams[0].URL)
	}
	if streams[1].InfoHash == "" || streams[1].FileIdx != 2 {
		t.Errorf("Expected torrent stream fields, got %+v", streams[1])
	}
	if streams[0].Text() != "The One 1080p WEB-DL" {
		t.Errorf("Expected title text, got %s", streams[0].Text())
	}
}

func TestClientStreamsServerError(t *testing.T) {
	logger.Init("ERROR")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient()
	if _, err := client.Streams(context.Background(), server.URL, "movie", "tt1"); err == nil {
		t.Error("Expected error for upstream failure")
	}
}

func TestManifestURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://addon.example/manifest.json", "https://addon.example/manifest.json"},
		{"https://addon.example", "https://addon.example/manifest.json"},
		{"https://addon.example/", "https://addon.example/manifest.json"},
		{"stremio://addon.example/manifest.json", "https://addon.example/manifest.json"},
	}
	for _, c := range cases {
		if got := ManifestURL(c.in); got != c.want {
			t.Errorf("ManifestURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBaseURL(t *testing.T) {
	if got := BaseURL("https://addon.example/sub/manifest.json"); got != "https://addon.example/sub" {
		t.Errorf("BaseURL = %q", got)
	}
}
