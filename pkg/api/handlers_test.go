package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"streamdock/pkg/addon"
	"streamdock/pkg/aggregate"
	"streamdock/pkg/config"
	"streamdock/pkg/dispatch"
	"streamdock/pkg/library"
	"streamdock/pkg/logger"
	"streamdock/pkg/metadata"
	"streamdock/pkg/persistence"
	"streamdock/pkg/playback"
	"streamdock/pkg/stremio"
)

type stubOpener struct {
	calls []string
	fail  bool
}

func (o *stubOpener) OpenURL(ctx context.Context, rawURL string) error {
	o.calls = append(o.calls, rawURL)
	if o.fail {
		return errors.New("no handler for scheme")
	}
	return nil
}

type testEnv struct {
	server     *Server
	handler    http.Handler
	cfg        *config.Config
	collection *addon.Collection
	library    *library.Store
	player     *playback.Player
	opener     *stubOpener
}

func newTestEnv(t *testing.T, metadataURL string) *testEnv {
	t.Helper()
	logger.Init("DEBUG")

	state, err := persistence.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create state manager: %v", err)
	}
	client := stremio.NewClient()
	collection, err := addon.NewCollection(state, client)
	if err != nil {
		t.Fatalf("Failed to create collection: %v", err)
	}
	lib, err := library.NewStore(state)
	if err != nil {
		t.Fatalf("Failed to create library: %v", err)
	}

	cfg := &config.Config{
		ServerPort:      7880,
		LogLevel:        "info",
		Playback:        config.PlayerPreference{Platform: config.PlatformLinux},
		MetadataURL:     metadataURL,
		CacheTTLSeconds: 60,
	}

	opener := &stubOpener{}
	player := playback.NewPlayer(time.Hour)
	srv := NewServer(cfg, collection, aggregate.New(client, collection),
		metadata.NewClient(metadataURL, time.Minute), dispatch.New(opener, player),
		player, lib, "test")

	return &testEnv{
		server:     srv,
		handler:    srv.Handler(),
		cfg:        cfg,
		collection: collection,
		library:    lib,
		player:     player,
		opener:     opener,
	}
}

// fakeAddon serves a minimal stream addon: a manifest plus a fixed
// stream list for every content id.
func fakeAddon(t *testing.T, id, name string, streams []stremio.Stream) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":        id,
			"name":      name,
			"version":   "1.0.0",
			"resources": []string{"stream"},
			"types":     []string{"movie", "series"},
		})
	})
	mux.HandleFunc("/stream/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stremio.StreamResponse{Streams: streams})
	})
	return httptest.NewServer(mux)
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, "http://meta.invalid")

	rec := env.do(t, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got '%s'", body["status"])
	}
}

func TestAddonLifecycle(t *testing.T) {
	env := newTestEnv(t, "http://meta.invalid")
	upstream := fakeAddon(t, "org.test.one", "Test One", nil)
	defer upstream.Close()

	// Default collection ships with protected Cinemeta
	rec := env.do(t, "GET", "/api/addons", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var listed []addon.Installed
	json.Unmarshal(rec.Body.Bytes(), &listed)
	if len(listed) != 1 || listed[0].ID != "com.linvo.cinemeta" {
		t.Fatalf("Expected default Cinemeta, got %+v", listed)
	}

	// Install
	rec = env.do(t, "POST", "/api/addons", map[string]string{"url": upstream.URL + "/manifest.json"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Duplicate install conflicts
	rec = env.do(t, "POST", "/api/addons", map[string]string{"url": upstream.URL + "/manifest.json"})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate, got %d", rec.Code)
	}

	// Protected addon refuses uninstall
	rec = env.do(t, "DELETE", "/api/addons/com.linvo.cinemeta", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for protected addon, got %d", rec.Code)
	}

	// Toggle off
	rec = env.do(t, "POST", "/api/addons/org.test.one/toggle", map[string]bool{"enabled": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for toggle, got %d", rec.Code)
	}
	installed, _ := env.collection.Get("org.test.one")
	if installed.Enabled {
		t.Error("Expected addon to be disabled")
	}

	// Move up
	rec = env.do(t, "POST", "/api/addons/org.test.one/move", map[string]int{"delta": -1})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for move, got %d", rec.Code)
	}
	order := env.collection.OrderedIDs()
	if order[0] != "org.test.one" {
		t.Errorf("Expected org.test.one first after move, got %v", order)
	}

	// Uninstall
	rec = env.do(t, "DELETE", "/api/addons/org.test.one", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for uninstall, got %d", rec.Code)
	}
	rec = env.do(t, "DELETE", "/api/addons/org.test.one", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing addon, got %d", rec.Code)
	}
}

func TestStreamsEndpoint(t *testing.T) {
	env := newTestEnv(t, "http://meta.invalid")
	upstream := fakeAddon(t, "org.test.streams", "Streamer", []stremio.Stream{
		{URL: "https://cdn.example/a-720p.mp4", Title: "Movie 720p"},
		{URL: "https://cdn.example/a-2160p.mp4", Title: "Movie 2160p"},
	})
	defer upstream.Close()

	if _, err := env.collection.Install(context.Background(), upstream.URL+"/manifest.json"); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	rec := env.do(t, "GET", "/api/streams/movie/tt1254207", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp streamsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode streams response: %v", err)
	}
	if len(resp.Providers) != 1 {
		t.Fatalf("Expected 1 provider, got %d", len(resp.Providers))
	}
	p := resp.Providers[0]
	if p.ID != "org.test.streams" || p.Name != "Streamer" {
		t.Errorf("Unexpected provider identity: %+v", p)
	}
	if len(p.Streams) != 2 {
		t.Fatalf("Expected 2 streams, got %d", len(p.Streams))
	}
	if p.Streams[0].Annotation == nil {
		t.Error("Expected annotation on stream payload")
	}

	// Options list: All plus one provider
	if len(resp.Options) != 2 {
		t.Fatalf("Expected 2 filter options, got %d", len(resp.Options))
	}
	if resp.Options[0].Token != "all" || resp.Options[0].Count != 2 {
		t.Errorf("Unexpected All option: %+v", resp.Options[0])
	}

	// Quality sort override puts 2160p first
	rec = env.do(t, "GET", "/api/streams/movie/tt1254207?sort=quality", nil)
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if got := resp.Providers[0].Streams[0].Title; got != "Movie 2160p" {
		t.Errorf("Expected 2160p first under quality sort, got '%s'", got)
	}

	// Provider filter with an unknown token yields no groups
	rec = env.do(t, "GET", "/api/streams/movie/tt1254207?provider=nope", nil)
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Providers) != 0 {
		t.Errorf("Expected no providers for unknown token, got %d", len(resp.Providers))
	}
}

func TestStreamsEndpointCapsPerProvider(t *testing.T) {
	env := newTestEnv(t, "http://meta.invalid")
	var many []stremio.Stream
	for i := 0; i < 8; i++ {
		many = append(many, stremio.Stream{URL: fmt.Sprintf("https://cdn.example/v%d.mp4", i)})
	}
	upstream := fakeAddon(t, "org.test.many", "Many", many)
	defer upstream.Close()

	if _, err := env.collection.Install(context.Background(), upstream.URL+"/manifest.json"); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	env.cfg.Streams.MaxPerProvider = 3

	rec := env.do(t, "GET", "/api/streams/movie/tt1254207", nil)
	var resp streamsResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Providers[0].Streams) != 3 {
		t.Errorf("Expected cap of 3 streams, got %d", len(resp.Providers[0].Streams))
	}
	// Options report the uncapped count
	if resp.Options[0].Count != 8 {
		t.Errorf("Expected option count 8, got %d", resp.Options[0].Count)
	}
}

func TestStreamsEndpointBadPath(t *testing.T) {
	env := newTestEnv(t, "http://meta.invalid")
	rec := env.do(t, "GET", "/api/streams/movie", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing id, got %d", rec.Code)
	}
}

func TestDispatchEndpointExternal(t *testing.T) {
	env := newTestEnv(t, "http://meta.invalid")
	env.cfg.Playback = config.PlayerPreference{
		UseExternal: true,
		Player:      config.PlayerVLC,
		Platform:    config.PlatformIOS,
	}

	body := map[string]interface{}{
		"content": map[string]string{"type": "series", "id": "tt0108778:5:14"},
		"entry":   map[string]string{"url": "https://cdn.example/ep.mp4", "title": "Episode"},
		"name":    "Friends",
	}
	rec := env.do(t, "POST", "/api/dispatch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result dispatch.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode dispatch result: %v", err)
	}
	if result.Status != "succeeded" || result.Internal {
		t.Errorf("Expected external success, got %+v", result)
	}
	if len(env.opener.calls) != 1 {
		t.Errorf("Expected 1 opener call, got %d", len(env.opener.calls))
	}

	// Library picked up the playback under the series id
	item, ok := env.library.Get("series", "tt0108778")
	if !ok {
		t.Fatal("Expected library item for dispatched series")
	}
	if item.Name != "Friends" || item.TimesWatched != 1 {
		t.Errorf("Unexpected library item: %+v", item)
	}
	if _, ok := item.Videos["tt0108778:5:14"]; !ok {
		t.Error("Expected video state for the dispatched episode")
	}
}

func TestDispatchEndpointFallsBack(t *testing.T) {
	env := newTestEnv(t, "http://meta.invalid")
	env.opener.fail = true
	env.cfg.Playback = config.PlayerPreference{
		UseExternal: true,
		Player:      config.PlayerVLC,
		Platform:    config.PlatformIOS,
	}

	body := map[string]interface{}{
		"content": map[string]string{"type": "movie", "id": "tt1254207"},
		"entry":   map[string]string{"url": "https://cdn.example/movie.mp4"},
	}
	rec := env.do(t, "POST", "/api/dispatch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var result dispatch.Result
	json.Unmarshal(rec.Body.Bytes(), &result)
	if result.Status != "fell_back_to_internal" || !result.Internal {
		t.Errorf("Expected internal fallback, got %+v", result)
	}
	if len(result.Attempts) != 4 {
		t.Errorf("Expected 4 recorded attempts, got %d", len(result.Attempts))
	}

	// Internal fallback starts a playback session
	if _, ok := env.player.NowPlaying(); !ok {
		t.Error("Expected an active playback session after fallback")
	}
}

func TestDispatchEndpointRequiresURL(t *testing.T) {
	env := newTestEnv(t, "http://meta.invalid")
	rec := env.do(t, "POST", "/api/dispatch", map[string]interface{}{
		"entry": map[string]string{"title": "no url"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestMetaEndpoint(t *testing.T) {
	metaServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"meta": {
				"id": "tt0108778", "type": "series", "name": "Friends",
				"videos": [
					{"id": "tt0108778:1:1", "season": 1, "episode": 1},
					{"id": "tt0108778:1:2", "season": 1, "episode": 2}
				]
			}
		}`))
	}))
	defer metaServer.Close()

	env := newTestEnv(t, metaServer.URL)
	rec := env.do(t, "GET", "/api/meta/series/tt0108778", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Meta    metadata.Meta     `json:"meta"`
		Seasons []metadata.Season `json:"seasons"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode meta response: %v", err)
	}
	if resp.Meta.Name != "Friends" {
		t.Errorf("Expected Friends, got '%s'", resp.Meta.Name)
	}
	if len(resp.Seasons) != 1 || len(resp.Seasons[0].Episodes) != 2 {
		t.Errorf("Unexpected season grouping: %+v", resp.Seasons)
	}
}

func TestLibraryEndpoints(t *testing.T) {
	env := newTestEnv(t, "http://meta.invalid")

	rec := env.do(t, "POST", "/api/library", map[string]string{
		"type": "movie", "meta_id": "tt1254207", "name": "Big Buck Bunny",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}

	rec = env.do(t, "GET", "/api/library", nil)
	var items []library.Item
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 || items[0].Name != "Big Buck Bunny" {
		t.Fatalf("Unexpected library list: %+v", items)
	}

	// Progress below the completion threshold lands in continue-watching
	rec = env.do(t, "POST", "/api/progress", map[string]interface{}{
		"type": "movie", "meta_id": "tt1254207", "offset": 1200.0, "duration": 3600.0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for progress, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "GET", "/api/continue", nil)
	var cont []library.ContinueEntry
	json.Unmarshal(rec.Body.Bytes(), &cont)
	if len(cont) != 1 || cont[0].Offset != 1200 {
		t.Fatalf("Unexpected continue list: %+v", cont)
	}

	// Marking watched clears it from the rail
	rec = env.do(t, "POST", "/api/watched", map[string]string{
		"type": "movie", "meta_id": "tt1254207",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for watched, got %d", rec.Code)
	}
	rec = env.do(t, "GET", "/api/continue", nil)
	cont = nil
	json.Unmarshal(rec.Body.Bytes(), &cont)
	if len(cont) != 0 {
		t.Errorf("Expected empty continue list after watched, got %+v", cont)
	}

	rec = env.do(t, "DELETE", "/api/library/movie/tt1254207", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for delete, got %d", rec.Code)
	}
	rec = env.do(t, "GET", "/api/library/movie/tt1254207", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestPlayersEndpoint(t *testing.T) {
	env := newTestEnv(t, "http://meta.invalid")

	rec := env.do(t, "GET", "/api/players?platform=ios", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp struct {
		Platform string   `json:"platform"`
		Players  []string `json:"players"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Platform != "ios" || len(resp.Players) == 0 {
		t.Errorf("Unexpected players response: %+v", resp)
	}
	found := false
	for _, p := range resp.Players {
		if p == config.PlayerVLC {
			found = true
		}
	}
	if !found {
		t.Error("Expected vlc among ios players")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := &config.Config{
		ServerPort: 7880,
		LogLevel:   "info",
		Playback: config.PlayerPreference{
			UseExternal: true,
			Player:      config.PlayerVLC,
			Platform:    config.PlatformIOS,
		},
		MetadataURL: "https://v3-cinemeta.strem.io",
	}
	if errs := validateConfig(valid); len(errs) != 0 {
		t.Errorf("Expected valid config, got errors: %v", errs)
	}

	bad := &config.Config{
		ServerPort: 0,
		LogLevel:   "loud",
		Playback: config.PlayerPreference{
			UseExternal: true,
			Player:      "winamp",
			Platform:    "amiga",
		},
		MetadataURL: "not a url",
	}
	errs := validateConfig(bad)
	for _, field := range []string{"server_port", "log_level", "playback.player", "playback.platform", "metadata_url"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("Expected error for field %s, got %v", field, errs)
		}
	}

	// A real player that has no scheme templates on the platform is
	// rejected at save time.
	mismatch := &config.Config{
		ServerPort: 7880,
		LogLevel:   "info",
		Playback: config.PlayerPreference{
			UseExternal: true,
			Player:      config.PlayerMXPlayer,
			Platform:    config.PlatformMacOS,
		},
	}
	if errs := validateConfig(mismatch); errs["playback.player"] == "" {
		t.Error("Expected error for player unavailable on platform")
	}
}
