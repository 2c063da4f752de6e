package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"streamdock/pkg/addon"
	"streamdock/pkg/dispatch"
	"streamdock/pkg/library"
	"streamdock/pkg/logger"
	"streamdock/pkg/metadata"
	"streamdock/pkg/selector"
	"streamdock/pkg/stream"
)

// streamPayload is one stream entry plus its parsed annotation.
type streamPayload struct {
	stream.Entry
	Annotation *stream.Annotation `json:"annotation,omitempty"`
}

// providerPayload is one provider group as returned by the streams
// endpoint. Failed providers carry an error string and no streams.
type providerPayload struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Error   string          `json:"error,omitempty"`
	Streams []streamPayload `json:"streams"`
}

type streamsResponse struct {
	Content   stream.ContentID  `json:"content"`
	Providers []providerPayload `json:"providers"`
	Options   []selector.Option `json:"options"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// handleInfo serves basic instance information (no auth, no secrets)
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"app":      "streamdock",
		"version":  s.version,
		"platform": s.config.Playback.Platform,
		"uptime_s": int(time.Since(s.started).Seconds()),
	})
}

// handleHealth serves health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"app":    "streamdock",
	})
}

// handleAddons handles GET (list) and POST (install) on /api/addons
func (s *Server) handleAddons(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.collection.List())

	case http.MethodPost:
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
			writeError(w, http.StatusBadRequest, "addon url is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		installed, err := s.collection.Install(ctx, req.URL)
		if err != nil {
			if errors.Is(err, addon.ErrDuplicate) {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			logger.Error("Addon install failed", "url", req.URL, "err", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, installed)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAddonAction handles /api/addons/{id} and its sub-actions:
// DELETE /api/addons/{id}, POST /api/addons/{id}/move,
// POST /api/addons/{id}/toggle
func (s *Server) handleAddonAction(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/addons/")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" {
		writeError(w, http.StatusBadRequest, "addon id is required")
		return
	}
	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		installed, ok := s.collection.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "addon not found")
			return
		}
		writeJSON(w, http.StatusOK, installed)

	case action == "" && r.Method == http.MethodDelete:
		if err := s.collection.Uninstall(id); err != nil {
			s.writeAddonError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})

	case action == "move" && r.Method == http.MethodPost:
		var req struct {
			Delta int `json:"delta"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid move request")
			return
		}
		if err := s.collection.Move(id, req.Delta); err != nil {
			s.writeAddonError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.collection.List())

	case action == "toggle" && r.Method == http.MethodPost:
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid toggle request")
			return
		}
		if err := s.collection.SetEnabled(id, req.Enabled); err != nil {
			s.writeAddonError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) writeAddonError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, addon.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, addon.ErrProtected):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleStreams handles stream list requests: /api/streams/{type}/{id}
// with optional ?provider= filter and ?sort= override.
func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/streams/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "expected /api/streams/{type}/{id}")
		return
	}
	content := stream.ContentID{Type: parts[0], ID: parts[1]}

	providerToken := r.URL.Query().Get("provider")
	if providerToken == "" {
		providerToken = selector.All
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := s.aggregator.Fetch(ctx, content)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	installed := s.collection.OrderedIDs()
	names := s.collection.Names()
	groups := selector.Select(result, providerToken, installed, names)

	qualitySort := s.config.Streams.QualitySort
	switch r.URL.Query().Get("sort") {
	case "quality":
		qualitySort = true
	case "provider":
		qualitySort = false
	}
	maxPerProvider := s.config.Streams.MaxPerProvider

	providers := make([]providerPayload, 0, len(groups))
	for _, g := range groups {
		p := providerPayload{ID: g.ID, Name: g.Name}
		if g.Err != nil {
			p.Error = g.Err.Error()
		}

		entries := g.Entries
		if qualitySort {
			entries = append([]stream.Entry(nil), entries...)
			stream.SortByQuality(entries)
		}
		if maxPerProvider > 0 && len(entries) > maxPerProvider {
			entries = entries[:maxPerProvider]
		}

		p.Streams = make([]streamPayload, 0, len(entries))
		for _, e := range entries {
			p.Streams = append(p.Streams, streamPayload{Entry: e, Annotation: stream.Annotate(e)})
		}
		providers = append(providers, p)
	}

	writeJSON(w, http.StatusOK, streamsResponse{
		Content:   content,
		Providers: providers,
		Options:   selector.Options(result, installed, names),
		FetchedAt: result.FetchedAt,
	})
}

// handleMeta handles metadata requests: /api/meta/{type}/{id}
func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/meta/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "expected /api/meta/{type}/{id}")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	meta, err := s.metadata.Meta(ctx, parts[0], parts[1])
	if err != nil {
		logger.Warn("Metadata lookup failed", "type", parts[0], "id", parts[1], "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	response := map[string]interface{}{"meta": meta}
	if seasons := metadata.GroupBySeason(meta); seasons != nil {
		response["seasons"] = seasons
	}
	writeJSON(w, http.StatusOK, response)
}

// handleDispatch starts playback of a chosen stream: the entry is routed
// to the configured external player with internal playback as fallback.
// The response carries the terminal state and the full attempt trace.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Content stream.ContentID `json:"content"`
		Entry   stream.Entry     `json:"entry"`
		Name    string           `json:"name,omitempty"`
		Poster  string           `json:"poster,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid dispatch request")
		return
	}
	if req.Entry.URL == "" {
		writeError(w, http.StatusBadRequest, "stream entry with url is required")
		return
	}

	logger.Info("Dispatch request", "entry", req.Entry.DisplayTitle(), "content", req.Content.String())

	result := s.dispatcher.Dispatch(r.Context(), req.Entry, s.config.Playback)

	// Record the playback in the library so continue-watching picks it up
	if req.Content.Valid() {
		metaID := req.Content.ID
		videoID := req.Content.ID
		if base, _, _, ok := stream.SplitVideoID(req.Content.ID); ok {
			metaID = base
		}
		if err := s.library.RecordPlayback(req.Content.Type, metaID, videoID, req.Name, req.Poster); err != nil {
			logger.Warn("Failed to record playback", "content", req.Content.String(), "err", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// handlePlayers lists the external players available on a platform
func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	platform := r.URL.Query().Get("platform")
	if platform == "" {
		platform = s.config.Playback.Platform
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"platform": platform,
		"players":  dispatch.PlayersFor(platform),
	})
}

// handleLibrary handles GET (list) and POST (add) on /api/library
func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.library.List())

	case http.MethodPost:
		var req struct {
			Type   string `json:"type"`
			MetaID string `json:"meta_id"`
			Name   string `json:"name"`
			Poster string `json:"poster,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" || req.MetaID == "" {
			writeError(w, http.StatusBadRequest, "type and meta_id are required")
			return
		}
		if err := s.library.Add(req.Type, req.MetaID, req.Name, req.Poster); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleLibraryItem handles /api/library/{type}/{id}
func (s *Server) handleLibraryItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/library/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "expected /api/library/{type}/{id}")
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, ok := s.library.Get(parts[0], parts[1])
		if !ok {
			writeError(w, http.StatusNotFound, "library item not found")
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodDelete:
		if err := s.library.Remove(parts[0], parts[1]); err != nil {
			if errors.Is(err, library.ErrNotFound) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleContinueWatching serves the continue-watching rail
func (s *Server) handleContinueWatching(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.library.ContinueWatching())
}

// handleProgress records playback progress reported by the internal
// player. An optional session id keeps the playback session alive.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Type      string  `json:"type"`
		MetaID    string  `json:"meta_id"`
		VideoID   string  `json:"video_id"`
		Offset    float64 `json:"offset"`
		Duration  float64 `json:"duration"`
		SessionID string  `json:"session_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" || req.MetaID == "" {
		writeError(w, http.StatusBadRequest, "type and meta_id are required")
		return
	}
	if req.VideoID == "" {
		req.VideoID = req.MetaID
	}

	if err := s.library.UpdateProgress(req.Type, req.MetaID, req.VideoID, req.Offset, req.Duration); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.SessionID != "" {
		if err := s.player.Touch(req.SessionID); err != nil {
			logger.Debug("Progress for expired session", "session", req.SessionID)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWatched marks a video as watched
func (s *Server) handleWatched(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Type    string `json:"type"`
		MetaID  string `json:"meta_id"`
		VideoID string `json:"video_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" || req.MetaID == "" {
		writeError(w, http.StatusBadRequest, "type and meta_id are required")
		return
	}
	if req.VideoID == "" {
		req.VideoID = req.MetaID
	}

	if err := s.library.MarkWatched(req.Type, req.MetaID, req.VideoID); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSessions lists active playback sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Sessions())
}
