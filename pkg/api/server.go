// Package api exposes the control surface: REST endpoints for addons,
// streams, dispatch and the library, plus a websocket channel for
// stats, logs, config and live playback events.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"streamdock/pkg/addon"
	"streamdock/pkg/aggregate"
	"streamdock/pkg/config"
	"streamdock/pkg/dispatch"
	"streamdock/pkg/library"
	"streamdock/pkg/logger"
	"streamdock/pkg/metadata"
	"streamdock/pkg/playback"
)

// Server handles API requests and serves the frontend
type Server struct {
	mu         sync.RWMutex
	config     *config.Config
	collection *addon.Collection
	aggregator *aggregate.Aggregator
	metadata   *metadata.Client
	dispatcher *dispatch.Dispatcher
	player     *playback.Player
	library    *library.Store
	version    string
	started    time.Time
	webHandler http.Handler

	// WebSocket Client Registry
	clients   map[*Client]bool
	clientsMu sync.Mutex
	logCh     chan string
}

type Client struct {
	conn *websocket.Conn
	send chan WSMessage
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, collection *addon.Collection, aggregator *aggregate.Aggregator,
	meta *metadata.Client, dispatcher *dispatch.Dispatcher, player *playback.Player,
	lib *library.Store, version string) *Server {

	if version == "" {
		version = "dev"
	}
	s := &Server{
		config:     cfg,
		collection: collection,
		aggregator: aggregator,
		metadata:   meta,
		dispatcher: dispatcher,
		player:     player,
		library:    lib,
		version:    version,
		started:    time.Now(),
		clients:    make(map[*Client]bool),
		logCh:      make(chan string, 100),
	}

	// Start log broadcaster
	logger.SetBroadcast(s.logCh)
	go s.broadcastLogs()

	// Push dispatch progress and playback changes to all connected clients
	dispatcher.SetEventSink(func(ev dispatch.Event) {
		s.broadcast("dispatch_event", ev)
	})
	player.SetNotify(func(sess playback.Session) {
		s.broadcast("now_playing", sess)
	})

	return s
}

// SetWebHandler sets the handler for static web content (fallback)
func (s *Server) SetWebHandler(h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webHandler = h
}

// Version returns the running version string
func (s *Server) Version() string {
	return s.version
}

func (s *Server) broadcastLogs() {
	for msgStr := range s.logCh {
		msg := WSMessage{Type: "log_entry", Payload: json.RawMessage(fmt.Sprintf("%q", msgStr))}

		s.clientsMu.Lock()
		for client := range s.clients {
			select {
			case client.send <- msg:
			default:
				// Drop message if client buffer is full
			}
		}
		s.clientsMu.Unlock()
	}
}

// broadcast sends a typed message to every connected websocket client.
func (s *Server) broadcast(msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Type: msgType, Payload: data}

	s.clientsMu.Lock()
	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
		}
	}
	s.clientsMu.Unlock()
}

// AddClient registers a new websocket client
func (s *Server) AddClient(client *Client) {
	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()
}

// RemoveClient unregisters a websocket client
func (s *Server) RemoveClient(client *Client) {
	s.clientsMu.Lock()
	delete(s.clients, client)
	s.clientsMu.Unlock()
	close(client.send)
}

// Handler returns the full HTTP handler: API routes, health check and
// the web UI fallback.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ws", s.handleWebSocket)
	mux.HandleFunc("/api/info", s.handleInfo)
	mux.HandleFunc("/api/addons", s.handleAddons)
	mux.HandleFunc("/api/addons/", s.handleAddonAction)
	mux.HandleFunc("/api/streams/", s.handleStreams)
	mux.HandleFunc("/api/meta/", s.handleMeta)
	mux.HandleFunc("/api/dispatch", s.handleDispatch)
	mux.HandleFunc("/api/players", s.handlePlayers)
	mux.HandleFunc("/api/library", s.handleLibrary)
	mux.HandleFunc("/api/library/", s.handleLibraryItem)
	mux.HandleFunc("/api/continue", s.handleContinueWatching)
	mux.HandleFunc("/api/progress", s.handleProgress)
	mux.HandleFunc("/api/watched", s.handleWatched)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		webHandler := s.webHandler
		s.mu.RUnlock()

		if webHandler != nil {
			webHandler.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})

	return corsHandler(mux)
}

// corsHandler answers preflight requests and opens the API to browser
// clients on other origins.
func corsHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
