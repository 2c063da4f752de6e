package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"streamdock/pkg/config"
	"streamdock/pkg/dispatch"
	"streamdock/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allowing all origins for development
	},
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WS upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	client := &Client{conn: conn, send: make(chan WSMessage, 256)}
	s.AddClient(client)

	defer func() {
		s.RemoveClient(client)
		conn.Close()
	}()

	logger.Debug("WS Client connected", "remote", r.RemoteAddr)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	// Push current state immediately so the UI renders without waiting
	// for the first tick.
	go func() {
		s.sendStats(client)
		s.sendConfig(client)
		s.sendLogHistory(client)
	}()

	// Read loop (Client -> Server)
	go func() {
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Debug("WS read error", "err", err)
				}
				conn.Close()
				return
			}

			// Handle commands
			switch msg.Type {
			case "get_config":
				s.sendConfig(client)
			case "save_config":
				s.handleSaveConfigWS(client, msg.Payload)
			case "close_session":
				s.handleCloseSessionWS(msg.Payload)
			case "restart":
				s.handleRestartWS()
			}
		}
	}()

	// Write loop (Server -> Client)
	for {
		select {
		case <-ticker.C:
			s.sendStats(client)
		case msg, ok := <-client.send:
			if !ok {
				// Channel closed by RemoveClient
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendStats(client *Client) {
	stats := s.collectStats()
	payload, _ := json.Marshal(stats)
	select {
	case client.send <- WSMessage{Type: "stats", Payload: payload}:
	default:
	}
}

func (s *Server) sendConfig(client *Client) {
	payload, _ := json.Marshal(s.config)
	select {
	case client.send <- WSMessage{Type: "config", Payload: payload}:
	default:
	}
}

func (s *Server) sendLogHistory(client *Client) {
	// Fetch history from global logger
	history := logger.GetHistory()
	payload, _ := json.Marshal(history)

	select {
	case client.send <- WSMessage{Type: "log_history", Payload: payload}:
	default:
	}
}

func (s *Server) handleSaveConfigWS(client *Client, payload json.RawMessage) {
	var newCfg config.Config
	if err := json.Unmarshal(payload, &newCfg); err != nil {
		client.send <- WSMessage{Type: "save_status", Payload: json.RawMessage(`{"status":"error","message":"Invalid config data"}`)}
		return
	}

	// Validate settings before saving
	fieldErrors := validateConfig(&newCfg)
	if len(fieldErrors) > 0 {
		errorPayload, _ := json.Marshal(map[string]interface{}{
			"status":  "error",
			"message": "Validation failed",
			"errors":  fieldErrors,
		})
		client.send <- WSMessage{Type: "save_status", Payload: errorPayload}
		return
	}

	err := s.config.Update(func(c *config.Config) {
		c.ServerPort = newCfg.ServerPort
		c.ServerBaseURL = newCfg.ServerBaseURL
		c.LogLevel = newCfg.LogLevel
		c.Playback = newCfg.Playback
		c.Streams = newCfg.Streams
		c.MetadataURL = newCfg.MetadataURL
		c.CacheTTLSeconds = newCfg.CacheTTLSeconds
	})
	if err != nil {
		client.send <- WSMessage{Type: "save_status", Payload: json.RawMessage([]byte(fmt.Sprintf(`{"status":"error","message":"%s"}`, err.Error())))}
		return
	}

	// push updated config back to client so UI is in sync
	s.sendConfig(client)

	client.send <- WSMessage{Type: "save_status", Payload: json.RawMessage(`{"status":"success","message":"Configuration saved."}`)}
}

// validateConfig checks incoming settings and returns a map of field errors
func validateConfig(cfg *config.Config) map[string]string {
	errors := make(map[string]string)

	if cfg.ServerPort < 1 || cfg.ServerPort > 65535 {
		errors["server_port"] = "Port must be between 1 and 65535"
	}

	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errors["log_level"] = "Log level must be debug, info, warn or error"
	}

	if !config.ValidPlatform(cfg.Playback.Platform) {
		errors["playback.platform"] = fmt.Sprintf("Unknown platform %q", cfg.Playback.Platform)
	}
	if !config.ValidPlayer(cfg.Playback.Player) {
		errors["playback.player"] = fmt.Sprintf("Unknown player %q", cfg.Playback.Player)
	} else if cfg.Playback.UseExternal && cfg.Playback.Player != config.PlayerInternal {
		if _, ok := dispatch.Templates(cfg.Playback.Platform, cfg.Playback.Player); !ok {
			errors["playback.player"] = fmt.Sprintf("%s is not available on %s", cfg.Playback.Player, cfg.Playback.Platform)
		}
	}

	if cfg.MetadataURL != "" {
		u, err := url.Parse(cfg.MetadataURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors["metadata_url"] = "Metadata URL must be an http(s) URL"
		}
	}
	if cfg.CacheTTLSeconds < 0 {
		errors["cache_ttl_seconds"] = "Cache TTL cannot be negative"
	}
	if cfg.Streams.MaxPerProvider < 0 {
		errors["streams.max_per_provider"] = "Stream cap cannot be negative"
	}

	return errors
}

func (s *Server) handleCloseSessionWS(payload json.RawMessage) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}
	logger.Info("Closing playback session", "id", req.ID)
	s.player.Stop(req.ID)
}

func (s *Server) handleRestartWS() {
	go func() {
		time.Sleep(500 * time.Millisecond)
		exe, _ := os.Executable()
		cmd := exec.Command(exe)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		cmd.Start()
		os.Exit(0)
	}()
}
