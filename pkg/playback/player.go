// Package playback is the internal playback path: the terminal target
// a dispatched stream lands on when no external player takes it (or
// when the user prefers internal playback). It keeps a registry of
// playback sessions for the now-playing surface.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"streamdock/pkg/logger"
	"streamdock/pkg/stream"
)

// Session represents an active playback session
type Session struct {
	ID        string       `json:"id"`
	Entry     stream.Entry `json:"entry"`
	StartedAt time.Time    `json:"started_at"`
	LastSeen  time.Time    `json:"last_seen"`
}

// Player manages playback sessions. Play never reports failure to its
// caller; whatever happens during actual media delivery is observed
// through the session registry, not the dispatch path.
type Player struct {
	sessions map[string]*Session
	current  string
	nextID   uint64
	ttl      time.Duration
	notify   func(Session)
	mu       sync.RWMutex
}

// NewPlayer creates a player whose sessions expire after ttl without
// keep-alives.
func NewPlayer(ttl time.Duration) *Player {
	p := &Player{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}

	go p.cleanupLoop()

	return p
}

// SetNotify registers a callback invoked with a session snapshot each
// time playback starts. Used for the websocket now-playing push.
func (p *Player) SetNotify(fn func(Session)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notify = fn
}

// Play registers a playback session for the entry and makes it current.
func (p *Player) Play(ctx context.Context, e stream.Entry) {
	p.mu.Lock()
	p.nextID++
	s := &Session{
		ID:        fmt.Sprintf("pb-%d", p.nextID),
		Entry:     e,
		StartedAt: time.Now(),
		LastSeen:  time.Now(),
	}
	p.sessions[s.ID] = s
	p.current = s.ID
	notify := p.notify
	snapshot := *s
	p.mu.Unlock()

	logger.Info("Internal playback started", "session", s.ID, "entry", e.DisplayTitle())
	if notify != nil {
		notify(snapshot)
	}
}

// Touch refreshes a session's keep-alive.
func (p *Player) Touch(sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	s.LastSeen = time.Now()
	return nil
}

// Stop removes a session.
func (p *Player) Stop(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.sessions, sessionID)
	if p.current == sessionID {
		p.current = ""
	}
}

// NowPlaying returns the current session, if one is active.
func (p *Player) NowPlaying() (Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.sessions[p.current]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Sessions returns a snapshot of all active sessions.
func (p *Player) Sessions() []Session {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, *s)
	}
	return out
}

// cleanupLoop periodically removes expired sessions
func (p *Player) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		p.cleanup()
	}
}

// cleanup removes sessions that haven't been seen within TTL
func (p *Player) cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for id, s := range p.sessions {
		if now.Sub(s.LastSeen) > p.ttl {
			delete(p.sessions, id)
			if p.current == id {
				p.current = ""
			}
		}
	}
}

// Stats returns playback statistics
func (p *Player) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"active_sessions": len(p.sessions),
		"ttl_minutes":     p.ttl.Minutes(),
	}
}
