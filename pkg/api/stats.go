package api

import (
	"time"

	"streamdock/pkg/playback"
)

// SystemStats represents the current state of the application
type SystemStats struct {
	Timestamp      time.Time          `json:"timestamp"`
	UptimeSeconds  int                `json:"uptime_seconds"`
	ActiveStreams  int                `json:"active_streams"`
	ActiveSessions []playback.Session `json:"active_sessions"`
	NowPlaying     *playback.Session  `json:"now_playing,omitempty"`
	Addons         []AddonStats       `json:"addons"`
	Library        LibraryStats       `json:"library"`
}

// AddonStats represents one installed addon on the dashboard
type AddonStats struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	HasStreams bool   `json:"has_streams"`
}

// LibraryStats summarizes the library for the dashboard
type LibraryStats struct {
	Items            int `json:"items"`
	ContinueWatching int `json:"continue_watching"`
}

// collectStats gathers metrics from all sources
func (s *Server) collectStats() SystemStats {
	stats := SystemStats{
		Timestamp:     time.Now(),
		UptimeSeconds: int(time.Since(s.started).Seconds()),
	}

	sessions := s.player.Sessions()
	stats.ActiveSessions = sessions
	stats.ActiveStreams = len(sessions)
	if current, ok := s.player.NowPlaying(); ok {
		stats.NowPlaying = &current
	}

	// Addons in install order
	for _, a := range s.collection.List() {
		stats.Addons = append(stats.Addons, AddonStats{
			ID:         a.ID,
			Name:       a.Name,
			Enabled:    a.Enabled,
			HasStreams: a.HasStreams,
		})
	}

	stats.Library = LibraryStats{
		Items:            len(s.library.List()),
		ContinueWatching: len(s.library.ContinueWatching()),
	}

	return stats
}
