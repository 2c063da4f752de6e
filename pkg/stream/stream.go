// Package stream holds the aggregation data model: playable entries as
// returned by addons, grouped per provider, plus one Result per fetch.
package stream

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"streamdock/pkg/stremio"
)

// Content types understood by the pipeline.
const (
	TypeMovie   = "movie"
	TypeSeries  = "series"
	TypeChannel = "channel"
)

// ContentID identifies one playable content item. For series the ID is
// the video id (metaID:season:episode).
type ContentID struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (c ContentID) String() string {
	return c.Type + "/" + c.ID
}

// Valid reports whether the id can be aggregated at all.
func (c ContentID) Valid() bool {
	if c.ID == "" {
		return false
	}
	switch c.Type {
	case TypeMovie, TypeSeries, TypeChannel:
		return true
	}
	return false
}

// SplitVideoID splits a series video id (tt123:5:14) into its meta id and
// season/episode numbers. ok is false for plain ids.
func SplitVideoID(id string) (metaID string, season, episode int, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 {
		return id, 0, 0, false
	}
	s, err1 := strconv.Atoi(parts[1])
	e, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return id, 0, 0, false
	}
	return parts[0], s, e, true
}

// Entry is one playable stream candidate. Entries are immutable once
// produced by aggregation.
type Entry struct {
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	InfoHash string `json:"infoHash,omitempty"`
	FileIdx  int    `json:"fileIdx,omitempty"`

	BehaviorHints *stremio.BehaviorHints `json:"behaviorHints,omitempty"`

	// Provider attribution, set at aggregation time
	AddonID   string `json:"addonId"`
	AddonName string `json:"addonName,omitempty"`
}

// IsMagnet reports whether the entry plays via a magnet URL.
func (e Entry) IsMagnet() bool {
	return strings.HasPrefix(e.URL, "magnet:")
}

// DisplayTitle returns the densest human text the entry carries.
func (e Entry) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	if e.Description != "" {
		return e.Description
	}
	return e.Name
}

// FromStream converts an addon wire stream into an Entry. Streams with
// neither a URL nor an info hash are unusable and dropped (ok=false).
// Torrent streams are materialized as magnet URLs.
func FromStream(s stremio.Stream, addonID, addonName string) (Entry, bool) {
	e := Entry{
		URL:           s.URL,
		Name:          s.Name,
		Title:         s.Title,
		Description:   s.Description,
		InfoHash:      s.InfoHash,
		FileIdx:       s.FileIdx,
		BehaviorHints: s.BehaviorHints,
		AddonID:       addonID,
		AddonName:     addonName,
	}
	if e.URL == "" && s.ExternalUrl != "" {
		e.URL = s.ExternalUrl
	}
	if e.URL == "" {
		if s.InfoHash == "" {
			return Entry{}, false
		}
		e.URL = magnetURL(s)
	}
	return e, true
}

// magnetURL builds a magnet link from a torrent stream's info hash,
// display name and tracker sources.
func magnetURL(s stremio.Stream) string {
	var b strings.Builder
	fmt.Fprintf(&b, "magnet:?xt=urn:btih:%s", strings.ToLower(s.InfoHash))
	if name := s.Text(); name != "" {
		// Magnet display names use the first line only
		if i := strings.IndexByte(name, '\n'); i >= 0 {
			name = name[:i]
		}
		fmt.Fprintf(&b, "&dn=%s", url.QueryEscape(name))
	}
	for _, src := range s.Sources {
		if tracker, found := strings.CutPrefix(src, "tracker:"); found {
			fmt.Fprintf(&b, "&tr=%s", url.QueryEscape(tracker))
		}
	}
	return b.String()
}

// Group is one provider's ordered stream candidates. Entry order is
// preserved exactly as the provider returned it.
type Group struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Entries []Entry `json:"entries"`
}

// Result is the outcome of one aggregation run. A refresh produces a
// whole new Result; results are never merged or persisted.
type Result struct {
	Content ContentID `json:"content"`

	// Order lists provider ids in encounter order (installed order at
	// fetch time), including failed ones.
	Order []string `json:"order"`

	Groups map[string]*Group `json:"groups"`

	// Errors holds the per-provider fetch failures. A provider appears
	// either in Groups or in Errors, never both.
	Errors map[string]error `json:"-"`

	FetchedAt time.Time `json:"fetchedAt"`
}

// Empty reports whether no provider returned a usable entry.
func (r *Result) Empty() bool {
	for _, g := range r.Groups {
		if len(g.Entries) > 0 {
			return false
		}
	}
	return true
}

// TotalStreams counts usable entries across all groups.
func (r *Result) TotalStreams() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Entries)
	}
	return n
}
