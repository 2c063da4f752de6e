// Package library persists the user's library and watch progress. Items
// live under the library key of the state file; playback records update
// them and the continue-watching rail is derived from per-video offsets.
package library

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"streamdock/pkg/persistence"
)

const stateKey = "library"

// A video counts as finished once this share of it was watched.
const completionThreshold = 0.9

var ErrNotFound = errors.New("library item not found")

// VideoState is the watch state of one video (the single video of a
// movie, or one episode of a series).
type VideoState struct {
	Offset      float64   `json:"offset"`
	Duration    float64   `json:"duration"`
	Watched     bool      `json:"watched"`
	LastWatched time.Time `json:"last_watched"`
}

// Item is one library entry.
type Item struct {
	Type         string                 `json:"type"`
	MetaID       string                 `json:"meta_id"`
	Name         string                 `json:"name"`
	Poster       string                 `json:"poster,omitempty"`
	AddedAt      time.Time              `json:"added_at"`
	LastWatched  time.Time              `json:"last_watched"`
	TimesWatched int                    `json:"times_watched"`
	Videos       map[string]*VideoState `json:"videos,omitempty"`
}

// ContinueEntry is one continue-watching candidate: an item plus the
// specific partially-watched video.
type ContinueEntry struct {
	Item     Item    `json:"item"`
	VideoID  string  `json:"video_id"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
}

// Store is the persisted library.
type Store struct {
	state *persistence.StateManager
	items map[string]*Item
	mu    sync.RWMutex
}

func NewStore(state *persistence.StateManager) (*Store, error) {
	s := &Store{
		state: state,
		items: make(map[string]*Item),
	}

	var stored map[string]*Item
	found, err := state.Get(stateKey, &stored)
	if err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}
	if found {
		s.items = stored
	}
	return s, nil
}

func itemKey(contentType, metaID string) string {
	return contentType + ":" + metaID
}

// Add puts an item into the library (idempotent; re-adding refreshes
// name and poster).
func (s *Store) Add(contentType, metaID, name, poster string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := itemKey(contentType, metaID)
	item, ok := s.items[key]
	if !ok {
		item = &Item{
			Type:    contentType,
			MetaID:  metaID,
			AddedAt: time.Now(),
			Videos:  make(map[string]*VideoState),
		}
		s.items[key] = item
	}
	item.Name = name
	item.Poster = poster
	return s.persistLocked()
}

// Remove deletes an item and its watch state.
func (s *Store) Remove(contentType, metaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := itemKey(contentType, metaID)
	if _, ok := s.items[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(s.items, key)
	return s.persistLocked()
}

// Get returns a copy of an item.
func (s *Store) Get(contentType, metaID string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemKey(contentType, metaID)]
	if !ok {
		return Item{}, false
	}
	return copyItem(item), true
}

// List returns all items, most recently watched first; never-watched
// items follow by add time.
func (s *Store) List() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, copyItem(item))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastWatched.Equal(out[j].LastWatched) {
			return out[i].LastWatched.After(out[j].LastWatched)
		}
		return out[i].AddedAt.After(out[j].AddedAt)
	})
	return out
}

// RecordPlayback notes that playback of a video started. The item is
// created if the content is not in the library yet, so everything the
// user plays shows up in continue watching.
func (s *Store) RecordPlayback(contentType, metaID, videoID, name, poster string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := itemKey(contentType, metaID)
	item, ok := s.items[key]
	if !ok {
		item = &Item{
			Type:    contentType,
			MetaID:  metaID,
			Name:    name,
			Poster:  poster,
			AddedAt: time.Now(),
			Videos:  make(map[string]*VideoState),
		}
		s.items[key] = item
	}
	if item.Name == "" {
		item.Name = name
	}
	item.LastWatched = time.Now()
	item.TimesWatched++

	v := item.video(videoID)
	v.LastWatched = time.Now()
	return s.persistLocked()
}

// UpdateProgress stores the playback position of a video.
func (s *Store) UpdateProgress(contentType, metaID, videoID string, offset, duration float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := itemKey(contentType, metaID)
	item, ok := s.items[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	v := item.video(videoID)
	v.Offset = offset
	v.Duration = duration
	v.LastWatched = time.Now()
	item.LastWatched = time.Now()
	if duration > 0 && offset >= duration*completionThreshold {
		v.Watched = true
	}
	return s.persistLocked()
}

// MarkWatched flags a video as finished regardless of its offset.
func (s *Store) MarkWatched(contentType, metaID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemKey(contentType, metaID)]
	if !ok {
		return fmt.Errorf("%w: %s:%s", ErrNotFound, contentType, metaID)
	}
	v := item.video(videoID)
	v.Watched = true
	v.LastWatched = time.Now()
	return s.persistLocked()
}

// ContinueWatching returns partially watched videos, most recent first.
func (s *Store) ContinueWatching() []ContinueEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ContinueEntry
	for _, item := range s.items {
		for videoID, v := range item.Videos {
			if v.Watched || v.Offset <= 0 || v.Duration <= 0 {
				continue
			}
			if v.Offset >= v.Duration*completionThreshold {
				continue
			}
			out = append(out, ContinueEntry{
				Item:     copyItem(item),
				VideoID:  videoID,
				Offset:   v.Offset,
				Duration: v.Duration,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Item.Videos[out[i].VideoID].LastWatched.After(out[j].Item.Videos[out[j].VideoID].LastWatched)
	})
	return out
}

func (item *Item) video(videoID string) *VideoState {
	if item.Videos == nil {
		item.Videos = make(map[string]*VideoState)
	}
	v, ok := item.Videos[videoID]
	if !ok {
		v = &VideoState{}
		item.Videos[videoID] = v
	}
	return v
}

func copyItem(item *Item) Item {
	cp := *item
	cp.Videos = make(map[string]*VideoState, len(item.Videos))
	for id, v := range item.Videos {
		vc := *v
		cp.Videos[id] = &vc
	}
	return cp
}

func (s *Store) persistLocked() error {
	return s.state.Set(stateKey, s.items)
}
