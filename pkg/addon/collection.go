// Package addon manages the installed addon collection: the ordered list
// of stream and metadata providers the user has installed. The order is
// user-controlled and drives provider ordering everywhere in the UI.
package addon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"streamdock/pkg/config"
	"streamdock/pkg/logger"
	"streamdock/pkg/persistence"
	"streamdock/pkg/stremio"
)

const stateKey = "addons"

var (
	ErrNotFound  = errors.New("addon not found")
	ErrProtected = errors.New("addon is protected")
	ErrDuplicate = errors.New("addon already installed")
)

// Installed is one addon in the collection.
type Installed struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	TransportURL string    `json:"transport_url"`
	Types        []string  `json:"types,omitempty"`
	Logo         string    `json:"logo,omitempty"`
	Version      string    `json:"version,omitempty"`
	HasStreams   bool      `json:"has_streams"`
	Enabled      bool      `json:"enabled"`
	Protected    bool      `json:"protected"`
	InstalledAt  time.Time `json:"installed_at"`
}

// SupportsType reports whether the addon declared the content type. An
// empty type list means unrestricted.
func (a *Installed) SupportsType(contentType string) bool {
	if len(a.Types) == 0 {
		return true
	}
	for _, t := range a.Types {
		if t == contentType {
			return true
		}
	}
	return false
}

// Collection is the ordered installed addon list, persisted in the state
// file under the addons key.
type Collection struct {
	mu     sync.RWMutex
	state  *persistence.StateManager
	client *stremio.Client
	addons []*Installed
}

// NewCollection loads the collection from the state manager. A fresh
// install starts with the protected Cinemeta metadata addon.
func NewCollection(state *persistence.StateManager, client *stremio.Client) (*Collection, error) {
	c := &Collection{
		state:  state,
		client: client,
	}

	var stored []*Installed
	found, err := state.Get(stateKey, &stored)
	if err != nil {
		return nil, fmt.Errorf("failed to load addons: %w", err)
	}
	if found {
		c.addons = stored
	} else {
		c.addons = defaultAddons()
		if err := c.persistLocked(); err != nil {
			logger.Warn("Failed to persist default addons", "err", err)
		}
	}

	logger.Info("Addon collection loaded", "count", len(c.addons))
	return c, nil
}

func defaultAddons() []*Installed {
	return []*Installed{
		{
			ID:           "com.linvo.cinemeta",
			Name:         "Cinemeta",
			Description:  "The official movie and series catalog",
			TransportURL: "https://v3-cinemeta.strem.io/manifest.json",
			Types:        []string{"movie", "series"},
			HasStreams:   false,
			Enabled:      true,
			Protected:    true,
			InstalledAt:  time.Now(),
		},
	}
}

// Seed installs environment-provisioned addons that are not already
// present. Failures are logged and skipped so one bad seed does not
// block startup.
func (c *Collection) Seed(ctx context.Context, seeds []config.AddonSeed) {
	for _, seed := range seeds {
		manifestURL := stremio.ManifestURL(seed.TransportURL)
		if c.byTransportURL(manifestURL) != nil {
			continue
		}
		installed, err := c.Install(ctx, seed.TransportURL)
		if err != nil {
			logger.Warn("Failed to install seeded addon", "url", seed.TransportURL, "err", err)
			continue
		}
		logger.Info("Installed seeded addon", "id", installed.ID, "name", installed.Name)
	}
}

func (c *Collection) byTransportURL(manifestURL string) *Installed {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.addons {
		if a.TransportURL == manifestURL {
			return a
		}
	}
	return nil
}

// Install fetches and validates the manifest at rawURL and appends the
// addon to the collection.
func (c *Collection) Install(ctx context.Context, rawURL string) (*Installed, error) {
	manifestURL := stremio.ManifestURL(rawURL)

	m, err := c.client.Manifest(ctx, manifestURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range c.addons {
		if a.ID == m.ID {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, m.ID)
		}
	}

	installed := &Installed{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		TransportURL: manifestURL,
		Types:        m.Types,
		Logo:         m.Logo,
		Version:      m.Version,
		HasStreams:   m.HasResource(stremio.ResourceStream),
		Enabled:      true,
		InstalledAt:  time.Now(),
	}
	c.addons = append(c.addons, installed)

	if err := c.persistLocked(); err != nil {
		return nil, err
	}
	logger.Info("Addon installed", "id", installed.ID, "name", installed.Name, "streams", installed.HasStreams)
	return installed, nil
}

// Uninstall removes an addon. Protected addons refuse.
func (c *Collection) Uninstall(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, a := range c.addons {
		if a.ID != id {
			continue
		}
		if a.Protected {
			return fmt.Errorf("%w: %s", ErrProtected, id)
		}
		c.addons = append(c.addons[:i], c.addons[i+1:]...)
		if err := c.persistLocked(); err != nil {
			return err
		}
		logger.Info("Addon uninstalled", "id", id)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// SetEnabled toggles an addon without losing its position.
func (c *Collection) SetEnabled(id string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range c.addons {
		if a.ID == id {
			a.Enabled = enabled
			return c.persistLocked()
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Move shifts an addon by delta positions (negative moves up). The new
// position is clamped to the list bounds.
func (c *Collection) Move(id string, delta int) error {
	if delta == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	from := -1
	for i, a := range c.addons {
		if a.ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	to := from + delta
	if to < 0 {
		to = 0
	}
	if to >= len(c.addons) {
		to = len(c.addons) - 1
	}
	if to == from {
		return nil
	}

	moved := c.addons[from]
	c.addons = append(c.addons[:from], c.addons[from+1:]...)
	c.addons = append(c.addons[:to], append([]*Installed{moved}, c.addons[to:]...)...)
	return c.persistLocked()
}

// Get returns the addon with the given id.
func (c *Collection) Get(id string) (*Installed, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.addons {
		if a.ID == id {
			cp := *a
			return &cp, true
		}
	}
	return nil, false
}

// List returns a copy of the collection in order.
func (c *Collection) List() []Installed {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Installed, len(c.addons))
	for i, a := range c.addons {
		out[i] = *a
	}
	return out
}

// OrderedIDs returns all installed addon ids, in collection order.
func (c *Collection) OrderedIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, len(c.addons))
	for i, a := range c.addons {
		ids[i] = a.ID
	}
	return ids
}

// Names maps addon ids to their installed display names.
func (c *Collection) Names() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make(map[string]string, len(c.addons))
	for _, a := range c.addons {
		names[a.ID] = a.Name
	}
	return names
}

// StreamSources returns the enabled stream-capable addons that support
// the content type, in collection order.
func (c *Collection) StreamSources(contentType string) []Installed {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Installed
	for _, a := range c.addons {
		if a.Enabled && a.HasStreams && a.SupportsType(contentType) {
			out = append(out, *a)
		}
	}
	return out
}

func (c *Collection) persistLocked() error {
	return c.state.Set(stateKey, c.addons)
}
