package stremio

import (
	"encoding/json"
	"fmt"
)

// ResourceStream is the manifest resource name for stream support.
const ResourceStream = "stream"

// Manifest represents a Stremio addon manifest
type Manifest struct {
	ID          string     `json:"id"`
	Version     string     `json:"version"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Resources   []Resource `json:"resources"`
	Types       []string   `json:"types"`
	Catalogs    []Catalog  `json:"catalogs"`
	IDPrefixes  []string   `json:"idPrefixes,omitempty"`
	Background  string     `json:"background,omitempty"`
	Logo        string     `json:"logo,omitempty"`

	BehaviorHints *ManifestBehaviorHints `json:"behaviorHints,omitempty"`
}

// Resource is a manifest resource declaration. Addons publish either a
// bare string ("stream") or an object with name/types/idPrefixes, so it
// unmarshals from both forms.
type Resource struct {
	Name       string   `json:"name"`
	Types      []string `json:"types,omitempty"`
	IDPrefixes []string `json:"idPrefixes,omitempty"`
}

func (r *Resource) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		r.Name = name
		return nil
	}
	type plain Resource
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Resource(p)
	return nil
}

// Catalog represents a content catalog
type Catalog struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ManifestBehaviorHints describes addon-level behavior
type ManifestBehaviorHints struct {
	Adult                 bool `json:"adult,omitempty"`
	P2P                   bool `json:"p2p,omitempty"`
	Configurable          bool `json:"configurable,omitempty"`
	ConfigurationRequired bool `json:"configurationRequired,omitempty"`
}

// Validate checks that a fetched manifest carries the fields the rest of
// the application relies on.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("manifest has no id")
	}
	if m.Name == "" {
		return fmt.Errorf("manifest %s has no name", m.ID)
	}
	return nil
}

// HasResource reports whether the manifest declares the named resource.
func (m *Manifest) HasResource(name string) bool {
	for _, r := range m.Resources {
		if r.Name == name {
			return true
		}
	}
	return false
}

// SupportsType reports whether the manifest declares the content type.
func (m *Manifest) SupportsType(contentType string) bool {
	for _, t := range m.Types {
		if t == contentType {
			return true
		}
	}
	return false
}
