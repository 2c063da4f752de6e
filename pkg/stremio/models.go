package stremio

// StreamResponse represents an addon's response to a stream request
type StreamResponse struct {
	Streams []Stream `json:"streams"`
}

// Stream represents a single stream option returned by an addon
type Stream struct {
	// URL for direct streaming (HTTP video file or magnet link)
	URL string `json:"url,omitempty"`

	// ExternalUrl opens outside the player (alternative to URL)
	ExternalUrl string `json:"externalUrl,omitempty"`

	// InfoHash and FileIdx identify a torrent stream. Addons may return
	// these instead of a URL.
	InfoHash string `json:"infoHash,omitempty"`
	FileIdx  int    `json:"fileIdx,omitempty"`

	// Sources are tracker/DHT hints for torrent streams
	Sources []string `json:"sources,omitempty"`

	// Display name (usually the addon flavor, e.g. "Torrentio 4k")
	Name string `json:"name,omitempty"`

	// Optional metadata (quality, size and flags commonly live in here
	// as free text)
	Title         string         `json:"title,omitempty"`
	Description   string         `json:"description,omitempty"`
	BehaviorHints *BehaviorHints `json:"behaviorHints,omitempty"`
}

// BehaviorHints provides hints about stream behavior
type BehaviorHints struct {
	NotWebReady      bool                         `json:"notWebReady,omitempty"`
	BingeGroup       string                       `json:"bingeGroup,omitempty"`
	CountryWhitelist []string                     `json:"countryWhitelist,omitempty"`
	VideoSize        int64                        `json:"videoSize,omitempty"`
	Filename         string                       `json:"filename,omitempty"`
	ProxyHeaders     map[string]map[string]string `json:"proxyHeaders,omitempty"`
}

// Text returns the free-form text of the stream with quality information,
// preferring title over description. Addons are inconsistent about which
// field carries it.
func (s *Stream) Text() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Description
}
