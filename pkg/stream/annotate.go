package stream

import (
	"sort"
	"strings"

	"github.com/MunifTanjim/go-ptt"
)

// Annotation is quality metadata parsed from an entry's free-form text.
// It is derived on demand for display and sorting, never stored on the
// wire model.
type Annotation struct {
	Resolution string   `json:"resolution,omitempty"`
	Quality    string   `json:"quality,omitempty"`
	Codec      string   `json:"codec,omitempty"`
	Audio      []string `json:"audio,omitempty"`
	Channels   []string `json:"channels,omitempty"`
	HDR        []string `json:"hdr,omitempty"`
	Size       string   `json:"size,omitempty"`
	Group      string   `json:"group,omitempty"`
	Languages  []string `json:"languages,omitempty"`
	BitDepth   string   `json:"bitDepth,omitempty"`
	ThreeD     string   `json:"threeD,omitempty"`

	// Cached marks debrid entries that play instantly
	Cached bool `json:"cached,omitempty"`
}

// debrid services badge instantly-playable entries with these markers
var cachedMarkers = []string{"⚡", "[RD+]", "[PM+]", "[AD+]", "[DL+]", "[TB+]", "RD+", "instant"}

// Annotate parses an entry's text into quality metadata. The filename
// hint is the cleanest release name when present; title text otherwise.
func Annotate(e Entry) *Annotation {
	text := e.DisplayTitle()
	if e.BehaviorHints != nil && e.BehaviorHints.Filename != "" {
		text = e.BehaviorHints.Filename
	}

	info := ptt.Parse(text)
	a := &Annotation{
		Resolution: info.Resolution,
		Quality:    info.Quality,
		Codec:      info.Codec,
		Audio:      info.Audio,
		Channels:   info.Channels,
		HDR:        info.HDR,
		Size:       info.Size,
		Group:      info.Group,
		Languages:  info.Languages,
		BitDepth:   info.BitDepth,
		ThreeD:     info.ThreeD,
	}

	badge := e.Name + " " + e.Title
	for _, marker := range cachedMarkers {
		if strings.Contains(badge, marker) {
			a.Cached = true
			break
		}
	}
	return a
}

// ResolutionGroup returns the resolution bucket (4k, 1080p, 720p, sd).
func (a *Annotation) ResolutionGroup() string {
	if a == nil {
		return "sd"
	}
	res := strings.ToLower(a.Resolution)
	if strings.Contains(res, "2160") || strings.Contains(res, "4k") {
		return "4k"
	}
	if strings.Contains(res, "1080") {
		return "1080p"
	}
	if strings.Contains(res, "720") {
		return "720p"
	}
	return "sd"
}

var resolutionRanks = map[string]int{
	"4k":    4,
	"1080p": 3,
	"720p":  2,
	"sd":    1,
}

// SortByQuality re-orders entries by parsed resolution, best first. The
// sort is stable so a provider's own ordering survives within a bucket.
func SortByQuality(entries []Entry) {
	type ranked struct {
		entry Entry
		rank  int
	}
	rs := make([]ranked, len(entries))
	for i, e := range entries {
		rs[i] = ranked{entry: e, rank: resolutionRanks[Annotate(e).ResolutionGroup()]}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].rank > rs[j].rank
	})
	for i, r := range rs {
		entries[i] = r.entry
	}
}
