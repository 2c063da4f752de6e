package dispatch

import (
	"streamdock/pkg/config"
	"streamdock/pkg/stream"
)

// Candidate is one invocation target of a plan. External candidates are
// URL-scheme attempts; the final candidate of every plan is the internal
// playback terminal.
type Candidate struct {
	// URL to hand to the platform opener. Empty for the internal terminal.
	URL string `json:"url,omitempty"`
	// Template that produced the URL; empty for the raw-URL attempt and
	// the internal terminal.
	Template string `json:"template,omitempty"`
	External bool   `json:"external"`
}

// Plan is the ordered list of invocation candidates derived from one
// entry and the player preference. Plans are consumed strictly in order
// and always end with the internal terminal, so no plan is empty.
type Plan struct {
	Entry      stream.Entry `json:"entry"`
	Candidates []Candidate  `json:"candidates"`
}

// ExternalAttempts counts the URL-scheme candidates of the plan.
func (p Plan) ExternalAttempts() int {
	n := 0
	for _, c := range p.Candidates {
		if c.External {
			n++
		}
	}
	return n
}

var internalCandidate = Candidate{External: false}

// BuildPlan derives the invocation candidates for an entry under a
// player preference:
//
//   - internal preference, or no scheme row for the platform/player
//     pair: the internal terminal only
//   - magnet entries with an external preference: the raw magnet URL,
//     then internal (scheme wrapping mangles magnets, player apps
//     register the magnet scheme themselves)
//   - otherwise: every scheme template expanded in order, then the raw
//     URL, then internal
func BuildPlan(e stream.Entry, pref config.PlayerPreference) Plan {
	plan := Plan{Entry: e}

	if !pref.UseExternal || pref.Player == config.PlayerInternal {
		plan.Candidates = []Candidate{internalCandidate}
		return plan
	}

	if e.IsMagnet() {
		plan.Candidates = []Candidate{
			{URL: e.URL, External: true},
			internalCandidate,
		}
		return plan
	}

	templates, ok := Templates(pref.Platform, pref.Player)
	if !ok {
		plan.Candidates = []Candidate{internalCandidate}
		return plan
	}

	candidates := make([]Candidate, 0, len(templates)+2)
	for _, t := range templates {
		candidates = append(candidates, Candidate{
			URL:      expandTemplate(t, e.URL),
			Template: t,
			External: true,
		})
	}
	// The raw URL is the last external resort: some players register
	// themselves as handlers for plain http(s).
	candidates = append(candidates, Candidate{URL: e.URL, External: true})
	candidates = append(candidates, internalCandidate)

	plan.Candidates = candidates
	return plan
}
