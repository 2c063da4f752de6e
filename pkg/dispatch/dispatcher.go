// Package dispatch sends a chosen stream to its playback target. An
// external player preference becomes an ordered list of URL-scheme
// attempts with internal playback as the guaranteed last resort; an
// internal preference plays directly.
package dispatch

import (
	"context"

	"streamdock/pkg/config"
	"streamdock/pkg/logger"
	"streamdock/pkg/stream"
)

// State is the dispatch state machine position.
type State int

const (
	StateNotStarted State = iota
	StateTryingExternal
	StateSucceeded
	StateFellBackToInternal
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateTryingExternal:
		return "trying_external"
	case StateSucceeded:
		return "succeeded"
	case StateFellBackToInternal:
		return "fell_back_to_internal"
	}
	return "unknown"
}

// Attempt records one external invocation outcome.
type Attempt struct {
	URL      string `json:"url"`
	Template string `json:"template,omitempty"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// Result is a finished dispatch. State is always terminal: Succeeded
// for an external win, FellBackToInternal otherwise.
type Result struct {
	State    State     `json:"-"`
	Status   string    `json:"status"`
	Target   string    `json:"target,omitempty"`
	Internal bool      `json:"internal"`
	Attempts []Attempt `json:"attempts"`
}

// Event reports dispatch progress, one per state transition, for the
// websocket feed.
type Event struct {
	State   string `json:"state"`
	URL     string `json:"url,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
	Total   int    `json:"total,omitempty"`
	Entry   string `json:"entry,omitempty"`
}

// InternalPlayer is the guaranteed-success playback terminal. Whatever
// happens inside it is its own concern; dispatch never observes a
// failure from it.
type InternalPlayer interface {
	Play(ctx context.Context, e stream.Entry)
}

// Dispatcher executes plans. Attempts within one dispatch are strictly
// sequential; separate dispatches may interleave freely.
type Dispatcher struct {
	opener   Opener
	internal InternalPlayer
	events   func(Event)
}

func New(opener Opener, internal InternalPlayer) *Dispatcher {
	return &Dispatcher{
		opener:   opener,
		internal: internal,
	}
}

// SetEventSink registers a progress callback. Must be set before the
// first Dispatch; events fire on the dispatching goroutine.
func (d *Dispatcher) SetEventSink(fn func(Event)) {
	d.events = fn
}

func (d *Dispatcher) emit(ev Event) {
	if d.events != nil {
		d.events(ev)
	}
}

// Dispatch builds the plan for the entry under pref and walks it: each
// external candidate is tried once, in order, never retried; the first
// success terminates. When every external attempt fails the entry plays
// internally without surfacing the failures. Dispatch always reaches a
// terminal state.
func (d *Dispatcher) Dispatch(ctx context.Context, e stream.Entry, pref config.PlayerPreference) *Result {
	plan := BuildPlan(e, pref)
	return d.Run(ctx, plan)
}

// Run executes a previously built plan.
func (d *Dispatcher) Run(ctx context.Context, plan Plan) *Result {
	res := &Result{State: StateNotStarted}
	total := plan.ExternalAttempts()
	entryName := plan.Entry.DisplayTitle()

	logger.Info("Dispatching stream",
		"entry", entryName,
		"external_attempts", total,
		"magnet", plan.Entry.IsMagnet())

	attempt := 0
	for _, cand := range plan.Candidates {
		if !cand.External {
			if attempt == 0 {
				// Direct internal play, nothing was attempted before it
				res.State = StateSucceeded
				logger.Info("Playing internally", "entry", entryName)
			} else {
				res.State = StateFellBackToInternal
				logger.Info("All external attempts failed, playing internally", "entry", entryName)
			}
			res.Status = res.State.String()
			res.Internal = true
			d.emit(Event{State: res.Status, Entry: entryName})
			d.internal.Play(ctx, plan.Entry)
			return res
		}

		attempt++
		res.State = StateTryingExternal
		d.emit(Event{State: res.State.String(), URL: cand.URL, Attempt: attempt, Total: total, Entry: entryName})
		logger.Debug("Trying external player", "attempt", attempt, "total", total, "url", cand.URL)

		err := d.opener.OpenURL(ctx, cand.URL)
		if err == nil {
			res.State = StateSucceeded
			res.Status = res.State.String()
			res.Target = cand.URL
			res.Attempts = append(res.Attempts, Attempt{URL: cand.URL, Template: cand.Template, OK: true})
			d.emit(Event{State: res.Status, URL: cand.URL, Attempt: attempt, Total: total, Entry: entryName})
			logger.Info("External player accepted stream", "url", cand.URL, "attempt", attempt)
			return res
		}

		// A refused scheme is expected when the player is not
		// installed; advance silently.
		logger.Warn("External attempt failed", "url", cand.URL, "attempt", attempt, "err", err)
		res.Attempts = append(res.Attempts, Attempt{URL: cand.URL, Template: cand.Template, Error: err.Error()})
	}

	// Unreachable with well-formed plans; BuildPlan always appends the
	// internal terminal.
	res.State = StateFellBackToInternal
	res.Status = res.State.String()
	res.Internal = true
	d.internal.Play(ctx, plan.Entry)
	return res
}
