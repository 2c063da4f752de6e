// Package selector filters and orders aggregated stream groups for
// display. Everything here is a pure function of its inputs so a
// selection can be re-derived at any time from the current result and
// the installed addon order.
package selector

import (
	"streamdock/pkg/stream"
)

// All is the filter token that selects every provider group.
const All = "all"

// ProviderStreams is one provider's group as presented to the UI, in
// final display order.
type ProviderStreams struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Entries []stream.Entry `json:"entries"`
	// Err is set when this provider's fetch failed. Failed providers
	// carry no entries but stay visible so the UI can mark them.
	Err error `json:"-"`
}

// Option is one entry of the provider filter control.
type Option struct {
	Token  string `json:"token"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Failed bool   `json:"failed,omitempty"`
}

// DisplayName resolves a provider's user-facing name: the installed
// addon's name wins, then the name the provider returned with its
// streams, then the raw id.
func DisplayName(installedName, providerName, id string) string {
	if installedName != "" {
		return installedName
	}
	if providerName != "" {
		return providerName
	}
	return id
}

// Order returns provider ids in display order: providers present in the
// installed list first, sorted by their position there; providers the
// result knows but the installed list does not follow in encounter
// order. The sort is stable.
func Order(resultOrder, installed []string) []string {
	inResult := make(map[string]bool, len(resultOrder))
	for _, id := range resultOrder {
		inResult[id] = true
	}

	out := make([]string, 0, len(resultOrder))
	seen := make(map[string]bool, len(resultOrder))
	for _, id := range installed {
		if inResult[id] && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	for _, id := range resultOrder {
		if !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	return out
}

// Select returns the provider groups matching the filter token, ordered
// by installed position. token All selects every group; a concrete id
// selects at most one. names supplies installed display names for the
// DisplayName precedence.
func Select(res *stream.Result, token string, installed []string, names map[string]string) []ProviderStreams {
	if res == nil {
		return nil
	}

	ordered := Order(res.Order, installed)
	out := make([]ProviderStreams, 0, len(ordered))
	for _, id := range ordered {
		if token != All && token != id {
			continue
		}
		ps := ProviderStreams{ID: id}
		if g, ok := res.Groups[id]; ok {
			ps.Name = DisplayName(names[id], g.Name, id)
			ps.Entries = g.Entries
		} else {
			ps.Name = DisplayName(names[id], "", id)
			ps.Err = res.Errors[id]
		}
		out = append(out, ps)
	}
	return out
}

// Options returns the provider filter options for a result: All first,
// then one option per provider in display order with its stream count.
func Options(res *stream.Result, installed []string, names map[string]string) []Option {
	if res == nil {
		return []Option{{Token: All, Name: "All"}}
	}

	opts := make([]Option, 0, len(res.Order)+1)
	opts = append(opts, Option{Token: All, Name: "All", Count: res.TotalStreams()})
	for _, ps := range Select(res, All, installed, names) {
		opts = append(opts, Option{
			Token:  ps.ID,
			Name:   ps.Name,
			Count:  len(ps.Entries),
			Failed: ps.Err != nil,
		})
	}
	return opts
}
