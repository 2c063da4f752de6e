// Package aggregate collects stream candidates for one content item from
// every installed stream source in parallel. Individual source failures
// are absorbed into the result; only an unusable request fails outright.
package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"streamdock/pkg/addon"
	"streamdock/pkg/logger"
	"streamdock/pkg/stream"
	"streamdock/pkg/stremio"
)

// Fetcher fetches stream candidates from one addon transport.
// *stremio.Client is the production implementation.
type Fetcher interface {
	Streams(ctx context.Context, transportURL, contentType, contentID string) ([]stremio.Stream, error)
}

// SourceProvider lists the installed stream-capable addons for a content
// type, in collection order. *addon.Collection is the production
// implementation.
type SourceProvider interface {
	StreamSources(contentType string) []addon.Installed
}

// Aggregator fans a stream request out to all sources and joins the
// outcomes into a fresh Result.
type Aggregator struct {
	fetcher Fetcher
	sources SourceProvider
}

func New(fetcher Fetcher, sources SourceProvider) *Aggregator {
	return &Aggregator{
		fetcher: fetcher,
		sources: sources,
	}
}

type fetchOutcome struct {
	id      string
	entries []stream.Entry
	err     error
}

// Fetch queries every enabled stream source in parallel and returns one
// Result. Sources that fail land in Result.Errors and the rest still
// count; a result where nobody returned entries is a valid empty state.
func (a *Aggregator) Fetch(ctx context.Context, content stream.ContentID) (*stream.Result, error) {
	if !content.Valid() {
		return nil, fmt.Errorf("invalid content id %q (type %q)", content.ID, content.Type)
	}

	sources := a.sources.StreamSources(content.Type)
	res := &stream.Result{
		Content:   content,
		Groups:    make(map[string]*stream.Group),
		Errors:    make(map[string]error),
		FetchedAt: time.Now(),
	}
	if len(sources) == 0 {
		logger.Info("No stream sources installed", "content", content.String())
		return res, nil
	}

	resultsChan := make(chan fetchOutcome, len(sources))
	var wg sync.WaitGroup

	for _, src := range sources {
		wg.Add(1)
		go func(src addon.Installed) {
			defer wg.Done()

			streams, err := a.fetcher.Streams(ctx, src.TransportURL, content.Type, content.ID)
			if err != nil {
				logger.Warn("Stream source failed", "addon", src.Name, "content", content.String(), "err", err)
				resultsChan <- fetchOutcome{id: src.ID, err: err}
				return
			}

			entries := make([]stream.Entry, 0, len(streams))
			seen := make(map[string]bool, len(streams))
			for _, s := range streams {
				e, ok := stream.FromStream(s, src.ID, src.Name)
				if !ok {
					continue
				}
				// Addons occasionally repeat the same URL across flavors
				if seen[e.URL] {
					continue
				}
				seen[e.URL] = true
				entries = append(entries, e)
			}
			resultsChan <- fetchOutcome{id: src.ID, entries: entries}
		}(src)
	}

	wg.Wait()
	close(resultsChan)

	outcomes := make(map[string]fetchOutcome, len(sources))
	for out := range resultsChan {
		outcomes[out.id] = out
	}

	// Assemble in collection order so encounter order is stable
	for _, src := range sources {
		out := outcomes[src.ID]
		res.Order = append(res.Order, src.ID)
		if out.err != nil {
			res.Errors[src.ID] = out.err
			continue
		}
		res.Groups[src.ID] = &stream.Group{
			ID:      src.ID,
			Name:    src.Name,
			Entries: out.entries,
		}
	}

	logger.Info("Aggregated streams",
		"content", content.String(),
		"sources", len(sources),
		"streams", res.TotalStreams(),
		"failed", len(res.Errors))
	return res, nil
}
