package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/matchpulse/matchpulse/go/internal/events"
	"github.com/matchpulse/matchpulse/go/internal/models"
)

// Provider supplies the near-term raw event payloads for one upstream source.
type Provider interface {
	Name() string
	FetchNearTermEvents(ctx context.Context) ([]json.RawMessage, error)
}

// EventStore defines what the collector needs from the canonical store.
type EventStore interface {
	Upsert(ctx context.Context, in events.NormalizedEvent, ref events.SourceRef) (*models.CanonicalEvent, events.UpsertOutcome, error)
}

// Normalizer translates a provider payload into the canonical schema.
type Normalizer interface {
	Normalize(source string, raw json.RawMessage) (events.NormalizedEvent, events.SourceRef, bool)
}

// SyncResult reports one provider sweep.
type SyncResult struct {
	Source         string
	TotalProcessed int
	Created        int
	Updated        int
	Unchanged      int
	Skipped        int
	Errors         []error
}

// Collector runs the bulk discovery sweep that seeds and refreshes the
// canonical store ahead of live monitoring.
type Collector struct {
	store      EventStore
	normalizer Normalizer
	providers  []Provider
}

func NewCollector(store EventStore, normalizer Normalizer, providers []Provider) *Collector {
	return &Collector{
		store:      store,
		normalizer: normalizer,
		providers:  providers,
	}
}

// Run sweeps every provider once. Provider sweeps are independent and run
// concurrently; within a sweep events are processed in order.
func (c *Collector) Run(ctx context.Context) []SyncResult {
	results := make([]SyncResult, len(c.providers))

	var wg sync.WaitGroup
	for i, provider := range c.providers {
		wg.Add(1)
		go func(i int, provider Provider) {
			defer wg.Done()
			results[i] = c.sweep(ctx, provider)
		}(i, provider)
	}
	wg.Wait()

	for _, result := range results {
		log.Info().
			Str("source", result.Source).
			Int("total", result.TotalProcessed).
			Int("created", result.Created).
			Int("updated", result.Updated).
			Int("unchanged", result.Unchanged).
			Int("skipped", result.Skipped).
			Int("errors", len(result.Errors)).
			Msg("provider sweep complete")
	}
	return results
}

func (c *Collector) sweep(ctx context.Context, provider Provider) SyncResult {
	result := SyncResult{Source: provider.Name()}

	raws, err := provider.FetchNearTermEvents(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("failed to fetch events from %s: %w", provider.Name(), err))
		return result
	}

	for _, raw := range raws {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ctx.Err())
			return result
		}
		result.TotalProcessed++

		normalized, ref, ok := c.normalizer.Normalize(provider.Name(), raw)
		if !ok {
			result.Skipped++
			continue
		}

		_, outcome, err := c.store.Upsert(ctx, normalized, ref)
		if err != nil {
			log.Warn().Err(err).
				Str("source", ref.SourceName).
				Str("source_event_id", ref.SourceEventID).
				Msg("failed to upsert event")
			result.Errors = append(result.Errors, fmt.Errorf("failed to upsert %s event %s: %w", ref.SourceName, ref.SourceEventID, err))
			continue
		}

		switch outcome {
		case events.OutcomeCreated:
			result.Created++
		case events.OutcomeUpdated:
			result.Updated++
		default:
			result.Unchanged++
		}
	}
	return result
}
