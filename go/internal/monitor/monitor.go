package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/matchpulse/matchpulse/go/internal/events"
	"github.com/matchpulse/matchpulse/go/internal/models"
	"github.com/matchpulse/matchpulse/go/internal/publish"
)

// Config holds the monitor's scheduling knobs.
type Config struct {
	// ActivePollInterval is the sleep between cycles while any event needs
	// attention.
	ActivePollInterval time.Duration
	// HibernationInterval caps every hibernation sleep, so newly scheduled
	// events are still noticed while nothing is live.
	HibernationInterval time.Duration
	// ProximityBuffer decides how close to kickoff a scheduled event starts
	// warranting close monitoring. The hibernation wake time is anchored to
	// the same buffer.
	ProximityBuffer time.Duration
	// CycleFailureBackoff is the sleep after an unexpected cycle failure.
	CycleFailureBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		ActivePollInterval:  15 * time.Second,
		HibernationInterval: 300 * time.Second,
		ProximityBuffer:     30 * time.Minute,
		CycleFailureBackoff: 30 * time.Second,
	}
}

// EventStore defines what the monitor needs from the canonical store.
type EventStore interface {
	Upsert(ctx context.Context, in events.NormalizedEvent, ref events.SourceRef) (*models.CanonicalEvent, events.UpsertOutcome, error)
	FindEventsNeedingAttention(ctx context.Context, buffer time.Duration) ([]events.AttentionEvent, error)
	FindNextScheduledStart(ctx context.Context) (*time.Time, error)
}

// ProviderAdapter fetches the current detail payload for one event. A nil
// payload means the provider has no data this cycle, which is not an error.
type ProviderAdapter interface {
	FetchEventDetail(ctx context.Context, sourceEventID string) (json.RawMessage, error)
}

// Normalizer translates a provider payload into the canonical schema.
type Normalizer interface {
	Normalize(source string, raw json.RawMessage) (events.NormalizedEvent, events.SourceRef, bool)
}

// Monitor is the adaptive polling loop for live and imminent matches. Each
// cycle it is either active (events need attention, refresh them all) or
// hibernating (sleep until just before the next kickoff, capped by the
// hibernation interval). The state is recomputed every cycle, never stored.
type Monitor struct {
	store      EventStore
	adapters   map[string]ProviderAdapter
	normalizer Normalizer
	publisher  publish.Publisher
	clock      clockwork.Clock
	config     Config
	instanceID string // short ID for logging

	// transportDown marks a failed publish, so the connection is probed
	// before the next attempt instead of assumed healthy.
	transportDown bool
}

// NewMonitor creates a live monitor over the given providers. The adapters
// map is keyed by source name as it appears in source mappings.
func NewMonitor(store EventStore, adapters map[string]ProviderAdapter, normalizer Normalizer, publisher publish.Publisher, config Config) *Monitor {
	return &Monitor{
		store:      store,
		adapters:   adapters,
		normalizer: normalizer,
		publisher:  publisher,
		clock:      clockwork.NewRealClock(),
		config:     config,
		instanceID: uuid.New().String()[:8],
	}
}

// Run executes monitoring cycles until ctx is cancelled. No single bad cycle
// terminates the loop; failures are logged and retried after a backoff.
func (m *Monitor) Run(ctx context.Context) error {
	log.Info().
		Str("instance", m.instanceID).
		Dur("active_interval", m.config.ActivePollInterval).
		Dur("hibernation_interval", m.config.HibernationInterval).
		Dur("proximity_buffer", m.config.ProximityBuffer).
		Msg("live monitor started")

	for {
		sleep, err := m.runCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Str("instance", m.instanceID).Msg("monitor cycle failed")
			sleep = m.config.CycleFailureBackoff
		}

		select {
		case <-ctx.Done():
			log.Info().Str("instance", m.instanceID).Msg("live monitor stopped")
			return nil
		case <-m.clock.After(sleep):
		}
	}

	log.Info().Str("instance", m.instanceID).Msg("live monitor stopped")
	return nil
}

// runCycle performs one pass of the state machine and returns how long to
// sleep before the next one.
func (m *Monitor) runCycle(ctx context.Context) (time.Duration, error) {
	attention, err := m.store.FindEventsNeedingAttention(ctx, m.config.ProximityBuffer)
	if err != nil {
		return 0, err
	}

	if len(attention) == 0 {
		return m.hibernate(ctx), nil
	}

	log.Info().Str("instance", m.instanceID).Int("events", len(attention)).Msg("monitoring active events")
	for _, a := range attention {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if err := m.refreshEvent(ctx, a); err != nil {
			// Storage failures abort the cycle; the events are retried after
			// the backoff since they still need attention.
			return 0, err
		}
	}
	return m.config.ActivePollInterval, nil
}

// refreshEvent fetches, normalizes, merges and publishes one event. Fetch and
// normalize problems skip the event for this cycle only; it reappears in the
// next attention list. Only persistence failures propagate.
func (m *Monitor) refreshEvent(ctx context.Context, a events.AttentionEvent) error {
	logger := log.With().
		Str("instance", m.instanceID).
		Str("source", a.SourceName).
		Str("source_event_id", a.SourceEventID).
		Logger()

	adapter, ok := m.adapters[a.SourceName]
	if !ok {
		logger.Warn().Msg("no adapter for source, skipping event")
		return nil
	}

	raw, err := adapter.FetchEventDetail(ctx, a.SourceEventID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to fetch event detail, retrying next cycle")
		return nil
	}
	if raw == nil {
		logger.Debug().Msg("no detail data this cycle")
		return nil
	}

	normalized, ref, ok := m.normalizer.Normalize(a.SourceName, raw)
	if !ok {
		logger.Warn().Msg("failed to normalize event detail, retrying next cycle")
		return nil
	}

	event, outcome, err := m.store.Upsert(ctx, normalized, ref)
	if err != nil {
		var verr *events.ValidationError
		if errors.As(err, &verr) {
			logger.Error().Err(err).Msg("dropping invalid observation")
			return nil
		}
		return err
	}

	if outcome == events.OutcomeUnchanged {
		logger.Debug().Msg("observation did not supersede stored event")
		return nil
	}

	logger.Info().
		Str("outcome", outcome.String()).
		Str("status", string(event.Status)).
		Int("home_score", event.HomeScore).
		Int("away_score", event.AwayScore).
		Msg("event updated")
	m.publishUpdate(ctx, ref, event)
	return nil
}

// publishUpdate sends an accepted delta to the transport. The merge is
// already durable, so failures only log; the transport is probed again before
// the next attempt.
func (m *Monitor) publishUpdate(ctx context.Context, ref events.SourceRef, event *models.CanonicalEvent) {
	if m.transportDown {
		if err := m.publisher.Check(ctx); err != nil {
			log.Warn().Err(err).Str("instance", m.instanceID).Msg("publish transport still down, skipping publish")
			return
		}
		m.transportDown = false
		log.Info().Str("instance", m.instanceID).Msg("publish transport reconnected")
	}

	update := publish.Update{
		SourceEventID:   ref.SourceEventID,
		Status:          string(event.Status),
		HomeTeamName:    event.HomeTeamName,
		AwayTeamName:    event.AwayTeamName,
		HomeScore:       event.HomeScore,
		AwayScore:       event.AwayScore,
		CurrentGameTime: event.CurrentGameTime,
		StartTime:       event.StartTime.Unix(),
		UpdatedAt:       m.clock.Now().Unix(),
	}
	if err := m.publisher.Publish(ctx, update); err != nil {
		m.transportDown = true
		log.Error().Err(err).
			Str("instance", m.instanceID).
			Str("source_event_id", ref.SourceEventID).
			Msg("failed to publish update, will reconnect next cycle")
	}
}

// hibernate computes the sleep for a cycle with nothing to monitor.
func (m *Monitor) hibernate(ctx context.Context) time.Duration {
	next, err := m.store.FindNextScheduledStart(ctx)
	if err != nil {
		log.Error().Err(err).Str("instance", m.instanceID).Msg("failed to query next scheduled start")
		return m.config.HibernationInterval
	}

	sleep := hibernationSleep(m.clock.Now(), next, m.config.ProximityBuffer, m.config.HibernationInterval)
	if next == nil {
		log.Info().Str("instance", m.instanceID).Dur("sleep", sleep).Msg("no future events scheduled, hibernating")
	} else {
		log.Info().Str("instance", m.instanceID).Time("next_start", *next).Dur("sleep", sleep).Msg("hibernating until next event window")
	}
	return sleep
}

// hibernationSleep anchors the wake time to the next kickoff minus the
// proximity buffer, capped by the hibernation ceiling so newly scheduled
// events are still picked up. An already-passed wake time falls back to the
// ceiling rather than a zero or negative sleep.
func hibernationSleep(now time.Time, next *time.Time, buffer, ceiling time.Duration) time.Duration {
	if next == nil {
		return ceiling
	}
	untilWake := next.Add(-buffer).Sub(now)
	if untilWake <= 0 {
		return ceiling
	}
	return min(untilWake, ceiling)
}
