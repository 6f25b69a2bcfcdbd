package sportsdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/matchpulse/matchpulse/go/clients"
	"github.com/matchpulse/matchpulse/go/internal/normalize"
)

// AdmissionController gates every outbound request to this provider.
type AdmissionController interface {
	Acquire()
	Record()
}

// League identifies one league season to sweep for events.
type League struct {
	ID     string
	Season string
}

// Client speaks to the TheSportsDB API. The free tier exposes schedules and
// results per league season; live detail is limited.
type Client struct {
	*clients.BaseClient
	limiter AdmissionController
	apiKey  string
	leagues []League
}

func NewClient(apiKey string, leagues []League, limiter AdmissionController) *Client {
	if apiKey == "" {
		apiKey = FreeAPIKey
	}
	return &Client{
		BaseClient: clients.NewBaseClient(BaseURL),
		limiter:    limiter,
		apiKey:     apiKey,
		leagues:    leagues,
	}
}

// Name returns the provider name used in source mappings.
func (c *Client) Name() string { return normalize.SourceSportsDB }

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	c.limiter.Acquire()
	data, err := c.Get(ctx, endpoint)
	c.limiter.Record()
	return data, err
}

// eventsPage is how every TheSportsDB event endpoint shapes its response.
type eventsPage struct {
	Events []json.RawMessage `json:"events"`
}

// FetchNearTermEvents returns the raw payloads of every event in the
// configured league seasons. A failed league fetch is logged and skipped, but
// a sweep where every league failed is reported as an error.
func (c *Client) FetchNearTermEvents(ctx context.Context) ([]json.RawMessage, error) {
	var all []json.RawMessage
	fetched := 0

	for _, league := range c.leagues {
		events, err := c.fetchLeagueSeason(ctx, league)
		if err != nil {
			log.Warn().Err(err).Str("league_id", league.ID).Str("season", league.Season).
				Msg("failed to fetch thesportsdb league events")
			continue
		}
		log.Debug().Str("league_id", league.ID).Int("events", len(events)).
			Msg("fetched thesportsdb league events")
		fetched++
		all = append(all, events...)
	}

	if len(c.leagues) > 0 && fetched == 0 {
		return nil, fmt.Errorf("failed to fetch thesportsdb events for any configured league")
	}
	return all, nil
}

func (c *Client) fetchLeagueSeason(ctx context.Context, league League) ([]json.RawMessage, error) {
	data, err := c.get(ctx, fmt.Sprintf(seasonEventsEndpoint, c.apiKey, league.ID, league.Season))
	if err != nil {
		return nil, err
	}

	var page eventsPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to decode league %s events: %w", league.ID, err)
	}
	return page.Events, nil
}

// FetchEventDetail looks up one event by its TheSportsDB id. A missing event
// is reported as nil payload, not an error.
func (c *Client) FetchEventDetail(ctx context.Context, sourceEventID string) (json.RawMessage, error) {
	data, err := c.get(ctx, fmt.Sprintf(eventLookupEndpoint, c.apiKey, sourceEventID))
	if err != nil {
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch thesportsdb event %s: %w", sourceEventID, err)
	}

	var page eventsPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to decode thesportsdb event %s: %w", sourceEventID, err)
	}
	if len(page.Events) == 0 {
		return nil, nil
	}
	return page.Events[0], nil
}
