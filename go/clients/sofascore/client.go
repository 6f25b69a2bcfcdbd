package sofascore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/matchpulse/matchpulse/go/clients"
	"github.com/matchpulse/matchpulse/go/internal/normalize"
)

// AdmissionController gates every outbound request to this provider.
type AdmissionController interface {
	Acquire()
	Record()
}

// Client speaks to the public Sofascore API. Every request waits on the
// provider's admission controller before going out.
type Client struct {
	*clients.BaseClient
	limiter AdmissionController
}

func NewClient(limiter AdmissionController) *Client {
	client := &Client{
		BaseClient: clients.NewBaseClient(BaseURL),
		limiter:    limiter,
	}

	client.SetHeader(userAgentHeader, userAgentValue)
	client.SetHeader(refererHeader, refererValue)
	client.SetHeader(originHeader, originValue)
	client.SetHeader(acceptHeader, acceptValue)
	client.SetTimeout(15 * time.Second)

	return client
}

// Name returns the provider name used in source mappings.
func (c *Client) Name() string { return normalize.SourceSofascore }

// get performs one admission-controlled request.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	c.limiter.Acquire()
	data, err := c.Get(ctx, endpoint)
	c.limiter.Record()
	return data, err
}

// FetchNearTermEvents returns the raw payloads of every event scheduled for
// today and tomorrow. A failed date fetch is logged and skipped; the other
// date still contributes. When no date succeeds the sweep failed as a whole.
func (c *Client) FetchNearTermEvents(ctx context.Context) ([]json.RawMessage, error) {
	var all []json.RawMessage
	fetched := 0

	today := time.Now().UTC()
	for _, date := range []time.Time{today, today.AddDate(0, 0, 1)} {
		dateStr := date.Format("2006-01-02")
		endpoint := fmt.Sprintf(scheduledEventsEndpoint, Sport, dateStr)

		data, err := c.get(ctx, endpoint)
		if err != nil {
			log.Warn().Err(err).Str("date", dateStr).Msg("failed to fetch sofascore scheduled events")
			continue
		}

		var page struct {
			Events []json.RawMessage `json:"events"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			log.Warn().Err(err).Str("date", dateStr).Msg("unexpected sofascore scheduled events payload")
			continue
		}
		log.Debug().Str("date", dateStr).Int("events", len(page.Events)).Msg("fetched sofascore scheduled events")
		fetched++
		all = append(all, page.Events...)
	}

	if fetched == 0 {
		return nil, fmt.Errorf("failed to fetch sofascore scheduled events for any date")
	}
	return all, nil
}

// FetchEventDetail returns the full payload for one event, with the detail
// endpoint's statistics document folded into it. A missing event is reported
// as nil payload, not an error.
func (c *Client) FetchEventDetail(ctx context.Context, sourceEventID string) (json.RawMessage, error) {
	data, err := c.get(ctx, fmt.Sprintf(eventDetailEndpoint, sourceEventID))
	if err != nil {
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch sofascore event %s: %w", sourceEventID, err)
	}

	var detail struct {
		Event      map[string]json.RawMessage `json:"event"`
		Statistics json.RawMessage            `json:"statistics"`
	}
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, fmt.Errorf("failed to decode sofascore event %s: %w", sourceEventID, err)
	}
	if detail.Event == nil {
		return nil, nil
	}

	// Statistics ride next to the event in the detail response; fold them in
	// so one payload reaches the normalizer.
	if _, ok := detail.Event["statistics"]; !ok && len(detail.Statistics) > 0 {
		detail.Event["statistics"] = detail.Statistics
	}

	merged, err := json.Marshal(detail.Event)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode sofascore event %s: %w", sourceEventID, err)
	}
	return merged, nil
}
