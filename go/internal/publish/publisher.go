package publish

import (
	"context"

	"github.com/rs/zerolog/log"
)

// DefaultTopic is the channel downstream consumers subscribe to.
const DefaultTopic = "match_updates"

// Update is the message published for every accepted merge. The field set is
// the contract with downstream consumers; UpdatedAt is wall clock at publish
// time, StartTime is the event's scheduled kickoff, both epoch seconds.
type Update struct {
	SourceEventID   string `json:"source_event_id"`
	Status          string `json:"status"`
	HomeTeamName    string `json:"home_team_name"`
	AwayTeamName    string `json:"away_team_name"`
	HomeScore       int    `json:"home_score"`
	AwayScore       int    `json:"away_score"`
	CurrentGameTime *int   `json:"current_game_time"`
	StartTime       int64  `json:"start_time"`
	UpdatedAt       int64  `json:"updated_at"`
}

// Publisher fans out accepted updates to downstream consumers. Delivery is
// fire-and-forget, at most once: the merge is already durable when Publish is
// called, so a failed publish is logged and the update is simply not
// re-delivered.
type Publisher interface {
	Publish(ctx context.Context, update Update) error
	// Check probes the transport connection. The monitor calls it after a
	// failed publish, before the next attempt, so a dead connection is
	// detected and re-established rather than assumed to self-heal.
	Check(ctx context.Context) error
	Close() error
}

// LogPublisher is a development publisher that only logs updates.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, update Update) error {
	log.Info().
		Str("source_event_id", update.SourceEventID).
		Str("status", update.Status).
		Int("home_score", update.HomeScore).
		Int("away_score", update.AwayScore).
		Msg("publishing match update")
	return nil
}

func (p *LogPublisher) Check(ctx context.Context) error { return nil }

func (p *LogPublisher) Close() error { return nil }
