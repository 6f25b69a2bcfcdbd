package events

import (
	"encoding/json"
	"time"

	"github.com/matchpulse/matchpulse/go/internal/models"
)

// NormalizedEvent is one provider observation already translated into the
// canonical schema by the normalizer. LastUpdated is the epoch-second
// timestamp of when the source data was produced.
type NormalizedEvent struct {
	EventName       string             `json:"event_name"`
	SportName       string             `json:"sport_name"`
	Status          models.EventStatus `json:"status"`
	CurrentGameTime *int               `json:"current_game_time,omitempty"`
	HomeTeamName    string             `json:"home_team_name"`
	AwayTeamName    string             `json:"away_team_name"`
	HomeScore       int                `json:"home_score"`
	AwayScore       int                `json:"away_score"`
	LeagueName      string             `json:"league_name,omitempty"`
	LeagueID        *string            `json:"league_id,omitempty"`
	StartTime       time.Time          `json:"start_time"`
	LastUpdated     int64              `json:"last_updated_timestamp"`
	Statistics      json.RawMessage    `json:"statistics,omitempty"`
}

// SourceRef identifies which provider produced an observation and what that
// provider calls the event.
type SourceRef struct {
	SourceName    string `json:"source_name"`
	SourceEventID string `json:"source_event_id"`
}

// Validate checks that the fields the merge depends on are present. An
// observation failing validation must be dropped by the caller, never merged.
func (e NormalizedEvent) Validate(ref SourceRef) error {
	switch {
	case e.EventName == "":
		return &ValidationError{Field: "event_name"}
	case e.SportName == "":
		return &ValidationError{Field: "sport_name"}
	case e.HomeTeamName == "":
		return &ValidationError{Field: "home_team_name"}
	case e.AwayTeamName == "":
		return &ValidationError{Field: "away_team_name"}
	case e.StartTime.IsZero():
		return &ValidationError{Field: "start_time"}
	case e.LastUpdated == 0:
		return &ValidationError{Field: "last_updated_timestamp"}
	case ref.SourceName == "":
		return &ValidationError{Field: "source_name"}
	case ref.SourceEventID == "":
		return &ValidationError{Field: "source_event_id"}
	}
	return nil
}

// UpsertOutcome reports what the store did with an observation.
type UpsertOutcome int

const (
	// OutcomeCreated means a new canonical event was inserted.
	OutcomeCreated UpsertOutcome = iota
	// OutcomeUpdated means an existing canonical event accepted the observation.
	OutcomeUpdated
	// OutcomeUnchanged means the observation was discarded as stale. This is
	// an expected result, not an error.
	OutcomeUnchanged
)

func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// AttentionEvent is one entry of the live monitor's work list: a mapped event
// that is either in progress or about to start.
type AttentionEvent struct {
	SourceName    string             `json:"source_name"`
	SourceEventID string             `json:"source_event_id"`
	Status        models.EventStatus `json:"status"`
	StartTime     time.Time          `json:"start_time"`
}
