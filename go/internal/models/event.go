package models

import (
	"encoding/json"
	"time"
)

// EventStatus defines the canonical status of an event. Every provider's
// native status vocabulary is mapped onto this set before reaching the store.
type EventStatus string

const (
	EventStatusScheduled  EventStatus = "scheduled"
	EventStatusInProgress EventStatus = "inprogress"
	EventStatusFinished   EventStatus = "finished"
	EventStatusCancelled  EventStatus = "cancelled"
	EventStatusPostponed  EventStatus = "postponed"
	EventStatusPaused     EventStatus = "paused"
	EventStatusUnknown    EventStatus = "unknown"
)

// CanonicalEvent is the deduplicated cross-provider representation of one
// real match. At most one row exists per (start time, home team, away team,
// league id) tuple.
type CanonicalEvent struct {
	ID              int64           `json:"id"`
	EventName       string          `json:"event_name"`
	SportName       string          `json:"sport_name"`
	Status          EventStatus     `json:"status"`
	CurrentGameTime *int            `json:"current_game_time,omitempty"` // minutes elapsed, nil when not applicable
	HomeTeamName    string          `json:"home_team_name"`
	AwayTeamName    string          `json:"away_team_name"`
	HomeScore       int             `json:"home_score"`
	AwayScore       int             `json:"away_score"`
	LeagueName      string          `json:"league_name,omitempty"`
	LeagueID        *string         `json:"league_id,omitempty"`
	StartTime       time.Time       `json:"start_time"`
	LastDataSource  string          `json:"last_data_source,omitempty"`
	// LastUpdated is the epoch-second timestamp of when the source data was
	// produced, not when the row was written.
	LastUpdated int64           `json:"last_updated_timestamp"`
	Statistics  json.RawMessage `json:"statistics,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// EventSourceMapping associates one provider's external id with exactly one
// canonical event. (SourceName, SourceEventID) is unique, and a provider maps
// to a given canonical event at most once.
type EventSourceMapping struct {
	ID            int64  `json:"id"`
	EventID       int64  `json:"event_id"`
	SourceName    string `json:"source_name"`
	SourceEventID string `json:"source_event_id"`
}
