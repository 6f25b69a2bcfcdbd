package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/matchpulse/matchpulse/go/internal/events"
	"github.com/matchpulse/matchpulse/go/internal/models"
)

// sportsDBEvent is the subset of the TheSportsDB event payload this system
// reads. TheSportsDB serializes nearly everything as strings.
type sportsDBEvent struct {
	IDEvent      string `json:"idEvent"`
	StrStatus    string `json:"strStatus"`
	StrHomeTeam  string `json:"strHomeTeam"`
	StrAwayTeam  string `json:"strAwayTeam"`
	IntHomeScore string `json:"intHomeScore"`
	IntAwayScore string `json:"intAwayScore"`
	StrTimestamp string `json:"strTimestamp"`
	DateEvent    string `json:"dateEvent"`
	StrTime      string `json:"strTime"`
	StrLeague    string `json:"strLeague"`
	IDLeague     string `json:"idLeague"`
	StrSport     string `json:"strSport"`
}

var sportsDBStatusMap = map[string]models.EventStatus{
	"fixture":        models.EventStatusScheduled,
	"not started":    models.EventStatusScheduled,
	"in progress":    models.EventStatusInProgress,
	"match finished": models.EventStatusFinished,
	"cancelled":      models.EventStatusCancelled,
	"postponed":      models.EventStatusPostponed,
}

// NormalizeSportsDB translates one TheSportsDB event payload into the
// canonical schema. The free API reports no live game clock and almost no
// statistics, so those degrade to absent/empty.
func (n *Normalizer) NormalizeSportsDB(raw json.RawMessage) (events.NormalizedEvent, events.SourceRef, bool) {
	var payload sportsDBEvent
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Warn().Err(err).Msg("failed to decode thesportsdb payload")
		return events.NormalizedEvent{}, events.SourceRef{}, false
	}

	if payload.IDEvent == "" || payload.StrHomeTeam == "" || payload.StrAwayTeam == "" {
		log.Warn().Str("event_id", payload.IDEvent).Msg("thesportsdb payload missing required fields, skipping")
		return events.NormalizedEvent{}, events.SourceRef{}, false
	}

	startTime, ok := sportsDBStartTime(payload)
	if !ok {
		log.Warn().Str("event_id", payload.IDEvent).Msg("thesportsdb payload has no usable start time, skipping")
		return events.NormalizedEvent{}, events.SourceRef{}, false
	}

	statusKey := strings.ToLower(payload.StrStatus)
	if statusKey == "" {
		statusKey = "fixture"
	}
	status, found := sportsDBStatusMap[statusKey]
	if !found {
		status = models.EventStatusUnknown
	}

	var leagueID *string
	if payload.IDLeague != "" {
		id := payload.IDLeague
		leagueID = &id
	}

	sportName := strings.ToLower(payload.StrSport)
	if sportName == "" {
		sportName = "football"
	}

	normalized := events.NormalizedEvent{
		EventName:    fmt.Sprintf("%s vs %s", payload.StrHomeTeam, payload.StrAwayTeam),
		SportName:    sportName,
		Status:       status,
		HomeTeamName: payload.StrHomeTeam,
		AwayTeamName: payload.StrAwayTeam,
		HomeScore:    atoiOrZero(payload.IntHomeScore),
		AwayScore:    atoiOrZero(payload.IntAwayScore),
		LeagueName:   payload.StrLeague,
		LeagueID:     leagueID,
		StartTime:    startTime,
		LastUpdated:  n.clock.Now().UTC().Unix(),
		Statistics:   emptyStatistics().marshal(),
	}
	ref := events.SourceRef{
		SourceName:    SourceSportsDB,
		SourceEventID: payload.IDEvent,
	}
	return normalized, ref, true
}

// sportsDBStartTime resolves the event start: the RFC3339 strTimestamp when
// present, otherwise dateEvent+strTime interpreted as UTC.
func sportsDBStartTime(payload sportsDBEvent) (time.Time, bool) {
	if payload.StrTimestamp != "" {
		if t, err := time.Parse(time.RFC3339, payload.StrTimestamp); err == nil {
			return t.UTC(), true
		}
	}
	if payload.DateEvent != "" && payload.StrTime != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", payload.DateEvent+" "+payload.StrTime); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func atoiOrZero(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
