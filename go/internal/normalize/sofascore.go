package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/matchpulse/matchpulse/go/internal/events"
	"github.com/matchpulse/matchpulse/go/internal/models"
)

// sofascoreEvent is the subset of the Sofascore event payload this system
// reads. Everything else in the payload is ignored.
type sofascoreEvent struct {
	ID     int64 `json:"id"`
	Status struct {
		Type string `json:"type"`
	} `json:"status"`
	StartTimestamp int64 `json:"startTimestamp"`
	HomeTeam       struct {
		Name string `json:"name"`
	} `json:"homeTeam"`
	AwayTeam struct {
		Name string `json:"name"`
	} `json:"awayTeam"`
	HomeScore struct {
		Current *int `json:"current"`
	} `json:"homeScore"`
	AwayScore struct {
		Current *int `json:"current"`
	} `json:"awayScore"`
	Tournament struct {
		ID   *int64 `json:"id"`
		Name string `json:"name"`
	} `json:"tournament"`
	UniqueTournament struct {
		Name string `json:"name"`
	} `json:"uniqueTournament"`
	Sport struct {
		Name string `json:"name"`
	} `json:"sport"`
	Time struct {
		CurrentPeriodStartTimestamp *int64 `json:"currentPeriodStartTimestamp"`
	} `json:"time"`
	Statistics json.RawMessage `json:"statistics"`
}

// sofascoreStatusMap translates Sofascore's status vocabulary onto the
// canonical enum. Unrecognized values map to unknown, never to an error.
var sofascoreStatusMap = map[string]models.EventStatus{
	"notstarted":  models.EventStatusScheduled,
	"inprogress":  models.EventStatusInProgress,
	"finished":    models.EventStatusFinished,
	"canceled":    models.EventStatusCancelled,
	"cancelled":   models.EventStatusCancelled,
	"postponed":   models.EventStatusPostponed,
	"interrupted": models.EventStatusPaused,
}

// NormalizeSofascore translates one Sofascore event payload into the
// canonical schema.
func (n *Normalizer) NormalizeSofascore(raw json.RawMessage) (events.NormalizedEvent, events.SourceRef, bool) {
	var payload sofascoreEvent
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Warn().Err(err).Msg("failed to decode sofascore payload")
		return events.NormalizedEvent{}, events.SourceRef{}, false
	}

	if payload.ID == 0 || payload.StartTimestamp == 0 ||
		payload.HomeTeam.Name == "" || payload.AwayTeam.Name == "" {
		log.Warn().Int64("event_id", payload.ID).Msg("sofascore payload missing required fields, skipping")
		return events.NormalizedEvent{}, events.SourceRef{}, false
	}

	status, ok := sofascoreStatusMap[payload.Status.Type]
	if !ok {
		status = models.EventStatusUnknown
	}

	now := n.clock.Now().UTC()
	startTime := time.Unix(payload.StartTimestamp, 0).UTC()

	// Sofascore reports when the current period started rather than a match
	// minute; derive elapsed minutes from it for live matches.
	var gameTime *int
	if status == models.EventStatusInProgress && payload.Time.CurrentPeriodStartTimestamp != nil {
		elapsed := int(now.Sub(time.Unix(*payload.Time.CurrentPeriodStartTimestamp, 0)).Minutes())
		if elapsed >= 0 {
			gameTime = &elapsed
		}
	}

	leagueName := payload.Tournament.Name
	if leagueName == "" {
		leagueName = payload.UniqueTournament.Name
	}
	var leagueID *string
	if payload.Tournament.ID != nil {
		id := strconv.FormatInt(*payload.Tournament.ID, 10)
		leagueID = &id
	}

	sportName := payload.Sport.Name
	if sportName == "" {
		sportName = "football"
	}

	normalized := events.NormalizedEvent{
		EventName:       fmt.Sprintf("%s vs %s", payload.HomeTeam.Name, payload.AwayTeam.Name),
		SportName:       sportName,
		Status:          status,
		CurrentGameTime: gameTime,
		HomeTeamName:    payload.HomeTeam.Name,
		AwayTeamName:    payload.AwayTeam.Name,
		HomeScore:       intOrZero(payload.HomeScore.Current),
		AwayScore:       intOrZero(payload.AwayScore.Current),
		LeagueName:      leagueName,
		LeagueID:        leagueID,
		StartTime:       startTime,
		LastUpdated:     now.Unix(),
		Statistics:      normalizeSofascoreStatistics(payload.Statistics),
	}
	ref := events.SourceRef{
		SourceName:    SourceSofascore,
		SourceEventID: strconv.FormatInt(payload.ID, 10),
	}
	return normalized, ref, true
}

// sofascoreStatistics mirrors the period/group/item nesting of the Sofascore
// statistics payload.
type sofascoreStatistics struct {
	Periods []struct {
		Type   string `json:"type"`
		Groups []struct {
			GroupName       string `json:"groupName"`
			StatisticsItems []struct {
				Name string `json:"name"`
				Home any    `json:"home"`
				Away any    `json:"away"`
			} `json:"statisticsItems"`
		} `json:"groups"`
	} `json:"periods"`
}

// statNameMap maps the Sofascore statistic names this system keeps onto the
// canonical keys of the statistics document.
var statNameMap = map[string]string{
	"ball_possession": "possession",
	"total_shots":     "total_shots",
	"shots_on_target": "shots_on_target",
}

func normalizeSofascoreStatistics(raw json.RawMessage) json.RawMessage {
	out := emptyStatistics()
	if len(raw) == 0 {
		return out.marshal()
	}

	var stats sofascoreStatistics
	if err := json.Unmarshal(raw, &stats); err != nil || len(stats.Periods) == 0 {
		return out.marshal()
	}

	// Prefer the overall period, otherwise take the first one reported.
	period := stats.Periods[0]
	for _, p := range stats.Periods {
		if p.Type == "overall" {
			period = p
			break
		}
	}

	for _, group := range period.Groups {
		for _, item := range group.StatisticsItems {
			key, ok := statNameMap[item.Name]
			if !ok {
				continue
			}
			if item.Home != nil {
				out.Home[key] = item.Home
			}
			if item.Away != nil {
				out.Away[key] = item.Away
			}
		}
	}
	return out.marshal()
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
