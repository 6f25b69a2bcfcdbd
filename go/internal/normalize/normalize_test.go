package normalize

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/matchpulse/go/internal/models"
)

var testNow = time.Date(2025, 1, 1, 18, 30, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return newNormalizerWithClock(clockwork.NewFakeClockAt(testNow))
}

func sofascorePayload(statusType string, startTimestamp int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"id": 12345,
		"status": {"type": %q},
		"startTimestamp": %d,
		"homeTeam": {"name": "Arsenal"},
		"awayTeam": {"name": "Chelsea"},
		"homeScore": {"current": 2},
		"awayScore": {"current": 1},
		"tournament": {"id": 17, "name": "Premier League"},
		"sport": {"name": "football"}
	}`, statusType, startTimestamp))
}

func TestNormalizeSofascore(t *testing.T) {
	n := newTestNormalizer()
	start := testNow.Add(-30 * time.Minute)

	normalized, ref, ok := n.NormalizeSofascore(sofascorePayload("inprogress", start.Unix()))
	require.True(t, ok)

	assert.Equal(t, "sofascore", ref.SourceName)
	assert.Equal(t, "12345", ref.SourceEventID)
	assert.Equal(t, "Arsenal vs Chelsea", normalized.EventName)
	assert.Equal(t, "football", normalized.SportName)
	assert.Equal(t, models.EventStatusInProgress, normalized.Status)
	assert.Equal(t, 2, normalized.HomeScore)
	assert.Equal(t, 1, normalized.AwayScore)
	assert.Equal(t, "Premier League", normalized.LeagueName)
	require.NotNil(t, normalized.LeagueID)
	assert.Equal(t, "17", *normalized.LeagueID)
	assert.True(t, normalized.StartTime.Equal(start))
	assert.Equal(t, testNow.Unix(), normalized.LastUpdated)
}

func TestNormalizeSofascoreStatusMapping(t *testing.T) {
	tests := []struct {
		native string
		want   models.EventStatus
	}{
		{"notstarted", models.EventStatusScheduled},
		{"inprogress", models.EventStatusInProgress},
		{"finished", models.EventStatusFinished},
		{"canceled", models.EventStatusCancelled},
		{"postponed", models.EventStatusPostponed},
		{"interrupted", models.EventStatusPaused},
		{"willneverexist", models.EventStatusUnknown},
	}

	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			normalized, _, ok := n.NormalizeSofascore(sofascorePayload(tt.native, testNow.Unix()))
			require.True(t, ok)
			assert.Equal(t, tt.want, normalized.Status)
		})
	}
}

func TestNormalizeSofascoreDerivesGameMinutes(t *testing.T) {
	n := newTestNormalizer()
	periodStart := testNow.Add(-12 * time.Minute).Unix()
	payload := json.RawMessage(fmt.Sprintf(`{
		"id": 1,
		"status": {"type": "inprogress"},
		"startTimestamp": %d,
		"homeTeam": {"name": "A"},
		"awayTeam": {"name": "B"},
		"time": {"currentPeriodStartTimestamp": %d}
	}`, testNow.Add(-time.Hour).Unix(), periodStart))

	normalized, _, ok := n.NormalizeSofascore(payload)
	require.True(t, ok)
	require.NotNil(t, normalized.CurrentGameTime)
	assert.Equal(t, 12, *normalized.CurrentGameTime)
}

func TestNormalizeSofascoreMissingRequiredFields(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name    string
		payload string
	}{
		{"empty object", `{}`},
		{"no start timestamp", `{"id": 1, "homeTeam": {"name": "A"}, "awayTeam": {"name": "B"}}`},
		{"no home team", `{"id": 1, "startTimestamp": 100, "awayTeam": {"name": "B"}}`},
		{"not json", `garbage`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := n.NormalizeSofascore(json.RawMessage(tt.payload))
			assert.False(t, ok)
		})
	}
}

func TestNormalizeSofascoreStatistics(t *testing.T) {
	n := newTestNormalizer()
	payload := json.RawMessage(fmt.Sprintf(`{
		"id": 1,
		"status": {"type": "inprogress"},
		"startTimestamp": %d,
		"homeTeam": {"name": "A"},
		"awayTeam": {"name": "B"},
		"statistics": {
			"periods": [
				{"type": "overall", "groups": [
					{"groupName": "Possession", "statisticsItems": [
						{"name": "ball_possession", "home": "60%%", "away": "40%%"}
					]},
					{"groupName": "Shots", "statisticsItems": [
						{"name": "total_shots", "home": 10, "away": 5},
						{"name": "irrelevant_stat", "home": 1, "away": 2}
					]}
				]}
			]
		}
	}`, testNow.Unix()))

	normalized, _, ok := n.NormalizeSofascore(payload)
	require.True(t, ok)

	var stats statistics
	require.NoError(t, json.Unmarshal(normalized.Statistics, &stats))
	assert.Equal(t, "60%", stats.Home["possession"])
	assert.Equal(t, "40%", stats.Away["possession"])
	assert.Equal(t, float64(10), stats.Home["total_shots"])
	assert.NotContains(t, stats.Home, "irrelevant_stat")
}

func sportsDBPayload() map[string]string {
	return map[string]string{
		"idEvent":      "602129",
		"strStatus":    "Match Finished",
		"strHomeTeam":  "Liverpool",
		"strAwayTeam":  "Everton",
		"intHomeScore": "2",
		"intAwayScore": "0",
		"strTimestamp": "2025-01-01T15:00:00+00:00",
		"strLeague":    "English Premier League",
		"idLeague":     "4328",
		"strSport":     "Soccer",
	}
}

func marshalPayload(t *testing.T, payload map[string]string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func TestNormalizeSportsDB(t *testing.T) {
	n := newTestNormalizer()

	normalized, ref, ok := n.NormalizeSportsDB(marshalPayload(t, sportsDBPayload()))
	require.True(t, ok)

	assert.Equal(t, "thesportsdb", ref.SourceName)
	assert.Equal(t, "602129", ref.SourceEventID)
	assert.Equal(t, "Liverpool vs Everton", normalized.EventName)
	assert.Equal(t, "soccer", normalized.SportName)
	assert.Equal(t, models.EventStatusFinished, normalized.Status)
	assert.Equal(t, 2, normalized.HomeScore)
	assert.Equal(t, 0, normalized.AwayScore)
	require.NotNil(t, normalized.LeagueID)
	assert.Equal(t, "4328", *normalized.LeagueID)
	assert.True(t, normalized.StartTime.Equal(time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC)))
	assert.Nil(t, normalized.CurrentGameTime)
}

func TestNormalizeSportsDBStartTimeFallback(t *testing.T) {
	n := newTestNormalizer()
	payload := sportsDBPayload()
	delete(payload, "strTimestamp")
	payload["dateEvent"] = "2025-01-02"
	payload["strTime"] = "20:45:00"

	normalized, _, ok := n.NormalizeSportsDB(marshalPayload(t, payload))
	require.True(t, ok)
	assert.True(t, normalized.StartTime.Equal(time.Date(2025, 1, 2, 20, 45, 0, 0, time.UTC)))
}

func TestNormalizeSportsDBMissingStartTime(t *testing.T) {
	n := newTestNormalizer()
	payload := sportsDBPayload()
	delete(payload, "strTimestamp")

	_, _, ok := n.NormalizeSportsDB(marshalPayload(t, payload))
	assert.False(t, ok)
}

func TestNormalizeSportsDBUnknownStatus(t *testing.T) {
	n := newTestNormalizer()
	payload := sportsDBPayload()
	payload["strStatus"] = "Something New"

	normalized, _, ok := n.NormalizeSportsDB(marshalPayload(t, payload))
	require.True(t, ok)
	assert.Equal(t, models.EventStatusUnknown, normalized.Status)
}

func TestNormalizeDispatch(t *testing.T) {
	n := newTestNormalizer()

	_, ref, ok := n.Normalize(SourceSofascore, sofascorePayload("notstarted", testNow.Unix()))
	require.True(t, ok)
	assert.Equal(t, SourceSofascore, ref.SourceName)

	_, ref, ok = n.Normalize(SourceSportsDB, marshalPayload(t, sportsDBPayload()))
	require.True(t, ok)
	assert.Equal(t, SourceSportsDB, ref.SourceName)

	_, _, ok = n.Normalize("espn", json.RawMessage(`{}`))
	assert.False(t, ok)
}
