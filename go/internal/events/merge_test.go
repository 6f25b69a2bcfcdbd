package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/matchpulse/matchpulse/go/internal/models"
)

func intPtr(v int) *int { return &v }

func storedEvent(lastUpdated int64, status models.EventStatus, gameTime *int) *models.CanonicalEvent {
	return &models.CanonicalEvent{
		ID:              1,
		EventName:       "Arsenal vs Chelsea",
		SportName:       "football",
		Status:          status,
		CurrentGameTime: gameTime,
		HomeTeamName:    "Arsenal",
		AwayTeamName:    "Chelsea",
		HomeScore:       1,
		AwayScore:       0,
		StartTime:       time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC),
		LastDataSource:  "sofascore",
		LastUpdated:     lastUpdated,
	}
}

func observation(lastUpdated int64, status models.EventStatus, gameTime *int) NormalizedEvent {
	return NormalizedEvent{
		EventName:       "Arsenal vs Chelsea",
		SportName:       "football",
		Status:          status,
		CurrentGameTime: gameTime,
		HomeTeamName:    "Arsenal",
		AwayTeamName:    "Chelsea",
		HomeScore:       1,
		AwayScore:       1,
		StartTime:       time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC),
		LastUpdated:     lastUpdated,
	}
}

func TestShouldReplace(t *testing.T) {
	tests := []struct {
		name     string
		existing *models.CanonicalEvent
		incoming NormalizedEvent
		want     bool
	}{
		{
			name:     "newer timestamp wins",
			existing: storedEvent(100, models.EventStatusScheduled, nil),
			incoming: observation(200, models.EventStatusScheduled, nil),
			want:     true,
		},
		{
			name:     "older timestamp rejected",
			existing: storedEvent(200, models.EventStatusScheduled, nil),
			incoming: observation(100, models.EventStatusScheduled, nil),
			want:     false,
		},
		{
			name:     "equal timestamp without liveness rejected",
			existing: storedEvent(100, models.EventStatusScheduled, nil),
			incoming: observation(100, models.EventStatusScheduled, intPtr(5)),
			want:     false,
		},
		{
			name:     "equal timestamp live with advanced game clock wins",
			existing: storedEvent(100, models.EventStatusInProgress, intPtr(40)),
			incoming: observation(100, models.EventStatusInProgress, intPtr(45)),
			want:     true,
		},
		{
			name:     "equal timestamp live with equal game clock rejected",
			existing: storedEvent(100, models.EventStatusInProgress, intPtr(45)),
			incoming: observation(100, models.EventStatusInProgress, intPtr(45)),
			want:     false,
		},
		{
			name:     "equal timestamp live with behind game clock rejected",
			existing: storedEvent(100, models.EventStatusInProgress, intPtr(45)),
			incoming: observation(100, models.EventStatusInProgress, intPtr(40)),
			want:     false,
		},
		{
			name:     "missing stored game clock counts as behind",
			existing: storedEvent(100, models.EventStatusInProgress, nil),
			incoming: observation(100, models.EventStatusInProgress, intPtr(1)),
			want:     true,
		},
		{
			name:     "missing incoming game clock rejected",
			existing: storedEvent(100, models.EventStatusInProgress, intPtr(10)),
			incoming: observation(100, models.EventStatusInProgress, nil),
			want:     false,
		},
		{
			name:     "stored live status alone enables the tie-break",
			existing: storedEvent(100, models.EventStatusInProgress, intPtr(10)),
			incoming: observation(100, models.EventStatusFinished, intPtr(90)),
			want:     true,
		},
		{
			name:     "incoming live status alone enables the tie-break",
			existing: storedEvent(100, models.EventStatusScheduled, nil),
			incoming: observation(100, models.EventStatusInProgress, intPtr(1)),
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldReplace(tt.existing, tt.incoming))
		})
	}
}

// Applying A then B must leave the same fields as applying B then A when the
// timestamps differ: the older observation is rejected outright.
func TestMergeOrderIndependenceForDistinctTimestamps(t *testing.T) {
	older := observation(100, models.EventStatusInProgress, intPtr(10))
	newer := observation(200, models.EventStatusInProgress, intPtr(20))
	refA := SourceRef{SourceName: "sofascore", SourceEventID: "111"}
	refB := SourceRef{SourceName: "thesportsdb", SourceEventID: "222"}

	// A then B.
	forward := storedEvent(0, models.EventStatusScheduled, nil)
	assert.True(t, shouldReplace(forward, older))
	applyObservation(forward, older, refA)
	assert.True(t, shouldReplace(forward, newer))
	applyObservation(forward, newer, refB)

	// B then A.
	reverse := storedEvent(0, models.EventStatusScheduled, nil)
	assert.True(t, shouldReplace(reverse, newer))
	applyObservation(reverse, newer, refB)
	assert.False(t, shouldReplace(reverse, older))

	assert.Equal(t, forward.LastUpdated, reverse.LastUpdated)
	assert.Equal(t, forward.CurrentGameTime, reverse.CurrentGameTime)
	assert.Equal(t, forward.LastDataSource, reverse.LastDataSource)
	assert.Equal(t, "thesportsdb", forward.LastDataSource)
}

// Re-applying the exact same observation must be a no-op: equal timestamp and
// equal game clock never pass the tie-break.
func TestRemergeOfIdenticalObservationIsIdempotent(t *testing.T) {
	obs := observation(100, models.EventStatusInProgress, intPtr(30))
	ref := SourceRef{SourceName: "sofascore", SourceEventID: "111"}

	target := storedEvent(0, models.EventStatusScheduled, nil)
	applyObservation(target, obs, ref)
	snapshot := *target

	assert.False(t, shouldReplace(target, obs))
	assert.Equal(t, snapshot, *target)
}

func TestApplyObservationSetsProvenance(t *testing.T) {
	target := storedEvent(100, models.EventStatusScheduled, nil)
	obs := observation(200, models.EventStatusInProgress, intPtr(12))
	applyObservation(target, obs, SourceRef{SourceName: "thesportsdb", SourceEventID: "9"})

	assert.Equal(t, "thesportsdb", target.LastDataSource)
	assert.Equal(t, int64(200), target.LastUpdated)
	assert.Equal(t, models.EventStatusInProgress, target.Status)
	assert.Equal(t, 1, target.HomeScore)
	assert.Equal(t, 1, target.AwayScore)
	assert.Equal(t, intPtr(12), target.CurrentGameTime)
}
