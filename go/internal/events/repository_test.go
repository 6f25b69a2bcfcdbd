package events

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/matchpulse/go/internal/models"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db), mock
}

func eventRowColumns() []string {
	return []string{
		"id", "event_name", "sport_name", "status", "current_game_time",
		"home_team_name", "away_team_name", "home_score", "away_score",
		"league_name", "league_id", "start_time", "last_data_source",
		"last_updated_timestamp", "statistics", "created_at", "updated_at",
	}
}

// storedEventRows builds a single canonical_events result row for the dedup
// key used by incomingObservation.
func storedEventRows(id int64, lastUpdated int64, source string, start time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(eventRowColumns()).AddRow(
		id, "Alpha vs Beta", "football", "inprogress", nil,
		"Alpha", "Beta", 1, 0,
		"Premier League", "17", start, source,
		lastUpdated, []byte(`{}`), start, start,
	)
}

func incomingObservation(lastUpdated int64, start time.Time) NormalizedEvent {
	leagueID := "17"
	return NormalizedEvent{
		EventName:    "Alpha vs Beta",
		SportName:    "football",
		Status:       models.EventStatusInProgress,
		HomeTeamName: "Alpha",
		AwayTeamName: "Beta",
		HomeScore:    2,
		AwayScore:    0,
		LeagueName:   "Premier League",
		LeagueID:     &leagueID,
		StartTime:    start,
		LastUpdated:  lastUpdated,
	}
}

func TestUpsertResolvesViaSourceMapping(t *testing.T) {
	repo, mock := newMockRepository(t)
	start := time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)

	// The mapping lookup wins over the dedup key; the stored record is newer
	// than the observation so the merge is rejected without any write.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT event_id FROM event_source_mappings`).
		WithArgs("sofascore", "ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow(int64(7)))
	mock.ExpectQuery(`FROM canonical_events WHERE id =`).
		WithArgs(int64(7)).
		WillReturnRows(storedEventRows(7, 200, "thesportsdb", start))
	mock.ExpectCommit()

	event, outcome, err := repo.Upsert(context.Background(),
		incomingObservation(100, start),
		SourceRef{SourceName: "sofascore", SourceEventID: "ev-1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Equal(t, int64(7), event.ID)
	assert.Equal(t, int64(200), event.LastUpdated)
	assert.Equal(t, "thesportsdb", event.LastDataSource)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDedupKeyMergesSecondProvider(t *testing.T) {
	repo, mock := newMockRepository(t)
	start := time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)

	// Second provider, no mapping yet, same (start, home, away, league)
	// tuple: the observation merges into the existing event and the new
	// provider gains its own mapping, so one canonical row ends up with two
	// source mappings and the newer provider's provenance.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT event_id FROM event_source_mappings`).
		WithArgs("thesportsdb", "602129").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`league_id IS NOT DISTINCT FROM`).
		WithArgs(start, "Alpha", "Beta", "17").
		WillReturnRows(storedEventRows(7, 100, "sofascore", start))
	mock.ExpectQuery(`UPDATE canonical_events SET`).
		WillReturnRows(storedEventRows(7, 200, "thesportsdb", start))
	mock.ExpectExec(`INSERT INTO event_source_mappings`).
		WithArgs(int64(7), "thesportsdb", "602129").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	event, outcome, err := repo.Upsert(context.Background(),
		incomingObservation(200, start),
		SourceRef{SourceName: "thesportsdb", SourceEventID: "602129"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, int64(7), event.ID)
	assert.Equal(t, "thesportsdb", event.LastDataSource)
	assert.Equal(t, int64(200), event.LastUpdated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRejectedObservationStillGainsMapping(t *testing.T) {
	repo, mock := newMockRepository(t)
	start := time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)

	// A stale observation from a new provider must not overwrite the event,
	// but the provider's mapping is still recorded.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT event_id FROM event_source_mappings`).
		WithArgs("thesportsdb", "602129").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`league_id IS NOT DISTINCT FROM`).
		WithArgs(start, "Alpha", "Beta", "17").
		WillReturnRows(storedEventRows(7, 300, "sofascore", start))
	mock.ExpectExec(`INSERT INTO event_source_mappings`).
		WithArgs(int64(7), "thesportsdb", "602129").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	event, outcome, err := repo.Upsert(context.Background(),
		incomingObservation(200, start),
		SourceRef{SourceName: "thesportsdb", SourceEventID: "602129"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Equal(t, "sofascore", event.LastDataSource)
	assert.Equal(t, int64(300), event.LastUpdated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCreatesEventAndMapping(t *testing.T) {
	repo, mock := newMockRepository(t)
	start := time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT event_id FROM event_source_mappings`).
		WithArgs("sofascore", "ev-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`league_id IS NOT DISTINCT FROM`).
		WithArgs(start, "Alpha", "Beta", "17").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO canonical_events`).
		WillReturnRows(storedEventRows(42, 100, "sofascore", start))
	mock.ExpectExec(`INSERT INTO event_source_mappings`).
		WithArgs(int64(42), "sofascore", "ev-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	event, outcome, err := repo.Upsert(context.Background(),
		incomingObservation(100, start),
		SourceRef{SourceName: "sofascore", SourceEventID: "ev-1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, int64(42), event.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRecoversFromUniqueViolationRace(t *testing.T) {
	repo, mock := newMockRepository(t)
	start := time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)

	// A concurrent writer creates the event between our lookup and insert.
	// The transaction rolls back and the winner's row is returned instead.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT event_id FROM event_source_mappings`).
		WithArgs("sofascore", "ev-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`league_id IS NOT DISTINCT FROM`).
		WithArgs(start, "Alpha", "Beta", "17").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO canonical_events`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_event_canonical"})
	mock.ExpectRollback()
	mock.ExpectQuery(`league_id IS NOT DISTINCT FROM`).
		WithArgs(start, "Alpha", "Beta", "17").
		WillReturnRows(storedEventRows(7, 100, "thesportsdb", start))

	event, outcome, err := repo.Upsert(context.Background(),
		incomingObservation(100, start),
		SourceRef{SourceName: "sofascore", SourceEventID: "ev-1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Equal(t, int64(7), event.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRejectsInvalidObservationWithoutTouchingStore(t *testing.T) {
	repo, mock := newMockRepository(t)
	start := time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)

	in := incomingObservation(100, start)
	in.HomeTeamName = ""

	_, _, err := repo.Upsert(context.Background(), in,
		SourceRef{SourceName: "sofascore", SourceEventID: "ev-1"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "home_team_name", verr.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}
