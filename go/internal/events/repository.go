package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/matchpulse/matchpulse/go/internal/models"
	"github.com/matchpulse/matchpulse/go/internal/sqlutil"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Repository owns the reconciliation policy and durable persistence of
// canonical events and their provider-source mappings.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new canonical event repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const eventColumns = `id, event_name, sport_name, status, current_game_time,
	home_team_name, away_team_name, home_score, away_score,
	league_name, league_id, start_time, last_data_source,
	last_updated_timestamp, statistics, created_at, updated_at`

// Upsert reconciles one provider observation into the canonical store.
//
// Resolution order: an existing source mapping wins, then the dedup key
// (start time, home team, away team, league id), then a brand-new event. The
// whole lookup-decide-write sequence runs in one transaction; a uniqueness
// violation from a racing writer is resolved by re-reading the event that
// writer created.
func (r *Repository) Upsert(ctx context.Context, in NormalizedEvent, ref SourceRef) (*models.CanonicalEvent, UpsertOutcome, error) {
	if err := in.Validate(ref); err != nil {
		return nil, OutcomeUnchanged, err
	}

	var (
		result  *models.CanonicalEvent
		outcome UpsertOutcome
	)
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		existing, hasMapping, err := r.findMergeTarget(ctx, tx, in, ref)
		if err != nil {
			return err
		}

		if existing == nil {
			created, err := r.insertEvent(ctx, tx, in, ref)
			if err != nil {
				return err
			}
			if err := r.insertMapping(ctx, tx, created.ID, ref); err != nil {
				return err
			}
			result, outcome = created, OutcomeCreated
			return nil
		}

		if shouldReplace(existing, in) {
			applyObservation(existing, in, ref)
			updated, err := r.updateEvent(ctx, tx, existing)
			if err != nil {
				return err
			}
			existing, outcome = updated, OutcomeUpdated
		} else {
			outcome = OutcomeUnchanged
		}

		if !hasMapping {
			if err := r.insertMapping(ctx, tx, existing.ID, ref); err != nil {
				return err
			}
		}
		result = existing
		return nil
	})
	if err == nil {
		return result, outcome, nil
	}

	if isUniqueViolation(err) {
		// A concurrent writer created the event or mapping first. The row we
		// wanted now exists, so return it instead of propagating the error.
		existing, readErr := r.getEventByDedupKey(ctx, r.db, in)
		if readErr == nil && existing != nil {
			log.Warn().
				Str("source", ref.SourceName).
				Str("source_event_id", ref.SourceEventID).
				Int64("event_id", existing.ID).
				Msg("conflict resolved, canonical event already existed")
			return existing, OutcomeUnchanged, nil
		}
	}

	return nil, OutcomeUnchanged, fmt.Errorf("failed to upsert event %s:%s: %w", ref.SourceName, ref.SourceEventID, err)
}

// findMergeTarget resolves the canonical event an observation applies to. The
// bool reports whether a source mapping for ref already exists.
func (r *Repository) findMergeTarget(ctx context.Context, tx *sql.Tx, in NormalizedEvent, ref SourceRef) (*models.CanonicalEvent, bool, error) {
	var eventID int64
	err := tx.QueryRowContext(ctx,
		`SELECT event_id FROM event_source_mappings WHERE source_name = $1 AND source_event_id = $2`,
		ref.SourceName, ref.SourceEventID,
	).Scan(&eventID)
	switch {
	case err == nil:
		event, err := r.getEventByID(ctx, tx, eventID)
		if err != nil {
			return nil, false, err
		}
		return event, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("failed to look up source mapping: %w", err)
	}

	event, err := r.getEventByDedupKey(ctx, tx, in)
	if err != nil {
		return nil, false, err
	}
	return event, false, nil
}

func (r *Repository) getEventByID(ctx context.Context, q querier, id int64) (*models.CanonicalEvent, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM canonical_events WHERE id = $1`, id)
	event, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return event, nil
}

func (r *Repository) getEventByDedupKey(ctx context.Context, q querier, in NormalizedEvent) (*models.CanonicalEvent, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM canonical_events
		 WHERE start_time = $1
		   AND home_team_name = $2
		   AND away_team_name = $3
		   AND league_id IS NOT DISTINCT FROM $4`,
		in.StartTime, in.HomeTeamName, in.AwayTeamName, sqlutil.ToSqlString(in.LeagueID))
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up event by dedup key: %w", err)
	}
	return event, nil
}

func (r *Repository) insertEvent(ctx context.Context, tx *sql.Tx, in NormalizedEvent, ref SourceRef) (*models.CanonicalEvent, error) {
	row := tx.QueryRowContext(ctx,
		`INSERT INTO canonical_events (
			event_name, sport_name, status, current_game_time,
			home_team_name, away_team_name, home_score, away_score,
			league_name, league_id, start_time, last_data_source,
			last_updated_timestamp, statistics
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, COALESCE($14, '{}'::jsonb))
		RETURNING `+eventColumns,
		in.EventName, in.SportName, string(in.Status), sqlutil.ToSqlInt32(in.CurrentGameTime),
		in.HomeTeamName, in.AwayTeamName, in.HomeScore, in.AwayScore,
		toNullIfEmpty(in.LeagueName), sqlutil.ToSqlString(in.LeagueID), in.StartTime, ref.SourceName,
		in.LastUpdated, sqlutil.ToJSONB(in.Statistics))
	event, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return event, nil
}

func (r *Repository) updateEvent(ctx context.Context, tx *sql.Tx, event *models.CanonicalEvent) (*models.CanonicalEvent, error) {
	row := tx.QueryRowContext(ctx,
		`UPDATE canonical_events SET
			event_name = $2, sport_name = $3, status = $4, current_game_time = $5,
			home_team_name = $6, away_team_name = $7, home_score = $8, away_score = $9,
			league_name = $10, league_id = $11, start_time = $12, last_data_source = $13,
			last_updated_timestamp = $14, statistics = COALESCE($15, '{}'::jsonb),
			updated_at = now()
		 WHERE id = $1
		 RETURNING `+eventColumns,
		event.ID, event.EventName, event.SportName, string(event.Status), sqlutil.ToSqlInt32(event.CurrentGameTime),
		event.HomeTeamName, event.AwayTeamName, event.HomeScore, event.AwayScore,
		toNullIfEmpty(event.LeagueName), sqlutil.ToSqlString(event.LeagueID), event.StartTime, toNullIfEmpty(event.LastDataSource),
		event.LastUpdated, sqlutil.ToJSONB(event.Statistics))
	updated, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update event %d: %w", event.ID, err)
	}
	return updated, nil
}

func (r *Repository) insertMapping(ctx context.Context, tx *sql.Tx, eventID int64, ref SourceRef) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO event_source_mappings (event_id, source_name, source_event_id)
		 VALUES ($1, $2, $3)`,
		eventID, ref.SourceName, ref.SourceEventID)
	if err != nil {
		return fmt.Errorf("failed to insert source mapping %s:%s: %w", ref.SourceName, ref.SourceEventID, err)
	}
	return nil
}

// FindEventsNeedingAttention returns every mapped event that is in progress,
// or scheduled to start within buffer of now, ordered by start time. This is
// the live monitor's sole query for what to poll.
func (r *Repository) FindEventsNeedingAttention(ctx context.Context, buffer time.Duration) ([]AttentionEvent, error) {
	now := time.Now().UTC()
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.source_name, m.source_event_id, e.status, e.start_time
		 FROM canonical_events e
		 JOIN event_source_mappings m ON m.event_id = e.id
		 WHERE e.status = $1
		    OR (e.status = $2 AND e.start_time BETWEEN $3 AND $4)
		 ORDER BY e.start_time ASC`,
		string(models.EventStatusInProgress), string(models.EventStatusScheduled),
		now.Add(-buffer), now.Add(buffer))
	if err != nil {
		return nil, fmt.Errorf("failed to query events needing attention: %w", err)
	}
	defer rows.Close()

	var attention []AttentionEvent
	for rows.Next() {
		var (
			a      AttentionEvent
			status string
		)
		if err := rows.Scan(&a.SourceName, &a.SourceEventID, &status, &a.StartTime); err != nil {
			return nil, fmt.Errorf("failed to scan attention event: %w", err)
		}
		a.Status = models.EventStatus(status)
		attention = append(attention, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attention events: %w", err)
	}
	return attention, nil
}

// FindNextScheduledStart returns the earliest start time among scheduled
// events strictly in the future, or nil when none exists. Used for
// hibernation timing.
func (r *Repository) FindNextScheduledStart(ctx context.Context) (*time.Time, error) {
	var next time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT start_time FROM canonical_events
		 WHERE status = $1 AND start_time > $2
		 ORDER BY start_time ASC
		 LIMIT 1`,
		string(models.EventStatusScheduled), time.Now().UTC(),
	).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query next scheduled start: %w", err)
	}
	return &next, nil
}

// GetEventBySourceID returns the canonical event a provider's native id maps
// to, or nil when the provider has never reported it.
func (r *Repository) GetEventBySourceID(ctx context.Context, sourceName, sourceEventID string) (*models.CanonicalEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM canonical_events
		 WHERE id = (SELECT event_id FROM event_source_mappings
		             WHERE source_name = $1 AND source_event_id = $2)`,
		sourceName, sourceEventID)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event by source id %s:%s: %w", sourceName, sourceEventID, err)
	}
	return event, nil
}

// EnsureSchema creates the canonical tables if they do not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.CanonicalEvent, error) {
	var (
		event      models.CanonicalEvent
		status     string
		gameTime   sql.NullInt32
		leagueName sql.NullString
		leagueID   sql.NullString
		dataSource sql.NullString
		statistics pqtype.NullRawMessage
	)
	err := row.Scan(
		&event.ID, &event.EventName, &event.SportName, &status, &gameTime,
		&event.HomeTeamName, &event.AwayTeamName, &event.HomeScore, &event.AwayScore,
		&leagueName, &leagueID, &event.StartTime, &dataSource,
		&event.LastUpdated, &statistics, &event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	event.Status = models.EventStatus(status)
	event.CurrentGameTime = sqlutil.FromSqlInt32(gameTime)
	event.LeagueName = sqlutil.FromSqlString(leagueName, "")
	event.LeagueID = sqlutil.FromSqlStringPtr(leagueID)
	event.LastDataSource = sqlutil.FromSqlString(dataSource, "")
	event.Statistics = sqlutil.FromJSONB(statistics)
	return &event, nil
}

func toNullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
