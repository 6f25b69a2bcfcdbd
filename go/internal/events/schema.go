package events

// schemaSQL provisions the canonical tables. Deleting a canonical event
// cascades to its source mappings inside the same transaction.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS canonical_events (
	id                     BIGSERIAL PRIMARY KEY,
	event_name             VARCHAR(500) NOT NULL,
	sport_name             VARCHAR(50)  NOT NULL,
	status                 VARCHAR(50)  NOT NULL,
	current_game_time      INTEGER,
	home_team_name         VARCHAR(255) NOT NULL,
	away_team_name         VARCHAR(255) NOT NULL,
	home_score             INTEGER      NOT NULL DEFAULT 0,
	away_score             INTEGER      NOT NULL DEFAULT 0,
	league_name            VARCHAR(255),
	league_id              VARCHAR(255),
	start_time             TIMESTAMPTZ  NOT NULL,
	last_data_source       VARCHAR(50),
	last_updated_timestamp BIGINT       NOT NULL,
	statistics             JSONB        NOT NULL DEFAULT '{}',
	created_at             TIMESTAMPTZ  NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ  NOT NULL DEFAULT now(),
	CONSTRAINT uq_event_canonical UNIQUE (start_time, home_team_name, away_team_name, league_id)
);

CREATE INDEX IF NOT EXISTS idx_event_status ON canonical_events (status);
CREATE INDEX IF NOT EXISTS idx_event_start_time ON canonical_events (start_time);

CREATE TABLE IF NOT EXISTS event_source_mappings (
	id              BIGSERIAL PRIMARY KEY,
	event_id        BIGINT       NOT NULL REFERENCES canonical_events (id) ON DELETE CASCADE,
	source_name     VARCHAR(50)  NOT NULL,
	source_event_id VARCHAR(255) NOT NULL,
	CONSTRAINT uq_source_event UNIQUE (source_name, source_event_id),
	CONSTRAINT uq_event_source UNIQUE (event_id, source_name)
);

CREATE INDEX IF NOT EXISTS idx_mapping_source ON event_source_mappings (source_name, source_event_id);
`
