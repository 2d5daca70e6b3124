package db

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	sql     string
}

// migrations are applied in order and recorded in schema_migrations.
// Never edit one that has shipped; append a new version instead.
var migrations = []migration{
	{
		version: 1,
		name:    "create_core_tables",
		sql: `
CREATE TABLE tournaments (
	id           SERIAL PRIMARY KEY,
	name         TEXT        NOT NULL,
	description  TEXT,
	location     TEXT,
	format       TEXT        NOT NULL,
	status       TEXT        NOT NULL DEFAULT 'UPCOMING',
	start_date   TIMESTAMPTZ NOT NULL,
	end_date     TIMESTAMPTZ,
	organizer_id INTEGER     NOT NULL,
	settings     JSONB       NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX tournaments_organizer_id_idx ON tournaments (organizer_id);

CREATE TABLE divisions (
	id            SERIAL PRIMARY KEY,
	tournament_id INTEGER     NOT NULL REFERENCES tournaments (id) ON DELETE CASCADE,
	name          TEXT        NOT NULL,
	description   TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT divisions_tournament_id_name_key UNIQUE (tournament_id, name)
);

CREATE TABLE teams (
	id            SERIAL PRIMARY KEY,
	tournament_id INTEGER     NOT NULL REFERENCES tournaments (id) ON DELETE CASCADE,
	division_id   INTEGER     REFERENCES divisions (id) ON DELETE SET NULL,
	name          TEXT        NOT NULL,
	short_name    TEXT,
	logo_key      TEXT,
	played        INTEGER     NOT NULL DEFAULT 0,
	wins          INTEGER     NOT NULL DEFAULT 0,
	losses        INTEGER     NOT NULL DEFAULT 0,
	draws         INTEGER     NOT NULL DEFAULT 0,
	points        INTEGER     NOT NULL DEFAULT 0,
	score_for     INTEGER     NOT NULL DEFAULT 0,
	score_against INTEGER     NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX teams_tournament_id_name_key ON teams (tournament_id, LOWER(name));
CREATE INDEX teams_division_id_idx ON teams (division_id);

CREATE TABLE matches (
	id              SERIAL PRIMARY KEY,
	tournament_id   INTEGER     NOT NULL REFERENCES tournaments (id) ON DELETE CASCADE,
	division_id     INTEGER     NOT NULL REFERENCES divisions (id) ON DELETE CASCADE,
	bracket_uid     TEXT        NOT NULL,
	stage           TEXT        NOT NULL,
	group_name      TEXT,
	round           INTEGER     NOT NULL,
	order_in_round  INTEGER     NOT NULL,
	sequence        INTEGER     NOT NULL,
	team1_id        INTEGER     REFERENCES teams (id),
	team2_id        INTEGER     REFERENCES teams (id),
	team1_source    TEXT        NOT NULL DEFAULT '',
	team2_source    TEXT        NOT NULL DEFAULT '',
	next_match_id   INTEGER     REFERENCES matches (id) ON DELETE SET NULL,
	next_match_uid  TEXT,
	next_slot       INTEGER     NOT NULL DEFAULT 0,
	loser_match_id  INTEGER     REFERENCES matches (id) ON DELETE SET NULL,
	loser_match_uid TEXT,
	loser_slot      INTEGER     NOT NULL DEFAULT 0,
	is_reset_match  BOOLEAN     NOT NULL DEFAULT FALSE,
	scheduled_time  TIMESTAMPTZ,
	venue           TEXT,
	status          TEXT        NOT NULL DEFAULT 'PENDING',
	team1_score     INTEGER CHECK (team1_score >= 0),
	team2_score     INTEGER CHECK (team2_score >= 0),
	winner_id       INTEGER     REFERENCES teams (id),
	completed_at    TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT matches_division_id_bracket_uid_key UNIQUE (division_id, bracket_uid),
	CONSTRAINT matches_completed_has_scores CHECK (
		(status = 'COMPLETED') = (team1_score IS NOT NULL AND team2_score IS NOT NULL)
	)
);
CREATE INDEX matches_division_id_idx ON matches (division_id, sequence);

CREATE TABLE players (
	id            SERIAL PRIMARY KEY,
	team_id       INTEGER     NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
	name          TEXT        NOT NULL,
	jersey_number INTEGER,
	position      TEXT,
	email         TEXT,
	phone         TEXT,
	games_played  INTEGER     NOT NULL DEFAULT 0,
	goals         INTEGER     NOT NULL DEFAULT 0,
	assists       INTEGER     NOT NULL DEFAULT 0,
	yellow_cards  INTEGER     NOT NULL DEFAULT 0,
	red_cards     INTEGER     NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT players_stats_check CHECK (
		games_played >= 0 AND goals >= 0 AND assists >= 0 AND yellow_cards >= 0 AND red_cards >= 0
	)
);
CREATE INDEX players_team_id_idx ON players (team_id);
`,
	},
	{
		version: 2,
		name:    "create_referees",
		sql: `
CREATE TABLE referees (
	id            SERIAL PRIMARY KEY,
	tournament_id INTEGER     NOT NULL,
	name          TEXT        NOT NULL,
	email         TEXT,
	phone         TEXT,
	role          TEXT,
	country       TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT referees_tournament_id_fkey FOREIGN KEY (tournament_id)
		REFERENCES tournaments (id) ON DELETE CASCADE
);
CREATE INDEX referees_tournament_id_idx ON referees (tournament_id);
`,
	},
}

// Migrate applies every migration that has not been recorded yet. Each one
// runs in its own transaction.
func Migrate(ctx context.Context, db *sql.DB) (applied int, err error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT        NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version,
		).Scan(&exists)
		if err != nil {
			return applied, fmt.Errorf("failed to check migration %d: %w", m.version, err)
		}
		if exists {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func apply(ctx context.Context, db *sql.DB, m migration) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
	}
	return nil
}
