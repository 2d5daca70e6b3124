package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Mabdi59/tournapro/models"
)

// ScheduleRepository performs the multi-row writes of a division as a single
// unit: either every row is written or none is.
type ScheduleRepository interface {
	// ReplaceDivisionSchedule deletes the division's matches, inserts the new
	// ones (assigning IDs and resolving next/loser links from UIDs) and resets
	// the records of the given teams.
	ReplaceDivisionSchedule(ctx context.Context, divisionID int, matches []*models.Match, teams []*models.Team) error
	// SaveDivisionState writes the participants, results and statuses of the
	// given matches and the records of the given teams.
	SaveDivisionState(ctx context.Context, matches []*models.Match, teams []*models.Team) error
}

type postgresScheduleRepository struct {
	db *sql.DB
}

func NewPostgresScheduleRepository(db *sql.DB) ScheduleRepository {
	return &postgresScheduleRepository{db: db}
}

func (r *postgresScheduleRepository) ReplaceDivisionSchedule(ctx context.Context, divisionID int, matches []*models.Match, teams []*models.Team) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE division_id = $1`, divisionID); err != nil {
			return fmt.Errorf("failed to clear division %d schedule: %w", divisionID, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO matches (
				tournament_id, division_id, bracket_uid, stage, group_name, round, order_in_round, sequence,
				team1_id, team2_id, team1_source, team2_source,
				next_match_uid, next_slot, loser_match_uid, loser_slot, is_reset_match,
				scheduled_time, venue, status, team1_score, team2_score, winner_id, completed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
			RETURNING id, created_at, updated_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare match insert: %w", err)
		}
		defer stmt.Close()

		ids := make(map[string]int, len(matches))
		for _, m := range matches {
			err := stmt.QueryRowContext(ctx,
				m.TournamentID, divisionID, m.BracketUID, m.Stage, m.GroupName, m.Round, m.OrderInRound, m.Sequence,
				m.Team1ID, m.Team2ID, m.Team1Source, m.Team2Source,
				m.NextMatchUID, m.NextSlot, m.LoserMatchUID, m.LoserSlot, m.IsResetMatch,
				m.ScheduledTime, m.Venue, m.Status, m.Team1Score, m.Team2Score, m.WinnerID, m.CompletedAt,
			).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert match %s: %w", m.BracketUID, err)
			}
			m.DivisionID = divisionID
			ids[m.BracketUID] = m.ID
		}

		// Links can only be stored once every target row has an ID.
		for _, m := range matches {
			resolveLinks(m, ids)
			if m.NextMatchID == nil && m.LoserMatchID == nil {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE matches SET next_match_id = $1, loser_match_id = $2 WHERE id = $3`,
				m.NextMatchID, m.LoserMatchID, m.ID,
			); err != nil {
				return fmt.Errorf("failed to link match %s: %w", m.BracketUID, err)
			}
		}

		for _, t := range teams {
			t.TeamRecord = models.TeamRecord{}
			if err := updateTeamRecord(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *postgresScheduleRepository) SaveDivisionState(ctx context.Context, matches []*models.Match, teams []*models.Team) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, m := range matches {
			result, err := tx.ExecContext(ctx, `
				UPDATE matches SET
					team1_id = $1, team2_id = $2, status = $3,
					team1_score = $4, team2_score = $5, winner_id = $6, completed_at = $7,
					updated_at = $8
				WHERE id = $9`,
				m.Team1ID, m.Team2ID, m.Status, m.Team1Score, m.Team2Score, m.WinnerID, m.CompletedAt, now, m.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to save match %d: %w", m.ID, err)
			}
			if err := checkAffectedRows(result, ErrMatchNotFound); err != nil {
				return err
			}
			m.UpdatedAt = now
		}
		for _, t := range teams {
			if err := updateTeamRecord(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func updateTeamRecord(ctx context.Context, exec SQLExecutor, t *models.Team) error {
	result, err := exec.ExecContext(ctx, `
		UPDATE teams SET
			played = $1, wins = $2, losses = $3, draws = $4, points = $5, score_for = $6, score_against = $7
		WHERE id = $8`,
		t.Played, t.Wins, t.Losses, t.Draws, t.Points, t.ScoreFor, t.ScoreAgainst, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save record of team %d: %w", t.ID, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func resolveLinks(m *models.Match, ids map[string]int) {
	m.NextMatchID, m.LoserMatchID = nil, nil
	if m.NextMatchUID != nil {
		if id, ok := ids[*m.NextMatchUID]; ok {
			m.NextMatchID = models.IntPtr(id)
		}
	}
	if m.LoserMatchUID != nil {
		if id, ok := ids[*m.LoserMatchUID]; ok {
			m.LoserMatchID = models.IntPtr(id)
		}
	}
}
