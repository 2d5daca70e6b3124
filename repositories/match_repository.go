package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Mabdi59/tournapro/models"
)

var (
	ErrMatchNotFound = errors.New("match not found")
)

type MatchRepository interface {
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// ListByDivision returns matches ordered by sequence.
	ListByDivision(ctx context.Context, divisionID int) ([]*models.Match, error)
	UpdateSchedule(ctx context.Context, match *models.Match) error
	CountByTeam(ctx context.Context, teamID int) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `
	id, tournament_id, division_id, bracket_uid, stage, group_name, round, order_in_round, sequence,
	team1_id, team2_id, team1_source, team2_source,
	next_match_id, next_match_uid, next_slot, loser_match_id, loser_match_uid, loser_slot, is_reset_match,
	scheduled_time, venue, status, team1_score, team2_score, winner_id, completed_at, created_at, updated_at`

func scanMatch(row rowScanner) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.DivisionID, &m.BracketUID, &m.Stage, &m.GroupName, &m.Round, &m.OrderInRound, &m.Sequence,
		&m.Team1ID, &m.Team2ID, &m.Team1Source, &m.Team2Source,
		&m.NextMatchID, &m.NextMatchUID, &m.NextSlot, &m.LoserMatchID, &m.LoserMatchUID, &m.LoserSlot, &m.IsResetMatch,
		&m.ScheduledTime, &m.Venue, &m.Status, &m.Team1Score, &m.Team2Score, &m.WinnerID, &m.CompletedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByDivision(ctx context.Context, divisionID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE division_id = $1 ORDER BY sequence`
	rows, err := r.db.QueryContext(ctx, query, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for division %d: %w", divisionID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// UpdateSchedule writes time, venue and status only; results go through
// ScheduleRepository.SaveDivisionState.
func (r *postgresMatchRepository) UpdateSchedule(ctx context.Context, m *models.Match) error {
	query := `
		UPDATE matches SET scheduled_time = $1, venue = $2, status = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, m.ScheduledTime, m.Venue, m.Status, m.ID).Scan(&m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMatchNotFound
	}
	return err
}

func (r *postgresMatchRepository) CountByTeam(ctx context.Context, teamID int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE team1_id = $1 OR team2_id = $1`, teamID,
	).Scan(&n)
	return n, err
}
