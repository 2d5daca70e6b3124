package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Mabdi59/tournapro/models"
)

var (
	ErrTeamNotFound        = errors.New("team not found")
	ErrTeamNameConflict    = errors.New("team name already taken in this tournament")
	ErrTeamInvalidDivision = errors.New("invalid division reference")
	ErrTeamInUse           = errors.New("team is referenced by scheduled matches")
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	// CreateBatch inserts all teams or none.
	CreateBatch(ctx context.Context, teams []*models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Team, error)
	ListByDivision(ctx context.Context, divisionID int) ([]*models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	UpdateLogoKey(ctx context.Context, teamID int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

const teamColumns = `
	id, tournament_id, division_id, name, short_name, logo_key,
	played, wins, losses, draws, points, score_for, score_against, created_at`

func scanTeam(row rowScanner) (*models.Team, error) {
	t := &models.Team{}
	err := row.Scan(
		&t.ID, &t.TournamentID, &t.DivisionID, &t.Name, &t.ShortName, &t.LogoKey,
		&t.Played, &t.Wins, &t.Losses, &t.Draws, &t.Points, &t.ScoreFor, &t.ScoreAgainst, &t.CreatedAt,
	)
	return t, err
}

func insertTeam(ctx context.Context, exec SQLExecutor, t *models.Team) error {
	query := `
		INSERT INTO teams (tournament_id, division_id, name, short_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	return exec.QueryRowContext(ctx, query, t.TournamentID, t.DivisionID, t.Name, t.ShortName).
		Scan(&t.ID, &t.CreatedAt)
}

func (r *postgresTeamRepository) Create(ctx context.Context, t *models.Team) error {
	return r.handleTeamError(insertTeam(ctx, r.db, t))
}

func (r *postgresTeamRepository) CreateBatch(ctx context.Context, teams []*models.Team) error {
	if len(teams) == 0 {
		return nil
	}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, t := range teams {
			if err := insertTeam(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
	return r.handleTeamError(err)
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	t, err := scanTeam(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTeamRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE tournament_id = $1 ORDER BY id`
	return r.list(ctx, query, tournamentID)
}

// ListByDivision returns the division's teams in registration order, which is
// also their seed order.
func (r *postgresTeamRepository) ListByDivision(ctx context.Context, divisionID int) ([]*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE division_id = $1 ORDER BY id`
	return r.list(ctx, query, divisionID)
}

func (r *postgresTeamRepository) list(ctx context.Context, query string, arg int) ([]*models.Team, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *postgresTeamRepository) Update(ctx context.Context, t *models.Team) error {
	query := `UPDATE teams SET name = $1, short_name = $2, division_id = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, t.Name, t.ShortName, t.DivisionID, t.ID)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateLogoKey(ctx context.Context, teamID int, logoKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE teams SET logo_key = $1 WHERE id = $2`, logoKey, teamID)
	if err != nil {
		return fmt.Errorf("failed to update team logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) handleTeamError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "teams_tournament_id_name_key" {
				return ErrTeamNameConflict
			}
		case "23503":
			switch pqErr.Constraint {
			case "teams_division_id_fkey":
				return ErrTeamInvalidDivision
			case "matches_team1_id_fkey", "matches_team2_id_fkey", "matches_winner_id_fkey":
				return ErrTeamInUse
			}
		}
	}
	return err
}
