package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/Mabdi59/tournapro/models"
)

var (
	ErrDivisionNotFound          = errors.New("division not found")
	ErrDivisionNameConflict      = errors.New("division name already exists in this tournament")
	ErrDivisionInvalidTournament = errors.New("invalid tournament reference")
)

type DivisionRepository interface {
	Create(ctx context.Context, division *models.Division) error
	GetByID(ctx context.Context, id int) (*models.Division, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Division, error)
	Update(ctx context.Context, division *models.Division) error
	Delete(ctx context.Context, id int) error
}

type postgresDivisionRepository struct {
	db *sql.DB
}

func NewPostgresDivisionRepository(db *sql.DB) DivisionRepository {
	return &postgresDivisionRepository{db: db}
}

func (r *postgresDivisionRepository) Create(ctx context.Context, d *models.Division) error {
	query := `
		INSERT INTO divisions (tournament_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, d.TournamentID, d.Name, d.Description).
		Scan(&d.ID, &d.CreatedAt)
	return r.handleDivisionError(err)
}

func (r *postgresDivisionRepository) GetByID(ctx context.Context, id int) (*models.Division, error) {
	query := `SELECT id, tournament_id, name, description, created_at FROM divisions WHERE id = $1`

	d := &models.Division{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.TournamentID, &d.Name, &d.Description, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDivisionNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *postgresDivisionRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Division, error) {
	query := `
		SELECT id, tournament_id, name, description, created_at
		FROM divisions
		WHERE tournament_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	divisions := make([]models.Division, 0)
	for rows.Next() {
		var d models.Division
		if err := rows.Scan(&d.ID, &d.TournamentID, &d.Name, &d.Description, &d.CreatedAt); err != nil {
			return nil, err
		}
		divisions = append(divisions, d)
	}
	return divisions, rows.Err()
}

func (r *postgresDivisionRepository) Update(ctx context.Context, d *models.Division) error {
	query := `UPDATE divisions SET name = $1, description = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, d.Name, d.Description, d.ID)
	if err != nil {
		return r.handleDivisionError(err)
	}
	return checkAffectedRows(result, ErrDivisionNotFound)
}

// Delete drops the division's matches (cascade) and unassigns its teams.
func (r *postgresDivisionRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM divisions WHERE id = $1`, id)
	if err != nil {
		return r.handleDivisionError(err)
	}
	return checkAffectedRows(result, ErrDivisionNotFound)
}

func (r *postgresDivisionRepository) handleDivisionError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "divisions_tournament_id_name_key" {
				return ErrDivisionNameConflict
			}
		case "23503":
			if pqErr.Constraint == "divisions_tournament_id_fkey" {
				return ErrDivisionInvalidTournament
			}
		}
	}
	return err
}
