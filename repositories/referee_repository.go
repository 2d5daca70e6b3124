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
	ErrRefereeNotFound          = errors.New("referee not found")
	ErrRefereeInvalidTournament = errors.New("invalid tournament reference")
)

type RefereeRepository interface {
	Create(ctx context.Context, referee *models.Referee) error
	CreateBatch(ctx context.Context, referees []*models.Referee) error
	GetByID(ctx context.Context, id int) (*models.Referee, error)
	// ListByTournament orders by name.
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Referee, error)
	Update(ctx context.Context, referee *models.Referee) error
	Delete(ctx context.Context, id int) error
}

type postgresRefereeRepository struct {
	db *sql.DB
}

func NewPostgresRefereeRepository(db *sql.DB) RefereeRepository {
	return &postgresRefereeRepository{db: db}
}

const refereeColumns = `id, tournament_id, name, email, phone, role, country, created_at`

func refereeScanArgs(r *models.Referee) []interface{} {
	return []interface{}{&r.ID, &r.TournamentID, &r.Name, &r.Email, &r.Phone, &r.Role, &r.Country, &r.CreatedAt}
}

func insertReferee(ctx context.Context, exec SQLExecutor, r *models.Referee) error {
	query := `
		INSERT INTO referees (tournament_id, name, email, phone, role, country)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return exec.QueryRowContext(ctx, query, r.TournamentID, r.Name, r.Email, r.Phone, r.Role, r.Country).
		Scan(&r.ID, &r.CreatedAt)
}

func (r *postgresRefereeRepository) Create(ctx context.Context, ref *models.Referee) error {
	return handleRefereeError(insertReferee(ctx, r.db, ref))
}

func (r *postgresRefereeRepository) CreateBatch(ctx context.Context, referees []*models.Referee) error {
	if len(referees) == 0 {
		return nil
	}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, ref := range referees {
			if err := insertReferee(ctx, tx, ref); err != nil {
				return err
			}
		}
		return nil
	})
	return handleRefereeError(err)
}

func (r *postgresRefereeRepository) GetByID(ctx context.Context, id int) (*models.Referee, error) {
	ref := &models.Referee{}
	err := r.db.QueryRowContext(ctx, `SELECT `+refereeColumns+` FROM referees WHERE id = $1`, id).
		Scan(refereeScanArgs(ref)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefereeNotFound
		}
		return nil, err
	}
	return ref, nil
}

func (r *postgresRefereeRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Referee, error) {
	query := `SELECT ` + refereeColumns + ` FROM referees WHERE tournament_id = $1 ORDER BY LOWER(name), id`
	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query referees: %w", err)
	}
	defer rows.Close()

	referees := make([]*models.Referee, 0)
	for rows.Next() {
		ref := &models.Referee{}
		if err := rows.Scan(refereeScanArgs(ref)...); err != nil {
			return nil, fmt.Errorf("failed to scan referee: %w", err)
		}
		referees = append(referees, ref)
	}
	return referees, rows.Err()
}

func (r *postgresRefereeRepository) Update(ctx context.Context, ref *models.Referee) error {
	query := `UPDATE referees SET name = $1, email = $2, phone = $3, role = $4, country = $5 WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query, ref.Name, ref.Email, ref.Phone, ref.Role, ref.Country, ref.ID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRefereeNotFound)
}

func (r *postgresRefereeRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM referees WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRefereeNotFound)
}

func handleRefereeError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" && pqErr.Constraint == "referees_tournament_id_fkey" {
		return ErrRefereeInvalidTournament
	}
	return err
}
