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
	ErrPlayerNotFound      = errors.New("player not found")
	ErrPlayerInvalidTeam   = errors.New("invalid team reference")
	ErrPlayerStatsNegative = errors.New("player totals cannot go below zero")
)

type PlayerRepository interface {
	Create(ctx context.Context, player *models.Player) error
	CreateBatch(ctx context.Context, players []*models.Player) error
	GetByID(ctx context.Context, id int) (*models.Player, error)
	ListByTeam(ctx context.Context, teamID int) ([]*models.Player, error)
	Update(ctx context.Context, player *models.Player) error
	// AddStats adds delta to the stored totals and returns the new totals.
	AddStats(ctx context.Context, id int, delta models.PlayerStats) (models.PlayerStats, error)
	Delete(ctx context.Context, id int) error
	TopScorers(ctx context.Context, tournamentID, limit int) ([]models.TopScorer, error)
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

const playerColumns = `
	p.id, p.team_id, p.name, p.jersey_number, p.position, p.email, p.phone, p.created_at,
	p.games_played, p.goals, p.assists, p.yellow_cards, p.red_cards`

func playerScanArgs(p *models.Player) []interface{} {
	return []interface{}{
		&p.ID, &p.TeamID, &p.Name, &p.JerseyNumber, &p.Position, &p.Email, &p.Phone, &p.CreatedAt,
		&p.GamesPlayed, &p.Goals, &p.Assists, &p.YellowCards, &p.RedCards,
	}
}

func insertPlayer(ctx context.Context, exec SQLExecutor, p *models.Player) error {
	query := `
		INSERT INTO players (
			team_id, name, jersey_number, position, email, phone,
			games_played, goals, assists, yellow_cards, red_cards
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`
	return exec.QueryRowContext(ctx, query,
		p.TeamID, p.Name, p.JerseyNumber, p.Position, p.Email, p.Phone,
		p.GamesPlayed, p.Goals, p.Assists, p.YellowCards, p.RedCards,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *postgresPlayerRepository) Create(ctx context.Context, p *models.Player) error {
	return r.handlePlayerError(insertPlayer(ctx, r.db, p))
}

func (r *postgresPlayerRepository) CreateBatch(ctx context.Context, players []*models.Player) error {
	if len(players) == 0 {
		return nil
	}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, p := range players {
			if err := insertPlayer(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	return r.handlePlayerError(err)
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id int) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players p WHERE p.id = $1`
	p := &models.Player{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(playerScanArgs(p)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresPlayerRepository) ListByTeam(ctx context.Context, teamID int) ([]*models.Player, error) {
	query := `
		SELECT ` + playerColumns + `
		FROM players p
		WHERE p.team_id = $1
		ORDER BY p.jersey_number NULLS LAST, p.id`
	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		p := &models.Player{}
		if err := rows.Scan(playerScanArgs(p)...); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (r *postgresPlayerRepository) Update(ctx context.Context, p *models.Player) error {
	query := `
		UPDATE players SET name = $1, jersey_number = $2, position = $3, email = $4, phone = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query, p.Name, p.JerseyNumber, p.Position, p.Email, p.Phone, p.ID)
	if err != nil {
		return r.handlePlayerError(err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) AddStats(ctx context.Context, id int, d models.PlayerStats) (models.PlayerStats, error) {
	query := `
		UPDATE players SET
			games_played = games_played + $1,
			goals = goals + $2,
			assists = assists + $3,
			yellow_cards = yellow_cards + $4,
			red_cards = red_cards + $5
		WHERE id = $6
		RETURNING games_played, goals, assists, yellow_cards, red_cards`

	var s models.PlayerStats
	err := r.db.QueryRowContext(ctx, query, d.GamesPlayed, d.Goals, d.Assists, d.YellowCards, d.RedCards, id).
		Scan(&s.GamesPlayed, &s.Goals, &s.Assists, &s.YellowCards, &s.RedCards)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrPlayerNotFound
	}
	return s, r.handlePlayerError(err)
}

func (r *postgresPlayerRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) TopScorers(ctx context.Context, tournamentID, limit int) ([]models.TopScorer, error) {
	query := `
		SELECT ` + playerColumns + `, t.name
		FROM players p
		JOIN teams t ON t.id = p.team_id
		WHERE t.tournament_id = $1
		ORDER BY p.goals + p.assists DESC, p.goals DESC, p.name, p.id
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, tournamentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top scorers: %w", err)
	}
	defer rows.Close()

	scorers := make([]models.TopScorer, 0)
	for rows.Next() {
		var s models.TopScorer
		if err := rows.Scan(append(playerScanArgs(&s.Player), &s.TeamName)...); err != nil {
			return nil, fmt.Errorf("failed to scan top scorer: %w", err)
		}
		s.Points = s.PlayerStats.Points()
		scorers = append(scorers, s)
	}
	return scorers, rows.Err()
}

func (r *postgresPlayerRepository) handlePlayerError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23503" && pqErr.Constraint == "players_team_id_fkey":
			return ErrPlayerInvalidTeam
		case pqErr.Code == "23514" && pqErr.Constraint == "players_stats_check":
			return ErrPlayerStatsNegative
		}
	}
	return err
}
