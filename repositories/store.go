package repositories

import "database/sql"

// Store groups the repositories the services depend on. Both backends share
// the same interfaces so services never know which one they run on.
type Store struct {
	Tournaments TournamentRepository
	Divisions   DivisionRepository
	Teams       TeamRepository
	Matches     MatchRepository
	Players     PlayerRepository
	Referees    RefereeRepository
	Schedules   ScheduleRepository
}

func NewPostgresStore(db *sql.DB) *Store {
	return &Store{
		Tournaments: NewPostgresTournamentRepository(db),
		Divisions:   NewPostgresDivisionRepository(db),
		Teams:       NewPostgresTeamRepository(db),
		Matches:     NewPostgresMatchRepository(db),
		Players:     NewPostgresPlayerRepository(db),
		Referees:    NewPostgresRefereeRepository(db),
		Schedules:   NewPostgresScheduleRepository(db),
	}
}
