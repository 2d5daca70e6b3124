package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Mabdi59/tournapro/models"
)

// memoryDB is a process-local stand-in for PostgreSQL. Every read returns a
// copy and every write stores a copy, so callers get the same aliasing rules
// as with the SQL backend.
type memoryDB struct {
	mu sync.RWMutex

	seq         map[string]int
	tournaments map[int]models.Tournament
	divisions   map[int]models.Division
	teams       map[int]models.Team
	matches     map[int]*models.Match
	players     map[int]models.Player
	referees    map[int]models.Referee
}

// NewMemoryStore returns a Store whose repositories share one in-memory
// database. Used by tests and by STORE_DRIVER=memory.
func NewMemoryStore() *Store {
	db := &memoryDB{
		seq:         make(map[string]int),
		tournaments: make(map[int]models.Tournament),
		divisions:   make(map[int]models.Division),
		teams:       make(map[int]models.Team),
		matches:     make(map[int]*models.Match),
		players:     make(map[int]models.Player),
		referees:    make(map[int]models.Referee),
	}
	return &Store{
		Tournaments: &memoryTournamentRepository{db},
		Divisions:   &memoryDivisionRepository{db},
		Teams:       &memoryTeamRepository{db},
		Matches:     &memoryMatchRepository{db},
		Players:     &memoryPlayerRepository{db},
		Referees:    &memoryRefereeRepository{db},
		Schedules:   &memoryScheduleRepository{db},
	}
}

func (db *memoryDB) nextID(table string) int {
	db.seq[table]++
	return db.seq[table]
}

func now() time.Time {
	return time.Now().UTC()
}

// --- tournaments ---

type memoryTournamentRepository struct{ db *memoryDB }

func (r *memoryTournamentRepository) Create(_ context.Context, t *models.Tournament) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t.ID = r.db.nextID("tournaments")
	t.CreatedAt = now()
	t.UpdatedAt = t.CreatedAt
	r.db.tournaments[t.ID] = *t
	return nil
}

func (r *memoryTournamentRepository) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t, ok := r.db.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return &t, nil
}

func (r *memoryTournamentRepository) List(_ context.Context, f ListTournamentsFilter) ([]models.Tournament, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]models.Tournament, 0, len(r.db.tournaments))
	for _, t := range r.db.tournaments {
		if f.OrganizerID != nil && t.OrganizerID != *f.OrganizerID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Format != nil && t.Format != *f.Format {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].ID > out[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []models.Tournament{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memoryTournamentRepository) Update(_ context.Context, t *models.Tournament) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.tournaments[t.ID]
	if !ok {
		return ErrTournamentNotFound
	}
	cur.Name, cur.Description, cur.Location = t.Name, t.Description, t.Location
	cur.Format, cur.StartDate, cur.EndDate, cur.Settings = t.Format, t.StartDate, t.EndDate, t.Settings
	cur.UpdatedAt = now()
	t.UpdatedAt = cur.UpdatedAt
	r.db.tournaments[t.ID] = cur
	return nil
}

func (r *memoryTournamentRepository) UpdateStatus(_ context.Context, id int, status models.TournamentStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.tournaments[id]
	if !ok {
		return ErrTournamentNotFound
	}
	cur.Status = status
	cur.UpdatedAt = now()
	r.db.tournaments[id] = cur
	return nil
}

func (r *memoryTournamentRepository) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tournaments[id]; !ok {
		return ErrTournamentNotFound
	}
	delete(r.db.tournaments, id)
	for did, d := range r.db.divisions {
		if d.TournamentID == id {
			delete(r.db.divisions, did)
		}
	}
	for mid, m := range r.db.matches {
		if m.TournamentID == id {
			delete(r.db.matches, mid)
		}
	}
	for tid, t := range r.db.teams {
		if t.TournamentID == id {
			r.db.deleteTeamLocked(tid)
		}
	}
	for rid, ref := range r.db.referees {
		if ref.TournamentID == id {
			delete(r.db.referees, rid)
		}
	}
	return nil
}

// --- divisions ---

type memoryDivisionRepository struct{ db *memoryDB }

func (r *memoryDivisionRepository) Create(_ context.Context, d *models.Division) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tournaments[d.TournamentID]; !ok {
		return ErrDivisionInvalidTournament
	}
	if r.db.divisionNameTakenLocked(d.TournamentID, d.Name, 0) {
		return ErrDivisionNameConflict
	}
	d.ID = r.db.nextID("divisions")
	d.CreatedAt = now()
	stored := *d
	stored.Teams, stored.Matches = nil, nil
	r.db.divisions[d.ID] = stored
	return nil
}

func (db *memoryDB) divisionNameTakenLocked(tournamentID int, name string, exceptID int) bool {
	for _, d := range db.divisions {
		if d.TournamentID == tournamentID && d.Name == name && d.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *memoryDivisionRepository) GetByID(_ context.Context, id int) (*models.Division, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	d, ok := r.db.divisions[id]
	if !ok {
		return nil, ErrDivisionNotFound
	}
	return &d, nil
}

func (r *memoryDivisionRepository) ListByTournament(_ context.Context, tournamentID int) ([]models.Division, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.Division, 0)
	for _, d := range r.db.divisions {
		if d.TournamentID == tournamentID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryDivisionRepository) Update(_ context.Context, d *models.Division) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.divisions[d.ID]
	if !ok {
		return ErrDivisionNotFound
	}
	if r.db.divisionNameTakenLocked(cur.TournamentID, d.Name, d.ID) {
		return ErrDivisionNameConflict
	}
	cur.Name, cur.Description = d.Name, d.Description
	r.db.divisions[d.ID] = cur
	return nil
}

func (r *memoryDivisionRepository) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.divisions[id]; !ok {
		return ErrDivisionNotFound
	}
	delete(r.db.divisions, id)
	for mid, m := range r.db.matches {
		if m.DivisionID == id {
			delete(r.db.matches, mid)
		}
	}
	for tid, t := range r.db.teams {
		if t.DivisionID != nil && *t.DivisionID == id {
			t.DivisionID = nil
			r.db.teams[tid] = t
		}
	}
	return nil
}

// --- teams ---

type memoryTeamRepository struct{ db *memoryDB }

func (db *memoryDB) insertTeamLocked(t *models.Team) error {
	if t.DivisionID != nil {
		if d, ok := db.divisions[*t.DivisionID]; !ok || d.TournamentID != t.TournamentID {
			return ErrTeamInvalidDivision
		}
	}
	if db.teamNameTakenLocked(t.TournamentID, t.Name, 0) {
		return ErrTeamNameConflict
	}
	t.ID = db.nextID("teams")
	t.CreatedAt = now()
	t.TeamRecord = models.TeamRecord{}
	stored := *t
	stored.Players, stored.LogoURL = nil, nil
	db.teams[t.ID] = stored
	return nil
}

func (db *memoryDB) teamNameTakenLocked(tournamentID int, name string, exceptID int) bool {
	for _, t := range db.teams {
		if t.TournamentID == tournamentID && t.ID != exceptID && strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

func (db *memoryDB) deleteTeamLocked(id int) {
	delete(db.teams, id)
	for pid, p := range db.players {
		if p.TeamID == id {
			delete(db.players, pid)
		}
	}
}

func (r *memoryTeamRepository) Create(_ context.Context, t *models.Team) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.insertTeamLocked(t)
}

func (r *memoryTeamRepository) CreateBatch(_ context.Context, teams []*models.Team) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	created := make([]int, 0, len(teams))
	for _, t := range teams {
		if err := r.db.insertTeamLocked(t); err != nil {
			for _, id := range created {
				delete(r.db.teams, id)
			}
			return err
		}
		created = append(created, t.ID)
	}
	return nil
}

func (r *memoryTeamRepository) GetByID(_ context.Context, id int) (*models.Team, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t, ok := r.db.teams[id]
	if !ok {
		return nil, ErrTeamNotFound
	}
	return &t, nil
}

func (r *memoryTeamRepository) ListByTournament(_ context.Context, tournamentID int) ([]*models.Team, error) {
	return r.filter(func(t models.Team) bool { return t.TournamentID == tournamentID }), nil
}

func (r *memoryTeamRepository) ListByDivision(_ context.Context, divisionID int) ([]*models.Team, error) {
	return r.filter(func(t models.Team) bool { return t.DivisionID != nil && *t.DivisionID == divisionID }), nil
}

func (r *memoryTeamRepository) filter(keep func(models.Team) bool) []*models.Team {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]*models.Team, 0)
	for _, t := range r.db.teams {
		if keep(t) {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryTeamRepository) Update(_ context.Context, t *models.Team) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.teams[t.ID]
	if !ok {
		return ErrTeamNotFound
	}
	if t.DivisionID != nil {
		if d, ok := r.db.divisions[*t.DivisionID]; !ok || d.TournamentID != cur.TournamentID {
			return ErrTeamInvalidDivision
		}
	}
	if r.db.teamNameTakenLocked(cur.TournamentID, t.Name, t.ID) {
		return ErrTeamNameConflict
	}
	cur.Name, cur.ShortName = t.Name, t.ShortName
	cur.DivisionID = nil
	if t.DivisionID != nil {
		cur.DivisionID = models.IntPtr(*t.DivisionID)
	}
	r.db.teams[t.ID] = cur
	return nil
}

func (r *memoryTeamRepository) UpdateLogoKey(_ context.Context, teamID int, logoKey *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.teams[teamID]
	if !ok {
		return ErrTeamNotFound
	}
	cur.LogoKey = logoKey
	r.db.teams[teamID] = cur
	return nil
}

func (r *memoryTeamRepository) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.teams[id]; !ok {
		return ErrTeamNotFound
	}
	for _, m := range r.db.matches {
		if models.SameInt(m.Team1ID, &id) || models.SameInt(m.Team2ID, &id) || models.SameInt(m.WinnerID, &id) {
			return ErrTeamInUse
		}
	}
	r.db.deleteTeamLocked(id)
	return nil
}

// --- matches ---

type memoryMatchRepository struct{ db *memoryDB }

func (r *memoryMatchRepository) GetByID(_ context.Context, id int) (*models.Match, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	m, ok := r.db.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m.Clone(), nil
}

func (r *memoryMatchRepository) ListByDivision(_ context.Context, divisionID int) ([]*models.Match, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]*models.Match, 0)
	for _, m := range r.db.matches {
		if m.DivisionID == divisionID {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *memoryMatchRepository) UpdateSchedule(_ context.Context, m *models.Match) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.matches[m.ID]
	if !ok {
		return ErrMatchNotFound
	}
	src, next := m.Clone(), cur.Clone()
	next.ScheduledTime, next.Venue, next.Status = src.ScheduledTime, src.Venue, src.Status
	next.UpdatedAt = now()
	m.UpdatedAt = next.UpdatedAt
	r.db.matches[m.ID] = next
	return nil
}

func (r *memoryMatchRepository) CountByTeam(_ context.Context, teamID int) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	n := 0
	for _, m := range r.db.matches {
		if models.SameInt(m.Team1ID, &teamID) || models.SameInt(m.Team2ID, &teamID) {
			n++
		}
	}
	return n, nil
}

// --- schedules ---

type memoryScheduleRepository struct{ db *memoryDB }

func (r *memoryScheduleRepository) ReplaceDivisionSchedule(_ context.Context, divisionID int, matches []*models.Match, teams []*models.Team) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.divisions[divisionID]; !ok {
		return ErrDivisionNotFound
	}
	for _, t := range teams {
		if _, ok := r.db.teams[t.ID]; !ok {
			return ErrTeamNotFound
		}
	}

	for id, m := range r.db.matches {
		if m.DivisionID == divisionID {
			delete(r.db.matches, id)
		}
	}

	ts := now()
	ids := make(map[string]int, len(matches))
	for _, m := range matches {
		m.ID = r.db.nextID("matches")
		m.DivisionID = divisionID
		m.CreatedAt, m.UpdatedAt = ts, ts
		ids[m.BracketUID] = m.ID
	}
	for _, m := range matches {
		resolveLinks(m, ids)
		r.db.matches[m.ID] = m.Clone()
	}
	for _, t := range teams {
		t.TeamRecord = models.TeamRecord{}
		cur := r.db.teams[t.ID]
		cur.TeamRecord = models.TeamRecord{}
		r.db.teams[t.ID] = cur
	}
	return nil
}

func (r *memoryScheduleRepository) SaveDivisionState(_ context.Context, matches []*models.Match, teams []*models.Team) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	// Validate first so a missing row leaves everything untouched.
	for _, m := range matches {
		if _, ok := r.db.matches[m.ID]; !ok {
			return ErrMatchNotFound
		}
	}
	for _, t := range teams {
		if _, ok := r.db.teams[t.ID]; !ok {
			return ErrTeamNotFound
		}
	}

	ts := now()
	for _, m := range matches {
		src := m.Clone()
		cur := r.db.matches[m.ID].Clone()
		cur.Team1ID, cur.Team2ID = src.Team1ID, src.Team2ID
		cur.Status = src.Status
		cur.Team1Score, cur.Team2Score = src.Team1Score, src.Team2Score
		cur.WinnerID, cur.CompletedAt = src.WinnerID, src.CompletedAt
		cur.UpdatedAt = ts
		m.UpdatedAt = ts
		r.db.matches[m.ID] = cur
	}
	for _, t := range teams {
		cur := r.db.teams[t.ID]
		cur.TeamRecord = t.TeamRecord
		r.db.teams[t.ID] = cur
	}
	return nil
}

// --- players ---

type memoryPlayerRepository struct{ db *memoryDB }

func (db *memoryDB) insertPlayerLocked(p *models.Player) error {
	if _, ok := db.teams[p.TeamID]; !ok {
		return ErrPlayerInvalidTeam
	}
	p.ID = db.nextID("players")
	p.CreatedAt = now()
	db.players[p.ID] = *p
	return nil
}

func (r *memoryPlayerRepository) Create(_ context.Context, p *models.Player) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.insertPlayerLocked(p)
}

func (r *memoryPlayerRepository) CreateBatch(_ context.Context, players []*models.Player) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	created := make([]int, 0, len(players))
	for _, p := range players {
		if err := r.db.insertPlayerLocked(p); err != nil {
			for _, id := range created {
				delete(r.db.players, id)
			}
			return err
		}
		created = append(created, p.ID)
	}
	return nil
}

func (r *memoryPlayerRepository) GetByID(_ context.Context, id int) (*models.Player, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return &p, nil
}

func (r *memoryPlayerRepository) ListByTeam(_ context.Context, teamID int) ([]*models.Player, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]*models.Player, 0)
	for _, p := range r.db.players {
		if p.TeamID == teamID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].JerseyNumber, out[j].JerseyNumber
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryPlayerRepository) Update(_ context.Context, p *models.Player) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.players[p.ID]
	if !ok {
		return ErrPlayerNotFound
	}
	cur.Name, cur.JerseyNumber, cur.Position, cur.Email, cur.Phone = p.Name, p.JerseyNumber, p.Position, p.Email, p.Phone
	r.db.players[p.ID] = cur
	return nil
}

func (r *memoryPlayerRepository) AddStats(_ context.Context, id int, delta models.PlayerStats) (models.PlayerStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.players[id]
	if !ok {
		return models.PlayerStats{}, ErrPlayerNotFound
	}
	next := cur.PlayerStats.Add(delta)
	if next.GamesPlayed < 0 || next.Goals < 0 || next.Assists < 0 || next.YellowCards < 0 || next.RedCards < 0 {
		return cur.PlayerStats, ErrPlayerStatsNegative
	}
	cur.PlayerStats = next
	r.db.players[id] = cur
	return cur.PlayerStats, nil
}

func (r *memoryPlayerRepository) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.players[id]; !ok {
		return ErrPlayerNotFound
	}
	delete(r.db.players, id)
	return nil
}

func (r *memoryPlayerRepository) TopScorers(_ context.Context, tournamentID, limit int) ([]models.TopScorer, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.TopScorer, 0)
	for _, p := range r.db.players {
		team, ok := r.db.teams[p.TeamID]
		if !ok || team.TournamentID != tournamentID {
			continue
		}
		out = append(out, models.TopScorer{Player: p, TeamName: team.Name, Points: p.PlayerStats.Points()})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Goals != b.Goals {
			return a.Goals > b.Goals
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// --- referees ---

type memoryRefereeRepository struct{ db *memoryDB }

func (db *memoryDB) insertRefereeLocked(ref *models.Referee) error {
	if _, ok := db.tournaments[ref.TournamentID]; !ok {
		return ErrRefereeInvalidTournament
	}
	ref.ID = db.nextID("referees")
	ref.CreatedAt = now()
	db.referees[ref.ID] = *ref
	return nil
}

func (r *memoryRefereeRepository) Create(_ context.Context, ref *models.Referee) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.insertRefereeLocked(ref)
}

func (r *memoryRefereeRepository) CreateBatch(_ context.Context, referees []*models.Referee) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	created := make([]int, 0, len(referees))
	for _, ref := range referees {
		if err := r.db.insertRefereeLocked(ref); err != nil {
			for _, id := range created {
				delete(r.db.referees, id)
			}
			return err
		}
		created = append(created, ref.ID)
	}
	return nil
}

func (r *memoryRefereeRepository) GetByID(_ context.Context, id int) (*models.Referee, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	ref, ok := r.db.referees[id]
	if !ok {
		return nil, ErrRefereeNotFound
	}
	return &ref, nil
}

func (r *memoryRefereeRepository) ListByTournament(_ context.Context, tournamentID int) ([]*models.Referee, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]*models.Referee, 0)
	for _, ref := range r.db.referees {
		if ref.TournamentID == tournamentID {
			ref := ref
			out = append(out, &ref)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryRefereeRepository) Update(_ context.Context, ref *models.Referee) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.referees[ref.ID]
	if !ok {
		return ErrRefereeNotFound
	}
	cur.Name, cur.Email, cur.Phone, cur.Role, cur.Country = ref.Name, ref.Email, ref.Phone, ref.Role, ref.Country
	r.db.referees[ref.ID] = cur
	return nil
}

func (r *memoryRefereeRepository) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.referees[id]; !ok {
		return ErrRefereeNotFound
	}
	delete(r.db.referees, id)
	return nil
}
