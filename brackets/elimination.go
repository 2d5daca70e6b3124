package brackets

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/Mabdi59/tournapro/models"
)

// entrant fills one team slot while the bracket is being drafted.
type entrant struct {
	teamID *int
	source string
	bye    bool
}

var byeEntrant = entrant{bye: true}

func teamEntrant(id int) entrant { return entrant{teamID: models.IntPtr(id)} }

func sourceEntrant(src string) entrant { return entrant{source: src} }

type draftMatch struct {
	match *models.Match
	slots [2]entrant
}

// bracketDraft collects matches in dependency order: a draft only ever refers
// to drafts added before it.
type bracketDraft struct {
	drafts []*draftMatch
}

func (b *bracketDraft) add(stage models.Stage, round, order int, uid string, s1, s2 entrant) {
	b.drafts = append(b.drafts, &draftMatch{
		match: &models.Match{
			BracketUID:   uid,
			Stage:        stage,
			Round:        round,
			OrderInRound: order,
			Status:       models.MatchPending,
		},
		slots: [2]entrant{s1, s2},
	})
}

type byeOutcome struct {
	winner entrant
	loser  entrant
}

// collapse removes every match that has a bye in it. The present entrant moves
// straight to the winner destination and the loser destination receives a bye,
// so a double bye yields byes on both sides. What remains is wired together
// through NextMatch and LoserMatch links derived from the slot sources.
func (b *bracketDraft) collapse() []*models.Match {
	removed := make(map[string]byeOutcome)
	resolve := func(e entrant) entrant {
		src, ok := ParseSource(e.source)
		if !ok || src.Kind == SourceGroup {
			return e
		}
		out, gone := removed[src.MatchUID]
		if !gone {
			return e
		}
		if src.Kind == SourceWinner {
			return out.winner
		}
		return out.loser
	}

	kept := make([]*draftMatch, 0, len(b.drafts))
	byUID := make(map[string]*models.Match, len(b.drafts))
	for _, d := range b.drafts {
		d.slots[0], d.slots[1] = resolve(d.slots[0]), resolve(d.slots[1])
		a, c := d.slots[0], d.slots[1]
		switch {
		case a.bye && c.bye:
			removed[d.match.BracketUID] = byeOutcome{winner: byeEntrant, loser: byeEntrant}
		case a.bye:
			removed[d.match.BracketUID] = byeOutcome{winner: c, loser: byeEntrant}
		case c.bye:
			removed[d.match.BracketUID] = byeOutcome{winner: a, loser: byeEntrant}
		default:
			kept = append(kept, d)
			byUID[d.match.BracketUID] = d.match
		}
	}

	out := make([]*models.Match, 0, len(kept))
	for _, d := range kept {
		m := d.match
		m.Team1ID, m.Team1Source = d.slots[0].teamID, d.slots[0].source
		m.Team2ID, m.Team2Source = d.slots[1].teamID, d.slots[1].source
		for slot, src := range []string{m.Team1Source, m.Team2Source} {
			parsed, ok := ParseSource(src)
			if !ok || parsed.Kind == SourceGroup {
				continue
			}
			up := byUID[parsed.MatchUID]
			if up == nil {
				continue
			}
			uid := m.BracketUID
			if parsed.Kind == SourceWinner && up.NextMatchUID == nil {
				up.NextMatchUID = &uid
				up.NextSlot = slot + 1
			}
			if parsed.Kind == SourceLoser && up.LoserMatchUID == nil {
				up.LoserMatchUID = &uid
				up.LoserSlot = slot + 1
			}
		}
		out = append(out, m)
	}
	return out
}

// bracketSize is the smallest power of two holding n entrants.
func bracketSize(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// SeedPositions returns the seed occupying each bracket line, top to bottom,
// so that seed 1 meets seed size, and the top two seeds can only meet in the
// final. For size 8 this is 1 8 4 5 2 7 3 6.
func SeedPositions(size int) []int {
	order := []int{1}
	for len(order) < size {
		next := make([]int, 0, len(order)*2)
		sum := len(order)*2 + 1
		for _, s := range order {
			next = append(next, s, sum-s)
		}
		order = next
	}
	return order
}

func wbUID(round, order int) string { return fmt.Sprintf("WB-R%d-M%d", round, order) }

func lbUID(round, order int) string { return fmt.Sprintf("LB-R%d-M%d", round, order) }

// draftWinnersBracket lays out the full winners bracket over seeded entrants
// and returns the number of rounds.
func draftWinnersBracket(b *bracketDraft, seeds []entrant) int {
	size := bracketSize(len(seeds))
	positions := SeedPositions(size)

	line := make([]entrant, size)
	for i, seed := range positions {
		if seed <= len(seeds) {
			line[i] = seeds[seed-1]
		} else {
			line[i] = byeEntrant
		}
	}

	rounds := bits.Len(uint(size)) - 1
	for i := 0; i < size/2; i++ {
		b.add(models.StageWinners, 1, i+1, wbUID(1, i+1), line[2*i], line[2*i+1])
	}
	for r := 2; r <= rounds; r++ {
		count := size >> r
		for i := 1; i <= count; i++ {
			b.add(models.StageWinners, r, i, wbUID(r, i),
				sourceEntrant(WinnerOf(wbUID(r-1, 2*i-1))),
				sourceEntrant(WinnerOf(wbUID(r-1, 2*i))))
		}
	}
	return rounds
}

// draftLosersBracket adds the losers bracket for a winners bracket of the
// given size and round count and returns the UID of its final.
//
// Round 1 pairs the first-round losers. Every even round 2j brings in the
// losers of winners round j+1 against the survivors of round 2j-1, in
// reverse order when j is odd so early opponents are not met again at once.
// Odd rounds after the first halve the survivors.
func draftLosersBracket(b *bracketDraft, size, wbRounds int) string {
	for i := 1; i <= size/4; i++ {
		b.add(models.StageLosers, 1, i, lbUID(1, i),
			sourceEntrant(LoserOf(wbUID(1, 2*i-1))),
			sourceEntrant(LoserOf(wbUID(1, 2*i))))
	}
	for j := 1; j < wbRounds; j++ {
		count := size >> (j + 1)
		for i := 1; i <= count; i++ {
			dropped := i
			if j%2 == 1 {
				dropped = count + 1 - i
			}
			b.add(models.StageLosers, 2*j, i, lbUID(2*j, i),
				sourceEntrant(WinnerOf(lbUID(2*j-1, i))),
				sourceEntrant(LoserOf(wbUID(j+1, dropped))))
		}
		if j == wbRounds-1 {
			break
		}
		for i := 1; i <= count/2; i++ {
			b.add(models.StageLosers, 2*j+1, i, lbUID(2*j+1, i),
				sourceEntrant(WinnerOf(lbUID(2*j, 2*i-1))),
				sourceEntrant(WinnerOf(lbUID(2*j, 2*i))))
		}
	}
	return lbUID(2*(wbRounds-1), 1)
}

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateParams) ([]*models.Match, error) {
	if len(params.Teams) < 2 {
		return nil, ErrInsufficientTeams
	}
	seeds := make([]entrant, 0, len(params.Teams))
	for _, id := range teamIDs(params.Teams) {
		seeds = append(seeds, teamEntrant(id))
	}
	b := &bracketDraft{}
	draftWinnersBracket(b, seeds)
	return finalize(params, b.collapse()), nil
}

type DoubleEliminationGenerator struct{}

func NewDoubleEliminationGenerator() BracketGenerator {
	return &DoubleEliminationGenerator{}
}

func (g *DoubleEliminationGenerator) GetName() string {
	return "DoubleElimination"
}

// GenerateBracket builds winners and losers brackets plus the grand final.
// The winners bracket champion takes slot 1 of the grand final. When the
// reset is enabled a second final follows, fed by the first final's winner
// and loser; it is cancelled if the winners bracket champion wins the first.
func (g *DoubleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateParams) ([]*models.Match, error) {
	if len(params.Teams) < 2 {
		return nil, ErrInsufficientTeams
	}
	seeds := make([]entrant, 0, len(params.Teams))
	for _, id := range teamIDs(params.Teams) {
		seeds = append(seeds, teamEntrant(id))
	}

	b := &bracketDraft{}
	size := bracketSize(len(seeds))
	wbRounds := draftWinnersBracket(b, seeds)
	wbFinal := wbUID(wbRounds, 1)

	challenger := sourceEntrant(LoserOf(wbFinal))
	lbRounds := 0
	if wbRounds > 1 {
		challenger = sourceEntrant(WinnerOf(draftLosersBracket(b, size, wbRounds)))
		lbRounds = 2 * (wbRounds - 1)
	}

	finalRound := max(wbRounds, lbRounds) + 1
	b.add(models.StageFinals, finalRound, 1, "GF-M1", sourceEntrant(WinnerOf(wbFinal)), challenger)
	if params.Settings.GrandFinalReset {
		b.add(models.StageFinals, finalRound+1, 1, "GF-M2",
			sourceEntrant(WinnerOf("GF-M1")), sourceEntrant(LoserOf("GF-M1")))
	}

	matches := b.collapse()
	for _, m := range matches {
		if m.BracketUID == "GF-M2" {
			m.IsResetMatch = true
		}
	}
	return finalize(params, matches), nil
}
