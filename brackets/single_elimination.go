// bracket-engine/brackets/single_elimination.go
package brackets

import (
	"context"
	"errors"
	"sort"

	"github.com/Dosada05/bracket-engine/models"
)

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() Generator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GeneratePlan builds the full winners-side tree for the given seed list.
//
// Byes go to the top seeds: with b = BracketSize(n) - n, seeds 1..b each get
// a first-round set against a permanent bye slot and advance automatically.
// The remaining entrants are paired by seed adjacency in finalized order
// (seed b+1 vs b+2, and so on). Adjacent pairing is the observed behaviour
// of this engine; it is not the 1-vs-N pairing that keeps top seeds apart
// until late rounds, and callers relying on the exact shape of round one
// depend on it.
func (g *SingleEliminationGenerator) GeneratePlan(ctx context.Context, params GeneratePlanParams) ([]*PlannedSet, error) {
	entries := make([]models.SeedEntry, len(params.Entries))
	copy(entries, params.Entries)
	n := len(entries)

	if n < 2 {
		return nil, errors.New("not enough entrants to generate a single elimination bracket (minimum 2)")
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SeedNumber < entries[j].SeedNumber
	})

	numRounds := NumRounds(n)
	numByes := NumByes(n)

	planned := make([]*PlannedSet, 0, BracketSize(n)-1)

	// Round 1: bye sets for the top seeds, then adjacent pairs.
	order := 0
	for i := 0; i < numByes; i++ {
		order++
		e := entries[i]
		eid, seed := e.ParticipantID, e.SeedNumber
		planned = append(planned, &PlannedSet{
			Round:               1,
			OrderInRound:        order,
			FullRoundText:       RoundName(1, numRounds),
			Slot1:               PlannedSlot{EntrantID: &eid, SeedNumber: &seed},
			Slot2:               PlannedSlot{IsBye: true},
			AutoWinnerEntrantID: &eid,
		})
	}
	for i := numByes; i+1 < n; i += 2 {
		order++
		e1, e2 := entries[i], entries[i+1]
		id1, seed1 := e1.ParticipantID, e1.SeedNumber
		id2, seed2 := e2.ParticipantID, e2.SeedNumber
		planned = append(planned, &PlannedSet{
			Round:         1,
			OrderInRound:  order,
			FullRoundText: RoundName(1, numRounds),
			Slot1:         PlannedSlot{EntrantID: &id1, SeedNumber: &seed1},
			Slot2:         PlannedSlot{EntrantID: &id2, SeedNumber: &seed2},
		})
	}

	// Subsequent rounds: empty placeholders, halving each round. Slots are
	// filled by progression as the feeding sets complete.
	for r := 2; r <= numRounds; r++ {
		for k := 1; k <= SetsInRound(r, numRounds); k++ {
			planned = append(planned, &PlannedSet{
				Round:         r,
				OrderInRound:  k,
				FullRoundText: RoundName(r, numRounds),
			})
		}
	}

	return planned, nil
}
