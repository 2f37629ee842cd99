package brackets

import (
	"context"

	"github.com/Dosada05/bracket-engine/models"
)

// PlannedSlot is one side of a planned set before persistence.
type PlannedSlot struct {
	EntrantID  *int
	SeedNumber *int
	IsBye      bool
}

// PlannedSet is one node of the computed bracket structure. Sets are keyed
// by (Round, OrderInRound), both 1-based; persistence assigns the real IDs.
type PlannedSet struct {
	Round         int
	OrderInRound  int
	FullRoundText string

	Slot1 PlannedSlot
	Slot2 PlannedSlot

	// AutoWinnerEntrantID is set on first-round bye sets: the set is born
	// completed with this entrant as winner, no game is ever played in it.
	AutoWinnerEntrantID *int
}

type GeneratePlanParams struct {
	// Entries is the finalized seed list, seed numbers a permutation of 1..N.
	Entries []models.SeedEntry
}

type Generator interface {
	GeneratePlan(ctx context.Context, params GeneratePlanParams) ([]*PlannedSet, error)

	GetName() string
}
