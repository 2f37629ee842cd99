package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

// progressionEngine advances a completed set's winner into the next round.
// Every method runs on the caller's executor: a reported result and its
// propagation are committed together or not at all.
type progressionEngine struct {
	phaseRepo repositories.PhaseRepository
	setRepo   repositories.SetRepository
}

func newProgressionEngine(phaseRepo repositories.PhaseRepository, setRepo repositories.SetRepository) *progressionEngine {
	return &progressionEngine{phaseRepo: phaseRepo, setRepo: setRepo}
}

// nextPosition returns the coordinates fed by the set at (round, order):
// the target set's order in round+1 and which of its slots (1 or 2).
// Orders are stored 1-based, the arithmetic is the usual binary-tree walk.
func nextPosition(orderInRound int) (targetOrder, targetSlot int) {
	idx := orderInRound - 1
	return idx/2 + 1, idx%2 + 1
}

// advance reacts to completed reaching its terminal state. For the final
// round it closes the phase and returns nil; otherwise it writes the winner
// into the next round's slot and returns the updated target set. Re-running
// advance for the same completion is a no-op, so retried transactions never
// double-propagate.
func (p *progressionEngine) advance(ctx context.Context, exec repositories.SQLExecutor, phase *models.Phase, completed *models.Set) (*models.Set, error) {
	if completed.WinnerEntrantID == nil {
		return nil, fmt.Errorf("cannot advance set %d without a winner", completed.ID)
	}

	if completed.RoundNumber >= phase.NumberOfRounds {
		now := time.Now().UTC()
		err := p.phaseRepo.UpdateStatus(ctx, exec, phase.ID, models.PhaseStatusCompleted, nil, &now)
		if err != nil && !errors.Is(err, repositories.ErrPhaseAlreadyCompleted) {
			return nil, fmt.Errorf("failed to complete phase %d: %w", phase.ID, err)
		}
		phase.Status = models.PhaseStatusCompleted
		phase.CompletedAt = &now
		return nil, nil
	}

	targetOrder, targetSlot := nextPosition(completed.OrderInRound)
	target, err := p.setRepo.GetByPosition(ctx, exec, phase.ID, completed.RoundNumber+1, targetOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to load target set at round %d order %d: %w",
			completed.RoundNumber+1, targetOrder, err)
	}

	slot := target.SlotByNumber(targetSlot)
	winnerID := *completed.WinnerEntrantID
	if slot.EntrantID != nil && *slot.EntrantID == winnerID {
		return target, nil
	}

	slot.EntrantID = &winnerID
	slot.Score = nil
	slot.SeedNumber = seedOfEntrant(completed, winnerID)

	// Both feeders decided: the set is now ready to be called.
	if target.Slot1.Populated() && target.Slot2.Populated() {
		target.State = models.SetStatePending
	}

	if err := p.setRepo.Update(ctx, exec, target); err != nil {
		return nil, fmt.Errorf("failed to write winner of set %d into set %d: %w", completed.ID, target.ID, err)
	}
	return target, nil
}

// seedOfEntrant carries the entrant's seed number forward through the tree.
func seedOfEntrant(set *models.Set, entrantID int) *int {
	if set.Slot1.EntrantID != nil && *set.Slot1.EntrantID == entrantID {
		return set.Slot1.SeedNumber
	}
	if set.Slot2.EntrantID != nil && *set.Slot2.EntrantID == entrantID {
		return set.Slot2.SeedNumber
	}
	return nil
}
