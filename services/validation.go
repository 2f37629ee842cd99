package services

import (
	"fmt"

	"github.com/Dosada05/bracket-engine/models"
)

// Validation consolidated here so every mutating entry point rejects bad
// input with the same typed errors instead of ad hoc checks per call site.

// validateSeedEntries checks that the seed numbers form a permutation of
// 1..N: unique, contiguous, no gaps.
func validateSeedEntries(entries []models.SeedEntry) error {
	n := len(entries)
	if n < 2 {
		return ErrNotEnoughEntrants
	}

	seen := make(map[int]bool, n)
	for _, e := range entries {
		if e.SeedNumber < 1 || e.SeedNumber > n {
			return fmt.Errorf("%w: seed %d out of range [1, %d]", ErrSeedListInvalid, e.SeedNumber, n)
		}
		if seen[e.SeedNumber] {
			return fmt.Errorf("%w: duplicate seed %d", ErrSeedListInvalid, e.SeedNumber)
		}
		seen[e.SeedNumber] = true
	}
	return nil
}

// validateReportedResult checks a score report against the set it targets.
func validateReportedResult(set *models.Set, slot1Score, slot2Score, winnerSlot int) error {
	if set.Slot1.IsBye || set.Slot2.IsBye {
		return ErrByeSetNotReportable
	}
	if !set.Slot1.Populated() || !set.Slot2.Populated() {
		return ErrSlotNotPopulated
	}
	if slot1Score < 0 || slot2Score < 0 {
		return ErrScoreNegative
	}
	switch winnerSlot {
	case 1:
		if slot1Score < slot2Score {
			return ErrWinnerScoreMismatch
		}
	case 2:
		if slot2Score < slot1Score {
			return ErrWinnerScoreMismatch
		}
	default:
		return ErrWinnerSlotInvalid
	}
	return nil
}

func validateBracketType(bracketType models.BracketType) error {
	switch bracketType {
	case models.BracketSingleElimination:
		return nil
	case models.BracketDoubleElimination:
		// The type exists in the data model but no losers bracket is ever
		// generated; refuse fast instead of producing half a structure.
		return fmt.Errorf("%w: %s (losers bracket generation is not implemented)", ErrUnsupportedBracketType, bracketType)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedBracketType, bracketType)
	}
}

func validateSeedingType(seedingType models.SeedingType) error {
	switch seedingType {
	case models.SeedingTypeManual, models.SeedingTypeRandom, models.SeedingTypeSkill:
		return nil
	default:
		return fmt.Errorf("%w: unknown seeding type %q", ErrValidationFailed, seedingType)
	}
}
