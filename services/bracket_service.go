package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

type BracketService interface {
	// Generate materializes the set tree for a phase from its finalized
	// seeding. Generation is deliberately not idempotent: a phase that
	// already holds sets yields a conflict, the caller must tear down or
	// version the prior generation first.
	Generate(ctx context.Context, eventID, phaseID int, bracketType models.BracketType) (*models.Phase, error)
}

type bracketService struct {
	db          *sql.DB
	phaseRepo   repositories.PhaseRepository
	seedingRepo repositories.SeedingRepository
	setRepo     repositories.SetRepository
	progression *progressionEngine
	logger      *slog.Logger
}

func NewBracketService(
	db *sql.DB,
	phaseRepo repositories.PhaseRepository,
	seedingRepo repositories.SeedingRepository,
	setRepo repositories.SetRepository,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		db:          db,
		phaseRepo:   phaseRepo,
		seedingRepo: seedingRepo,
		setRepo:     setRepo,
		progression: newProgressionEngine(phaseRepo, setRepo),
		logger:      logger,
	}
}

func (s *bracketService) Generate(ctx context.Context, eventID, phaseID int, bracketType models.BracketType) (result *models.Phase, txErr error) {
	if err := validateBracketType(bracketType); err != nil {
		return nil, err
	}

	seeding, err := s.seedingRepo.GetByPhase(ctx, eventID, phaseID)
	if err != nil {
		if errors.Is(err, repositories.ErrSeedingNotFound) {
			return nil, ErrSeedingNotFound
		}
		return nil, fmt.Errorf("failed to load seeding for phase %d: %w", phaseID, err)
	}
	if seeding.Status != models.SeedingStatusFinal {
		return nil, ErrSeedingNotFinal
	}
	if err := validateSeedEntries(seeding.Entries); err != nil {
		return nil, err
	}

	var generator brackets.Generator
	switch bracketType {
	case models.BracketSingleElimination:
		generator = brackets.NewSingleEliminationGenerator()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBracketType, bracketType)
	}

	plan, err := generator.GeneratePlan(ctx, brackets.GeneratePlanParams{Entries: seeding.Entries})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	s.logger.Info("generating bracket",
		slog.Int("phase_id", phaseID),
		slog.String("generator", generator.GetName()),
		slog.Int("entrants", len(seeding.Entries)),
		slog.Int("sets", len(plan)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			result = nil
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed after generation error",
					slog.Any("error", txErr), slog.Any("rollback_error", rbErr))
			}
		} else {
			if cErr := tx.Commit(); cErr != nil {
				result = nil
				txErr = fmt.Errorf("failed to commit bracket generation: %w", cErr)
			}
		}
	}()

	// The row lock serializes concurrent generation attempts on one phase;
	// the set count under that lock is the duplicate-execution guard, with
	// the (phase, round, order) unique index as the storage-level backstop.
	phase, err := s.phaseRepo.GetByIDForUpdate(ctx, tx, phaseID)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to lock phase %d: %w", phaseID, err)
	}
	if phase.Status == models.PhaseStatusCompleted {
		return nil, ErrPhaseCompleted
	}

	existing, err := s.setRepo.CountByPhase(ctx, tx, phaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sets for phase %d: %w", phaseID, err)
	}
	if existing > 0 {
		return nil, ErrBracketAlreadyGenerated
	}

	n := len(seeding.Entries)
	phase.BracketType = &bracketType
	seedingType := seeding.Type
	phase.SeedingType = &seedingType
	phase.NumberOfRounds = brackets.NumRounds(n)
	phase.TotalParticipants = n
	phase.Status = models.PhaseStatusCreated
	phase.Participants = participantSnapshot(seeding.Entries, brackets.NumByes(n))

	created := make([]models.Set, 0, len(plan))
	byeSets := make([]*models.Set, 0, brackets.NumByes(n))
	for _, planned := range plan {
		set := &models.Set{
			PhaseID:       phase.ID,
			EventID:       phase.EventID,
			RoundNumber:   planned.Round,
			OrderInRound:  planned.OrderInRound,
			FullRoundText: planned.FullRoundText,
			Slot1: models.Slot{
				EntrantID:  planned.Slot1.EntrantID,
				SeedNumber: planned.Slot1.SeedNumber,
				IsBye:      planned.Slot1.IsBye,
			},
			Slot2: models.Slot{
				EntrantID:  planned.Slot2.EntrantID,
				SeedNumber: planned.Slot2.SeedNumber,
				IsBye:      planned.Slot2.IsBye,
			},
			State: models.SetStatePending,
		}
		// Bye sets never get played: born completed, winner already known.
		if planned.AutoWinnerEntrantID != nil {
			winnerID := *planned.AutoWinnerEntrantID
			set.State = models.SetStateCompleted
			set.IsComplete = true
			set.WinnerEntrantID = &winnerID
		}

		if createErr := s.setRepo.Create(ctx, tx, set); createErr != nil {
			if errors.Is(createErr, repositories.ErrSetPositionConflict) {
				return nil, ErrBracketAlreadyGenerated
			}
			return nil, fmt.Errorf("failed to persist set R%dM%d: %w", set.RoundNumber, set.OrderInRound, createErr)
		}
		created = append(created, *set)
		if set.IsComplete {
			byeSets = append(byeSets, set)
		}
	}

	// Bye auto-resolutions propagate into round 2 within this transaction,
	// the generated bracket is never visible half-advanced.
	for _, set := range byeSets {
		target, advErr := s.progression.advance(ctx, tx, phase, set)
		if advErr != nil {
			return nil, fmt.Errorf("failed to advance bye winner of set %d: %w", set.ID, advErr)
		}
		if target != nil {
			for i := range created {
				if created[i].ID == target.ID {
					created[i] = *target
				}
			}
		}
	}

	if metaErr := s.phaseRepo.UpdateBracketMetadata(ctx, tx, phase); metaErr != nil {
		return nil, fmt.Errorf("failed to update phase %d metadata: %w", phaseID, metaErr)
	}

	phase.Sets = created
	phase.Seeding = seeding
	return phase, nil
}

// participantSnapshot freezes the entrant list as the bracket saw it. The
// top numByes seeds carry the bye marker.
func participantSnapshot(entries []models.SeedEntry, numByes int) []models.PhaseParticipant {
	snapshot := make([]models.PhaseParticipant, len(entries))
	for i, e := range entries {
		snapshot[i] = models.PhaseParticipant{
			DisplayName: e.DisplayName,
			Seed:        e.SeedNumber,
			IsBye:       e.SeedNumber <= numByes,
		}
	}
	return snapshot
}
