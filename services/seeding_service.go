package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

type SeedingService interface {
	// CreateSeeding builds a draft seed list from the event's current
	// roster. Random seedings are shuffled uniformly and renumbered 1..N;
	// the shuffle itself is not persisted.
	CreateSeeding(ctx context.Context, eventID, phaseID int, seedingType models.SeedingType) (*models.Seeding, error)
	// UpdateSeeding replaces the seed list wholesale while the seeding is
	// still a draft. The new list must be a permutation of 1..N.
	UpdateSeeding(ctx context.Context, eventID, phaseID int, entries []models.SeedEntry) (*models.Seeding, error)
	// FinalizeSeeding is the one-way draft -> final transition. Finalizing
	// an already final seeding is a no-op.
	FinalizeSeeding(ctx context.Context, eventID, phaseID int) (*models.Seeding, error)
	GetSeeding(ctx context.Context, eventID, phaseID int) (*models.Seeding, error)
}

type seedingService struct {
	phaseRepo   repositories.PhaseRepository
	seedingRepo repositories.SeedingRepository
	entrantRepo repositories.EntrantRepository
}

func NewSeedingService(
	phaseRepo repositories.PhaseRepository,
	seedingRepo repositories.SeedingRepository,
	entrantRepo repositories.EntrantRepository,
) SeedingService {
	return &seedingService{
		phaseRepo:   phaseRepo,
		seedingRepo: seedingRepo,
		entrantRepo: entrantRepo,
	}
}

func (s *seedingService) CreateSeeding(ctx context.Context, eventID, phaseID int, seedingType models.SeedingType) (*models.Seeding, error) {
	if err := validateSeedingType(seedingType); err != nil {
		return nil, err
	}

	if _, err := s.phaseRepo.GetByEventAndID(ctx, eventID, phaseID); err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to load phase %d: %w", phaseID, err)
	}

	roster, err := s.entrantRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entrants for event %d: %w", eventID, err)
	}
	// The roster is the engine's only view of the event; an empty roster is
	// indistinguishable from an absent event and is treated as one.
	if len(roster) == 0 {
		return nil, ErrEventNotFound
	}

	entries := make([]models.SeedEntry, len(roster))
	for i, e := range roster {
		entries[i] = models.SeedEntry{
			ParticipantID: e.ID,
			SeedNumber:    i + 1,
			DisplayName:   e.DisplayName,
		}
	}
	if seedingType == models.SeedingTypeRandom {
		rand.Shuffle(len(entries), func(i, j int) {
			entries[i], entries[j] = entries[j], entries[i]
		})
		for i := range entries {
			entries[i].SeedNumber = i + 1
		}
	}

	seeding := &models.Seeding{
		EventID: eventID,
		PhaseID: phaseID,
		Type:    seedingType,
		Status:  models.SeedingStatusDraft,
		Entries: entries,
	}
	if err := s.seedingRepo.Create(ctx, nil, seeding); err != nil {
		if errors.Is(err, repositories.ErrSeedingConflict) {
			return nil, fmt.Errorf("%w: seeding already exists for phase %d", ErrConflict, phaseID)
		}
		return nil, fmt.Errorf("failed to create seeding for phase %d: %w", phaseID, err)
	}
	return seeding, nil
}

func (s *seedingService) UpdateSeeding(ctx context.Context, eventID, phaseID int, entries []models.SeedEntry) (*models.Seeding, error) {
	seeding, err := s.getSeeding(ctx, eventID, phaseID)
	if err != nil {
		return nil, err
	}
	if seeding.Status == models.SeedingStatusFinal {
		return nil, ErrSeedingFinalized
	}

	if err := validateSeedEntries(entries); err != nil {
		return nil, err
	}
	seenParticipants := make(map[int]bool, len(entries))
	for _, e := range entries {
		if seenParticipants[e.ParticipantID] {
			return nil, fmt.Errorf("%w: duplicate participant %d", ErrSeedListInvalid, e.ParticipantID)
		}
		seenParticipants[e.ParticipantID] = true
	}

	if err := s.seedingRepo.UpdateEntries(ctx, nil, seeding.ID, entries); err != nil {
		if errors.Is(err, repositories.ErrSeedingNotFound) {
			// The draft guard in the repository lost a race with finalize.
			return nil, ErrSeedingFinalized
		}
		return nil, fmt.Errorf("failed to update seeding %d: %w", seeding.ID, err)
	}
	seeding.Entries = entries
	return seeding, nil
}

func (s *seedingService) FinalizeSeeding(ctx context.Context, eventID, phaseID int) (*models.Seeding, error) {
	seeding, err := s.getSeeding(ctx, eventID, phaseID)
	if err != nil {
		return nil, err
	}
	if seeding.Status == models.SeedingStatusFinal {
		return seeding, nil
	}

	if err := validateSeedEntries(seeding.Entries); err != nil {
		return nil, err
	}

	if err := s.seedingRepo.UpdateStatus(ctx, nil, seeding.ID, models.SeedingStatusFinal); err != nil {
		return nil, fmt.Errorf("failed to finalize seeding %d: %w", seeding.ID, err)
	}
	seeding.Status = models.SeedingStatusFinal
	return seeding, nil
}

func (s *seedingService) GetSeeding(ctx context.Context, eventID, phaseID int) (*models.Seeding, error) {
	seeding, err := s.getSeeding(ctx, eventID, phaseID)
	if err != nil {
		return nil, err
	}

	// Refresh display names from the roster; the stored entry keeps the
	// name captured at creation in case the entrant was since removed.
	roster, err := s.entrantRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entrants for event %d: %w", eventID, err)
	}
	names := make(map[int]string, len(roster))
	for _, e := range roster {
		names[e.ID] = e.DisplayName
	}
	for i := range seeding.Entries {
		if name, ok := names[seeding.Entries[i].ParticipantID]; ok {
			seeding.Entries[i].DisplayName = name
		}
	}
	return seeding, nil
}

func (s *seedingService) getSeeding(ctx context.Context, eventID, phaseID int) (*models.Seeding, error) {
	seeding, err := s.seedingRepo.GetByPhase(ctx, eventID, phaseID)
	if err != nil {
		if errors.Is(err, repositories.ErrSeedingNotFound) {
			return nil, ErrSeedingNotFound
		}
		return nil, fmt.Errorf("failed to load seeding for phase %d: %w", phaseID, err)
	}
	return seeding, nil
}
