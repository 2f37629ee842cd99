package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
	"github.com/Dosada05/bracket-engine/storage"
)

// generationLeaseTTL caps how long a crashed generator can hold the lease
// before another coordinator may take over.
const generationLeaseTTL = 30 * time.Second

// PhaseService is the entry point the transport layer talks to. It stitches
// seeding, generation and the set state machine together, hands out realtime
// notifications and archives the bracket when a phase completes.
type PhaseService interface {
	// GenerateBracket runs bracket generation under a per-phase lease so
	// two coordinators never generate the same phase at once.
	GenerateBracket(ctx context.Context, eventID, phaseID int, bracketType models.BracketType) (*models.Phase, error)
	// ReportSetResult records a score report and fans the change out to
	// phase subscribers; on phase completion the bracket is archived.
	ReportSetResult(ctx context.Context, setID int, input ReportResultInput) (*ReportOutcome, error)
	MarkSetCalled(ctx context.Context, setID int) (*models.Set, error)
	MarkSetInProgress(ctx context.Context, setID int) (*models.Set, error)
	ResetSet(ctx context.Context, setID int, cascade bool) (*ResetOutcome, error)
	// GetFullPhase returns the phase with its seeding and set tree loaded.
	GetFullPhase(ctx context.Context, eventID, phaseID int) (*models.Phase, error)
}

type phaseService struct {
	phaseRepo   repositories.PhaseRepository
	seedingRepo repositories.SeedingRepository
	setRepo     repositories.SetRepository
	leaseRepo   repositories.LeaseRepository
	brackets    BracketService
	sets        SetService
	hub         *brackets.Hub
	snapshots   storage.SnapshotStore
	logger      *slog.Logger
}

// NewPhaseService wires the coordinator. hub and snapshots may be nil when
// realtime updates or archival are disabled.
func NewPhaseService(
	phaseRepo repositories.PhaseRepository,
	seedingRepo repositories.SeedingRepository,
	setRepo repositories.SetRepository,
	leaseRepo repositories.LeaseRepository,
	bracketService BracketService,
	setService SetService,
	hub *brackets.Hub,
	snapshots storage.SnapshotStore,
	logger *slog.Logger,
) PhaseService {
	return &phaseService{
		phaseRepo:   phaseRepo,
		seedingRepo: seedingRepo,
		setRepo:     setRepo,
		leaseRepo:   leaseRepo,
		brackets:    bracketService,
		sets:        setService,
		hub:         hub,
		snapshots:   snapshots,
		logger:      logger,
	}
}

// PhaseRoom is the websocket room carrying all updates for one phase.
func PhaseRoom(phaseID int) string {
	return fmt.Sprintf("phase_%d", phaseID)
}

func generationLeaseKey(phaseID int) string {
	return fmt.Sprintf("bracket:generate:%d", phaseID)
}

func (s *phaseService) GenerateBracket(ctx context.Context, eventID, phaseID int, bracketType models.BracketType) (*models.Phase, error) {
	token, err := s.leaseRepo.Acquire(ctx, generationLeaseKey(phaseID), generationLeaseTTL)
	if err != nil {
		if errors.Is(err, repositories.ErrLeaseHeld) {
			return nil, ErrGenerationInFlight
		}
		return nil, fmt.Errorf("failed to acquire generation lease for phase %d: %w", phaseID, err)
	}
	defer func() {
		// A failed release is fine, the lease expires on its own TTL.
		if relErr := s.leaseRepo.Release(context.WithoutCancel(ctx), generationLeaseKey(phaseID), token); relErr != nil {
			s.logger.Warn("failed to release generation lease",
				slog.Int("phase_id", phaseID), slog.Any("error", relErr))
		}
	}()

	phase, err := s.brackets.Generate(ctx, eventID, phaseID, bracketType)
	if err != nil {
		return nil, err
	}

	s.broadcast(phaseID, brackets.EventBracketGenerated, phase)
	return phase, nil
}

func (s *phaseService) ReportSetResult(ctx context.Context, setID int, input ReportResultInput) (*ReportOutcome, error) {
	out, err := s.sets.ReportResult(ctx, setID, input)
	if err != nil {
		return nil, err
	}

	s.broadcast(out.Phase.ID, brackets.EventSetUpdated, out.Set)
	if out.Advanced != nil {
		s.broadcast(out.Phase.ID, brackets.EventSetUpdated, out.Advanced)
	}
	if out.PhaseCompleted {
		s.broadcast(out.Phase.ID, brackets.EventPhaseCompleted, out.Phase)
		s.archive(ctx, out.Phase)
	}
	return out, nil
}

func (s *phaseService) MarkSetCalled(ctx context.Context, setID int) (*models.Set, error) {
	set, err := s.sets.MarkCalled(ctx, setID)
	if err != nil {
		return nil, err
	}
	s.broadcast(set.PhaseID, brackets.EventSetUpdated, set)
	return set, nil
}

func (s *phaseService) MarkSetInProgress(ctx context.Context, setID int) (*models.Set, error) {
	set, err := s.sets.MarkInProgress(ctx, setID)
	if err != nil {
		return nil, err
	}
	s.broadcast(set.PhaseID, brackets.EventSetUpdated, set)
	return set, nil
}

func (s *phaseService) ResetSet(ctx context.Context, setID int, cascade bool) (*ResetOutcome, error) {
	out, err := s.sets.Reset(ctx, setID, cascade)
	if err != nil {
		return nil, err
	}
	for _, set := range out.Sets {
		s.broadcast(out.Phase.ID, brackets.EventSetUpdated, set)
	}
	return out, nil
}

func (s *phaseService) GetFullPhase(ctx context.Context, eventID, phaseID int) (*models.Phase, error) {
	phase, err := s.phaseRepo.GetByEventAndID(ctx, eventID, phaseID)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to load phase %d: %w", phaseID, err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		seeding, err := s.seedingRepo.GetByPhase(gCtx, eventID, phaseID)
		if err != nil {
			// A phase with no seeding yet is a normal state.
			if errors.Is(err, repositories.ErrSeedingNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load seeding for phase %d: %w", phaseID, err)
		}
		phase.Seeding = seeding
		return nil
	})

	g.Go(func() error {
		sets, err := s.setRepo.ListByPhase(gCtx, phaseID)
		if err != nil {
			return fmt.Errorf("failed to load sets for phase %d: %w", phaseID, err)
		}
		phase.Sets = make([]models.Set, 0, len(sets))
		for _, set := range sets {
			phase.Sets = append(phase.Sets, *set)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return phase, nil
}

func (s *phaseService) broadcast(phaseID int, eventType string, payload interface{}) {
	if s.hub == nil {
		return
	}
	room := PhaseRoom(phaseID)
	s.hub.BroadcastToRoom(room, brackets.UpdateMessage{
		Type:    eventType,
		Payload: payload,
		RoomID:  room,
	})
}

// archive stores the completed bracket out of band. The report already
// committed, a storage hiccup is logged rather than surfaced.
func (s *phaseService) archive(ctx context.Context, phase *models.Phase) {
	if s.snapshots == nil {
		return
	}

	full, err := s.GetFullPhase(ctx, phase.EventID, phase.ID)
	if err != nil {
		s.logger.Error("failed to assemble snapshot for completed phase",
			slog.Int("phase_id", phase.ID), slog.Any("error", err))
		return
	}

	sets := make([]*models.Set, 0, len(full.Sets))
	for i := range full.Sets {
		sets = append(sets, &full.Sets[i])
	}
	result, err := s.snapshots.Archive(ctx, &storage.BracketSnapshot{
		Phase:      full,
		Seeding:    full.Seeding,
		Sets:       sets,
		ArchivedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to archive completed phase",
			slog.Int("phase_id", phase.ID), slog.Any("error", err))
		return
	}

	s.logger.Info("phase snapshot archived",
		slog.Int("phase_id", phase.ID),
		slog.String("key", result.Key),
		slog.String("location", result.Location))
}
