package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/bracket-engine/integration"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

// maxVersionRetries bounds the optimistic-concurrency retry loop; past it
// the caller gets ErrConcurrentUpdate and decides whether to try again.
const maxVersionRetries = 3

// ReportResultInput carries one score report. WinnerSlot designates the
// winner explicitly: scores alone never decide the outcome.
type ReportResultInput struct {
	Slot1Score int `json:"slot1_score"`
	Slot2Score int `json:"slot2_score"`
	WinnerSlot int `json:"winner_slot"`
}

// ReportOutcome is everything a report changed: the completed set, the
// next-round set the winner advanced into (nil after the final), and the
// phase whose status may have moved.
type ReportOutcome struct {
	Set            *models.Set
	Advanced       *models.Set
	Phase          *models.Phase
	PhaseCompleted bool
}

// ResetOutcome lists every set a reset touched, the reset set first,
// downstream sets in feed order after it.
type ResetOutcome struct {
	Sets  []*models.Set
	Phase *models.Phase
}

type SetService interface {
	GetSet(ctx context.Context, setID int) (*models.Set, error)
	// MarkCalled moves a pending set to called (entrants summoned to the
	// station). Any other starting state is rejected.
	MarkCalled(ctx context.Context, setID int) (*models.Set, error)
	// MarkInProgress moves a pending or called set to in_progress. Both
	// intermediate states are optional: ReportResult accepts a set that
	// skipped them.
	MarkInProgress(ctx context.Context, setID int) (*models.Set, error)
	// ReportResult records scores and a winner, completes the set and
	// propagates the winner into the next round in one transaction.
	ReportResult(ctx context.Context, setID int, input ReportResultInput) (*ReportOutcome, error)
	// Reset returns a non-pending set to pending and clears its result.
	// With cascade it also vacates every downstream slot the old winner
	// reached, transitively, so no stale result survives the correction.
	Reset(ctx context.Context, setID int, cascade bool) (*ResetOutcome, error)
}

type setService struct {
	db          *sql.DB
	phaseRepo   repositories.PhaseRepository
	setRepo     repositories.SetRepository
	progression *progressionEngine
	reporter    integration.ScoreReporter
	logger      *slog.Logger
}

// NewSetService wires the set state machine. reporter may be nil, in which
// case external mirroring is disabled.
func NewSetService(
	db *sql.DB,
	phaseRepo repositories.PhaseRepository,
	setRepo repositories.SetRepository,
	reporter integration.ScoreReporter,
	logger *slog.Logger,
) SetService {
	return &setService{
		db:          db,
		phaseRepo:   phaseRepo,
		setRepo:     setRepo,
		progression: newProgressionEngine(phaseRepo, setRepo),
		reporter:    reporter,
		logger:      logger,
	}
}

func (s *setService) GetSet(ctx context.Context, setID int) (*models.Set, error) {
	set, err := s.setRepo.GetByID(ctx, setID)
	if err != nil {
		if errors.Is(err, repositories.ErrSetNotFound) {
			return nil, ErrSetNotFound
		}
		return nil, fmt.Errorf("failed to load set %d: %w", setID, err)
	}
	return set, nil
}

func (s *setService) MarkCalled(ctx context.Context, setID int) (*models.Set, error) {
	return s.markState(ctx, setID, models.SetStateCalled)
}

func (s *setService) MarkInProgress(ctx context.Context, setID int) (*models.Set, error) {
	return s.markState(ctx, setID, models.SetStateInProgress)
}

// markState is the shared body of the two pre-completion transitions. The
// external mirror runs before the local write: if the platform rejects the
// transition, nothing changes locally. A version conflict re-reads and
// re-validates, so a set completed by a concurrent report is rejected
// rather than stomped.
func (s *setService) markState(ctx context.Context, setID int, next models.SetState) (*models.Set, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		set, err := s.GetSet(ctx, setID)
		if err != nil {
			return nil, err
		}
		if err := validateMarkTransition(set, next); err != nil {
			return nil, err
		}

		if err := s.mirrorMark(ctx, set, next); err != nil {
			return nil, err
		}

		set.State = next
		err = s.setRepo.Update(ctx, nil, set)
		if errors.Is(err, repositories.ErrSetVersionConflict) {
			continue
		}
		if err != nil {
			if errors.Is(err, repositories.ErrSetNotFound) {
				return nil, ErrSetNotFound
			}
			return nil, fmt.Errorf("failed to mark set %d %s: %w", setID, next, err)
		}
		return set, nil
	}
	return nil, ErrConcurrentUpdate
}

func validateMarkTransition(set *models.Set, next models.SetState) error {
	if set.State == models.SetStateCompleted {
		return ErrSetAlreadyComplete
	}
	switch next {
	case models.SetStateCalled:
		if set.State != models.SetStatePending {
			return ErrSetNotPending
		}
	case models.SetStateInProgress:
		if set.State != models.SetStatePending && set.State != models.SetStateCalled {
			return ErrSetNotStartable
		}
	default:
		return fmt.Errorf("%w: cannot mark a set %s", ErrInvalidTransition, next)
	}
	return nil
}

func (s *setService) mirrorMark(ctx context.Context, set *models.Set, next models.SetState) error {
	if s.reporter == nil || set.ExternalID == nil {
		return nil
	}
	var err error
	switch next {
	case models.SetStateCalled:
		_, err = s.reporter.MarkCalled(ctx, *set.ExternalID)
	case models.SetStateInProgress:
		_, err = s.reporter.MarkInProgress(ctx, *set.ExternalID)
	}
	if err != nil {
		return fmt.Errorf("external mirror rejected set %d transition to %s: %w", set.ID, next, err)
	}
	return nil
}

func (s *setService) ReportResult(ctx context.Context, setID int, input ReportResultInput) (*ReportOutcome, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		out, err := s.reportOnce(ctx, setID, input)
		if errors.Is(err, repositories.ErrSetVersionConflict) {
			s.logger.Warn("set report hit a version conflict, retrying",
				slog.Int("set_id", setID), slog.Int("attempt", attempt+1))
			continue
		}
		return out, err
	}
	return nil, ErrConcurrentUpdate
}

func (s *setService) reportOnce(ctx context.Context, setID int, input ReportResultInput) (out *ReportOutcome, txErr error) {
	set, err := s.GetSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	if set.State == models.SetStateCompleted {
		return nil, ErrSetAlreadyComplete
	}
	if err := validateReportedResult(set, input.Slot1Score, input.Slot2Score, input.WinnerSlot); err != nil {
		return nil, err
	}

	winnerID := *set.SlotByNumber(input.WinnerSlot).EntrantID
	loserID := *set.SlotByNumber(3 - input.WinnerSlot).EntrantID

	// Mirror first: a remote failure must leave local state untouched,
	// the reverse gap is repaired by simply reporting again.
	if s.reporter != nil && set.ExternalID != nil {
		games := integration.GamesFromScores(*set.Slot1.EntrantID, *set.Slot2.EntrantID,
			input.Slot1Score, input.Slot2Score)
		if _, err := s.reporter.ReportResult(ctx, *set.ExternalID, winnerID, games); err != nil {
			return nil, fmt.Errorf("external mirror rejected result for set %d: %w", set.ID, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			out = nil
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed after report error",
					slog.Any("error", txErr), slog.Any("rollback_error", rbErr))
			}
		} else {
			if cErr := tx.Commit(); cErr != nil {
				out = nil
				txErr = fmt.Errorf("failed to commit set report: %w", cErr)
			}
		}
	}()

	// Lock order is always phase, then set, same as generation.
	phase, err := s.phaseRepo.GetByIDForUpdate(ctx, tx, set.PhaseID)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to lock phase %d: %w", set.PhaseID, err)
	}
	if phase.Status == models.PhaseStatusCompleted {
		return nil, ErrPhaseCompleted
	}

	cur, err := s.setRepo.GetForUpdate(ctx, tx, setID)
	if err != nil {
		if errors.Is(err, repositories.ErrSetNotFound) {
			return nil, ErrSetNotFound
		}
		return nil, fmt.Errorf("failed to lock set %d: %w", setID, err)
	}
	// Someone slipped in between validation and the lock; redo the whole
	// attempt against the fresh row.
	if cur.Version != set.Version {
		return nil, repositories.ErrSetVersionConflict
	}

	// First result for the phase moves it into play.
	if phase.Status == models.PhaseStatusCreated {
		now := time.Now().UTC()
		if err := s.phaseRepo.UpdateStatus(ctx, tx, phase.ID, models.PhaseStatusInProgress, &now, nil); err != nil {
			return nil, fmt.Errorf("failed to start phase %d: %w", phase.ID, err)
		}
		phase.Status = models.PhaseStatusInProgress
		phase.StartedAt = &now
	}

	cur.Slot1.Score = &input.Slot1Score
	cur.Slot2.Score = &input.Slot2Score
	cur.WinnerEntrantID = &winnerID
	cur.LoserEntrantID = &loserID
	cur.IsComplete = true
	cur.State = models.SetStateCompleted

	if err := s.setRepo.Update(ctx, tx, cur); err != nil {
		return nil, err
	}

	advanced, err := s.progression.advance(ctx, tx, phase, cur)
	if err != nil {
		return nil, err
	}

	s.logger.Info("set result recorded",
		slog.Int("set_id", cur.ID),
		slog.Int("phase_id", phase.ID),
		slog.Int("winner_entrant_id", winnerID),
		slog.Bool("phase_completed", phase.Status == models.PhaseStatusCompleted))

	return &ReportOutcome{
		Set:            cur,
		Advanced:       advanced,
		Phase:          phase,
		PhaseCompleted: phase.Status == models.PhaseStatusCompleted,
	}, nil
}

func (s *setService) Reset(ctx context.Context, setID int, cascade bool) (out *ResetOutcome, txErr error) {
	set, err := s.GetSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	if set.IsByeSet() {
		return nil, ErrByeSetImmutable
	}
	if set.State == models.SetStatePending && !set.IsComplete {
		return nil, ErrSetNotResettable
	}

	if s.reporter != nil && set.ExternalID != nil {
		if _, err := s.reporter.ResetResult(ctx, *set.ExternalID, cascade); err != nil {
			return nil, fmt.Errorf("external mirror rejected reset of set %d: %w", set.ID, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			out = nil
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed after reset error",
					slog.Any("error", txErr), slog.Any("rollback_error", rbErr))
			}
		} else {
			if cErr := tx.Commit(); cErr != nil {
				out = nil
				txErr = fmt.Errorf("failed to commit set reset: %w", cErr)
			}
		}
	}()

	phase, err := s.phaseRepo.GetByIDForUpdate(ctx, tx, set.PhaseID)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to lock phase %d: %w", set.PhaseID, err)
	}
	if phase.Status == models.PhaseStatusCompleted {
		return nil, ErrPhaseCompleted
	}

	cur, err := s.setRepo.GetForUpdate(ctx, tx, setID)
	if err != nil {
		if errors.Is(err, repositories.ErrSetNotFound) {
			return nil, ErrSetNotFound
		}
		return nil, fmt.Errorf("failed to lock set %d: %w", setID, err)
	}
	if cur.State == models.SetStatePending && !cur.IsComplete {
		return nil, ErrSetNotResettable
	}

	var prevWinner *int
	if cur.WinnerEntrantID != nil {
		w := *cur.WinnerEntrantID
		prevWinner = &w
	}

	clearSetResult(cur)
	if err := s.setRepo.Update(ctx, tx, cur); err != nil {
		return nil, fmt.Errorf("failed to reset set %d: %w", setID, err)
	}

	touched := []*models.Set{cur}
	if cascade && prevWinner != nil && cur.RoundNumber < phase.NumberOfRounds {
		downstream, err := s.resetDownstream(ctx, tx, phase, cur, *prevWinner)
		if err != nil {
			return nil, err
		}
		touched = append(touched, downstream...)
	}

	s.logger.Info("set reset",
		slog.Int("set_id", setID),
		slog.Int("phase_id", phase.ID),
		slog.Bool("cascade", cascade),
		slog.Int("sets_touched", len(touched)))

	return &ResetOutcome{Sets: touched, Phase: phase}, nil
}

// resetDownstream vacates the slot the old winner occupied in the next
// round and, if that set had already been decided, clears its result and
// recurses with its winner. Depth-first so the deepest result is wiped
// before its feeder slot is vacated.
func (s *setService) resetDownstream(ctx context.Context, exec repositories.SQLExecutor, phase *models.Phase, from *models.Set, winnerID int) ([]*models.Set, error) {
	targetOrder, targetSlot := nextPosition(from.OrderInRound)
	target, err := s.setRepo.GetByPosition(ctx, exec, phase.ID, from.RoundNumber+1, targetOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to load downstream set at round %d order %d: %w",
			from.RoundNumber+1, targetOrder, err)
	}

	slot := target.SlotByNumber(targetSlot)
	if !slot.Populated() || *slot.EntrantID != winnerID {
		return nil, nil
	}

	var deeper []*models.Set
	if target.IsComplete && target.WinnerEntrantID != nil && target.RoundNumber < phase.NumberOfRounds {
		deeper, err = s.resetDownstream(ctx, exec, phase, target, *target.WinnerEntrantID)
		if err != nil {
			return nil, err
		}
	}

	slot.EntrantID = nil
	slot.Score = nil
	slot.SeedNumber = nil
	clearSetResult(target)

	if err := s.setRepo.Update(ctx, exec, target); err != nil {
		return nil, fmt.Errorf("failed to reset downstream set %d: %w", target.ID, err)
	}
	return append([]*models.Set{target}, deeper...), nil
}

func clearSetResult(set *models.Set) {
	set.Slot1.Score = nil
	set.Slot2.Score = nil
	set.WinnerEntrantID = nil
	set.LoserEntrantID = nil
	set.IsComplete = false
	set.State = models.SetStatePending
}
