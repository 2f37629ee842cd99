package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/lib/pq"
)

var (
	ErrPhaseNotFound         = errors.New("phase not found")
	ErrPhaseEventInvalid     = errors.New("phase event conflict or invalid")
	ErrPhaseAlreadyCompleted = errors.New("phase is already completed")
	ErrPhaseParticipantsJSON = errors.New("failed to encode phase participants")
)

type PhaseRepository interface {
	Create(ctx context.Context, exec SQLExecutor, phase *models.Phase) error
	GetByID(ctx context.Context, id int) (*models.Phase, error)
	GetByEventAndID(ctx context.Context, eventID, phaseID int) (*models.Phase, error)
	// GetByIDForUpdate locks the phase row for the lifetime of the
	// surrounding transaction; used to serialize bracket generation.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Phase, error)
	UpdateBracketMetadata(ctx context.Context, exec SQLExecutor, phase *models.Phase) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.PhaseStatus, startedAt, completedAt *time.Time) error
}

type postgresPhaseRepository struct {
	db *sql.DB
}

func NewPostgresPhaseRepository(db *sql.DB) PhaseRepository {
	return &postgresPhaseRepository{db: db}
}

// exec falls back to the pool when the caller has no transaction.
func (r *postgresPhaseRepository) exec(e SQLExecutor) SQLExecutor {
	if e != nil {
		return e
	}
	return r.db
}

const phaseColumns = `
	id, event_id, name, type, bracket_type, seeding_type, number_of_rounds,
	total_participants, status, started_at, completed_at, participants,
	external_id, created_at`

func (r *postgresPhaseRepository) Create(ctx context.Context, exec SQLExecutor, phase *models.Phase) error {
	participantsJSON, err := json.Marshal(phase.Participants)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPhaseParticipantsJSON, err)
	}
	if phase.Participants == nil {
		participantsJSON = []byte("[]")
	}

	query := `
		INSERT INTO phases
			(event_id, name, type, bracket_type, seeding_type, number_of_rounds,
			 total_participants, status, participants, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err = r.exec(exec).QueryRowContext(ctx, query,
		phase.EventID,
		phase.Name,
		phase.Type,
		phase.BracketType,
		phase.SeedingType,
		phase.NumberOfRounds,
		phase.TotalParticipants,
		phase.Status,
		participantsJSON,
		phase.ExternalID,
	).Scan(&phase.ID, &phase.CreatedAt)

	return r.handlePhaseError(err)
}

func (r *postgresPhaseRepository) GetByID(ctx context.Context, id int) (*models.Phase, error) {
	query := `SELECT` + phaseColumns + ` FROM phases WHERE id = $1`
	return r.scanPhase(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresPhaseRepository) GetByEventAndID(ctx context.Context, eventID, phaseID int) (*models.Phase, error) {
	query := `SELECT` + phaseColumns + ` FROM phases WHERE event_id = $1 AND id = $2`
	return r.scanPhase(r.db.QueryRowContext(ctx, query, eventID, phaseID))
}

func (r *postgresPhaseRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Phase, error) {
	query := `SELECT` + phaseColumns + ` FROM phases WHERE id = $1 FOR UPDATE`
	return r.scanPhase(r.exec(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresPhaseRepository) scanPhase(row *sql.Row) (*models.Phase, error) {
	phase := &models.Phase{}
	var participantsJSON []byte

	err := row.Scan(
		&phase.ID,
		&phase.EventID,
		&phase.Name,
		&phase.Type,
		&phase.BracketType,
		&phase.SeedingType,
		&phase.NumberOfRounds,
		&phase.TotalParticipants,
		&phase.Status,
		&phase.StartedAt,
		&phase.CompletedAt,
		&participantsJSON,
		&phase.ExternalID,
		&phase.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to scan phase: %w", err)
	}

	if len(participantsJSON) > 0 {
		if err := json.Unmarshal(participantsJSON, &phase.Participants); err != nil {
			return nil, fmt.Errorf("failed to decode participants for phase %d: %w", phase.ID, err)
		}
	}
	return phase, nil
}

// UpdateBracketMetadata persists the generation-time snapshot: bracket and
// seeding types, topology counts and the participants list.
func (r *postgresPhaseRepository) UpdateBracketMetadata(ctx context.Context, exec SQLExecutor, phase *models.Phase) error {
	participantsJSON, err := json.Marshal(phase.Participants)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPhaseParticipantsJSON, err)
	}

	query := `
		UPDATE phases
		SET bracket_type = $1, seeding_type = $2, number_of_rounds = $3,
		    total_participants = $4, status = $5, participants = $6
		WHERE id = $7`

	result, err := r.exec(exec).ExecContext(ctx, query,
		phase.BracketType,
		phase.SeedingType,
		phase.NumberOfRounds,
		phase.TotalParticipants,
		phase.Status,
		participantsJSON,
		phase.ID,
	)
	if err != nil {
		return r.handlePhaseError(err)
	}
	return checkAffectedRows(result, ErrPhaseNotFound)
}

func (r *postgresPhaseRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.PhaseStatus, startedAt, completedAt *time.Time) error {
	query := `
		UPDATE phases
		SET status = $1,
		    started_at = COALESCE($2, started_at),
		    completed_at = COALESCE($3, completed_at)
		WHERE id = $4 AND status <> 'completed'`

	result, err := r.exec(exec).ExecContext(ctx, query, status, startedAt, completedAt, id)
	if err != nil {
		return r.handlePhaseError(err)
	}
	// Completed phases are immutable; a zero-row update against an existing
	// phase means the caller raced a completion.
	if err := checkAffectedRows(result, ErrPhaseAlreadyCompleted); err != nil {
		if errors.Is(err, ErrPhaseAlreadyCompleted) {
			if _, getErr := r.GetByID(ctx, id); errors.Is(getErr, ErrPhaseNotFound) {
				return ErrPhaseNotFound
			}
		}
		return err
	}
	return nil
}

func (r *postgresPhaseRepository) handlePhaseError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "phases_event_id_fkey":
			return ErrPhaseEventInvalid
		}
	}
	return err
}
