package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/lib/pq"
)

var (
	ErrSeedingNotFound     = errors.New("seeding not found")
	ErrSeedingPhaseInvalid = errors.New("seeding phase conflict or invalid")
	ErrSeedingConflict     = errors.New("seeding already exists for this phase")
)

type SeedingRepository interface {
	Create(ctx context.Context, exec SQLExecutor, seeding *models.Seeding) error
	GetByPhase(ctx context.Context, eventID, phaseID int) (*models.Seeding, error)
	UpdateEntries(ctx context.Context, exec SQLExecutor, id int, entries []models.SeedEntry) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.SeedingStatus) error
}

type postgresSeedingRepository struct {
	db *sql.DB
}

func NewPostgresSeedingRepository(db *sql.DB) SeedingRepository {
	return &postgresSeedingRepository{db: db}
}

// exec falls back to the pool when the caller has no transaction.
func (r *postgresSeedingRepository) exec(e SQLExecutor) SQLExecutor {
	if e != nil {
		return e
	}
	return r.db
}

func (r *postgresSeedingRepository) Create(ctx context.Context, exec SQLExecutor, seeding *models.Seeding) error {
	entriesJSON, err := json.Marshal(seeding.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode seed entries: %w", err)
	}

	query := `
		INSERT INTO seedings (event_id, phase_id, type, status, entries)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err = r.exec(exec).QueryRowContext(ctx, query,
		seeding.EventID,
		seeding.PhaseID,
		seeding.Type,
		seeding.Status,
		entriesJSON,
	).Scan(&seeding.ID, &seeding.CreatedAt, &seeding.UpdatedAt)

	return r.handleSeedingError(err)
}

func (r *postgresSeedingRepository) GetByPhase(ctx context.Context, eventID, phaseID int) (*models.Seeding, error) {
	query := `
		SELECT id, event_id, phase_id, type, status, entries, created_at, updated_at
		FROM seedings
		WHERE event_id = $1 AND phase_id = $2`

	seeding := &models.Seeding{}
	var entriesJSON []byte

	err := r.db.QueryRowContext(ctx, query, eventID, phaseID).Scan(
		&seeding.ID,
		&seeding.EventID,
		&seeding.PhaseID,
		&seeding.Type,
		&seeding.Status,
		&entriesJSON,
		&seeding.CreatedAt,
		&seeding.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeedingNotFound
		}
		return nil, fmt.Errorf("failed to scan seeding for phase %d: %w", phaseID, err)
	}

	if len(entriesJSON) > 0 {
		if err := json.Unmarshal(entriesJSON, &seeding.Entries); err != nil {
			return nil, fmt.Errorf("failed to decode seed entries for seeding %d: %w", seeding.ID, err)
		}
	}
	return seeding, nil
}

func (r *postgresSeedingRepository) UpdateEntries(ctx context.Context, exec SQLExecutor, id int, entries []models.SeedEntry) error {
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode seed entries: %w", err)
	}

	// Гард status = 'draft' дублирует проверку сервиса на случай гонки.
	query := `
		UPDATE seedings
		SET entries = $1, updated_at = now()
		WHERE id = $2 AND status = 'draft'`

	result, err := r.exec(exec).ExecContext(ctx, query, entriesJSON, id)
	if err != nil {
		return r.handleSeedingError(err)
	}
	return checkAffectedRows(result, ErrSeedingNotFound)
}

func (r *postgresSeedingRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.SeedingStatus) error {
	query := `UPDATE seedings SET status = $1, updated_at = now() WHERE id = $2`

	result, err := r.exec(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleSeedingError(err)
	}
	return checkAffectedRows(result, ErrSeedingNotFound)
}

func (r *postgresSeedingRepository) handleSeedingError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "seedings_phase_id_fkey":
			return ErrSeedingPhaseInvalid
		case "seedings_event_phase_key":
			return ErrSeedingConflict
		}
	}
	return err
}
