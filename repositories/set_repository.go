package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/lib/pq"
)

var (
	ErrSetNotFound         = errors.New("set not found")
	ErrSetPhaseInvalid     = errors.New("set phase conflict or invalid")
	ErrSetPositionConflict = errors.New("set position already occupied in bracket")
	ErrSetVersionConflict  = errors.New("set was modified concurrently")
)

type SetRepository interface {
	Create(ctx context.Context, exec SQLExecutor, set *models.Set) error
	GetByID(ctx context.Context, id int) (*models.Set, error)
	// GetForUpdate reads the set inside the caller's transaction with a row
	// lock, so report/propagate sequences observe a stable snapshot.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Set, error)
	GetByPosition(ctx context.Context, exec SQLExecutor, phaseID, roundNumber, orderInRound int) (*models.Set, error)
	ListByPhase(ctx context.Context, phaseID int) ([]*models.Set, error)
	CountByPhase(ctx context.Context, exec SQLExecutor, phaseID int) (int, error)
	// Update writes every mutable field guarded by the optimistic version
	// stamp. A concurrent writer makes it fail with ErrSetVersionConflict.
	Update(ctx context.Context, exec SQLExecutor, set *models.Set) error
}

type postgresSetRepository struct {
	db *sql.DB
}

func NewPostgresSetRepository(db *sql.DB) SetRepository {
	return &postgresSetRepository{db: db}
}

// exec falls back to the pool when the caller has no transaction.
func (r *postgresSetRepository) exec(e SQLExecutor) SQLExecutor {
	if e != nil {
		return e
	}
	return r.db
}

const setColumns = `
	id, phase_id, event_id, round_number, order_in_round, full_round_text,
	slot1_entrant_id, slot1_score, slot1_seed, slot1_is_bye,
	slot2_entrant_id, slot2_score, slot2_seed, slot2_is_bye,
	state, is_complete, winner_entrant_id, loser_entrant_id,
	external_id, version, created_at`

func (r *postgresSetRepository) Create(ctx context.Context, exec SQLExecutor, set *models.Set) error {
	query := `
		INSERT INTO sets
			(phase_id, event_id, round_number, order_in_round, full_round_text,
			 slot1_entrant_id, slot1_score, slot1_seed, slot1_is_bye,
			 slot2_entrant_id, slot2_score, slot2_seed, slot2_is_bye,
			 state, is_complete, winner_entrant_id, loser_entrant_id, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, version, created_at`

	err := r.exec(exec).QueryRowContext(ctx, query,
		set.PhaseID,
		set.EventID,
		set.RoundNumber,
		set.OrderInRound,
		set.FullRoundText,
		set.Slot1.EntrantID,
		set.Slot1.Score,
		set.Slot1.SeedNumber,
		set.Slot1.IsBye,
		set.Slot2.EntrantID,
		set.Slot2.Score,
		set.Slot2.SeedNumber,
		set.Slot2.IsBye,
		set.State,
		set.IsComplete,
		set.WinnerEntrantID,
		set.LoserEntrantID,
		set.ExternalID,
	).Scan(&set.ID, &set.Version, &set.CreatedAt)

	return r.handleSetError(err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSet(row rowScanner) (*models.Set, error) {
	set := &models.Set{}
	err := row.Scan(
		&set.ID,
		&set.PhaseID,
		&set.EventID,
		&set.RoundNumber,
		&set.OrderInRound,
		&set.FullRoundText,
		&set.Slot1.EntrantID,
		&set.Slot1.Score,
		&set.Slot1.SeedNumber,
		&set.Slot1.IsBye,
		&set.Slot2.EntrantID,
		&set.Slot2.Score,
		&set.Slot2.SeedNumber,
		&set.Slot2.IsBye,
		&set.State,
		&set.IsComplete,
		&set.WinnerEntrantID,
		&set.LoserEntrantID,
		&set.ExternalID,
		&set.Version,
		&set.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSetNotFound
		}
		return nil, fmt.Errorf("failed to scan set: %w", err)
	}
	return set, nil
}

func (r *postgresSetRepository) GetByID(ctx context.Context, id int) (*models.Set, error) {
	query := `SELECT` + setColumns + ` FROM sets WHERE id = $1`
	return scanSet(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresSetRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Set, error) {
	query := `SELECT` + setColumns + ` FROM sets WHERE id = $1 FOR UPDATE`
	return scanSet(r.exec(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresSetRepository) GetByPosition(ctx context.Context, exec SQLExecutor, phaseID, roundNumber, orderInRound int) (*models.Set, error) {
	query := `SELECT` + setColumns + ` FROM sets
		WHERE phase_id = $1 AND round_number = $2 AND order_in_round = $3
		FOR UPDATE`
	return scanSet(r.exec(exec).QueryRowContext(ctx, query, phaseID, roundNumber, orderInRound))
}

func (r *postgresSetRepository) ListByPhase(ctx context.Context, phaseID int) ([]*models.Set, error) {
	query := `SELECT` + setColumns + ` FROM sets
		WHERE phase_id = $1
		ORDER BY round_number ASC, order_in_round ASC`

	rows, err := r.db.QueryContext(ctx, query, phaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sets for phase %d: %w", phaseID, err)
	}
	defer rows.Close()

	sets := make([]*models.Set, 0)
	for rows.Next() {
		set, scanErr := scanSet(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sets = append(sets, set)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during set rows iteration: %w", err)
	}
	return sets, nil
}

func (r *postgresSetRepository) CountByPhase(ctx context.Context, exec SQLExecutor, phaseID int) (int, error) {
	var count int
	err := r.exec(exec).QueryRowContext(ctx, `SELECT COUNT(*) FROM sets WHERE phase_id = $1`, phaseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sets for phase %d: %w", phaseID, err)
	}
	return count, nil
}

func (r *postgresSetRepository) Update(ctx context.Context, exec SQLExecutor, set *models.Set) error {
	query := `
		UPDATE sets
		SET slot1_entrant_id = $1, slot1_score = $2, slot1_seed = $3,
		    slot2_entrant_id = $4, slot2_score = $5, slot2_seed = $6,
		    state = $7, is_complete = $8, winner_entrant_id = $9,
		    loser_entrant_id = $10, external_id = $11, version = version + 1
		WHERE id = $12 AND version = $13`

	result, err := r.exec(exec).ExecContext(ctx, query,
		set.Slot1.EntrantID,
		set.Slot1.Score,
		set.Slot1.SeedNumber,
		set.Slot2.EntrantID,
		set.Slot2.Score,
		set.Slot2.SeedNumber,
		set.State,
		set.IsComplete,
		set.WinnerEntrantID,
		set.LoserEntrantID,
		set.ExternalID,
		set.ID,
		set.Version,
	)
	if err != nil {
		return r.handleSetError(err)
	}

	// Zero rows means either a stale version or a vanished set; callers
	// re-read to tell the two apart, both end the current attempt.
	if err := checkAffectedRows(result, ErrSetVersionConflict); err != nil {
		return err
	}
	set.Version++
	return nil
}

func (r *postgresSetRepository) handleSetError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "sets_phase_id_fkey":
			return ErrSetPhaseInvalid
		case "sets_phase_round_order_key":
			return ErrSetPositionConflict
		}
	}
	return err
}
