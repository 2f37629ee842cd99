package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-engine/models"
)

var ErrEntrantNotFound = errors.New("entrant not found")

// EntrantRepository reads the event roster owned by the registration
// subsystem. The engine never writes to it.
type EntrantRepository interface {
	ListByEvent(ctx context.Context, eventID int) ([]*models.Entrant, error)
	GetByID(ctx context.Context, id int) (*models.Entrant, error)
}

type postgresEntrantRepository struct {
	db *sql.DB
}

func NewPostgresEntrantRepository(db *sql.DB) EntrantRepository {
	return &postgresEntrantRepository{db: db}
}

func (r *postgresEntrantRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.Entrant, error) {
	query := `
		SELECT id, event_id, display_name, created_at
		FROM entrants
		WHERE event_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entrants for event %d: %w", eventID, err)
	}
	defer rows.Close()

	entrants := make([]*models.Entrant, 0)
	for rows.Next() {
		var e models.Entrant
		if scanErr := rows.Scan(&e.ID, &e.EventID, &e.DisplayName, &e.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan entrant row: %w", scanErr)
		}
		entrants = append(entrants, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during entrant rows iteration: %w", err)
	}
	return entrants, nil
}

func (r *postgresEntrantRepository) GetByID(ctx context.Context, id int) (*models.Entrant, error) {
	query := `SELECT id, event_id, display_name, created_at FROM entrants WHERE id = $1`

	var e models.Entrant
	err := r.db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.EventID, &e.DisplayName, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntrantNotFound
		}
		return nil, fmt.Errorf("failed to scan entrant by id %d: %w", id, err)
	}
	return &e, nil
}
