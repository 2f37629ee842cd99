package models

import "time"

type SeedingType string

const (
	SeedingTypeManual SeedingType = "manual"
	SeedingTypeRandom SeedingType = "random"
	SeedingTypeSkill  SeedingType = "skill"
)

// SeedingStatus соответствует ENUM seeding_status в БД.
type SeedingStatus string

const (
	SeedingStatusDraft SeedingStatus = "draft"
	SeedingStatusFinal SeedingStatus = "final"
)

// SeedEntry is one row of the ranked entrant list. Seed numbers within a
// seeding are a permutation of 1..N with no gaps.
type SeedEntry struct {
	ParticipantID int    `json:"participant_id"`
	SeedNumber    int    `json:"seed_number"`
	DisplayName   string `json:"display_name"`
}

type Seeding struct {
	ID        int           `json:"id" db:"id"`
	EventID   int           `json:"event_id" db:"event_id"`
	PhaseID   int           `json:"phase_id" db:"phase_id"`
	Type      SeedingType   `json:"type" db:"type"`
	Status    SeedingStatus `json:"status" db:"status"`
	Entries   []SeedEntry   `json:"entries" db:"-"` // хранится как JSONB
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}
