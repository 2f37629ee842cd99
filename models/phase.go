package models

import "time"

// PhaseStatus соответствует ENUM phase_status в БД.
type PhaseStatus string

const (
	PhaseStatusCreated    PhaseStatus = "created"
	PhaseStatusInProgress PhaseStatus = "in_progress"
	PhaseStatusCompleted  PhaseStatus = "completed"
)

type PhaseType string

const (
	PhaseTypePools   PhaseType = "pools"
	PhaseTypeBracket PhaseType = "bracket"
)

type BracketType string

const (
	BracketSingleElimination BracketType = "single_elimination"
	BracketDoubleElimination BracketType = "double_elimination"
)

// PhaseParticipant is the snapshot of one entrant taken at generation time.
// The snapshot is what the bracket was built from; regenerating a seeding
// later must not silently rewrite it.
type PhaseParticipant struct {
	DisplayName string `json:"display_name"`
	Seed        int    `json:"seed"`
	IsBye       bool   `json:"is_bye"`
}

type Phase struct {
	ID                int                `json:"id" db:"id"`
	EventID           int                `json:"event_id" db:"event_id"`
	Name              string             `json:"name" db:"name"`
	Type              PhaseType          `json:"type" db:"type"`
	BracketType       *BracketType       `json:"bracket_type,omitempty" db:"bracket_type"`
	SeedingType       *SeedingType       `json:"seeding_type,omitempty" db:"seeding_type"`
	NumberOfRounds    int                `json:"number_of_rounds" db:"number_of_rounds"`
	TotalParticipants int                `json:"total_participants" db:"total_participants"`
	Status            PhaseStatus        `json:"status" db:"status"`
	StartedAt         *time.Time         `json:"started_at,omitempty" db:"started_at"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty" db:"completed_at"`
	Participants      []PhaseParticipant `json:"participants,omitempty" db:"-"`
	ExternalID        *string            `json:"external_id,omitempty" db:"external_id"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`

	// Заполняется сервисом по запросу, не маппится напрямую.
	Seeding *Seeding `json:"seeding,omitempty" db:"-"`
	Sets    []Set    `json:"sets,omitempty" db:"-"`
}
