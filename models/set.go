package models

import "time"

// SetState соответствует ENUM set_state в БД.
type SetState string

const (
	SetStatePending    SetState = "pending"
	SetStateCalled     SetState = "called"
	SetStateInProgress SetState = "in_progress"
	SetStateCompleted  SetState = "completed"
)

// Slot is one side of a set. A slot with IsBye = true never receives an
// entrant; the opposite slot auto-advances at generation time.
type Slot struct {
	EntrantID  *int `json:"entrant_id,omitempty"`
	Score      *int `json:"score,omitempty"`
	SeedNumber *int `json:"seed_number,omitempty"`
	IsBye      bool `json:"is_bye"`
}

// Populated reports whether the slot holds an entrant.
func (s Slot) Populated() bool {
	return s.EntrantID != nil
}

// Set is one node in the bracket tree of a phase. OrderInRound is 1-based;
// together with RoundNumber it fixes the node's position: the winner of the
// set at (round r, order k) feeds slot 1 or 2 of the set at
// (r+1, (k+1)/2) depending on parity.
type Set struct {
	ID              int       `json:"id" db:"id"`
	PhaseID         int       `json:"phase_id" db:"phase_id"`
	EventID         int       `json:"event_id" db:"event_id"`
	RoundNumber     int       `json:"round_number" db:"round_number"`
	OrderInRound    int       `json:"order_in_round" db:"order_in_round"`
	FullRoundText   string    `json:"full_round_text" db:"full_round_text"`
	Slot1           Slot      `json:"slot1" db:"-"`
	Slot2           Slot      `json:"slot2" db:"-"`
	State           SetState  `json:"state" db:"state"`
	IsComplete      bool      `json:"is_complete" db:"is_complete"`
	WinnerEntrantID *int      `json:"winner_entrant_id,omitempty" db:"winner_entrant_id"`
	LoserEntrantID  *int      `json:"loser_entrant_id,omitempty" db:"loser_entrant_id"`
	ExternalID      *string   `json:"external_id,omitempty" db:"external_id"`
	Version         int       `json:"-" db:"version"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// IsByeSet reports whether exactly one slot is a permanent bye.
func (s *Set) IsByeSet() bool {
	return s.Slot1.IsBye != s.Slot2.IsBye
}

// SlotByNumber returns a pointer to slot 1 or 2.
func (s *Set) SlotByNumber(n int) *Slot {
	if n == 1 {
		return &s.Slot1
	}
	return &s.Slot2
}
