package models

import "time"

// Entrant is a row of the event roster owned by the registration subsystem.
// The engine only ever reads it.
type Entrant struct {
	ID          int       `json:"id"`
	EventID     int       `json:"event_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
