package model

import "time"

// Checkpoint is the durable record of pagination progress. Cursor is
// the last cursor whose page was fully persisted locally; "" means the
// next sync starts pagination from the beginning.
type Checkpoint struct {
	Cursor    string    `json:"last_completed_cursor"`
	UpdatedAt time.Time `json:"updated_at"`
}
