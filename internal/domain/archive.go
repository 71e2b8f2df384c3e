package domain

import "time"

// SessionRecord is the archived summary of a drill session.
type SessionRecord struct {
	SessionID   string
	Operator    string
	Vendor      string
	PersonaJSON string
	FinalStage  int
	Finished    bool
	StartedAt   time.Time
	EndedAt     *time.Time
}

// TurnRecord is one archived turn together with its judge outcome.
type TurnRecord struct {
	SessionID string
	Seq       int
	Stage     int
	Turn      Turn
	Passed    bool
	CreatedAt time.Time
}
