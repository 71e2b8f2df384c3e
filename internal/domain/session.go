package domain

import (
	"errors"
	"slices"
)

// ErrElaborationSet is returned when a persona elaboration is set twice.
var ErrElaborationSet = errors.New("persona elaboration already set")

// State holds the conversation state of one session.
type State struct {
	Persona     Persona
	Elaboration string
	Stage       int
	History     []Turn
}

// NewState creates a state positioned at the given initial stage.
func NewState(persona Persona, initialStage int) *State {
	return &State{
		Persona: persona.Clone(),
		Stage:   initialStage,
	}
}

// SetElaboration records the one-time persona elaboration.
func (s *State) SetElaboration(text string) error {
	if s.Elaboration != "" {
		return ErrElaborationSet
	}
	s.Elaboration = text
	return nil
}

// RecordTurn appends a completed turn to the history.
func (s *State) RecordTurn(t Turn) {
	s.History = append(s.History, t)
}

// Advance moves the stage pointer forward by one.
func (s *State) Advance() {
	s.Stage++
}

// RecentTurns returns the last n turns. n <= 0 returns the full history.
func (s *State) RecentTurns(n int) []Turn {
	if n <= 0 || n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Copy returns a deep copy of the state safe to hand to readers.
func (s *State) Copy() State {
	return State{
		Persona:     s.Persona.Clone(),
		Elaboration: s.Elaboration,
		Stage:       s.Stage,
		History:     slices.Clone(s.History),
	}
}
