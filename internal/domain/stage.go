package domain

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidStage indicates a stage definition that cannot be used.
var ErrInvalidStage = errors.New("invalid stage definition")

// Stage is one numbered phase of the scripted conversation.
type Stage struct {
	ID           int    `json:"stage" yaml:"stage"`
	Objective    string `json:"objective" yaml:"objective"`
	CurrentState string `json:"current_state" yaml:"current_state"`
}

// StageSet is an immutable id -> stage lookup. Ids need not be contiguous.
type StageSet struct {
	byID map[int]Stage
	ids  []int
}

// NewStageSet validates and indexes stage definitions.
func NewStageSet(stages []Stage) (*StageSet, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: no stages defined", ErrInvalidStage)
	}
	set := &StageSet{byID: make(map[int]Stage, len(stages))}
	for _, s := range stages {
		if s.ID < 1 {
			return nil, fmt.Errorf("%w: stage id %d must be >= 1", ErrInvalidStage, s.ID)
		}
		if _, dup := set.byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate stage id %d", ErrInvalidStage, s.ID)
		}
		set.byID[s.ID] = s
		set.ids = append(set.ids, s.ID)
	}
	slices.Sort(set.ids)
	return set, nil
}

// Lookup returns the stage with the given id.
func (s *StageSet) Lookup(id int) (Stage, bool) {
	st, ok := s.byID[id]
	return st, ok
}

// First returns the lowest defined stage id.
func (s *StageSet) First() int {
	return s.ids[0]
}

// Count returns the highest defined stage id. A stage pointer above it
// means the conversation is complete.
func (s *StageSet) Count() int {
	return s.ids[len(s.ids)-1]
}

// Len returns the number of defined stages.
func (s *StageSet) Len() int {
	return len(s.ids)
}

// Finished reports whether the stage pointer is past the last stage.
func (s *StageSet) Finished(stage int) bool {
	return stage > s.Count()
}

// Description returns the objective of the given stage, or "" when the id
// is undefined or past the end.
func (s *StageSet) Description(id int) string {
	return s.byID[id].Objective
}

// Stages returns the definitions ordered by id.
func (s *StageSet) Stages() []Stage {
	out := make([]Stage, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.byID[id])
	}
	return out
}
