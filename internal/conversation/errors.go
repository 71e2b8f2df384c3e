package conversation

import (
	"errors"
	"fmt"
)

// ErrGeneration matches every *GenerationError.
var ErrGeneration = errors.New("generation failure")

// Phase names the model call that failed.
type Phase string

const (
	PhaseElaboration   Phase = "elaboration"
	PhaseInnerActivity Phase = "inner_activity"
	PhaseResponse      Phase = "response"
	PhaseEvaluation    Phase = "evaluation"
)

// GenerationError reports a failed or unusable model call.
type GenerationError struct {
	Phase Phase
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed during %s: %v", e.Phase, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrGeneration.
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

func generationError(phase Phase, err error) error {
	return &GenerationError{Phase: phase, Err: err}
}
