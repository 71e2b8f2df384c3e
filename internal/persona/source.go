// Package persona loads customer personas and stage definitions, and
// samples synthetic personas.
package persona

import (
	"context"
	"errors"

	"github.com/ashureev/salesdrill/internal/domain"
)

// ErrNoPersonas is returned when a source has nothing to pick from.
var ErrNoPersonas = errors.New("persona pool is empty")

// Source supplies the persona and stage definitions for new sessions.
type Source interface {
	RandomPersona(ctx context.Context) (domain.Persona, error)
	Stages(ctx context.Context) (*domain.StageSet, error)
}
