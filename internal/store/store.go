// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/salesdrill/internal/domain"
	"github.com/ashureev/salesdrill/internal/persona"
	"github.com/ashureev/salesdrill/internal/session"
)

// Repository persists the persona pool, the stage definitions and the
// session archive.
type Repository interface {
	persona.Source
	session.Archiver

	// SavePersonas appends personas to the pool and returns how many were added.
	SavePersonas(ctx context.Context, personas []domain.Persona) (int, error)

	// CountPersonas returns the persona pool size.
	CountPersonas(ctx context.Context) (int, error)

	// ReplaceStages swaps the stage definitions for stages.
	ReplaceStages(ctx context.Context, stages []domain.Stage) error

	// GetSession retrieves an archived session, or nil if unknown.
	GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error)

	// ListTurns returns the archived turns of a session in order.
	ListTurns(ctx context.Context, sessionID string) ([]domain.TurnRecord, error)

	// PurgeSessions removes sessions that ended before now minus ttl.
	PurgeSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
