// Package session runs staged conversations and keeps the table of live
// sessions.
package session

import (
	"errors"

	"github.com/ashureev/salesdrill/internal/conversation"
)

var (
	// ErrInvalidConfig is returned when a session cannot be configured,
	// for example an unknown model vendor.
	ErrInvalidConfig = errors.New("invalid session configuration")
	// ErrSessionNotFound is returned for ids not in the session table.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionFinished is returned for turns after the last stage passed.
	ErrSessionFinished = errors.New("session already finished")
	// ErrCapacity is returned when the session table is full.
	ErrCapacity = errors.New("session capacity reached")
	// ErrGeneration matches every model failure during a session.
	ErrGeneration = conversation.ErrGeneration
)

// GenerationError reports which model call failed.
type GenerationError = conversation.GenerationError
