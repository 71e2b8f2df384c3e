package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/salesdrill/internal/conversation"
	"github.com/ashureev/salesdrill/internal/domain"
	"github.com/ashureev/salesdrill/internal/llm"
	"github.com/ashureev/salesdrill/internal/persona"
)

// ModelFactory returns the model serving a vendor.
type ModelFactory func(vendor llm.Vendor) (llm.Model, error)

// Archiver persists sessions and turns. ArchiveSession is called on start
// and again on end, so implementations upsert.
type Archiver interface {
	ArchiveSession(ctx context.Context, rec domain.SessionRecord) error
	ArchiveTurn(ctx context.Context, rec domain.TurnRecord) error
}

// Observer receives session lifecycle events for metrics.
type Observer interface {
	SessionStarted(vendor string)
	SessionEnded(vendor, reason string)
	TurnCompleted(vendor string, elapsed time.Duration, passed, finished bool, err error)
}

// End reasons reported to the Observer.
const (
	EndReasonClosed  = "closed"
	EndReasonExpired = "expired"
)

// Config wires a Manager.
type Config struct {
	Source    persona.Source
	Models    ModelFactory
	Store     *Store
	Retention conversation.Retention
	// RawPersona skips the persona elaboration for every session.
	RawPersona bool
	// JudgeModels overrides, per vendor, the model identifier used for
	// stage evaluation calls.
	JudgeModels map[llm.Vendor]string
	Archiver    Archiver
	Observer    Observer
	Logger      *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to uuid.NewString.
	NewID func() string
}

// StartRequest opens a session.
type StartRequest struct {
	Vendor   string
	Operator string
}

// StartResult describes a freshly opened session.
type StartResult struct {
	SessionID        string
	Persona          domain.Persona
	PersonaText      string
	Stage            int
	StageDescription string
}

// Snapshot is a read-only view of a live session.
type Snapshot struct {
	SessionID        string
	Vendor           string
	Operator         string
	State            domain.State
	StageDescription string
	Finished         bool
	CreatedAt        time.Time
	LastActive       time.Time
}

// Manager is the transport-facing surface over the session table.
type Manager struct {
	source    persona.Source
	models    ModelFactory
	store     *Store
	retention conversation.Retention
	raw       bool
	judge     map[llm.Vendor]string
	archiver  Archiver
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewManager validates cfg and creates a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: persona source is required", ErrInvalidConfig)
	}
	if cfg.Models == nil {
		return nil, fmt.Errorf("%w: model factory is required", ErrInvalidConfig)
	}
	m := &Manager{
		source:    cfg.Source,
		models:    cfg.Models,
		store:     cfg.Store,
		retention: cfg.Retention,
		raw:       cfg.RawPersona,
		judge:     cfg.JudgeModels,
		archiver:  cfg.Archiver,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
		now:       cfg.Now,
		newID:     cfg.NewID,
	}
	if m.store == nil {
		m.store = NewStore(DefaultMaxSessions)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m, nil
}

// Start opens a session. Nothing is added to the table unless every step,
// including the persona elaboration, succeeds.
func (m *Manager) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	vendor, err := llm.ParseVendor(req.Vendor)
	if err != nil {
		return StartResult{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	model, err := m.models(vendor)
	if err != nil {
		return StartResult{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if m.store.Full() {
		return StartResult{}, ErrCapacity
	}

	p, err := m.source.RandomPersona(ctx)
	if err != nil {
		return StartResult{}, fmt.Errorf("pick persona: %w", err)
	}
	stages, err := m.source.Stages(ctx)
	if err != nil {
		return StartResult{}, fmt.Errorf("load stages: %w", err)
	}
	personaText, err := p.Render()
	if err != nil {
		return StartResult{}, fmt.Errorf("render persona: %w", err)
	}

	state := domain.NewState(p, stages.First())
	opts := []conversation.CharacterOption{conversation.WithRetention(m.retention)}
	if m.raw {
		opts = append(opts, conversation.WithRawPersona())
	}
	character, err := conversation.NewCharacter(ctx, model, stages, state, opts...)
	if err != nil {
		return StartResult{}, err
	}

	var judgeOpts []conversation.EvaluatorOption
	if name := m.judge[vendor]; name != "" {
		judgeOpts = append(judgeOpts, conversation.WithJudgeModelName(name))
	}
	rt := NewRuntime(character, conversation.NewEvaluator(model, judgeOpts...), stages, state)
	now := m.now()
	h := NewHandle(m.newID(), string(vendor), req.Operator, rt, now)
	if err := m.store.Add(h); err != nil {
		return StartResult{}, err
	}

	m.logger.Info("Session started", "session_id", h.ID, "vendor", vendor, "operator", req.Operator, "stage", state.Stage)
	if m.observer != nil {
		m.observer.SessionStarted(h.Vendor)
	}
	m.archiveSession(ctx, h, personaText, state.Stage, false, nil)

	return StartResult{
		SessionID:        h.ID,
		Persona:          state.Persona.Clone(),
		PersonaText:      personaText,
		Stage:            state.Stage,
		StageDescription: stages.Description(state.Stage),
	}, nil
}

// Turn runs one turn of session id.
func (m *Manager) Turn(ctx context.Context, id, utterance string) (TurnResult, error) {
	h, err := m.store.Get(id, m.now())
	if err != nil {
		return TurnResult{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return TurnResult{}, ErrSessionNotFound
	}

	started := time.Now()
	res, err := h.Runtime.Turn(ctx, utterance)
	if m.observer != nil {
		m.observer.TurnCompleted(h.Vendor, time.Since(started), res.Passed, res.Finished, err)
	}
	if err != nil {
		m.logger.Warn("Session turn failed", "session_id", id, "error", err)
		return TurnResult{}, err
	}

	m.logger.Info("Session turn completed",
		"session_id", id,
		"turn", res.Turn,
		"stage", res.EvaluatedStage,
		"passed", res.Passed,
		"finished", res.Finished)

	if m.archiver != nil {
		rec := domain.TurnRecord{
			SessionID: id,
			Seq:       res.Turn,
			Stage:     res.EvaluatedStage,
			Turn:      domain.Turn{Question: utterance, InnerActivity: res.InnerActivity, Response: res.Reply},
			Passed:    res.Passed,
			CreatedAt: m.now(),
		}
		if err := m.archiver.ArchiveTurn(ctx, rec); err != nil {
			m.logger.Error("Failed to archive turn", "session_id", id, "turn", res.Turn, "error", err)
		}
	}
	return res, nil
}

// End removes session id from the table. It waits for a turn already in
// flight on the session, so the end record follows every archived turn.
func (m *Manager) End(ctx context.Context, id string) error {
	h, err := m.store.Delete(id)
	if err != nil {
		return err
	}
	m.closed(ctx, h, EndReasonClosed)
	return nil
}

// Get returns a snapshot of session id without marking it active.
func (m *Manager) Get(id string) (Snapshot, error) {
	h, err := m.store.Peek(id)
	if err != nil {
		return Snapshot{}, err
	}
	state := h.Runtime.Snapshot()
	stages := h.Runtime.Stages()
	return Snapshot{
		SessionID:        h.ID,
		Vendor:           h.Vendor,
		Operator:         h.Operator,
		State:            state,
		StageDescription: stages.Description(state.Stage),
		Finished:         stages.Finished(state.Stage),
		CreatedAt:        h.CreatedAt,
		LastActive:       h.LastActive(),
	}, nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	return m.store.Len()
}

// Expire drops sessions idle for longer than idle and returns how many
// were removed.
func (m *Manager) Expire(ctx context.Context, idle time.Duration) int {
	expired := m.store.Sweep(m.now(), idle)
	for _, h := range expired {
		m.closed(ctx, h, EndReasonExpired)
	}
	return len(expired)
}

func (m *Manager) closed(ctx context.Context, h *Handle, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ended = true

	state := h.Runtime.Snapshot()
	finished := h.Runtime.Stages().Finished(state.Stage)
	m.logger.Info("Session ended",
		"session_id", h.ID,
		"reason", reason,
		"stage", state.Stage,
		"turns", len(state.History),
		"finished", finished)
	if m.observer != nil {
		m.observer.SessionEnded(h.Vendor, reason)
	}
	if m.archiver != nil {
		personaText, err := state.Persona.Render()
		if err != nil {
			m.logger.Error("Failed to render persona for archive", "session_id", h.ID, "error", err)
			return
		}
		ended := m.now()
		m.archiveSession(ctx, h, personaText, state.Stage, finished, &ended)
	}
}

func (m *Manager) archiveSession(ctx context.Context, h *Handle, personaText string, stage int, finished bool, ended *time.Time) {
	if m.archiver == nil {
		return
	}
	rec := domain.SessionRecord{
		SessionID:   h.ID,
		Operator:    h.Operator,
		Vendor:      h.Vendor,
		PersonaJSON: personaText,
		FinalStage:  stage,
		Finished:    finished,
		StartedAt:   h.CreatedAt,
		EndedAt:     ended,
	}
	if err := m.archiver.ArchiveSession(ctx, rec); err != nil {
		m.logger.Error("Failed to archive session", "session_id", h.ID, "error", err)
	}
}
