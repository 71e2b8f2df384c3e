package session

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashureev/salesdrill/internal/conversation"
	"github.com/ashureev/salesdrill/internal/domain"
)

var tracer = otel.Tracer("github.com/ashureev/salesdrill/internal/session")

// TurnResult is the outcome of one successful turn.
type TurnResult struct {
	Reply         string
	InnerActivity string
	// EvaluatedStage is the stage the turn was judged against.
	EvaluatedStage   int
	Stage            int
	StageDescription string
	Passed           bool
	Finished         bool
	// Turn is the 1-based position of the turn in the history.
	Turn         int
	Conversation string
}

// TurnOutcome carries the result of TurnAsync.
type TurnOutcome struct {
	Result TurnResult
	Err    error
}

// Runtime drives one session: it composes the reply, asks the evaluator
// about the active stage and commits the turn. Turns are serialized.
type Runtime struct {
	mu        sync.Mutex
	character *conversation.Character
	evaluator *conversation.Evaluator
	stages    *domain.StageSet
	state     *domain.State
}

// NewRuntime wires a runtime around an already constructed character.
func NewRuntime(character *conversation.Character, evaluator *conversation.Evaluator, stages *domain.StageSet, state *domain.State) *Runtime {
	return &Runtime{
		character: character,
		evaluator: evaluator,
		stages:    stages,
		state:     state,
	}
}

// Turn handles one operator utterance. On error neither the stage nor the
// history changes.
func (r *Runtime) Turn(ctx context.Context, utterance string) (TurnResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, span := tracer.Start(ctx, "session.turn",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("session.stage", r.state.Stage)))
	defer span.End()

	if r.stages.Finished(r.state.Stage) {
		return TurnResult{}, ErrSessionFinished
	}

	turn, err := r.character.Compose(ctx, utterance, r.state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compose failed")
		return TurnResult{}, err
	}

	evaluated := r.state.Stage
	passed := true
	if stage, ok := r.stages.Lookup(evaluated); ok {
		passed, err = r.evaluator.Evaluate(ctx, utterance, turn.Response, turn.InnerActivity, stage.Objective)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "evaluation failed")
			return TurnResult{}, err
		}
	}

	r.state.RecordTurn(turn)
	if passed {
		r.state.Advance()
	}
	span.SetAttributes(attribute.Bool("session.passed", passed))

	return TurnResult{
		Reply:            turn.Response,
		InnerActivity:    turn.InnerActivity,
		EvaluatedStage:   evaluated,
		Stage:            r.state.Stage,
		StageDescription: r.stages.Description(r.state.Stage),
		Passed:           passed,
		Finished:         r.stages.Finished(r.state.Stage),
		Turn:             len(r.state.History),
		Conversation:     conversation.RenderTranscript(r.state.History),
	}, nil
}

// TurnAsync runs Turn in its own goroutine. The channel receives exactly
// one outcome.
func (r *Runtime) TurnAsync(ctx context.Context, utterance string) <-chan TurnOutcome {
	out := make(chan TurnOutcome, 1)
	go func() {
		res, err := r.Turn(ctx, utterance)
		out <- TurnOutcome{Result: res, Err: err}
	}()
	return out
}

// Snapshot returns a copy of the conversation state.
func (r *Runtime) Snapshot() domain.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Copy()
}

// Stages returns the stage definitions of the session.
func (r *Runtime) Stages() *domain.StageSet {
	return r.stages
}
