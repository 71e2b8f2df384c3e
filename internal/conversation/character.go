package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/salesdrill/internal/domain"
	"github.com/ashureev/salesdrill/internal/llm"
)

// errBlankOutput marks a model answer that was only whitespace.
var errBlankOutput = errors.New("model output is blank")

// CharacterOption configures a Character.
type CharacterOption func(*Character)

// WithRetention sets how much history is rendered into prompts.
func WithRetention(r Retention) CharacterOption {
	return func(c *Character) { c.retention = r }
}

// WithRawPersona skips the elaboration call; prompts then use the raw
// persona record for the whole session.
func WithRawPersona() CharacterOption {
	return func(c *Character) { c.raw = true }
}

// WithModelName overrides the model identifier sent with every request.
func WithModelName(name string) CharacterOption {
	return func(c *Character) { c.modelName = name }
}

// WithPortrait attaches an image of the customer to the elaboration call.
func WithPortrait(img *llm.Image) CharacterOption {
	return func(c *Character) { c.portrait = img }
}

// Character plays the customer. Each turn costs two sequential model calls:
// a private inner activity, then the spoken reply conditioned on it.
type Character struct {
	model     llm.Model
	stages    *domain.StageSet
	retention Retention
	raw       bool
	modelName string
	portrait  *llm.Image
}

// NewCharacter builds the character for state. Unless WithRawPersona is
// given, it generates the persona elaboration once and stores it on state;
// a failure there is fatal.
func NewCharacter(ctx context.Context, model llm.Model, stages *domain.StageSet, state *domain.State, opts ...CharacterOption) (*Character, error) {
	c := &Character{model: model, stages: stages}
	for _, opt := range opts {
		opt(c)
	}
	if c.raw {
		return c, nil
	}

	if state.Elaboration == "" {
		persona, err := state.Persona.Render()
		if err != nil {
			return nil, err
		}
		prompt, err := render(elaborationTmpl, elaborationPrompt{Persona: persona})
		if err != nil {
			return nil, fmt.Errorf("render elaboration prompt: %w", err)
		}
		text, err := c.generate(ctx, llm.Request{Prompt: prompt, Image: c.portrait})
		if err != nil {
			return nil, generationError(PhaseElaboration, err)
		}
		if err := state.SetElaboration(text); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Compose produces the next turn without touching state. Both phases see
// the history as it was before this turn.
func (c *Character) Compose(ctx context.Context, question string, state *domain.State) (domain.Turn, error) {
	persona, err := c.personaBlock(state)
	if err != nil {
		return domain.Turn{}, err
	}
	transcript := c.retention.Transcript(state.History)

	currentState := ""
	if st, ok := c.stages.Lookup(state.Stage); ok {
		currentState = st.CurrentState
	}

	prompt, err := render(innerActivityTmpl, innerActivityPrompt{
		Persona:      persona,
		CurrentState: currentState,
		Transcript:   transcript,
		Question:     question,
	})
	if err != nil {
		return domain.Turn{}, fmt.Errorf("render inner activity prompt: %w", err)
	}
	inner, err := c.generate(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return domain.Turn{}, generationError(PhaseInnerActivity, err)
	}

	prompt, err = render(responseTmpl, responsePrompt{
		Persona:       persona,
		InnerActivity: inner,
		Transcript:    transcript,
		Question:      question,
	})
	if err != nil {
		return domain.Turn{}, fmt.Errorf("render response prompt: %w", err)
	}
	response, err := c.generate(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return domain.Turn{}, generationError(PhaseResponse, err)
	}

	return domain.Turn{Question: question, InnerActivity: inner, Response: response}, nil
}

// GenerateTurn composes the next turn and appends it to the history.
func (c *Character) GenerateTurn(ctx context.Context, question string, state *domain.State) (response, innerActivity string, err error) {
	turn, err := c.Compose(ctx, question, state)
	if err != nil {
		return "", "", err
	}
	state.RecordTurn(turn)
	return turn.Response, turn.InnerActivity, nil
}

// Raw reports whether the character uses the raw persona record.
func (c *Character) Raw() bool {
	return c.raw
}

func (c *Character) personaBlock(state *domain.State) (string, error) {
	if c.raw {
		return state.Persona.Render()
	}
	if state.Elaboration == "" {
		return "", errors.New("persona elaboration missing")
	}
	return state.Elaboration, nil
}

func (c *Character) generate(ctx context.Context, req llm.Request) (string, error) {
	req.Model = c.modelName
	text, err := c.model.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errBlankOutput
	}
	return text, nil
}
