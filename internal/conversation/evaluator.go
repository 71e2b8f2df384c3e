package conversation

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ashureev/salesdrill/internal/llm"
)

// Default judge markers. The judge prompt asks for exactly one of them.
const (
	DefaultAffirmative = "PASS"
	DefaultNegative    = "FAIL"
)

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithMarkers replaces the affirmative and negative markers. The first
// marker of each list is the one requested in the prompt.
func WithMarkers(affirmative, negative []string) EvaluatorOption {
	return func(e *Evaluator) {
		if len(affirmative) > 0 {
			e.affirmative = affirmative
		}
		if len(negative) > 0 {
			e.negative = negative
		}
	}
}

// WithJudgeModelName overrides the model identifier used by the judge.
func WithJudgeModelName(name string) EvaluatorOption {
	return func(e *Evaluator) { e.modelName = name }
}

// Evaluator decides whether a turn met the active stage objective.
type Evaluator struct {
	model       llm.Model
	affirmative []string
	negative    []string
	modelName   string
}

// NewEvaluator creates a judge backed by model.
func NewEvaluator(model llm.Model, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		model:       model,
		affirmative: []string{DefaultAffirmative},
		negative:    []string{DefaultNegative},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate asks the model whether the exchange met objective. A model
// error is a generation failure; an answer that is not a clear pass is a
// fail.
func (e *Evaluator) Evaluate(ctx context.Context, utterance, reply, innerActivity, objective string) (bool, error) {
	prompt, err := render(judgeTmpl, judgePrompt{
		Objective:     objective,
		Utterance:     utterance,
		InnerActivity: innerActivity,
		Reply:         reply,
		Affirmative:   e.affirmative[0],
		Negative:      e.negative[0],
	})
	if err != nil {
		return false, fmt.Errorf("render judge prompt: %w", err)
	}
	answer, err := e.model.Generate(ctx, llm.Request{Prompt: prompt, Model: e.modelName})
	if err != nil {
		return false, generationError(PhaseEvaluation, err)
	}
	return e.Classify(answer), nil
}

// Classify reports whether answer is a pass: an affirmative marker appears
// as a whole word and no negative marker does. Markers match ignoring
// case; "passive" or "bypass" do not contain PASS.
func (e *Evaluator) Classify(answer string) bool {
	lower := strings.ToLower(strings.TrimSpace(answer))
	for _, m := range e.negative {
		if containsWord(lower, strings.ToLower(m)) {
			return false
		}
	}
	for _, m := range e.affirmative {
		if containsWord(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// containsWord reports whether marker occurs in text bounded on both sides
// by a non-word rune or the text edge. Scripts written without spaces,
// such as Han, only need the marker itself to match.
func containsWord(text, marker string) bool {
	if marker == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(marker)
	last, _ := utf8.DecodeLastRuneInString(marker)
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], marker)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(marker)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || boundary(before, first)) && (end == len(text) || boundary(after, last)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return false
}

func boundary(neighbor, edge rune) bool {
	if unicode.Is(unicode.Han, edge) {
		return true
	}
	return !unicode.IsLetter(neighbor) && !unicode.IsDigit(neighbor)
}
