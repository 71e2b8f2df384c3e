// Package conversation implements the customer character and the stage judge.
package conversation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/salesdrill/internal/domain"
)

// ErrMalformedTranscript is returned when a transcript cannot be parsed.
var ErrMalformedTranscript = errors.New("malformed transcript")

const (
	turnHeaderPrefix = "### Turn "
	operatorHeader   = "Operator:"
	innerHeader      = "Customer (inner):"
	customerHeader   = "Customer:"
	contentIndent    = "  "
)

// Retention selects how much history is rendered into prompts. A zero
// Window renders the full history.
type Retention struct {
	Window int
}

// Select returns the turns kept by the policy.
func (r Retention) Select(history []domain.Turn) []domain.Turn {
	if r.Window <= 0 || r.Window >= len(history) {
		return history
	}
	return history[len(history)-r.Window:]
}

// Transcript renders the retained part of history, numbering turns by their
// position in the full history.
func (r Retention) Transcript(history []domain.Turn) string {
	kept := r.Select(history)
	return renderTurns(kept, len(history)-len(kept))
}

// RenderTranscript renders turns as a flat transcript block. Every line of
// content is indented, so ParseTranscript recovers the turns exactly.
func RenderTranscript(turns []domain.Turn) string {
	return renderTurns(turns, 0)
}

func renderTurns(turns []domain.Turn, offset int) string {
	if len(turns) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(turnHeaderPrefix)
		sb.WriteString(strconv.Itoa(offset + i + 1))
		writeField(&sb, operatorHeader, t.Question)
		writeField(&sb, innerHeader, t.InnerActivity)
		writeField(&sb, customerHeader, t.Response)
	}
	return sb.String()
}

func writeField(sb *strings.Builder, header, value string) {
	sb.WriteString("\n")
	sb.WriteString(header)
	for _, line := range strings.Split(value, "\n") {
		sb.WriteString("\n")
		sb.WriteString(contentIndent)
		sb.WriteString(line)
	}
}

// ParseTranscript is the inverse of RenderTranscript. Turn numbers must be
// consecutive but may start anywhere, so windowed transcripts parse too.
func ParseTranscript(s string) ([]domain.Turn, error) {
	if s == "" {
		return nil, nil
	}
	p := &transcriptParser{lines: strings.Split(s, "\n")}
	var turns []domain.Turn
	expected := -1
	for !p.done() {
		n, err := p.turnHeader()
		if err != nil {
			return nil, err
		}
		if expected >= 0 && n != expected {
			return nil, fmt.Errorf("%w: expected turn %d, found %d", ErrMalformedTranscript, expected, n)
		}
		expected = n + 1

		var t domain.Turn
		if t.Question, err = p.field(operatorHeader); err != nil {
			return nil, err
		}
		if t.InnerActivity, err = p.field(innerHeader); err != nil {
			return nil, err
		}
		if t.Response, err = p.field(customerHeader); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, nil
}

type transcriptParser struct {
	lines []string
	pos   int
}

func (p *transcriptParser) done() bool {
	return p.pos >= len(p.lines)
}

func (p *transcriptParser) turnHeader() (int, error) {
	line := p.lines[p.pos]
	if !strings.HasPrefix(line, turnHeaderPrefix) {
		return 0, fmt.Errorf("%w: line %d: expected turn header, got %q", ErrMalformedTranscript, p.pos+1, line)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(line, turnHeaderPrefix))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: line %d: bad turn number %q", ErrMalformedTranscript, p.pos+1, line)
	}
	p.pos++
	return n, nil
}

func (p *transcriptParser) field(header string) (string, error) {
	if p.done() || p.lines[p.pos] != header {
		return "", fmt.Errorf("%w: line %d: expected %q", ErrMalformedTranscript, p.pos+1, header)
	}
	p.pos++
	var content []string
	for !p.done() && strings.HasPrefix(p.lines[p.pos], contentIndent) {
		content = append(content, strings.TrimPrefix(p.lines[p.pos], contentIndent))
		p.pos++
	}
	if len(content) == 0 {
		return "", fmt.Errorf("%w: line %d: %q has no content lines", ErrMalformedTranscript, p.pos+1, header)
	}
	return strings.Join(content, "\n"), nil
}
