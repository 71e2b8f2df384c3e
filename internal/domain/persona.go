// Package domain contains core domain types for the sales drill.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Persona is a structured customer profile. The core never inspects
// individual attributes; it renders the whole record into prompts.
type Persona map[string]any

// Clone returns a shallow copy so a running session cannot be affected by
// later edits to the source record.
func (p Persona) Clone() Persona {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// Render returns the persona as indented JSON with sorted keys.
// The output is deterministic for equal personas.
func (p Persona) Render() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any(p)); err != nil {
		return "", fmt.Errorf("render persona: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
