package persona

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/salesdrill/internal/domain"
)

// FileSource serves personas and stages loaded from disk at startup.
type FileSource struct {
	personas []domain.Persona
	stages   *domain.StageSet
	pick     func(n int) int
}

// NewFileSource loads the persona pool and stage file. Both may be JSON
// or YAML, chosen by extension.
func NewFileSource(personaPath, stagePath string) (*FileSource, error) {
	personas, err := LoadPersonas(personaPath)
	if err != nil {
		return nil, err
	}
	stages, err := LoadStages(stagePath)
	if err != nil {
		return nil, err
	}
	return NewStaticSource(personas, stages)
}

// NewStaticSource serves a fixed persona pool and stage set.
func NewStaticSource(personas []domain.Persona, stages *domain.StageSet) (*FileSource, error) {
	if len(personas) == 0 {
		return nil, ErrNoPersonas
	}
	if stages == nil {
		return nil, fmt.Errorf("%w: no stages", domain.ErrInvalidStage)
	}
	return &FileSource{personas: personas, stages: stages, pick: rand.IntN}, nil
}

// RandomPersona returns a copy of a uniformly chosen persona.
func (s *FileSource) RandomPersona(_ context.Context) (domain.Persona, error) {
	return s.personas[s.pick(len(s.personas))].Clone(), nil
}

// Stages returns the loaded stage set.
func (s *FileSource) Stages(_ context.Context) (*domain.StageSet, error) {
	return s.stages, nil
}

// Len reports the persona pool size.
func (s *FileSource) Len() int {
	return len(s.personas)
}

// LoadPersonas reads a persona pool: an array of attribute objects.
func LoadPersonas(path string) ([]domain.Persona, error) {
	var personas []domain.Persona
	if err := decodeFile(path, &personas); err != nil {
		return nil, fmt.Errorf("load personas: %w", err)
	}
	if len(personas) == 0 {
		return nil, fmt.Errorf("load personas %s: %w", path, ErrNoPersonas)
	}
	return personas, nil
}

// LoadStages reads a stage file: an array of {stage, objective, current_state}.
func LoadStages(path string) (*domain.StageSet, error) {
	var stages []domain.Stage
	if err := decodeFile(path, &stages); err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}
	set, err := domain.NewStageSet(stages)
	if err != nil {
		return nil, fmt.Errorf("load stages %s: %w", path, err)
	}
	return set, nil
}

// WritePersonas writes a persona pool as indented JSON, or YAML when the
// path ends in .yaml or .yml.
func WritePersonas(path string, personas []domain.Persona) error {
	var data []byte
	if isYAML(path) {
		out, err := yaml.Marshal(personas)
		if err != nil {
			return fmt.Errorf("encode personas: %w", err)
		}
		data = out
	} else {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(personas); err != nil {
			return fmt.Errorf("encode personas: %w", err)
		}
		data = buf.Bytes()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write personas: %w", err)
	}
	return nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if isYAML(path) {
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
