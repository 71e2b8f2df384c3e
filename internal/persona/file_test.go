package persona

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashureev/salesdrill/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFileSourceJSON(t *testing.T) {
	personas := writeFile(t, "persona.json", `[{"age": 30, "job_type": "Farming"}, {"age": 41}]`)
	stages := writeFile(t, "stage_info.json", `[
		{"stage": 1, "objective": "greet", "current_state": "wary"},
		{"stage": 2, "objective": "close sale", "current_state": "curious"}
	]`)

	src, err := NewFileSource(personas, stages)
	if err != nil {
		t.Fatalf("NewFileSource failed: %v", err)
	}
	if src.Len() != 2 {
		t.Fatalf("expected 2 personas, got %d", src.Len())
	}

	src.pick = func(int) int { return 1 }
	p, err := src.RandomPersona(context.Background())
	if err != nil {
		t.Fatalf("RandomPersona failed: %v", err)
	}
	if p["age"] != float64(41) {
		t.Fatalf("expected second persona, got %v", p)
	}
	p["age"] = 99
	again, _ := src.RandomPersona(context.Background())
	if again["age"] != float64(41) {
		t.Fatal("RandomPersona must return a copy")
	}

	set, err := src.Stages(context.Background())
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}
	if set.Count() != 2 || set.Description(2) != "curious" {
		t.Fatalf("unexpected stage set: count=%d desc=%q", set.Count(), set.Description(2))
	}
}

func TestLoadStagesYAML(t *testing.T) {
	path := writeFile(t, "stages.yaml", `
- stage: 1
  objective: greet
  current_state: wary
- stage: 3
  objective: close sale
  current_state: ready
`)
	set, err := LoadStages(path)
	if err != nil {
		t.Fatalf("LoadStages failed: %v", err)
	}
	if set.First() != 1 || set.Count() != 3 {
		t.Fatalf("unexpected bounds first=%d count=%d", set.First(), set.Count())
	}
	if _, ok := set.Lookup(2); ok {
		t.Fatal("stage 2 should be a gap")
	}
}

func TestLoadErrors(t *testing.T) {
	empty := writeFile(t, "persona.json", `[]`)
	if _, err := LoadPersonas(empty); !errors.Is(err, ErrNoPersonas) {
		t.Fatalf("expected ErrNoPersonas, got %v", err)
	}

	dup := writeFile(t, "stages.json", `[{"stage": 1}, {"stage": 1}]`)
	if _, err := LoadStages(dup); !errors.Is(err, domain.ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage, got %v", err)
	}

	if _, err := LoadPersonas(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestWritePersonasRoundTrip(t *testing.T) {
	sampled := NewSampler(1).SampleN(3)
	for _, name := range []string{"out.json", "out.yaml"} {
		path := filepath.Join(t.TempDir(), name)
		if err := WritePersonas(path, sampled); err != nil {
			t.Fatalf("WritePersonas(%s) failed: %v", name, err)
		}
		loaded, err := LoadPersonas(path)
		if err != nil {
			t.Fatalf("LoadPersonas(%s) failed: %v", name, err)
		}
		if len(loaded) != 3 {
			t.Fatalf("%s: expected 3 personas, got %d", name, len(loaded))
		}
		if loaded[0]["mbti"] != sampled[0]["mbti"] {
			t.Fatalf("%s: mbti mismatch %v vs %v", name, loaded[0]["mbti"], sampled[0]["mbti"])
		}
	}
}
