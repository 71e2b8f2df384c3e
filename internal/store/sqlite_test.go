package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/salesdrill/internal/domain"
	"github.com/ashureev/salesdrill/internal/persona"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "drill.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPersonaPool(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.RandomPersona(ctx); !errors.Is(err, persona.ErrNoPersonas) {
		t.Fatalf("expected ErrNoPersonas on empty pool, got %v", err)
	}

	n, err := s.SavePersonas(ctx, persona.NewSampler(3).SampleN(4))
	if err != nil {
		t.Fatalf("SavePersonas failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 saved, got %d", n)
	}
	count, err := s.CountPersonas(ctx)
	if err != nil || count != 4 {
		t.Fatalf("CountPersonas = %d, %v", count, err)
	}

	p, err := s.RandomPersona(ctx)
	if err != nil {
		t.Fatalf("RandomPersona failed: %v", err)
	}
	if _, ok := p["mbti"]; !ok {
		t.Fatalf("persona missing attributes: %v", p)
	}
}

func TestStages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Stages(ctx); !errors.Is(err, domain.ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage with no stages, got %v", err)
	}

	first := []domain.Stage{{ID: 1, Objective: "greet", CurrentState: "wary"}}
	if err := s.ReplaceStages(ctx, first); err != nil {
		t.Fatalf("ReplaceStages failed: %v", err)
	}
	second := []domain.Stage{
		{ID: 1, Objective: "greet", CurrentState: "wary"},
		{ID: 2, Objective: "close sale", CurrentState: "curious"},
	}
	if err := s.ReplaceStages(ctx, second); err != nil {
		t.Fatalf("ReplaceStages failed: %v", err)
	}

	set, err := s.Stages(ctx)
	if err != nil {
		t.Fatalf("Stages failed: %v", err)
	}
	if set.Count() != 2 || set.Description(2) != "curious" {
		t.Fatalf("unexpected stages: count=%d", set.Count())
	}

	if err := s.ReplaceStages(ctx, []domain.Stage{{ID: 0}}); !errors.Is(err, domain.ErrInvalidStage) {
		t.Fatalf("expected invalid stage rejection, got %v", err)
	}
}

func TestSessionArchive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Unix(1_700_000_000, 0)

	got, err := s.GetSession(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("GetSession(missing) = %v, %v", got, err)
	}

	rec := domain.SessionRecord{
		SessionID:   "s-1",
		Operator:    "op",
		Vendor:      "openai",
		PersonaJSON: `{"age": 30}`,
		FinalStage:  1,
		StartedAt:   started,
	}
	if err := s.ArchiveSession(ctx, rec); err != nil {
		t.Fatalf("ArchiveSession failed: %v", err)
	}
	for i, passed := range []bool{true, false} {
		turn := domain.TurnRecord{
			SessionID: "s-1",
			Seq:       i + 1,
			Stage:     i + 1,
			Turn:      domain.Turn{Question: fmt.Sprintf("q%d", i), InnerActivity: "hm", Response: "ok"},
			Passed:    passed,
			CreatedAt: started.Add(time.Minute),
		}
		if err := s.ArchiveTurn(ctx, turn); err != nil {
			t.Fatalf("ArchiveTurn failed: %v", err)
		}
	}

	ended := started.Add(time.Hour)
	rec.FinalStage, rec.EndedAt = 2, &ended
	if err := s.ArchiveSession(ctx, rec); err != nil {
		t.Fatalf("ArchiveSession(end) failed: %v", err)
	}

	got, err = s.GetSession(ctx, "s-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.FinalStage != 2 || got.EndedAt == nil || !got.EndedAt.Equal(ended) || !got.StartedAt.Equal(started) {
		t.Fatalf("unexpected session record: %+v", got)
	}

	turns, err := s.ListTurns(ctx, "s-1")
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if len(turns) != 2 || !turns[0].Passed || turns[1].Passed || turns[1].Turn.Question != "q1" {
		t.Fatalf("unexpected turns: %+v", turns)
	}

	if err := s.ArchiveTurn(ctx, domain.TurnRecord{SessionID: "s-1", Seq: 1, CreatedAt: started}); err == nil {
		t.Fatal("duplicate turn sequence should fail")
	}

	deleted, err := s.PurgeSessions(ctx, time.Hour)
	if err != nil {
		t.Fatalf("PurgeSessions failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 purged session, got %d", deleted)
	}
	if turns, _ := s.ListTurns(ctx, "s-1"); len(turns) != 0 {
		t.Fatalf("turns should be purged with their session, got %d", len(turns))
	}
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), "op", func() error {
		attempts++
		if attempts < 2 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	if err != nil || attempts != 2 {
		t.Fatalf("expected success on second attempt, got %v after %d", err, attempts)
	}

	attempts = 0
	plain := errors.New("constraint failed")
	if err := withRetry(context.Background(), "op", func() error { attempts++; return plain }); !errors.Is(err, plain) || attempts != 1 {
		t.Fatalf("non-conflict errors must not retry: %v after %d", err, attempts)
	}
}
