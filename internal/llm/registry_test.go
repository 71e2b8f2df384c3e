package llm

import (
	"errors"
	"testing"
)

func TestRegistrySkipsVendorsWithoutKey(t *testing.T) {
	r, err := NewRegistry(Config{OpenAI: VendorConfig{APIKey: "sk-test"}}, PoolConfig{Concurrency: 2}, nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	enabled := r.Enabled()
	if len(enabled) != 1 || enabled[0] != VendorOpenAI {
		t.Fatalf("expected only openai enabled, got %v", enabled)
	}
	if m, err := r.Model(VendorOpenAI); err != nil || m == nil {
		t.Fatalf("expected openai model, got %v, %v", m, err)
	}
	if _, err := r.Model(VendorGemini); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey for gemini, got %v", err)
	}
}
