package llm

import (
	"errors"
	"fmt"
	"log/slog"
)

// Registry holds one pooled model per configured vendor.
type Registry struct {
	pools map[Vendor]*Pool
}

// NewRegistry builds a pooled client for every vendor that has an API
// key. Vendors without a key are skipped.
func NewRegistry(cfg Config, pool PoolConfig, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{pools: make(map[Vendor]*Pool)}
	for _, v := range Vendors() {
		model, err := New(v, cfg)
		if errors.Is(err, ErrMissingAPIKey) {
			logger.Info("Model vendor disabled, no API key", "vendor", v)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("init %s client: %w", v, err)
		}
		pc := pool
		pc.Name = string(v)
		r.pools[v] = NewPool(model, pc, logger)
	}
	return r, nil
}

// Model returns the pooled model for vendor.
func (r *Registry) Model(vendor Vendor) (Model, error) {
	p, ok := r.pools[vendor]
	if !ok {
		return nil, fmt.Errorf("%s: %w", vendor, ErrMissingAPIKey)
	}
	return p, nil
}

// Enabled lists the vendors with a configured client.
func (r *Registry) Enabled() []Vendor {
	out := make([]Vendor, 0, len(r.pools))
	for _, v := range Vendors() {
		if _, ok := r.pools[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
