package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

// ErrModelTimeout indicates a model call exceeded its time budget.
var ErrModelTimeout = errors.New("model call timed out")

const (
	defaultPoolConcurrency = 8
	defaultPoolTimeout     = 60 * time.Second
)

var tracer = otel.Tracer("github.com/ashureev/salesdrill/internal/llm")

// Observer receives one event per finished model call.
type Observer interface {
	ObserveModelCall(vendor string, elapsed time.Duration, err error)
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Name labels logs, spans and metrics, usually the vendor.
	Name string
	// Concurrency bounds the number of in-flight provider calls.
	Concurrency int
	// Timeout bounds each call, including the wait for a free slot.
	Timeout  time.Duration
	Observer Observer
}

// Result is the outcome of an asynchronous generation.
type Result struct {
	Text string
	Err  error
}

// Pool runs blocking vendor calls on a bounded set of workers with a
// per-call timeout. Generate blocks the caller; GenerateAsync returns at
// once and delivers the result on a channel.
type Pool struct {
	model    Model
	sem      *semaphore.Weighted
	cfg      PoolConfig
	logger   *slog.Logger
	observer Observer
}

// NewPool wraps model in a bounded worker pool.
func NewPool(model Model, cfg PoolConfig, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultPoolConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPoolTimeout
	}
	return &Pool{
		model:    model,
		sem:      semaphore.NewWeighted(int64(cfg.Concurrency)),
		cfg:      cfg,
		logger:   logger.With("component", "llm_pool", "vendor", cfg.Name),
		observer: cfg.Observer,
	}
}

// Generate implements Model.
func (p *Pool) Generate(ctx context.Context, req Request) (string, error) {
	res := <-p.GenerateAsync(ctx, req)
	return res.Text, res.Err
}

// GenerateAsync starts a generation and returns a channel that receives
// exactly one Result.
func (p *Pool) GenerateAsync(ctx context.Context, req Request) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		out <- p.run(ctx, req)
	}()
	return out
}

func (p *Pool) run(ctx context.Context, req Request) Result {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.vendor", p.cfg.Name),
		attribute.Int("llm.prompt_length", len(req.Prompt)),
	)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	res := p.call(callCtx, req)
	if res.Err == nil && strings.TrimSpace(res.Text) == "" {
		res = Result{Err: ErrEmptyCompletion}
	}
	if res.Err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		res.Err = fmt.Errorf("%w after %s: %w", ErrModelTimeout, p.cfg.Timeout, res.Err)
	}

	elapsed := time.Since(start)
	if p.observer != nil {
		p.observer.ObserveModelCall(p.cfg.Name, elapsed, res.Err)
	}
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		p.logger.Warn("Model call failed", "elapsed", elapsed, "error", res.Err)
		return res
	}
	p.logger.Debug("Model call completed", "elapsed", elapsed, "response_length", len(res.Text))
	return res
}

func (p *Pool) call(ctx context.Context, req Request) Result {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Result{Err: fmt.Errorf("acquire model slot: %w", err)}
	}

	done := make(chan Result, 1)
	go func() {
		defer p.sem.Release(1)
		text, err := p.model.Generate(ctx, req)
		done <- Result{Text: text, Err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}
