package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Chain tries each configured engine in order until one succeeds. The first
// engine is the primary; the rest are fallbacks.
type Chain struct {
	engines     []Engine
	callTimeout time.Duration
}

// NewChain builds a fallback chain. callTimeout bounds every individual
// engine call; zero disables the bound.
func NewChain(callTimeout time.Duration, engines ...Engine) (*Chain, error) {
	if len(engines) == 0 {
		return nil, errors.New("chain requires at least one engine")
	}
	return &Chain{engines: engines, callTimeout: callTimeout}, nil
}

// Primary returns the first engine in the chain.
func (c *Chain) Primary() Engine {
	return c.engines[0]
}

// PrimaryBatch returns the primary engine's batch surface when it has one.
func (c *Chain) PrimaryBatch() (BatchEngine, bool) {
	b, ok := c.engines[0].(BatchEngine)
	return b, ok
}

// Recognize runs one image through the chain. It returns the serving engine's
// name alongside the result so callers can record provenance. When every
// engine fails the last failure is returned.
func (c *Chain) Recognize(ctx context.Context, in Input) (Result, string, error) {
	var lastErr error
	for _, eng := range c.engines {
		if err := ctx.Err(); err != nil {
			return Result{}, "", err
		}
		res, err := c.callOne(ctx, eng, in)
		if err == nil {
			return res, eng.Name(), nil
		}
		lastErr = err
		slog.Warn("Recognition engine failed, trying next", "engine", eng.Name(), "err", err)
	}
	return Result{}, "", fmt.Errorf("all recognition engines failed: %w", lastErr)
}

// RecognizeBatch runs one provider-native batch call against the primary
// engine. There is no batch fallback; callers degrade to per-image calls.
func (c *Chain) RecognizeBatch(ctx context.Context, ins []Input) ([]Result, error) {
	b, ok := c.PrimaryBatch()
	if !ok {
		return nil, fmt.Errorf("engine %s does not support batch recognition", c.engines[0].Name())
	}
	callCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	results, err := b.RecognizeBatch(callCtx, ins)
	if err != nil {
		return nil, err
	}
	if len(results) != len(ins) {
		return nil, fmt.Errorf("engine %s returned %d results for %d inputs", b.Name(), len(results), len(ins))
	}
	return results, nil
}

func (c *Chain) callOne(ctx context.Context, eng Engine, in Input) (Result, error) {
	callCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	return eng.Recognize(callCtx, in)
}
