package model

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/otto-ai/otto/internal/config"
	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/logging"
)

// Router fronts a primary model with an optional fallback. The
// fallback is tried when the primary fails with anything other than a
// caller mistake or a canceled context.
type Router struct {
	primary  Model
	fallback Model
	logger   *log.Logger
}

// NewRouter wires a primary and optional fallback model.
func NewRouter(primary, fallback Model, logger *log.Logger) *Router {
	return &Router{
		primary:  primary,
		fallback: fallback,
		logger:   logging.Or(logger),
	}
}

// Open builds a router from configuration. The fallback model is
// optional and shares the primary's token budget.
func Open(ctx context.Context, cfg config.ModelConfig, logger *log.Logger) (*Router, error) {
	primary, err := NewFantasy(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var fallback Model
	if cfg.FallbackProvider != "" {
		fbCfg := cfg
		fbCfg.Provider = cfg.FallbackProvider
		fbCfg.Model = cfg.FallbackModel
		// The fallback provider reads its own conventional key env var.
		fbCfg.APIKeyEnv = ""
		fb, err := NewFantasy(ctx, fbCfg, logger)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeConfigInvalid,
				"fallback model misconfigured", errors.CategoryUser)
		}
		fallback = fb
	}

	return NewRouter(primary, fallback, logger), nil
}

// Name returns the primary model's name.
func (r *Router) Name() string { return r.primary.Name() }

// Generate implements Model.
func (r *Router) Generate(ctx context.Context, req *Request) (*Response, error) {
	if r.fallback == nil {
		return r.primary.Generate(ctx, req)
	}

	return errors.FallbackWithResult(
		func() (*Response, error) {
			return r.primary.Generate(ctx, req)
		},
		func(primaryErr error) (*Response, error) {
			if !shouldFallback(ctx, primaryErr) {
				return nil, primaryErr
			}
			r.logger.Warn("primary model failed, trying fallback",
				"primary", r.primary.Name(),
				"fallback", r.fallback.Name(),
				"error", primaryErr)
			resp, err := r.fallback.Generate(ctx, req)
			if err != nil {
				// Surface the primary failure; the fallback one is logged.
				r.logger.Error("fallback model failed",
					"model", r.fallback.Name(), "error", err)
				return nil, primaryErr
			}
			return resp, nil
		},
	)
}

// shouldFallback reports whether a primary failure is worth retrying on
// another model. Caller mistakes and canceled contexts fail the same
// way everywhere.
func shouldFallback(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return errors.GetCategory(err) != errors.CategoryUser
}
