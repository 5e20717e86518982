// Package model provides LLM inference for Otto agents.
//
// A single Model interface fronts the fantasy multi-provider client;
// Router layers primary/fallback selection on top of it.
package model

import "context"

// Model generates responses from an LLM.
type Model interface {
	// Generate runs one inference round trip.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Name returns the provider-qualified model name.
	Name() string
}
