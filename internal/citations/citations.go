// Package citations extracts source attributions from finished tool
// results. Extraction is a pure pass that runs after a batch completes;
// it never mutates results and its absence never affects dispatch.
package citations

import (
	"encoding/json"

	"github.com/otto-ai/otto/internal/tools"
)

// Kind tags the medium a source came from.
type Kind int

const (
	KindWeb Kind = iota
	KindFile
)

// String returns the wire tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindWeb:
		return "web"
	case KindFile:
		return "file"
	}
	return "unknown"
}

// MarshalJSON encodes the kind as its wire tag.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Source is one citable reference extracted from a tool result.
type Source struct {
	Kind      Kind   `json:"kind"`
	Reference string `json:"reference"`
	Title     string `json:"title,omitempty"`
}

// Provider is implemented by tool outputs that know their own sources.
// Detection is by type assertion, never by tool name.
type Provider interface {
	CitationSources() []Source
}

// Extract collects the sources referenced by a batch of results. Failed
// results are skipped, and duplicates (same kind and reference)
// collapse to their first occurrence.
func Extract(results []*tools.Result) []Source {
	var out []Source
	seen := make(map[string]struct{})

	add := func(src Source) {
		if src.Reference == "" {
			return
		}
		key := src.Kind.String() + "\x00" + src.Reference
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, src)
	}

	for _, res := range results {
		if res == nil || !res.Success {
			continue
		}
		if provider, ok := res.Output.(Provider); ok {
			for _, src := range provider.CitationSources() {
				add(src)
			}
		}
		for _, f := range res.Files {
			add(Source{Kind: KindFile, Reference: f.Path, Title: f.Label})
		}
	}
	return out
}
