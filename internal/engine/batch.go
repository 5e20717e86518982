package engine

import (
	"context"
	"sync"

	"github.com/otto-ai/otto/internal/tools"
)

type batchItem struct {
	index int
	req   tools.Request
}

// partition splits requests into groups by GroupKey, preserving the
// order keys first appear. A blank key never joins a shared group: each
// keyless request becomes its own singleton.
func partition(reqs []tools.Request) [][]batchItem {
	var groups [][]batchItem
	byKey := make(map[string]int)

	for i, req := range reqs {
		item := batchItem{index: i, req: req}
		if req.GroupKey == "" {
			groups = append(groups, []batchItem{item})
			continue
		}
		gi, ok := byKey[req.GroupKey]
		if !ok {
			gi = len(groups)
			byKey[req.GroupKey] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], item)
	}
	return groups
}

// DispatchBatch executes a batch of requests. Groups run one after
// another in first-appearance order; members of a group run
// concurrently, capped by the engine's concurrency limit. The returned
// slice matches the input slice position for position.
func (e *Engine) DispatchBatch(ctx context.Context, reqs []tools.Request) []*tools.Result {
	if len(reqs) == 0 {
		return nil
	}

	ctx, span := e.startBatchSpan(ctx, len(reqs))
	defer span.End()

	results := make([]*tools.Result, len(reqs))
	for _, group := range partition(reqs) {
		if len(group) == 1 {
			item := group[0]
			results[item.index] = e.Dispatch(ctx, item.req)
			continue
		}
		e.dispatchGroup(ctx, group, results)
	}
	return results
}

func (e *Engine) dispatchGroup(ctx context.Context, group []batchItem, results []*tools.Result) {
	sem := make(chan struct{}, e.limit)
	var wg sync.WaitGroup

	for _, item := range group {
		wg.Add(1)
		go func(item batchItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[item.index] = e.Dispatch(ctx, item.req)
		}(item)
	}
	wg.Wait()
}
