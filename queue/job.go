package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Entry is one example to submit.
type Entry struct {
	ID      string
	Example any
}

// NewJob builds the work items of one batch under a fresh job id.
func NewJob(kind string, entries []Entry) (string, []WorkItem, error) {
	jobID := uuid.NewString()
	now := time.Now().UnixMilli()

	items := make([]WorkItem, len(entries))
	for i, e := range entries {
		data, err := json.Marshal(e.Example)
		if err != nil {
			return "", nil, fmt.Errorf("failed to marshal example %s: %w", e.ID, err)
		}
		items[i] = WorkItem{
			JobID:       jobID,
			Index:       i,
			Total:       len(entries),
			Kind:        kind,
			ExampleID:   e.ID,
			Example:     data,
			SubmittedAt: now,
		}
	}
	return jobID, items, nil
}

// Submit pushes a batch and waits for all of its results. It subscribes
// before pushing so no result is missed. Results are ordered by index.
func Submit(ctx context.Context, c Client, kind string, entries []Entry) ([]Result, error) {
	jobID, items, err := NewJob(kind, entries)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := c.Subscribe(subCtx, ResultChannel(jobID))
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if err := c.Push(ctx, QueueName(kind), item); err != nil {
			return nil, err
		}
	}
	return Collect(ctx, results, len(items))
}

// Collect reads results until total distinct indexes have arrived or ctx
// ends. A duplicate index keeps the first result.
func Collect(ctx context.Context, results <-chan Result, total int) ([]Result, error) {
	seen := make(map[int]Result, total)
	for len(seen) < total {
		select {
		case <-ctx.Done():
			return sortedResults(seen), fmt.Errorf("collected %d of %d results: %w", len(seen), total, ctx.Err())
		case r, ok := <-results:
			if !ok {
				return sortedResults(seen), fmt.Errorf("result channel closed after %d of %d results", len(seen), total)
			}
			if _, dup := seen[r.Index]; !dup {
				seen[r.Index] = r
			}
		}
	}
	return sortedResults(seen), nil
}

func sortedResults(m map[int]Result) []Result {
	out := make([]Result, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
