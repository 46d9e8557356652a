package testkit

import (
	"context"
	"sort"
	"sync"

	"gopattern/domain/core"
	"gopattern/domain/discovery"
	"gopattern/ports"
)

// InMemoryRunRepository implements ports.RunRepository in memory for tests and for
// running the API without a database.
type InMemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[core.RunID]*discovery.AnalysisRun
}

// NewInMemoryRunRepository creates an empty repository
func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{runs: make(map[core.RunID]*discovery.AnalysisRun)}
}

var _ ports.RunRepository = (*InMemoryRunRepository)(nil)

func (r *InMemoryRunRepository) SaveRun(ctx context.Context, run *discovery.AnalysisRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *run
	stored.Patterns = append([]discovery.ValidatedPattern(nil), run.Patterns...)
	r.runs[run.ID] = &stored
	return nil
}

func (r *InMemoryRunRepository) GetRun(ctx context.Context, id core.RunID) (*discovery.AnalysisRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	out := *run
	return &out, nil
}

func (r *InMemoryRunRepository) ListRuns(ctx context.Context, filters ports.RunFilters) ([]ports.RunListItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []ports.RunListItem
	for _, run := range r.runs {
		if filters.Outcome != "" && run.Outcome != filters.Outcome {
			continue
		}
		if filters.Status != "" && run.Status != filters.Status {
			continue
		}
		items = append(items, ports.RunListItem{
			ID:          run.ID,
			Outcome:     run.Outcome,
			Status:      run.Status,
			Patterns:    len(run.Patterns),
			DatasetSize: run.Summary.DatasetSize,
			Fingerprint: run.Fingerprint,
			CreatedAt:   run.CreatedAt,
		})
	}
	// newest first, matching the SQL repository
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[j].CreatedAt.Before(items[i].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(items) {
			return []ports.RunListItem{}, nil
		}
		items = items[filters.Offset:]
	}
	if filters.Limit > 0 && len(items) > filters.Limit {
		items = items[:filters.Limit]
	}
	return items, nil
}

func (r *InMemoryRunRepository) DeleteRun(ctx context.Context, id core.RunID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[id]; !ok {
		return core.ErrRunNotFound
	}
	delete(r.runs, id)
	return nil
}
