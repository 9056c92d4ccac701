package pipeline

import (
	"sync"

	"github.com/affiliatehq/reporting-service/internal/models"
)

// Registry keeps finished batch results in memory for the HTTP surface.
// Bounded: oldest batches are evicted once maxRuns is exceeded.
type Registry struct {
	mu      sync.RWMutex
	runs    map[string]*models.BatchResult
	order   []string
	maxRuns int
}

// NewRegistry creates a registry retaining up to maxRuns batches
func NewRegistry(maxRuns int) *Registry {
	if maxRuns <= 0 {
		maxRuns = 50
	}
	return &Registry{
		runs:    make(map[string]*models.BatchResult),
		maxRuns: maxRuns,
	}
}

// Record stores one finished batch
func (r *Registry) Record(batch *models.BatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[batch.RunID] = batch
	r.order = append(r.order, batch.RunID)

	for len(r.order) > r.maxRuns {
		delete(r.runs, r.order[0])
		r.order = r.order[1:]
	}
}

// Get returns one batch by run ID
func (r *Registry) Get(runID string) (*models.BatchResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	batch, ok := r.runs[runID]
	return batch, ok
}

// Latest returns the most recently recorded batch
func (r *Registry) Latest() (*models.BatchResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return nil, false
	}
	return r.runs[r.order[len(r.order)-1]], true
}

// List returns all retained run IDs, oldest first
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
