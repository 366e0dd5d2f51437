package cases

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores cases in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]AssessmentCase
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]AssessmentCase), now: time.Now}
}

// Create stores the case.
func (r *MemoryRepo) Create(ctx context.Context, c AssessmentCase) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c.clone()
	return nil
}

// Get returns a case by its ID.
func (r *MemoryRepo) Get(ctx context.Context, id string) (AssessmentCase, error) {
	if err := ctx.Err(); err != nil {
		return AssessmentCase{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return AssessmentCase{}, ErrNotFound
	}
	return c.clone(), nil
}

// Update applies a patch and returns the stored result.
func (r *MemoryRepo) Update(ctx context.Context, id string, p Patch) (AssessmentCase, error) {
	if err := ctx.Err(); err != nil {
		return AssessmentCase{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return AssessmentCase{}, ErrNotFound
	}
	p.apply(&c, r.now())
	r.byID[id] = c
	return c.clone(), nil
}

// Delete removes a case.
func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// List returns cases of a module, most recently updated first. An empty
// module type lists every case.
func (r *MemoryRepo) List(ctx context.Context, moduleType string) ([]AssessmentCase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]AssessmentCase, 0, len(r.byID))
	for _, c := range r.byID {
		if moduleType == "" || c.ModuleType == moduleType {
			out = append(out, c.clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	return out, nil
}

// RewriteID moves a case to a new id.
func (r *MemoryRepo) RewriteID(ctx context.Context, oldID, newID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[oldID]
	if !ok {
		return ErrNotFound
	}
	if _, taken := r.byID[newID]; taken {
		return ErrInvalidInput
	}
	delete(r.byID, oldID)
	c.ID = newID
	c.LegacyID = oldID
	c.LastUpdated = r.now().UTC()
	r.byID[newID] = c
	return nil
}
