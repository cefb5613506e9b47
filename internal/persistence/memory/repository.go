// Package memory keeps activities and resolutions in process memory. State is lost on restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"example.com/activityplanner/internal/domain"
)

// Repository implements domain.ActivityRepository and domain.ResolutionRepository over maps
// guarded by a RWMutex.
type Repository struct {
	mu          sync.RWMutex
	activities  map[string]domain.Activity
	history     map[string][]domain.HistoryEntry
	resolutions map[string]domain.Resolution
}

// NewRepository constructs a repository populated with seed activities.
func NewRepository(seed ...domain.Activity) *Repository {
	repo := &Repository{
		activities:  make(map[string]domain.Activity, len(seed)),
		history:     make(map[string][]domain.HistoryEntry, len(seed)),
		resolutions: make(map[string]domain.Resolution),
	}
	for _, activity := range seed {
		if activity.Version == 0 {
			activity.Version = 1
		}
		repo.activities[activity.ID] = activity.Clone()
		repo.history[activity.ID] = []domain.HistoryEntry{{
			ActivityID: activity.ID,
			Action:     domain.ActionCreate,
			To:         activity.Status,
			Actor:      activity.CreatedBy,
			At:         activity.CreatedAt,
		}}
	}
	return repo
}

// Create implements domain.ActivityRepository.
func (r *Repository) Create(ctx context.Context, activity domain.Activity, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.activities[activity.ID]; exists {
		return fmt.Errorf("activity %s already exists", activity.ID)
	}
	r.activities[activity.ID] = activity.Clone()
	r.history[activity.ID] = append(r.history[activity.ID], entry)
	return nil
}

// Get implements domain.ActivityRepository.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activity, ok := r.activities[id]
	if !ok {
		return nil, nil
	}
	out := activity.Clone()
	return &out, nil
}

// Replace implements domain.ActivityRepository.
func (r *Repository) Replace(ctx context.Context, activity domain.Activity, expectedVersion int, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.activities[activity.ID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	r.activities[activity.ID] = activity.Clone()
	r.history[activity.ID] = append(r.history[activity.ID], entry)
	return nil
}

// Delete implements domain.ActivityRepository. History outlives the record.
func (r *Repository) Delete(ctx context.Context, id string, expectedVersion int, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.activities[id]
	if !ok {
		return domain.ErrActivityNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	delete(r.activities, id)
	r.history[id] = append(r.history[id], entry)
	return nil
}

// List implements domain.ActivityRepository.
func (r *Repository) List(ctx context.Context, filter domain.ListFilter, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	r.mu.RLock()
	matches := make([]domain.Activity, 0, len(r.activities))
	for _, activity := range r.activities {
		if !filter.Matches(activity) {
			continue
		}
		if cursor != nil && !cursor.After(activity) {
			continue
		}
		matches = append(matches, activity.Clone())
	}
	r.mu.RUnlock()

	domain.SortActivities(matches)
	if limit <= 0 || len(matches) <= limit {
		return matches, nil, nil
	}
	page := matches[:limit]
	return page, domain.CursorFor(page[len(page)-1]), nil
}

// History implements domain.ActivityRepository.
func (r *Repository) History(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.history[id]), nil
}

// SeedResolutions stores resolutions as given, replacing any with the same ID.
func (r *Repository) SeedResolutions(seed ...domain.Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, resolution := range seed {
		if resolution.Version == 0 {
			resolution.Version = 1
		}
		r.resolutions[resolution.ID] = resolution.Clone()
	}
}

// CreateResolution implements domain.ResolutionRepository.
func (r *Repository) CreateResolution(ctx context.Context, resolution domain.Resolution, _ domain.ResolutionChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resolutions[resolution.ID]; exists {
		return fmt.Errorf("resolution %s already exists", resolution.ID)
	}
	r.resolutions[resolution.ID] = resolution.Clone()
	return nil
}

// GetResolution implements domain.ResolutionRepository.
func (r *Repository) GetResolution(ctx context.Context, id string) (*domain.Resolution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolution, ok := r.resolutions[id]
	if !ok {
		return nil, nil
	}
	out := resolution.Clone()
	return &out, nil
}

// ReplaceResolution implements domain.ResolutionRepository.
func (r *Repository) ReplaceResolution(ctx context.Context, resolution domain.Resolution, expectedVersion int, _ domain.ResolutionChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.resolutions[resolution.ID]
	if !ok {
		return domain.ErrResolutionNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	r.resolutions[resolution.ID] = resolution.Clone()
	return nil
}

// DeleteResolution implements domain.ResolutionRepository.
func (r *Repository) DeleteResolution(ctx context.Context, id string, expectedVersion int, _ domain.ResolutionChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.resolutions[id]
	if !ok {
		return domain.ErrResolutionNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	delete(r.resolutions, id)
	return nil
}

// ListResolutions implements domain.ResolutionRepository.
func (r *Repository) ListResolutions(ctx context.Context, filter domain.ResolutionFilter) ([]domain.Resolution, error) {
	r.mu.RLock()
	matches := make([]domain.Resolution, 0, len(r.resolutions))
	for _, resolution := range r.resolutions {
		if filter.Matches(resolution) {
			matches = append(matches, resolution.Clone())
		}
	}
	r.mu.RUnlock()

	domain.SortResolutions(matches)
	return matches, nil
}
