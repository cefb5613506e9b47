package domain

import (
	"slices"
	"strings"
	"time"
)

// View selects which statuses a list shows.
type View string

const (
	ViewAll      View = "all"
	ViewPlanning View = "planning"
	ViewResults  View = "results"
)

var viewStatuses = map[View][]Status{
	ViewPlanning: {StatusDraft, StatusPending, StatusInProgress, StatusCompleted},
	ViewResults:  {StatusInProgress, StatusResultPending},
}

// Valid reports whether v is a known view. The empty view means all.
func (v View) Valid() bool {
	switch v {
	case "", ViewAll, ViewPlanning, ViewResults:
		return true
	default:
		return false
	}
}

// Statuses returns the statuses visible in the view, or nil when every status is.
func (v View) Statuses() []Status {
	return viewStatuses[v]
}

// Pagination bounds for List.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListFilter narrows a listing. Zero values disable each criterion; To is exclusive.
type ListFilter struct {
	View   View
	Query  string
	Status Status
	Type   ActivityType
	Unit   string
	From   time.Time
	To     time.Time
}

// SearchesLocation reports whether free-text search also covers the location.
func (f ListFilter) SearchesLocation() bool {
	return f.View == ViewResults
}

// Matches reports whether a satisfies every criterion of f.
func (f ListFilter) Matches(a Activity) bool {
	if statuses := f.View.Statuses(); statuses != nil && !slices.Contains(statuses, a.Status) {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Unit != "" && a.OrganizingUnit != f.Unit {
		return false
	}
	if !f.From.IsZero() && a.StartTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.StartTime.Before(f.To) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		hit := strings.Contains(strings.ToLower(a.Name), q) ||
			strings.Contains(strings.ToLower(a.OrganizingUnit), q)
		if !hit && f.SearchesLocation() {
			hit = strings.Contains(strings.ToLower(a.Location), q)
		}
		if !hit {
			return false
		}
	}
	return true
}

// After reports whether a sorts past the cursor position in list order (start time desc, id desc).
func (c Cursor) After(a Activity) bool {
	if a.StartTime.Equal(c.StartTime) {
		return a.ID < c.ID
	}
	return a.StartTime.Before(c.StartTime)
}

// CursorFor returns the cursor positioned on a.
func CursorFor(a Activity) *Cursor {
	return &Cursor{StartTime: a.StartTime, ID: a.ID}
}

// SortActivities orders activities by start time desc, then id desc.
func SortActivities(items []Activity) {
	slices.SortFunc(items, func(a, b Activity) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
