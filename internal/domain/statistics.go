package domain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// Statistics summarises activities starting in a year (all years when Year is zero).
type Statistics struct {
	Year           int
	Total          int
	Draft          int
	Pending        int
	InProgress     int
	ResultPending  int
	Completed      int
	CompletionRate float64
	ByType         []TypeCount
	ByUnit         []UnitCount
	ByMonth        []MonthCount
}

// TypeCount is the number of activities of one type.
type TypeCount struct {
	Type  ActivityType
	Count int
}

// UnitCount is the number of activities organised by one unit and its share of the total.
type UnitCount struct {
	Unit       string
	Count      int
	Percentage float64
}

// MonthCount is the number of activities starting in a month (1-12).
type MonthCount struct {
	Month int
	Count int
}

// StatisticsCache memoises computed statistics. Every mutation invalidates it.
type StatisticsCache interface {
	Load(ctx context.Context, key string) (*Statistics, bool)
	Store(ctx context.Context, key string, stats Statistics)
	Invalidate(ctx context.Context) error
}

type noopStatisticsCache struct{}

func (noopStatisticsCache) Load(context.Context, string) (*Statistics, bool) { return nil, false }
func (noopStatisticsCache) Store(context.Context, string, Statistics)        {}
func (noopStatisticsCache) Invalidate(context.Context) error                 { return nil }

// YearBounds returns the half-open range covering year on the wall clock of loc.
func YearBounds(year int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return from.UTC(), from.AddDate(1, 0, 0).UTC()
}

// StatisticsKey is the cache key for a year's statistics.
func StatisticsKey(year int) string {
	return fmt.Sprintf("statistics:%d", year)
}

// ComputeStatistics aggregates activities. Years and months are read on the wall clock of loc
// (UTC when nil). Activities outside year are ignored unless year is zero.
func ComputeStatistics(year int, activities []Activity, loc *time.Location) Statistics {
	if loc == nil {
		loc = time.UTC
	}
	stats := Statistics{Year: year}
	byType := make(map[ActivityType]int)
	byUnit := make(map[string]int)
	byMonth := make([]int, 12)

	for _, a := range activities {
		start := a.StartTime.In(loc)
		if year != 0 && start.Year() != year {
			continue
		}
		stats.Total++
		switch a.Status {
		case StatusDraft:
			stats.Draft++
		case StatusPending:
			stats.Pending++
		case StatusInProgress:
			stats.InProgress++
		case StatusResultPending:
			stats.ResultPending++
		case StatusCompleted:
			stats.Completed++
		}
		byType[a.Type]++
		byUnit[a.OrganizingUnit]++
		byMonth[int(start.Month())-1]++
	}

	stats.CompletionRate = percentage(stats.Completed, stats.Total)
	for _, t := range ActivityTypes {
		if n := byType[t]; n > 0 {
			stats.ByType = append(stats.ByType, TypeCount{Type: t, Count: n})
		}
	}
	for unit, n := range byUnit {
		stats.ByUnit = append(stats.ByUnit, UnitCount{Unit: unit, Count: n, Percentage: percentage(n, stats.Total)})
	}
	sort.Slice(stats.ByUnit, func(i, j int) bool {
		if stats.ByUnit[i].Count != stats.ByUnit[j].Count {
			return stats.ByUnit[i].Count > stats.ByUnit[j].Count
		}
		return stats.ByUnit[i].Unit < stats.ByUnit[j].Unit
	})
	for i, n := range byMonth {
		stats.ByMonth = append(stats.ByMonth, MonthCount{Month: i + 1, Count: n})
	}
	return stats
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(total)) / 10
}
