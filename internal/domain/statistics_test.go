package domain_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/activityplanner/internal/domain"
	"example.com/activityplanner/internal/logging"
	"example.com/activityplanner/internal/persistence/memory"
)

var ict = time.FixedZone("ICT", 7*60*60)

func statActivity(id string, status domain.Status, typ domain.ActivityType, unit string, start time.Time) domain.Activity {
	return domain.Activity{
		ID: id,
		ActivityFields: domain.ActivityFields{
			Name:           "Hội nghị " + id,
			Type:           typ,
			OrganizingUnit: unit,
			StartTime:      start,
			Location:       "Hội trường A",
		},
		Status:  status,
		Version: 1,
	}
}

func monthCount(stats domain.Statistics, month int) int {
	for _, m := range stats.ByMonth {
		if m.Month == month {
			return m.Count
		}
	}
	return -1
}

func TestComputeStatisticsCompletionRate(t *testing.T) {
	march := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name      string
		completed int
		total     int
		want      float64
	}{
		{name: "no activities", completed: 0, total: 0, want: 0},
		{name: "none completed", completed: 0, total: 4, want: 0},
		{name: "one third", completed: 1, total: 3, want: 33.3},
		{name: "two thirds", completed: 2, total: 3, want: 66.7},
		{name: "one eighth", completed: 1, total: 8, want: 12.5},
		{name: "one sixth", completed: 1, total: 6, want: 16.7},
		{name: "all completed", completed: 5, total: 5, want: 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var activities []domain.Activity
			for i := 0; i < tc.total; i++ {
				status := domain.StatusDraft
				if i < tc.completed {
					status = domain.StatusCompleted
				}
				activities = append(activities, statActivity(string(rune('a'+i)), status, domain.TypeConference, "Ban Tuyên giáo", march))
			}
			stats := domain.ComputeStatistics(2025, activities, time.UTC)
			require.Equal(t, tc.total, stats.Total)
			require.Equal(t, tc.completed, stats.Completed)
			require.InDelta(t, tc.want, stats.CompletionRate, 1e-9)
		})
	}
}

func TestComputeStatisticsCountsByStatusTypeUnitAndMonth(t *testing.T) {
	jan := time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)
	jun := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	activities := []domain.Activity{
		statActivity("a", domain.StatusDraft, domain.TypeSeminar, "Đoàn Thanh niên", jan),
		statActivity("b", domain.StatusPending, domain.TypeConference, "Ban Tuyên giáo", jan),
		statActivity("c", domain.StatusInProgress, domain.TypeConference, "Ban Tuyên giáo", jun),
		statActivity("d", domain.StatusResultPending, domain.TypeHCMCommitment, "Công đoàn", jun),
		statActivity("e", domain.StatusCompleted, domain.TypeSeminar, "Ban Tuyên giáo", jun),
		statActivity("old", domain.StatusCompleted, domain.TypeSeminar, "Ban Tuyên giáo", jan.AddDate(-1, 0, 0)),
	}

	stats := domain.ComputeStatistics(2025, activities, time.UTC)

	require.Equal(t, 2025, stats.Year)
	require.Equal(t, 5, stats.Total)
	require.Equal(t, 1, stats.Draft)
	require.Equal(t, 1, stats.Pending)
	require.Equal(t, 1, stats.InProgress)
	require.Equal(t, 1, stats.ResultPending)
	require.Equal(t, 1, stats.Completed)
	require.InDelta(t, 20.0, stats.CompletionRate, 1e-9)

	// Type order follows the fixed category list, not first appearance.
	require.Equal(t, []domain.TypeCount{
		{Type: domain.TypeConference, Count: 2},
		{Type: domain.TypeSeminar, Count: 2},
		{Type: domain.TypeHCMCommitment, Count: 1},
	}, stats.ByType)

	require.Equal(t, []domain.UnitCount{
		{Unit: "Ban Tuyên giáo", Count: 3, Percentage: 60},
		{Unit: "Công đoàn", Count: 1, Percentage: 20},
		{Unit: "Đoàn Thanh niên", Count: 1, Percentage: 20},
	}, stats.ByUnit)

	require.Len(t, stats.ByMonth, 12)
	require.Equal(t, 2, monthCount(stats, 1))
	require.Equal(t, 3, monthCount(stats, 6))
	require.Equal(t, 0, monthCount(stats, 12))
}

func TestComputeStatisticsZeroYearCoversEveryYear(t *testing.T) {
	activities := []domain.Activity{
		statActivity("a", domain.StatusCompleted, domain.TypeConference, "Ban Tuyên giáo", time.Date(2023, time.May, 1, 9, 0, 0, 0, time.UTC)),
		statActivity("b", domain.StatusDraft, domain.TypeConference, "Ban Tuyên giáo", time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)),
	}
	stats := domain.ComputeStatistics(0, activities, nil)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 2, monthCount(stats, 5))
	require.InDelta(t, 50.0, stats.CompletionRate, 1e-9)
}

func TestComputeStatisticsEmpty(t *testing.T) {
	stats := domain.ComputeStatistics(2025, nil, time.UTC)
	require.Zero(t, stats.Total)
	require.Zero(t, stats.CompletionRate)
	require.Empty(t, stats.ByType)
	require.Empty(t, stats.ByUnit)
	require.Len(t, stats.ByMonth, 12)
}

func TestComputeStatisticsBucketsOnLocalCalendar(t *testing.T) {
	// 05:00 on New Year's Day in Hanoi is still the previous year in UTC.
	start := time.Date(2025, time.January, 1, 5, 0, 0, 0, ict).UTC()
	activities := []domain.Activity{statActivity("a", domain.StatusDraft, domain.TypeConference, "Ban Tuyên giáo", start)}

	local := domain.ComputeStatistics(2025, activities, ict)
	require.Equal(t, 1, local.Total)
	require.Equal(t, 1, monthCount(local, 1))

	require.Zero(t, domain.ComputeStatistics(2024, activities, ict).Total)
	require.Zero(t, domain.ComputeStatistics(2025, activities, time.UTC).Total)
}

func TestYearBounds(t *testing.T) {
	from, to := domain.YearBounds(2025, ict)
	require.Equal(t, time.Date(2024, time.December, 31, 17, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2025, time.December, 31, 17, 0, 0, 0, time.UTC), to)

	from, to = domain.YearBounds(2025, nil)
	require.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestServiceStatisticsUsesConfiguredLocation(t *testing.T) {
	start := time.Date(2025, time.January, 1, 5, 0, 0, 0, ict).UTC()
	lateDec := time.Date(2025, time.December, 31, 23, 30, 0, 0, ict).UTC()
	seed := []domain.Activity{
		statActivity("new-year", domain.StatusDraft, domain.TypeConference, "Ban Tuyên giáo", start),
		statActivity("year-end", domain.StatusDraft, domain.TypeConference, "Ban Tuyên giáo", lateDec),
	}
	f := newFixtureWith([]domain.Option{domain.WithLocation(ict)}, seed...)

	stats, err := f.svc.Statistics(context.Background(), 2025)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, monthCount(stats, 1))
	require.Equal(t, 1, monthCount(stats, 12))

	previous, err := f.svc.Statistics(context.Background(), 2024)
	require.NoError(t, err)
	require.Zero(t, previous.Total)
}

type recordingCache struct {
	mu            sync.Mutex
	entries       map[string]domain.Statistics
	loads         int
	hits          int
	stores        int
	invalidations int
	invalidateErr error
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string]domain.Statistics)}
}

func (c *recordingCache) Load(_ context.Context, key string) (*domain.Statistics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	stats, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.hits++
	return &stats, true
}

func (c *recordingCache) Store(_ context.Context, key string, stats domain.Statistics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	c.entries[key] = stats
}

func (c *recordingCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	if c.invalidateErr != nil {
		return c.invalidateErr
	}
	clear(c.entries)
	return nil
}

func (c *recordingCache) counts() (loads, hits, stores, invalidations int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads, c.hits, c.stores, c.invalidations
}

func TestStatisticsReadsThroughCache(t *testing.T) {
	cache := newRecordingCache()
	f := newFixtureWith([]domain.Option{domain.WithStatisticsCache(cache)})
	ctx := context.Background()
	f.advance(t, domain.StatusDraft)
	_, _, _, baseInvalidations := cache.counts()

	first, err := f.svc.Statistics(ctx, 2025)
	require.NoError(t, err)
	require.Equal(t, 1, first.Total)
	loads, hits, stores, _ := cache.counts()
	require.Equal(t, 1, loads)
	require.Zero(t, hits)
	require.Equal(t, 1, stores)

	second, err := f.svc.Statistics(ctx, 2025)
	require.NoError(t, err)
	require.Equal(t, first, second)
	loads, hits, stores, invalidations := cache.counts()
	require.Equal(t, 2, loads)
	require.Equal(t, 1, hits)
	require.Equal(t, 1, stores)
	require.Equal(t, baseInvalidations, invalidations)

	// A write drops the memoised figures and the next read recomputes.
	f.advance(t, domain.StatusDraft)
	third, err := f.svc.Statistics(ctx, 2025)
	require.NoError(t, err)
	require.Equal(t, 2, third.Total)
	_, hits, stores, _ = cache.counts()
	require.Equal(t, 1, hits)
	require.Equal(t, 2, stores)
}

func TestEverySuccessfulWriteInvalidatesStatistics(t *testing.T) {
	cache := newRecordingCache()
	f := newFixtureWith([]domain.Option{domain.WithStatisticsCache(cache)})
	ctx := context.Background()

	invalidations := func() int {
		_, _, _, n := cache.counts()
		return n
	}

	created, err := f.svc.Create(ctx, actor, validInput())
	require.NoError(t, err)
	require.Equal(t, 1, invalidations())

	steps := []struct {
		name string
		run  func() error
	}{
		{"save draft", func() error { _, err := f.svc.SaveDraft(ctx, actor, created.ID, validInput()); return err }},
		{"send for approval", func() error { _, err := f.svc.SendForApproval(ctx, actor, created.ID, nil); return err }},
		{"edit", func() error { _, err := f.svc.Edit(ctx, actor, created.ID, validInput()); return err }},
		{"approve", func() error { _, err := f.svc.Approve(ctx, actor, created.ID, domain.AlwaysConfirm); return err }},
		{"update", func() error { _, err := f.svc.Update(ctx, actor, created.ID, validInput()); return err }},
		{"submit result", func() error { _, err := f.svc.SubmitResult(ctx, actor, created.ID, completeSubmission()); return err }},
		{"approve result", func() error { _, err := f.svc.ApproveResult(ctx, actor, created.ID, "ok"); return err }},
	}
	for i, step := range steps {
		require.NoError(t, step.run(), step.name)
		require.Equal(t, i+2, invalidations(), step.name)
	}

	// Rejected and declined actions leave the cache alone.
	before := invalidations()
	_, err = f.svc.Approve(ctx, actor, created.ID, domain.AlwaysConfirm)
	require.ErrorIs(t, err, domain.ErrTransitionNotAllowed)
	_, err = f.svc.Create(ctx, actor, domain.ActivityInput{})
	require.ErrorIs(t, err, domain.ErrValidation)
	draft := f.advance(t, domain.StatusDraft)
	before++
	require.ErrorIs(t, f.svc.Delete(ctx, actor, draft.ID, domain.NeverConfirm), domain.ErrDeclined)
	require.Equal(t, before, invalidations())

	require.NoError(t, f.svc.Delete(ctx, actor, draft.ID, domain.AlwaysConfirm))
	require.Equal(t, before+1, invalidations())
}

func TestInvalidationFailureIsLogged(t *testing.T) {
	cache := newRecordingCache()
	cache.invalidateErr = errors.New("redis unavailable")
	var buf bytes.Buffer
	f := newFixtureWith([]domain.Option{
		domain.WithStatisticsCache(cache),
		domain.WithLogger(logging.New(&buf, "warn", "json")),
	})

	_, err := f.svc.Create(context.Background(), actor, validInput())
	require.NoError(t, err)
	require.Contains(t, buf.String(), "statistics cache invalidation failed")
	require.Contains(t, buf.String(), "redis unavailable")
	require.Equal(t, domain.NoticeCreated, f.notifier.last().Key)
}

// writeDuringList performs one write right after the first listing, while statistics are
// being computed from the pre-write snapshot.
type writeDuringList struct {
	*memory.Repository
	once  sync.Once
	write func()
}

func (r *writeDuringList) List(ctx context.Context, filter domain.ListFilter, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	items, next, err := r.Repository.List(ctx, filter, cursor, limit)
	r.once.Do(r.write)
	return items, next, err
}

func TestStatisticsComputedAcrossAWriteAreNotCached(t *testing.T) {
	cache := newRecordingCache()
	repo := &writeDuringList{Repository: memory.NewRepository()}
	svc := domain.NewService(repo, testCatalog, domain.WithStatisticsCache(cache))
	ctx := context.Background()
	repo.write = func() {
		_, err := svc.Create(ctx, actor, validInput())
		require.NoError(t, err)
	}

	stale, err := svc.Statistics(ctx, 2025)
	require.NoError(t, err)
	require.Zero(t, stale.Total)
	_, _, stores, invalidations := cache.counts()
	require.Zero(t, stores)
	require.Equal(t, 1, invalidations)

	fresh, err := svc.Statistics(ctx, 2025)
	require.NoError(t, err)
	require.Equal(t, 1, fresh.Total)
	_, _, stores, _ = cache.counts()
	require.Equal(t, 1, stores)
}
