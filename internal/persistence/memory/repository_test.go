package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/activityplanner/internal/domain"
)

func seedActivities() []domain.Activity {
	base := time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)
	statuses := []domain.Status{
		domain.StatusDraft,
		domain.StatusPending,
		domain.StatusInProgress,
		domain.StatusResultPending,
		domain.StatusCompleted,
	}
	out := make([]domain.Activity, 0, 15)
	for i := 0; i < 15; i++ {
		out = append(out, domain.Activity{
			ID: fmt.Sprintf("act-%02d", i),
			ActivityFields: domain.ActivityFields{
				Name:           fmt.Sprintf("Hội nghị %d", i),
				Type:           domain.TypeConference,
				OrganizingUnit: []string{"Ban Tuyên giáo", "Đoàn Thanh niên"}[i%2],
				StartTime:      base.AddDate(0, 0, i),
				Location:       []string{"Hội trường A", "Phòng họp B", "Nhà văn hóa"}[i%3],
			},
			Status:    statuses[i%len(statuses)],
			CreatedBy: "seed",
			CreatedAt: base,
			UpdatedAt: base,
		})
	}
	return out
}

func TestListPaginatesByStartTimeDesc(t *testing.T) {
	repo := NewRepository(seedActivities()...)
	ctx := context.Background()

	page, next, err := repo.List(ctx, domain.ListFilter{}, nil, 10)
	require.NoError(t, err)
	require.Len(t, page, 10)
	require.NotNil(t, next)
	require.Equal(t, "act-14", page[0].ID)
	require.Equal(t, "act-05", page[9].ID)

	rest, next, err := repo.List(ctx, domain.ListFilter{}, next, 10)
	require.NoError(t, err)
	require.Nil(t, next)
	require.Len(t, rest, 5)
	require.Equal(t, "act-04", rest[0].ID)
	require.Equal(t, "act-00", rest[4].ID)
}

func TestListViews(t *testing.T) {
	repo := NewRepository(seedActivities()...)
	ctx := context.Background()

	planning, _, err := repo.List(ctx, domain.ListFilter{View: domain.ViewPlanning}, nil, 0)
	require.NoError(t, err)
	require.Len(t, planning, 12)
	for _, a := range planning {
		require.NotEqual(t, domain.StatusResultPending, a.Status)
	}

	results, _, err := repo.List(ctx, domain.ListFilter{View: domain.ViewResults}, nil, 0)
	require.NoError(t, err)
	require.Len(t, results, 6)
	for _, a := range results {
		require.Contains(t, []domain.Status{domain.StatusInProgress, domain.StatusResultPending}, a.Status)
	}
}

func TestListSearch(t *testing.T) {
	repo := NewRepository(seedActivities()...)
	ctx := context.Background()

	byUnit, _, err := repo.List(ctx, domain.ListFilter{Query: "đoàn thanh"}, nil, 0)
	require.NoError(t, err)
	require.Len(t, byUnit, 7)

	planningLocation, _, err := repo.List(ctx, domain.ListFilter{View: domain.ViewPlanning, Query: "nhà văn hóa"}, nil, 0)
	require.NoError(t, err)
	require.Empty(t, planningLocation)

	resultsLocation, _, err := repo.List(ctx, domain.ListFilter{View: domain.ViewResults, Query: "nhà văn hóa"}, nil, 0)
	require.NoError(t, err)
	require.NotEmpty(t, resultsLocation)
	for _, a := range resultsLocation {
		require.Equal(t, "Nhà văn hóa", a.Location)
	}
}

func TestListDateRange(t *testing.T) {
	repo := NewRepository(seedActivities()...)
	from := time.Date(2025, time.January, 12, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)

	items, _, err := repo.List(context.Background(), domain.ListFilter{From: from, To: to}, nil, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "act-04", items[0].ID)
	require.Equal(t, "act-02", items[2].ID)
}

func TestReplaceChecksVersion(t *testing.T) {
	seed := seedActivities()[:1]
	repo := NewRepository(seed...)
	ctx := context.Background()

	stored, err := repo.Get(ctx, seed[0].ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Version)

	stored.Name = "Đổi tên"
	stored.Version = 2
	require.NoError(t, repo.Replace(ctx, *stored, 1, domain.HistoryEntry{ActivityID: stored.ID, Action: domain.ActionSaveDraft}))
	require.ErrorIs(t, repo.Replace(ctx, *stored, 1, domain.HistoryEntry{}), domain.ErrVersionConflict)
	require.ErrorIs(t, repo.Delete(ctx, stored.ID, 1, domain.HistoryEntry{}), domain.ErrVersionConflict)

	history, err := repo.History(ctx, stored.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestGetReturnsCopies(t *testing.T) {
	repo := NewRepository(seedActivities()[:1]...)
	ctx := context.Background()

	first, err := repo.Get(ctx, "act-00")
	require.NoError(t, err)
	first.Name = "mutated"

	second, err := repo.Get(ctx, "act-00")
	require.NoError(t, err)
	require.Equal(t, "Hội nghị 0", second.Name)

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func seedResolutions() []domain.Resolution {
	issued := time.Date(2025, time.January, 15, 1, 0, 0, 0, time.UTC)
	return []domain.Resolution{
		{
			ID:       "res-01",
			Title:    "NQ 01-NQ/TW về phát triển kinh tế - xã hội 2025",
			Code:     "01-NQ/TW",
			IssuedAt: issued,
			Category: domain.StudyFull,
			Sessions: []domain.StudySession{{ID: "s-1", HeldAt: issued.AddDate(0, 0, 5), Participants: 234, Status: domain.SessionCompleted}},
		},
		{
			ID:       "res-05",
			Title:    "NQ 05-NQ/TW về công tác cán bộ",
			Code:     "05-NQ/TW",
			IssuedAt: issued.AddDate(0, 0, 10),
			Category: domain.StudyCompact,
			Sessions: []domain.StudySession{{ID: "s-2", HeldAt: issued.AddDate(0, 0, 20), Participants: 45, Status: domain.SessionPending}},
		},
		{
			ID:       "res-08",
			Title:    "NQ 08-NQ/TW về chuyển đổi số",
			Code:     "08-NQ/TW",
			IssuedAt: issued.AddDate(0, 0, 20),
			Category: domain.StudyFull,
		},
	}
}

func TestListResolutionsSortsAndFilters(t *testing.T) {
	repo := NewRepository()
	repo.SeedResolutions(seedResolutions()...)
	ctx := context.Background()

	all, err := repo.ListResolutions(ctx, domain.ResolutionFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"res-08", "res-05", "res-01"}, resolutionIDs(all))

	byCode, err := repo.ListResolutions(ctx, domain.ResolutionFilter{Query: "05-nq"})
	require.NoError(t, err)
	require.Equal(t, []string{"res-05"}, resolutionIDs(byCode))

	byTitle, err := repo.ListResolutions(ctx, domain.ResolutionFilter{Query: "CHUYỂN ĐỔI"})
	require.NoError(t, err)
	require.Equal(t, []string{"res-08"}, resolutionIDs(byTitle))

	for status, want := range map[domain.ResolutionStatus]string{
		domain.ResolutionApproved: "res-01",
		domain.ResolutionOngoing:  "res-05",
		domain.ResolutionOverdue:  "res-08",
	} {
		items, err := repo.ListResolutions(ctx, domain.ResolutionFilter{Status: status})
		require.NoError(t, err)
		require.Equal(t, []string{want}, resolutionIDs(items), status)
	}
}

func TestResolutionWritesCheckVersion(t *testing.T) {
	repo := NewRepository()
	repo.SeedResolutions(seedResolutions()...)
	ctx := context.Background()

	current, err := repo.GetResolution(ctx, "res-08")
	require.NoError(t, err)
	require.Equal(t, 1, current.Version)

	next := current.Clone()
	next.Code = "08-NQ/TW (sửa)"
	next.Version = 2
	require.NoError(t, repo.ReplaceResolution(ctx, next, 1, domain.ResolutionChange{}))
	require.ErrorIs(t, repo.ReplaceResolution(ctx, next, 1, domain.ResolutionChange{}), domain.ErrVersionConflict)
	require.ErrorIs(t, repo.DeleteResolution(ctx, "res-08", 1, domain.ResolutionChange{}), domain.ErrVersionConflict)

	require.NoError(t, repo.DeleteResolution(ctx, "res-08", 2, domain.ResolutionChange{}))
	gone, err := repo.GetResolution(ctx, "res-08")
	require.NoError(t, err)
	require.Nil(t, gone)
	require.ErrorIs(t, repo.ReplaceResolution(ctx, next, 2, domain.ResolutionChange{}), domain.ErrResolutionNotFound)
	require.ErrorIs(t, repo.DeleteResolution(ctx, "res-08", 2, domain.ResolutionChange{}), domain.ErrResolutionNotFound)

	require.Error(t, repo.CreateResolution(ctx, seedResolutions()[0], domain.ResolutionChange{}))
}

func TestGetResolutionReturnsCopies(t *testing.T) {
	repo := NewRepository()
	repo.SeedResolutions(seedResolutions()...)

	first, err := repo.GetResolution(context.Background(), "res-01")
	require.NoError(t, err)
	first.Sessions[0].Participants = 1
	first.Title = "changed"

	second, err := repo.GetResolution(context.Background(), "res-01")
	require.NoError(t, err)
	require.Equal(t, 234, second.Sessions[0].Participants)
	require.NotEqual(t, "changed", second.Title)
}

func resolutionIDs(items []domain.Resolution) []string {
	out := make([]string, 0, len(items))
	for _, r := range items {
		out = append(out, r.ID)
	}
	return out
}
