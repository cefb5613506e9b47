package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"example.com/activityplanner/internal/auth"
	"example.com/activityplanner/internal/domain"
	"example.com/activityplanner/internal/export"
	"example.com/activityplanner/internal/logging"
	"example.com/activityplanner/internal/notify"
	"example.com/activityplanner/internal/persistence/memory"
	"example.com/activityplanner/internal/storage"
)

var (
	testAuth    = auth.Config{Secret: "handler-secret", Issuer: "activityplanner-test"}
	testCatalog = domain.Catalog{
		StatusLabels: map[domain.Status]string{domain.StatusPending: "Chờ duyệt"},
		TypeLabels:   map[domain.ActivityType]string{domain.TypeConference: "Hội nghị"},
		Units:        []string{"Ban Tuyên giáo", "Đoàn Thanh niên"},
	}
	allScopes = []string{auth.ScopeActivitiesApprove}
)

type fakeSigner struct{}

func (fakeSigner) PresignUpload(_ context.Context, activityID, fileName, _ string) (storage.Upload, error) {
	return storage.Upload{
		Key:       storage.KeyPrefix + activityID + "/k/" + fileName,
		URL:       "https://s3.test/upload",
		Method:    http.MethodPut,
		ExpiresAt: time.Date(2025, 1, 1, 0, 15, 0, 0, time.UTC),
	}, nil
}

func (fakeSigner) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://s3.test/download/" + key, nil
}

type testServer struct {
	t      *testing.T
	router http.Handler
}

func newTestServer(t *testing.T, opts []HandlerOption, seed ...domain.Activity) *testServer {
	t.Helper()
	translator, err := notify.NewTranslator("vi")
	require.NoError(t, err)
	repo := memory.NewRepository(seed...)
	service := domain.NewService(repo, testCatalog,
		domain.WithNotifier(notify.NewNotifier(logging.Nop(), translator)),
		domain.WithLocation(export.Location),
	)
	opts = append([]HandlerOption{WithResolutions(service.Resolutions(repo))}, opts...)
	handler := NewHandler(service, translator, opts...)
	return &testServer{t: t, router: handler.Router(auth.NewMiddleware(testAuth))}
}

func token(t *testing.T, scopes ...string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "user-1",
		"name":   "Trần Thị B",
		"iss":    testAuth.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": scopes,
	}).SignedString([]byte(testAuth.Secret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(method, target string, body any, scopes []string, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if scopes != nil {
		req.Header.Set("Authorization", "Bearer "+token(s.t, scopes...))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func validBody() map[string]any {
	return map[string]any{
		"name":       "Quarterly Review",
		"start_time": "2025-03-01T09:00",
		"location":   "Room A",
		"participants": []map[string]any{
			{"name": "Lê Văn C", "position": "Chuyên viên", "unit": "Ban Tuyên giáo"},
		},
	}
}

func completeResult() map[string]any {
	return map[string]any{
		"implementation_content": "Held as planned",
		"conclusion":             "Objectives met",
		"participant_list":       map[string]any{"name": "attendees.xlsx", "size": 2048, "type": "application/vnd.ms-excel"},
	}
}

func TestHealthzIsOpen(t *testing.T) {
	s := newTestServer(t, nil)
	rr := s.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestRequiresTokenAndScope(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(http.MethodGet, "/v1/activities", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthorized", decode[ErrorResponse](t, rr).Type)

	rr = s.do(http.MethodOptions, "/v1/activities", nil, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(http.MethodPost, "/v1/activities", validBody(), []string{auth.ScopeActivitiesRead})
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "forbidden", decode[ErrorResponse](t, rr).Type)

	rr = s.do(http.MethodPost, "/v1/activities", validBody(), []string{auth.ScopeActivitiesWrite})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[ActionResponse](t, rr).Activity.ID

	rr = s.do(http.MethodPost, "/v1/activities/"+id+"/approve", nil, []string{auth.ScopeActivitiesWrite}, "X-Confirm", "true")
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCreateRejectsMissingFields(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(http.MethodPost, "/v1/activities?lang=en", map[string]any{"name": "  "}, allScopes)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	resp := decode[ErrorResponse](t, rr)
	require.Equal(t, "validation_failed", resp.Type)
	require.Equal(t, "Please fill in all required fields", resp.Message)
	require.Equal(t, "Please enter the activity name", resp.Fields["name"])
	require.Contains(t, resp.Fields, "startTime")
	require.Contains(t, resp.Fields, "location")

	list := decode[ListResponse](t, s.do(http.MethodGet, "/v1/activities", nil, allScopes))
	require.Empty(t, list.Items)
}

func TestCreateParsesLocalTimeAndDefaults(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(http.MethodPost, "/v1/activities?lang=en", validBody(), allScopes)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	resp := decode[ActionResponse](t, rr)
	require.Equal(t, "Activity created", resp.Message)
	require.Equal(t, "success", resp.Notice.Level)
	view := resp.Activity
	require.Equal(t, string(domain.StatusDraft), view.Status)
	require.Equal(t, string(domain.TypeConference), view.Type)
	require.Equal(t, "Hội nghị", view.TypeLabel)
	require.Equal(t, "Ban Tuyên giáo", view.OrganizingUnit)
	require.True(t, time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC).Equal(view.StartTime))
	require.Equal(t, "Trần Thị B", view.CreatedBy)
	require.Len(t, view.Participants, 1)
	require.NotEmpty(t, view.Participants[0].ID)
	require.Equal(t, []string{"save_draft", "send_for_approval", "delete"}, view.AllowedActions)
}

func TestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(http.MethodPost, "/v1/activities?submit=true", validBody(), allScopes)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[ActionResponse](t, rr).Activity
	require.Equal(t, string(domain.StatusPending), created.Status)
	require.Equal(t, "Chờ duyệt", created.StatusLabel)
	base := "/v1/activities/" + created.ID

	rr = s.do(http.MethodPost, base+"/approve", nil, allScopes)
	require.Equal(t, http.StatusPreconditionRequired, rr.Code)
	require.Equal(t, "confirmation_required", decode[ErrorResponse](t, rr).Type)

	rr = s.do(http.MethodPost, base+"/approve", nil, allScopes, "X-Confirm", "true")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, string(domain.StatusInProgress), decode[ActionResponse](t, rr).Activity.Status)

	rr = s.do(http.MethodPost, base+"/result?lang=en", map[string]any{"implementation_content": "Held"}, allScopes)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	missing := decode[ErrorResponse](t, rr)
	require.Equal(t, "missing_input", missing.Type)
	require.Equal(t, domain.InputConclusion, missing.Input)
	require.Equal(t, "Please provide the conclusion", missing.Message)

	rr = s.do(http.MethodPost, base+"/result", completeResult(), allScopes)
	require.Equal(t, http.StatusOK, rr.Code)
	submitted := decode[ActionResponse](t, rr).Activity
	require.Equal(t, string(domain.StatusResultPending), submitted.Status)
	require.Equal(t, "attendees.xlsx", submitted.Result.ParticipantList.Name)

	rr = s.do(http.MethodPut, base, validBody(), allScopes)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "transition_not_allowed", decode[ErrorResponse](t, rr).Type)

	rr = s.do(http.MethodPost, base+"/approve-result", map[string]any{"comments": "Good"}, allScopes)
	require.Equal(t, http.StatusOK, rr.Code)
	done := decode[ActionResponse](t, rr).Activity
	require.Equal(t, string(domain.StatusCompleted), done.Status)
	require.Equal(t, "Good", done.Result.ApprovalComments)
	require.Empty(t, done.AllowedActions)

	history := decode[[]HistoryView](t, s.do(http.MethodGet, base+"/history", nil, allScopes))
	actions := make([]string, 0, len(history))
	for _, h := range history {
		actions = append(actions, h.Action)
	}
	require.Equal(t, []string{"create", "send_for_approval", "approve", "submit_result", "approve_result"}, actions)
}

func TestSaveDispatchesByStatus(t *testing.T) {
	s := newTestServer(t, nil)

	created := decode[ActionResponse](t, s.do(http.MethodPost, "/v1/activities", validBody(), allScopes)).Activity
	body := validBody()
	body["location"] = "Room B"

	rr := s.do(http.MethodPut, "/v1/activities/"+created.ID+"?lang=en", body, allScopes)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[ActionResponse](t, rr)
	require.Equal(t, "Draft saved", resp.Message)
	require.Equal(t, "Room B", resp.Activity.Location)
	require.Equal(t, string(domain.StatusDraft), resp.Activity.Status)
	require.Equal(t, 2, resp.Activity.Version)
}

func TestSendForApprovalWithoutBodyRevalidates(t *testing.T) {
	s := newTestServer(t, nil)

	created := decode[ActionResponse](t, s.do(http.MethodPost, "/v1/activities", validBody(), allScopes)).Activity
	rr := s.do(http.MethodPost, "/v1/activities/"+created.ID+"/send-for-approval", nil, allScopes)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, string(domain.StatusPending), decode[ActionResponse](t, rr).Activity.Status)

	rr = s.do(http.MethodPost, "/v1/activities/"+created.ID+"/send-for-approval", nil, allScopes)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	s := newTestServer(t, nil)

	created := decode[ActionResponse](t, s.do(http.MethodPost, "/v1/activities", validBody(), allScopes)).Activity
	target := "/v1/activities/" + created.ID

	rr := s.do(http.MethodDelete, target, nil, allScopes)
	require.Equal(t, http.StatusPreconditionRequired, rr.Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, target, nil, allScopes).Code)

	rr = s.do(http.MethodDelete, target+"?confirm=true&lang=en", nil, allScopes)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[ActionResponse](t, rr)
	require.Equal(t, "Activity deleted", resp.Message)
	require.Nil(t, resp.Activity)

	rr = s.do(http.MethodGet, target, nil, allScopes)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", decode[ErrorResponse](t, rr).Type)
}

func TestDeleteForbiddenOnceInProgress(t *testing.T) {
	s := newTestServer(t, nil)

	created := decode[ActionResponse](t, s.do(http.MethodPost, "/v1/activities?submit=true", validBody(), allScopes)).Activity
	target := "/v1/activities/" + created.ID
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, target+"/approve", nil, allScopes, "X-Confirm", "yes").Code)

	rr := s.do(http.MethodDelete, target, nil, allScopes, "X-Confirm", "true")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "transition_not_allowed", decode[ErrorResponse](t, rr).Type)
}

func seedActivities(n int) []domain.Activity {
	base := time.Date(2025, time.April, 1, 2, 0, 0, 0, time.UTC)
	out := make([]domain.Activity, 0, n)
	for i := 0; i < n; i++ {
		status := domain.StatusDraft
		if i%3 == 0 {
			status = domain.StatusResultPending
		}
		out = append(out, domain.Activity{
			ID: fmt.Sprintf("seed-%02d", i),
			ActivityFields: domain.ActivityFields{
				Name:           fmt.Sprintf("Sinh hoạt chi bộ %d", i),
				Type:           domain.TypeSeminar,
				OrganizingUnit: testCatalog.Units[i%2],
				StartTime:      base.AddDate(0, 0, i),
				Location:       "Phòng họp " + string(rune('A'+i%3)),
			},
			Status:    status,
			CreatedAt: base,
			UpdatedAt: base,
		})
	}
	return out
}

func TestListPagesWithCursor(t *testing.T) {
	s := newTestServer(t, nil, seedActivities(12)...)

	first := decode[ListResponse](t, s.do(http.MethodGet, "/v1/activities?limit=5", nil, allScopes))
	require.Len(t, first.Items, 5)
	require.Equal(t, "seed-11", first.Items[0].ID)
	require.NotEmpty(t, first.NextCursor)

	second := decode[ListResponse](t, s.do(http.MethodGet, "/v1/activities?limit=5&cursor="+first.NextCursor, nil, allScopes))
	require.Len(t, second.Items, 5)
	require.Equal(t, "seed-06", second.Items[0].ID)

	third := decode[ListResponse](t, s.do(http.MethodGet, "/v1/activities?limit=5&cursor="+second.NextCursor, nil, allScopes))
	require.Len(t, third.Items, 2)
	require.Empty(t, third.NextCursor)

	rr := s.do(http.MethodGet, "/v1/activities?view=results&limit=5&cursor="+first.NextCursor, nil, allScopes)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decode[ErrorResponse](t, rr).Detail, "different filter")

	defaults := decode[ListResponse](t, s.do(http.MethodGet, "/v1/activities", nil, allScopes))
	require.Len(t, defaults.Items, domain.DefaultPageSize)
}

func TestListFilters(t *testing.T) {
	s := newTestServer(t, nil, seedActivities(12)...)

	results := decode[ListResponse](t, s.do(http.MethodGet, "/v1/activities?view=results&limit=100", nil, allScopes))
	require.Len(t, results.Items, 4)

	planning := decode[ListResponse](t, s.do(http.MethodGet, "/v1/activities?view=planning&limit=100", nil, allScopes))
	require.Len(t, planning.Items, 8)

	ranged := decode[ListResponse](t, s.do(http.MethodGet, "/v1/activities?from=2025-04-02&to=2025-04-04", nil, allScopes))
	require.Len(t, ranged.Items, 3)
	require.Equal(t, "seed-03", ranged.Items[0].ID)

	byUnit := decode[ListResponse](t, s.do(http.MethodGet, "/v1/activities?limit=100&q=%C4%91o%C3%A0n", nil, allScopes))
	require.Len(t, byUnit.Items, 6)

	for _, bad := range []string{"view=archive", "status=cancelled", "type=party", "from=01-04-2025", "limit=0", "cursor=%21%21"} {
		rr := s.do(http.MethodGet, "/v1/activities?"+bad, nil, allScopes)
		require.Equal(t, http.StatusBadRequest, rr.Code, bad)
	}
}

func TestDetailModes(t *testing.T) {
	s := newTestServer(t, nil)

	created := decode[ActionResponse](t, s.do(http.MethodPost, "/v1/activities?submit=true", validBody(), allScopes)).Activity
	target := "/v1/activities/" + created.ID
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, target+"/approve?confirm=1", nil, allScopes).Code)

	actual := validBody()
	actual["location"] = "Hall C"
	rr := s.do(http.MethodPost, target+"/complete", actual, allScopes)
	require.Equal(t, http.StatusOK, rr.Code)
	completed := decode[ActionResponse](t, rr).Activity
	require.Equal(t, "Room A", completed.Location)
	require.Equal(t, "Hall C", completed.Actual.Location)

	comparison := decode[DetailResponse](t, s.do(http.MethodGet, target+"?mode=comparison", nil, allScopes))
	require.Equal(t, ModeComparison, comparison.Mode)
	require.Empty(t, comparison.History)
	changed := map[string]bool{}
	for _, row := range comparison.Comparison {
		changed[row.Field] = row.Changed
	}
	require.True(t, changed["location"])
	require.False(t, changed["name"])
	require.Equal(t, "01/03/2025 09:00", comparison.Comparison[3].Planned)

	tabbed := decode[DetailResponse](t, s.do(http.MethodGet, target, nil, allScopes))
	require.Equal(t, ModeTabbed, tabbed.Mode)
	require.Len(t, tabbed.History, 4)
	require.Empty(t, tabbed.Comparison)

	require.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, target+"?mode=grid", nil, allScopes).Code)
}

func TestPresignAttachment(t *testing.T) {
	disabled := newTestServer(t, nil)
	created := decode[ActionResponse](t, disabled.do(http.MethodPost, "/v1/activities", validBody(), allScopes)).Activity
	rr := disabled.do(http.MethodPost, "/v1/activities/"+created.ID+"/attachments/presign", map[string]any{"file_name": "plan.pdf"}, allScopes)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "storage_disabled", decode[ErrorResponse](t, rr).Type)

	s := newTestServer(t, []HandlerOption{WithSigner(fakeSigner{})})
	created = decode[ActionResponse](t, s.do(http.MethodPost, "/v1/activities", validBody(), allScopes)).Activity
	target := "/v1/activities/" + created.ID

	rr = s.do(http.MethodPost, target+"/attachments/presign", map[string]any{"file_name": ""}, allScopes)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/v1/activities/missing/attachments/presign", map[string]any{"file_name": "plan.pdf"}, allScopes)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodPost, target+"/attachments/presign", map[string]any{"file_name": "plan.pdf", "content_type": "application/pdf", "size": 1024}, allScopes)
	require.Equal(t, http.StatusOK, rr.Code)
	upload := decode[UploadView](t, rr)
	require.Equal(t, http.MethodPut, upload.Method)
	require.True(t, strings.HasPrefix(upload.Key, storage.KeyPrefix+created.ID+"/"))

	body := validBody()
	body["attachments"] = []map[string]any{
		{"name": "plan.pdf", "size": 1024, "type": "application/pdf", "url": upload.Key},
		{"name": "link", "url": "https://example.org/agenda"},
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, target, body, allScopes).Code)

	detail := decode[DetailResponse](t, s.do(http.MethodGet, target, nil, allScopes))
	require.Len(t, detail.Activity.Attachments, 2)
	require.Equal(t, "https://s3.test/download/"+upload.Key, detail.Activity.Attachments[0].DownloadURL)
	require.Empty(t, detail.Activity.Attachments[1].DownloadURL)
}

func TestCatalogStatisticsAndExport(t *testing.T) {
	s := newTestServer(t, nil, seedActivities(6)...)

	catalog := decode[CatalogView](t, s.do(http.MethodGet, "/v1/catalog", nil, allScopes))
	require.Len(t, catalog.Statuses, len(domain.Statuses))
	require.Len(t, catalog.Types, len(domain.ActivityTypes))
	require.Equal(t, testCatalog.Units, catalog.Units)
	require.Equal(t, []string{"all", "planning", "results"}, catalog.Views)

	stats := decode[StatisticsView](t, s.do(http.MethodGet, "/v1/statistics?year=2025", nil, allScopes))
	require.Equal(t, 6, stats.Total)
	require.Equal(t, 2, stats.ResultPending)
	require.Equal(t, 6, stats.ByMonth[3])
	require.Len(t, stats.ByMonth, 12)

	require.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/statistics?year=abc", nil, allScopes).Code)

	rr := s.do(http.MethodGet, "/v1/activities/export?view=results", nil, allScopes)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, export.ContentType, rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")
	require.NotZero(t, rr.Body.Len())
}
