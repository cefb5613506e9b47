// Package api exposes HTTP handlers for the activity planner.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/activityplanner/internal/auth"
	"example.com/activityplanner/internal/domain"
	"example.com/activityplanner/internal/export"
	"example.com/activityplanner/internal/logging"
	"example.com/activityplanner/internal/notify"
	"example.com/activityplanner/internal/persistence"
	"example.com/activityplanner/internal/storage"
)

// Detail view layouts.
const (
	ModeTabbed     = "tabbed"
	ModeComparison = "comparison"
)

// AttachmentSigner issues presigned attachment URLs.
type AttachmentSigner interface {
	PresignUpload(ctx context.Context, activityID, fileName, contentType string) (storage.Upload, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service     *domain.Service
	resolutions *domain.ResolutionService
	translator  *notify.Translator
	signer      AttachmentSigner
	log         logging.Logger
	origin      string
}

// HandlerOption customises a Handler.
type HandlerOption func(*Handler)

// WithSigner enables attachment presigning.
func WithSigner(s AttachmentSigner) HandlerOption {
	return func(h *Handler) {
		h.signer = s
	}
}

// WithLogger sets the request logger.
func WithLogger(log logging.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithAllowedOrigin sets the CORS origin.
func WithAllowedOrigin(origin string) HandlerOption {
	return func(h *Handler) {
		h.origin = origin
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, translator *notify.Translator, opts ...HandlerOption) *Handler {
	h := &Handler{service: service, translator: translator, log: logging.Nop(), origin: "*"}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router wires every endpoint behind authentication and per-route scope checks.
func (h *Handler) Router(authn auth.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))
	r.Use(cors(h.origin))
	authn.OnFailure = func(w http.ResponseWriter, _ *http.Request, err error) {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	}
	r.Use(authn.Wrap)
	r.Use(collectNotices)

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.With(requireScope(auth.ScopeActivitiesRead)).Get("/catalog", h.catalog)
		r.With(requireScope(auth.ScopeActivitiesRead)).Get("/statistics", h.statistics)

		r.Route("/activities", func(r chi.Router) {
			r.With(requireScope(auth.ScopeActivitiesRead)).Get("/", h.listActivities)
			r.With(requireScope(auth.ScopeActivitiesRead)).Get("/export", h.exportActivities)
			r.With(requireScope(auth.ScopeActivitiesWrite)).Post("/", h.createActivity)

			r.Route("/{id}", func(r chi.Router) {
				r.With(requireScope(auth.ScopeActivitiesRead)).Get("/", h.getActivity)
				r.With(requireScope(auth.ScopeActivitiesRead)).Get("/history", h.history)
				r.With(requireScope(auth.ScopeActivitiesWrite)).Put("/", h.saveActivity)
				r.With(requireScope(auth.ScopeActivitiesWrite)).Delete("/", h.deleteActivity)
				r.With(requireScope(auth.ScopeActivitiesWrite)).Post("/send-for-approval", h.sendForApproval)
				r.With(requireScope(auth.ScopeActivitiesWrite)).Post("/complete", h.complete)
				r.With(requireScope(auth.ScopeActivitiesWrite)).Post("/result", h.submitResult)
				r.With(requireScope(auth.ScopeActivitiesWrite)).Post("/attachments/presign", h.presignAttachment)
				r.With(requireScope(auth.ScopeActivitiesApprove)).Post("/approve", h.approve)
				r.With(requireScope(auth.ScopeActivitiesApprove)).Post("/approve-result", h.approveResult)
			})
		})

		if h.resolutions != nil {
			r.Route("/resolutions", h.resolutionRoutes)
		}
	})
	return r
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) catalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalogView(h.service.Catalog()))
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	year := time.Now().In(export.Location).Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "year must be a non-negative integer")
			return
		}
		year = parsed
	}
	stats, err := h.service.Statistics(r.Context(), year)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsView(stats, h.service.Catalog()))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	limit := domain.DefaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"), filter)
	if err != nil {
		detail := "invalid cursor"
		if errors.Is(err, persistence.ErrCursorFilter) {
			detail = "cursor belongs to a different filter, restart from the first page"
		}
		writeError(w, http.StatusBadRequest, "invalid_request", detail)
		return
	}

	items, next, err := h.service.List(r.Context(), filter, cursor, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	catalog := h.service.Catalog()
	resp := ListResponse{Items: make([]ActivityView, 0, len(items)), NextCursor: persistence.EncodeCursor(next, filter)}
	for _, a := range items {
		resp.Items = append(resp.Items, activityView(a, catalog))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) exportActivities(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	items, err := h.service.ListAll(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteActivities(&buf, items, h.service.Catalog()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(time.Now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	actor := actorFrom(r)
	activity, err := h.service.Create(r.Context(), actor, req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if truthy(r.URL.Query().Get("submit")) {
		activity, err = h.service.SendForApproval(r.Context(), actor, activity.ID, nil)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
	}
	h.writeAction(w, r, http.StatusCreated, activity)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	mode := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("mode")))
	if mode == "" {
		mode = ModeTabbed
	}
	if mode != ModeTabbed && mode != ModeComparison {
		writeError(w, http.StatusBadRequest, "invalid_request", "mode must be tabbed or comparison")
		return
	}

	activity, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	resp := DetailResponse{Mode: mode, Activity: activityView(*activity, h.service.Catalog())}
	if mode == ModeComparison {
		resp.Comparison = comparisonRows(*activity, h.service.Catalog(), export.Location)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	history, err := h.service.History(r.Context(), activity.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	resp.History = historyViews(history)
	h.signDownloads(r.Context(), &resp.Activity)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyViews(entries))
}

func (h *Handler) saveActivity(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	activity, err := h.service.Save(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeAction(w, r, http.StatusOK, activity)
}

func (h *Handler) sendForApproval(w http.ResponseWriter, r *http.Request) {
	var input *domain.ActivityInput
	var req ActivityRequest
	switch err := decodeBody(w, r, &req); {
	case errors.Is(err, errEmptyBody):
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	default:
		in := req.toInput()
		input = &in
	}
	activity, err := h.service.SendForApproval(r.Context(), actorFrom(r), chi.URLParam(r, "id"), input)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeAction(w, r, http.StatusOK, activity)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	activity, err := h.service.Approve(r.Context(), actorFrom(r), chi.URLParam(r, "id"), requestConfirmer(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeAction(w, r, http.StatusOK, activity)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	activity, err := h.service.Complete(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeAction(w, r, http.StatusOK, activity)
}

func (h *Handler) submitResult(w http.ResponseWriter, r *http.Request) {
	var req ResultRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	activity, err := h.service.SubmitResult(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.toSubmission())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeAction(w, r, http.StatusOK, activity)
}

func (h *Handler) approveResult(w http.ResponseWriter, r *http.Request) {
	var req ApproveResultRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	activity, err := h.service.ApproveResult(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Comments)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeAction(w, r, http.StatusOK, activity)
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id"), requestConfirmer(r)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeAction(w, r, http.StatusOK, nil)
}

func (h *Handler) presignAttachment(w http.ResponseWriter, r *http.Request) {
	if h.signer == nil {
		writeError(w, http.StatusServiceUnavailable, "storage_disabled", storage.ErrDisabled.Error())
		return
	}
	var req PresignRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	activity, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	upload, err := h.signer.PresignUpload(r.Context(), activity.ID, req.FileName, req.ContentType)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadView{Key: upload.Key, URL: upload.URL, Method: upload.Method, ExpiresAt: upload.ExpiresAt})
}

func (h *Handler) writeAction(w http.ResponseWriter, r *http.Request, status int, activity *domain.Activity) {
	resp := ActionResponse{}
	resp.Message, resp.Notice = h.message(r)
	if activity != nil {
		view := activityView(*activity, h.service.Catalog())
		resp.Activity = &view
	}
	writeJSON(w, status, resp)
}

// signDownloads attaches short-lived download links to stored attachments.
func (h *Handler) signDownloads(ctx context.Context, view *ActivityView) {
	if h.signer == nil {
		return
	}
	sign := func(a *AttachmentView) {
		if !strings.HasPrefix(a.URL, storage.KeyPrefix) {
			return
		}
		url, err := h.signer.PresignDownload(ctx, a.URL)
		if err != nil {
			h.log.Warn(ctx, "presign download failed", "key", a.URL, "error", err)
			return
		}
		a.DownloadURL = url
	}
	for i := range view.Attachments {
		sign(&view.Attachments[i])
	}
	if view.Result != nil {
		sign(&view.Result.ParticipantList)
		for i := range view.Result.Documents {
			sign(&view.Result.Documents[i])
		}
	}
}

func parseFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	filter := domain.ListFilter{
		View:   domain.View(strings.TrimSpace(q.Get("view"))),
		Query:  strings.TrimSpace(q.Get("q")),
		Status: domain.Status(strings.TrimSpace(q.Get("status"))),
		Type:   domain.ActivityType(strings.TrimSpace(q.Get("type"))),
		Unit:   strings.TrimSpace(q.Get("unit")),
	}
	if !filter.View.Valid() {
		return filter, fmt.Errorf("unknown view %q", filter.View)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return filter, fmt.Errorf("unknown status %q", filter.Status)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return filter, fmt.Errorf("unknown type %q", filter.Type)
	}
	from, err := parseDate(q.Get("from"))
	if err != nil {
		return filter, fmt.Errorf("from: %w", err)
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		return filter, fmt.Errorf("to: %w", err)
	}
	filter.From = from
	if !to.IsZero() {
		// to is inclusive of the whole day.
		filter.To = to.AddDate(0, 0, 1)
	}
	return filter, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, export.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", raw)
	}
	return parsed.UTC(), nil
}
