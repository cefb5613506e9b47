package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"example.com/activityplanner/internal/auth"
	"example.com/activityplanner/internal/domain"
)

// WithResolutions serves /v1/resolutions from svc.
func WithResolutions(svc *domain.ResolutionService) HandlerOption {
	return func(h *Handler) {
		h.resolutions = svc
	}
}

// ResolutionRequest is the payload for creating and editing a resolution.
type ResolutionRequest struct {
	Title       string              `json:"title"`
	Code        string              `json:"code"`
	IssuedAt    Timestamp           `json:"issued_at"`
	Deadline    *Timestamp          `json:"deadline,omitempty"`
	Category    string              `json:"category"`
	IssuedBy    string              `json:"issued_by"`
	Attachments []AttachmentPayload `json:"attachments"`
}

func (r ResolutionRequest) toInput() domain.ResolutionInput {
	input := domain.ResolutionInput{
		Title:    r.Title,
		Code:     r.Code,
		IssuedAt: r.IssuedAt.Time,
		Category: domain.StudyFormat(strings.TrimSpace(r.Category)),
		IssuedBy: r.IssuedBy,
	}
	if r.Deadline != nil && !r.Deadline.IsZero() {
		deadline := r.Deadline.Time
		input.Deadline = &deadline
	}
	if r.Attachments != nil {
		input.Attachments = toAttachments(r.Attachments)
	}
	return input
}

// SessionRequest schedules a study session.
type SessionRequest struct {
	HeldAt       Timestamp `json:"held_at"`
	Format       string    `json:"format"`
	Participants *int      `json:"participants"`
}

func (r SessionRequest) toInput() domain.SessionInput {
	return domain.SessionInput{
		HeldAt:       r.HeldAt.Time,
		Format:       domain.StudyFormat(strings.TrimSpace(r.Format)),
		Participants: r.Participants,
	}
}

// SessionOutcomeRequest is the optional payload for completing a session.
type SessionOutcomeRequest struct {
	Participants *int                `json:"participants,omitempty"`
	VideoURL     string              `json:"video_url,omitempty"`
	Documents    []AttachmentPayload `json:"documents,omitempty"`
}

func (r SessionOutcomeRequest) toOutcome() domain.SessionOutcome {
	outcome := domain.SessionOutcome{Participants: r.Participants, VideoURL: r.VideoURL}
	if r.Documents != nil {
		outcome.Documents = toAttachments(r.Documents)
	}
	return outcome
}

type SessionView struct {
	ID           string           `json:"id"`
	HeldAt       time.Time        `json:"held_at"`
	Format       string           `json:"format"`
	FormatLabel  string           `json:"format_label"`
	Participants int              `json:"participants"`
	Status       string           `json:"status"`
	VideoURL     string           `json:"video_url,omitempty"`
	Documents    []AttachmentView `json:"documents"`
}

// ResolutionView is the JSON representation of a resolution.
type ResolutionView struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Code          string           `json:"code"`
	IssuedAt      time.Time        `json:"issued_at"`
	Deadline      *time.Time       `json:"deadline,omitempty"`
	Category      string           `json:"category"`
	CategoryLabel string           `json:"category_label"`
	IssuedBy      string           `json:"issued_by"`
	Status        string           `json:"status"`
	StatusLabel   string           `json:"status_label"`
	Participants  int              `json:"participants"`
	Overdue       bool             `json:"overdue"`
	Attachments   []AttachmentView `json:"attachments"`
	Sessions      []SessionView    `json:"sessions"`
	CreatedBy     string           `json:"created_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Version       int              `json:"version"`
}

// ResolutionActionResponse is returned by every mutating resolution endpoint.
type ResolutionActionResponse struct {
	Resolution *ResolutionView `json:"resolution,omitempty"`
	Message    string          `json:"message,omitempty"`
	Notice     *NoticeView     `json:"notice,omitempty"`
}

type ResolutionListResponse struct {
	Items []ResolutionView `json:"items"`
}

func resolutionView(r domain.Resolution, catalog domain.Catalog, now time.Time) ResolutionView {
	view := ResolutionView{
		ID:            r.ID,
		Title:         r.Title,
		Code:          r.Code,
		IssuedAt:      r.IssuedAt,
		Deadline:      r.Deadline,
		Category:      string(r.Category),
		CategoryLabel: catalog.FormatLabel(r.Category),
		IssuedBy:      r.IssuedBy,
		Status:        string(r.Status()),
		StatusLabel:   catalog.ResolutionStatusLabel(r.Status()),
		Participants:  r.Participants(),
		Overdue:       r.Overdue(now),
		Attachments:   attachmentViews(r.Attachments),
		Sessions:      make([]SessionView, 0, len(r.Sessions)),
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Version:       r.Version,
	}
	for _, s := range r.Sessions {
		view.Sessions = append(view.Sessions, SessionView{
			ID:           s.ID,
			HeldAt:       s.HeldAt,
			Format:       string(s.Format),
			FormatLabel:  catalog.FormatLabel(s.Format),
			Participants: s.Participants,
			Status:       string(s.Status),
			VideoURL:     s.VideoURL,
			Documents:    attachmentViews(s.Documents),
		})
	}
	return view
}

func (h *Handler) resolutionRoutes(r chi.Router) {
	r.With(requireScope(auth.ScopeActivitiesRead)).Get("/", h.listResolutions)
	r.With(requireScope(auth.ScopeActivitiesWrite)).Post("/", h.createResolution)

	r.Route("/{id}", func(r chi.Router) {
		r.With(requireScope(auth.ScopeActivitiesRead)).Get("/", h.getResolution)
		r.With(requireScope(auth.ScopeActivitiesWrite)).Put("/", h.updateResolution)
		r.With(requireScope(auth.ScopeActivitiesWrite)).Delete("/", h.deleteResolution)
		r.With(requireScope(auth.ScopeActivitiesWrite)).Post("/sessions", h.addSession)
		r.With(requireScope(auth.ScopeActivitiesWrite)).Post("/sessions/{sessionID}/complete", h.completeSession)
	})
}

func (h *Handler) listResolutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ResolutionFilter{
		Query:  strings.TrimSpace(q.Get("q")),
		Status: domain.ResolutionStatus(strings.TrimSpace(q.Get("status"))),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown status "+string(filter.Status))
		return
	}
	items, err := h.resolutions.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	catalog, now := h.service.Catalog(), time.Now()
	resp := ResolutionListResponse{Items: make([]ResolutionView, 0, len(items))}
	for _, res := range items {
		resp.Items = append(resp.Items, resolutionView(res, catalog, now))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createResolution(w http.ResponseWriter, r *http.Request) {
	var req ResolutionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	resolution, err := h.resolutions.Create(r.Context(), actorFrom(r), req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeResolution(w, r, http.StatusCreated, resolution)
}

func (h *Handler) getResolution(w http.ResponseWriter, r *http.Request) {
	resolution, err := h.resolutions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolutionView(*resolution, h.service.Catalog(), time.Now()))
}

func (h *Handler) updateResolution(w http.ResponseWriter, r *http.Request) {
	var req ResolutionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	resolution, err := h.resolutions.Update(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeResolution(w, r, http.StatusOK, resolution)
}

func (h *Handler) deleteResolution(w http.ResponseWriter, r *http.Request) {
	if err := h.resolutions.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id"), requestConfirmer(r)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeResolution(w, r, http.StatusOK, nil)
}

func (h *Handler) addSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	resolution, err := h.resolutions.AddSession(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeResolution(w, r, http.StatusCreated, resolution)
}

func (h *Handler) completeSession(w http.ResponseWriter, r *http.Request) {
	var req SessionOutcomeRequest
	switch err := decodeBody(w, r, &req); {
	case err == nil, errors.Is(err, errEmptyBody):
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	resolution, err := h.resolutions.CompleteSession(r.Context(), actorFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "sessionID"), req.toOutcome())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeResolution(w, r, http.StatusOK, resolution)
}

func (h *Handler) writeResolution(w http.ResponseWriter, r *http.Request, status int, resolution *domain.Resolution) {
	resp := ResolutionActionResponse{}
	resp.Message, resp.Notice = h.message(r)
	if resolution != nil {
		view := resolutionView(*resolution, h.service.Catalog(), time.Now())
		resp.Resolution = &view
	}
	writeJSON(w, status, resp)
}
