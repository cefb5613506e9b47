package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"example.com/activityplanner/internal/domain"
	"example.com/activityplanner/internal/notify"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Type    string            `json:"type"`
	Detail  string            `json:"detail"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Input   string            `json:"input,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{Type: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// message renders the most recent notice raised while serving r.
func (h *Handler) message(r *http.Request) (string, *NoticeView) {
	collector := notify.CollectorFrom(r.Context())
	if collector == nil {
		return "", nil
	}
	notice, ok := collector.Last()
	if !ok {
		return "", nil
	}
	text := h.translator.Render(locale(r), notice)
	return text, &NoticeView{Level: string(notice.Level), Key: notice.Key, Message: text}
}

// writeDomainError maps lifecycle failures to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	body := ErrorResponse{Detail: err.Error()}
	body.Message, _ = h.message(r)

	var validationErr *domain.ValidationError
	var missingErr *domain.MissingInputError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusUnprocessableEntity
		body.Type = "validation_failed"
		body.Fields = h.translator.Fields(locale(r), validationErr.Fields)
	case errors.As(err, &missingErr):
		status = http.StatusUnprocessableEntity
		body.Type = "missing_input"
		body.Input = missingErr.Input
	case errors.Is(err, domain.ErrTransitionNotAllowed):
		status = http.StatusConflict
		body.Type = "transition_not_allowed"
	case errors.Is(err, domain.ErrDeclined):
		status = http.StatusPreconditionRequired
		body.Type = "confirmation_required"
		body.Detail = "confirm with the X-Confirm header or ?confirm=true"
	case errors.Is(err, domain.ErrActivityNotFound), errors.Is(err, domain.ErrResolutionNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
		body.Type = "not_found"
	case errors.Is(err, domain.ErrVersionConflict):
		status = http.StatusConflict
		body.Type = "version_conflict"
	default:
		body.Type = "server_error"
		h.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}
