package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"example.com/activityplanner/internal/domain"
	"example.com/activityplanner/internal/export"
)

const maxBodyBytes = 1 << 20

var localLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"}

// Timestamp accepts RFC 3339 or a local date-time as entered in a form. Local values are
// read in the service's display zone.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parseTime(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC(), nil
	}
	for _, layout := range localLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, export.Location); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", raw)
}

// ParticipantPayload is a participant as sent by clients.
type ParticipantPayload struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Unit     string `json:"unit"`
	Role     string `json:"role,omitempty"`
	Attended *bool  `json:"attended,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// AttachmentPayload is file metadata as sent by clients. URL holds the storage key returned
// by the presign endpoint.
type AttachmentPayload struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// ActivityRequest is the payload for create, edit and complete.
type ActivityRequest struct {
	Name           string               `json:"name"`
	Type           string               `json:"type"`
	OrganizingUnit string               `json:"organizing_unit"`
	StartTime      Timestamp            `json:"start_time"`
	EndTime        *Timestamp           `json:"end_time,omitempty"`
	Location       string               `json:"location"`
	Description    string               `json:"description"`
	Participants   []ParticipantPayload `json:"participants"`
	Attachments    []AttachmentPayload  `json:"attachments"`
}

func (r ActivityRequest) toInput() domain.ActivityInput {
	input := domain.ActivityInput{
		Fields: domain.ActivityFields{
			Name:           r.Name,
			Type:           domain.ActivityType(strings.TrimSpace(r.Type)),
			OrganizingUnit: r.OrganizingUnit,
			StartTime:      r.StartTime.Time,
			Location:       r.Location,
			Description:    r.Description,
		},
	}
	if r.EndTime != nil && !r.EndTime.IsZero() {
		end := r.EndTime.Time
		input.Fields.EndTime = &end
	}
	if r.Participants != nil {
		input.Participants = make([]domain.Participant, 0, len(r.Participants))
		for _, p := range r.Participants {
			input.Participants = append(input.Participants, domain.Participant{
				ID:       p.ID,
				Name:     p.Name,
				Position: p.Position,
				Unit:     p.Unit,
				Role:     p.Role,
				Attended: p.Attended,
				Notes:    p.Notes,
			})
		}
	}
	if r.Attachments != nil {
		input.Attachments = toAttachments(r.Attachments)
	}
	return input
}

func toAttachments(in []AttachmentPayload) []domain.FileAttachment {
	out := make([]domain.FileAttachment, 0, len(in))
	for _, a := range in {
		out = append(out, a.toDomain())
	}
	return out
}

func (a AttachmentPayload) toDomain() domain.FileAttachment {
	return domain.FileAttachment{ID: a.ID, Name: a.Name, Size: a.Size, Type: a.Type, URL: a.URL}
}

// ResultRequest is the payload for POST /v1/activities/{id}/result.
type ResultRequest struct {
	ImplementationContent string              `json:"implementation_content"`
	Conclusion            string              `json:"conclusion"`
	ParticipantList       *AttachmentPayload  `json:"participant_list"`
	Highlights            string              `json:"highlights,omitempty"`
	Challenges            string              `json:"challenges,omitempty"`
	Recommendations       string              `json:"recommendations,omitempty"`
	Quality               string              `json:"quality,omitempty"`
	Documents             []AttachmentPayload `json:"documents,omitempty"`
}

func (r ResultRequest) toSubmission() domain.ResultSubmission {
	submission := domain.ResultSubmission{
		ImplementationContent: r.ImplementationContent,
		Conclusion:            r.Conclusion,
		Highlights:            r.Highlights,
		Challenges:            r.Challenges,
		Recommendations:       r.Recommendations,
		Quality:               domain.Quality(r.Quality),
	}
	if r.ParticipantList != nil {
		file := r.ParticipantList.toDomain()
		submission.ParticipantList = &file
	}
	if r.Documents != nil {
		submission.Documents = toAttachments(r.Documents)
	}
	return submission
}

// ApproveResultRequest is the optional payload for approve-result.
type ApproveResultRequest struct {
	Comments string `json:"comments"`
}

// PresignRequest asks for an attachment upload URL.
type PresignRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Validate ensures request correctness.
func (r PresignRequest) Validate() error {
	if strings.TrimSpace(r.FileName) == "" {
		return errors.New("file_name is required")
	}
	if r.Size < 0 {
		return errors.New("size must be >= 0")
	}
	return nil
}

// errEmptyBody reports a request without a JSON body.
var errEmptyBody = errors.New("empty body")

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}
