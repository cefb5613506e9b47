package seed

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/activityplanner/internal/domain"
)

type resolutionFile struct {
	ID          string           `toml:"id"`
	Title       string           `toml:"title"`
	Code        string           `toml:"code"`
	IssuedAt    time.Time        `toml:"issued_at"`
	Deadline    *time.Time       `toml:"deadline"`
	Category    string           `toml:"category"`
	IssuedBy    string           `toml:"issued_by"`
	CreatedBy   string           `toml:"created_by"`
	Attachments []attachmentFile `toml:"attachments"`
	Sessions    []sessionFile    `toml:"sessions"`
}

type sessionFile struct {
	HeldAt       time.Time        `toml:"held_at"`
	Format       string           `toml:"format"`
	Participants int              `toml:"participants"`
	Held         bool             `toml:"held"`
	VideoURL     string           `toml:"video_url"`
	Documents    []attachmentFile `toml:"documents"`
}

func (r resolutionFile) toDomain() (domain.Resolution, error) {
	category := domain.StudyFormat(r.Category)
	if r.Category == "" {
		category = domain.StudyFull
	}
	input := domain.ResolutionInput{Title: r.Title, IssuedAt: r.IssuedAt, Category: category}
	if err := input.Validate(); err != nil {
		return domain.Resolution{}, err
	}

	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	issuedBy := strings.TrimSpace(r.IssuedBy)
	if issuedBy == "" {
		issuedBy = domain.DefaultIssuer
	}
	issuedAt := r.IssuedAt.UTC()
	resolution := domain.Resolution{
		ID:        id,
		Title:     strings.TrimSpace(r.Title),
		Code:      strings.TrimSpace(r.Code),
		IssuedAt:  issuedAt,
		Deadline:  utcPtr(r.Deadline),
		Category:  category,
		IssuedBy:  issuedBy,
		CreatedBy: r.CreatedBy,
		CreatedAt: issuedAt,
		UpdatedAt: issuedAt,
		Version:   1,
	}
	for _, f := range r.Attachments {
		resolution.Attachments = append(resolution.Attachments, f.toDomain())
	}
	for _, s := range r.Sessions {
		session, err := s.toDomain()
		if err != nil {
			return domain.Resolution{}, err
		}
		resolution.Sessions = append(resolution.Sessions, session)
	}
	return resolution, nil
}

func (s sessionFile) toDomain() (domain.StudySession, error) {
	format := domain.StudyFormat(s.Format)
	if s.Format == "" {
		format = domain.StudyFull
	}
	participants := s.Participants
	if err := (domain.SessionInput{HeldAt: s.HeldAt, Format: format, Participants: &participants}).Validate(); err != nil {
		return domain.StudySession{}, err
	}
	if !s.Held && (s.VideoURL != "" || len(s.Documents) > 0) {
		return domain.StudySession{}, errors.New("session outcome recorded before it was held")
	}
	session := domain.StudySession{
		ID:           uuid.NewString(),
		HeldAt:       s.HeldAt.UTC(),
		Format:       format,
		Participants: participants,
		Status:       domain.SessionPending,
		VideoURL:     s.VideoURL,
	}
	if s.Held {
		session.Status = domain.SessionCompleted
	}
	for _, f := range s.Documents {
		session.Documents = append(session.Documents, f.toDomain())
	}
	return session, nil
}
