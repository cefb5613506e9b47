package domain

import (
	"context"
	"errors"
	"strings"

	"example.com/activityplanner/internal/observability"
)

// ResolutionRepository persists resolutions together with their study sessions. Writes
// replace the whole record and fail with ErrVersionConflict when the stored version differs
// from expectedVersion.
type ResolutionRepository interface {
	CreateResolution(ctx context.Context, resolution Resolution, change ResolutionChange) error
	// GetResolution returns nil, nil when the resolution does not exist.
	GetResolution(ctx context.Context, id string) (*Resolution, error)
	ReplaceResolution(ctx context.Context, resolution Resolution, expectedVersion int, change ResolutionChange) error
	DeleteResolution(ctx context.Context, id string, expectedVersion int, change ResolutionChange) error
	// ListResolutions returns every match, newest issue first.
	ListResolutions(ctx context.Context, filter ResolutionFilter) ([]Resolution, error)
}

// Notice keys emitted by resolution workflows.
const (
	NoticeResolutionCreated        = "resolution.created"
	NoticeResolutionUpdated        = "resolution.updated"
	NoticeResolutionDeleted        = "resolution.deleted"
	NoticeSessionAdded             = "resolution.session_added"
	NoticeSessionCompleted         = "resolution.session_completed"
	NoticeResolutionRequiredFields = "resolution.required_fields_missing"
	NoticeResolutionNotFound       = "resolution.not_found"
	NoticeSessionNotFound          = "resolution.session_not_found"
	NoticeResolutionConflict       = "resolution.conflict"
	NoticeResolutionDeclined       = "resolution.action_cancelled"
)

var resolutionNotices = map[ResolutionAction]string{
	ResolutionCreate:          NoticeResolutionCreated,
	ResolutionUpdate:          NoticeResolutionUpdated,
	ResolutionAddSession:      NoticeSessionAdded,
	ResolutionCompleteSession: NoticeSessionCompleted,
	ResolutionDelete:          NoticeResolutionDeleted,
}

// ResolutionService manages resolutions and their study sessions. It shares the notifier,
// clock and identifier source of the Service that built it.
type ResolutionService struct {
	repo ResolutionRepository
	svc  *Service
}

// Resolutions returns a ResolutionService over repo.
func (s *Service) Resolutions(repo ResolutionRepository) *ResolutionService {
	return &ResolutionService{repo: repo, svc: s}
}

// Create validates input and stores a resolution with no sessions.
func (s *ResolutionService) Create(ctx context.Context, actor Actor, input ResolutionInput) (*Resolution, error) {
	input = input.normalize()
	if err := input.Validate(); err != nil {
		return nil, s.fail(ctx, ResolutionCreate, "", err)
	}
	now := s.svc.now()
	resolution := Resolution{
		ID:          s.svc.newID(),
		Title:       input.Title,
		Code:        input.Code,
		IssuedAt:    input.IssuedAt,
		Deadline:    input.Deadline,
		Category:    input.Category,
		IssuedBy:    input.IssuedBy,
		Attachments: s.svc.attachments(input.Attachments),
		CreatedBy:   actor.label(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	change := ResolutionChange{ResolutionID: resolution.ID, Action: ResolutionCreate, Actor: actor.label(), At: now}
	if err := s.repo.CreateResolution(ctx, resolution, change); err != nil {
		return nil, s.fail(ctx, ResolutionCreate, resolution.ID, err)
	}
	s.succeed(ctx, ResolutionCreate, resolution.ID)
	out := resolution.Clone()
	return &out, nil
}

// Update replaces the details of a resolution. Sessions are kept.
func (s *ResolutionService) Update(ctx context.Context, actor Actor, id string, input ResolutionInput) (*Resolution, error) {
	return s.write(ctx, actor, id, ResolutionUpdate, func(next *Resolution) error {
		input = input.normalize()
		if err := input.Validate(); err != nil {
			return err
		}
		next.Title = input.Title
		next.Code = input.Code
		next.IssuedAt = input.IssuedAt
		next.Deadline = input.Deadline
		next.Category = input.Category
		next.IssuedBy = input.IssuedBy
		if input.Attachments != nil {
			next.Attachments = s.svc.attachments(input.Attachments)
		}
		return nil
	})
}

// AddSession schedules a pending study session.
func (s *ResolutionService) AddSession(ctx context.Context, actor Actor, id string, input SessionInput) (*Resolution, error) {
	return s.write(ctx, actor, id, ResolutionAddSession, func(next *Resolution) error {
		if err := input.Validate(); err != nil {
			return err
		}
		format := input.Format
		if format == "" {
			format = StudyFull
		}
		next.Sessions = append(next.Sessions, StudySession{
			ID:           s.svc.newID(),
			HeldAt:       input.HeldAt.UTC(),
			Format:       format,
			Participants: *input.Participants,
			Status:       SessionPending,
		})
		return nil
	})
}

// CompleteSession marks a session as held and records its outcome.
func (s *ResolutionService) CompleteSession(ctx context.Context, actor Actor, id, sessionID string, outcome SessionOutcome) (*Resolution, error) {
	return s.write(ctx, actor, id, ResolutionCompleteSession, func(next *Resolution) error {
		i := next.Session(sessionID)
		if i < 0 {
			return ErrSessionNotFound
		}
		if outcome.Participants != nil {
			if *outcome.Participants < 0 {
				return &ValidationError{Fields: map[string]string{"participants": MsgParticipantsInvalid}}
			}
			next.Sessions[i].Participants = *outcome.Participants
		}
		next.Sessions[i].Status = SessionCompleted
		next.Sessions[i].VideoURL = strings.TrimSpace(outcome.VideoURL)
		if outcome.Documents != nil {
			next.Sessions[i].Documents = s.svc.attachments(outcome.Documents)
		}
		return nil
	})
}

// Delete removes a resolution and its sessions once the confirmer agrees.
func (s *ResolutionService) Delete(ctx context.Context, actor Actor, id string, confirmer Confirmer) error {
	current, err := s.load(ctx, ResolutionDelete, id)
	if err != nil {
		return err
	}
	if confirmer == nil {
		confirmer = NeverConfirm
	}
	prompt := Prompt{Action: ActionDelete, ResolutionID: id, ResolutionTitle: current.Title}
	if !confirmer.Confirm(ctx, prompt) {
		return s.fail(ctx, ResolutionDelete, id, ErrDeclined)
	}
	change := ResolutionChange{ResolutionID: id, Action: ResolutionDelete, Actor: actor.label(), At: s.svc.now()}
	if err := s.repo.DeleteResolution(ctx, id, current.Version, change); err != nil {
		return s.fail(ctx, ResolutionDelete, id, err)
	}
	s.succeed(ctx, ResolutionDelete, id)
	return nil
}

// Get fetches by ID.
func (s *ResolutionService) Get(ctx context.Context, id string) (*Resolution, error) {
	resolution, err := s.repo.GetResolution(ctx, id)
	if err != nil {
		return nil, err
	}
	if resolution == nil {
		return nil, ErrResolutionNotFound
	}
	return resolution, nil
}

// List returns the resolutions matching filter, newest issue first.
func (s *ResolutionService) List(ctx context.Context, filter ResolutionFilter) ([]Resolution, error) {
	return s.repo.ListResolutions(ctx, filter)
}

func (s *ResolutionService) write(ctx context.Context, actor Actor, id string, action ResolutionAction, mutate func(*Resolution) error) (*Resolution, error) {
	current, err := s.load(ctx, action, id)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := mutate(&next); err != nil {
		return nil, s.fail(ctx, action, id, err)
	}
	now := s.svc.now()
	next.UpdatedAt = now
	next.Version = current.Version + 1

	change := ResolutionChange{ResolutionID: id, Action: action, Actor: actor.label(), At: now}
	if err := s.repo.ReplaceResolution(ctx, next, current.Version, change); err != nil {
		return nil, s.fail(ctx, action, id, err)
	}
	s.succeed(ctx, action, id)
	out := next.Clone()
	return &out, nil
}

func (s *ResolutionService) load(ctx context.Context, action ResolutionAction, id string) (*Resolution, error) {
	current, err := s.repo.GetResolution(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, action, id, err)
	}
	if current == nil {
		return nil, s.fail(ctx, action, id, ErrResolutionNotFound)
	}
	return current, nil
}

func (s *ResolutionService) succeed(ctx context.Context, action ResolutionAction, id string) {
	observability.RecordResolutionWrite(string(action), observability.OutcomeApplied)
	s.svc.notifier.Notify(ctx, Notice{Level: NoticeSuccess, Key: resolutionNotices[action], ResolutionID: id})
}

func (s *ResolutionService) fail(ctx context.Context, action ResolutionAction, id string, err error) error {
	notice := Notice{Level: NoticeError, ResolutionID: id}
	outcome := observability.OutcomeFailed

	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		notice.Key = NoticeResolutionRequiredFields
		notice.Data = validationErr.Fields
		outcome = observability.OutcomeInvalid
	case errors.Is(err, ErrDeclined):
		notice.Level = NoticeInfo
		notice.Key = NoticeResolutionDeclined
		outcome = observability.OutcomeDeclined
	case errors.Is(err, ErrResolutionNotFound):
		notice.Key = NoticeResolutionNotFound
		outcome = observability.OutcomeRejected
	case errors.Is(err, ErrSessionNotFound):
		notice.Key = NoticeSessionNotFound
		outcome = observability.OutcomeRejected
	case errors.Is(err, ErrVersionConflict):
		notice.Key = NoticeResolutionConflict
	}

	observability.RecordResolutionWrite(string(action), outcome)
	if notice.Key != "" {
		s.svc.notifier.Notify(ctx, notice)
	}
	return err
}

