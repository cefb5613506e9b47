package domain

import (
	"slices"
	"strings"
	"time"
)

// ResolutionStatus reports how far a resolution has been studied.
type ResolutionStatus string

const (
	// ResolutionApproved means at least one study session has been held.
	ResolutionApproved ResolutionStatus = "approved"
	// ResolutionOngoing means sessions are scheduled but none has been held yet.
	ResolutionOngoing ResolutionStatus = "ongoing"
	// ResolutionOverdue means no session has been scheduled.
	ResolutionOverdue ResolutionStatus = "overdue"
)

// ResolutionStatuses lists every resolution status.
var ResolutionStatuses = []ResolutionStatus{ResolutionApproved, ResolutionOngoing, ResolutionOverdue}

// Valid reports whether s is a known resolution status.
func (s ResolutionStatus) Valid() bool {
	return slices.Contains(ResolutionStatuses, s)
}

// StudyFormat is how a resolution is studied: with every member or in a condensed meeting.
type StudyFormat string

const (
	StudyFull    StudyFormat = "full"
	StudyCompact StudyFormat = "compact"
)

// Valid reports whether f is a known study format.
func (f StudyFormat) Valid() bool {
	return f == StudyFull || f == StudyCompact
}

// SessionStatus is the state of one study session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionCompleted SessionStatus = "completed"
)

// DefaultIssuer is recorded when a resolution is created without an issuing body.
const DefaultIssuer = "Trung ương"

// Message keys for resolution and session validation.
const (
	MsgTitleRequired        = "validation.title_required"
	MsgIssuedAtRequired     = "validation.issued_at_required"
	MsgCategoryInvalid      = "validation.category_invalid"
	MsgHeldAtRequired       = "validation.held_at_required"
	MsgParticipantsRequired = "validation.participants_required"
	MsgParticipantsInvalid  = "validation.participants_invalid"
)

// StudySession is one meeting in which members study a resolution.
type StudySession struct {
	ID           string
	HeldAt       time.Time
	Format       StudyFormat
	Participants int
	Status       SessionStatus
	VideoURL     string
	Documents    []FileAttachment
}

// Resolution is a directive issued by a higher body that the organisation must study.
type Resolution struct {
	ID          string
	Title       string
	Code        string
	IssuedAt    time.Time
	Deadline    *time.Time
	Category    StudyFormat
	IssuedBy    string
	Attachments []FileAttachment
	Sessions    []StudySession
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int
}

// Status derives the study progress from the sessions.
func (r Resolution) Status() ResolutionStatus {
	status := ResolutionOverdue
	for _, s := range r.Sessions {
		if s.Status == SessionCompleted {
			return ResolutionApproved
		}
		status = ResolutionOngoing
	}
	return status
}

// Participants is the attendance of the largest held session.
func (r Resolution) Participants() int {
	most := 0
	for _, s := range r.Sessions {
		if s.Status == SessionCompleted && s.Participants > most {
			most = s.Participants
		}
	}
	return most
}

// Overdue reports whether the deadline has passed without a held session.
func (r Resolution) Overdue(now time.Time) bool {
	return r.Deadline != nil && now.After(*r.Deadline) && r.Status() != ResolutionApproved
}

// Session returns the index of the session with id, or -1.
func (r Resolution) Session(id string) int {
	return slices.IndexFunc(r.Sessions, func(s StudySession) bool { return s.ID == id })
}

// Clone returns a deep copy.
func (r Resolution) Clone() Resolution {
	out := r
	if r.Deadline != nil {
		deadline := *r.Deadline
		out.Deadline = &deadline
	}
	out.Attachments = slices.Clone(r.Attachments)
	if r.Sessions != nil {
		out.Sessions = make([]StudySession, len(r.Sessions))
		for i, s := range r.Sessions {
			s.Documents = slices.Clone(s.Documents)
			out.Sessions[i] = s
		}
	}
	return out
}

// ResolutionInput carries the editable details of a resolution. Nil attachments leave the
// stored ones untouched.
type ResolutionInput struct {
	Title       string
	Code        string
	IssuedAt    time.Time
	Deadline    *time.Time
	Category    StudyFormat
	IssuedBy    string
	Attachments []FileAttachment
}

func (in ResolutionInput) normalize() ResolutionInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Code = strings.TrimSpace(in.Code)
	in.IssuedBy = strings.TrimSpace(in.IssuedBy)
	if in.IssuedBy == "" {
		in.IssuedBy = DefaultIssuer
	}
	if in.Category == "" {
		in.Category = StudyFull
	}
	if !in.IssuedAt.IsZero() {
		in.IssuedAt = in.IssuedAt.UTC()
	}
	if in.Deadline != nil {
		deadline := in.Deadline.UTC()
		in.Deadline = &deadline
	}
	return in
}

// Validate checks the title, the issue time and the study format.
func (in ResolutionInput) Validate() error {
	fields := make(map[string]string)
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = MsgTitleRequired
	}
	if in.IssuedAt.IsZero() {
		fields["issuedAt"] = MsgIssuedAtRequired
	}
	if in.Category != "" && !in.Category.Valid() {
		fields["category"] = MsgCategoryInvalid
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// SessionInput schedules a study session. Participants is required; nil means it was left blank.
type SessionInput struct {
	HeldAt       time.Time
	Format       StudyFormat
	Participants *int
}

// Validate checks the session time, format and head count.
func (in SessionInput) Validate() error {
	fields := make(map[string]string)
	if in.HeldAt.IsZero() {
		fields["heldAt"] = MsgHeldAtRequired
	}
	if in.Format != "" && !in.Format.Valid() {
		fields["format"] = MsgCategoryInvalid
	}
	switch {
	case in.Participants == nil:
		fields["participants"] = MsgParticipantsRequired
	case *in.Participants < 0:
		fields["participants"] = MsgParticipantsInvalid
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// SessionOutcome records what happened at a held session. A nil Participants keeps the
// scheduled head count.
type SessionOutcome struct {
	Participants *int
	VideoURL     string
	Documents    []FileAttachment
}

// ResolutionFilter narrows the resolution list. Query matches the title or the code.
type ResolutionFilter struct {
	Query  string
	Status ResolutionStatus
}

// Matches reports whether r satisfies f.
func (f ResolutionFilter) Matches(r Resolution) bool {
	if f.Status != "" && r.Status() != f.Status {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return strings.Contains(strings.ToLower(r.Title), q) || strings.Contains(strings.ToLower(r.Code), q)
	}
	return true
}

// SortResolutions orders resolutions newest issue first, then by id desc.
func SortResolutions(items []Resolution) {
	slices.SortFunc(items, func(a, b Resolution) int {
		if c := b.IssuedAt.Compare(a.IssuedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

// ResolutionAction names a write applied to a resolution.
type ResolutionAction string

const (
	ResolutionCreate          ResolutionAction = "create"
	ResolutionUpdate          ResolutionAction = "update"
	ResolutionAddSession      ResolutionAction = "add_session"
	ResolutionCompleteSession ResolutionAction = "complete_session"
	ResolutionDelete          ResolutionAction = "delete"
)

// ResolutionChange describes a write for the repository's event log.
type ResolutionChange struct {
	ResolutionID string
	Action       ResolutionAction
	Actor        string
	At           time.Time
}
