package domain

import (
	"slices"
	"time"
)

// Status is the lifecycle state of an activity.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusPending       Status = "pending"
	StatusInProgress    Status = "inprogress"
	StatusResultPending Status = "result_pending"
	StatusCompleted     Status = "completed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusDraft, StatusPending, StatusInProgress, StatusResultPending, StatusCompleted}

// Valid reports whether s is one of the five lifecycle states.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// ActivityType is the category of an activity.
type ActivityType string

const (
	TypeConference           ActivityType = "conference"
	TypeSeminar              ActivityType = "seminar"
	TypeAwarenessTraining    ActivityType = "awareness_training"
	TypeNewMemberTraining    ActivityType = "new_member_training"
	TypeIntermediateTraining ActivityType = "intermediate_training"
	TypeAdvancedTraining     ActivityType = "advanced_training"
	TypeHCMCommitment        ActivityType = "hcm_commitment"
)

// ActivityTypes lists the fixed activity categories.
var ActivityTypes = []ActivityType{
	TypeConference,
	TypeSeminar,
	TypeAwarenessTraining,
	TypeNewMemberTraining,
	TypeIntermediateTraining,
	TypeAdvancedTraining,
	TypeHCMCommitment,
}

// Valid reports whether t is a known activity category.
func (t ActivityType) Valid() bool {
	return slices.Contains(ActivityTypes, t)
}

// Participant is a person attending an activity.
type Participant struct {
	ID       string
	Name     string
	Position string
	Unit     string
	Role     string
	Attended *bool
	Notes    string
}

// FileAttachment is metadata for a document bound to an activity or a result report.
type FileAttachment struct {
	ID   string
	Name string
	Size int64
	Type string
	URL  string
}

// ActivityFields are the descriptive, plannable fields of an activity. The same shape holds
// the actual-data snapshot captured at completion.
type ActivityFields struct {
	Name           string
	Type           ActivityType
	OrganizingUnit string
	StartTime      time.Time
	EndTime        *time.Time
	Location       string
	Description    string
}

// Quality grades a result report.
type Quality string

const (
	QualityExcellent      Quality = "excellent"
	QualityGood           Quality = "good"
	QualitySatisfactory   Quality = "satisfactory"
	QualityUnsatisfactory Quality = "unsatisfactory"
)

// ResultReport is the accepted result submission of an activity.
type ResultReport struct {
	ImplementationContent string
	Conclusion            string
	ParticipantList       FileAttachment
	Highlights            string
	Challenges            string
	Recommendations       string
	Quality               Quality
	Documents             []FileAttachment
	ReportedBy            string
	SubmittedAt           time.Time
	ApprovedBy            string
	ApprovedAt            *time.Time
	ApprovalComments      string
}

// Activity is the central tracked entity.
type Activity struct {
	ID string
	ActivityFields
	Participants []Participant
	Status       Status
	Attachments  []FileAttachment
	Actual       *ActivityFields
	Result       *ResultReport
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int
}

// Clone returns a deep copy so that stored records are only ever replaced whole.
func (a Activity) Clone() Activity {
	out := a
	out.ActivityFields = a.ActivityFields.clone()
	out.Participants = cloneParticipants(a.Participants)
	out.Attachments = slices.Clone(a.Attachments)
	if a.Actual != nil {
		actual := a.Actual.clone()
		out.Actual = &actual
	}
	if a.Result != nil {
		result := *a.Result
		result.Documents = slices.Clone(a.Result.Documents)
		if a.Result.ApprovedAt != nil {
			approvedAt := *a.Result.ApprovedAt
			result.ApprovedAt = &approvedAt
		}
		out.Result = &result
	}
	return out
}

func (f ActivityFields) clone() ActivityFields {
	out := f
	if f.EndTime != nil {
		end := *f.EndTime
		out.EndTime = &end
	}
	return out
}

func cloneParticipants(in []Participant) []Participant {
	if in == nil {
		return nil
	}
	out := make([]Participant, len(in))
	for i, p := range in {
		if p.Attended != nil {
			attended := *p.Attended
			p.Attended = &attended
		}
		out[i] = p
	}
	return out
}

// HistoryEntry records one lifecycle transition. From is empty for creation and To is empty
// for deletion.
type HistoryEntry struct {
	ActivityID string
	Action     Action
	From       Status
	To         Status
	Actor      string
	At         time.Time
}

// Cursor models the list pagination token.
type Cursor struct {
	StartTime time.Time
	ID        string
}
