package domain

import "context"

// NoticeLevel classifies a user-facing notification.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeInfo    NoticeLevel = "info"
)

// Notice keys emitted by the lifecycle manager.
const (
	NoticeCreated             = "activity.created"
	NoticeDraftSaved          = "activity.draft_saved"
	NoticeSentForApproval     = "activity.sent_for_approval"
	NoticeUpdated             = "activity.updated"
	NoticeApproved            = "activity.approved"
	NoticeCompleted           = "activity.completed"
	NoticeResultSubmitted     = "activity.result_submitted"
	NoticeResultApproved      = "activity.result_approved"
	NoticeDeleted             = "activity.deleted"
	NoticeRequiredFields      = "activity.required_fields_missing"
	NoticeMissingResultInput  = "result.missing_input"
	NoticeTransitionForbidden = "activity.action_not_allowed"
	NoticeDeclined            = "activity.action_cancelled"
	NoticeNotFound            = "activity.not_found"
	NoticeConflict            = "activity.conflict"
)

var successNotices = map[Action]string{
	ActionCreate:          NoticeCreated,
	ActionSaveDraft:       NoticeDraftSaved,
	ActionSendForApproval: NoticeSentForApproval,
	ActionEdit:            NoticeUpdated,
	ActionUpdate:          NoticeUpdated,
	ActionApprove:         NoticeApproved,
	ActionComplete:        NoticeCompleted,
	ActionSubmitResult:    NoticeResultSubmitted,
	ActionApproveResult:   NoticeResultApproved,
	ActionDelete:          NoticeDeleted,
}

// SuccessNoticeKey returns the message key announcing a successful action.
func SuccessNoticeKey(action Action) string {
	return successNotices[action]
}

// Notice is a fire-and-forget message for the notification surface. ResolutionID is set
// instead of ActivityID for resolution workflows.
type Notice struct {
	Level        NoticeLevel
	Key          string
	Action       Action
	ActivityID   string
	ResolutionID string
	Data         map[string]string
}

// Notifier displays notices. Implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// NoopNotifier discards notices.
type NoopNotifier struct{}

// Notify performs no action.
func (NoopNotifier) Notify(context.Context, Notice) {}

// Prompt is the question put to the confirmation surface.
type Prompt struct {
	Action          Action
	ActivityID      string
	ActivityName    string
	ResolutionID    string
	ResolutionTitle string
}

// Confirmer answers yes or no to a destructive or approving action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt Prompt) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt Prompt) bool {
	return f(ctx, prompt)
}

// Fixed answers for callers that already know the user's response.
var (
	AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, Prompt) bool { return true })
	NeverConfirm  Confirmer = ConfirmFunc(func(context.Context, Prompt) bool { return false })
)
