package domain

import "fmt"

// Action is a user-initiated operation on an activity.
type Action string

const (
	ActionCreate          Action = "create"
	ActionSaveDraft       Action = "save_draft"
	ActionSendForApproval Action = "send_for_approval"
	ActionEdit            Action = "edit"
	ActionApprove         Action = "approve"
	ActionUpdate          Action = "update"
	ActionComplete        Action = "complete"
	ActionSubmitResult    Action = "submit_result"
	ActionApproveResult   Action = "approve_result"
	ActionDelete          Action = "delete"
)

// actionOrder fixes the order in which allowed actions are reported.
var actionOrder = []Action{
	ActionSaveDraft,
	ActionEdit,
	ActionUpdate,
	ActionSendForApproval,
	ActionApprove,
	ActionComplete,
	ActionSubmitResult,
	ActionApproveResult,
	ActionDelete,
}

// statusNone is the source of creation and the target of deletion.
const statusNone Status = ""

// transitions is the single source of truth for lifecycle legality.
var transitions = map[Status]map[Action]Status{
	statusNone: {
		ActionCreate: StatusDraft,
	},
	StatusDraft: {
		ActionSaveDraft:       StatusDraft,
		ActionSendForApproval: StatusPending,
		ActionDelete:          statusNone,
	},
	StatusPending: {
		ActionEdit:    StatusPending,
		ActionApprove: StatusInProgress,
		ActionDelete:  statusNone,
	},
	StatusInProgress: {
		ActionUpdate:       StatusInProgress,
		ActionComplete:     StatusCompleted,
		ActionSubmitResult: StatusResultPending,
	},
	StatusResultPending: {
		ActionApproveResult: StatusCompleted,
	},
	StatusCompleted: {},
}

// TransitionError reports an action attempted from a status that does not permit it.
type TransitionError struct {
	From   Status
	Action Action
}

func (e *TransitionError) Error() string {
	from := string(e.From)
	if from == "" {
		from = "none"
	}
	return fmt.Sprintf("action %s not allowed from status %s", e.Action, from)
}

// Unwrap exposes ErrTransitionNotAllowed to errors.Is.
func (e *TransitionError) Unwrap() error {
	return ErrTransitionNotAllowed
}

// Next returns the status reached by applying action from the given status. Deletion
// reaches the empty status.
func Next(from Status, action Action) (Status, error) {
	if to, ok := transitions[from][action]; ok {
		return to, nil
	}
	return statusNone, &TransitionError{From: from, Action: action}
}

// Allowed reports whether action may be attempted from status.
func Allowed(status Status, action Action) bool {
	_, err := Next(status, action)
	return err == nil
}

// AllowedActions lists the actions offered for an activity in the given status.
func AllowedActions(status Status) []Action {
	out := make([]Action, 0, 3)
	for _, action := range actionOrder {
		if Allowed(status, action) {
			out = append(out, action)
		}
	}
	return out
}

// EditAction returns the field-editing action offered for status. result_pending and
// completed records are not editable.
func EditAction(status Status) (Action, bool) {
	switch status {
	case StatusDraft:
		return ActionSaveDraft, true
	case StatusPending:
		return ActionEdit, true
	case StatusInProgress:
		return ActionUpdate, true
	default:
		return "", false
	}
}

// RequiresConfirmation reports whether the confirmation surface gates the action.
func (a Action) RequiresConfirmation() bool {
	return a == ActionDelete || a == ActionApprove
}
