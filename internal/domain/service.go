// Package domain defines the activity lifecycle and the rules that govern it.
package domain

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"example.com/activityplanner/internal/logging"
	"example.com/activityplanner/internal/observability"
)

// ActivityRepository captures persistence operations. Records are replaced whole; Replace
// and Delete fail with ErrVersionConflict when the stored version differs from expectedVersion.
type ActivityRepository interface {
	Create(ctx context.Context, activity Activity, entry HistoryEntry) error
	// Get returns nil, nil when the activity does not exist.
	Get(ctx context.Context, id string) (*Activity, error)
	Replace(ctx context.Context, activity Activity, expectedVersion int, entry HistoryEntry) error
	Delete(ctx context.Context, id string, expectedVersion int, entry HistoryEntry) error
	// List returns one page after cursor. A non-positive limit returns every match.
	List(ctx context.Context, filter ListFilter, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	History(ctx context.Context, id string) ([]HistoryEntry, error)
}

// Actor identifies who performs an action.
type Actor struct {
	ID   string
	Name string
}

func (a Actor) label() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return a.ID
}

// ActivityInput carries the editable parts of an activity. Nil slices leave the stored
// participants or attachments untouched; empty slices clear them.
type ActivityInput struct {
	Fields       ActivityFields
	Participants []Participant
	Attachments  []FileAttachment
}

// Service orchestrates activity workflows.
type Service struct {
	repo     ActivityRepository
	catalog  Catalog
	notifier Notifier
	stats    StatisticsCache
	log      logging.Logger
	loc      *time.Location
	now      func() time.Time
	newID    func() string

	// statsGen counts successful writes. Statistics computed across a write are not cached.
	statsGen atomic.Uint64
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier routes transition outcomes to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithStatisticsCache memoises statistics in c.
func WithStatisticsCache(c StatisticsCache) Option {
	return func(s *Service) {
		if c != nil {
			s.stats = c
		}
	}
}

// WithLocation sets the zone whose calendar year and month statistics are bucketed by.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger used for cache maintenance failures.
func WithLogger(log logging.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, catalog Catalog, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		catalog:  catalog,
		notifier: NoopNotifier{},
		stats:    noopStatisticsCache{},
		log:      logging.Nop(),
		loc:      time.UTC,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the injected labels and unit enumeration.
func (s *Service) Catalog() Catalog {
	return s.catalog
}

// Create validates input and stores a new draft.
func (s *Service) Create(ctx context.Context, actor Actor, input ActivityInput) (*Activity, error) {
	to, err := Next(statusNone, ActionCreate)
	if err != nil {
		return nil, s.fail(ctx, ActionCreate, "", err)
	}
	fields := input.Fields.normalize(s.catalog)
	if err := fields.Validate(s.catalog); err != nil {
		return nil, s.fail(ctx, ActionCreate, "", err)
	}

	now := s.now()
	activity := Activity{
		ID:             s.newID(),
		ActivityFields: fields,
		Participants:   s.participants(input.Participants),
		Status:         to,
		Attachments:    s.attachments(input.Attachments),
		CreatedBy:      actor.label(),
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}
	entry := HistoryEntry{ActivityID: activity.ID, Action: ActionCreate, To: to, Actor: actor.label(), At: now}
	if err := s.repo.Create(ctx, activity, entry); err != nil {
		return nil, s.fail(ctx, ActionCreate, activity.ID, err)
	}
	s.succeed(ctx, ActionCreate, activity.ID, now)
	out := activity.Clone()
	return &out, nil
}

// SaveDraft replaces the fields of a draft.
func (s *Service) SaveDraft(ctx context.Context, actor Actor, id string, input ActivityInput) (*Activity, error) {
	return s.transition(ctx, actor, id, ActionSaveDraft, s.applyInput(input))
}

// SendForApproval moves a draft to pending. A non-nil input is saved in the same step.
func (s *Service) SendForApproval(ctx context.Context, actor Actor, id string, input *ActivityInput) (*Activity, error) {
	if input != nil {
		return s.transition(ctx, actor, id, ActionSendForApproval, s.applyInput(*input))
	}
	return s.transition(ctx, actor, id, ActionSendForApproval, s.revalidate)
}

// Edit replaces the fields of a pending activity.
func (s *Service) Edit(ctx context.Context, actor Actor, id string, input ActivityInput) (*Activity, error) {
	return s.transition(ctx, actor, id, ActionEdit, s.applyInput(input))
}

// Update replaces the fields of an in-progress activity.
func (s *Service) Update(ctx context.Context, actor Actor, id string, input ActivityInput) (*Activity, error) {
	return s.transition(ctx, actor, id, ActionUpdate, s.applyInput(input))
}

// Save applies the editing action offered for the activity's current status.
func (s *Service) Save(ctx context.Context, actor Actor, id string, input ActivityInput) (*Activity, error) {
	current, err := s.load(ctx, ActionEdit, id)
	if err != nil {
		return nil, err
	}
	action, ok := EditAction(current.Status)
	if !ok {
		return nil, s.fail(ctx, ActionEdit, id, &TransitionError{From: current.Status, Action: ActionEdit})
	}
	return s.apply(ctx, actor, current, action, s.applyInput(input))
}

// Approve moves a pending activity to inprogress once the confirmer agrees.
func (s *Service) Approve(ctx context.Context, actor Actor, id string, confirmer Confirmer) (*Activity, error) {
	current, err := s.load(ctx, ActionApprove, id)
	if err != nil {
		return nil, err
	}
	if err := s.confirm(ctx, ActionApprove, current, confirmer); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, current, ActionApprove, nil)
}

// Complete closes an in-progress activity, recording the submitted fields as the actual
// data. The planned fields are left untouched.
func (s *Service) Complete(ctx context.Context, actor Actor, id string, input ActivityInput) (*Activity, error) {
	return s.transition(ctx, actor, id, ActionComplete, func(next *Activity, _ time.Time) error {
		fields := input.Fields.normalize(s.catalog)
		if err := fields.Validate(s.catalog); err != nil {
			return err
		}
		next.Actual = &fields
		if input.Participants != nil {
			next.Participants = s.participants(input.Participants)
		}
		if input.Attachments != nil {
			next.Attachments = s.attachments(input.Attachments)
		}
		return nil
	})
}

// SubmitResult stores the result report of an in-progress activity and moves it to
// result_pending.
func (s *Service) SubmitResult(ctx context.Context, actor Actor, id string, submission ResultSubmission) (*Activity, error) {
	return s.transition(ctx, actor, id, ActionSubmitResult, func(next *Activity, now time.Time) error {
		if err := submission.Validate(); err != nil {
			return err
		}
		participantList := s.attachments([]FileAttachment{*submission.ParticipantList})[0]
		next.Result = &ResultReport{
			ImplementationContent: strings.TrimSpace(submission.ImplementationContent),
			Conclusion:            strings.TrimSpace(submission.Conclusion),
			ParticipantList:       participantList,
			Highlights:            submission.Highlights,
			Challenges:            submission.Challenges,
			Recommendations:       submission.Recommendations,
			Quality:               submission.Quality,
			Documents:             s.attachments(submission.Documents),
			ReportedBy:            actor.label(),
			SubmittedAt:           now,
		}
		return nil
	})
}

// ApproveResult accepts the result report and completes the activity.
func (s *Service) ApproveResult(ctx context.Context, actor Actor, id, comments string) (*Activity, error) {
	return s.transition(ctx, actor, id, ActionApproveResult, func(next *Activity, now time.Time) error {
		if next.Result == nil {
			next.Result = &ResultReport{}
		}
		approvedAt := now
		next.Result.ApprovedBy = actor.label()
		next.Result.ApprovedAt = &approvedAt
		next.Result.ApprovalComments = strings.TrimSpace(comments)
		return nil
	})
}

// Delete removes a draft or pending activity once the confirmer agrees.
func (s *Service) Delete(ctx context.Context, actor Actor, id string, confirmer Confirmer) error {
	current, err := s.load(ctx, ActionDelete, id)
	if err != nil {
		return err
	}
	if err := s.confirm(ctx, ActionDelete, current, confirmer); err != nil {
		return err
	}
	now := s.now()
	entry := HistoryEntry{ActivityID: id, Action: ActionDelete, From: current.Status, Actor: actor.label(), At: now}
	if err := s.repo.Delete(ctx, id, current.Version, entry); err != nil {
		return s.fail(ctx, ActionDelete, id, err)
	}
	s.succeed(ctx, ActionDelete, id, now)
	return nil
}

// Get fetches by ID.
func (s *Service) Get(ctx context.Context, id string) (*Activity, error) {
	activity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// List fetches one page of activities matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	return s.repo.List(ctx, filter, cursor, ClampLimit(limit))
}

// ListAll fetches every activity matching filter.
func (s *Service) ListAll(ctx context.Context, filter ListFilter) ([]Activity, error) {
	items, _, err := s.repo.List(ctx, filter, nil, 0)
	return items, err
}

// History returns the recorded transitions of an activity, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	entries, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrActivityNotFound
	}
	return entries, nil
}

// Statistics aggregates the activities starting in year on the service's calendar; zero
// covers every year.
func (s *Service) Statistics(ctx context.Context, year int) (Statistics, error) {
	key := StatisticsKey(year)
	if cached, ok := s.stats.Load(ctx, key); ok {
		observability.RecordStatisticsCache(true)
		return *cached, nil
	}
	observability.RecordStatisticsCache(false)

	gen := s.statsGen.Load()
	var filter ListFilter
	if year != 0 {
		filter.From, filter.To = YearBounds(year, s.loc)
	}
	activities, err := s.ListAll(ctx, filter)
	if err != nil {
		return Statistics{}, err
	}
	stats := ComputeStatistics(year, activities, s.loc)

	if s.statsGen.Load() != gen {
		return stats, nil
	}
	s.stats.Store(ctx, key, stats)
	// A write that landed between the check and the store has already invalidated; drop
	// what was just stored too.
	if s.statsGen.Load() != gen {
		s.invalidateStatistics(ctx)
	}
	return stats, nil
}

func (s *Service) invalidateStatistics(ctx context.Context) {
	if err := s.stats.Invalidate(ctx); err != nil {
		observability.RecordStatisticsInvalidationFailure()
		s.log.Warn(ctx, "statistics cache invalidation failed", "error", err)
	}
}

type mutation func(next *Activity, now time.Time) error

func (s *Service) transition(ctx context.Context, actor Actor, id string, action Action, mutate mutation) (*Activity, error) {
	current, err := s.load(ctx, action, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, current, action, mutate)
}

// apply checks the transition table, mutates a copy and replaces the stored record.
func (s *Service) apply(ctx context.Context, actor Actor, current *Activity, action Action, mutate mutation) (*Activity, error) {
	to, err := Next(current.Status, action)
	if err != nil {
		return nil, s.fail(ctx, action, current.ID, err)
	}
	now := s.now()
	next := current.Clone()
	if mutate != nil {
		if err := mutate(&next, now); err != nil {
			return nil, s.fail(ctx, action, current.ID, err)
		}
	}
	next.Status = to
	next.UpdatedAt = now
	next.Version = current.Version + 1

	entry := HistoryEntry{ActivityID: current.ID, Action: action, From: current.Status, To: to, Actor: actor.label(), At: now}
	if err := s.repo.Replace(ctx, next, current.Version, entry); err != nil {
		return nil, s.fail(ctx, action, current.ID, err)
	}
	s.succeed(ctx, action, next.ID, now)
	out := next.Clone()
	return &out, nil
}

func (s *Service) applyInput(input ActivityInput) mutation {
	return func(next *Activity, _ time.Time) error {
		fields := input.Fields.normalize(s.catalog)
		if err := fields.Validate(s.catalog); err != nil {
			return err
		}
		next.ActivityFields = fields
		if input.Participants != nil {
			next.Participants = s.participants(input.Participants)
		}
		if input.Attachments != nil {
			next.Attachments = s.attachments(input.Attachments)
		}
		return nil
	}
}

func (s *Service) revalidate(next *Activity, _ time.Time) error {
	return next.ActivityFields.Validate(s.catalog)
}

func (s *Service) load(ctx context.Context, action Action, id string) (*Activity, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, action, id, err)
	}
	if current == nil {
		return nil, s.fail(ctx, action, id, ErrActivityNotFound)
	}
	return current, nil
}

// confirm checks the transition before asking, so a forbidden action never prompts.
func (s *Service) confirm(ctx context.Context, action Action, current *Activity, confirmer Confirmer) error {
	if _, err := Next(current.Status, action); err != nil {
		return s.fail(ctx, action, current.ID, err)
	}
	if confirmer == nil {
		confirmer = NeverConfirm
	}
	prompt := Prompt{Action: action, ActivityID: current.ID, ActivityName: current.Name}
	if !confirmer.Confirm(ctx, prompt) {
		return s.fail(ctx, action, current.ID, ErrDeclined)
	}
	return nil
}

func (s *Service) participants(in []Participant) []Participant {
	out := cloneParticipants(in)
	for i := range out {
		if strings.TrimSpace(out[i].ID) == "" {
			out[i].ID = s.newID()
		}
	}
	return out
}

func (s *Service) attachments(in []FileAttachment) []FileAttachment {
	if in == nil {
		return nil
	}
	out := make([]FileAttachment, len(in))
	copy(out, in)
	for i := range out {
		if strings.TrimSpace(out[i].ID) == "" {
			out[i].ID = s.newID()
		}
	}
	return out
}

func (s *Service) succeed(ctx context.Context, action Action, id string, at time.Time) {
	observability.RecordTransition(string(action), observability.OutcomeApplied)
	observability.RecordActivityPersisted(at)
	s.statsGen.Add(1)
	s.invalidateStatistics(ctx)
	s.notifier.Notify(ctx, Notice{
		Level:      NoticeSuccess,
		Key:        SuccessNoticeKey(action),
		Action:     action,
		ActivityID: id,
	})
}

// fail reports err to the notification surface and returns it unchanged.
func (s *Service) fail(ctx context.Context, action Action, id string, err error) error {
	notice := Notice{Level: NoticeError, Action: action, ActivityID: id}
	outcome := observability.OutcomeFailed

	var validationErr *ValidationError
	var missingErr *MissingInputError
	switch {
	case errors.As(err, &validationErr):
		notice.Key = NoticeRequiredFields
		notice.Data = validationErr.Fields
		outcome = observability.OutcomeInvalid
	case errors.As(err, &missingErr):
		notice.Key = NoticeMissingResultInput
		notice.Data = map[string]string{"Input": missingErr.Input}
		outcome = observability.OutcomeInvalid
	case errors.Is(err, ErrTransitionNotAllowed):
		notice.Key = NoticeTransitionForbidden
		outcome = observability.OutcomeRejected
	case errors.Is(err, ErrDeclined):
		notice.Level = NoticeInfo
		notice.Key = NoticeDeclined
		outcome = observability.OutcomeDeclined
	case errors.Is(err, ErrActivityNotFound):
		notice.Key = NoticeNotFound
		outcome = observability.OutcomeRejected
	case errors.Is(err, ErrVersionConflict):
		notice.Key = NoticeConflict
	}

	observability.RecordTransition(string(action), outcome)
	if notice.Key != "" {
		s.notifier.Notify(ctx, notice)
	}
	return err
}
