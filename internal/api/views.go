package api

import (
	"time"

	"example.com/activityplanner/internal/domain"
)

// NoticeView is the rendered notification raised by an operation.
type NoticeView struct {
	Level   string `json:"level"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// FieldsView holds the plan-level fields, either planned or actual.
type FieldsView struct {
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	TypeLabel      string     `json:"type_label"`
	OrganizingUnit string     `json:"organizing_unit"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Location       string     `json:"location"`
	Description    string     `json:"description,omitempty"`
}

type ParticipantView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Unit     string `json:"unit"`
	Role     string `json:"role,omitempty"`
	Attended *bool  `json:"attended,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type AttachmentView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	Type        string `json:"type"`
	URL         string `json:"url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

type ResultView struct {
	ImplementationContent string           `json:"implementation_content"`
	Conclusion            string           `json:"conclusion"`
	ParticipantList       AttachmentView   `json:"participant_list"`
	Highlights            string           `json:"highlights,omitempty"`
	Challenges            string           `json:"challenges,omitempty"`
	Recommendations       string           `json:"recommendations,omitempty"`
	Quality               string           `json:"quality,omitempty"`
	Documents             []AttachmentView `json:"documents"`
	ReportedBy            string           `json:"reported_by"`
	SubmittedAt           time.Time        `json:"submitted_at"`
	ApprovedBy            string           `json:"approved_by,omitempty"`
	ApprovedAt            *time.Time       `json:"approved_at,omitempty"`
	ApprovalComments      string           `json:"approval_comments,omitempty"`
}

// ActivityView is the JSON representation of an activity.
type ActivityView struct {
	ID string `json:"id"`
	FieldsView
	Status         string            `json:"status"`
	StatusLabel    string            `json:"status_label"`
	Participants   []ParticipantView `json:"participants"`
	Attachments    []AttachmentView  `json:"attachments"`
	Actual         *FieldsView       `json:"actual,omitempty"`
	Result         *ResultView       `json:"result,omitempty"`
	AllowedActions []string          `json:"allowed_actions"`
	CreatedBy      string            `json:"created_by"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Version        int               `json:"version"`
}

// ActionResponse is returned by every mutating endpoint.
type ActionResponse struct {
	Activity *ActivityView `json:"activity,omitempty"`
	Message  string        `json:"message,omitempty"`
	Notice   *NoticeView   `json:"notice,omitempty"`
}

// ListResponse is a page of activities.
type ListResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ComparisonRow pairs a planned value with its actual counterpart.
type ComparisonRow struct {
	Field   string `json:"field"`
	Planned string `json:"planned"`
	Actual  string `json:"actual"`
	Changed bool   `json:"changed"`
}

type HistoryView struct {
	Action string    `json:"action"`
	From   string    `json:"from,omitempty"`
	To     string    `json:"to,omitempty"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
}

// DetailResponse serves both detail layouts. Comparison mode fills Comparison, tabbed mode
// fills History.
type DetailResponse struct {
	Mode       string          `json:"mode"`
	Activity   ActivityView    `json:"activity"`
	Comparison []ComparisonRow `json:"comparison,omitempty"`
	History    []HistoryView   `json:"history,omitempty"`
}

type LabelView struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type CatalogView struct {
	Statuses           []LabelView `json:"statuses"`
	Types              []LabelView `json:"types"`
	Units              []string    `json:"units"`
	Views              []string    `json:"views"`
	ResolutionStatuses []LabelView `json:"resolution_statuses"`
	StudyFormats       []LabelView `json:"study_formats"`
}

type CountView struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage,omitempty"`
}

type StatisticsView struct {
	Year           int         `json:"year"`
	Total          int         `json:"total"`
	Draft          int         `json:"draft"`
	Pending        int         `json:"pending"`
	InProgress     int         `json:"in_progress"`
	ResultPending  int         `json:"result_pending"`
	Completed      int         `json:"completed"`
	CompletionRate float64     `json:"completion_rate"`
	ByType         []CountView `json:"by_type"`
	ByUnit         []CountView `json:"by_unit"`
	ByMonth        []int       `json:"by_month"`
}

type UploadView struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

func fieldsView(f domain.ActivityFields, catalog domain.Catalog) FieldsView {
	return FieldsView{
		Name:           f.Name,
		Type:           string(f.Type),
		TypeLabel:      catalog.TypeLabel(f.Type),
		OrganizingUnit: f.OrganizingUnit,
		StartTime:      f.StartTime,
		EndTime:        f.EndTime,
		Location:       f.Location,
		Description:    f.Description,
	}
}

func attachmentView(a domain.FileAttachment) AttachmentView {
	return AttachmentView{ID: a.ID, Name: a.Name, Size: a.Size, Type: a.Type, URL: a.URL}
}

func attachmentViews(in []domain.FileAttachment) []AttachmentView {
	out := make([]AttachmentView, 0, len(in))
	for _, a := range in {
		out = append(out, attachmentView(a))
	}
	return out
}

func activityView(a domain.Activity, catalog domain.Catalog) ActivityView {
	view := ActivityView{
		ID:           a.ID,
		FieldsView:   fieldsView(a.ActivityFields, catalog),
		Status:       string(a.Status),
		StatusLabel:  catalog.StatusLabel(a.Status),
		Participants: make([]ParticipantView, 0, len(a.Participants)),
		Attachments:  attachmentViews(a.Attachments),
		CreatedBy:    a.CreatedBy,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
		Version:      a.Version,
	}
	for _, p := range a.Participants {
		view.Participants = append(view.Participants, ParticipantView{
			ID: p.ID, Name: p.Name, Position: p.Position, Unit: p.Unit,
			Role: p.Role, Attended: p.Attended, Notes: p.Notes,
		})
	}
	for _, action := range domain.AllowedActions(a.Status) {
		view.AllowedActions = append(view.AllowedActions, string(action))
	}
	if view.AllowedActions == nil {
		view.AllowedActions = []string{}
	}
	if a.Actual != nil {
		actual := fieldsView(*a.Actual, catalog)
		view.Actual = &actual
	}
	if r := a.Result; r != nil {
		view.Result = &ResultView{
			ImplementationContent: r.ImplementationContent,
			Conclusion:            r.Conclusion,
			ParticipantList:       attachmentView(r.ParticipantList),
			Highlights:            r.Highlights,
			Challenges:            r.Challenges,
			Recommendations:       r.Recommendations,
			Quality:               string(r.Quality),
			Documents:             attachmentViews(r.Documents),
			ReportedBy:            r.ReportedBy,
			SubmittedAt:           r.SubmittedAt,
			ApprovedBy:            r.ApprovedBy,
			ApprovedAt:            r.ApprovedAt,
			ApprovalComments:      r.ApprovalComments,
		}
	}
	return view
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(loc).Format("02/01/2006 15:04")
}

// comparisonRows lines up planned fields against the actual snapshot. Without a snapshot the
// actual column repeats the plan.
func comparisonRows(a domain.Activity, catalog domain.Catalog, loc *time.Location) []ComparisonRow {
	actual := a.ActivityFields
	if a.Actual != nil {
		actual = *a.Actual
	}
	plannedStart, actualStart := a.StartTime, actual.StartTime
	pairs := [][3]string{
		{"name", a.Name, actual.Name},
		{"type", catalog.TypeLabel(a.Type), catalog.TypeLabel(actual.Type)},
		{"organizing_unit", a.OrganizingUnit, actual.OrganizingUnit},
		{"start_time", formatTime(&plannedStart, loc), formatTime(&actualStart, loc)},
		{"end_time", formatTime(a.EndTime, loc), formatTime(actual.EndTime, loc)},
		{"location", a.Location, actual.Location},
		{"description", a.Description, actual.Description},
	}
	rows := make([]ComparisonRow, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, ComparisonRow{Field: p[0], Planned: p[1], Actual: p[2], Changed: p[1] != p[2]})
	}
	return rows
}

func historyViews(entries []domain.HistoryEntry) []HistoryView {
	out := make([]HistoryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryView{
			Action: string(e.Action),
			From:   string(e.From),
			To:     string(e.To),
			Actor:  e.Actor,
			At:     e.At,
		})
	}
	return out
}

func catalogView(c domain.Catalog) CatalogView {
	view := CatalogView{Units: append([]string{}, c.Units...)}
	for _, s := range domain.Statuses {
		view.Statuses = append(view.Statuses, LabelView{Value: string(s), Label: c.StatusLabel(s)})
	}
	for _, t := range domain.ActivityTypes {
		view.Types = append(view.Types, LabelView{Value: string(t), Label: c.TypeLabel(t)})
	}
	for _, v := range []domain.View{domain.ViewAll, domain.ViewPlanning, domain.ViewResults} {
		view.Views = append(view.Views, string(v))
	}
	for _, s := range domain.ResolutionStatuses {
		view.ResolutionStatuses = append(view.ResolutionStatuses, LabelView{Value: string(s), Label: c.ResolutionStatusLabel(s)})
	}
	for _, f := range []domain.StudyFormat{domain.StudyFull, domain.StudyCompact} {
		view.StudyFormats = append(view.StudyFormats, LabelView{Value: string(f), Label: c.FormatLabel(f)})
	}
	return view
}

func statisticsView(s domain.Statistics, c domain.Catalog) StatisticsView {
	view := StatisticsView{
		Year:           s.Year,
		Total:          s.Total,
		Draft:          s.Draft,
		Pending:        s.Pending,
		InProgress:     s.InProgress,
		ResultPending:  s.ResultPending,
		Completed:      s.Completed,
		CompletionRate: s.CompletionRate,
		ByType:         make([]CountView, 0, len(s.ByType)),
		ByUnit:         make([]CountView, 0, len(s.ByUnit)),
		ByMonth:        make([]int, 12),
	}
	for _, t := range s.ByType {
		view.ByType = append(view.ByType, CountView{Key: string(t.Type), Label: c.TypeLabel(t.Type), Count: t.Count})
	}
	for _, u := range s.ByUnit {
		view.ByUnit = append(view.ByUnit, CountView{Key: u.Unit, Label: u.Unit, Count: u.Count, Percentage: u.Percentage})
	}
	for _, m := range s.ByMonth {
		if m.Month >= 1 && m.Month <= 12 {
			view.ByMonth[m.Month-1] = m.Count
		}
	}
	return view
}
