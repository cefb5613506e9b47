package postgres

import (
	"encoding/json"
	"time"

	"example.com/activityplanner/internal/domain"
)

type participantRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Unit     string `json:"unit"`
	Role     string `json:"role,omitempty"`
	Attended *bool  `json:"attended,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type fileRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

type fieldsRecord struct {
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	OrganizingUnit string     `json:"organizing_unit"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Location       string     `json:"location"`
	Description    string     `json:"description,omitempty"`
}

type resultRecord struct {
	ImplementationContent string       `json:"implementation_content"`
	Conclusion            string       `json:"conclusion"`
	ParticipantList       fileRecord   `json:"participant_list"`
	Highlights            string       `json:"highlights,omitempty"`
	Challenges            string       `json:"challenges,omitempty"`
	Recommendations       string       `json:"recommendations,omitempty"`
	Quality               string       `json:"quality,omitempty"`
	Documents             []fileRecord `json:"documents,omitempty"`
	ReportedBy            string       `json:"reported_by"`
	SubmittedAt           time.Time    `json:"submitted_at"`
	ApprovedBy            string       `json:"approved_by,omitempty"`
	ApprovedAt            *time.Time   `json:"approved_at,omitempty"`
	ApprovalComments      string       `json:"approval_comments,omitempty"`
}

// columns holds the JSONB columns of an activities row.
type columns struct {
	participants []byte
	attachments  []byte
	actual       []byte
	result       []byte
}

func toColumns(a domain.Activity) (columns, error) {
	var out columns
	var err error

	participants := make([]participantRecord, 0, len(a.Participants))
	for _, p := range a.Participants {
		participants = append(participants, participantRecord(p))
	}
	if out.participants, err = json.Marshal(participants); err != nil {
		return columns{}, err
	}
	if out.attachments, err = json.Marshal(toFileRecords(a.Attachments)); err != nil {
		return columns{}, err
	}
	if a.Actual != nil {
		if out.actual, err = json.Marshal(toFieldsRecord(*a.Actual)); err != nil {
			return columns{}, err
		}
	}
	if r := a.Result; r != nil {
		record := resultRecord{
			ImplementationContent: r.ImplementationContent,
			Conclusion:            r.Conclusion,
			ParticipantList:       fileRecord(r.ParticipantList),
			Highlights:            r.Highlights,
			Challenges:            r.Challenges,
			Recommendations:       r.Recommendations,
			Quality:               string(r.Quality),
			Documents:             toFileRecords(r.Documents),
			ReportedBy:            r.ReportedBy,
			SubmittedAt:           r.SubmittedAt,
			ApprovedBy:            r.ApprovedBy,
			ApprovedAt:            r.ApprovedAt,
			ApprovalComments:      r.ApprovalComments,
		}
		if out.result, err = json.Marshal(record); err != nil {
			return columns{}, err
		}
	}
	return out, nil
}

func (c columns) apply(a *domain.Activity) error {
	var participants []participantRecord
	if err := json.Unmarshal(c.participants, &participants); err != nil {
		return err
	}
	a.Participants = make([]domain.Participant, 0, len(participants))
	for _, p := range participants {
		a.Participants = append(a.Participants, domain.Participant(p))
	}

	var attachments []fileRecord
	if err := json.Unmarshal(c.attachments, &attachments); err != nil {
		return err
	}
	a.Attachments = fromFileRecords(attachments)

	if len(c.actual) > 0 {
		var actual fieldsRecord
		if err := json.Unmarshal(c.actual, &actual); err != nil {
			return err
		}
		fields := fromFieldsRecord(actual)
		a.Actual = &fields
	}
	if len(c.result) > 0 {
		var r resultRecord
		if err := json.Unmarshal(c.result, &r); err != nil {
			return err
		}
		a.Result = &domain.ResultReport{
			ImplementationContent: r.ImplementationContent,
			Conclusion:            r.Conclusion,
			ParticipantList:       domain.FileAttachment(r.ParticipantList),
			Highlights:            r.Highlights,
			Challenges:            r.Challenges,
			Recommendations:       r.Recommendations,
			Quality:               domain.Quality(r.Quality),
			Documents:             fromFileRecords(r.Documents),
			ReportedBy:            r.ReportedBy,
			SubmittedAt:           r.SubmittedAt,
			ApprovedBy:            r.ApprovedBy,
			ApprovedAt:            r.ApprovedAt,
			ApprovalComments:      r.ApprovalComments,
		}
	}
	return nil
}

func toFileRecords(in []domain.FileAttachment) []fileRecord {
	out := make([]fileRecord, 0, len(in))
	for _, f := range in {
		out = append(out, fileRecord(f))
	}
	return out
}

func fromFileRecords(in []fileRecord) []domain.FileAttachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.FileAttachment, 0, len(in))
	for _, f := range in {
		out = append(out, domain.FileAttachment(f))
	}
	return out
}

func toFieldsRecord(f domain.ActivityFields) fieldsRecord {
	return fieldsRecord{
		Name:           f.Name,
		Type:           string(f.Type),
		OrganizingUnit: f.OrganizingUnit,
		StartTime:      f.StartTime,
		EndTime:        f.EndTime,
		Location:       f.Location,
		Description:    f.Description,
	}
}

func fromFieldsRecord(r fieldsRecord) domain.ActivityFields {
	return domain.ActivityFields{
		Name:           r.Name,
		Type:           domain.ActivityType(r.Type),
		OrganizingUnit: r.OrganizingUnit,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Location:       r.Location,
		Description:    r.Description,
	}
}
