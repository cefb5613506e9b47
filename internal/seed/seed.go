// Package seed loads the catalog, the initial activities and the initial resolutions from
// TOML.
package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"example.com/activityplanner/internal/domain"
)

//go:embed seed.toml
var defaultSeed []byte

// Data is the read-only seed consumed at startup.
type Data struct {
	Catalog     domain.Catalog
	Activities  []domain.Activity
	Resolutions []domain.Resolution
}

type file struct {
	Catalog     catalogFile      `toml:"catalog"`
	Activities  []activityFile   `toml:"activities"`
	Resolutions []resolutionFile `toml:"resolutions"`
}

type catalogFile struct {
	Units                  []string          `toml:"units"`
	StatusLabels           map[string]string `toml:"status_labels"`
	TypeLabels             map[string]string `toml:"type_labels"`
	ResolutionStatusLabels map[string]string `toml:"resolution_status_labels"`
	FormatLabels           map[string]string `toml:"study_format_labels"`
}

type activityFile struct {
	ID             string            `toml:"id"`
	Name           string            `toml:"name"`
	Type           string            `toml:"type"`
	OrganizingUnit string            `toml:"organizing_unit"`
	StartTime      time.Time         `toml:"start_time"`
	EndTime        *time.Time        `toml:"end_time"`
	Location       string            `toml:"location"`
	Description    string            `toml:"description"`
	Status         string            `toml:"status"`
	CreatedBy      string            `toml:"created_by"`
	CreatedAt      time.Time         `toml:"created_at"`
	Participants   []participantFile `toml:"participants"`
	Attachments    []attachmentFile  `toml:"attachments"`
	Result         *resultFile       `toml:"result"`
}

type participantFile struct {
	Name     string `toml:"name"`
	Position string `toml:"position"`
	Unit     string `toml:"unit"`
	Role     string `toml:"role"`
	Attended *bool  `toml:"attended"`
	Notes    string `toml:"notes"`
}

type attachmentFile struct {
	Name string `toml:"name"`
	Size int64  `toml:"size"`
	Type string `toml:"type"`
	URL  string `toml:"url"`
}

type resultFile struct {
	ImplementationContent string         `toml:"implementation_content"`
	Conclusion            string         `toml:"conclusion"`
	Highlights            string         `toml:"highlights"`
	Challenges            string         `toml:"challenges"`
	Recommendations       string         `toml:"recommendations"`
	Quality               string         `toml:"quality"`
	ReportedBy            string         `toml:"reported_by"`
	ApprovedBy            string         `toml:"approved_by"`
	ParticipantList       attachmentFile `toml:"participant_list"`
}

// Load reads the seed at path, or the embedded default when path is empty.
func Load(path string) (Data, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultSeed)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a TOML seed document.
func Parse(raw []byte) (Data, error) {
	var f file
	if err := toml.Unmarshal(raw, &f); err != nil {
		return Data{}, fmt.Errorf("decode seed: %w", err)
	}

	catalog, err := f.Catalog.toDomain()
	if err != nil {
		return Data{}, err
	}

	activities := make([]domain.Activity, 0, len(f.Activities))
	seen := make(map[string]struct{}, len(f.Activities))
	var errs []error
	for i, a := range f.Activities {
		activity, err := a.toDomain(catalog)
		if err != nil {
			errs = append(errs, fmt.Errorf("activity %d: %w", i, err))
			continue
		}
		if _, dup := seen[activity.ID]; dup {
			errs = append(errs, fmt.Errorf("activity %d: duplicate id %s", i, activity.ID))
			continue
		}
		seen[activity.ID] = struct{}{}
		activities = append(activities, activity)
	}

	resolutions := make([]domain.Resolution, 0, len(f.Resolutions))
	seen = make(map[string]struct{}, len(f.Resolutions))
	for i, r := range f.Resolutions {
		resolution, err := r.toDomain()
		if err != nil {
			errs = append(errs, fmt.Errorf("resolution %d: %w", i, err))
			continue
		}
		if _, dup := seen[resolution.ID]; dup {
			errs = append(errs, fmt.Errorf("resolution %d: duplicate id %s", i, resolution.ID))
			continue
		}
		seen[resolution.ID] = struct{}{}
		resolutions = append(resolutions, resolution)
	}
	if len(errs) > 0 {
		return Data{}, errors.Join(errs...)
	}
	return Data{Catalog: catalog, Activities: activities, Resolutions: resolutions}, nil
}

func (c catalogFile) toDomain() (domain.Catalog, error) {
	if len(c.Units) == 0 {
		return domain.Catalog{}, errors.New("seed catalog has no units")
	}
	out := domain.Catalog{
		StatusLabels:           make(map[domain.Status]string, len(c.StatusLabels)),
		TypeLabels:             make(map[domain.ActivityType]string, len(c.TypeLabels)),
		Units:                  c.Units,
		ResolutionStatusLabels: make(map[domain.ResolutionStatus]string, len(c.ResolutionStatusLabels)),
		FormatLabels:           make(map[domain.StudyFormat]string, len(c.FormatLabels)),
	}
	for k, v := range c.StatusLabels {
		status := domain.Status(k)
		if !status.Valid() {
			return domain.Catalog{}, fmt.Errorf("unknown status label %q", k)
		}
		out.StatusLabels[status] = v
	}
	for k, v := range c.TypeLabels {
		t := domain.ActivityType(k)
		if !t.Valid() {
			return domain.Catalog{}, fmt.Errorf("unknown type label %q", k)
		}
		out.TypeLabels[t] = v
	}
	for k, v := range c.ResolutionStatusLabels {
		status := domain.ResolutionStatus(k)
		if !status.Valid() {
			return domain.Catalog{}, fmt.Errorf("unknown resolution status label %q", k)
		}
		out.ResolutionStatusLabels[status] = v
	}
	for k, v := range c.FormatLabels {
		format := domain.StudyFormat(k)
		if !format.Valid() {
			return domain.Catalog{}, fmt.Errorf("unknown study format label %q", k)
		}
		out.FormatLabels[format] = v
	}
	return out, nil
}

func (a activityFile) toDomain(catalog domain.Catalog) (domain.Activity, error) {
	status := domain.Status(a.Status)
	if a.Status == "" {
		status = domain.StatusDraft
	}
	if !status.Valid() {
		return domain.Activity{}, fmt.Errorf("unknown status %q", a.Status)
	}

	activityType := domain.ActivityType(a.Type)
	if a.Type == "" {
		activityType = domain.TypeConference
	}
	fields := domain.ActivityFields{
		Name:           a.Name,
		Type:           activityType,
		OrganizingUnit: a.OrganizingUnit,
		StartTime:      a.StartTime.UTC(),
		EndTime:        utcPtr(a.EndTime),
		Location:       a.Location,
		Description:    a.Description,
	}
	if err := fields.Validate(catalog); err != nil {
		return domain.Activity{}, err
	}

	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := a.CreatedAt.UTC()
	if a.CreatedAt.IsZero() {
		createdAt = fields.StartTime
	}

	activity := domain.Activity{
		ID:             id,
		ActivityFields: fields,
		Status:         status,
		CreatedBy:      a.CreatedBy,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
		Version:        1,
	}
	for _, p := range a.Participants {
		activity.Participants = append(activity.Participants, domain.Participant{
			ID:       uuid.NewString(),
			Name:     p.Name,
			Position: p.Position,
			Unit:     p.Unit,
			Role:     p.Role,
			Attended: p.Attended,
			Notes:    p.Notes,
		})
	}
	for _, f := range a.Attachments {
		activity.Attachments = append(activity.Attachments, f.toDomain())
	}
	if a.Result != nil {
		activity.Result = a.Result.toDomain(status, createdAt)
	}
	return activity, nil
}

func (f attachmentFile) toDomain() domain.FileAttachment {
	return domain.FileAttachment{ID: uuid.NewString(), Name: f.Name, Size: f.Size, Type: f.Type, URL: f.URL}
}

func (r resultFile) toDomain(status domain.Status, at time.Time) *domain.ResultReport {
	report := &domain.ResultReport{
		ImplementationContent: r.ImplementationContent,
		Conclusion:            r.Conclusion,
		ParticipantList:       r.ParticipantList.toDomain(),
		Highlights:            r.Highlights,
		Challenges:            r.Challenges,
		Recommendations:       r.Recommendations,
		Quality:               domain.Quality(r.Quality),
		ReportedBy:            r.ReportedBy,
		SubmittedAt:           at,
	}
	if status == domain.StatusCompleted && r.ApprovedBy != "" {
		approvedAt := at
		report.ApprovedBy = r.ApprovedBy
		report.ApprovedAt = &approvedAt
	}
	return report
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
