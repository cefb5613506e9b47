package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Message keys attached to field validation failures. They are rendered by the notification
// surface.
const (
	MsgNameRequired      = "validation.name_required"
	MsgStartTimeRequired = "validation.start_time_required"
	MsgLocationRequired  = "validation.location_required"
	MsgTypeInvalid       = "validation.type_invalid"
	MsgUnitInvalid       = "validation.unit_invalid"
)

// Result submission inputs, in the order they are checked.
const (
	InputImplementationContent = "implementationContent"
	InputConclusion            = "conclusion"
	InputParticipantList       = "participantList"
)

// ValidationError maps each invalid field to a message key. Any entry blocks the save.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// MissingInputError names the first absent result-submission input.
type MissingInputError struct {
	Input string
}

func (e *MissingInputError) Error() string {
	return "missing required input: " + e.Input
}

// Is lets errors.Is match ErrMissingInput.
func (e *MissingInputError) Is(target error) bool {
	return target == ErrMissingInput
}

// normalize trims text fields and fills the type and unit defaults offered by the form.
func (f ActivityFields) normalize(catalog Catalog) ActivityFields {
	f.Name = strings.TrimSpace(f.Name)
	f.Location = strings.TrimSpace(f.Location)
	f.OrganizingUnit = strings.TrimSpace(f.OrganizingUnit)
	f.Description = strings.TrimSpace(f.Description)
	if f.Type == "" {
		f.Type = TypeConference
	}
	if f.OrganizingUnit == "" && len(catalog.Units) > 0 {
		f.OrganizingUnit = catalog.Units[0]
	}
	if !f.StartTime.IsZero() {
		f.StartTime = f.StartTime.UTC()
	}
	if f.EndTime != nil {
		end := f.EndTime.UTC()
		f.EndTime = &end
	}
	return f
}

// Validate checks the mandatory fields and enumeration membership.
func (f ActivityFields) Validate(catalog Catalog) error {
	fields := make(map[string]string)
	if strings.TrimSpace(f.Name) == "" {
		fields["name"] = MsgNameRequired
	}
	if f.StartTime.IsZero() {
		fields["startTime"] = MsgStartTimeRequired
	}
	if strings.TrimSpace(f.Location) == "" {
		fields["location"] = MsgLocationRequired
	}
	if f.Type != "" && !f.Type.Valid() {
		fields["type"] = MsgTypeInvalid
	}
	if f.OrganizingUnit != "" && len(catalog.Units) > 0 && !catalog.HasUnit(f.OrganizingUnit) {
		fields["organizingUnit"] = MsgUnitInvalid
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ResultSubmission is the result report offered for an in-progress activity.
type ResultSubmission struct {
	ImplementationContent string
	Conclusion            string
	ParticipantList       *FileAttachment
	Highlights            string
	Challenges            string
	Recommendations       string
	Quality               Quality
	Documents             []FileAttachment
}

// Validate checks the required inputs in order and names the first missing one.
func (r ResultSubmission) Validate() error {
	if strings.TrimSpace(r.ImplementationContent) == "" {
		return &MissingInputError{Input: InputImplementationContent}
	}
	if strings.TrimSpace(r.Conclusion) == "" {
		return &MissingInputError{Input: InputConclusion}
	}
	if r.ParticipantList == nil || strings.TrimSpace(r.ParticipantList.Name) == "" {
		return &MissingInputError{Input: InputParticipantList}
	}
	return nil
}
