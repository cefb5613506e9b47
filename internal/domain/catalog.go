package domain

import "slices"

// Catalog holds the injected display labels and the organizing-unit enumeration.
type Catalog struct {
	StatusLabels           map[Status]string
	TypeLabels             map[ActivityType]string
	Units                  []string
	ResolutionStatusLabels map[ResolutionStatus]string
	FormatLabels           map[StudyFormat]string
}

// HasUnit reports whether unit belongs to the enumeration.
func (c Catalog) HasUnit(unit string) bool {
	return slices.Contains(c.Units, unit)
}

// StatusLabel returns the display label for s, falling back to the raw value.
func (c Catalog) StatusLabel(s Status) string {
	if label, ok := c.StatusLabels[s]; ok && label != "" {
		return label
	}
	return string(s)
}

// TypeLabel returns the display label for t, falling back to the raw value.
func (c Catalog) TypeLabel(t ActivityType) string {
	if label, ok := c.TypeLabels[t]; ok && label != "" {
		return label
	}
	return string(t)
}

// ResolutionStatusLabel returns the display label for s, falling back to the raw value.
func (c Catalog) ResolutionStatusLabel(s ResolutionStatus) string {
	if label, ok := c.ResolutionStatusLabels[s]; ok && label != "" {
		return label
	}
	return string(s)
}

// FormatLabel returns the display label for f, falling back to the raw value.
func (c Catalog) FormatLabel(f StudyFormat) string {
	if label, ok := c.FormatLabels[f]; ok && label != "" {
		return label
	}
	return string(f)
}
