package schema

import (
	"strings"
)

// ============================================================================
// SCHEMA: the dimensions and measures a dataset exposes
// ============================================================================
// The record package publishes the annotation catalog through this type.
// The CLI and HTTP wrapper list it; renderers use display names for headers.
// ============================================================================

// Config describes the complete shape of a dataset.
type Config struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Dimensions []DimensionMeta `json:"dimensions" yaml:"dimensions"`
	Measures   []MeasureMeta   `json:"measures" yaml:"measures"`
}

// DimensionMeta describes a string field used for grouping/filtering.
type DimensionMeta struct {
	Key         string   `json:"key" yaml:"key"`
	DisplayName string   `json:"displayName" yaml:"display_name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Groupable   bool     `json:"groupable" yaml:"groupable"`
	Filterable  bool     `json:"filterable" yaml:"filterable"`
	IsTemporal  bool     `json:"isTemporal,omitempty" yaml:"is_temporal,omitempty"`
	DerivedFrom string   `json:"derivedFrom,omitempty" yaml:"derived_from,omitempty"` // source field if bucketed
	Labels      []string `json:"labels,omitempty" yaml:"labels,omitempty"`            // closed label set, in natural order
}

// MeasureMeta describes a numeric field used for aggregation.
type MeasureMeta struct {
	Key          string   `json:"key" yaml:"key"`
	DisplayName  string   `json:"displayName" yaml:"display_name"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Unit         string   `json:"unit,omitempty" yaml:"unit,omitempty"` // "seconds", "days", "score", "flag"
	Optional     bool     `json:"optional,omitempty" yaml:"optional,omitempty"`
	Aggregations []string `json:"aggregations,omitempty" yaml:"aggregations,omitempty"`
}

// DefaultDimension creates a DimensionMeta with sensible defaults.
func DefaultDimension(key, displayName, description string) DimensionMeta {
	return DimensionMeta{
		Key:         key,
		DisplayName: displayName,
		Description: description,
		Groupable:   true,
		Filterable:  true,
	}
}

// BucketDimension creates a DimensionMeta for a label derived from another field.
func BucketDimension(key, displayName, derivedFrom string, labels []string) DimensionMeta {
	d := DefaultDimension(key, displayName, "")
	d.DerivedFrom = derivedFrom
	d.Labels = labels
	return d
}

// DefaultMeasure creates a MeasureMeta with sensible defaults.
func DefaultMeasure(key, displayName, unit string) MeasureMeta {
	return MeasureMeta{
		Key:          key,
		DisplayName:  displayName,
		Unit:         unit,
		Aggregations: []string{"sum", "avg", "min", "max"},
	}
}

// DimensionKeys returns all dimension keys.
func (c Config) DimensionKeys() []string {
	keys := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

// MeasureKeys returns all measure keys.
func (c Config) MeasureKeys() []string {
	keys := make([]string, len(c.Measures))
	for i, m := range c.Measures {
		keys[i] = m.Key
	}
	return keys
}

// DisplayName returns the display name registered for a dimension or measure
// key, or a title-cased version of the key.
func (c Config) DisplayName(key string) string {
	for _, d := range c.Dimensions {
		if d.Key == key && d.DisplayName != "" {
			return d.DisplayName
		}
	}
	for _, m := range c.Measures {
		if m.Key == key && m.DisplayName != "" {
			return m.DisplayName
		}
	}
	return LabelForKey(key)
}

// LabelForKey turns "error_rate_pct" into "Error Rate Pct".
func LabelForKey(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
