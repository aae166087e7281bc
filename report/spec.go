// Package report assembles named summaries over a frozen record view.
//
// A Spec declares one summary: an aggregation, a cohort trend or its pooled
// counterpart, optionally followed by an aggregate-level derivation and a
// second-pass rollup. A Catalog holds the built-in specs plus any loaded from
// YAML; a Runner executes them with logging, metrics and tracing.
package report

import (
	"errors"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/cohort"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/engine"
)

// Kind selects how a Spec is computed.
type Kind string

const (
	KindAggregate Kind = "aggregate"
	KindCohort    Kind = "cohort"
	KindPooled    Kind = "pooled"
)

var (
	// ErrUnknownReport is returned for names missing from the catalog.
	ErrUnknownReport = errors.New("unknown report")
	// ErrInvalidSpec wraps every static Spec problem.
	ErrInvalidSpec = errors.New("invalid report spec")
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Spec declares one named summary.
type Spec struct {
	Name        string `yaml:"name" json:"name"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Kind        Kind   `yaml:"kind,omitempty" json:"kind"`

	// aggregate
	Dimensions []string           `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	Metrics    []engine.Metric    `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Filters    engine.Filters     `yaml:"filters,omitempty" json:"filters,omitempty"`
	OrderBy    []engine.OrderTerm `yaml:"order_by,omitempty" json:"orderBy,omitempty"`
	Limit      int                `yaml:"limit,omitempty" json:"limit,omitempty"`

	// cohort, pooled
	Cohort *cohort.Query `yaml:"cohort,omitempty" json:"cohort,omitempty"`

	Derive *Derivation `yaml:"derive,omitempty" json:"derive,omitempty"`
	Rollup *Rollup     `yaml:"rollup,omitempty" json:"rollup,omitempty"`
}

// Derivation labels each aggregate row with a registered classifier.
// Inputs maps classifier inputs to metric names of the spec.
type Derivation struct {
	Name       string            `yaml:"name" json:"name"`
	Classifier string            `yaml:"classifier" json:"classifier"`
	Inputs     map[string]string `yaml:"inputs" json:"inputs"`
}

// Rollup regroups the (derived) rows in a second pass. Each first-pass row is
// one record to the rollup; its metric values are measures and its record
// count is the "records" measure.
type Rollup struct {
	Dimensions []string           `yaml:"dimensions" json:"dimensions"`
	Metrics    []engine.Metric    `yaml:"metrics" json:"metrics"`
	OrderBy    []engine.OrderTerm `yaml:"order_by,omitempty" json:"orderBy,omitempty"`
}

// Query is the first-pass engine query of an aggregate spec.
func (s Spec) Query() engine.Query {
	return engine.Query{
		Dimensions: s.Dimensions,
		Metrics:    s.Metrics,
		Filters:    s.Filters,
		OrderBy:    s.OrderBy,
		Limit:      s.Limit,
	}
}

// CohortQuery is the cohort query of a cohort or pooled spec with the spec's
// own filters folded in.
func (s Spec) CohortQuery() cohort.Query {
	q := *s.Cohort
	for dim, vals := range s.Filters.Dimensions {
		q.Filters = q.Filters.And(dim, vals...)
	}
	return q
}

func (s Spec) kind() Kind {
	if s.Kind == "" {
		return KindAggregate
	}
	return s.Kind
}

// Validate checks the spec without looking at data. Unknown dimensions and
// measures surface as engine.QueryError when the spec runs.
func (s Spec) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidSpec, s.Name, fmt.Sprintf(format, args...))
	}

	if !namePattern.MatchString(s.Name) {
		return invalid("name must be lower snake case")
	}

	switch s.kind() {
	case KindAggregate:
		if s.Cohort != nil {
			return invalid("aggregate reports take no cohort query")
		}
		if len(s.Metrics) == 0 {
			return invalid("at least one metric is required")
		}
	case KindCohort, KindPooled:
		if s.Cohort == nil {
			return invalid("%s reports need a cohort query", s.kind())
		}
		if len(s.Dimensions) > 0 || len(s.Metrics) > 0 {
			return invalid("%s reports take their dimensions and metric from the cohort query", s.kind())
		}
		if s.Derive != nil || s.Rollup != nil {
			return invalid("%s reports cannot derive or roll up", s.kind())
		}
	default:
		return invalid("unknown kind %q", s.Kind)
	}

	if s.Limit < 0 {
		return invalid("limit must not be negative")
	}

	if d := s.Derive; d != nil {
		c, ok := classifiers[d.Classifier]
		if !ok {
			return invalid("unknown classifier %q", d.Classifier)
		}
		if d.Name == "" {
			return invalid("derived label needs a name")
		}
		metrics := make(map[string]bool, len(s.Metrics))
		for _, m := range s.Metrics {
			metrics[m.Name] = true
		}
		for _, in := range c.inputs {
			name, ok := d.Inputs[in]
			if !ok {
				return invalid("classifier %q needs input %q", d.Classifier, in)
			}
			if !metrics[name] {
				return invalid("classifier input %q reads unknown metric %q", in, name)
			}
		}
	}

	if r := s.Rollup; r != nil && len(r.Metrics) == 0 {
		return invalid("rollup needs at least one metric")
	}
	return nil
}

// ParseSpecs decodes a YAML list of specs and validates each one.
func ParseSpecs(data []byte) ([]Spec, error) {
	var specs []Spec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decode report specs: %w", err)
	}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return specs, nil
}
