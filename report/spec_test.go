package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/cohort"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/engine"
)

func TestBuiltinSpecsAreValid(t *testing.T) {
	c := Builtin()
	assert.Equal(t, len(BuiltinSpecs()), c.Len())
	for _, s := range c.Specs() {
		assert.NoError(t, s.Validate(), s.Name)
		assert.NotEmpty(t, s.Title, s.Name)
	}
	assert.Contains(t, c.Names(), "platform_error_rates")
	assert.Contains(t, c.Names(), "complexity_levels")
}

func TestSpecValidate(t *testing.T) {
	count := []engine.Metric{engine.Count("n")}
	cq := &cohort.Query{Entity: "annotator_id", Period: "cohort_period", Metric: engine.Count("n")}

	tests := []struct {
		name string
		spec Spec
		ok   bool
	}{
		{"minimal aggregate", Spec{Name: "ok", Metrics: count}, true},
		{"bad name", Spec{Name: "Bad Name", Metrics: count}, false},
		{"no metrics", Spec{Name: "empty"}, false},
		{"unknown kind", Spec{Name: "k", Kind: "pie", Metrics: count}, false},
		{"negative limit", Spec{Name: "l", Metrics: count, Limit: -1}, false},
		{"aggregate with cohort", Spec{Name: "c", Metrics: count, Cohort: cq}, false},
		{"cohort", Spec{Name: "c", Kind: KindCohort, Cohort: cq}, true},
		{"cohort without query", Spec{Name: "c", Kind: KindCohort}, false},
		{"pooled with metrics", Spec{Name: "p", Kind: KindPooled, Cohort: cq, Metrics: count}, false},
		{"cohort with rollup", Spec{Name: "c", Kind: KindCohort, Cohort: cq, Rollup: &Rollup{Metrics: count}}, false},
		{"unknown classifier", Spec{Name: "d", Metrics: count, Derive: &Derivation{Name: "x", Classifier: "astrology"}}, false},
		{"classifier input missing", Spec{Name: "d", Metrics: count, Derive: &Derivation{
			Name: "c", Classifier: ClassifierTaskComplexity, Inputs: map[string]string{"mean_time": "n"},
		}}, false},
		{"classifier input unknown metric", Spec{Name: "d", Metrics: count, Derive: &Derivation{
			Name: "c", Classifier: ClassifierTaskComplexity, Inputs: map[string]string{"mean_time": "n", "error_rate": "rate"},
		}}, false},
		{"rollup without metrics", Spec{Name: "r", Metrics: count, Rollup: &Rollup{Dimensions: []string{"x"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidSpec)
		})
	}
}

func TestParseSpecs(t *testing.T) {
	specs, err := ParseSpecs([]byte(`
- name: bbox_error_rates
  title: Bounding-box error rates
  dimensions: [platform]
  filters:
    dimensions:
      task_type: [bounding_box]
  metrics:
    - {name: annotations, kind: count}
    - {name: error_rate_pct, kind: avg, field: error_flag, scale: 100, round: 2}
    - {name: share, kind: ratio_of_total, of: annotations}
  order_by:
    - {by: error_rate_pct, desc: true}
  limit: 5
- name: tenure_quality
  kind: cohort
  cohort:
    entity: annotator_id
    period: cohort_period
    metric: {name: q, kind: avg, field: quality_score}
`))
	require.NoError(t, err)
	require.Len(t, specs, 2)

	s := specs[0]
	assert.Equal(t, []string{"platform"}, s.Dimensions)
	assert.Equal(t, []string{"bounding_box"}, s.Filters.Dimensions["task_type"])
	require.Len(t, s.Metrics, 3)
	assert.Equal(t, engine.KindAvg, s.Metrics[1].Kind)
	assert.Equal(t, 100.0, s.Metrics[1].Scale)
	require.NotNil(t, s.Metrics[1].Round)
	assert.Equal(t, 2, *s.Metrics[1].Round)
	assert.Equal(t, engine.KindRatio, s.Metrics[2].Kind)
	assert.Equal(t, []engine.OrderTerm{engine.Desc("error_rate_pct")}, s.OrderBy)
	assert.Equal(t, 5, s.Limit)

	assert.Equal(t, KindCohort, specs[1].Kind)
	assert.Equal(t, "cohort_period", specs[1].Cohort.Period)
}

func TestParseSpecsRejectsInvalid(t *testing.T) {
	_, err := ParseSpecs([]byte(`- {name: "x y", metrics: [{name: n, kind: count}]}`))
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = ParseSpecs([]byte(`not: [a list`))
	assert.Error(t, err)
}

func TestCatalogReplacesInPlace(t *testing.T) {
	c, err := NewCatalog(
		Spec{Name: "a", Metrics: []engine.Metric{engine.Count("n")}},
		Spec{Name: "b", Metrics: []engine.Metric{engine.Count("n")}},
	)
	require.NoError(t, err)

	require.NoError(t, c.Add(Spec{Name: "a", Title: "new", Metrics: []engine.Metric{engine.Count("n")}}))
	assert.Equal(t, []string{"a", "b"}, c.Names())

	s, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "new", s.Title)
	assert.Equal(t, KindAggregate, s.Kind)

	_, err = c.Get("zzz")
	assert.ErrorIs(t, err, ErrUnknownReport)
}

func TestCohortQueryFoldsSpecFilters(t *testing.T) {
	s := Spec{
		Name:    "c",
		Kind:    KindCohort,
		Cohort:  &cohort.Query{Entity: "annotator_id", Period: "cohort_period", Metric: engine.Count("n")},
		Filters: engine.Where("platform", "A"),
	}
	q := s.CohortQuery()
	assert.Equal(t, []string{"A"}, q.Filters.Dimensions["platform"])
	assert.True(t, s.Cohort.Filters.IsEmpty(), "spec's cohort query is not mutated")
}

func TestClassifiers(t *testing.T) {
	assert.Equal(t, []string{ClassifierTaskComplexity}, Classifiers())
}
