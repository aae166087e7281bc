package cohort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/bucket"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/engine"
)

type sample struct {
	annotator string
	platform  string
	days      float64
	quality   float64
	scored    bool
	isError   bool
}

var adapter = engine.NewDomainAdapter[sample]().
	Dimension("annotator_id", func(s sample) string { return s.annotator }).
	Dimension("platform", func(s sample) string { return s.platform }).
	OrderedDimension("cohort_period", func(s sample) string {
		return bucket.CohortPeriod.Label(s.days)
	}, bucket.CohortPeriod.Ordinal()).
	OptionalMeasure("quality_score", func(s sample) (float64, bool) { return s.quality, s.scored }).
	Measure("error_flag", func(s sample) float64 {
		if s.isError {
			return 1
		}
		return 0
	})

func scored(annotator, platform string, days, quality float64) sample {
	return sample{annotator: annotator, platform: platform, days: days, quality: quality, scored: true}
}

// a1 contributes three records, a2 one, in the same cell.
func unevenCell() []sample {
	return []sample{
		scored("a1", "P", 3, 0.9),
		scored("a1", "P", 4, 0.9),
		scored("a1", "P", 5, 0.9),
		scored("a2", "P", 2, 0.5),
	}
}

func qualityQuery() Query {
	return Query{
		Entity: "annotator_id",
		Group:  "platform",
		Period: "cohort_period",
		Metric: engine.Avg("avg_quality", "quality_score").Rounded(3),
	}
}

func TestTrendAndPooledDiverge(t *testing.T) {
	view := adapter.Bind(unevenCell())
	q := qualityQuery()

	trend, err := Trend(view, q)
	require.NoError(t, err)
	require.Len(t, trend, 1)
	row := trend[0]
	assert.Equal(t, engine.GroupKey{"P", "First Week"}, row.Key)
	assert.InDelta(t, 0.7, row.Value(q.MeanName()).Float, 1e-9)
	assert.InDelta(t, 0.5, row.Value(q.MinName()).Float, 1e-9)
	assert.InDelta(t, 0.9, row.Value(q.MaxName()).Float, 1e-9)
	assert.Equal(t, 2.0, row.Value(EntitiesMetric).Float)

	pooled, err := Pooled(view, q)
	require.NoError(t, err)
	require.Len(t, pooled, 1)
	assert.InDelta(t, 0.8, pooled[0].Value("avg_quality").Float, 1e-9)
	assert.Equal(t, 4.0, pooled[0].Value(RecordsMetric).Float)

	assert.NotEqual(t, row.Value(q.MeanName()).Float, pooled[0].Value("avg_quality").Float)
}

func TestTrendAndPooledAgreeOnBalancedCells(t *testing.T) {
	view := adapter.Bind([]sample{
		scored("a1", "P", 1, 0.8),
		scored("a1", "P", 1, 0.6),
		scored("a2", "P", 1, 0.4),
		scored("a2", "P", 1, 0.2),
	})
	q := qualityQuery()

	trend, err := Trend(view, q)
	require.NoError(t, err)
	pooled, err := Pooled(view, q)
	require.NoError(t, err)
	assert.InDelta(t, pooled[0].Value("avg_quality").Float, trend[0].Value(q.MeanName()).Float, 1e-9)
}

func TestTrendOrdersByGroupThenPeriod(t *testing.T) {
	view := adapter.Bind([]sample{
		scored("a1", "Q", 400, 0.9),
		scored("a1", "P", 400, 0.9),
		scored("a2", "P", 10, 0.8),
		scored("a3", "P", 1, 0.7),
		scored("a4", "P", 100, 0.6),
	})

	rows, err := Trend(view, qualityQuery())
	require.NoError(t, err)

	var keys []engine.GroupKey
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []engine.GroupKey{
		{"P", "First Week"},
		{"P", "First Month"},
		{"P", "Months 4-6"},
		{"P", "Tenured"},
		{"Q", "Tenured"},
	}, keys)
}

func TestTrendWithoutGroup(t *testing.T) {
	q := qualityQuery()
	q.Group = ""

	rows, err := Trend(adapter.Bind(unevenCell()), q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"cohort_period"}, rows[0].Dimensions)
}

func TestTrendCountsEntitiesWithoutValues(t *testing.T) {
	data := append(unevenCell(), sample{annotator: "a3", platform: "P", days: 1})

	q := qualityQuery()
	rows, err := Trend(adapter.Bind(data), q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3.0, rows[0].Value(EntitiesMetric).Float)
	assert.InDelta(t, 0.7, rows[0].Value(q.MeanName()).Float, 1e-9)
}

func TestTrendAllValuesUndefined(t *testing.T) {
	data := []sample{
		{annotator: "a1", platform: "P", days: 1},
		{annotator: "a2", platform: "P", days: 1},
	}
	q := qualityQuery()
	rows, err := Trend(adapter.Bind(data), q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Value(q.MeanName()).Valid)
	assert.False(t, rows[0].Value(q.MaxName()).Valid)
	assert.Equal(t, 2.0, rows[0].Value(EntitiesMetric).Float)
}

func TestTrendAppliesScaleAfterEntityPass(t *testing.T) {
	view := adapter.Bind([]sample{
		{annotator: "a1", platform: "P", days: 1, isError: true},
		{annotator: "a1", platform: "P", days: 1},
		{annotator: "a2", platform: "P", days: 1},
		{annotator: "a2", platform: "P", days: 1},
	})
	q := Query{
		Entity: "annotator_id",
		Group:  "platform",
		Period: "cohort_period",
		Metric: engine.Avg("error_rate", "error_flag").Percent(),
	}

	rows, err := Trend(view, q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 25.0, rows[0].Value(q.MeanName()).Float)
	assert.Equal(t, 50.0, rows[0].Value(q.MaxName()).Float)
	assert.Equal(t, 0.0, rows[0].Value(q.MinName()).Float)
}

func TestTrendFilters(t *testing.T) {
	data := append(unevenCell(), scored("a9", "Q", 1, 0.1))
	q := qualityQuery()
	q.Filters = engine.Where("platform", "p")

	rows, err := Trend(adapter.Bind(data), q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "P", rows[0].Key[0])
}

func TestTrendEmptyView(t *testing.T) {
	rows, err := Trend(adapter.Bind(nil), qualityQuery())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestQueryErrors(t *testing.T) {
	view := adapter.Bind(unevenCell())

	tests := []struct {
		name   string
		mutate func(*Query)
		want   error
	}{
		{"missing entity", func(q *Query) { q.Entity = "" }, engine.ErrUnknownDimension},
		{"missing period", func(q *Query) { q.Period = "" }, engine.ErrUnknownDimension},
		{"entity equals group", func(q *Query) { q.Entity = "platform" }, engine.ErrUnknownDimension},
		{"unknown period", func(q *Query) { q.Period = "tenure" }, engine.ErrUnknownDimension},
		{"unknown measure", func(q *Query) { q.Metric = engine.Avg("x", "nope") }, engine.ErrUnknownMetric},
		{"ratio metric", func(q *Query) { q.Metric = engine.RatioOfTotal("share", "n") }, engine.ErrUnknownMetric},
		{"reserved metric name", func(q *Query) { q.Metric.Name = engine.RecordsMeasure }, engine.ErrUnknownMetric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := qualityQuery()
			tt.mutate(&q)

			_, err := Trend(view, q)
			assert.ErrorIs(t, err, tt.want)
			_, err = Pooled(view, q)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTrendShardedMatchesSinglePass(t *testing.T) {
	var data []sample
	for i := 0; i < 60; i++ {
		data = append(data, scored(
			[]string{"a1", "a2", "a3", "a4"}[i%4],
			[]string{"P", "Q"}[i%2],
			float64(i*7%250),
			float64(i%4)/4,
		))
	}
	view := adapter.Bind(data)

	single, err := Trend(view, qualityQuery())
	require.NoError(t, err)
	sharded, err := Trend(view, qualityQuery(), engine.WithShards(4))
	require.NoError(t, err)
	assert.Equal(t, single, sharded)
}
