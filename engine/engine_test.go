package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/bucket"
)

// ============================================================================
// TEST DATA
// ============================================================================

type event struct {
	platform string
	day      string
	kind     string
	failed   bool
	seconds  float64
	score    float64
	scored   bool
}

func eventAdapter() *DomainAdapter[event] {
	return NewDomainAdapter[event]().
		Dimension("platform", func(e event) string { return e.platform }).
		OrderedDimension("day", func(e event) string { return e.day }, bucket.Weekdays).
		Dimension("kind", func(e event) string { return e.kind }).
		Measure("failed", func(e event) float64 {
			if e.failed {
				return 1
			}
			return 0
		}).
		Measure("seconds", func(e event) float64 { return e.seconds }).
		OptionalMeasure("score", func(e event) (float64, bool) { return e.score, e.scored })
}

// tenEvents: 6 on platform A (2 failed), 4 on platform B (1 failed).
func tenEvents() []event {
	var out []event
	for i := 0; i < 6; i++ {
		out = append(out, event{platform: "A", day: "Monday", kind: "bbox", failed: i < 2, seconds: 40, score: 0.8, scored: true})
	}
	for i := 0; i < 4; i++ {
		out = append(out, event{platform: "B", day: "Sunday", kind: "polygon", failed: i < 1, seconds: 90})
	}
	return out
}

func randomEvents(n int, seed int64) []event {
	r := rand.New(rand.NewSource(seed))
	platforms := []string{"A", "B", "C", "D"}
	days := []string{"Monday", "Tuesday", "Friday", "Sunday"}
	kinds := []string{"bbox", "polygon", "text"}
	out := make([]event, n)
	for i := range out {
		out[i] = event{
			platform: platforms[r.Intn(len(platforms))],
			day:      days[r.Intn(len(days))],
			kind:     kinds[r.Intn(len(kinds))],
			failed:   r.Intn(5) == 0,
			seconds:  float64(r.Intn(300)),
			score:    r.Float64(),
			scored:   r.Intn(4) != 0,
		}
	}
	return out
}

func errorRateQuery() Query {
	return Query{
		Dimensions: []string{"platform"},
		Metrics: []Metric{
			Count("annotations"),
			Sum("errors", "failed"),
			Avg("error_rate_pct", "failed").Percent(),
		},
		OrderBy: []OrderTerm{Desc("error_rate_pct")},
	}
}

// ============================================================================
// 1. BASIC AGGREGATION
// ============================================================================

func TestAggregateErrorRateByPlatform(t *testing.T) {
	view := eventAdapter().Bind(tenEvents())

	rows, err := Aggregate(view, errorRateQuery())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, GroupKey{"A"}, rows[0].Key)
	assert.Equal(t, 33.33, rows[0].Value("error_rate_pct").Float)
	assert.Equal(t, 6.0, rows[0].Value("annotations").Float)
	assert.Equal(t, 2.0, rows[0].Value("errors").Float)

	assert.Equal(t, GroupKey{"B"}, rows[1].Key)
	assert.Equal(t, 25.0, rows[1].Value("error_rate_pct").Float)
}

func TestAvgIgnoresAbsentValuesAndIsNullWithoutThem(t *testing.T) {
	view := eventAdapter().Bind(tenEvents())

	rows, err := Aggregate(view, Query{
		Dimensions: []string{"platform"},
		Metrics:    []Metric{Avg("avg_score", "score"), Sum("score_sum", "score"), Min("min_s", "seconds"), Max("max_s", "seconds")},
		OrderBy:    []OrderTerm{Asc("platform")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.InDelta(t, 0.8, rows[0].Value("avg_score").Float, 1e-9)
	assert.False(t, rows[1].Value("avg_score").Valid, "platform B has no scores")
	assert.False(t, rows[1].Value("score_sum").Valid)
	assert.Equal(t, 90.0, rows[1].Value("min_s").Float)
	assert.Equal(t, 90.0, rows[1].Value("max_s").Float)
}

func TestAggregateWithoutDimensionsIsGrandTotal(t *testing.T) {
	view := eventAdapter().Bind(tenEvents())
	rows, err := Aggregate(view, Query{Metrics: []Metric{Count("n"), Sum("errors", "failed")}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 10.0, rows[0].Value("n").Float)
	assert.Equal(t, 3.0, rows[0].Value("errors").Float)
}

func TestAggregateEmptyView(t *testing.T) {
	view := eventAdapter().Bind(nil)
	rows, err := Aggregate(view, errorRateQuery())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

// ============================================================================
// 2. COMPLETENESS + RATIO NORMALIZATION
// ============================================================================

func TestCountsSumToPartitionTotals(t *testing.T) {
	events := randomEvents(500, 7)
	view := eventAdapter().Bind(events)

	rows, err := Aggregate(view, Query{
		Dimensions: []string{"platform", "kind"},
		Metrics:    []Metric{Count("n"), RatioOfTotal("share", "n", "platform")},
	})
	require.NoError(t, err)

	want := map[string]int{}
	for _, e := range events {
		want[e.platform]++
	}
	gotCount := map[string]float64{}
	gotShare := map[string]float64{}
	for _, r := range rows {
		gotCount[r.Key[0]] += r.Value("n").Float
		gotShare[r.Key[0]] += r.Value("share").Float
	}
	for p, n := range want {
		assert.Equal(t, float64(n), gotCount[p], "platform %s", p)
		assert.InDelta(t, 1.0, gotShare[p], 1e-9, "platform %s", p)
	}
}

func TestRatioOfGrandTotal(t *testing.T) {
	view := eventAdapter().Bind(tenEvents())
	rows, err := Aggregate(view, Query{
		Dimensions: []string{"platform"},
		Metrics:    []Metric{Count("n"), RatioOfTotal("pct", "n").Percent()},
		OrderBy:    []OrderTerm{Asc("platform")},
	})
	require.NoError(t, err)
	assert.Equal(t, 60.0, rows[0].Value("pct").Float)
	assert.Equal(t, 40.0, rows[1].Value("pct").Float)
}

func TestRatioWithZeroDenominatorIsNull(t *testing.T) {
	events := tenEvents()
	for i := range events {
		if events[i].platform == "B" {
			events[i].failed = false
		}
	}
	view := eventAdapter().Bind(events)

	rows, err := Aggregate(view, Query{
		Dimensions: []string{"platform", "kind"},
		Metrics:    []Metric{Sum("errors", "failed"), RatioOfTotal("error_share", "errors", "platform")},
		OrderBy:    []OrderTerm{Asc("platform")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1.0, rows[0].Value("error_share").Float)
	assert.False(t, rows[1].Value("error_share").Valid, "B has zero errors in its partition")
}

// ============================================================================
// 3. ORDERING
// ============================================================================

func TestOrderingUsesOrdinalTables(t *testing.T) {
	var events []event
	for _, d := range []string{"Sunday", "Friday", "Monday", "Tuesday"} {
		events = append(events, event{platform: "A", day: d})
	}
	view := eventAdapter().Bind(events)

	rows, err := Aggregate(view, Query{Dimensions: []string{"day"}, Metrics: []Metric{Count("n")}})
	require.NoError(t, err)
	var got []string
	for _, r := range rows {
		got = append(got, r.Key[0])
	}
	assert.Equal(t, []string{"Monday", "Tuesday", "Friday", "Sunday"}, got)

	rows, err = Aggregate(view, Query{Dimensions: []string{"day"}, Metrics: []Metric{Count("n")}, OrderBy: []OrderTerm{Desc("day")}})
	require.NoError(t, err)
	assert.Equal(t, "Sunday", rows[0].Key[0])
}

func TestTiesResolvedByKeyAndNullsLast(t *testing.T) {
	events := []event{
		{platform: "C", seconds: 10},
		{platform: "A", seconds: 10},
		{platform: "B", seconds: 10, score: 0.5, scored: true},
	}
	view := eventAdapter().Bind(events)

	rows, err := Aggregate(view, Query{
		Dimensions: []string{"platform"},
		Metrics:    []Metric{Avg("t", "seconds"), Avg("q", "score")},
		OrderBy:    []OrderTerm{Desc("t")},
	})
	require.NoError(t, err)
	assert.Equal(t, "A", rows[0].Key[0])
	assert.Equal(t, "B", rows[1].Key[0])
	assert.Equal(t, "C", rows[2].Key[0])

	for _, desc := range []bool{false, true} {
		rows, err = Aggregate(view, Query{
			Dimensions: []string{"platform"},
			Metrics:    []Metric{Avg("q", "score")},
			OrderBy:    []OrderTerm{{By: "q", Desc: desc}},
		})
		require.NoError(t, err)
		assert.Equal(t, "B", rows[0].Key[0], "defined value first (desc=%v)", desc)
	}
}

func TestLimit(t *testing.T) {
	view := eventAdapter().Bind(randomEvents(100, 3))
	q := errorRateQuery()
	q.Limit = 2
	rows, err := Aggregate(view, q)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestIdempotence(t *testing.T) {
	view := eventAdapter().Bind(randomEvents(300, 11))
	q := Query{
		Dimensions: []string{"platform", "day", "kind"},
		Metrics:    []Metric{Count("n"), Avg("q", "score"), RatioOfTotal("share", "n", "platform")},
		OrderBy:    []OrderTerm{Desc("n")},
	}
	first, err := Aggregate(view, q)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Aggregate(view, q)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// ============================================================================
// 4. MERGE CORRECTNESS
// ============================================================================

func TestMergedShardsMatchSinglePass(t *testing.T) {
	events := randomEvents(1000, 42)
	view := eventAdapter().Bind(events)
	q := Query{
		Dimensions: []string{"platform", "kind"},
		Metrics: []Metric{
			Count("n"), Sum("errors", "failed"), Avg("q", "score"), Min("fastest", "seconds"),
			Max("slowest", "seconds"), RatioOfTotal("share", "n", "platform"),
		},
		OrderBy: []OrderTerm{Asc("platform"), Desc("n")},
	}
	single, err := Aggregate(view, q)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(99))
	for trial := 0; trial < 5; trial++ {
		// arbitrary, non-contiguous shards
		shards := 2 + r.Intn(6)
		buckets := make([][]int, shards)
		for i := range events {
			s := r.Intn(shards)
			buckets[s] = append(buckets[s], i)
		}
		var merged *Partial
		for _, idx := range buckets {
			p, err := Accumulate(Pick(view, idx), q)
			require.NoError(t, err)
			if merged == nil {
				merged = p
				continue
			}
			require.NoError(t, merged.Merge(p))
		}
		assert.Equal(t, len(single), merged.Groups())
		assertRowsEqual(t, single, merged.Rows())
	}
}

func TestShardedAggregateMatchesSinglePass(t *testing.T) {
	view := eventAdapter().Bind(randomEvents(777, 5))
	q := errorRateQuery()
	single, err := Aggregate(view, q)
	require.NoError(t, err)

	for _, shards := range []int{2, 3, 8, 1000} {
		sharded, err := Aggregate(view, q, WithShards(shards), WithConcurrency(4))
		require.NoError(t, err)
		assertRowsEqual(t, single, sharded)
	}
}

func TestMergeRejectsDifferentQueries(t *testing.T) {
	view := eventAdapter().Bind(tenEvents())
	a, err := Accumulate(view, errorRateQuery())
	require.NoError(t, err)
	b, err := Accumulate(view, Query{Dimensions: []string{"kind"}, Metrics: []Metric{Count("n")}})
	require.NoError(t, err)
	assert.ErrorIs(t, a.Merge(b), ErrIncompatiblePartial)
}

func assertRowsEqual(t *testing.T, want, got []AggregateRow) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Key, got[i].Key, "row %d", i)
		assert.Equal(t, want[i].Records, got[i].Records, "row %d", i)
		for name, w := range want[i].Values {
			g := got[i].Values[name]
			assert.Equal(t, w.Valid, g.Valid, "row %d metric %s", i, name)
			assert.InDelta(t, w.Float, g.Float, 1e-9, "row %d metric %s", i, name)
		}
	}
}

// ============================================================================
// 5. QUERY ERRORS
// ============================================================================

func TestQueryErrors(t *testing.T) {
	view := eventAdapter().Bind(tenEvents())
	cases := []struct {
		name string
		q    Query
		want error
	}{
		{"unknown dimension", Query{Dimensions: []string{"galaxy"}, Metrics: []Metric{Count("n")}}, ErrUnknownDimension},
		{"unknown filter dimension", Query{Metrics: []Metric{Count("n")}, Filters: Where("galaxy", "x")}, ErrUnknownDimension},
		{"unknown order term", Query{Metrics: []Metric{Count("n")}, OrderBy: []OrderTerm{Asc("nope")}}, ErrUnknownDimension},
		{"unknown measure", Query{Metrics: []Metric{Avg("x", "mass")}}, ErrUnknownMetric},
		{"unknown kind", Query{Metrics: []Metric{{Name: "x", Kind: "median", Field: "seconds"}}}, ErrUnknownMetric},
		{"duplicate name", Query{Metrics: []Metric{Count("n"), Count("n")}}, ErrUnknownMetric},
		{"ratio of missing metric", Query{Metrics: []Metric{RatioOfTotal("r", "n")}}, ErrUnknownMetric},
		{"ratio of ratio", Query{Dimensions: []string{"platform"}, Metrics: []Metric{Count("n"), RatioOfTotal("r", "n"), RatioOfTotal("rr", "r")}}, ErrUnknownMetric},
		{"partition not grouped", Query{Dimensions: []string{"platform"}, Metrics: []Metric{Count("n"), RatioOfTotal("r", "n", "kind")}}, ErrInvalidPartitionSubset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := Aggregate(view, tc.q)
			assert.Nil(t, rows, "no partial result")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var qe *QueryError
			require.True(t, errors.As(err, &qe))
			assert.NotEmpty(t, qe.Message)
		})
	}
}

// ============================================================================
// 6. FILTERS, DERIVE, SECOND PASS
// ============================================================================

func TestFiltersAreCaseInsensitive(t *testing.T) {
	view := eventAdapter().Bind(tenEvents())
	rows, err := Aggregate(view, Query{
		Metrics: []Metric{Count("n")},
		Filters: Where("platform", "a").And("kind", "BBOX"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 6.0, rows[0].Value("n").Float)
}

func TestSeparatorBearingValuesStayDistinct(t *testing.T) {
	view := eventAdapter().Bind([]event{
		{platform: "x\x1fy", kind: "z"},
		{platform: "x", kind: "y\x1fz"},
		{platform: `a","b`, kind: "c"},
		{platform: "a", kind: `b","c`},
	})
	rows, err := Aggregate(view, Query{
		Dimensions: []string{"platform", "kind"},
		Metrics:    []Metric{Count("n"), RatioOfTotal("share", "n", "platform")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, 1.0, r.Value("n").Float, r.Key)
		assert.Equal(t, 1.0, r.Value("share").Float, "each platform is its own partition: %v", r.Key)
	}
	assert.NotEqual(t, GroupKey{"x\x1fy", "z"}.String(), GroupKey{"x", "y\x1fz"}.String())
}

func TestDeriveAndRegroup(t *testing.T) {
	view := eventAdapter().Bind(randomEvents(400, 17))
	rows, err := Aggregate(view, Query{
		Dimensions: []string{"platform", "kind"},
		Metrics:    []Metric{Count("n"), Avg("t", "seconds")},
	})
	require.NoError(t, err)

	labelled := Derive(rows, "pace", func(r AggregateRow) string {
		if r.Value("t").Float > 150 {
			return "slow"
		}
		return "quick"
	})
	assert.Nil(t, rows[0].Labels, "Derive must not mutate its input")

	second := NewRowsView(labelled, view).WithOrdinal("pace", bucket.NewOrdinal("quick", "slow"))
	regrouped, err := Aggregate(second, Query{
		Dimensions: []string{"pace"},
		Metrics:    []Metric{Count("groups"), Sum("n", RecordsMeasure)},
	})
	require.NoError(t, err)

	var groups, records float64
	for _, r := range regrouped {
		groups += r.Value("groups").Float
		records += r.Value("n").Float
	}
	assert.Equal(t, float64(len(rows)), groups)
	assert.Equal(t, 400.0, records)
	if len(regrouped) == 2 {
		assert.Equal(t, "quick", regrouped[0].Key[0])
	}
}

func TestValueJSON(t *testing.T) {
	b, err := Null().MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	var v Value
	require.NoError(t, v.UnmarshalJSON([]byte("12.5")))
	assert.Equal(t, Float(12.5), v)
	assert.Equal(t, "12.5", fmt.Sprint(v))
}
