package report

import (
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/cohort"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/engine"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/record"
)

// ============================================================================
// BUILT-IN REPORTS
// ============================================================================

// Metric names shared by the built-in reports.
const (
	MetricAnnotations  = "annotations"
	MetricErrors       = "errors"
	MetricErrorRatePct = "error_rate_pct"
	MetricAvgQuality   = "avg_quality"
	MetricAvgTime      = "avg_time_seconds"
)

func annotations() engine.Metric  { return engine.Count(MetricAnnotations) }
func errorCount() engine.Metric   { return engine.Sum(MetricErrors, record.MeasureError) }
func errorRatePct() engine.Metric { return engine.Avg(MetricErrorRatePct, record.MeasureError).Percent() }
func avgQuality() engine.Metric   { return engine.Avg(MetricAvgQuality, record.MeasureQuality).Rounded(3) }
func avgTime() engine.Metric      { return engine.Avg(MetricAvgTime, record.MeasureTimeSpent).Rounded(1) }

// performance is the metric set most breakdowns share.
func performance() []engine.Metric {
	return []engine.Metric{annotations(), errorRatePct(), avgQuality(), avgTime()}
}

func byDimension(name, title, dim string) Spec {
	return Spec{
		Name:       name,
		Title:      title,
		Dimensions: []string{dim},
		Metrics:    performance(),
	}
}

func complexityBase(name, title string) Spec {
	return Spec{
		Name:       name,
		Title:      title,
		Dimensions: []string{record.DimTaskType},
		Metrics: []engine.Metric{
			annotations(),
			engine.Avg("mean_time", record.MeasureTimeSpent),
			engine.Avg("error_rate", record.MeasureError),
			errorRatePct(),
		},
		Derive: &Derivation{
			Name:       "complexity",
			Classifier: ClassifierTaskComplexity,
			Inputs:     map[string]string{"mean_time": "mean_time", "error_rate": "error_rate"},
		},
	}
}

func cohortQuery(metric engine.Metric) *cohort.Query {
	return &cohort.Query{
		Entity: record.DimAnnotator,
		Group:  record.DimPlatform,
		Period: record.DimCohortPeriod,
		Metric: metric,
	}
}

// BuiltinSpecs returns the built-in report definitions in display order.
func BuiltinSpecs() []Spec {
	complexityLevels := complexityBase("complexity_levels", "Task types per complexity level")
	complexityLevels.Rollup = &Rollup{
		Dimensions: []string{"complexity"},
		Metrics: []engine.Metric{
			engine.Count("task_types"),
			engine.Sum(MetricAnnotations, MetricAnnotations),
			engine.Avg("avg_error_rate_pct", MetricErrorRatePct).Rounded(2),
		},
	}

	return []Spec{
		{
			Name:       "platform_error_rates",
			Title:      "Error rate by platform",
			Dimensions: []string{record.DimPlatform},
			Metrics: []engine.Metric{
				annotations(),
				errorCount(),
				errorRatePct(),
				engine.RatioOfTotal("share_of_errors_pct", MetricErrors).Percent(),
				avgQuality(),
			},
			OrderBy: []engine.OrderTerm{engine.Desc(MetricErrorRatePct)},
		},
		{
			Name:       "error_type_distribution",
			Title:      "Error types per platform",
			Dimensions: []string{record.DimPlatform, record.DimErrorType},
			Metrics: []engine.Metric{
				engine.Count(MetricErrors),
				engine.RatioOfTotal("pct_of_platform_errors", MetricErrors, record.DimPlatform).Percent(),
				engine.RatioOfTotal("pct_of_all_errors", MetricErrors).Percent(),
			},
			Filters: engine.Where(record.DimErrorFlag, "true"),
			OrderBy: []engine.OrderTerm{engine.Asc(record.DimPlatform), engine.Desc(MetricErrors)},
		},
		{
			Name:       "quality_distribution",
			Title:      "Quality score ranges per platform",
			Dimensions: []string{record.DimPlatform, record.DimQualityRange},
			Metrics: []engine.Metric{
				annotations(),
				engine.RatioOfTotal("pct_of_platform", MetricAnnotations, record.DimPlatform).Percent(),
				errorRatePct(),
			},
		},
		{
			Name:       "confidence_calibration",
			Title:      "Quality and errors by annotator confidence",
			Dimensions: []string{record.DimConfidenceLevel},
			Metrics: []engine.Metric{
				annotations(),
				engine.Avg("avg_confidence", record.MeasureConfidence).Rounded(3),
				avgQuality(),
				errorRatePct(),
			},
		},
		byDimension("experience_impact", "Performance by experience level", record.DimExperienceLevel),
		byDimension("training_impact", "Performance by training completion", record.DimTrainingCompleted),
		byDimension("speed_vs_quality", "Performance by annotation speed", record.DimSpeedCategory),
		byDimension("time_of_day_performance", "Performance by time of day", record.DimTimeOfDay),
		byDimension("weekday_performance", "Performance by weekday", record.DimWeekday),
		{
			Name:       "monthly_trend",
			Title:      "Monthly volume and error rate",
			Dimensions: []string{record.DimMonth},
			Metrics:    []engine.Metric{annotations(), errorCount(), errorRatePct(), avgQuality()},
		},
		{
			Name:       "guideline_version_impact",
			Title:      "Performance by guideline version",
			Dimensions: []string{record.DimGuidelineVersion, record.DimGuidelineImputed},
			Metrics:    performance(),
		},
		{
			Name:       "review_coverage",
			Title:      "Review coverage per platform",
			Dimensions: []string{record.DimPlatform, record.DimReviewed},
			Metrics: []engine.Metric{
				annotations(),
				engine.RatioOfTotal("pct_of_platform", MetricAnnotations, record.DimPlatform).Percent(),
				errorRatePct(),
			},
		},
		{
			Name:       "reviewer_summary",
			Title:      "Reviewed annotations per reviewer",
			Dimensions: []string{record.DimReviewer},
			Metrics: []engine.Metric{
				engine.Count("reviews"),
				errorCount(),
				errorRatePct(),
				avgQuality(),
			},
			Filters: engine.Where(record.DimReviewed, "true"),
			OrderBy: []engine.OrderTerm{engine.Desc("reviews")},
		},
		{
			Name:       "annotator_performance",
			Title:      "Performance per annotator",
			Dimensions: []string{record.DimAnnotator},
			Metrics: append(performance(),
				engine.Max("experience_days", record.MeasureExperience),
				engine.Avg("training_rate_pct", record.MeasureTrained).Percent(),
			),
			OrderBy: []engine.OrderTerm{engine.Desc(MetricErrorRatePct)},
		},
		{
			Name:       "project_summary",
			Title:      "Projects per platform",
			Dimensions: []string{record.DimProject, record.DimPlatform},
			Metrics:    []engine.Metric{annotations(), errorCount(), errorRatePct(), avgQuality()},
		},
		complexityBase("task_complexity", "Task type complexity"),
		complexityLevels,
		{
			Name:   "cohort_quality_trend",
			Title:  "Annotator quality by tenure (per-annotator mean)",
			Kind:   KindCohort,
			Cohort: cohortQuery(engine.Avg(MetricAvgQuality, record.MeasureQuality).Rounded(3)),
		},
		{
			Name:   "cohort_quality_pooled",
			Title:  "Annotator quality by tenure (pooled)",
			Kind:   KindPooled,
			Cohort: cohortQuery(engine.Avg(MetricAvgQuality, record.MeasureQuality).Rounded(3)),
		},
		{
			Name:   "cohort_error_trend",
			Title:  "Annotator error rate by tenure (per-annotator mean)",
			Kind:   KindCohort,
			Cohort: cohortQuery(engine.Avg(MetricErrorRatePct, record.MeasureError).Percent()),
		},
	}
}

// Builtin returns a catalog holding BuiltinSpecs.
func Builtin() *Catalog {
	c, err := NewCatalog(BuiltinSpecs()...)
	if err != nil {
		panic(err) // built-ins are static
	}
	return c
}
