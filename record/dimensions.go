package record

import (
	"fmt"
	"strconv"
	"time"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/bucket"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/engine"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/schema"
)

// Dimension keys.
const (
	DimPlatform          = "platform"
	DimProject           = "project"
	DimAnnotator         = "annotator_id"
	DimTaskID            = "task_id"
	DimTaskType          = "task_type"
	DimErrorFlag         = "error_flag"
	DimErrorType         = "error_type"
	DimTrainingCompleted = "training_completed"
	DimGuidelineVersion  = "guideline_version"
	DimGuidelineImputed  = "guideline_imputed"
	DimReviewer          = "reviewer_id"
	DimReviewed          = "is_reviewed"

	// temporal, derived from submitted_at in the store's location
	DimMonth     = "month"
	DimMonthName = "month_name"
	DimWeekday   = "weekday"
	DimHour      = "hour"
	DimTimeOfDay = "time_of_day"

	// bucketed
	DimExperienceLevel = "experience_level"
	DimQualityRange    = "quality_range"
	DimConfidenceLevel = "confidence_level"
	DimSpeedCategory   = "speed_category"
	DimCohortPeriod    = "cohort_period"
)

// Measure keys. Flags are exposed as 0/1 so their average is a rate.
const (
	MeasureQuality    = "quality_score"
	MeasureConfidence = "confidence_score"
	MeasureTimeSpent  = "time_spent_seconds"
	MeasureExperience = "experience_days"
	MeasureError      = "error_flag"
	MeasureTrained    = "training_completed"
	MeasureReviewed   = "is_reviewed"
)

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func newAdapter(loc *time.Location) *engine.DomainAdapter[AnnotationRecord] {
	local := func(r AnnotationRecord) time.Time { return r.SubmittedAt.In(loc) }

	return engine.NewDomainAdapter[AnnotationRecord]().
		Dimension(DimPlatform, func(r AnnotationRecord) string { return r.Platform }).
		Dimension(DimProject, func(r AnnotationRecord) string { return r.Project }).
		Dimension(DimAnnotator, func(r AnnotationRecord) string { return r.AnnotatorID }).
		Dimension(DimTaskID, func(r AnnotationRecord) string { return r.TaskID }).
		Dimension(DimTaskType, func(r AnnotationRecord) string { return r.TaskType }).
		Dimension(DimErrorFlag, func(r AnnotationRecord) string { return strconv.FormatBool(r.ErrorFlag) }).
		Dimension(DimErrorType, func(r AnnotationRecord) string { return r.ErrorType }).
		Dimension(DimTrainingCompleted, func(r AnnotationRecord) string { return strconv.FormatBool(r.TrainingCompleted) }).
		Dimension(DimGuidelineVersion, func(r AnnotationRecord) string { return r.GuidelineVersion }).
		Dimension(DimGuidelineImputed, func(r AnnotationRecord) string { return strconv.FormatBool(r.GuidelineImputed) }).
		Dimension(DimReviewer, func(r AnnotationRecord) string { return r.ReviewerID }).
		Dimension(DimReviewed, func(r AnnotationRecord) string { return strconv.FormatBool(r.IsReviewed) }).
		Dimension(DimMonth, func(r AnnotationRecord) string { return local(r).Format("2006-01") }).
		OrderedDimension(DimMonthName, func(r AnnotationRecord) string { return local(r).Month().String() }, bucket.Months).
		OrderedDimension(DimWeekday, func(r AnnotationRecord) string { return local(r).Weekday().String() }, bucket.Weekdays).
		Dimension(DimHour, func(r AnnotationRecord) string { return fmt.Sprintf("%02d", local(r).Hour()) }).
		OrderedDimension(DimTimeOfDay, func(r AnnotationRecord) string { return bucket.HourOfDay(local(r)) }, bucket.TimeOfDay.Ordinal()).
		OrderedDimension(DimExperienceLevel, func(r AnnotationRecord) string {
			return bucket.Experience.Label(float64(r.ExperienceDays))
		}, bucket.Experience.Ordinal()).
		OrderedDimension(DimQualityRange, func(r AnnotationRecord) string {
			return bucket.Quality.LabelOptional(r.QualityScore.Get())
		}, bucket.Quality.Ordinal()).
		OrderedDimension(DimConfidenceLevel, func(r AnnotationRecord) string {
			return bucket.Confidence.LabelOptional(r.ConfidenceScore.Get())
		}, bucket.Confidence.Ordinal()).
		OrderedDimension(DimSpeedCategory, func(r AnnotationRecord) string {
			return bucket.Speed.Label(r.TimeSpentSeconds)
		}, bucket.Speed.Ordinal()).
		OrderedDimension(DimCohortPeriod, func(r AnnotationRecord) string {
			return bucket.CohortPeriod.Label(float64(r.ExperienceDays))
		}, bucket.CohortPeriod.Ordinal()).
		OptionalMeasure(MeasureQuality, func(r AnnotationRecord) (float64, bool) { return r.QualityScore.Get() }).
		OptionalMeasure(MeasureConfidence, func(r AnnotationRecord) (float64, bool) { return r.ConfidenceScore.Get() }).
		Measure(MeasureTimeSpent, func(r AnnotationRecord) float64 { return r.TimeSpentSeconds }).
		Measure(MeasureExperience, func(r AnnotationRecord) float64 { return float64(r.ExperienceDays) }).
		Measure(MeasureError, func(r AnnotationRecord) float64 { return flag(r.ErrorFlag) }).
		Measure(MeasureTrained, func(r AnnotationRecord) float64 { return flag(r.TrainingCompleted) }).
		Measure(MeasureReviewed, func(r AnnotationRecord) float64 { return flag(r.IsReviewed) })
}

// Catalog describes every dimension and measure of a Store view.
func Catalog() schema.Config {
	bools := []string{"false", "true"}
	temporal := func(d schema.DimensionMeta) schema.DimensionMeta {
		d.IsTemporal = true
		d.DerivedFrom = "submitted_at"
		return d
	}
	flagMeasure := func(key, name string) schema.MeasureMeta {
		m := schema.DefaultMeasure(key, name, "flag")
		m.Aggregations = []string{"sum", "avg"}
		return m
	}
	optional := func(m schema.MeasureMeta) schema.MeasureMeta {
		m.Optional = true
		return m
	}
	boolDim := func(key, name, desc string) schema.DimensionMeta {
		d := schema.DefaultDimension(key, name, desc)
		d.Labels = bools
		return d
	}

	return schema.Config{
		Name:        "annotations",
		Version:     "1",
		Description: "Annotation records across labeling platforms",
		Dimensions: []schema.DimensionMeta{
			schema.DefaultDimension(DimPlatform, "Platform", "Labeling platform the task ran on"),
			schema.DefaultDimension(DimProject, "Project", "Annotation project"),
			schema.DefaultDimension(DimAnnotator, "Annotator", "Annotator identifier"),
			schema.DefaultDimension(DimTaskID, "Task", "Task identifier, empty when unknown"),
			schema.DefaultDimension(DimTaskType, "Task Type", "Kind of labeling task"),
			boolDim(DimErrorFlag, "Error", "Whether the annotation was judged erroneous"),
			schema.DefaultDimension(DimErrorType, "Error Type", "Error category, \"none\" for correct annotations"),
			boolDim(DimTrainingCompleted, "Training Completed", "Whether the annotator finished training"),
			schema.DefaultDimension(DimGuidelineVersion, "Guideline Version", "Guideline version in force"),
			boolDim(DimGuidelineImputed, "Guideline Imputed", "Whether the guideline version was filled in"),
			schema.DefaultDimension(DimReviewer, "Reviewer", "Reviewer identifier, empty when unreviewed"),
			boolDim(DimReviewed, "Reviewed", "Whether the annotation was reviewed"),
			temporal(schema.DefaultDimension(DimMonth, "Month", "Calendar month, YYYY-MM")),
			temporal(schema.BucketDimension(DimMonthName, "Month Name", "submitted_at", bucket.Months.Labels())),
			temporal(schema.BucketDimension(DimWeekday, "Weekday", "submitted_at", bucket.Weekdays.Labels())),
			temporal(schema.DefaultDimension(DimHour, "Hour", "Hour of submission, 00-23")),
			temporal(schema.BucketDimension(DimTimeOfDay, "Time of Day", "submitted_at", bucket.TimeOfDay.Labels())),
			schema.BucketDimension(DimExperienceLevel, "Experience Level", MeasureExperience, bucket.Experience.Labels()),
			schema.BucketDimension(DimQualityRange, "Quality Range", MeasureQuality, bucket.Quality.Labels()),
			schema.BucketDimension(DimConfidenceLevel, "Confidence Level", MeasureConfidence, bucket.Confidence.Labels()),
			schema.BucketDimension(DimSpeedCategory, "Speed", MeasureTimeSpent, bucket.Speed.Labels()),
			schema.BucketDimension(DimCohortPeriod, "Cohort Period", MeasureExperience, bucket.CohortPeriod.Labels()),
		},
		Measures: []schema.MeasureMeta{
			optional(schema.DefaultMeasure(MeasureQuality, "Quality Score", "score")),
			optional(schema.DefaultMeasure(MeasureConfidence, "Confidence Score", "score")),
			schema.DefaultMeasure(MeasureTimeSpent, "Time Spent", "seconds"),
			schema.DefaultMeasure(MeasureExperience, "Experience", "days"),
			flagMeasure(MeasureError, "Error"),
			flagMeasure(MeasureTrained, "Trained"),
			flagMeasure(MeasureReviewed, "Reviewed"),
		},
	}
}
