package bucket

import (
	"math"
	"time"
)

// ============================================================================
// BOUNDARY TABLES
// ============================================================================

var inf = math.Inf(1)

// Experience buckets annotator experience in days.
var Experience = New("experience_level",
	Band{Label: "New", Lower: 0, Upper: 30},
	Band{Label: "Intermediate", Lower: 30, Upper: 90},
	Band{Label: "Experienced", Lower: 90, Upper: 180},
	Band{Label: "Expert", Lower: 180, Upper: inf},
)

// Quality buckets quality scores in [0,1].
var Quality = New("quality_range",
	Band{Label: "Poor", Lower: 0, Upper: 0.5},
	Band{Label: "Below-Average", Lower: 0.5, Upper: 0.7},
	Band{Label: "Average", Lower: 0.7, Upper: 0.8},
	Band{Label: "Good", Lower: 0.8, Upper: 0.9},
	Band{Label: "Excellent", Lower: 0.9, Upper: 1.0, UpperInclusive: true},
)

// Confidence buckets annotator confidence scores in [0,1].
var Confidence = New("confidence_level",
	Band{Label: "Low", Lower: 0, Upper: 0.6},
	Band{Label: "Medium", Lower: 0.6, Upper: 0.8},
	Band{Label: "High", Lower: 0.8, Upper: 1.0, UpperInclusive: true},
)

// Speed buckets time spent per annotation in seconds.
var Speed = New("speed_category",
	Band{Label: "VeryFast", Lower: 0, Upper: 30},
	Band{Label: "Fast", Lower: 30, Upper: 60},
	Band{Label: "Normal", Lower: 60, Upper: 120},
	Band{Label: "Slow", Lower: 120, Upper: inf},
)

// CohortPeriod buckets experience days into tenure periods for cohort trends.
var CohortPeriod = New("cohort_period",
	Band{Label: "First Week", Lower: 0, Upper: 7},
	Band{Label: "First Month", Lower: 7, Upper: 30},
	Band{Label: "Months 2-3", Lower: 30, Upper: 90},
	Band{Label: "Months 4-6", Lower: 90, Upper: 180},
	Band{Label: "Tenured", Lower: 180, Upper: inf},
)

// TimeOfDay buckets the hour of submission.
var TimeOfDay = New("time_of_day",
	Band{Label: "Night", Lower: 0, Upper: 6},
	Band{Label: "Morning", Lower: 6, Upper: 12},
	Band{Label: "Afternoon", Lower: 12, Upper: 18},
	Band{Label: "Evening", Lower: 18, Upper: 24},
)

// ============================================================================
// TEMPORAL ORDINALS
// ============================================================================

// Weekdays orders weekday names Monday first.
var Weekdays = NewOrdinal(
	time.Monday.String(),
	time.Tuesday.String(),
	time.Wednesday.String(),
	time.Thursday.String(),
	time.Friday.String(),
	time.Saturday.String(),
	time.Sunday.String(),
)

// Months orders month names January first.
var Months = func() Ordinal {
	names := make([]string, 0, 12)
	for m := time.January; m <= time.December; m++ {
		names = append(names, m.String())
	}
	return NewOrdinal(names...)
}()

// HourOfDay returns the time-of-day label for t.
func HourOfDay(t time.Time) string {
	return TimeOfDay.Label(float64(t.Hour()))
}

// ============================================================================
// TASK COMPLEXITY: aggregate-level bucketizer
// ============================================================================

// Complexity labels.
const (
	ComplexityLow    = "Low"
	ComplexityMedium = "Medium"
	ComplexityHigh   = "High"
)

// Thresholds above which a group counts as slow or error-prone.
const (
	ComplexTimeSeconds = 100.0
	ComplexErrorRate   = 0.15
)

// Complexities orders complexity labels from Low to High.
var Complexities = NewOrdinal(ComplexityLow, ComplexityMedium, ComplexityHigh)

// Complexity classifies a group from its mean time spent and mean error rate
// (a fraction, not a percentage). It operates on aggregate values and must
// run after a first aggregation pass.
func Complexity(meanTimeSeconds, meanErrorRate float64) string {
	slow := meanTimeSeconds > ComplexTimeSeconds
	errorProne := meanErrorRate > ComplexErrorRate
	switch {
	case slow && errorProne:
		return ComplexityHigh
	case slow || errorProne:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}
