package report

import (
	"sort"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/bucket"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/engine"
)

// classifier turns named metric values of one aggregate row into a label.
type classifier struct {
	inputs  []string
	ordinal bucket.Ordinal
	label   func(in map[string]engine.Value) string
}

// Classifier names.
const (
	ClassifierTaskComplexity = "task_complexity"
)

var classifiers = map[string]classifier{
	// mean_time in seconds, error_rate as a fraction
	ClassifierTaskComplexity: {
		inputs:  []string{"mean_time", "error_rate"},
		ordinal: bucket.Complexities,
		label: func(in map[string]engine.Value) string {
			return bucket.Complexity(in["mean_time"].Float, in["error_rate"].Float)
		},
	},
}

// Classifiers lists the registered classifier names.
func Classifiers() []string {
	names := make([]string, 0, len(classifiers))
	for n := range classifiers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// derive applies d to rows. The spec has been validated.
func derive(rows []engine.AggregateRow, d Derivation) ([]engine.AggregateRow, bucket.Ordinal) {
	c := classifiers[d.Classifier]
	out := engine.Derive(rows, d.Name, func(row engine.AggregateRow) string {
		in := make(map[string]engine.Value, len(c.inputs))
		for _, name := range c.inputs {
			in[name] = row.Value(d.Inputs[name])
		}
		return c.label(in)
	})
	return out, c.ordinal
}
