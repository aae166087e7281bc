// Package bucket maps continuous fields to ordered categorical labels.
//
// Every Bucketizer is a pure, total function: each input (including NaN,
// negative or out-of-range values and absent values) lands in exactly one
// label. Bands are lower-inclusive and upper-exclusive unless the band is
// explicitly marked UpperInclusive.
package bucket

import (
	"math"
	"sort"
	"strings"
)

// ============================================================================
// BANDS
// ============================================================================

// Band is one interval of a Bucketizer: [Lower, Upper), or [Lower, Upper]
// when UpperInclusive is set.
type Band struct {
	Label          string
	Lower          float64
	Upper          float64
	UpperInclusive bool
}

func (b Band) contains(v float64) bool {
	if v < b.Lower {
		return false
	}
	if b.UpperInclusive {
		return v <= b.Upper
	}
	return v < b.Upper
}

// Default terminal labels.
const (
	OverflowLabel = "Out of Range"
	MissingLabel  = "Not Recorded"
)

// Bucketizer is an ordered boundary table with terminal overflow and missing labels.
type Bucketizer struct {
	Name     string
	Bands    []Band
	Overflow string
	Missing  string
}

// New builds a Bucketizer from contiguous bands using the default terminal labels.
func New(name string, bands ...Band) Bucketizer {
	return Bucketizer{
		Name:     name,
		Bands:    bands,
		Overflow: OverflowLabel,
		Missing:  MissingLabel,
	}
}

// Label returns the band label for v, or the overflow label when no band holds it.
func (b Bucketizer) Label(v float64) string {
	if math.IsNaN(v) {
		return b.Overflow
	}
	for _, band := range b.Bands {
		if band.contains(v) {
			return band.Label
		}
	}
	return b.Overflow
}

// LabelOptional is Label for fields that may be absent.
func (b Bucketizer) LabelOptional(v float64, ok bool) string {
	if !ok {
		return b.Missing
	}
	return b.Label(v)
}

// Labels lists every label the bucketizer can emit, in natural order.
func (b Bucketizer) Labels() []string {
	out := make([]string, 0, len(b.Bands)+2)
	for _, band := range b.Bands {
		out = append(out, band.Label)
	}
	return append(out, b.Overflow, b.Missing)
}

// Ordinal returns the natural ordering table for the bucketizer's labels.
func (b Bucketizer) Ordinal() Ordinal {
	return NewOrdinal(b.Labels()...)
}

// ============================================================================
// ORDINALS: explicit ordering tables, never string comparison
// ============================================================================

// Ordinal ranks the labels of a domain with a natural non-lexicographic order.
type Ordinal map[string]int

// NewOrdinal ranks labels in the order given.
func NewOrdinal(labels ...string) Ordinal {
	o := make(Ordinal, len(labels))
	for i, l := range labels {
		if _, exists := o[l]; !exists {
			o[l] = i
		}
	}
	return o
}

// Rank returns the position of label in the table.
func (o Ordinal) Rank(label string) (int, bool) {
	r, ok := o[label]
	return r, ok
}

// Compare orders a and b by rank. Labels missing from the table sort after
// every known label, and among themselves lexicographically.
func (o Ordinal) Compare(a, b string) int {
	ra, okA := o[a]
	rb, okB := o[b]
	switch {
	case okA && okB:
		return compareInt(ra, rb)
	case okA:
		return -1
	case okB:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// Sorted returns a copy of labels in ordinal order.
func (o Ordinal) Sorted(labels []string) []string {
	out := append([]string(nil), labels...)
	sort.SliceStable(out, func(i, j int) bool { return o.Compare(out[i], out[j]) < 0 })
	return out
}

// Labels returns every label in the table, in rank order.
func (o Ordinal) Labels() []string {
	out := make([]string, 0, len(o))
	for l := range o {
		out = append(out, l)
	}
	return o.Sorted(out)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
