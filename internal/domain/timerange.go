package domain

import (
	"fmt"
	"time"
)

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time `bson:"start"`
	End   time.Time `bson:"end"`
}

// NewTimeRange builds a TimeRange without validating it.
func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start, End: end}
}

// IsValid reports End > Start. Zero-length ranges are invalid.
func (r TimeRange) IsValid() bool {
	return r.End.After(r.Start)
}

// Duration returns End - Start, which is negative for inverted ranges.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Hours returns the duration in hours, never negative.
func (r TimeRange) Hours() float64 {
	if !r.IsValid() {
		return 0
	}
	return r.Duration().Hours()
}

// Overlaps reports whether the two ranges share an instant. Ranges that only
// touch (r.End == o.Start) do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Contains reports Start <= t < End.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// ContainsRange reports whether o lies entirely inside r.
func (r TimeRange) ContainsRange(o TimeRange) bool {
	return !o.Start.Before(r.Start) && !o.End.After(r.End)
}

func (r TimeRange) String() string {
	const layout = "2006-01-02 15:04"
	return fmt.Sprintf("%s - %s", r.Start.Format(layout), r.End.Format(layout))
}
