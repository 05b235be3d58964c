package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

// TestTimeRangeOverlaps tests the half-open overlap rule
func TestTimeRangeOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a    TimeRange
		b    TimeRange
		want bool
	}{
		{"partial overlap", NewTimeRange(at(9, 0), at(13, 0)), NewTimeRange(at(11, 0), at(15, 0)), true},
		{"touching boundary", NewTimeRange(at(9, 0), at(13, 0)), NewTimeRange(at(13, 0), at(17, 0)), false},
		{"contained", NewTimeRange(at(9, 0), at(17, 0)), NewTimeRange(at(10, 0), at(11, 0)), true},
		{"identical", NewTimeRange(at(9, 0), at(10, 0)), NewTimeRange(at(9, 0), at(10, 0)), true},
		{"disjoint", NewTimeRange(at(9, 0), at(10, 0)), NewTimeRange(at(11, 0), at(12, 0)), false},
		{"one minute overlap", NewTimeRange(at(9, 0), at(10, 1)), NewTimeRange(at(10, 0), at(12, 0)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap must be symmetric")

			law := tt.a.Start.Before(tt.b.End) && tt.b.Start.Before(tt.a.End)
			assert.Equal(t, law, tt.a.Overlaps(tt.b))
		})
	}
}

func TestTimeRangeValidity(t *testing.T) {
	assert.True(t, NewTimeRange(at(9, 0), at(10, 0)).IsValid())
	assert.False(t, NewTimeRange(at(9, 0), at(9, 0)).IsValid())
	assert.False(t, NewTimeRange(at(10, 0), at(9, 0)).IsValid())

	assert.Equal(t, 1.5, NewTimeRange(at(9, 0), at(10, 30)).Hours())
	assert.Zero(t, NewTimeRange(at(10, 0), at(9, 0)).Hours())
}

func TestTimeRangeContains(t *testing.T) {
	r := NewTimeRange(at(9, 0), at(10, 0))

	assert.True(t, r.Contains(at(9, 0)))
	assert.True(t, r.Contains(at(9, 59)))
	assert.False(t, r.Contains(at(10, 0)))
	assert.True(t, r.ContainsRange(NewTimeRange(at(9, 15), at(10, 0))))
	assert.False(t, r.ContainsRange(NewTimeRange(at(8, 59), at(9, 30))))
}
