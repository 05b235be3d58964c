package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

var ErrInvalidViewMode = errors.New("invalid view mode")

// ViewMode selects the scheduler grid.
type ViewMode string

const (
	ViewWeek ViewMode = "week"
	ViewDay  ViewMode = "day"
	ViewHour ViewMode = "hour"
)

// ParseViewMode accepts week, day or hour in any case.
func ParseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ViewWeek, ViewDay, ViewHour:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidViewMode, s)
	}
}

// ScheduleView is the time grid the scheduler renders.
type ScheduleView struct {
	Mode        ViewMode    `json:"mode"`
	Dates       []time.Time `json:"dates"`
	SlotsPerDay int         `json:"slotsPerDay"`
	SlotMinutes int         `json:"slotMinutes"`
	Machines    []string    `json:"machines"`
}

// Window returns the range covered by the view's dates.
func (v ScheduleView) Window() domain.TimeRange {
	if len(v.Dates) == 0 {
		return domain.TimeRange{}
	}
	return domain.NewTimeRange(v.Dates[0], v.Dates[len(v.Dates)-1].AddDate(0, 0, 1))
}

// Slots returns the start of every slot in the view.
func (v ScheduleView) Slots() []time.Time {
	out := make([]time.Time, 0, len(v.Dates)*v.SlotsPerDay)
	step := time.Duration(v.SlotMinutes) * time.Minute
	for _, d := range v.Dates {
		for i := 0; i < v.SlotsPerDay; i++ {
			out = append(out, d.Add(time.Duration(i)*step))
		}
	}
	return out
}

// MachineLister is the read side of the machine repository the view needs.
type MachineLister interface {
	FindAll(ctx context.Context) ([]*domain.Machine, error)
}

// ViewBuilder builds the grid for a view mode. It owns no machine data.
type ViewBuilder struct {
	machines MachineLister
}

func NewViewBuilder(machines MachineLister) *ViewBuilder {
	return &ViewBuilder{machines: machines}
}

// BuildView returns the grid for mode starting at startDate's midnight.
func (b *ViewBuilder) BuildView(ctx context.Context, mode string, startDate time.Time) (ScheduleView, error) {
	m, err := ParseViewMode(mode)
	if err != nil {
		return ScheduleView{}, err
	}

	start := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, startDate.Location())
	view := ScheduleView{Mode: m}
	switch m {
	case ViewWeek:
		view.SlotsPerDay, view.SlotMinutes = 1, 24*60
		for i := 0; i < 7; i++ {
			view.Dates = append(view.Dates, start.AddDate(0, 0, i))
		}
	case ViewDay:
		view.SlotsPerDay, view.SlotMinutes = 1, 24*60
		view.Dates = []time.Time{start}
	case ViewHour:
		view.SlotsPerDay, view.SlotMinutes = 24, 60
		view.Dates = []time.Time{start}
	}

	view.Machines = []string{}
	if b.machines == nil {
		return view, nil
	}
	machines, err := b.machines.FindAll(ctx)
	if err != nil {
		return ScheduleView{}, err
	}
	for _, machine := range machines {
		view.Machines = append(view.Machines, machine.MachineID)
	}
	return view, nil
}
