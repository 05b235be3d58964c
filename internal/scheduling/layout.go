package scheduling

import (
	"container/heap"
	"sort"
	"time"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

// LayoutConfig sizes scheduler rows.
type LayoutConfig struct {
	LayerHeightPx  int
	PaddingPx      int
	MinRowHeightPx int
	MaxRowHeightPx int
}

// DefaultLayoutConfig returns 60px per layer plus 40px padding, clamped to
// [160, 400].
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{LayerHeightPx: 60, PaddingPx: 40, MinRowHeightPx: 160, MaxRowHeightPx: 400}
}

// LayoutCalculator stacks overlapping jobs of a machine row into layers.
type LayoutCalculator struct {
	cfg LayoutConfig
}

func NewLayoutCalculator(cfg LayoutConfig) *LayoutCalculator {
	if cfg.MinRowHeightPx <= 0 {
		cfg.MinRowHeightPx = 160
	}
	if cfg.MaxRowHeightPx < cfg.MinRowHeightPx {
		cfg.MaxRowHeightPx = cfg.MinRowHeightPx
	}
	return &LayoutCalculator{cfg: cfg}
}

// RowLayout returns the number of layers needed to draw the machine's jobs
// without overlap and the matching row height.
func (c *LayoutCalculator) RowLayout(machineID string, jobs []*domain.Job) (maxLayers, rowHeightPx int) {
	layers := c.MaxLayers(rowJobs(machineID, jobs))
	return layers, c.RowHeight(layers)
}

// RowHeight maps a layer count to pixels.
func (c *LayoutCalculator) RowHeight(layers int) int {
	h := layers*c.cfg.LayerHeightPx + c.cfg.PaddingPx
	if h < c.cfg.MinRowHeightPx {
		return c.cfg.MinRowHeightPx
	}
	if h > c.cfg.MaxRowHeightPx {
		return c.cfg.MaxRowHeightPx
	}
	return h
}

type sweepEvent struct {
	at    time.Time
	delta int
}

// MaxLayers returns the peak number of simultaneously scheduled jobs, at
// least 1. At equal instants ends are processed before starts, so jobs that
// only touch share a layer.
func (c *LayoutCalculator) MaxLayers(jobs []*domain.Job) int {
	jobs = rowJobs("", jobs)
	events := make([]sweepEvent, 0, 2*len(jobs))
	for _, j := range jobs {
		events = append(events, sweepEvent{j.ScheduledStart, 1}, sweepEvent{j.ScheduledEnd, -1})
	}
	sort.Slice(events, func(a, b int) bool {
		if !events[a].at.Equal(events[b].at) {
			return events[a].at.Before(events[b].at)
		}
		return events[a].delta < events[b].delta
	})

	peak, running := 1, 0
	for _, e := range events {
		running += e.delta
		if running > peak {
			peak = running
		}
	}
	return peak
}

// AssignLayers places each job on the lowest free layer, starting at 0. The
// number of distinct layers equals MaxLayers.
func (c *LayoutCalculator) AssignLayers(machineID string, jobs []*domain.Job) map[string]int {
	sorted := rowJobs(machineID, jobs)
	sort.Slice(sorted, func(a, b int) bool {
		ja, jb := sorted[a], sorted[b]
		if !ja.ScheduledStart.Equal(jb.ScheduledStart) {
			return ja.ScheduledStart.Before(jb.ScheduledStart)
		}
		if !ja.ScheduledEnd.Equal(jb.ScheduledEnd) {
			return ja.ScheduledEnd.Before(jb.ScheduledEnd)
		}
		return ja.JobID < jb.JobID
	})

	out := make(map[string]int, len(sorted))
	active := &trackHeap{}
	free := &layerHeap{}
	next := 0
	for _, j := range sorted {
		for active.Len() > 0 && !(*active)[0].end.After(j.ScheduledStart) {
			heap.Push(free, heap.Pop(active).(track).index)
		}

		index := next
		if free.Len() > 0 {
			index = heap.Pop(free).(int)
		} else {
			next++
		}
		out[j.JobID] = index
		heap.Push(active, track{index: index, end: j.ScheduledEnd})
	}
	return out
}

// rowJobs drops jobs of other machines, cancelled jobs and invalid ranges.
func rowJobs(machineID string, jobs []*domain.Job) []*domain.Job {
	out := make([]*domain.Job, 0, len(jobs))
	for _, j := range jobs {
		if j == nil || j.Status == domain.JobStatusCancelled || !j.Schedule().IsValid() {
			continue
		}
		if machineID != "" && j.MachineID != "" && j.MachineID != machineID {
			continue
		}
		out = append(out, j)
	}
	return out
}

type track struct {
	index int
	end   time.Time
}

// trackHeap is a min-heap of tracks by end time.
type trackHeap []track

func (h trackHeap) Len() int { return len(h) }
func (h trackHeap) Less(i, j int) bool {
	if !h[i].end.Equal(h[j].end) {
		return h[i].end.Before(h[j].end)
	}
	return h[i].index < h[j].index
}
func (h trackHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *trackHeap) Push(x any)   { *h = append(*h, x.(track)) }
func (h *trackHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// layerHeap is a min-heap of free layer indices.
type layerHeap []int

func (h layerHeap) Len() int           { return len(h) }
func (h layerHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h layerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *layerHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *layerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
