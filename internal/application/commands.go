package application

import (
	"time"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

// ScheduleJobCommand places a job on a machine. ValidateJob takes the same
// shape without persisting anything.
type ScheduleJobCommand struct {
	JobID          string // generated when empty
	MachineID      string
	PartID         string
	PartNumber     string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	Quantity       int
	Priority       int
	Parameters     domain.SLSParameters
	Costs          domain.CostInputs
}

// GetJobQuery retrieves a job by ID
type GetJobQuery struct {
	JobID string
}

// DeleteJobCommand removes a job that has no active stage
type DeleteJobCommand struct {
	JobID string
}

// GetSchedulerViewQuery builds the scheduler grid
type GetSchedulerViewQuery struct {
	Mode      string
	StartDate time.Time
}

// GetMachineRowQuery lays out a machine's jobs for a window
type GetMachineRowQuery struct {
	MachineID string
	From      time.Time
	To        time.Time
}

// ChangeoverQuery asks for powder changeover minutes
type ChangeoverQuery struct {
	MachineID    string
	FromMaterial string
	ToMaterial   string
}

// PunchInCommand starts work on a job's stage
type PunchInCommand struct {
	JobID        string
	StageID      string
	OperatorName string
	Notes        string
}

// PunchOutCommand finishes work on a job's stage
type PunchOutCommand struct {
	JobID   string
	StageID string
	Notes   string
}
