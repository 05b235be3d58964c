package domain

import (
	"errors"
	"time"
)

// Errors
var (
	ErrJobNotFound           = errors.New("job not found")
	ErrJobExists             = errors.New("job already exists")
	ErrJobClosed             = errors.New("job is completed or cancelled")
	ErrInvalidTimeRange      = errors.New("scheduled end must be after scheduled start")
	ErrRepositoryUnavailable = errors.New("repository unavailable")
	ErrLockUnavailable       = errors.New("lock unavailable")
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusScheduled  JobStatus = "Scheduled"
	JobStatusInProgress JobStatus = "InProgress"
	JobStatusCompleted  JobStatus = "Completed"
	JobStatusCancelled  JobStatus = "Cancelled"
)

// SLSParameters are the process settings of a build.
type SLSParameters struct {
	LaserPowerWatts         float64 `bson:"laserPowerWatts"`
	ScanSpeedMmPerSec       float64 `bson:"scanSpeedMmPerSec"`
	LayerThicknessMicrons   float64 `bson:"layerThicknessMicrons"`
	HatchSpacingMicrons     float64 `bson:"hatchSpacingMicrons"`
	BuildTemperatureCelsius float64 `bson:"buildTemperatureCelsius"`
	ArgonPurityPercent      float64 `bson:"argonPurityPercent"`
	OxygenContentPpm        float64 `bson:"oxygenContentPpm"`
	SlsMaterial             string  `bson:"slsMaterial"`
}

// CostInputs feed the cost estimate. Zero means "not provided".
type CostInputs struct {
	LaborCostPerHour            float64 `bson:"laborCostPerHour"`
	EstimatedPowderUsageKg      float64 `bson:"estimatedPowderUsageKg"`
	MaterialCostPerKg           float64 `bson:"materialCostPerKg"`
	MachineOperatingCostPerHour float64 `bson:"machineOperatingCostPerHour"`
	ArgonCostPerHour            float64 `bson:"argonCostPerHour"`
}

// Job is a build scheduled on one machine
type Job struct {
	JobID          string     `bson:"jobId"`
	MachineID      string     `bson:"machineId"`
	PartID         string     `bson:"partId"`
	PartNumber     string     `bson:"partNumber"`
	ScheduledStart time.Time  `bson:"scheduledStart"`
	ScheduledEnd   time.Time  `bson:"scheduledEnd"`
	ActualStart    *time.Time `bson:"actualStart,omitempty"`
	ActualEnd      *time.Time `bson:"actualEnd,omitempty"`
	Status         JobStatus  `bson:"status"`
	Quantity       int        `bson:"quantity"`
	Priority       int        `bson:"priority"`

	SLSParameters `bson:",inline"`
	CostInputs    `bson:",inline"`

	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
	DomainEvents []DomainEvent `bson:"-"`
}

// Schedule returns the job's scheduled window.
func (j *Job) Schedule() TimeRange {
	return TimeRange{Start: j.ScheduledStart, End: j.ScheduledEnd}
}

// IsClosed reports Completed or Cancelled.
func (j *Job) IsClosed() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusCancelled
}

// NewJob creates a Scheduled job and records a JobScheduledEvent.
func NewJob(jobID, machineID, partID string, window TimeRange, now time.Time) (*Job, error) {
	if !window.IsValid() {
		return nil, ErrInvalidTimeRange
	}
	j := &Job{
		JobID:          jobID,
		MachineID:      machineID,
		PartID:         partID,
		ScheduledStart: window.Start,
		ScheduledEnd:   window.End,
		Status:         JobStatusScheduled,
		Quantity:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	j.AddDomainEvent(&JobScheduledEvent{
		JobID:          jobID,
		MachineID:      machineID,
		ScheduledStart: window.Start,
		ScheduledEnd:   window.End,
		ScheduledAt:    now,
	})
	return j, nil
}

// MarkStarted moves a Scheduled job to InProgress. It returns false when the
// job had already started.
func (j *Job) MarkStarted(now time.Time) (bool, error) {
	switch j.Status {
	case JobStatusScheduled:
	case JobStatusInProgress:
		return false, nil
	default:
		return false, ErrJobClosed
	}

	j.Status = JobStatusInProgress
	j.ActualStart = &now
	j.UpdatedAt = now
	j.AddDomainEvent(&JobStartedEvent{
		JobID:     j.JobID,
		MachineID: j.MachineID,
		StartedAt: now,
	})
	return true, nil
}

// MarkCompleted moves the job to Completed.
func (j *Job) MarkCompleted(now time.Time) error {
	if j.IsClosed() {
		return ErrJobClosed
	}
	if j.ActualStart == nil {
		j.ActualStart = &now
	}
	j.Status = JobStatusCompleted
	j.ActualEnd = &now
	j.UpdatedAt = now
	j.AddDomainEvent(&JobCompletedEvent{
		JobID:       j.JobID,
		MachineID:   j.MachineID,
		Material:    j.SlsMaterial,
		CompletedAt: now,
	})
	return nil
}

// AddDomainEvent adds a domain event
func (j *Job) AddDomainEvent(event DomainEvent) {
	j.DomainEvents = append(j.DomainEvents, event)
}

// PullDomainEvents returns and clears the pending events.
func (j *Job) PullDomainEvents() []DomainEvent {
	events := j.DomainEvents
	j.DomainEvents = nil
	return events
}
