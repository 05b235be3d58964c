package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	AggregateID() string
}

// StagePunchedInEvent is published when an operator starts a stage
type StagePunchedInEvent struct {
	ExecutionID  string    `json:"executionId"`
	JobID        string    `json:"jobId"`
	StageID      string    `json:"stageId"`
	OperatorName string    `json:"operatorName"`
	StartedAt    time.Time `json:"startedAt"`
}

func (e *StagePunchedInEvent) EventType() string     { return "opcentrix.stage.punched-in" }
func (e *StagePunchedInEvent) OccurredAt() time.Time { return e.StartedAt }
func (e *StagePunchedInEvent) AggregateID() string   { return e.JobID }

// StagePunchedOutEvent is published when an operator finishes a stage
type StagePunchedOutEvent struct {
	ExecutionID    string    `json:"executionId"`
	JobID          string    `json:"jobId"`
	StageID        string    `json:"stageId"`
	OperatorName   string    `json:"operatorName"`
	ActualHours    float64   `json:"actualHours"`
	EstimatedHours float64   `json:"estimatedHours"`
	NeedsReview    bool      `json:"needsReview"`
	CompletedAt    time.Time `json:"completedAt"`
}

func (e *StagePunchedOutEvent) EventType() string     { return "opcentrix.stage.punched-out" }
func (e *StagePunchedOutEvent) OccurredAt() time.Time { return e.CompletedAt }
func (e *StagePunchedOutEvent) AggregateID() string   { return e.JobID }

// JobScheduledEvent is published when a job is placed on a machine
type JobScheduledEvent struct {
	JobID          string    `json:"jobId"`
	MachineID      string    `json:"machineId"`
	ScheduledStart time.Time `json:"scheduledStart"`
	ScheduledEnd   time.Time `json:"scheduledEnd"`
	ScheduledAt    time.Time `json:"scheduledAt"`
}

func (e *JobScheduledEvent) EventType() string     { return "opcentrix.job.scheduled" }
func (e *JobScheduledEvent) OccurredAt() time.Time { return e.ScheduledAt }
func (e *JobScheduledEvent) AggregateID() string   { return e.JobID }

// JobStartedEvent is published on the first punch-in of a job
type JobStartedEvent struct {
	JobID     string    `json:"jobId"`
	MachineID string    `json:"machineId"`
	StartedAt time.Time `json:"startedAt"`
}

func (e *JobStartedEvent) EventType() string     { return "opcentrix.job.started" }
func (e *JobStartedEvent) OccurredAt() time.Time { return e.StartedAt }
func (e *JobStartedEvent) AggregateID() string   { return e.JobID }

// JobCompletedEvent is published when the last stage of a job is punched out
type JobCompletedEvent struct {
	JobID       string    `json:"jobId"`
	MachineID   string    `json:"machineId"`
	Material    string    `json:"material"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *JobCompletedEvent) EventType() string     { return "opcentrix.job.completed" }
func (e *JobCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }
func (e *JobCompletedEvent) AggregateID() string   { return e.JobID }

// MaterialChangedEvent is published when a machine's loaded powder changes
type MaterialChangedEvent struct {
	MachineID         string    `json:"machineId"`
	FromMaterial      string    `json:"fromMaterial"`
	ToMaterial        string    `json:"toMaterial"`
	ChangeoverMinutes int       `json:"changeoverMinutes"`
	CausedByJobID     string    `json:"causedByJobId"`
	ChangedAt         time.Time `json:"changedAt"`
}

func (e *MaterialChangedEvent) EventType() string     { return "opcentrix.machine.material-changed" }
func (e *MaterialChangedEvent) OccurredAt() time.Time { return e.ChangedAt }
func (e *MaterialChangedEvent) AggregateID() string   { return e.MachineID }
