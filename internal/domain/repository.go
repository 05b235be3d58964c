package domain

import (
	"context"
	"time"
)

// Repositories return (nil, nil) for a missing record and wrap transport or
// storage failures so that errors.Is(err, ErrRepositoryUnavailable) holds.

// JobRepository defines the interface for job persistence
type JobRepository interface {
	FindByID(ctx context.Context, jobID string) (*Job, error)
	// FindByMachine returns the machine's jobs whose schedule overlaps window,
	// ordered by ScheduledStart.
	FindByMachine(ctx context.Context, machineID string, window TimeRange) ([]*Job, error)
	// Save inserts a new job. It returns ErrJobExists when the ID is taken;
	// stored jobs change only through UpdateStatus and RecordPunch.
	Save(ctx context.Context, job *Job) error
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, actualStart, actualEnd *time.Time) error
	Delete(ctx context.Context, jobID string) error
}

// MachineRepository defines the interface for machine persistence
type MachineRepository interface {
	FindAll(ctx context.Context) ([]*Machine, error)
	FindByID(ctx context.Context, machineID string) (*Machine, error)
	ApplyMaterialTransition(ctx context.Context, t MaterialTransition) error
}

// PartRepository exposes the stage routing of parts
type PartRepository interface {
	FindStageRequirements(ctx context.Context, partID string) (StageRequirements, error)
}

// StageRepository defines the interface for production stage lookups
type StageRepository interface {
	FindByID(ctx context.Context, stageID string) (*ProductionStage, error)
	FindAll(ctx context.Context) ([]*ProductionStage, error)
}

// PunchRecord is everything one punch writes. It is persisted atomically.
type PunchRecord struct {
	Execution  *ProductionStageExecution
	Job        *Job
	Transition *MaterialTransition
	Events     []DomainEvent
}

// ExecutionRepository defines the interface for stage execution persistence
type ExecutionRepository interface {
	FindActive(ctx context.Context, jobID, stageID string) (*ProductionStageExecution, error)
	FindActiveByOperator(ctx context.Context, operator string) (*ProductionStageExecution, error)
	FindByJob(ctx context.Context, jobID string) ([]*ProductionStageExecution, error)
	Save(ctx context.Context, execution *ProductionStageExecution) error
	// RecordPunch writes the execution, the optional job update, the optional
	// material transition and the events together. It returns
	// ErrStageAlreadyActive or ErrOperatorBusy when a concurrent writer won.
	RecordPunch(ctx context.Context, rec PunchRecord) error
}
