package domain

import (
	"errors"
	"time"
)

var (
	ErrStageAlreadyActive = errors.New("stage already has an active execution for this job")
	ErrOperatorBusy       = errors.New("operator already has an active stage execution")
	ErrExecutionNotActive = errors.New("no active execution for this job and stage")
)

// ExecutionStatus represents the status of a stage execution
type ExecutionStatus string

const (
	ExecutionStatusInProgress ExecutionStatus = "InProgress"
	ExecutionStatusCompleted  ExecutionStatus = "Completed"
)

// ReviewClockSkew flags an execution whose completion preceded its start.
const ReviewClockSkew = "completion time preceded start time"

// ProductionStageExecution records one operator working one stage of a job
type ProductionStageExecution struct {
	ExecutionID    string          `bson:"executionId"`
	JobID          string          `bson:"jobId"`
	StageID        string          `bson:"stageId"`
	OperatorName   string          `bson:"operatorName"`
	Status         ExecutionStatus `bson:"status"`
	StartDate      time.Time       `bson:"startDate"`
	CompletionDate *time.Time      `bson:"completionDate,omitempty"`
	EstimatedHours float64         `bson:"estimatedHours"`
	ActualHours    *float64        `bson:"actualHours,omitempty"`
	Notes          string          `bson:"notes,omitempty"`
	NeedsReview    bool            `bson:"needsReview"`
	ReviewReason   string          `bson:"reviewReason,omitempty"`
	CreatedAt      time.Time       `bson:"createdAt"`
	UpdatedAt      time.Time       `bson:"updatedAt"`
	DomainEvents   []DomainEvent   `bson:"-"`
}

// StartExecution opens an InProgress execution.
func StartExecution(executionID, jobID, stageID, operator string, estimatedHours float64, now time.Time) *ProductionStageExecution {
	e := &ProductionStageExecution{
		ExecutionID:    executionID,
		JobID:          jobID,
		StageID:        stageID,
		OperatorName:   operator,
		Status:         ExecutionStatusInProgress,
		StartDate:      now,
		EstimatedHours: estimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	e.AddDomainEvent(&StagePunchedInEvent{
		ExecutionID:  executionID,
		JobID:        jobID,
		StageID:      stageID,
		OperatorName: operator,
		StartedAt:    now,
	})
	return e
}

// IsActive reports an InProgress execution.
func (e *ProductionStageExecution) IsActive() bool {
	return e.Status == ExecutionStatusInProgress
}

// Complete closes the execution. Actual hours are never negative: a
// completion before the start records zero and flags the row for review.
func (e *ProductionStageExecution) Complete(now time.Time, notes string) error {
	if !e.IsActive() {
		return ErrExecutionNotActive
	}

	hours := now.Sub(e.StartDate).Hours()
	if hours < 0 {
		hours = 0
		e.NeedsReview = true
		e.ReviewReason = ReviewClockSkew
	}

	e.Status = ExecutionStatusCompleted
	e.CompletionDate = &now
	e.ActualHours = &hours
	e.UpdatedAt = now
	if notes != "" {
		e.Notes = notes
	}

	e.AddDomainEvent(&StagePunchedOutEvent{
		ExecutionID:    e.ExecutionID,
		JobID:          e.JobID,
		StageID:        e.StageID,
		OperatorName:   e.OperatorName,
		ActualHours:    hours,
		EstimatedHours: e.EstimatedHours,
		NeedsReview:    e.NeedsReview,
		CompletedAt:    now,
	})
	return nil
}

// Hours returns the recorded actual hours, or 0 while still running.
func (e *ProductionStageExecution) Hours() float64 {
	if e.ActualHours == nil {
		return 0
	}
	return *e.ActualHours
}

// Variance returns actual minus estimated hours.
func (e *ProductionStageExecution) Variance() float64 {
	return e.Hours() - e.EstimatedHours
}

// AddDomainEvent adds a domain event
func (e *ProductionStageExecution) AddDomainEvent(event DomainEvent) {
	e.DomainEvents = append(e.DomainEvents, event)
}

// PullDomainEvents returns and clears the pending events.
func (e *ProductionStageExecution) PullDomainEvents() []DomainEvent {
	events := e.DomainEvents
	e.DomainEvents = nil
	return events
}
