package memory

import (
	"context"
	"sort"
	"time"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

var (
	_ domain.JobRepository       = (*JobRepository)(nil)
	_ domain.MachineRepository   = (*MachineRepository)(nil)
	_ domain.PartRepository      = (*PartRepository)(nil)
	_ domain.StageRepository     = (*StageRepository)(nil)
	_ domain.ExecutionRepository = (*ExecutionRepository)(nil)
)

// JobRepository implements domain.JobRepository
type JobRepository struct{ s *Store }

// FindByID finds a job by ID
func (r *JobRepository) FindByID(_ context.Context, jobID string) (*domain.Job, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	j, ok := r.s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return cloneJob(j), nil
}

// FindByMachine returns the machine's jobs overlapping window
func (r *JobRepository) FindByMachine(_ context.Context, machineID string, window domain.TimeRange) ([]*domain.Job, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*domain.Job{}
	for _, j := range r.s.jobs {
		if j.MachineID == machineID && j.Schedule().Overlaps(window) {
			out = append(out, cloneJob(j))
		}
	}
	sortJobs(out)
	return out, nil
}

// Save inserts a job unless its ID is taken
func (r *JobRepository) Save(_ context.Context, job *domain.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.jobs[job.JobID]; ok {
		return domain.ErrJobExists
	}
	r.s.jobs[job.JobID] = cloneJob(job)
	r.s.events = append(r.s.events, job.PullDomainEvents()...)
	return nil
}

// UpdateStatus sets a job's status and, when given, its actual times
func (r *JobRepository) UpdateStatus(_ context.Context, jobID string, status domain.JobStatus, actualStart, actualEnd *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	j.Status = status
	if actualStart != nil {
		j.ActualStart = actualStart
	}
	if actualEnd != nil {
		j.ActualEnd = actualEnd
	}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes a job
func (r *JobRepository) Delete(_ context.Context, jobID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.jobs[jobID]; !ok {
		return domain.ErrJobNotFound
	}
	delete(r.s.jobs, jobID)
	return nil
}

// MachineRepository implements domain.MachineRepository
type MachineRepository struct{ s *Store }

// FindAll returns machines ordered by priority, then ID
func (r *MachineRepository) FindAll(_ context.Context) ([]*domain.Machine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*domain.Machine, 0, len(r.s.machines))
	for _, m := range r.s.machines {
		out = append(out, cloneMachine(m))
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Priority != out[k].Priority {
			return out[i].Priority < out[k].Priority
		}
		return out[i].MachineID < out[k].MachineID
	})
	return out, nil
}

// FindByID finds a machine by ID
func (r *MachineRepository) FindByID(_ context.Context, machineID string) (*domain.Machine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.machines[machineID]
	if !ok {
		return nil, nil
	}
	return cloneMachine(m), nil
}

// ApplyMaterialTransition loads the transition's target material
func (r *MachineRepository) ApplyMaterialTransition(_ context.Context, t domain.MaterialTransition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.applyTransition(t)
}

func (s *Store) applyTransition(t domain.MaterialTransition) error {
	m, ok := s.machines[t.MachineID]
	if !ok {
		return domain.ErrMachineNotFound
	}
	m.CurrentMaterial = t.To
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// PartRepository implements domain.PartRepository
type PartRepository struct{ s *Store }

// FindStageRequirements returns the part's routing ordered by execution order
func (r *PartRepository) FindStageRequirements(_ context.Context, partID string) (domain.StageRequirements, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.requirements[partID].Sorted(), nil
}

// StageRepository implements domain.StageRepository
type StageRepository struct{ s *Store }

// FindByID finds a stage by ID
func (r *StageRepository) FindByID(_ context.Context, stageID string) (*domain.ProductionStage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.stages[stageID]
	if !ok {
		return nil, nil
	}
	c := *st
	return &c, nil
}

// FindAll returns stages in display order
func (r *StageRepository) FindAll(_ context.Context) ([]*domain.ProductionStage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*domain.ProductionStage, 0, len(r.s.stages))
	for _, st := range r.s.stages {
		c := *st
		out = append(out, &c)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].DisplayOrder != out[k].DisplayOrder {
			return out[i].DisplayOrder < out[k].DisplayOrder
		}
		return out[i].StageID < out[k].StageID
	})
	return out, nil
}

// ExecutionRepository implements domain.ExecutionRepository
type ExecutionRepository struct{ s *Store }

// FindActive returns the InProgress execution of a job's stage
func (r *ExecutionRepository) FindActive(_ context.Context, jobID, stageID string) (*domain.ProductionStageExecution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.executions {
		if e.IsActive() && e.JobID == jobID && e.StageID == stageID {
			return cloneExecution(e), nil
		}
	}
	return nil, nil
}

// FindActiveByOperator returns the operator's InProgress execution
func (r *ExecutionRepository) FindActiveByOperator(_ context.Context, operator string) (*domain.ProductionStageExecution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.executions {
		if e.IsActive() && e.OperatorName == operator {
			return cloneExecution(e), nil
		}
	}
	return nil, nil
}

// FindByJob returns a job's executions ordered by start
func (r *ExecutionRepository) FindByJob(_ context.Context, jobID string) ([]*domain.ProductionStageExecution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*domain.ProductionStageExecution{}
	for _, e := range r.s.executions {
		if e.JobID == jobID {
			out = append(out, cloneExecution(e))
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].StartDate.Equal(out[k].StartDate) {
			return out[i].StartDate.Before(out[k].StartDate)
		}
		return out[i].ExecutionID < out[k].ExecutionID
	})
	return out, nil
}

// Save inserts or replaces an execution
func (r *ExecutionRepository) Save(_ context.Context, e *domain.ProductionStageExecution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkExecution(e); err != nil {
		return err
	}
	r.s.executions[e.ExecutionID] = cloneExecution(e)
	return nil
}

// RecordPunch applies a punch atomically: nothing is written unless every
// part of the record is valid.
func (r *ExecutionRepository) RecordPunch(_ context.Context, rec domain.PunchRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e := rec.Execution
	if e.IsActive() {
		if err := r.s.checkExecution(e); err != nil {
			return err
		}
	} else if stored, ok := r.s.executions[e.ExecutionID]; !ok || !stored.IsActive() {
		return domain.ErrExecutionNotActive
	}
	if rec.Job != nil {
		if _, ok := r.s.jobs[rec.Job.JobID]; !ok {
			return domain.ErrJobNotFound
		}
	}
	if rec.Transition != nil {
		if _, ok := r.s.machines[rec.Transition.MachineID]; !ok {
			return domain.ErrMachineNotFound
		}
	}

	r.s.executions[e.ExecutionID] = cloneExecution(e)
	if rec.Job != nil {
		r.s.jobs[rec.Job.JobID] = cloneJob(rec.Job)
	}
	if rec.Transition != nil {
		_ = r.s.applyTransition(*rec.Transition)
	}
	r.s.events = append(r.s.events, rec.Events...)
	return nil
}
