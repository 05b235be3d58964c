// Package memory is an in-process implementation of the repositories. It
// backs the schedctl CLI and the concurrency tests, and enforces the same
// uniqueness rules on active executions as the MongoDB indexes do.
package memory

import (
	"sort"
	"sync"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

// Store holds every aggregate behind one RWMutex.
type Store struct {
	mu           sync.RWMutex
	jobs         map[string]*domain.Job
	machines     map[string]*domain.Machine
	stages       map[string]*domain.ProductionStage
	requirements map[string]domain.StageRequirements
	executions   map[string]*domain.ProductionStageExecution
	events       []domain.DomainEvent
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		jobs:         make(map[string]*domain.Job),
		machines:     make(map[string]*domain.Machine),
		stages:       make(map[string]*domain.ProductionStage),
		requirements: make(map[string]domain.StageRequirements),
		executions:   make(map[string]*domain.ProductionStageExecution),
	}
}

// Jobs returns the job repository view of the store.
func (s *Store) Jobs() *JobRepository { return &JobRepository{s: s} }

// Machines returns the machine repository view of the store.
func (s *Store) Machines() *MachineRepository { return &MachineRepository{s: s} }

// Parts returns the part routing view of the store.
func (s *Store) Parts() *PartRepository { return &PartRepository{s: s} }

// Stages returns the production stage view of the store.
func (s *Store) Stages() *StageRepository { return &StageRepository{s: s} }

// Executions returns the stage execution repository view of the store.
func (s *Store) Executions() *ExecutionRepository { return &ExecutionRepository{s: s} }

// SeedMachines stores machines, replacing any with the same ID.
func (s *Store) SeedMachines(machines ...*domain.Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range machines {
		s.machines[m.MachineID] = cloneMachine(m)
	}
}

// SeedStages stores production stages.
func (s *Store) SeedStages(stages ...*domain.ProductionStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range stages {
		c := *st
		s.stages[st.StageID] = &c
	}
}

// SeedRequirements sets a part's stage routing.
func (s *Store) SeedRequirements(partID string, reqs ...domain.PartStageRequirement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(domain.StageRequirements, 0, len(reqs))
	for _, r := range reqs {
		r.PartID = partID
		out = append(out, r)
	}
	s.requirements[partID] = out
}

// SeedJobs stores jobs as they are, bypassing validation.
func (s *Store) SeedJobs(jobs ...*domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range jobs {
		s.jobs[j.JobID] = cloneJob(j)
	}
}

// Events returns the events recorded by punches, oldest first.
func (s *Store) Events() []domain.DomainEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DomainEvent, len(s.events))
	copy(out, s.events)
	return out
}

// checkExecution enforces one active execution per (job, stage) and per
// operator. Callers hold the write lock.
func (s *Store) checkExecution(e *domain.ProductionStageExecution) error {
	if !e.IsActive() {
		return nil
	}
	for id, other := range s.executions {
		if id == e.ExecutionID || !other.IsActive() {
			continue
		}
		if other.JobID == e.JobID && other.StageID == e.StageID {
			return domain.ErrStageAlreadyActive
		}
		if other.OperatorName == e.OperatorName {
			return domain.ErrOperatorBusy
		}
	}
	return nil
}

func cloneJob(j *domain.Job) *domain.Job {
	c := *j
	c.DomainEvents = nil
	return &c
}

func cloneMachine(m *domain.Machine) *domain.Machine {
	c := *m
	if m.SupportedMaterials != nil {
		c.SupportedMaterials = append([]domain.Material(nil), m.SupportedMaterials...)
	}
	if m.Changeover != nil {
		co := *m.Changeover
		c.Changeover = &co
	}
	return &c
}

func cloneExecution(e *domain.ProductionStageExecution) *domain.ProductionStageExecution {
	c := *e
	if e.ActualHours != nil {
		h := *e.ActualHours
		c.ActualHours = &h
	}
	c.DomainEvents = nil
	return &c
}

func sortJobs(jobs []*domain.Job) {
	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].ScheduledStart.Equal(jobs[k].ScheduledStart) {
			return jobs[i].ScheduledStart.Before(jobs[k].ScheduledStart)
		}
		return jobs[i].JobID < jobs[k].JobID
	})
}
