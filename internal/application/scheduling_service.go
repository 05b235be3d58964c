package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/internal/scheduling"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/errors"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/metrics"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/tracing"
)

const tracerName = "opcentrix-scheduling"

// PriorJobLookback bounds how far back ValidateJob looks for the job that
// precedes a candidate on its machine.
const PriorJobLookback = 14 * 24 * time.Hour

// SchedulingService is the presentation-facing facade over the calculators
// and the job and machine repositories.
type SchedulingService struct {
	repos   Repositories
	engine  *Engine
	locker  Locker
	metrics *metrics.Metrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewSchedulingService creates a new SchedulingService
func NewSchedulingService(
	repos Repositories,
	engine *Engine,
	locker Locker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *SchedulingService {
	return &SchedulingService{
		repos:   repos,
		engine:  engine,
		locker:  locker,
		metrics: m,
		logger:  logger.WithComponent("scheduling"),
		now:     time.Now,
	}
}

// ValidateJobScheduling checks a candidate against the given jobs of its
// machine. It performs no I/O.
func (s *SchedulingService) ValidateJobScheduling(ctx context.Context, candidate *domain.Job, existing []*domain.Job) (bool, []string) {
	r := s.engine.Conflicts.Validate(candidate, existing)
	s.recordValidation(ctx, candidate, r)
	return r.OK(), r.Errors()
}

// ValidateJob validates a candidate against the jobs stored for its machine.
func (s *SchedulingService) ValidateJob(ctx context.Context, cmd ScheduleJobCommand) (*ValidationResultDTO, error) {
	candidate := cmd.toCandidate()
	r, err := s.validateStored(ctx, candidate)
	if err != nil {
		return nil, err
	}
	dto := ToValidationResultDTO(r)
	return &dto, nil
}

func (s *SchedulingService) validateStored(ctx context.Context, candidate *domain.Job) (scheduling.Result, error) {
	machine, err := s.repos.Machines.FindByID(ctx, candidate.MachineID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get machine", "machineId", candidate.MachineID)
		return scheduling.Result{}, mapError(err)
	}
	if machine == nil {
		return scheduling.Result{}, errors.ErrNotFoundWithID("machine", candidate.MachineID)
	}

	var existing []*domain.Job
	if window := candidate.Schedule(); window.IsValid() {
		lookup := domain.NewTimeRange(window.Start.Add(-PriorJobLookback), window.End)
		existing, err = s.repos.Jobs.FindByMachine(ctx, candidate.MachineID, lookup)
		if err != nil {
			s.logger.WithError(err).Error("Failed to get machine jobs", "machineId", candidate.MachineID)
			return scheduling.Result{}, mapError(err)
		}
	}

	r := s.engine.Conflicts.ValidateOnMachine(candidate, existing, machine)
	s.recordValidation(ctx, candidate, r)
	return r, nil
}

func (s *SchedulingService) recordValidation(ctx context.Context, candidate *domain.Job, r scheduling.Result) {
	if s.metrics != nil {
		s.metrics.RecordSchedulingValidation(r.OK())
	}
	if !r.OK() {
		s.logger.WithContext(ctx).Info("Job scheduling rejected",
			"jobId", candidate.JobID,
			"machineId", candidate.MachineID,
			"errors", len(r.Errors()),
		)
	}
}

// ScheduleJob validates a candidate against its machine's stored jobs and
// saves it when valid. The machine and then the job ID are locked for the
// duration so neither two overlapping candidates nor two candidates sharing
// an ID can both pass.
func (s *SchedulingService) ScheduleJob(ctx context.Context, cmd ScheduleJobCommand) (result *ScheduleJobResult, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "SchedulingService.ScheduleJob",
		attribute.String("machine.id", cmd.MachineID))
	defer func() { tracing.EndSpan(span, err) }()

	if cmd.JobID == "" {
		cmd.JobID = uuid.NewString()
	}

	unlockMachine, err := s.locker.Acquire(ctx, machineLockKey(cmd.MachineID))
	if err != nil {
		return nil, mapError(err)
	}
	defer unlockMachine()

	unlockJob, err := s.locker.Acquire(ctx, jobLockKey(cmd.JobID))
	if err != nil {
		return nil, mapError(err)
	}
	defer unlockJob()

	existing, err := s.repos.Jobs.FindByID(ctx, cmd.JobID)
	if err != nil {
		return nil, mapError(err)
	}
	if existing != nil {
		return nil, errors.ErrConflict(fmt.Sprintf("job %s already exists", cmd.JobID))
	}

	candidate := cmd.toCandidate()
	r, err := s.validateStored(ctx, candidate)
	if err != nil {
		return nil, err
	}
	result = &ScheduleJobResult{Validation: ToValidationResultDTO(r)}
	if !r.OK() {
		return result, nil
	}

	job, err := domain.NewJob(cmd.JobID, cmd.MachineID, cmd.PartID, candidate.Schedule(), s.now().UTC())
	if err != nil {
		return nil, mapError(err)
	}
	job.PartNumber = candidate.PartNumber
	job.Quantity = candidate.Quantity
	job.Priority = candidate.Priority
	job.SLSParameters = candidate.SLSParameters
	job.CostInputs = candidate.CostInputs

	if err := s.repos.Jobs.Save(ctx, job); err != nil {
		s.logger.WithError(err).Error("Failed to save job", "jobId", job.JobID)
		return nil, mapError(err)
	}

	s.logger.Info("Scheduled job", "jobId", job.JobID, "machineId", job.MachineID, "start", job.ScheduledStart, "end", job.ScheduledEnd)
	result.Job = ToJobDTO(job)
	return result, nil
}

// GetJob retrieves a job by ID
func (s *SchedulingService) GetJob(ctx context.Context, query GetJobQuery) (*JobDTO, error) {
	job, err := s.findJob(ctx, query.JobID)
	if err != nil {
		return nil, err
	}
	return ToJobDTO(job), nil
}

// DeleteJob removes a job. A job with an active stage execution is refused.
func (s *SchedulingService) DeleteJob(ctx context.Context, cmd DeleteJobCommand) error {
	unlock, err := s.locker.Acquire(ctx, jobLockKey(cmd.JobID))
	if err != nil {
		return mapError(err)
	}
	defer unlock()

	if _, err := s.findJob(ctx, cmd.JobID); err != nil {
		return err
	}

	executions, err := s.repos.Executions.FindByJob(ctx, cmd.JobID)
	if err != nil {
		return mapError(err)
	}
	for _, e := range executions {
		if e.IsActive() {
			return errors.ErrConflict(fmt.Sprintf("job %s has stage %s in progress", cmd.JobID, e.StageID)).
				WithDetail("operatorName", e.OperatorName)
		}
	}

	if err := s.repos.Jobs.Delete(ctx, cmd.JobID); err != nil {
		s.logger.WithError(err).Error("Failed to delete job", "jobId", cmd.JobID)
		return mapError(err)
	}

	s.logger.Info("Deleted job", "jobId", cmd.JobID)
	return nil
}

// ListMachines returns every machine
func (s *SchedulingService) ListMachines(ctx context.Context) ([]MachineDTO, error) {
	machines, err := s.repos.Machines.FindAll(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]MachineDTO, 0, len(machines))
	for _, m := range machines {
		out = append(out, *ToMachineDTO(m))
	}
	return out, nil
}

// CalculateMachineRowLayout returns the layer count and row height for a
// machine's jobs.
func (s *SchedulingService) CalculateMachineRowLayout(machineID string, jobs []*domain.Job) (int, int) {
	layers, height := s.engine.Layout.RowLayout(machineID, jobs)
	if s.metrics != nil {
		s.metrics.RecordRowLayout(machineID, layers)
	}
	return layers, height
}

// GetMachineRow fetches a machine's jobs for a window and lays them out.
func (s *SchedulingService) GetMachineRow(ctx context.Context, query GetMachineRowQuery) (*MachineRowDTO, error) {
	window := domain.NewTimeRange(query.From, query.To)
	if !window.IsValid() {
		return nil, errors.ErrValidation("'to' must be after 'from'")
	}

	machine, err := s.repos.Machines.FindByID(ctx, query.MachineID)
	if err != nil {
		return nil, mapError(err)
	}
	if machine == nil {
		return nil, errors.ErrNotFoundWithID("machine", query.MachineID)
	}

	jobs, err := s.repos.Jobs.FindByMachine(ctx, query.MachineID, window)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get machine jobs", "machineId", query.MachineID)
		return nil, mapError(err)
	}

	layers, height := s.CalculateMachineRowLayout(query.MachineID, jobs)
	assigned := s.engine.Layout.AssignLayers(query.MachineID, jobs)

	row := &MachineRowDTO{
		MachineID:   query.MachineID,
		From:        window.Start,
		To:          window.End,
		MaxLayers:   layers,
		RowHeightPx: height,
		Jobs:        []RowJobDTO{},
	}
	for _, j := range jobs {
		layer, ok := assigned[j.JobID]
		if !ok {
			continue
		}
		row.Jobs = append(row.Jobs, RowJobDTO{
			JobID:          j.JobID,
			PartNumber:     j.PartNumber,
			Status:         string(j.Status),
			SlsMaterial:    j.SlsMaterial,
			ScheduledStart: j.ScheduledStart,
			ScheduledEnd:   j.ScheduledEnd,
			Layer:          layer,
		})
	}
	return row, nil
}

// GetSchedulerView builds the time grid for a view mode.
func (s *SchedulingService) GetSchedulerView(ctx context.Context, query GetSchedulerViewQuery) (*scheduling.ScheduleView, error) {
	view, err := s.engine.Views.BuildView(ctx, query.Mode, query.StartDate)
	if err != nil {
		if !stderrors.Is(err, scheduling.ErrInvalidViewMode) {
			s.logger.WithError(err).Error("Failed to build scheduler view", "mode", query.Mode)
		}
		return nil, mapError(err)
	}
	return &view, nil
}

// ValidateSlsJobCompatibility reports whether a job can run on its machine.
func (s *SchedulingService) ValidateSlsJobCompatibility(ctx context.Context, job *domain.Job) (bool, error) {
	machine, err := s.repos.Machines.FindByID(ctx, job.MachineID)
	if err != nil {
		return false, mapError(err)
	}
	return s.engine.Parameters.IsCompatible(job, machine), nil
}

// JobCompatibility loads a job and reports its compatibility with the
// machine it is scheduled on.
func (s *SchedulingService) JobCompatibility(ctx context.Context, query GetJobQuery) (*CompatibilityDTO, error) {
	job, err := s.findJob(ctx, query.JobID)
	if err != nil {
		return nil, err
	}
	compatible, err := s.ValidateSlsJobCompatibility(ctx, job)
	if err != nil {
		return nil, err
	}

	r := scheduling.Result{Issues: s.engine.Parameters.Check(job)}
	return &CompatibilityDTO{
		JobID:      job.JobID,
		MachineID:  job.MachineID,
		Compatible: compatible,
		Errors:     r.Errors(),
		Warnings:   r.Warnings(),
	}, nil
}

// CalculateOptimalPowderChangeoverTime returns the changeover minutes for a
// machine switching materials. A machine missing from the repository is left
// to the calculator's unknown-machine policy.
func (s *SchedulingService) CalculateOptimalPowderChangeoverTime(ctx context.Context, query ChangeoverQuery) (*ChangeoverDTO, error) {
	machine, err := s.repos.Machines.FindByID(ctx, query.MachineID)
	if err != nil && !stderrors.Is(err, domain.ErrMachineNotFound) {
		return nil, mapError(err)
	}
	from := query.FromMaterial
	if from == "" && machine != nil {
		from = machine.CurrentMaterial
	}

	minutes, err := s.engine.Changeover.OptimalChangeoverMinutes(query.MachineID, machine, from, query.ToMaterial)
	if err != nil {
		return nil, mapError(err)
	}
	return &ChangeoverDTO{MachineID: query.MachineID, FromMaterial: from, ToMaterial: query.ToMaterial, Minutes: minutes}, nil
}

// CalculateSlsJobCostEstimate prices a job. It performs no I/O.
func (s *SchedulingService) CalculateSlsJobCostEstimate(job *domain.Job) (decimal.Decimal, error) {
	return s.engine.Cost.Estimate(job)
}

// EstimateJob loads a job and itemizes its cost, including the changeover
// from the machine's loaded material. Machine operating cost falls back to
// the machine's rate when the job carries none.
func (s *SchedulingService) EstimateJob(ctx context.Context, query GetJobQuery) (*CostEstimateDTO, error) {
	job, err := s.findJob(ctx, query.JobID)
	if err != nil {
		return nil, err
	}
	machine, err := s.repos.Machines.FindByID(ctx, job.MachineID)
	if err != nil {
		return nil, mapError(err)
	}

	priced := *job
	changeover := 0
	if machine != nil {
		if priced.MachineOperatingCostPerHour <= 0 {
			priced.MachineOperatingCostPerHour = machine.OperatingCostPerHour
		}
		if job.Status == domain.JobStatusScheduled {
			changeover = s.engine.Changeover.Minutes(machine, machine.CurrentMaterial, job.SlsMaterial)
		}
	}

	b := s.engine.Cost.Breakdown(&priced, changeover)
	return &CostEstimateDTO{
		JobID:             job.JobID,
		Total:             b.Total.StringFixed(2),
		ChangeoverMinutes: changeover,
		Breakdown:         b,
	}, nil
}

// GetJobExecutions lists the stage executions of a job
func (s *SchedulingService) GetJobExecutions(ctx context.Context, query GetJobQuery) ([]ExecutionDTO, error) {
	if _, err := s.findJob(ctx, query.JobID); err != nil {
		return nil, err
	}
	executions, err := s.repos.Executions.FindByJob(ctx, query.JobID)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]ExecutionDTO, 0, len(executions))
	for _, e := range executions {
		out = append(out, *ToExecutionDTO(e))
	}
	return out, nil
}

func (s *SchedulingService) findJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.repos.Jobs.FindByID(ctx, jobID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get job", "jobId", jobID)
		return nil, mapError(err)
	}
	if job == nil {
		return nil, errors.ErrNotFoundWithID("job", jobID)
	}
	return job, nil
}
