package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/internal/scheduling"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/metrics"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/tracing"
)

// StageExecutionTracker runs the punch-in/punch-out state machine. Each
// (job, stage) pair moves NotStarted -> InProgress -> Completed, and an
// operator holds at most one InProgress execution at a time.
//
// Checks run under a per-job lock, and PunchIn also takes a per-operator lock
// (always job first, then operator). The repository enforces the same two
// invariants on write, so a second process without the shared lock still
// cannot break them.
type StageExecutionTracker struct {
	repos      Repositories
	changeover *scheduling.ChangeoverCalculator
	locker     Locker
	metrics    *metrics.Metrics
	logger     *logging.Logger
	now        func() time.Time
	newID      func() string
}

// NewStageExecutionTracker creates a new StageExecutionTracker
func NewStageExecutionTracker(
	repos Repositories,
	changeover *scheduling.ChangeoverCalculator,
	locker Locker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *StageExecutionTracker {
	return &StageExecutionTracker{
		repos:      repos,
		changeover: changeover,
		locker:     locker,
		metrics:    m,
		logger:     logger.WithComponent("stage-tracker"),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// WithClock replaces the time source.
func (t *StageExecutionTracker) WithClock(now func() time.Time) *StageExecutionTracker {
	t.now = now
	return t
}

// PunchIn starts operator work on a job's stage. Refusals come back as a
// result with OK=false; err is set only when the system failed.
func (t *StageExecutionTracker) PunchIn(ctx context.Context, cmd PunchInCommand) (result *PunchResult, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "StageExecutionTracker.PunchIn",
		attribute.String("job.id", cmd.JobID),
		attribute.String("stage.id", cmd.StageID),
	)
	defer func() {
		tracing.EndSpan(span, err)
		t.record("in", result)
	}()

	operator := strings.TrimSpace(cmd.OperatorName)
	if cmd.JobID == "" || cmd.StageID == "" || operator == "" {
		return refuse(PunchInvalid, "job, stage and operator are required"), nil
	}
	ctx = logging.ContextWithOperator(ctx, operator)

	unlockJob, err := t.locker.Acquire(ctx, jobLockKey(cmd.JobID))
	if err != nil {
		return nil, mapError(err)
	}
	defer unlockJob()

	job, err := t.repos.Jobs.FindByID(ctx, cmd.JobID)
	if err != nil {
		return nil, t.infra(err, "Failed to get job", cmd.JobID)
	}
	if job == nil {
		return refuse(PunchNotFound, fmt.Sprintf("job %s not found", cmd.JobID)), nil
	}
	stage, err := t.repos.Stages.FindByID(ctx, cmd.StageID)
	if err != nil {
		return nil, t.infra(err, "Failed to get production stage", cmd.JobID)
	}
	if stage == nil {
		return refuse(PunchNotFound, fmt.Sprintf("production stage %s not found", cmd.StageID)), nil
	}
	if job.IsClosed() {
		return refuse(PunchJobClosed, fmt.Sprintf("job %s is %s", job.JobID, job.Status)), nil
	}

	active, err := t.repos.Executions.FindActive(ctx, cmd.JobID, cmd.StageID)
	if err != nil {
		return nil, t.infra(err, "Failed to get active execution", cmd.JobID)
	}
	if active != nil {
		return refuse(PunchStageActive, fmt.Sprintf("%s for job %s is already in progress (operator %s)",
			stage.Name, job.JobID, active.OperatorName)), nil
	}

	unlockOperator, err := t.locker.Acquire(ctx, operatorLockKey(operator))
	if err != nil {
		return nil, mapError(err)
	}
	defer unlockOperator()

	busy, err := t.repos.Executions.FindActiveByOperator(ctx, operator)
	if err != nil {
		return nil, t.infra(err, "Failed to get operator execution", cmd.JobID)
	}
	if busy != nil {
		return refuse(PunchOperatorBusy, operatorBusyMessage(operator, busy)), nil
	}

	requirements, err := t.repos.Parts.FindStageRequirements(ctx, job.PartID)
	if err != nil {
		return nil, t.infra(err, "Failed to get stage requirements", cmd.JobID)
	}
	estimated := 0.0
	if req, ok := requirements.Find(cmd.StageID); ok {
		estimated = req.EstimatedHours
	}

	now := t.now()
	execution := domain.StartExecution(t.newID(), job.JobID, stage.StageID, operator, estimated, now)
	execution.Notes = cmd.Notes
	rec := domain.PunchRecord{Execution: execution, Events: execution.PullDomainEvents()}

	started, err := job.MarkStarted(now)
	if err != nil {
		return refuse(PunchJobClosed, err.Error()), nil
	}
	if started {
		rec.Job = job
		rec.Events = append(rec.Events, job.PullDomainEvents()...)
	}

	if err := t.repos.Executions.RecordPunch(ctx, rec); err != nil {
		switch {
		case stderrors.Is(err, domain.ErrStageAlreadyActive):
			return refuse(PunchStageActive, fmt.Sprintf("%s for job %s is already in progress", stage.Name, job.JobID)), nil
		case stderrors.Is(err, domain.ErrOperatorBusy):
			return refuse(PunchOperatorBusy, fmt.Sprintf("%s already has a stage in progress; one stage at a time", operator)), nil
		}
		return nil, t.infra(err, "Failed to record punch-in", cmd.JobID)
	}

	t.logger.Audit(ctx, "punch_in", "stage_execution", execution.ExecutionID, operator, map[string]any{
		"jobId":      job.JobID,
		"stageId":    stage.StageID,
		"jobStarted": started,
	})
	t.logger.Info("Operator punched in", "jobId", job.JobID, "stageId", stage.StageID, "operator", operator)

	return &PunchResult{
		OK:        true,
		Message:   fmt.Sprintf("%s punched in to %s for job %s", operator, stage.Name, job.JobID),
		Execution: ToExecutionDTO(execution),
		JobStatus: string(job.Status),
	}, nil
}

// PunchOut completes the active execution of a job's stage. Completing the
// part's last stage completes the job and loads its material into the
// machine.
func (t *StageExecutionTracker) PunchOut(ctx context.Context, cmd PunchOutCommand) (result *PunchResult, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "StageExecutionTracker.PunchOut",
		attribute.String("job.id", cmd.JobID),
		attribute.String("stage.id", cmd.StageID),
	)
	defer func() {
		tracing.EndSpan(span, err)
		t.record("out", result)
	}()

	if cmd.JobID == "" || cmd.StageID == "" {
		return refuse(PunchInvalid, "job and stage are required"), nil
	}

	unlockJob, err := t.locker.Acquire(ctx, jobLockKey(cmd.JobID))
	if err != nil {
		return nil, mapError(err)
	}
	defer unlockJob()

	execution, err := t.repos.Executions.FindActive(ctx, cmd.JobID, cmd.StageID)
	if err != nil {
		return nil, t.infra(err, "Failed to get active execution", cmd.JobID)
	}
	if execution == nil {
		return refuse(PunchNotActive, fmt.Sprintf("stage %s of job %s is not in progress", cmd.StageID, cmd.JobID)), nil
	}

	job, err := t.repos.Jobs.FindByID(ctx, cmd.JobID)
	if err != nil {
		return nil, t.infra(err, "Failed to get job", cmd.JobID)
	}
	if job == nil {
		return refuse(PunchNotFound, fmt.Sprintf("job %s not found", cmd.JobID)), nil
	}
	requirements, err := t.repos.Parts.FindStageRequirements(ctx, job.PartID)
	if err != nil {
		return nil, t.infra(err, "Failed to get stage requirements", cmd.JobID)
	}
	executions, err := t.repos.Executions.FindByJob(ctx, cmd.JobID)
	if err != nil {
		return nil, t.infra(err, "Failed to get job executions", cmd.JobID)
	}

	now := t.now()
	if err := execution.Complete(now, cmd.Notes); err != nil {
		return refuse(PunchNotActive, err.Error()), nil
	}
	rec := domain.PunchRecord{Execution: execution, Events: execution.PullDomainEvents()}
	log := t.logger.WithFields(map[string]any{"jobId": job.JobID, "stageId": cmd.StageID})

	completed := false
	lastDone := lastStageDone(requirements, cmd.StageID, executions)
	stillActive := otherActive(executions, execution.ExecutionID)
	if lastDone && stillActive != nil {
		log.Info("Job stays in progress while another stage is active",
			"activeStageId", stillActive.StageID, "operator", stillActive.OperatorName)
	}
	if lastDone && stillActive == nil && !job.IsClosed() {
		if err := job.MarkCompleted(now); err == nil {
			completed = true
			rec.Job = job
			rec.Events = append(rec.Events, job.PullDomainEvents()...)
		}
		if transition, err := t.planTransition(ctx, job); err != nil {
			return nil, t.infra(err, "Failed to get machine", cmd.JobID)
		} else if transition != nil {
			rec.Transition = transition
			rec.Events = append(rec.Events, &domain.MaterialChangedEvent{
				MachineID:         transition.MachineID,
				FromMaterial:      transition.From,
				ToMaterial:        transition.To,
				ChangeoverMinutes: transition.Minutes,
				CausedByJobID:     job.JobID,
				ChangedAt:         now,
			})
		}
	}

	if err := t.repos.Executions.RecordPunch(ctx, rec); err != nil {
		if stderrors.Is(err, domain.ErrExecutionNotActive) {
			return refuse(PunchNotActive, fmt.Sprintf("stage %s of job %s is not in progress", cmd.StageID, cmd.JobID)), nil
		}
		return nil, t.infra(err, "Failed to record punch-out", cmd.JobID)
	}

	if t.metrics != nil {
		t.metrics.RecordStageCompleted(cmd.StageID, execution.Hours())
		if completed {
			t.metrics.RecordJobCompleted()
		}
	}
	t.logger.Audit(ctx, "punch_out", "stage_execution", execution.ExecutionID, execution.OperatorName, map[string]any{
		"jobId":         job.JobID,
		"stageId":       cmd.StageID,
		"actualHours":   execution.Hours(),
		"varianceHours": execution.Variance(),
		"needsReview":   execution.NeedsReview,
		"jobCompleted":  completed,
	})
	if execution.NeedsReview {
		log.Warn("Stage execution flagged for review", "executionId", execution.ExecutionID, "reason", execution.ReviewReason)
	}

	result = &PunchResult{
		OK:           true,
		Message:      fmt.Sprintf("%s punched out of stage %s for job %s after %.2fh", execution.OperatorName, cmd.StageID, job.JobID, execution.Hours()),
		Execution:    ToExecutionDTO(execution),
		JobStatus:    string(job.Status),
		JobCompleted: completed,
	}
	if next, ok := requirements.Next(cmd.StageID); ok && !completed {
		result.NextStageID = next.StageID
	}
	return result, nil
}

// lastStageDone reports whether finishing stageID means the part's last
// required stage has been worked: it is the last stage, or the last stage
// was completed earlier.
func lastStageDone(requirements domain.StageRequirements, stageID string, executions []*domain.ProductionStageExecution) bool {
	if requirements.IsLast(stageID) {
		return true
	}
	for _, e := range executions {
		if e.Status == domain.ExecutionStatusCompleted && requirements.IsLast(e.StageID) {
			return true
		}
	}
	return false
}

// otherActive returns an InProgress execution of the job other than the one
// being completed.
func otherActive(executions []*domain.ProductionStageExecution, executionID string) *domain.ProductionStageExecution {
	for _, e := range executions {
		if e.ExecutionID != executionID && e.IsActive() {
			return e
		}
	}
	return nil
}

// planTransition returns the material change completing job causes on its
// machine, or nil when there is none.
func (t *StageExecutionTracker) planTransition(ctx context.Context, job *domain.Job) (*domain.MaterialTransition, error) {
	if job.SlsMaterial == "" || t.changeover == nil {
		return nil, nil
	}
	machine, err := t.repos.Machines.FindByID(ctx, job.MachineID)
	if err != nil {
		return nil, err
	}
	if machine == nil {
		return nil, nil
	}
	transition := t.changeover.PlanTransition(machine, job.SlsMaterial)
	if transition.IsNoop() {
		return nil, nil
	}
	return &transition, nil
}

func (t *StageExecutionTracker) infra(err error, msg, jobID string) error {
	t.logger.WithError(err).Error(msg, "jobId", jobID)
	return mapError(err)
}

func (t *StageExecutionTracker) record(direction string, result *PunchResult) {
	if t.metrics == nil {
		return
	}
	switch {
	case result == nil:
		t.metrics.RecordPunch(direction, "error")
	case result.OK:
		t.metrics.RecordPunch(direction, "ok")
	default:
		t.metrics.RecordPunch(direction, string(result.Reason))
	}
}

func refuse(reason PunchFailure, msg string) *PunchResult {
	return &PunchResult{OK: false, Reason: reason, Message: msg}
}

func operatorBusyMessage(operator string, busy *domain.ProductionStageExecution) string {
	return fmt.Sprintf("%s is already working stage %s of job %s; punch out first (one stage at a time)",
		operator, busy.StageID, busy.JobID)
}
