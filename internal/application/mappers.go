package application

import (
	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/internal/scheduling"
)

// ToJobDTO converts a domain Job to a JobDTO
func ToJobDTO(job *domain.Job) *JobDTO {
	if job == nil {
		return nil
	}

	return &JobDTO{
		JobID:          job.JobID,
		MachineID:      job.MachineID,
		PartID:         job.PartID,
		PartNumber:     job.PartNumber,
		ScheduledStart: job.ScheduledStart,
		ScheduledEnd:   job.ScheduledEnd,
		ActualStart:    job.ActualStart,
		ActualEnd:      job.ActualEnd,
		Status:         string(job.Status),
		Quantity:       job.Quantity,
		Priority:       job.Priority,
		Parameters:     SLSParametersDTO(job.SLSParameters),
		Costs:          CostInputsDTO(job.CostInputs),
		DurationHours:  job.Schedule().Hours(),
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

// ToMachineDTO converts a domain Machine to a MachineDTO
func ToMachineDTO(machine *domain.Machine) *MachineDTO {
	if machine == nil {
		return nil
	}

	supported := make([]string, len(machine.SupportedMaterials))
	for i, m := range machine.SupportedMaterials {
		supported[i] = string(m)
	}

	return &MachineDTO{
		MachineID:            machine.MachineID,
		Name:                 machine.Name,
		MachineType:          machine.MachineType,
		CurrentMaterial:      machine.CurrentMaterial,
		SupportedMaterials:   supported,
		Priority:             machine.Priority,
		IsActive:             machine.IsActive,
		MaxBuildHours:        machine.MaxBuildHours,
		OperatingCostPerHour: machine.OperatingCostPerHour,
	}
}

// ToExecutionDTO converts a stage execution to an ExecutionDTO
func ToExecutionDTO(e *domain.ProductionStageExecution) *ExecutionDTO {
	if e == nil {
		return nil
	}

	dto := &ExecutionDTO{
		ExecutionID:    e.ExecutionID,
		JobID:          e.JobID,
		StageID:        e.StageID,
		OperatorName:   e.OperatorName,
		Status:         string(e.Status),
		StartDate:      e.StartDate,
		CompletionDate: e.CompletionDate,
		EstimatedHours: e.EstimatedHours,
		ActualHours:    e.ActualHours,
		Notes:          e.Notes,
		NeedsReview:    e.NeedsReview,
		ReviewReason:   e.ReviewReason,
	}
	if e.ActualHours != nil {
		variance := e.Variance()
		dto.VarianceHours = &variance
	}
	return dto
}

// ToValidationResultDTO converts a scheduling Result
func ToValidationResultDTO(r scheduling.Result) ValidationResultDTO {
	issues := r.Issues
	if issues == nil {
		issues = []scheduling.Issue{}
	}
	return ValidationResultDTO{
		OK:       r.OK(),
		Errors:   r.Errors(),
		Warnings: r.Warnings(),
		Issues:   issues,
	}
}

// toCandidate builds an unvalidated job from a command.
func (cmd ScheduleJobCommand) toCandidate() *domain.Job {
	quantity := cmd.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	return &domain.Job{
		JobID:          cmd.JobID,
		MachineID:      cmd.MachineID,
		PartID:         cmd.PartID,
		PartNumber:     cmd.PartNumber,
		ScheduledStart: cmd.ScheduledStart,
		ScheduledEnd:   cmd.ScheduledEnd,
		Status:         domain.JobStatusScheduled,
		Quantity:       quantity,
		Priority:       cmd.Priority,
		SLSParameters:  cmd.Parameters,
		CostInputs:     cmd.Costs,
	}
}
