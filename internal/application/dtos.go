package application

import (
	"time"

	"github.com/HenryGill4/OpCentrix-sub006/internal/scheduling"
)

// JobDTO represents a job in responses
type JobDTO struct {
	JobID          string           `json:"jobId"`
	MachineID      string           `json:"machineId"`
	PartID         string           `json:"partId"`
	PartNumber     string           `json:"partNumber,omitempty"`
	ScheduledStart time.Time        `json:"scheduledStart"`
	ScheduledEnd   time.Time        `json:"scheduledEnd"`
	ActualStart    *time.Time       `json:"actualStart,omitempty"`
	ActualEnd      *time.Time       `json:"actualEnd,omitempty"`
	Status         string           `json:"status"`
	Quantity       int              `json:"quantity"`
	Priority       int              `json:"priority"`
	Parameters     SLSParametersDTO `json:"slsParameters"`
	Costs          CostInputsDTO    `json:"costInputs"`
	DurationHours  float64          `json:"durationHours"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// SLSParametersDTO represents the process parameters of a job
type SLSParametersDTO struct {
	LaserPowerWatts         float64 `json:"laserPowerWatts"`
	ScanSpeedMmPerSec       float64 `json:"scanSpeedMmPerSec"`
	LayerThicknessMicrons   float64 `json:"layerThicknessMicrons"`
	HatchSpacingMicrons     float64 `json:"hatchSpacingMicrons"`
	BuildTemperatureCelsius float64 `json:"buildTemperatureCelsius"`
	ArgonPurityPercent      float64 `json:"argonPurityPercent"`
	OxygenContentPpm        float64 `json:"oxygenContentPpm"`
	SlsMaterial             string  `json:"slsMaterial"`
}

// CostInputsDTO represents the cost inputs of a job
type CostInputsDTO struct {
	LaborCostPerHour            float64 `json:"laborCostPerHour"`
	EstimatedPowderUsageKg      float64 `json:"estimatedPowderUsageKg"`
	MaterialCostPerKg           float64 `json:"materialCostPerKg"`
	MachineOperatingCostPerHour float64 `json:"machineOperatingCostPerHour"`
	ArgonCostPerHour            float64 `json:"argonCostPerHour"`
}

// MachineDTO represents a machine in responses
type MachineDTO struct {
	MachineID            string   `json:"machineId"`
	Name                 string   `json:"name"`
	MachineType          string   `json:"machineType"`
	CurrentMaterial      string   `json:"currentMaterial"`
	SupportedMaterials   []string `json:"supportedMaterials"`
	Priority             int      `json:"priority"`
	IsActive             bool     `json:"isActive"`
	MaxBuildHours        float64  `json:"maxBuildHours,omitempty"`
	OperatingCostPerHour float64  `json:"operatingCostPerHour,omitempty"`
}

// ExecutionDTO represents a stage execution in responses
type ExecutionDTO struct {
	ExecutionID    string     `json:"executionId"`
	JobID          string     `json:"jobId"`
	StageID        string     `json:"stageId"`
	OperatorName   string     `json:"operatorName"`
	Status         string     `json:"status"`
	StartDate      time.Time  `json:"startDate"`
	CompletionDate *time.Time `json:"completionDate,omitempty"`
	EstimatedHours float64    `json:"estimatedHours"`
	ActualHours    *float64   `json:"actualHours,omitempty"`
	VarianceHours  *float64   `json:"varianceHours,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	NeedsReview    bool       `json:"needsReview"`
	ReviewReason   string     `json:"reviewReason,omitempty"`
}

// PunchFailure names why a punch was refused.
type PunchFailure string

const (
	PunchInvalid      PunchFailure = "invalid_request"
	PunchNotFound     PunchFailure = "not_found"
	PunchJobClosed    PunchFailure = "job_closed"
	PunchStageActive  PunchFailure = "stage_active"
	PunchOperatorBusy PunchFailure = "operator_busy"
	PunchNotActive    PunchFailure = "not_active"
)

// PunchResult is the outcome of a punch-in or punch-out. Refusals are
// results, not errors.
type PunchResult struct {
	OK           bool          `json:"ok"`
	Message      string        `json:"message"`
	Reason       PunchFailure  `json:"reason,omitempty"`
	Execution    *ExecutionDTO `json:"execution,omitempty"`
	JobStatus    string        `json:"jobStatus,omitempty"`
	JobCompleted bool          `json:"jobCompleted,omitempty"`
	NextStageID  string        `json:"nextStageId,omitempty"`
}

// ValidationResultDTO is the outcome of validating a candidate job
type ValidationResultDTO struct {
	OK       bool               `json:"ok"`
	Errors   []string           `json:"errors"`
	Warnings []string           `json:"warnings"`
	Issues   []scheduling.Issue `json:"issues"`
}

// HasConflicts reports whether any issue is an overlap with another job.
func (v *ValidationResultDTO) HasConflicts() bool {
	for _, i := range v.Issues {
		if i.Kind == scheduling.KindConflict {
			return true
		}
	}
	return false
}

// ScheduleJobResult is returned by ScheduleJob. Job is set only when the
// candidate passed validation and was stored.
type ScheduleJobResult struct {
	Validation ValidationResultDTO `json:"validation"`
	Job        *JobDTO             `json:"job,omitempty"`
}

// MachineRowDTO is the rendered row of one machine
type MachineRowDTO struct {
	MachineID   string      `json:"machineId"`
	From        time.Time   `json:"from"`
	To          time.Time   `json:"to"`
	MaxLayers   int         `json:"maxLayers"`
	RowHeightPx int         `json:"rowHeightPx"`
	Jobs        []RowJobDTO `json:"jobs"`
}

// RowJobDTO is a job placed on a layer of a machine row
type RowJobDTO struct {
	JobID          string    `json:"jobId"`
	PartNumber     string    `json:"partNumber,omitempty"`
	Status         string    `json:"status"`
	SlsMaterial    string    `json:"slsMaterial,omitempty"`
	ScheduledStart time.Time `json:"scheduledStart"`
	ScheduledEnd   time.Time `json:"scheduledEnd"`
	Layer          int       `json:"layer"`
}

// ChangeoverDTO is a changeover calculation
type ChangeoverDTO struct {
	MachineID    string `json:"machineId"`
	FromMaterial string `json:"fromMaterial"`
	ToMaterial   string `json:"toMaterial"`
	Minutes      int    `json:"minutes"`
}

// CostEstimateDTO is a cost estimate with its itemization
type CostEstimateDTO struct {
	JobID             string                   `json:"jobId"`
	Total             string                   `json:"total"`
	ChangeoverMinutes int                      `json:"changeoverMinutes"`
	Breakdown         scheduling.CostBreakdown `json:"breakdown"`
}

// CompatibilityDTO reports whether a job can run on its machine
type CompatibilityDTO struct {
	JobID      string   `json:"jobId"`
	MachineID  string   `json:"machineId"`
	Compatible bool     `json:"compatible"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
}
