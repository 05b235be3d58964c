package cli

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HenryGill4/OpCentrix-sub006/internal/application"
	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

// Plan is a machine fleet plus the jobs to place on it, read from YAML.
//
//	machines:
//	  - id: TI1
//	    currentMaterial: Ti-6Al-4V Grade 5
//	    supportedMaterials: [Ti-6Al-4V Grade 5, Inconel 718]
//	jobs:
//	  - id: J1
//	    machine: TI1
//	    start: 2025-03-10T08:00:00Z
//	    end: 2025-03-10T12:00:00Z
//	    parameters:
//	      slsMaterial: Ti-6Al-4V Grade 5
//	      laserPowerWatts: 200
type Plan struct {
	Machines []PlanMachine `yaml:"machines"`
	Jobs     []PlanJob     `yaml:"jobs"`
}

// PlanMachine is one machine of a plan
type PlanMachine struct {
	ID                   string                      `yaml:"id"`
	Name                 string                      `yaml:"name"`
	Type                 string                      `yaml:"type"`
	CurrentMaterial      string                      `yaml:"currentMaterial"`
	SupportedMaterials   []string                    `yaml:"supportedMaterials"`
	Priority             int                         `yaml:"priority"`
	Inactive             bool                        `yaml:"inactive"`
	MaxBuildHours        float64                     `yaml:"maxBuildHours"`
	OperatingCostPerHour float64                     `yaml:"operatingCostPerHour"`
	Changeover           *domain.ChangeoverDurations `yaml:"changeover"`
}

// PlanJob is one job of a plan. Status defaults to Scheduled.
type PlanJob struct {
	ID         string         `yaml:"id"`
	Machine    string         `yaml:"machine"`
	Part       string         `yaml:"part"`
	PartNumber string         `yaml:"partNumber"`
	Start      time.Time      `yaml:"start"`
	End        time.Time      `yaml:"end"`
	Status     string         `yaml:"status"`
	Quantity   int            `yaml:"quantity"`
	Priority   int            `yaml:"priority"`
	Parameters planParameters `yaml:"parameters"`
	Costs      planCosts      `yaml:"costs"`
}

// field order matches domain.SLSParameters so the two convert
type planParameters struct {
	LaserPowerWatts         float64 `yaml:"laserPowerWatts"`
	ScanSpeedMmPerSec       float64 `yaml:"scanSpeedMmPerSec"`
	LayerThicknessMicrons   float64 `yaml:"layerThicknessMicrons"`
	HatchSpacingMicrons     float64 `yaml:"hatchSpacingMicrons"`
	BuildTemperatureCelsius float64 `yaml:"buildTemperatureCelsius"`
	ArgonPurityPercent      float64 `yaml:"argonPurityPercent"`
	OxygenContentPpm        float64 `yaml:"oxygenContentPpm"`
	SlsMaterial             string  `yaml:"slsMaterial"`
}

// field order matches domain.CostInputs
type planCosts struct {
	LaborCostPerHour            float64 `yaml:"laborCostPerHour"`
	EstimatedPowderUsageKg      float64 `yaml:"estimatedPowderUsageKg"`
	MaterialCostPerKg           float64 `yaml:"materialCostPerKg"`
	MachineOperatingCostPerHour float64 `yaml:"machineOperatingCostPerHour"`
	ArgonCostPerHour            float64 `yaml:"argonCostPerHour"`
}

// LoadPlan reads and checks a plan file.
func LoadPlan(path string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return ParsePlan(raw)
}

// ParsePlan decodes a plan. Unknown keys are rejected so typos surface.
func ParsePlan(raw []byte) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, fmt.Errorf("plan is empty")
		}
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if err := p.check(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Plan) check() error {
	var problems []string

	machines := make(map[string]bool, len(p.Machines))
	for i, m := range p.Machines {
		switch {
		case strings.TrimSpace(m.ID) == "":
			problems = append(problems, fmt.Sprintf("machines[%d]: id is required", i))
		case machines[m.ID]:
			problems = append(problems, fmt.Sprintf("machines[%d]: duplicate id %q", i, m.ID))
		}
		machines[m.ID] = true
	}

	jobs := make(map[string]bool, len(p.Jobs))
	for i, j := range p.Jobs {
		switch {
		case strings.TrimSpace(j.ID) == "":
			problems = append(problems, fmt.Sprintf("jobs[%d]: id is required", i))
		case jobs[j.ID]:
			problems = append(problems, fmt.Sprintf("jobs[%d]: duplicate id %q", i, j.ID))
		}
		jobs[j.ID] = true
		if j.Start.IsZero() || j.End.IsZero() {
			problems = append(problems, fmt.Sprintf("jobs[%d]: start and end are required", i))
		}
		if j.Status != "" && !knownStatus(j.Status) {
			problems = append(problems, fmt.Sprintf("jobs[%d]: unknown status %q", i, j.Status))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid plan: %s", strings.Join(problems, "; "))
	}
	return nil
}

func knownStatus(s string) bool {
	switch domain.JobStatus(s) {
	case domain.JobStatusScheduled, domain.JobStatusInProgress, domain.JobStatusCompleted, domain.JobStatusCancelled:
		return true
	}
	return false
}

func (p *Plan) domainMachines() []*domain.Machine {
	out := make([]*domain.Machine, 0, len(p.Machines))
	for _, m := range p.Machines {
		supported := make([]domain.Material, 0, len(m.SupportedMaterials))
		for _, s := range m.SupportedMaterials {
			if mat, ok := domain.ParseMaterial(s); ok {
				supported = append(supported, mat)
			} else {
				supported = append(supported, domain.Material(s))
			}
		}
		out = append(out, &domain.Machine{
			MachineID:            m.ID,
			Name:                 m.Name,
			MachineType:          m.Type,
			CurrentMaterial:      m.CurrentMaterial,
			SupportedMaterials:   supported,
			Priority:             m.Priority,
			IsActive:             !m.Inactive,
			MaxBuildHours:        m.MaxBuildHours,
			OperatingCostPerHour: m.OperatingCostPerHour,
			Changeover:           m.Changeover,
		})
	}
	return out
}

func (p *Plan) domainJobs() []*domain.Job {
	out := make([]*domain.Job, 0, len(p.Jobs))
	for _, j := range p.Jobs {
		cmd := j.command()
		status := domain.JobStatus(j.Status)
		if status == "" {
			status = domain.JobStatusScheduled
		}
		quantity := cmd.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		out = append(out, &domain.Job{
			JobID:          cmd.JobID,
			MachineID:      cmd.MachineID,
			PartID:         cmd.PartID,
			PartNumber:     cmd.PartNumber,
			ScheduledStart: cmd.ScheduledStart,
			ScheduledEnd:   cmd.ScheduledEnd,
			Status:         status,
			Quantity:       quantity,
			Priority:       cmd.Priority,
			SLSParameters:  cmd.Parameters,
			CostInputs:     cmd.Costs,
		})
	}
	return out
}

func (j PlanJob) command() application.ScheduleJobCommand {
	return application.ScheduleJobCommand{
		JobID:          j.ID,
		MachineID:      j.Machine,
		PartID:         j.Part,
		PartNumber:     j.PartNumber,
		ScheduledStart: j.Start.UTC(),
		ScheduledEnd:   j.End.UTC(),
		Quantity:       j.Quantity,
		Priority:       j.Priority,
		Parameters:     domain.SLSParameters(j.Parameters),
		Costs:          domain.CostInputs(j.Costs),
	}
}

// span is the smallest window covering the plan's jobs, optionally for one
// machine. ok is false when no job matches.
func (p *Plan) span(machineID string) (w domain.TimeRange, ok bool) {
	for _, j := range p.Jobs {
		if machineID != "" && j.Machine != machineID {
			continue
		}
		if !ok || j.Start.Before(w.Start) {
			w.Start = j.Start.UTC()
		}
		if !ok || j.End.After(w.End) {
			w.End = j.End.UTC()
		}
		ok = true
	}
	return w, ok
}

// jobIDs returns the plan's job IDs in file order.
func (p *Plan) jobIDs() []string {
	ids := make([]string, 0, len(p.Jobs))
	for _, j := range p.Jobs {
		ids = append(ids, j.ID)
	}
	return ids
}
