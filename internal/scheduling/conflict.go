package scheduling

import (
	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

// ConflictValidator decides whether a candidate job fits on its machine. It
// is pure: the caller supplies the machine's existing jobs.
type ConflictValidator struct {
	params     *ParameterValidator
	changeover *ChangeoverCalculator
}

// NewConflictValidator wires the parameter and changeover checks in.
func NewConflictValidator(params *ParameterValidator, changeover *ChangeoverCalculator) *ConflictValidator {
	if params == nil {
		params = NewParameterValidator(nil)
	}
	if changeover == nil {
		changeover = NewChangeoverCalculator(DefaultChangeoverConfig(), params.Materials())
	}
	return &ConflictValidator{params: params, changeover: changeover}
}

// Validate checks candidate against existing jobs without a machine profile.
func (v *ConflictValidator) Validate(candidate *domain.Job, existing []*domain.Job) Result {
	return v.ValidateOnMachine(candidate, existing, nil)
}

// ValidateOnMachine checks candidate against existing jobs in one pass and
// applies the machine's build-hours limit when machine is given.
func (v *ConflictValidator) ValidateOnMachine(candidate *domain.Job, existing []*domain.Job, machine *domain.Machine) Result {
	var r Result
	window := candidate.Schedule()

	if !window.IsValid() {
		r.add(KindValidation, "scheduled end (%s) must be after scheduled start (%s)",
			candidate.ScheduledEnd.Format(timeLayout), candidate.ScheduledStart.Format(timeLayout))
		r.merge(v.params.Check(candidate))
		return r
	}

	if machine != nil && machine.MaxBuildHours > 0 && window.Hours() > machine.MaxBuildHours {
		r.add(KindValidation, "build time %.1fh exceeds machine %s maximum of %.1fh",
			window.Hours(), machine.MachineID, machine.MaxBuildHours)
	}

	var prior *domain.Job
	for _, job := range existing {
		if job == nil || job.JobID == candidate.JobID || job.Status == domain.JobStatusCancelled {
			continue
		}
		if candidate.MachineID != "" && job.MachineID != "" && job.MachineID != candidate.MachineID {
			continue
		}

		if window.Overlaps(job.Schedule()) {
			r.add(KindConflict, "conflicts with existing job %s (%s)", job.JobID, job.Schedule())
			continue
		}
		if !job.ScheduledEnd.After(candidate.ScheduledStart) && isLater(job, prior) {
			prior = job
		}
	}

	r.merge(v.params.Check(candidate))

	switch {
	case prior != nil:
		v.changeoverWarning(&r, machine, "job "+prior.JobID, prior.SlsMaterial, candidate.SlsMaterial)
	case machine != nil:
		v.changeoverWarning(&r, machine, "machine "+machine.MachineID, machine.CurrentMaterial, candidate.SlsMaterial)
	}

	if machine != nil && candidate.SlsMaterial != "" && !machine.Supports(candidate.SlsMaterial) {
		r.add(KindWarning, "machine %s does not list %s as a supported material", machine.MachineID, candidate.SlsMaterial)
	}

	return r
}

func (v *ConflictValidator) changeoverWarning(r *Result, machine *domain.Machine, after, from, to string) {
	if from == "" || to == "" || sameMaterial(from, to) {
		return
	}
	minutes := v.changeover.Minutes(machine, from, to)
	r.add(KindWarning, "powder changeover from %s to %s after %s requires %d minutes", from, to, after, minutes)
}

// isLater orders prior-job candidates by end, then start.
func isLater(job, current *domain.Job) bool {
	if current == nil {
		return true
	}
	if !job.ScheduledEnd.Equal(current.ScheduledEnd) {
		return job.ScheduledEnd.After(current.ScheduledEnd)
	}
	return job.ScheduledStart.After(current.ScheduledStart)
}

const timeLayout = "2006-01-02 15:04"
