package scheduling

import (
	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

// ParameterValidator checks SLS process parameters. The zero/negative checks
// are hard errors; values outside a material's window are warnings only.
type ParameterValidator struct {
	materials domain.MaterialTable
}

// NewParameterValidator creates a validator over a material table. A nil
// table uses the compiled defaults.
func NewParameterValidator(materials domain.MaterialTable) *ParameterValidator {
	if materials == nil {
		materials = domain.DefaultMaterialTable()
	}
	return &ParameterValidator{materials: materials}
}

// ValidateParameters returns the hard errors only. Every check runs.
func (v *ParameterValidator) ValidateParameters(job *domain.Job) []string {
	var r Result
	r.merge(v.Check(job))
	return r.Errors()
}

// Check returns hard errors and window warnings.
func (v *ParameterValidator) Check(job *domain.Job) []Issue {
	var r Result
	p := job.SLSParameters

	if p.LaserPowerWatts <= 0 {
		r.add(KindValidation, "Laser power must be greater than 0 W (got %g)", p.LaserPowerWatts)
	}
	if p.ScanSpeedMmPerSec <= 0 {
		r.add(KindValidation, "Scan speed must be greater than 0 mm/s (got %g)", p.ScanSpeedMmPerSec)
	}
	if p.LayerThicknessMicrons <= 0 {
		r.add(KindValidation, "Layer thickness must be greater than 0 µm (got %g)", p.LayerThicknessMicrons)
	}
	// zero hatch spacing means the material default
	if p.HatchSpacingMicrons < 0 {
		r.add(KindValidation, "Hatch spacing cannot be negative (got %g)", p.HatchSpacingMicrons)
	}

	if p.SlsMaterial == "" {
		r.add(KindWarning, "No SLS material set; material windows not checked")
		return r.Issues
	}
	material, profile, ok := v.materials.Lookup(p.SlsMaterial)
	if !ok {
		r.add(KindWarning, "Unknown SLS material %q; material windows not checked", p.SlsMaterial)
		return r.Issues
	}

	outside := func(label string, value float64, w domain.Window, unit string) {
		if value > 0 && !w.IsZero() && !w.Contains(value) {
			r.add(KindWarning, "%s %g%s is outside the %s window (%g-%g%s)",
				label, value, unit, material, w.Min, w.Max, unit)
		}
	}
	outside("Laser power", p.LaserPowerWatts, profile.LaserPowerWatts, " W")
	outside("Scan speed", p.ScanSpeedMmPerSec, profile.ScanSpeedMmPerSec, " mm/s")
	outside("Layer thickness", p.LayerThicknessMicrons, profile.LayerThicknessMicrons, " µm")
	outside("Hatch spacing", p.HatchSpacingMicrons, profile.HatchSpacingMicrons, " µm")
	outside("Build temperature", p.BuildTemperatureCelsius, profile.BuildTemperatureC, " °C")

	if p.ArgonPurityPercent > 0 && profile.MinArgonPurityPercent > 0 && p.ArgonPurityPercent < profile.MinArgonPurityPercent {
		r.add(KindWarning, "Argon purity %g%% is below the %g%% minimum for %s",
			p.ArgonPurityPercent, profile.MinArgonPurityPercent, material)
	}
	if p.OxygenContentPpm > 0 && profile.MaxOxygenContentPpm > 0 && p.OxygenContentPpm > profile.MaxOxygenContentPpm {
		r.add(KindWarning, "Oxygen content %g ppm exceeds the %g ppm maximum for %s",
			p.OxygenContentPpm, profile.MaxOxygenContentPpm, material)
	}

	return r.Issues
}

// IsCompatible reports whether the job can run on the machine: no hard
// parameter errors, a known material, and a machine that supports it.
func (v *ParameterValidator) IsCompatible(job *domain.Job, machine *domain.Machine) bool {
	if job == nil || machine == nil {
		return false
	}
	if len(v.ValidateParameters(job)) > 0 {
		return false
	}
	if _, _, ok := v.materials.Lookup(job.SlsMaterial); !ok {
		return false
	}
	return machine.Supports(job.SlsMaterial)
}

// Materials exposes the table the validator checks against.
func (v *ParameterValidator) Materials() domain.MaterialTable {
	return v.materials
}
