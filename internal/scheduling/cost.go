package scheduling

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

var ErrEstimatorNotConfigured = errors.New("cost estimator not configured")

var (
	secondsPerHour = decimal.NewFromInt(3600)
	minutesPerHour = decimal.NewFromInt(60)
)

// CostConfig tunes the estimator.
type CostConfig struct {
	// UseMaterialPrice prices powder from the material table when the job
	// carries no MaterialCostPerKg.
	UseMaterialPrice bool
	// Places is the rounding applied to totals.
	Places int32
}

// DefaultCostConfig returns the standard estimator settings.
func DefaultCostConfig() CostConfig {
	return CostConfig{UseMaterialPrice: true, Places: 2}
}

// CostBreakdown itemizes an estimate.
type CostBreakdown struct {
	DurationHours decimal.Decimal `json:"durationHours"`
	Material      decimal.Decimal `json:"material"`
	Labor         decimal.Decimal `json:"labor"`
	Machine       decimal.Decimal `json:"machine"`
	Argon         decimal.Decimal `json:"argon"`
	Changeover    decimal.Decimal `json:"changeover"`
	Total         decimal.Decimal `json:"total"`
}

// CostEstimator prices a job from its material, labor, machine and argon
// inputs. Missing or non-positive inputs contribute nothing.
type CostEstimator struct {
	cfg       CostConfig
	materials domain.MaterialTable
}

// NewCostEstimator creates an estimator. A nil table uses the defaults.
func NewCostEstimator(cfg CostConfig, materials domain.MaterialTable) *CostEstimator {
	if materials == nil {
		materials = domain.DefaultMaterialTable()
	}
	return &CostEstimator{cfg: cfg, materials: materials}
}

// Estimate returns the total cost of the job. The result is never negative.
func (e *CostEstimator) Estimate(job *domain.Job) (decimal.Decimal, error) {
	if e == nil {
		return decimal.Zero, ErrEstimatorNotConfigured
	}
	return e.Breakdown(job, 0).Total, nil
}

// Breakdown itemizes the estimate. Changeover minutes are billed at the labor
// plus machine hourly rate.
func (e *CostEstimator) Breakdown(job *domain.Job, changeoverMinutes int) CostBreakdown {
	hours := durationHours(job.Schedule())
	in := job.CostInputs

	pricePerKg := positive(in.MaterialCostPerKg)
	if pricePerKg.IsZero() && e.cfg.UseMaterialPrice {
		if _, profile, ok := e.materials.Lookup(job.SlsMaterial); ok {
			pricePerKg = positive(profile.PowderCostPerKg)
		}
	}

	labor := positive(in.LaborCostPerHour)
	machine := positive(in.MachineOperatingCostPerHour)
	argon := positive(in.ArgonCostPerHour)

	b := CostBreakdown{
		DurationHours: hours,
		Material:      positive(in.EstimatedPowderUsageKg).Mul(pricePerKg),
		Labor:         labor.Mul(hours),
		Machine:       machine.Mul(hours),
		Argon:         argon.Mul(hours),
		Changeover:    decimal.Zero,
	}
	if changeoverMinutes > 0 {
		b.Changeover = labor.Add(machine).Mul(decimal.NewFromInt(int64(changeoverMinutes))).Div(minutesPerHour)
	}

	b.Total = b.Material.Add(b.Labor).Add(b.Machine).Add(b.Argon).Add(b.Changeover)
	if e.cfg.Places > 0 {
		b.Material = b.Material.Round(e.cfg.Places)
		b.Labor = b.Labor.Round(e.cfg.Places)
		b.Machine = b.Machine.Round(e.cfg.Places)
		b.Argon = b.Argon.Round(e.cfg.Places)
		b.Changeover = b.Changeover.Round(e.cfg.Places)
		b.Total = b.Total.Round(e.cfg.Places)
	}
	return b
}

func durationHours(r domain.TimeRange) decimal.Decimal {
	if !r.IsValid() {
		return decimal.Zero
	}
	seconds := int64(r.Duration() / time.Second)
	return decimal.NewFromInt(seconds).Div(secondsPerHour)
}

func positive(v float64) decimal.Decimal {
	if v <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
