package scheduling

import (
	"fmt"
	"strings"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

// UnknownMachinePolicy decides what a changeover lookup on an unknown machine
// returns.
type UnknownMachinePolicy string

const (
	UnknownMachineStrict     UnknownMachinePolicy = "strict"
	UnknownMachineUseDefault UnknownMachinePolicy = "default"
)

// ChangeoverConfig holds shop-wide changeover durations.
type ChangeoverConfig struct {
	Durations      domain.ChangeoverDurations
	UnknownMachine UnknownMachinePolicy
}

// DefaultChangeoverConfig returns the standard durations: 45 minutes inside a
// family, 180 across families, 120 when a material is unrecognized.
func DefaultChangeoverConfig() ChangeoverConfig {
	return ChangeoverConfig{
		Durations: domain.ChangeoverDurations{
			SameFamilyMinutes:  45,
			CrossFamilyMinutes: 180,
			DefaultMinutes:     120,
		},
		UnknownMachine: UnknownMachineStrict,
	}
}

// ChangeoverCalculator computes powder changeover minutes. It never touches
// machine state; PlanTransition returns the change for the caller to apply.
type ChangeoverCalculator struct {
	cfg       ChangeoverConfig
	materials domain.MaterialTable
}

// NewChangeoverCalculator creates a calculator.
func NewChangeoverCalculator(cfg ChangeoverConfig, materials domain.MaterialTable) *ChangeoverCalculator {
	if materials == nil {
		materials = domain.DefaultMaterialTable()
	}
	if cfg.UnknownMachine == "" {
		cfg.UnknownMachine = UnknownMachineStrict
	}
	return &ChangeoverCalculator{cfg: cfg, materials: materials}
}

// OptimalChangeoverMinutes returns the minutes needed to switch machineID
// from one material to another. machine is the caller's lookup of machineID;
// nil means unknown and is handled per the configured policy.
func (c *ChangeoverCalculator) OptimalChangeoverMinutes(machineID string, machine *domain.Machine, from, to string) (int, error) {
	if machine == nil && c.cfg.UnknownMachine != UnknownMachineUseDefault {
		if sameMaterial(from, to) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownMachine, machineID)
	}
	return c.Minutes(machine, from, to), nil
}

// Minutes computes the duration for an optional machine override.
func (c *ChangeoverCalculator) Minutes(machine *domain.Machine, from, to string) int {
	if sameMaterial(from, to) {
		return 0
	}

	d := c.cfg.Durations
	if machine != nil && machine.Changeover != nil {
		d = machine.Changeover.Merge(d)
	}

	fromFamily, okFrom := c.materials.Family(from)
	toFamily, okTo := c.materials.Family(to)

	var minutes int
	switch {
	case !okFrom || !okTo:
		minutes = d.DefaultMinutes
	case fromFamily == toFamily:
		minutes = d.SameFamilyMinutes
	default:
		minutes = d.CrossFamilyMinutes
	}
	if minutes < 0 {
		return 0
	}
	return minutes
}

// PlanTransition describes loading material `to` into machine. It is a no-op
// transition when the machine already holds that material.
func (c *ChangeoverCalculator) PlanTransition(machine *domain.Machine, to string) domain.MaterialTransition {
	t := domain.MaterialTransition{MachineID: machine.MachineID, From: machine.CurrentMaterial, To: strings.TrimSpace(to)}
	if sameMaterial(t.From, t.To) {
		t.To = t.From
		return t
	}
	t.Minutes = c.Minutes(machine, t.From, t.To)
	return t
}

func sameMaterial(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return true
	}
	ma, okA := domain.ParseMaterial(a)
	mb, okB := domain.ParseMaterial(b)
	return okA && okB && ma == mb
}
