package domain

import (
	"errors"
	"time"
)

var (
	ErrMachineNotFound = errors.New("machine not found")
	ErrUnknownMachine  = errors.New("unknown machine")
)

// ChangeoverDurations are the powder changeover times in minutes. Zero
// fields on a machine override fall back to the shop defaults.
type ChangeoverDurations struct {
	SameFamilyMinutes  int `bson:"sameFamilyMinutes" mapstructure:"same_family_minutes" yaml:"sameFamilyMinutes"`
	CrossFamilyMinutes int `bson:"crossFamilyMinutes" mapstructure:"cross_family_minutes" yaml:"crossFamilyMinutes"`
	DefaultMinutes     int `bson:"defaultMinutes" mapstructure:"default_minutes" yaml:"defaultMinutes"`
}

// Merge returns d with zero fields filled from fallback.
func (d ChangeoverDurations) Merge(fallback ChangeoverDurations) ChangeoverDurations {
	if d.SameFamilyMinutes <= 0 {
		d.SameFamilyMinutes = fallback.SameFamilyMinutes
	}
	if d.CrossFamilyMinutes <= 0 {
		d.CrossFamilyMinutes = fallback.CrossFamilyMinutes
	}
	if d.DefaultMinutes <= 0 {
		d.DefaultMinutes = fallback.DefaultMinutes
	}
	return d
}

// Machine is an SLS printer on the floor
type Machine struct {
	MachineID            string               `bson:"machineId"`
	Name                 string               `bson:"name"`
	MachineType          string               `bson:"machineType"`
	CurrentMaterial      string               `bson:"currentMaterial"`
	SupportedMaterials   []Material           `bson:"supportedMaterials"`
	Priority             int                  `bson:"priority"`
	IsActive             bool                 `bson:"isActive"`
	MaxBuildHours        float64              `bson:"maxBuildHours"`
	OperatingCostPerHour float64              `bson:"operatingCostPerHour"`
	Changeover           *ChangeoverDurations `bson:"changeover,omitempty"`
	UpdatedAt            time.Time            `bson:"updatedAt"`
}

// Supports reports whether the machine can run the named material. A machine
// with no supported list accepts any known material.
func (m *Machine) Supports(material string) bool {
	mat, ok := ParseMaterial(material)
	if !ok {
		return false
	}
	if len(m.SupportedMaterials) == 0 {
		return true
	}
	for _, s := range m.SupportedMaterials {
		if s == mat {
			return true
		}
	}
	return false
}

// MaterialTransition describes a change of the powder loaded in a machine.
// Calculators return it; only the repository applies it.
type MaterialTransition struct {
	MachineID string `json:"machineId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Minutes   int    `json:"minutes"`
}

// IsNoop reports a transition that changes nothing.
func (t MaterialTransition) IsNoop() bool {
	return t.From == t.To
}
