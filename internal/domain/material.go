package domain

import (
	"sort"
	"strings"
)

// Material is the closed set of powders the SLS machines run.
type Material string

const (
	MaterialTi64Grade5     Material = "Ti-6Al-4V Grade 5"
	MaterialTi64ELIGrade23 Material = "Ti-6Al-4V ELI Grade 23"
	MaterialCPTiGrade2     Material = "CP-Ti Grade 2"
	MaterialInconel718     Material = "Inconel 718"
	MaterialInconel625     Material = "Inconel 625"
	Material316L           Material = "316L Stainless"
	Material17_4PH         Material = "17-4PH Stainless"
	MaterialAlSi10Mg       Material = "AlSi10Mg"
)

// MaterialFamily groups materials that share powder handling. Changeovers
// within a family are shorter than across families.
type MaterialFamily string

const (
	FamilyTitanium         MaterialFamily = "titanium"
	FamilyNickelSuperalloy MaterialFamily = "nickel-superalloy"
	FamilyStainlessSteel   MaterialFamily = "stainless-steel"
	FamilyAluminum         MaterialFamily = "aluminum"
)

// AllMaterials lists every known material in a stable order.
func AllMaterials() []Material {
	return []Material{
		MaterialTi64Grade5,
		MaterialTi64ELIGrade23,
		MaterialCPTiGrade2,
		MaterialInconel718,
		MaterialInconel625,
		Material316L,
		Material17_4PH,
		MaterialAlSi10Mg,
	}
}

// ParseMaterial resolves a material name, ignoring case and surrounding space.
func ParseMaterial(s string) (Material, bool) {
	s = strings.TrimSpace(s)
	for _, m := range AllMaterials() {
		if strings.EqualFold(string(m), s) {
			return m, true
		}
	}
	return "", false
}

// Window is an inclusive acceptable range. A zero bound is open.
type Window struct {
	Min float64 `mapstructure:"min" yaml:"min"`
	Max float64 `mapstructure:"max" yaml:"max"`
}

// Contains reports Min <= v <= Max, treating zero bounds as unbounded.
func (w Window) Contains(v float64) bool {
	if w.Min != 0 && v < w.Min {
		return false
	}
	if w.Max != 0 && v > w.Max {
		return false
	}
	return true
}

// IsZero reports an unset window.
func (w Window) IsZero() bool {
	return w.Min == 0 && w.Max == 0
}

// MaterialProfile holds the process window and cost data of one powder.
type MaterialProfile struct {
	Family                MaterialFamily
	LaserPowerWatts       Window
	ScanSpeedMmPerSec     Window
	LayerThicknessMicrons Window
	HatchSpacingMicrons   Window
	BuildTemperatureC     Window
	MinArgonPurityPercent float64
	MaxOxygenContentPpm   float64
	PowderCostPerKg       float64
}

// MaterialTable is the typed lookup from material to profile.
type MaterialTable map[Material]MaterialProfile

// Lookup resolves a material name to its enum value and profile.
func (t MaterialTable) Lookup(name string) (Material, MaterialProfile, bool) {
	m, ok := ParseMaterial(name)
	if !ok {
		return "", MaterialProfile{}, false
	}
	p, ok := t[m]
	return m, p, ok
}

// Family returns the family of a material name.
func (t MaterialTable) Family(name string) (MaterialFamily, bool) {
	_, p, ok := t.Lookup(name)
	if !ok {
		return "", false
	}
	return p.Family, true
}

// Materials returns the table's materials sorted by name.
func (t MaterialTable) Materials() []Material {
	out := make([]Material, 0, len(t))
	for m := range t {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a copy safe to modify.
func (t MaterialTable) Clone() MaterialTable {
	out := make(MaterialTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// DefaultMaterialTable returns the shop's standard process windows.
func DefaultMaterialTable() MaterialTable {
	return MaterialTable{
		MaterialTi64Grade5: {
			Family:                FamilyTitanium,
			LaserPowerWatts:       Window{Min: 150, Max: 400},
			ScanSpeedMmPerSec:     Window{Min: 800, Max: 1400},
			LayerThicknessMicrons: Window{Min: 20, Max: 60},
			HatchSpacingMicrons:   Window{Min: 80, Max: 140},
			BuildTemperatureC:     Window{Min: 35, Max: 200},
			MinArgonPurityPercent: 99.9,
			MaxOxygenContentPpm:   1000,
			PowderCostPerKg:       350,
		},
		MaterialTi64ELIGrade23: {
			Family:                FamilyTitanium,
			LaserPowerWatts:       Window{Min: 150, Max: 380},
			ScanSpeedMmPerSec:     Window{Min: 800, Max: 1300},
			LayerThicknessMicrons: Window{Min: 20, Max: 50},
			HatchSpacingMicrons:   Window{Min: 80, Max: 130},
			BuildTemperatureC:     Window{Min: 35, Max: 200},
			MinArgonPurityPercent: 99.95,
			MaxOxygenContentPpm:   800,
			PowderCostPerKg:       420,
		},
		MaterialCPTiGrade2: {
			Family:                FamilyTitanium,
			LaserPowerWatts:       Window{Min: 120, Max: 300},
			ScanSpeedMmPerSec:     Window{Min: 700, Max: 1300},
			LayerThicknessMicrons: Window{Min: 20, Max: 60},
			HatchSpacingMicrons:   Window{Min: 80, Max: 140},
			BuildTemperatureC:     Window{Min: 35, Max: 200},
			MinArgonPurityPercent: 99.9,
			MaxOxygenContentPpm:   1000,
			PowderCostPerKg:       300,
		},
		MaterialInconel718: {
			Family:                FamilyNickelSuperalloy,
			LaserPowerWatts:       Window{Min: 180, Max: 400},
			ScanSpeedMmPerSec:     Window{Min: 700, Max: 1200},
			LayerThicknessMicrons: Window{Min: 30, Max: 60},
			HatchSpacingMicrons:   Window{Min: 90, Max: 130},
			BuildTemperatureC:     Window{Min: 35, Max: 100},
			MinArgonPurityPercent: 99.5,
			MaxOxygenContentPpm:   1500,
			PowderCostPerKg:       90,
		},
		MaterialInconel625: {
			Family:                FamilyNickelSuperalloy,
			LaserPowerWatts:       Window{Min: 180, Max: 380},
			ScanSpeedMmPerSec:     Window{Min: 600, Max: 1100},
			LayerThicknessMicrons: Window{Min: 30, Max: 60},
			HatchSpacingMicrons:   Window{Min: 90, Max: 130},
			BuildTemperatureC:     Window{Min: 35, Max: 100},
			MinArgonPurityPercent: 99.5,
			MaxOxygenContentPpm:   1500,
			PowderCostPerKg:       110,
		},
		Material316L: {
			Family:                FamilyStainlessSteel,
			LaserPowerWatts:       Window{Min: 150, Max: 400},
			ScanSpeedMmPerSec:     Window{Min: 600, Max: 1200},
			LayerThicknessMicrons: Window{Min: 20, Max: 50},
			HatchSpacingMicrons:   Window{Min: 80, Max: 120},
			BuildTemperatureC:     Window{Min: 35, Max: 100},
			MinArgonPurityPercent: 99.5,
			MaxOxygenContentPpm:   2000,
			PowderCostPerKg:       40,
		},
		Material17_4PH: {
			Family:                FamilyStainlessSteel,
			LaserPowerWatts:       Window{Min: 150, Max: 400},
			ScanSpeedMmPerSec:     Window{Min: 600, Max: 1200},
			LayerThicknessMicrons: Window{Min: 20, Max: 50},
			HatchSpacingMicrons:   Window{Min: 80, Max: 120},
			BuildTemperatureC:     Window{Min: 35, Max: 100},
			MinArgonPurityPercent: 99.5,
			MaxOxygenContentPpm:   2000,
			PowderCostPerKg:       45,
		},
		MaterialAlSi10Mg: {
			Family:                FamilyAluminum,
			LaserPowerWatts:       Window{Min: 300, Max: 400},
			ScanSpeedMmPerSec:     Window{Min: 1000, Max: 1600},
			LayerThicknessMicrons: Window{Min: 30, Max: 60},
			HatchSpacingMicrons:   Window{Min: 130, Max: 190},
			BuildTemperatureC:     Window{Min: 150, Max: 200},
			MinArgonPurityPercent: 99.9,
			MaxOxygenContentPpm:   1000,
			PowderCostPerKg:       60,
		},
	}
}
