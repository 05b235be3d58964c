package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

func TestOptimalChangeoverMinutes(t *testing.T) {
	machines := map[string]*domain.Machine{
		"TI1": {MachineID: "TI1"},
		"IN1": {MachineID: "IN1", Changeover: &domain.ChangeoverDurations{CrossFamilyMinutes: 240}},
	}
	c := NewChangeoverCalculator(DefaultChangeoverConfig(), nil)

	tests := []struct {
		name    string
		machine string
		from    string
		to      string
		want    int
	}{
		{"same family", "TI1", "Ti-6Al-4V Grade 5", "CP-Ti Grade 2", 45},
		{"cross family", "TI1", "Ti-6Al-4V Grade 5", "Inconel 718", 180},
		{"stainless to aluminum", "TI1", "316L Stainless", "AlSi10Mg", 180},
		{"unknown material", "TI1", "Ti-6Al-4V Grade 5", "PEEK", 120},
		{"both unknown but different", "TI1", "PA11", "PA12", 120},
		{"machine override", "IN1", "Inconel 718", "316L Stainless", 240},
		{"machine override keeps other defaults", "IN1", "Inconel 718", "Inconel 625", 45},
		{"case and space insensitive identity", "TI1", " inconel 718", "Inconel 718", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.OptimalChangeoverMinutes(tt.machine, machines[tt.machine], tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChangeoverIdentity(t *testing.T) {
	c := NewChangeoverCalculator(DefaultChangeoverConfig(), nil)
	ti1 := &domain.Machine{MachineID: "TI1"}

	materials := append([]string{"", "PEEK"}, func() []string {
		var out []string
		for _, m := range domain.AllMaterials() {
			out = append(out, string(m))
		}
		return out
	}()...)

	for _, m := range materials {
		got, err := c.OptimalChangeoverMinutes("TI1", ti1, m, m)
		require.NoError(t, err)
		assert.Zero(t, got, m)

		got, err = c.OptimalChangeoverMinutes("UNKNOWN", nil, m, m)
		require.NoError(t, err)
		assert.Zero(t, got, m)
	}
}

func TestChangeoverUnknownMachinePolicy(t *testing.T) {
	strict := NewChangeoverCalculator(DefaultChangeoverConfig(), nil)
	_, err := strict.OptimalChangeoverMinutes("NOPE", nil, "Ti-6Al-4V Grade 5", "Inconel 718")
	assert.ErrorIs(t, err, domain.ErrUnknownMachine)

	cfg := DefaultChangeoverConfig()
	cfg.UnknownMachine = UnknownMachineUseDefault
	lenient := NewChangeoverCalculator(cfg, nil)
	got, err := lenient.OptimalChangeoverMinutes("NOPE", nil, "Ti-6Al-4V Grade 5", "Inconel 718")
	require.NoError(t, err)
	assert.Equal(t, 180, got)

	got, err = strict.OptimalChangeoverMinutes("NOPE", &domain.Machine{MachineID: "NOPE"}, "Ti-6Al-4V Grade 5", "Inconel 718")
	require.NoError(t, err)
	assert.Equal(t, 180, got)
}

func TestChangeoverNeverNegative(t *testing.T) {
	cfg := ChangeoverConfig{Durations: domain.ChangeoverDurations{SameFamilyMinutes: -10, CrossFamilyMinutes: -1, DefaultMinutes: -5}}
	c := NewChangeoverCalculator(cfg, nil)
	ti1 := &domain.Machine{MachineID: "TI1"}

	for _, to := range []string{"CP-Ti Grade 2", "Inconel 718", "PEEK"} {
		got, err := c.OptimalChangeoverMinutes("TI1", ti1, "Ti-6Al-4V Grade 5", to)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, 0)
	}
}

func TestPlanTransitionDoesNotMutateMachine(t *testing.T) {
	c := NewChangeoverCalculator(DefaultChangeoverConfig(), nil)
	machine := &domain.Machine{MachineID: "TI1", CurrentMaterial: "Ti-6Al-4V Grade 5"}

	tr := c.PlanTransition(machine, "Inconel 718")
	assert.Equal(t, domain.MaterialTransition{MachineID: "TI1", From: "Ti-6Al-4V Grade 5", To: "Inconel 718", Minutes: 180}, tr)
	assert.False(t, tr.IsNoop())
	assert.Equal(t, "Ti-6Al-4V Grade 5", machine.CurrentMaterial)

	same := c.PlanTransition(machine, "ti-6al-4v grade 5")
	assert.True(t, same.IsNoop())
	assert.Zero(t, same.Minutes)
}
