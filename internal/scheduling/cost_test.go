package scheduling

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

func TestCostEstimatorEstimate(t *testing.T) {
	e := NewCostEstimator(DefaultCostConfig(), nil)

	tests := []struct {
		name   string
		inputs domain.CostInputs
		start  int
		end    int
		want   string
	}{
		{
			name:  "all zero inputs",
			start: 9, end: 13,
			want: "0",
		},
		{
			name:   "labor only",
			inputs: domain.CostInputs{LaborCostPerHour: 50},
			start:  9, end: 13,
			want: "200",
		},
		{
			name: "every term",
			inputs: domain.CostInputs{
				LaborCostPerHour:            50,
				EstimatedPowderUsageKg:      2.5,
				MaterialCostPerKg:           400,
				MachineOperatingCostPerHour: 75,
				ArgonCostPerHour:            12.5,
			},
			start: 0, end: 10,
			// 2.5*400 + (50+75+12.5)*10
			want: "2375",
		},
		{
			name:   "powder priced from material table",
			inputs: domain.CostInputs{EstimatedPowderUsageKg: 2},
			start:  9, end: 13,
			want: "700",
		},
		{
			name:   "negative inputs contribute nothing",
			inputs: domain.CostInputs{LaborCostPerHour: -50, ArgonCostPerHour: 10},
			start:  9, end: 13,
			want: "40",
		},
		{
			name:   "inverted range has no duration",
			inputs: domain.CostInputs{LaborCostPerHour: 50, EstimatedPowderUsageKg: 1, MaterialCostPerKg: 100},
			start:  13, end: 9,
			want: "100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := job("X", "TI1", tt.start, tt.end)
			j.CostInputs = tt.inputs

			got, err := e.Estimate(j)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
			assert.False(t, got.IsNegative())
		})
	}
}

func TestCostEstimatorAllZeroIsExactlyZero(t *testing.T) {
	e := NewCostEstimator(CostConfig{}, nil)
	j := job("X", "TI1", 9, 13)
	j.SlsMaterial = ""

	got, err := e.Estimate(j)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestCostEstimatorNilEstimator(t *testing.T) {
	var e *CostEstimator
	got, err := e.Estimate(job("X", "TI1", 9, 13))
	assert.ErrorIs(t, err, ErrEstimatorNotConfigured)
	assert.True(t, got.IsZero())
}

func TestCostBreakdown(t *testing.T) {
	e := NewCostEstimator(DefaultCostConfig(), nil)
	j := job("X", "TI1", 9, 12)
	j.CostInputs = domain.CostInputs{
		LaborCostPerHour:            40,
		MachineOperatingCostPerHour: 80,
		EstimatedPowderUsageKg:      1,
		MaterialCostPerKg:           300,
	}

	b := e.Breakdown(j, 45)
	assert.Equal(t, "3", b.DurationHours.String())
	assert.Equal(t, "300", b.Material.String())
	assert.Equal(t, "120", b.Labor.String())
	assert.Equal(t, "240", b.Machine.String())
	assert.True(t, b.Argon.IsZero())
	assert.Equal(t, "90", b.Changeover.String())
	assert.Equal(t, "750", b.Total.String())

	sum := b.Material.Add(b.Labor).Add(b.Machine).Add(b.Argon).Add(b.Changeover)
	assert.True(t, sum.Equal(b.Total))
}
