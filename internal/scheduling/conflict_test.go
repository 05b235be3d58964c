package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

// TestConflictValidatorTI1Scenario tests the 09-13 job against 11-15 and 13-17 candidates
func TestConflictValidatorTI1Scenario(t *testing.T) {
	v := NewConflictValidator(nil, nil)
	existing := []*domain.Job{job("A", "TI1", 9, 13)}

	b := v.Validate(job("B", "TI1", 11, 15), existing)
	assert.False(t, b.OK())
	require.Len(t, b.Errors(), 1)
	assert.Contains(t, b.Errors()[0], "conflicts with existing job A")
	assert.Contains(t, b.Errors()[0], "2025-03-10 09:00 - 2025-03-10 13:00")
	assert.Equal(t, 1, b.Count(KindConflict))

	c := v.Validate(job("C", "TI1", 13, 17), existing)
	assert.True(t, c.OK())
	assert.Empty(t, c.Errors())
}

func TestConflictValidatorHalfOpenLaw(t *testing.T) {
	v := NewConflictValidator(nil, nil)

	for startA := 0; startA < 6; startA++ {
		for endA := startA + 1; endA <= 6; endA++ {
			for startB := 0; startB < 6; startB++ {
				for endB := startB + 1; endB <= 6; endB++ {
					a, b := job("A", "M", startA, endA), job("B", "M", startB, endB)
					want := startA < endB && startB < endA

					ab := v.Validate(a, []*domain.Job{b}).Count(KindConflict) > 0
					ba := v.Validate(b, []*domain.Job{a}).Count(KindConflict) > 0
					assert.Equal(t, want, ab, "A[%d,%d) B[%d,%d)", startA, endA, startB, endB)
					assert.Equal(t, ab, ba, "conflicts must be symmetric")
				}
			}
		}
	}
}

func TestConflictValidatorEdgeCases(t *testing.T) {
	v := NewConflictValidator(nil, nil)

	tests := []struct {
		name          string
		candidate     *domain.Job
		existing      []*domain.Job
		wantOK        bool
		wantConflicts int
		wantInvalid   bool
	}{
		{
			name:      "empty existing list",
			candidate: job("X", "TI1", 9, 10),
			wantOK:    true,
		},
		{
			name:        "zero-length range",
			candidate:   job("X", "TI1", 9, 9),
			existing:    []*domain.Job{job("A", "TI1", 8, 12)},
			wantInvalid: true,
		},
		{
			name:        "inverted range",
			candidate:   job("X", "TI1", 12, 9),
			existing:    []*domain.Job{job("A", "TI1", 8, 12)},
			wantInvalid: true,
		},
		{
			name:      "own id is skipped on edit",
			candidate: job("A", "TI1", 10, 14),
			existing:  []*domain.Job{job("A", "TI1", 9, 13)},
			wantOK:    true,
		},
		{
			name:      "cancelled jobs never conflict",
			candidate: job("X", "TI1", 10, 14),
			existing: func() []*domain.Job {
				j := job("A", "TI1", 9, 13)
				j.Status = domain.JobStatusCancelled
				return []*domain.Job{j}
			}(),
			wantOK: true,
		},
		{
			name:      "other machines are ignored",
			candidate: job("X", "TI1", 10, 14),
			existing:  []*domain.Job{job("A", "IN1", 9, 13)},
			wantOK:    true,
		},
		{
			name:          "one message per conflicting job",
			candidate:     job("X", "TI1", 8, 20),
			existing:      []*domain.Job{job("A", "TI1", 9, 10), job("B", "TI1", 11, 12), job("C", "TI1", 20, 22)},
			wantConflicts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := v.Validate(tt.candidate, tt.existing)

			assert.Equal(t, tt.wantConflicts, r.Count(KindConflict))
			if tt.wantInvalid {
				assert.False(t, r.OK())
				assert.Equal(t, 1, r.Count(KindValidation))
				assert.Zero(t, r.Count(KindConflict), "invalid ranges are not scanned for conflicts")
				return
			}
			assert.Equal(t, tt.wantOK, r.OK())
		})
	}
}

func TestConflictValidatorDelegatesParameterChecks(t *testing.T) {
	v := NewConflictValidator(nil, nil)

	candidate := job("X", "TI1", 9, 10)
	candidate.LaserPowerWatts = 0
	candidate.ScanSpeedMmPerSec = 5000

	r := v.Validate(candidate, nil)
	assert.False(t, r.OK())
	assert.Equal(t, 1, r.Count(KindValidation))
	require.Len(t, r.Warnings(), 1)
	assert.Contains(t, r.Warnings()[0], "Scan speed")
}

func TestConflictValidatorChangeoverWarning(t *testing.T) {
	v := NewConflictValidator(nil, nil)

	earlier := job("A", "TI1", 1, 3)
	earlier.SlsMaterial = string(domain.MaterialAlSi10Mg)
	latest := job("B", "TI1", 4, 8)
	latest.SlsMaterial = string(domain.MaterialInconel718)
	later := job("D", "TI1", 20, 22)
	later.SlsMaterial = string(domain.Material316L)

	candidate := job("C", "TI1", 9, 12)
	r := v.Validate(candidate, []*domain.Job{later, earlier, latest})

	assert.True(t, r.OK(), "a changeover is advisory")
	require.Len(t, r.Warnings(), 1)
	assert.Contains(t, r.Warnings()[0], "after job B")
	assert.Contains(t, r.Warnings()[0], "180 minutes")

	latest.SlsMaterial = candidate.SlsMaterial
	r = v.Validate(candidate, []*domain.Job{later, earlier, latest})
	assert.Empty(t, r.Warnings())
}

func TestConflictValidatorMachinePolicy(t *testing.T) {
	v := NewConflictValidator(nil, nil)
	machine := &domain.Machine{
		MachineID:          "TI1",
		CurrentMaterial:    string(domain.MaterialCPTiGrade2),
		SupportedMaterials: []domain.Material{domain.MaterialTi64Grade5, domain.MaterialCPTiGrade2},
		MaxBuildHours:      10,
	}

	r := v.ValidateOnMachine(job("X", "TI1", 0, 12), nil, machine)
	assert.False(t, r.OK())
	assert.Contains(t, r.Errors()[0], "exceeds machine TI1 maximum")
	require.Len(t, r.Warnings(), 1)
	assert.Contains(t, r.Warnings()[0], "after machine TI1 requires 45 minutes")

	unsupported := job("Y", "TI1", 0, 4)
	unsupported.SlsMaterial = string(domain.MaterialCPTiGrade2)
	unsupported.SLSParameters.LaserPowerWatts = 200
	r = v.ValidateOnMachine(unsupported, nil, &domain.Machine{MachineID: "TI1", SupportedMaterials: []domain.Material{domain.MaterialTi64Grade5}})
	assert.True(t, r.OK())
	assert.Contains(t, r.Warnings()[0], "does not list")
}
