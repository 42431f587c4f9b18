package leave

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateValidation(t *testing.T) {
	f := newFixture(t)

	valid := LeaveType{
		Name:              TypePaternity,
		Abbreviation:      "PL",
		AnnualEntitlement: decimal.NewFromInt(10),
		AccrualMethod:     AccrualAnnualFrontload,
		RequiresApproval:  true,
		ApprovalLevels:    1,
		GenderEligibility: EligibilityMale,
	}

	tests := []struct {
		name   string
		mutate func(*LeaveType)
	}{
		{"unknown name", func(lt *LeaveType) { lt.Name = "garden_leave" }},
		{"missing abbreviation", func(lt *LeaveType) { lt.Abbreviation = " " }},
		{"duplicate abbreviation", func(lt *LeaveType) { lt.Abbreviation = "el" }},
		{"negative entitlement", func(lt *LeaveType) { lt.AnnualEntitlement = decimal.NewFromInt(-1) }},
		{"unknown accrual", func(lt *LeaveType) { lt.AccrualMethod = "weekly" }},
		{"unknown eligibility", func(lt *LeaveType) { lt.GenderEligibility = "other" }},
		{"zero approval levels", func(lt *LeaveType) { lt.ApprovalLevels = 0 }},
		{"too many approval levels", func(lt *LeaveType) { lt.ApprovalLevels = 4 }},
		{"negative advance notice", func(lt *LeaveType) { lt.MinDaysInAdvance = -1 }},
		{"negative consecutive cap", func(lt *LeaveType) { lt.MaxConsecutiveDays = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lt := valid
			tc.mutate(&lt)
			_, err := f.registry.Create(f.ctx, lt)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	id, err := f.registry.Create(f.ctx, valid)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestRegistryUpdateKeepsOwnAbbreviation(t *testing.T) {
	f := newFixture(t)

	lt := f.earned
	lt.AnnualEntitlement = decimal.NewFromInt(30)
	require.NoError(t, f.registry.Update(f.ctx, lt))

	got, err := f.registry.Get(f.ctx, lt.ID)
	require.NoError(t, err)
	assert.True(t, got.AnnualEntitlement.Equal(days(30)))

	// Taking another type's abbreviation is still a conflict.
	lt.Abbreviation = "CL"
	require.ErrorIs(t, f.registry.Update(f.ctx, lt), ErrValidation)

	lt.ID = ""
	require.ErrorIs(t, f.registry.Update(f.ctx, lt), ErrValidation)
}

func TestRegistryDeleteReportsReferences(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "emp-1", f.earned, 2026, 10)
	submitDays(f, t, "emp-1", f.earned, date(2026, time.June, 8), date(2026, time.June, 10))

	// One application plus one balance row still point at the type.
	refs, err := f.registry.Delete(f.ctx, f.earned.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, refs)

	_, err = f.registry.Get(f.ctx, f.earned.ID)
	require.ErrorIs(t, err, ErrNotFound)

	refs, err = f.registry.Delete(f.ctx, f.compOff.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, refs)
}

func TestRegistryGetByName(t *testing.T) {
	f := newFixture(t)

	lop, err := f.registry.GetByName(f.ctx, TypeLossOfPay)
	require.NoError(t, err)
	assert.Equal(t, f.lop.ID, lop.ID)

	_, err = f.registry.GetByName(f.ctx, TypeMaternity)
	require.ErrorIs(t, err, ErrNotFound)
}
