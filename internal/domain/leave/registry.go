package leave

import (
	"context"
	"strings"
)

// Registry is the catalog of leave categories and their policy parameters.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) List(ctx context.Context) ([]LeaveType, error) {
	return r.store.ListTypes(ctx)
}

func (r *Registry) Get(ctx context.Context, id string) (LeaveType, error) {
	return r.store.GetType(ctx, id)
}

func (r *Registry) GetByName(ctx context.Context, name TypeName) (LeaveType, error) {
	return r.store.GetTypeByName(ctx, name)
}

func (r *Registry) Create(ctx context.Context, t LeaveType) (string, error) {
	if err := r.validate(ctx, t, ""); err != nil {
		return "", err
	}
	return r.store.CreateType(ctx, t)
}

func (r *Registry) Update(ctx context.Context, t LeaveType) error {
	if t.ID == "" {
		return validationErr("leave type id required")
	}
	if err := r.validate(ctx, t, t.ID); err != nil {
		return err
	}
	return r.store.UpdateType(ctx, t)
}

// Delete removes a type and reports how many balances and applications still
// reference it. A non-zero count is a warning for the caller, not an error:
// historical rows keep their type id.
func (r *Registry) Delete(ctx context.Context, id string) (int, error) {
	refs, err := r.store.CountTypeReferences(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := r.store.DeleteType(ctx, id); err != nil {
		return 0, err
	}
	return refs, nil
}

func (r *Registry) validate(ctx context.Context, t LeaveType, selfID string) error {
	if !t.Name.Valid() {
		return validationErr("unknown leave type name %q", t.Name)
	}
	if strings.TrimSpace(t.Abbreviation) == "" {
		return validationErr("abbreviation required")
	}
	if t.AnnualEntitlement.Sign() < 0 {
		return validationErr("annual entitlement must be >= 0")
	}
	if !t.AccrualMethod.Valid() {
		return validationErr("unknown accrual method %q", t.AccrualMethod)
	}
	if !t.GenderEligibility.Valid() {
		return validationErr("unknown gender eligibility %q", t.GenderEligibility)
	}
	if t.RequiresApproval && (t.ApprovalLevels < 1 || t.ApprovalLevels > 3) {
		return validationErr("approval levels must be between 1 and 3")
	}
	if t.MinDaysInAdvance < 0 {
		return validationErr("min days in advance must be >= 0")
	}
	if t.MaxConsecutiveDays < 0 {
		return validationErr("max consecutive days must be >= 0")
	}

	existing, err := r.store.ListTypes(ctx)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == selfID {
			continue
		}
		if strings.EqualFold(other.Abbreviation, t.Abbreviation) {
			return validationErr("abbreviation %q already in use", t.Abbreviation)
		}
	}
	return nil
}
