package db

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"leavehub/internal/domain/auth"
	"leavehub/internal/platform/config"
)

type seedType struct {
	name                   string
	abbreviation           string
	annualEntitlement      float64
	accrualMethod          string
	carryForward           bool
	maxCarryForward        float64
	encashment             bool
	maxEncashmentPerYear   float64
	negativeBalanceAllowed bool
	requiresApproval       bool
	approvalLevels         int
	requiresDocument       bool
	minDaysInAdvance       int
	maxConsecutiveDays     int
	genderEligibility      string
}

// defaultLeaveTypes is the policy catalog a fresh install starts with.
// Administrators adjust parameters afterwards through the registry API.
var defaultLeaveTypes = []seedType{
	{
		name: "earned_leave", abbreviation: "EL", annualEntitlement: 24,
		accrualMethod: "monthly", carryForward: true, maxCarryForward: 30,
		encashment: true, maxEncashmentPerYear: 10,
		requiresApproval: true, approvalLevels: 1, minDaysInAdvance: 3,
		genderEligibility: "all",
	},
	{
		name: "casual_leave", abbreviation: "CL", annualEntitlement: 12,
		accrualMethod:    "annual_frontload",
		requiresApproval: true, approvalLevels: 1, maxConsecutiveDays: 3,
		genderEligibility: "all",
	},
	{
		name: "sick_leave", abbreviation: "SL", annualEntitlement: 10,
		accrualMethod:    "annual_frontload",
		requiresApproval: true, approvalLevels: 1,
		genderEligibility: "all",
	},
	{
		name: "maternity", abbreviation: "ML",
		accrualMethod:    "manual_credit",
		requiresApproval: true, approvalLevels: 2, requiresDocument: true,
		genderEligibility: "female",
	},
	{
		name: "paternity", abbreviation: "PL",
		accrualMethod:    "manual_credit",
		requiresApproval: true, approvalLevels: 1, requiresDocument: true,
		genderEligibility: "male",
	},
	{
		name: "compensatory_off", abbreviation: "CO",
		accrualMethod:    "manual_credit",
		requiresApproval: true, approvalLevels: 1,
		genderEligibility: "all",
	},
	{
		name: "loss_of_pay", abbreviation: "LOP",
		accrualMethod:          "manual_credit",
		negativeBalanceAllowed: true,
		requiresApproval:       true, approvalLevels: 1,
		genderEligibility: "all",
	},
}

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensureLeaveTypes(ctx, pool); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.SeedAdminEmail) != "" && strings.TrimSpace(cfg.SeedAdminPassword) != "" {
		if err := ensureAdminUser(ctx, pool, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			return err
		}
	} else {
		slog.Info("seed admin skipped, SEED_ADMIN_EMAIL or SEED_ADMIN_PASSWORD unset")
	}
	return nil
}

func ensureLeaveTypes(ctx context.Context, pool *pgxpool.Pool) error {
	for _, t := range defaultLeaveTypes {
		_, err := pool.Exec(ctx, `
      INSERT INTO leave_types (
        name, abbreviation, annual_entitlement, accrual_method,
        carry_forward, max_carry_forward, encashment, max_encashment_per_year,
        negative_balance_allowed, requires_approval, approval_levels,
        requires_document, min_days_in_advance, max_consecutive_days, gender_eligibility
      )
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
      ON CONFLICT (name) DO NOTHING
    `, t.name, t.abbreviation, t.annualEntitlement, t.accrualMethod,
			t.carryForward, t.maxCarryForward, t.encashment, t.maxEncashmentPerYear,
			t.negativeBalanceAllowed, t.requiresApproval, t.approvalLevels,
			t.requiresDocument, t.minDaysInAdvance, t.maxConsecutiveDays, t.genderEligibility)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	var userID string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&userID)
	if err == nil {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := pool.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, role_name)
    VALUES ($1, $2, $3)
    RETURNING id
  `, email, hash, auth.RoleAdmin).Scan(&userID); err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
    INSERT INTO employees (user_id, first_name, last_name, active)
    VALUES ($1, 'System', 'Administrator', true)
  `, userID)
	return err
}
