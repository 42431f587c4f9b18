package leave

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"leavehub/internal/domain/employee"
)

// Aggregator computes read-only rollups over applications and balances. It
// holds no state of its own and tolerates stale reads.
type Aggregator struct {
	store     Store
	directory employee.Directory
}

func NewAggregator(store Store, directory employee.Directory) *Aggregator {
	return &Aggregator{store: store, directory: directory}
}

type MonthlyTrendPoint struct {
	Month int             `json:"month"`
	Days  decimal.Decimal `json:"days"`
}

type UtilizationEntry struct {
	Key  string          `json:"key"`
	Days decimal.Decimal `json:"days"`
}

type AbsenteeismEntry struct {
	EmployeeID string          `json:"employeeId"`
	Days       decimal.Decimal `json:"days"`
}

type Report struct {
	Year                 int                 `json:"year"`
	MonthlyTrend         []MonthlyTrendPoint `json:"monthlyTrend"`
	TypeUtilization      []UtilizationEntry  `json:"typeUtilization"`
	DeptUtilization      []UtilizationEntry  `json:"departmentUtilization"`
	AbsenteeismRisk      []AbsenteeismEntry  `json:"absenteeismRisk"`
	EarnedLeaveLiability decimal.Decimal     `json:"earnedLeaveLiability"`
	LossOfPayDaysTaken   decimal.Decimal     `json:"lossOfPayDaysTaken"`
}

const absenteeismTopN = 5

// Yearly builds the full report for one calendar year.
func (a *Aggregator) Yearly(ctx context.Context, year int) (Report, error) {
	report := Report{
		Year:                 year,
		EarnedLeaveLiability: decimal.Zero,
		LossOfPayDaysTaken:   decimal.Zero,
	}

	apps, err := a.store.ListApplications(ctx, ApplicationFilter{Status: StatusApproved, Year: year})
	if err != nil {
		return Report{}, err
	}

	typeByID := make(map[string]LeaveType)
	types, err := a.store.ListTypes(ctx)
	if err != nil {
		return Report{}, err
	}
	for _, t := range types {
		typeByID[t.ID] = t
	}

	monthly := make([]decimal.Decimal, 12)
	for i := range monthly {
		monthly[i] = decimal.Zero
	}
	typeDays := make(map[string]decimal.Decimal)
	deptDays := make(map[string]decimal.Decimal)
	riskDays := make(map[string]decimal.Decimal)
	departments := make(map[string]string)

	for _, app := range apps {
		monthly[app.FromDate.Month()-1] = monthly[app.FromDate.Month()-1].Add(app.NumberOfDays)

		lt := typeByID[app.LeaveTypeID]
		typeDays[string(lt.Name)] = typeDays[string(lt.Name)].Add(app.NumberOfDays)

		dept, ok := departments[app.EmployeeID]
		if !ok {
			dept = a.departmentOf(ctx, app.EmployeeID)
			departments[app.EmployeeID] = dept
		}
		deptDays[dept] = deptDays[dept].Add(app.NumberOfDays)

		if lt.Name == TypeSickLeave || lt.Name == TypeLossOfPay {
			riskDays[app.EmployeeID] = riskDays[app.EmployeeID].Add(app.NumberOfDays)
		}
	}

	for month, days := range monthly {
		report.MonthlyTrend = append(report.MonthlyTrend, MonthlyTrendPoint{Month: month + 1, Days: days})
	}
	report.TypeUtilization = sortedEntries(typeDays)
	report.DeptUtilization = sortedEntries(deptDays)
	report.AbsenteeismRisk = topAbsentees(riskDays, absenteeismTopN)

	balances, err := a.store.ListBalancesForYear(ctx, year)
	if err != nil {
		return Report{}, err
	}
	for _, bal := range balances {
		lt := typeByID[bal.LeaveTypeID]
		switch lt.Name {
		case TypeEarnedLeave:
			report.EarnedLeaveLiability = report.EarnedLeaveLiability.Add(bal.Available)
		case TypeLossOfPay:
			report.LossOfPayDaysTaken = report.LossOfPayDaysTaken.Add(bal.Taken)
		}
	}

	return report, nil
}

func (a *Aggregator) departmentOf(ctx context.Context, employeeID string) string {
	profile, err := a.directory.Profile(ctx, employeeID)
	if err != nil || profile.DepartmentID == "" {
		return "unassigned"
	}
	return profile.DepartmentID
}

func sortedEntries(totals map[string]decimal.Decimal) []UtilizationEntry {
	out := make([]UtilizationEntry, 0, len(totals))
	for key, days := range totals {
		out = append(out, UtilizationEntry{Key: key, Days: days})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Days.Equal(out[j].Days) {
			return out[i].Key < out[j].Key
		}
		return out[i].Days.GreaterThan(out[j].Days)
	})
	return out
}

func topAbsentees(totals map[string]decimal.Decimal, n int) []AbsenteeismEntry {
	out := make([]AbsenteeismEntry, 0, len(totals))
	for id, days := range totals {
		out = append(out, AbsenteeismEntry{EmployeeID: id, Days: days})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Days.Equal(out[j].Days) {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Days.GreaterThan(out[j].Days)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
