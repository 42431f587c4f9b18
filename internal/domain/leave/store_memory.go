package leave

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local development.
// Balance atomicity is a per-key mutex; everything else sits behind one
// RWMutex.
type MemoryStore struct {
	mu           sync.RWMutex
	types        map[string]LeaveType
	holidays     map[string]Holiday
	balances     map[BalanceKey]Balance
	applications map[string]Application
	credits      map[string]CreditRequest
	accrualRuns  map[string]time.Time

	balanceMu keyedMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		types:        make(map[string]LeaveType),
		holidays:     make(map[string]Holiday),
		balances:     make(map[BalanceKey]Balance),
		applications: make(map[string]Application),
		credits:      make(map[string]CreditRequest),
		accrualRuns:  make(map[string]time.Time),
	}
}

func (m *MemoryStore) CreateType(_ context.Context, t LeaveType) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC()
	m.types[t.ID] = t
	return t.ID, nil
}

func (m *MemoryStore) GetType(_ context.Context, id string) (LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[id]
	if !ok {
		return LeaveType{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) GetTypeByName(_ context.Context, name TypeName) (LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.types {
		if t.Name == name {
			return t, nil
		}
	}
	return LeaveType{}, ErrNotFound
}

func (m *MemoryStore) ListTypes(_ context.Context) ([]LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LeaveType, 0, len(m.types))
	for _, t := range m.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) UpdateType(_ context.Context, t LeaveType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.types[t.ID]; !ok {
		return ErrNotFound
	}
	m.types[t.ID] = t
	return nil
}

func (m *MemoryStore) DeleteType(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.types[id]; !ok {
		return ErrNotFound
	}
	delete(m.types, id)
	return nil
}

func (m *MemoryStore) CountTypeReferences(_ context.Context, id string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, a := range m.applications {
		if a.LeaveTypeID == id {
			count++
		}
	}
	for key := range m.balances {
		if key.LeaveTypeID == id {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CreateHoliday(_ context.Context, h Holiday) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = uuid.NewString()
	h.CreatedAt = time.Now().UTC()
	m.holidays[h.ID] = h
	return h.ID, nil
}

func (m *MemoryStore) UpdateHoliday(_ context.Context, h Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.holidays[h.ID]; !ok {
		return ErrNotFound
	}
	m.holidays[h.ID] = h
	return nil
}

func (m *MemoryStore) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.holidays[id]; !ok {
		return ErrNotFound
	}
	delete(m.holidays, id)
	return nil
}

func (m *MemoryStore) ListHolidays(_ context.Context, year int) ([]Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Holiday
	for _, h := range m.holidays {
		if h.Date.Year() == year {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *MemoryStore) HolidayDates(_ context.Context, years []int) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[int]struct{}, len(years))
	for _, y := range years {
		wanted[y] = struct{}{}
	}
	dates := make(map[string]struct{})
	for _, h := range m.holidays {
		if _, ok := wanted[h.Date.Year()]; ok {
			dates[DateKey(h.Date)] = struct{}{}
		}
	}
	return dates, nil
}

func (m *MemoryStore) GetBalance(_ context.Context, key BalanceKey) (Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[key]
	if !ok {
		return Balance{}, ErrNotFound
	}
	return b, nil
}

func (m *MemoryStore) ListBalances(_ context.Context, employeeID string, year int) ([]Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Balance
	for key, b := range m.balances {
		if key.EmployeeID == employeeID && key.Year == year {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeaveTypeID < out[j].LeaveTypeID })
	return out, nil
}

func (m *MemoryStore) ListBalancesForYear(_ context.Context, year int) ([]Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Balance
	for key, b := range m.balances {
		if key.Year == year {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID == out[j].EmployeeID {
			return out[i].LeaveTypeID < out[j].LeaveTypeID
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}

func (m *MemoryStore) UpdateBalance(_ context.Context, key BalanceKey, fn func(*Balance) error) error {
	unlock := m.balanceMu.lock(fmt.Sprintf("%s/%s/%d", key.EmployeeID, key.LeaveTypeID, key.Year))
	defer unlock()

	m.mu.Lock()
	b, ok := m.balances[key]
	m.mu.Unlock()
	if !ok {
		b = Balance{EmployeeID: key.EmployeeID, LeaveTypeID: key.LeaveTypeID, Year: key.Year}
	}

	if err := fn(&b); err != nil {
		return err
	}
	b.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	m.balances[key] = b
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) CreateApplication(_ context.Context, a Application) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.NewString()
	m.applications[a.ID] = a
	return a.ID, nil
}

func (m *MemoryStore) GetApplication(_ context.Context, id string) (Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.applications[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryStore) UpdateApplication(_ context.Context, a Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.applications[a.ID]; !ok {
		return ErrNotFound
	}
	m.applications[a.ID] = a
	return nil
}

func (m *MemoryStore) ListApplications(_ context.Context, filter ApplicationFilter) ([]Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Application
	for _, a := range m.applications {
		if filter.EmployeeID != "" && a.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.LeaveTypeID != "" && a.LeaveTypeID != filter.LeaveTypeID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Year != 0 && a.FromDate.Year() != filter.Year {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return strings.Compare(out[i].ID, out[j].ID) < 0
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) ListOverlapping(_ context.Context, employeeID string, from, to time.Time) ([]Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Application
	for _, a := range m.applications {
		if a.EmployeeID != employeeID {
			continue
		}
		if a.Status != StatusPending && a.Status != StatusApproved {
			continue
		}
		if !a.FromDate.After(to) && !a.ToDate.Before(from) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FromDate.Before(out[j].FromDate) })
	return out, nil
}

func (m *MemoryStore) CreateCredit(_ context.Context, c CreditRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.NewString()
	m.credits[c.ID] = c
	return c.ID, nil
}

func (m *MemoryStore) GetCredit(_ context.Context, id string) (CreditRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.credits[id]
	if !ok {
		return CreditRequest{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) UpdateCredit(_ context.Context, c CreditRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credits[c.ID]; !ok {
		return ErrNotFound
	}
	m.credits[c.ID] = c
	return nil
}

func (m *MemoryStore) ListCredits(_ context.Context, employeeID string) ([]CreditRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []CreditRequest
	for _, c := range m.credits {
		if employeeID == "" || c.EmployeeID == employeeID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) LastAccrualRun(_ context.Context, leaveTypeID string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	last, ok := m.accrualRuns[leaveTypeID]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return last, nil
}

func (m *MemoryStore) RecordAccrualRun(_ context.Context, leaveTypeID string, periodStart time.Time, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accrualRuns[leaveTypeID] = periodStart
	return nil
}
