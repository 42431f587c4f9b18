package employee

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-process Directory used by tests and local runs.
type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{profiles: make(map[string]Profile)}
}

func (d *MemoryDirectory) Put(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

func (d *MemoryDirectory) Profile(_ context.Context, employeeID string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[employeeID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (d *MemoryDirectory) ProfileByUserID(_ context.Context, userID string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.profiles {
		if p.UserID == userID {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

func (d *MemoryDirectory) IsManagerOf(_ context.Context, managerID, employeeID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[employeeID]
	if !ok {
		return false, nil
	}
	return p.ManagerID == managerID, nil
}

func (d *MemoryDirectory) ListActive(_ context.Context) ([]Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Profile
	for _, p := range d.profiles {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}
