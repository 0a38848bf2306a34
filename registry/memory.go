package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// MemoryStore is an in-memory Store backed by a sync.RWMutex-protected map.
// Registrations are deep-copied on the way in and out to prevent external mutation.
type MemoryStore struct {
	mu    sync.RWMutex
	regs  map[string]*subagent.Registration
	order []string // registration order
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		regs: make(map[string]*subagent.Registration),
	}
}

// Get returns a deep copy of the registration.
func (m *MemoryStore) Get(_ context.Context, id string) (*subagent.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.regs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.Clone(), nil
}

// Put stores a deep copy of reg. Replacing an existing ID moves it to the
// end of the registration order.
func (m *MemoryStore) Put(_ context.Context, reg *subagent.Registration) error {
	if reg == nil {
		return fmt.Errorf("registration is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := reg.ID()
	if _, exists := m.regs[id]; exists {
		m.removeOrderLocked(id)
	}
	m.regs[id] = reg.Clone()
	m.order = append(m.order, id)
	return nil
}

// Delete removes a registration by ID.
func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.regs[id]; !ok {
		return false, nil
	}
	delete(m.regs, id)
	m.removeOrderLocked(id)
	return true, nil
}

// List returns deep copies of all registrations in registration order.
func (m *MemoryStore) List(_ context.Context) ([]*subagent.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*subagent.Registration, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.regs[id].Clone())
	}
	return result, nil
}

// Update runs fn on a working copy under the write lock and commits it if
// fn succeeds.
func (m *MemoryStore) Update(_ context.Context, id string, fn func(*subagent.Registration) error) (*subagent.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.regs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	working := cur.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	m.regs[id] = working
	return working.Clone(), nil
}

// Len returns the number of stored registrations.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.regs)
}

func (m *MemoryStore) removeOrderLocked(id string) {
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
