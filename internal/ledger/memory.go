package ledger

import (
	"context"
	"fmt"
	"sync"
)

type entryState uint8

const (
	stateReserved entryState = iota + 1
	stateConsumed
)

var _ Ledger = &Memory{}

// Memory is an in-process ledger.
type Memory struct {
	mu      sync.Mutex
	entries map[Key]entryState
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[Key]entryState)}
}

func (m *Memory) TryConsume(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyConsumed, key)
	}
	m.entries[key] = stateConsumed
	return nil
}

func (m *Memory) Reserve(_ context.Context, keys ...Key) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if _, ok := m.entries[k]; ok {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyConsumed, k)
		}
	}
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: %s reserved twice", ErrAlreadyConsumed, k)
		}
		seen[k] = struct{}{}
	}
	for _, k := range keys {
		m.entries[k] = stateReserved
	}
	return &memoryReservation{ledger: m, keys: keys}, nil
}

func (m *Memory) IsConsumed(_ context.Context, key Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key] == stateConsumed, nil
}

// Len reports how many keys are consumed.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.entries {
		if s == stateConsumed {
			n++
		}
	}
	return n
}

type memoryReservation struct {
	ledger *Memory
	keys   []Key
	done   bool
}

func (r *memoryReservation) Commit(context.Context) error {
	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	if r.done {
		return ErrNotReserved
	}
	r.done = true
	for _, k := range r.keys {
		r.ledger.entries[k] = stateConsumed
	}
	return nil
}

func (r *memoryReservation) Release(context.Context) error {
	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	if r.done {
		return ErrNotReserved
	}
	r.done = true
	for _, k := range r.keys {
		delete(r.ledger.entries, k)
	}
	return nil
}
