package session

import (
	"context"
	"sync"

	"github.com/DoyleJ11/warband-backend/internal/engine"
)

type Memory struct {
	mu     sync.Mutex
	states map[int64]engine.State
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{states: map[int64]engine.State{}}
}

func (m *Memory) Get(_ context.Context, campaignID int64) (engine.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[campaignID]
	return s.Clone(), ok, nil
}

func (m *Memory) Mutate(_ context.Context, campaignID int64, fn MutateFunc) (engine.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fn(m.states[campaignID].Clone())
	if err != nil {
		return engine.State{}, err
	}
	if next.Empty() {
		delete(m.states, campaignID)
		return engine.State{}, nil
	}
	m.states[campaignID] = next.Clone()
	return next, nil
}

func (m *Memory) Snapshot(ctx context.Context, campaignID int64) (engine.State, error) {
	s, _, err := m.Get(ctx, campaignID)
	return s, err
}

func (m *Memory) Delete(_ context.Context, campaignID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, campaignID)
	return nil
}
