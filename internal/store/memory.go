package store

import (
	"context"
	"sync"

	"DriftShield/internal/state"
)

// Memory is the in-memory Store used in tests and single-process
// deployments. Every Get and Put works on a clone, so no caller ever
// shares mutable state with the maps.
type Memory struct {
	mu        sync.RWMutex
	markets   map[state.Key]*state.Market
	positions map[state.Key]*state.Position
	models    map[state.Key]*state.ModelRecord
	policies  map[state.Key]*state.Policy
	receipts  []*state.MonitoringReceipt
}

func NewMemory() *Memory {
	return &Memory{
		markets:   make(map[state.Key]*state.Market),
		positions: make(map[state.Key]*state.Position),
		models:    make(map[state.Key]*state.ModelRecord),
		policies:  make(map[state.Key]*state.Policy),
	}
}

func (s *Memory) GetMarket(_ context.Context, key state.Key) (*state.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[key]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Memory) PutMarket(_ context.Context, m *state.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.Key] = m.Clone()
	return nil
}

func (s *Memory) GetPosition(_ context.Context, key state.Key) (*state.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[key]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Memory) PutPosition(_ context.Context, p *state.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[p.Key] = p.Clone()
	return nil
}

func (s *Memory) GetModel(_ context.Context, key state.Key) (*state.ModelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[key]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Memory) PutModel(_ context.Context, m *state.ModelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.Key] = m.Clone()
	return nil
}

func (s *Memory) GetPolicy(_ context.Context, key state.Key) (*state.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[key]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Memory) PutPolicy(_ context.Context, p *state.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.Key] = p.Clone()
	return nil
}

func (s *Memory) AppendReceipt(_ context.Context, r *state.MonitoringReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.receipts = append(s.receipts, &cp)
	return nil
}

// ReceiptsForModel returns the stored receipts for a model, oldest first.
func (s *Memory) ReceiptsForModel(model state.Key) []*state.MonitoringReceipt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*state.MonitoringReceipt
	for _, r := range s.receipts {
		if r.Model == model {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}
