package store

import (
	"context"
	"sync"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
)

// Memory keeps sessions in process. It is the default driver and the one
// tests use.
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]engine.State
	byCode map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[string]engine.State),
		byCode: make(map[string]string),
	}
}

func (m *Memory) CreateSession(ctx context.Context, s engine.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := normalizeCode(s.JoinCode)
	if _, taken := m.byCode[code]; taken {
		return ErrDuplicateCode
	}
	m.byCode[code] = s.SessionID
	m.byID[s.SessionID] = s.Clone()
	return nil
}

func (m *Memory) Save(ctx context.Context, s engine.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byCode[normalizeCode(s.JoinCode)] = s.SessionID
	m.byID[s.SessionID] = s.Clone()
	return nil
}

func (m *Memory) Load(ctx context.Context, id string) (engine.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return engine.State{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) FindByCode(ctx context.Context, code string) (engine.State, error) {
	m.mu.RLock()
	id, ok := m.byCode[normalizeCode(code)]
	m.mu.RUnlock()
	if !ok {
		return engine.State{}, ErrNotFound
	}
	return m.Load(ctx, id)
}

func (m *Memory) ListTeams(ctx context.Context, sessionID string) ([]engine.Team, error) {
	s, err := m.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Teams, nil
}

func (m *Memory) Close() error { return nil }
