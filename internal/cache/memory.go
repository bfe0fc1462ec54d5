package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/victornm/quizsync/internal/domain"
)

// Memory is a process-local Cache. Sessions are stored encoded so that
// callers never share memory with the cache.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, code string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.get(code)
}

func (m *Memory) Put(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.put(s)
}

func (m *Memory) Update(_ context.Context, code string, fn func(s *domain.Session) error) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(code)
	if err != nil {
		return nil, err
	}

	if err := fn(s); err != nil {
		return nil, err
	}

	if err := m.put(s); err != nil {
		return nil, err
	}

	return s, nil
}

func (m *Memory) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, code)
	return nil
}

func (m *Memory) get(code string) (*domain.Session, error) {
	b, ok := m.data[code]
	if !ok {
		return nil, notFound(code)
	}

	var s domain.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", code, err)
	}

	return &s, nil
}

func (m *Memory) put(s *domain.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.Code, err)
	}

	m.data[s.Code] = b
	return nil
}
