package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/radieske/lottery-play-platform-poc/internal/play"
)

// Memory é o repositório em memória usado em testes e no modo local sem
// Postgres. Reproduz a semântica da constraint única de request_id.
type Memory struct {
	mu        sync.RWMutex
	byID      map[string]*play.Play
	byRequest map[string]string // requestId -> playId
}

func NewMemory() *Memory {
	return &Memory{
		byID:      make(map[string]*play.Play),
		byRequest: make(map[string]string),
	}
}

func (m *Memory) Save(_ context.Context, p *play.Play) (*play.Play, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if winnerID, ok := m.byRequest[p.RequestID]; ok {
		return clone(m.byID[winnerID]), nil
	}
	m.byID[p.ID] = clone(p)
	m.byRequest[p.RequestID] = p.ID
	return clone(p), nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*play.Play, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, play.ErrNotFound
	}
	return clone(p), nil
}

func (m *Memory) FindByRequestID(_ context.Context, requestID string) (*play.Play, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byRequest[requestID]
	if !ok {
		return nil, play.ErrNotFound
	}
	return clone(m.byID[id]), nil
}

func (m *Memory) FindByUserID(_ context.Context, userID string, limit, offset int) ([]*play.Play, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*play.Play
	for _, p := range m.byID {
		if p.UserID == userID {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, p *play.Play) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; !ok {
		return play.ErrNotFound
	}
	m.byID[p.ID] = clone(p)
	return nil
}

// clone evita que chamadores compartilhem o mesmo ponteiro do mapa.
func clone(p *play.Play) *play.Play {
	cp := *p
	cp.Numbers = append([]string(nil), p.Numbers...)
	return &cp
}
