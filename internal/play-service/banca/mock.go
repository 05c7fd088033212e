package banca

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mock simula respostas da banca sem chamada externa. Usado em
// desenvolvimento e como implementação de teste do contrato Adapter.
type Mock struct {
	log         *zap.Logger
	confirmRate float64 // fração [0,1] de registros confirmados
	delay       time.Duration

	mu    sync.Mutex
	plays map[string]*RegisterResponse
}

func NewMock(log *zap.Logger) *Mock {
	return &Mock{
		log:         log,
		confirmRate: 0.9,
		delay:       500 * time.Millisecond,
		plays:       make(map[string]*RegisterResponse),
	}
}

func (m *Mock) RegisterPlay(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	playIDBanca := "BANCA-" + strings.ToUpper(uuid.NewString()[:8])
	resp := &RegisterResponse{
		Status:      StatusConfirmed,
		PlayIDBanca: playIDBanca,
		TicketCode:  generateTicketCode(),
		Message:     "Play registered successfully",
	}
	if rand.Float64() >= m.confirmRate {
		resp = &RegisterResponse{
			Status:  StatusRejected,
			Message: "Insufficient funds at banca or numbers not available",
		}
	}

	m.mu.Lock()
	m.plays[playIDBanca] = resp
	m.mu.Unlock()

	m.log.Info("mock banca response",
		zap.String("request_id", req.RequestID),
		zap.String("status", string(resp.Status)),
	)
	return resp, nil
}

func (m *Mock) CheckStatus(_ context.Context, playIDBanca string) (*RegisterResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if resp, ok := m.plays[playIDBanca]; ok {
		return resp, nil
	}
	return &RegisterResponse{
		Status:      StatusPending,
		PlayIDBanca: playIDBanca,
		Message:     "Play not found or still processing",
	}, nil
}

func (m *Mock) IsHealthy(context.Context) bool { return true }

func generateTicketCode() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 8)
	for i := range b {
		b[i] = chars[rand.Intn(len(chars))]
	}
	return fmt.Sprintf("TKT-%s", b)
}
