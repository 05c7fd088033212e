package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/lottery-play-platform-poc/internal/play"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/banca"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/repo"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/service"
)

type syncPublisher struct {
	mu     sync.Mutex
	events []play.Event
}

func (p *syncPublisher) Publish(ev play.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *syncPublisher) byType(eventType string) []play.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []play.Event
	for _, ev := range p.events {
		if ev.EventType() == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type scriptedCall struct {
	resp *banca.RegisterResponse
	err  error
}

// scriptedAdapter devolve respostas pré-programadas em ordem; a última
// resposta repete se o worker chamar além do roteiro.
type scriptedAdapter struct {
	mu     sync.Mutex
	script []scriptedCall
	calls  int

	// hook opcional executado antes de responder, usado para simular a
	// corrida com o webhook
	beforeRespond func(req banca.RegisterRequest)
}

func (a *scriptedAdapter) RegisterPlay(_ context.Context, req banca.RegisterRequest) (*banca.RegisterResponse, error) {
	a.mu.Lock()
	idx := a.calls
	a.calls++
	if idx >= len(a.script) {
		idx = len(a.script) - 1
	}
	call := a.script[idx]
	hook := a.beforeRespond
	a.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	return call.resp, call.err
}

func (a *scriptedAdapter) CheckStatus(context.Context, string) (*banca.RegisterResponse, error) {
	return &banca.RegisterResponse{Status: banca.StatusPending}, nil
}

func (a *scriptedAdapter) IsHealthy(context.Context) bool { return true }

func (a *scriptedAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fixture struct {
	repo    *repo.Memory
	pub     *syncPublisher
	svc     *service.PlayService
	adapter *scriptedAdapter
	worker  *Worker
}

func newFixture(t *testing.T, adapter *scriptedAdapter, cfg Config) *fixture {
	t.Helper()
	mem := repo.NewMemory()
	pub := &syncPublisher{}
	svc := service.New(zap.NewNop(), mem, pub, nil)
	return &fixture{
		repo:    mem,
		pub:     pub,
		svc:     svc,
		adapter: adapter,
		worker:  New(zap.NewNop(), mem, adapter, svc, cfg),
	}
}

func (f *fixture) createPlay(t *testing.T, requestID string) *play.Play {
	t.Helper()
	p, _, err := f.svc.CreatePlay(context.Background(), service.CreatePlayInput{
		RequestID: requestID,
		UserID:    "user-1",
		LotteryID: "lnac",
		Numbers:   []string{"12", "45"},
		BetType:   play.BetPale,
		Amount:    decimal.NewFromInt(50),
		Currency:  play.CurrencyDOP,
		Payment:   play.Payment{Method: "wallet", Reference: "txn-1"},
	})
	require.NoError(t, err)
	return p
}

func fastCfg(maxAttempts int) Config {
	return Config{MaxAttempts: maxAttempts, RetryDelay: time.Millisecond}
}

func TestDispatchConfirmsOnFirstAttempt(t *testing.T) {
	adapter := &scriptedAdapter{script: []scriptedCall{
		{resp: &banca.RegisterResponse{
			Status:      banca.StatusConfirmed,
			PlayIDBanca: "BANCA-AAAA1111",
			TicketCode:  "TKT-XYZ12345",
		}},
	}}
	f := newFixture(t, adapter, fastCfg(3))
	p := f.createPlay(t, "req-1")

	require.NoError(t, f.worker.HandlePlayCreated(context.Background(), play.NewCreated(p)))

	stored, err := f.repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, play.StatusConfirmed, stored.Status)
	assert.Equal(t, "BANCA-AAAA1111", stored.PlayIDBanca)
	assert.Equal(t, "TKT-XYZ12345", stored.TicketCode)
	assert.Equal(t, 1, adapter.callCount())
	assert.Len(t, f.pub.byType(play.EventPlayConfirmed), 1)
}

func TestDispatchTreatsAcceptedAsConfirmation(t *testing.T) {
	adapter := &scriptedAdapter{script: []scriptedCall{
		{resp: &banca.RegisterResponse{
			Status:      banca.StatusAccepted,
			PlayIDBanca: "BANCA-BBBB2222",
			TicketCode:  "TKT-ABC67890",
		}},
	}}
	f := newFixture(t, adapter, fastCfg(3))
	p := f.createPlay(t, "req-1")

	require.NoError(t, f.worker.HandlePlayCreated(context.Background(), play.NewCreated(p)))

	stored, err := f.repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, play.StatusConfirmed, stored.Status)
	assert.Equal(t, 1, adapter.callCount())
}

func TestDispatchNeverRetriesRejection(t *testing.T) {
	adapter := &scriptedAdapter{script: []scriptedCall{
		{resp: &banca.RegisterResponse{
			Status:  banca.StatusRejected,
			Message: "insufficient funds at banca",
		}},
	}}
	f := newFixture(t, adapter, fastCfg(3))
	p := f.createPlay(t, "req-1")

	require.NoError(t, f.worker.HandlePlayCreated(context.Background(), play.NewCreated(p)))

	stored, err := f.repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, play.StatusRejected, stored.Status)
	assert.Equal(t, "insufficient funds at banca", stored.LastReason)
	assert.Equal(t, 1, adapter.callCount())
	assert.Len(t, f.pub.byType(play.EventPlayRejected), 1)
	assert.Empty(t, f.pub.byType(play.EventPlayFailed))
}

func TestDispatchRetriesTransientErrorThenConfirms(t *testing.T) {
	adapter := &scriptedAdapter{script: []scriptedCall{
		{err: errors.New("connection refused")},
		{resp: &banca.RegisterResponse{
			Status:      banca.StatusConfirmed,
			PlayIDBanca: "BANCA-CCCC3333",
			TicketCode:  "TKT-RETRY001",
		}},
	}}
	f := newFixture(t, adapter, fastCfg(3))
	p := f.createPlay(t, "req-1")

	require.NoError(t, f.worker.HandlePlayCreated(context.Background(), play.NewCreated(p)))

	stored, err := f.repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, play.StatusConfirmed, stored.Status)
	assert.Equal(t, 2, adapter.callCount())
}

func TestDispatchExhaustionLeavesPlayFailed(t *testing.T) {
	adapter := &scriptedAdapter{script: []scriptedCall{
		{resp: &banca.RegisterResponse{Status: banca.StatusPending, Message: "queue full"}},
	}}
	f := newFixture(t, adapter, fastCfg(3))
	p := f.createPlay(t, "req-1")

	require.NoError(t, f.worker.HandlePlayCreated(context.Background(), play.NewCreated(p)))

	stored, err := f.repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, play.StatusFailed, stored.Status)
	assert.Equal(t, 3, adapter.callCount())

	failed := f.pub.byType(play.EventPlayFailed)
	require.Len(t, failed, 1)
	ev := failed[0].(play.Failed)
	assert.Equal(t, 3, ev.RetryCount)
	assert.Contains(t, ev.Err, "pending")
}

func TestDispatchDropsEventForMissingPlay(t *testing.T) {
	adapter := &scriptedAdapter{script: []scriptedCall{
		{resp: &banca.RegisterResponse{Status: banca.StatusConfirmed}},
	}}
	f := newFixture(t, adapter, fastCfg(3))

	ev := play.Created{At: time.Now(), PlayID: "missing-id", RequestID: "req-ghost"}
	require.NoError(t, f.worker.HandlePlayCreated(context.Background(), ev))

	assert.Zero(t, adapter.callCount())
}

func TestDispatchSkipsPlayAlreadySettled(t *testing.T) {
	adapter := &scriptedAdapter{script: []scriptedCall{
		{resp: &banca.RegisterResponse{Status: banca.StatusConfirmed}},
	}}
	f := newFixture(t, adapter, fastCfg(3))
	p := f.createPlay(t, "req-1")

	// webhook chegou antes do evento ser drenado
	require.NoError(t, f.svc.ConfirmByRequestID(context.Background(), "req-1", "BANCA-WEBHOOK1", "TKT-WEBHOOK1"))

	require.NoError(t, f.worker.HandlePlayCreated(context.Background(), play.NewCreated(p)))

	assert.Zero(t, adapter.callCount())
	stored, err := f.repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "BANCA-WEBHOOK1", stored.PlayIDBanca)
}

func TestWebhookWinsRaceAgainstWorkerWrite(t *testing.T) {
	f := newFixture(t, nil, fastCfg(3))
	p := f.createPlay(t, "req-race")

	adapter := &scriptedAdapter{
		script: []scriptedCall{
			{resp: &banca.RegisterResponse{
				Status:      banca.StatusConfirmed,
				PlayIDBanca: "BANCA-WORKER01",
				TicketCode:  "TKT-WORKER01",
			}},
		},
		// o webhook confirma enquanto a chamada à banca está em voo
		beforeRespond: func(banca.RegisterRequest) {
			err := f.svc.ConfirmByRequestID(context.Background(), "req-race", "BANCA-WEBHOOK1", "TKT-WEBHOOK1")
			require.NoError(t, err)
		},
	}
	f.adapter = adapter
	f.worker = New(zap.NewNop(), f.repo, adapter, f.svc, fastCfg(3))

	require.NoError(t, f.worker.HandlePlayCreated(context.Background(), play.NewCreated(p)))

	// a escrita atrasada do worker é recusada pelo guard e não sobrescreve
	stored, err := f.repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, play.StatusConfirmed, stored.Status)
	assert.Equal(t, "BANCA-WEBHOOK1", stored.PlayIDBanca)
	assert.Equal(t, "TKT-WEBHOOK1", stored.TicketCode)
	assert.Len(t, f.pub.byType(play.EventPlayConfirmed), 1)
}
