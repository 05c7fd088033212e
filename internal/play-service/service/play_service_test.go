package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/lottery-play-platform-poc/internal/play"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/repo"
)

// syncPublisher grava eventos de forma síncrona; nos testes do serviço não
// interessa a drenagem assíncrona do bus, só o que foi publicado.
type syncPublisher struct {
	mu     sync.Mutex
	events []play.Event
}

func (p *syncPublisher) Publish(ev play.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *syncPublisher) all() []play.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]play.Event(nil), p.events...)
}

type stubGuard struct{ first bool }

func (g stubGuard) FirstSubmission(context.Context, string) bool { return g.first }

func newService(t *testing.T) (*PlayService, *repo.Memory, *syncPublisher) {
	t.Helper()
	mem := repo.NewMemory()
	pub := &syncPublisher{}
	return New(zap.NewNop(), mem, pub, nil), mem, pub
}

func input(requestID string) CreatePlayInput {
	return CreatePlayInput{
		RequestID: requestID,
		UserID:    "user-1",
		LotteryID: "lnac",
		Numbers:   []string{"12", "45"},
		BetType:   play.BetPale,
		Amount:    decimal.NewFromInt(50),
		Currency:  play.CurrencyDOP,
		Payment:   play.Payment{Method: "wallet", Reference: "txn-1"},
	}
}

func TestCreatePlayPublishesSingleCreatedEvent(t *testing.T) {
	svc, _, pub := newService(t)

	p, created, err := svc.CreatePlay(context.Background(), input("req-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, play.StatusPending, p.Status)

	events := pub.all()
	require.Len(t, events, 1)
	ev, ok := events[0].(play.Created)
	require.True(t, ok)
	assert.Equal(t, p.ID, ev.PlayID)
	assert.Equal(t, "req-1", ev.RequestID)
}

func TestCreatePlayIsIdempotentPerRequestID(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()

	first, created, err := svc.CreatePlay(ctx, input("req-1"))
	require.NoError(t, err)
	require.True(t, created)

	for i := 0; i < 5; i++ {
		again, created, err := svc.CreatePlay(ctx, input("req-1"))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, again.ID)
	}

	// reenvio nunca duplica evento
	assert.Len(t, pub.all(), 1)
}

func TestCreatePlayConcurrentSameRequestID(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			p, _, err := svc.CreatePlay(ctx, input("req-race"))
			if err == nil {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Len(t, pub.all(), 1)
}

func TestCreatePlayWithGuardShortCircuit(t *testing.T) {
	mem := repo.NewMemory()
	pub := &syncPublisher{}
	svc := New(zap.NewNop(), mem, pub, stubGuard{first: true})
	ctx := context.Background()

	first, _, err := svc.CreatePlay(ctx, input("req-1"))
	require.NoError(t, err)

	// guard negativo com linha já persistida cai no fast-path
	svc2 := New(zap.NewNop(), mem, pub, stubGuard{first: false})
	again, created, err := svc2.CreatePlay(ctx, input("req-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
}

func TestCreatePlayGuardNegativeWithoutRowStillCreates(t *testing.T) {
	// guard pode afirmar presença sem a linha existir (TTL, flush); o
	// caminho normal tem que prevalecer
	mem := repo.NewMemory()
	pub := &syncPublisher{}
	svc := New(zap.NewNop(), mem, pub, stubGuard{first: false})

	p, created, err := svc.CreatePlay(context.Background(), input("req-ghost"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, p.ID)
}

func TestCreatePlayValidationError(t *testing.T) {
	svc, _, pub := newService(t)

	in := input("req-1")
	in.Numbers = nil
	_, _, err := svc.CreatePlay(context.Background(), in)

	var verr *play.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, pub.all())
}

func TestConfirmByIDPersistsAndPublishes(t *testing.T) {
	svc, mem, pub := newService(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlay(ctx, input("req-1"))
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmByID(ctx, p.ID, "BANCA-AAAA1111", "TKT-XYZ12345"))

	stored, err := mem.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, play.StatusConfirmed, stored.Status)
	assert.Equal(t, "BANCA-AAAA1111", stored.PlayIDBanca)
	assert.Equal(t, "TKT-XYZ12345", stored.TicketCode)

	events := pub.all()
	require.Len(t, events, 2)
	conf, ok := events[1].(play.Confirmed)
	require.True(t, ok)
	assert.Equal(t, p.ID, conf.PlayID)
	assert.Equal(t, "BANCA-AAAA1111", conf.PlayIDBanca)
}

func TestConfirmByRequestIDResolvesPlay(t *testing.T) {
	svc, mem, _ := newService(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlay(ctx, input("req-wh"))
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmByRequestID(ctx, "req-wh", "BANCA-BBBB2222", "TKT-ABC67890"))

	stored, err := mem.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, play.StatusConfirmed, stored.Status)
}

func TestConfirmByRequestIDUnknown(t *testing.T) {
	svc, _, _ := newService(t)

	err := svc.ConfirmByRequestID(context.Background(), "req-missing", "BANCA-AAAA1111", "TKT-XYZ12345")
	assert.ErrorIs(t, err, play.ErrNotFound)
}

func TestRejectRetainsReason(t *testing.T) {
	svc, mem, pub := newService(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlay(ctx, input("req-1"))
	require.NoError(t, err)

	require.NoError(t, svc.RejectByID(ctx, p.ID, "numbers not available"))

	stored, err := mem.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, play.StatusRejected, stored.Status)
	assert.Equal(t, "numbers not available", stored.LastReason)

	events := pub.all()
	require.Len(t, events, 2)
	rej, ok := events[1].(play.Rejected)
	require.True(t, ok)
	assert.Equal(t, "numbers not available", rej.Reason)
}

func TestFailCarriesRetryCount(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlay(ctx, input("req-1"))
	require.NoError(t, err)
	require.NoError(t, svc.MarkProcessingByID(ctx, p.ID))

	require.NoError(t, svc.FailByID(ctx, p.ID, "max retries exceeded", 3))

	events := pub.all()
	require.Len(t, events, 2)
	failed, ok := events[1].(play.Failed)
	require.True(t, ok)
	assert.Equal(t, 3, failed.RetryCount)
	assert.Equal(t, "max retries exceeded", failed.Err)
}

func TestTransitionOnTerminalPlayIsRefusedWithoutEvent(t *testing.T) {
	svc, mem, pub := newService(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlay(ctx, input("req-1"))
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmByID(ctx, p.ID, "BANCA-AAAA1111", "TKT-XYZ12345"))
	baseline := len(pub.all())

	err = svc.RejectByID(ctx, p.ID, "late rejection")
	var inv *play.InvalidTransitionError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, play.StatusConfirmed, inv.From)

	stored, err := mem.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, play.StatusConfirmed, stored.Status)
	assert.Len(t, pub.all(), baseline)
}

func TestMarkProcessingDoesNotPublish(t *testing.T) {
	svc, mem, pub := newService(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlay(ctx, input("req-1"))
	require.NoError(t, err)
	baseline := len(pub.all())

	require.NoError(t, svc.MarkProcessingByID(ctx, p.ID))

	stored, err := mem.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, play.StatusProcessing, stored.Status)
	assert.Len(t, pub.all(), baseline)
}

func TestListByUser(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	for _, rid := range []string{"req-1", "req-2", "req-3"} {
		_, _, err := svc.CreatePlay(ctx, input(rid))
		require.NoError(t, err)
	}
	other := input("req-other")
	other.UserID = "user-2"
	_, _, err := svc.CreatePlay(ctx, other)
	require.NoError(t, err)

	plays, err := svc.ListByUser(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, plays, 3)

	page, err := svc.ListByUser(ctx, "user-1", 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}
