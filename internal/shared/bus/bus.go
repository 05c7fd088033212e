package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/radieske/lottery-play-platform-poc/internal/play"
)

// Handler processa um evento de domínio. Erros são logados e não abortam a
// entrega aos demais handlers nem aos demais eventos enfileirados.
type Handler func(ctx context.Context, ev play.Event) error

// Bus é o barramento de eventos em memória que desacopla a criação da
// jogada (latência do cliente) do despacho à banca (latência de rede).
//
// Publish anexa numa fila FIFO e retorna imediatamente; um único goroutine
// de drenagem processa a fila até esgotar, executando os handlers de cada
// evento em ordem de registro antes de avançar ao próximo evento. Um handler
// lento (ex.: worker dormindo entre tentativas) atrasa os eventos seguintes;
// sob carga maior esse loop único deveria virar um pool de workers.
type Bus struct {
	log *zap.Logger

	mu       sync.Mutex
	queue    []play.Event
	handlers map[string][]Handler

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

func New(log *zap.Logger) *Bus {
	return &Bus{
		log:      log,
		handlers: make(map[string][]Handler),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Subscribe registra um handler para um tipo de evento. Append-only; pode
// ser chamado várias vezes por tipo (fan-out em ordem de registro).
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Publish enfileira o evento e retorna sem esperar execução de handler.
func (b *Bus) Publish(ev play.Event) {
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Start sobe o loop de drenagem. Deve ser chamado uma única vez, no boot do
// processo; o bus é injetado por referência em produtores e consumidores.
func (b *Bus) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	go b.drain(ctx)
}

// Close interrompe a drenagem. Eventos ainda na fila são descartados.
func (b *Bus) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	<-b.done
}

func (b *Bus) drain(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}

		for {
			b.mu.Lock()
			if len(b.queue) == 0 {
				b.mu.Unlock()
				break
			}
			ev := b.queue[0]
			b.queue = b.queue[1:]
			hs := append([]Handler(nil), b.handlers[ev.EventType()]...)
			b.mu.Unlock()

			for _, h := range hs {
				b.dispatch(ctx, ev, h)
			}

			if ctx.Err() != nil {
				return
			}
		}
	}
}

// dispatch isola panics e erros de um handler para não derrubar o loop.
func (b *Bus) dispatch(ctx context.Context, ev play.Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panic",
				zap.String("event_type", ev.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	if err := h(ctx, ev); err != nil {
		b.log.Error("event handler error",
			zap.String("event_type", ev.EventType()),
			zap.Error(err),
		)
	}
}
