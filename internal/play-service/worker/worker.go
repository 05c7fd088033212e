package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/lottery-play-platform-poc/internal/play"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/banca"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/service"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/bus"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/metrics"
)

type Config struct {
	MaxAttempts int           // tentativas de registro na banca
	RetryDelay  time.Duration // espera fixa entre tentativas
}

// Worker consome PlayCreated do bus e despacha a jogada para a banca.
//
// Erros do adapter (rede/timeout) e respostas "pending" são re-tentados até
// o limite; rejeição é decisão de negócio definitiva e nunca re-tentada;
// erro de transição do agregado (ex.: webhook confirmou antes) é terminal
// para o evento: logado e descartado, pois re-tentar bateria no mesmo guard.
//
// Pior caso por jogada: MaxAttempts x (timeout do adapter + RetryDelay).
// Como o bus tem um único loop de drenagem, esse tempo atrasa eventos
// enfileirados atrás; limite operacional aceito neste escopo.
type Worker struct {
	log     *zap.Logger
	repo    play.Repository
	adapter banca.Adapter
	plays   *service.PlayService
	cfg     Config
}

func New(log *zap.Logger, repo play.Repository, adapter banca.Adapter, plays *service.PlayService, cfg Config) *Worker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Worker{log: log, repo: repo, adapter: adapter, plays: plays, cfg: cfg}
}

// Register inscreve o worker no bus.
func (w *Worker) Register(b *bus.Bus) {
	b.Subscribe(play.EventPlayCreated, w.HandlePlayCreated)
}

func (w *Worker) HandlePlayCreated(ctx context.Context, ev play.Event) error {
	created, ok := ev.(play.Created)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", ev.EventType())
	}
	log := w.log.With(zap.String("play_id", created.PlayID))

	// Recarrega pelo id: o payload do evento pode estar defasado
	p, err := w.repo.FindByID(ctx, created.PlayID)
	if errors.Is(err, play.ErrNotFound) {
		// bug de consistência de dados, não falha transiente; nunca re-tentar
		log.Error("play referenced by event does not exist, dropping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload play: %w", err)
	}

	if err := w.plays.MarkProcessingByID(ctx, p.ID); err != nil {
		var inv *play.InvalidTransitionError
		if errors.As(err, &inv) {
			// alguém (webhook) já moveu a jogada; nada a despachar
			log.Warn("play no longer pending, skipping dispatch", zap.String("status", string(inv.From)))
			return nil
		}
		return fmt.Errorf("mark processing: %w", err)
	}

	req := banca.RegisterRequest{
		RequestID: p.RequestID,
		Play: banca.PlayPayload{
			LotteryID: p.LotteryID,
			Numbers:   p.Numbers,
			BetType:   string(p.BetType),
			Amount:    p.Amount,
		},
		Payment: banca.PaymentPayload{
			Method:        p.Payment.Method,
			TransactionID: p.Payment.Reference,
		},
		User: banca.UserPayload{UserID: p.UserID},
	}

	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		metrics.DispatchAttempts.Inc()
		resp, err := w.adapter.RegisterPlay(ctx, req)
		if err != nil {
			lastErr = err
			log.Warn("banca register attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", w.cfg.MaxAttempts),
				zap.Error(err),
			)
			w.sleepBeforeRetry(ctx, attempt)
			continue
		}

		switch resp.Status {
		case banca.StatusConfirmed, banca.StatusAccepted:
			w.applyTransition(log, "confirm", func() error {
				return w.plays.ConfirmByID(ctx, p.ID, resp.PlayIDBanca, resp.TicketCode)
			})
			return nil
		case banca.StatusRejected:
			// decisão de negócio definitiva, sem retry
			w.applyTransition(log, "reject", func() error {
				return w.plays.RejectByID(ctx, p.ID, resp.Message)
			})
			return nil
		default: // pending
			lastErr = fmt.Errorf("banca still pending: %s", resp.Message)
			w.sleepBeforeRetry(ctx, attempt)
		}
	}

	// Esgotou sem confirmar nem rejeitar: FAILED, recuperação fica manual
	msg := "max retries exceeded"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	w.applyTransition(log, "fail", func() error {
		return w.plays.FailByID(ctx, p.ID, msg, w.cfg.MaxAttempts)
	})
	return nil
}

// applyTransition executa a transição e trata o guard do agregado: um
// escritor atrasado (corrida com o webhook) é logado e vira no-op.
func (w *Worker) applyTransition(log *zap.Logger, op string, fn func() error) {
	err := fn()
	if err == nil {
		return
	}
	var inv *play.InvalidTransitionError
	if errors.As(err, &inv) {
		log.Warn("late transition rejected by aggregate guard",
			zap.String("op", op),
			zap.String("current_status", string(inv.From)),
		)
		return
	}
	log.Error("apply transition", zap.String("op", op), zap.Error(err))
}

func (w *Worker) sleepBeforeRetry(ctx context.Context, attempt int) {
	if attempt >= w.cfg.MaxAttempts {
		return
	}
	select {
	case <-time.After(w.cfg.RetryDelay):
	case <-ctx.Done():
	}
}
