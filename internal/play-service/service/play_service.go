package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/lottery-play-platform-poc/internal/play"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/metrics"
)

// Publisher é a porta de publicação de eventos de domínio (bus em memória).
type Publisher interface {
	Publish(ev play.Event)
}

// DuplicateGuard é o atalho consultivo de detecção de reenvio (Redis).
// Nunca é usado como mecanismo de exclusão.
type DuplicateGuard interface {
	FirstSubmission(ctx context.Context, requestID string) bool
}

// CreatePlayInput carrega os dados validados de uma submissão.
type CreatePlayInput struct {
	RequestID string
	UserID    string
	LotteryID string
	Numbers   []string
	BetType   play.BetType
	Amount    decimal.Decimal
	Currency  play.Currency
	Payment   play.Payment
	BancaID   string
}

// PlayService orquestra criação idempotente e transições de estado,
// publicando os eventos correspondentes no bus.
type PlayService struct {
	log   *zap.Logger
	repo  play.Repository
	bus   Publisher
	guard DuplicateGuard // opcional
}

func New(log *zap.Logger, repo play.Repository, bus Publisher, guard DuplicateGuard) *PlayService {
	return &PlayService{log: log, repo: repo, bus: bus, guard: guard}
}

// CreatePlay é idempotente por requestId: para N >= 1 chamadas com o mesmo
// requestId existe exatamente uma jogada persistida e todas as chamadas
// observam o mesmo playId. Só a primeira publica PlayCreated.
func (s *PlayService) CreatePlay(ctx context.Context, in CreatePlayInput) (*play.Play, bool, error) {
	if s.guard != nil && !s.guard.FirstSubmission(ctx, in.RequestID) {
		if existing, err := s.repo.FindByRequestID(ctx, in.RequestID); err == nil {
			metrics.PlaysIdempotentHits.Inc()
			return existing, false, nil
		}
		// guard viu o requestId mas a linha ainda não apareceu; segue o
		// caminho normal e deixa a constraint única resolver
	}

	existing, err := s.repo.FindByRequestID(ctx, in.RequestID)
	if err == nil {
		metrics.PlaysIdempotentHits.Inc()
		return existing, false, nil
	}
	if !errors.Is(err, play.ErrNotFound) {
		return nil, false, err
	}

	p, err := play.New(in.RequestID, in.UserID, in.LotteryID, in.Numbers, in.BetType, in.Amount, in.Currency, in.Payment)
	if err != nil {
		return nil, false, err
	}
	if in.BancaID != "" {
		p.AssignBanca(in.BancaID)
	}

	saved, err := s.repo.Save(ctx, p)
	if err != nil {
		return nil, false, fmt.Errorf("save play: %w", err)
	}
	if saved.ID != p.ID {
		// outra chamada venceu a corrida no request_id; nada a publicar
		metrics.PlaysIdempotentHits.Inc()
		return saved, false, nil
	}

	s.bus.Publish(play.NewCreated(saved))
	metrics.PlaysCreated.Inc()
	s.log.Info("play created",
		zap.String("play_id", saved.ID),
		zap.String("request_id", saved.RequestID),
		zap.String("lottery_id", saved.LotteryID),
	)
	return saved, true, nil
}

func (s *PlayService) GetPlay(ctx context.Context, id string) (*play.Play, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *PlayService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*play.Play, error) {
	return s.repo.FindByUserID(ctx, userID, limit, offset)
}

// MarkProcessingByID move a jogada para PROCESSING antes do despacho.
// Não publica evento.
func (s *PlayService) MarkProcessingByID(ctx context.Context, id string) error {
	return s.transitionByID(ctx, id, func(p *play.Play) error {
		return p.MarkProcessing()
	}, nil)
}

// ConfirmByID aplica a confirmação vinda do worker de despacho.
func (s *PlayService) ConfirmByID(ctx context.Context, id, playIDBanca, ticketCode string) error {
	return s.transitionByID(ctx, id, func(p *play.Play) error {
		return p.Confirm(playIDBanca, ticketCode)
	}, func(p *play.Play) play.Event {
		metrics.PlayOutcomes.WithLabelValues(string(play.StatusConfirmed)).Inc()
		return play.NewConfirmed(p.ID, playIDBanca, ticketCode)
	})
}

// ConfirmByRequestID é o caminho do webhook: a banca conhece o requestId.
func (s *PlayService) ConfirmByRequestID(ctx context.Context, requestID, playIDBanca, ticketCode string) error {
	p, err := s.repo.FindByRequestID(ctx, requestID)
	if err != nil {
		return err
	}
	return s.ConfirmByID(ctx, p.ID, playIDBanca, ticketCode)
}

func (s *PlayService) RejectByID(ctx context.Context, id, reason string) error {
	return s.transitionByID(ctx, id, func(p *play.Play) error {
		return p.Reject(reason)
	}, func(p *play.Play) play.Event {
		metrics.PlayOutcomes.WithLabelValues(string(play.StatusRejected)).Inc()
		return play.NewRejected(p.ID, reason)
	})
}

func (s *PlayService) RejectByRequestID(ctx context.Context, requestID, reason string) error {
	p, err := s.repo.FindByRequestID(ctx, requestID)
	if err != nil {
		return err
	}
	return s.RejectByID(ctx, p.ID, reason)
}

// FailByID encerra a jogada após o worker esgotar as tentativas.
func (s *PlayService) FailByID(ctx context.Context, id, reason string, retryCount int) error {
	return s.transitionByID(ctx, id, func(p *play.Play) error {
		return p.Fail(reason)
	}, func(p *play.Play) play.Event {
		metrics.PlayOutcomes.WithLabelValues(string(play.StatusFailed)).Inc()
		return play.NewFailed(p.ID, reason, retryCount)
	})
}

// transitionByID recarrega, aplica a transição, persiste e publica o evento.
// Erros de transição sobem intactos para o chamador decidir (o worker e o
// webhook tratam escrita atrasada como no-op logado).
func (s *PlayService) transitionByID(ctx context.Context, id string, apply func(*play.Play) error, event func(*play.Play) play.Event) error {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := apply(p); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	if event != nil {
		s.bus.Publish(event(p))
	}
	return nil
}
