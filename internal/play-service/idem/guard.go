package idem

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Guard detecta reenvios rápidos do mesmo requestId via SETNX no Redis.
//
// É um atalho consultivo, não um lock: quem não adquire a chave apenas cai
// no caminho de lookup do serviço, e a exclusão real vem da constraint única
// de request_id no Postgres. Indisponibilidade do Redis nunca bloqueia a
// criação.
type Guard struct {
	log *zap.Logger
	rdb *redis.Client
	ttl time.Duration
}

func New(log *zap.Logger, rdb *redis.Client, ttl time.Duration) *Guard {
	return &Guard{log: log, rdb: rdb, ttl: ttl}
}

// FirstSubmission retorna false quando o requestId foi visto há pouco; o
// chamador deve então buscar a jogada existente em vez de criar outra.
func (g *Guard) FirstSubmission(ctx context.Context, requestID string) bool {
	ok, err := g.rdb.SetNX(ctx, "idempotency:"+requestID, "1", g.ttl).Result()
	if err != nil {
		g.log.Warn("idempotency guard unavailable", zap.Error(err))
		return true
	}
	return ok
}
