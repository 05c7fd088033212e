package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Métricas do pipeline de jogadas. Registradas no registry default,
// expostas pelo servidor de métricas de cada serviço.
var (
	PlaysCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plays_created_total",
		Help: "Jogadas criadas (primeira submissão, não conta retries idempotentes)",
	})

	PlaysIdempotentHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plays_idempotent_hits_total",
		Help: "Criações que retornaram jogada já existente pelo requestId",
	})

	PlayOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "play_outcomes_total",
		Help: "Jogadas por estado terminal",
	}, []string{"status"})

	DispatchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "play_dispatch_attempts_total",
		Help: "Tentativas de registro na banca feitas pelo worker",
	})

	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "play_webhook_requests_total",
		Help: "Webhooks de confirmação recebidos, por resultado",
	}, []string{"result"})
)
