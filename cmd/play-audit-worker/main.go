package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/lottery-play-platform-poc/internal/shared/config"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/db"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/kafka"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/logger"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/metrics"
	cevents "github.com/radieske/lottery-play-platform-poc/pkg/contracts/events"
)

// play-audit-worker consome os tópicos de desfecho e grava a trilha de
// auditoria. Mensagens não decodificáveis vão para a DLQ e não bloqueiam o
// consumo.
func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	reader := kafka.NewGroupReader(cfg.KafkaBrokers, "play-audit", []string{
		cfg.TopicPlayConfirmed,
		cfg.TopicPlayRejected,
		cfg.TopicPlayFailed,
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPlayOutcomesDLQ)
	defer dlqWriter.Close()

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	log.Info("play-audit-worker started",
		zap.Strings("topics", []string{cfg.TopicPlayConfirmed, cfg.TopicPlayRejected, cfg.TopicPlayFailed}),
	)

	ctx := context.Background()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		if err := auditOne(ctx, pg, cfg, &msg); err != nil {
			log.Error("audit message",
				zap.String("topic", msg.Topic),
				zap.String("key", string(msg.Key)),
				zap.Error(err),
			)
			if derr := kafka.WriteJSON(ctx, dlqWriter, string(msg.Key), msg.Value); derr != nil {
				log.Error("dlq write", zap.Error(derr))
			}
		}
	}
}

// auditOne decodifica o evento conforme o tópico e insere a linha de auditoria.
func auditOne(ctx context.Context, pg *sql.DB, cfg config.Config, msg *kafkago.Message) error {
	switch msg.Topic {
	case cfg.TopicPlayConfirmed:
		var ev cevents.PlayConfirmed
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("unmarshal play_confirmed: %w", err)
		}
		return insertAudit(ctx, pg, ev.PlayID, "play.confirmed", "confirmed", "", ev.PlayIDBanca)
	case cfg.TopicPlayRejected:
		var ev cevents.PlayRejected
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("unmarshal play_rejected: %w", err)
		}
		return insertAudit(ctx, pg, ev.PlayID, "play.rejected", "rejected", ev.Reason, "")
	case cfg.TopicPlayFailed:
		var ev cevents.PlayFailed
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("unmarshal play_failed: %w", err)
		}
		return insertAudit(ctx, pg, ev.PlayID, "play.failed", "failed", ev.Error, "")
	default:
		return fmt.Errorf("unexpected topic %s", msg.Topic)
	}
}

func insertAudit(ctx context.Context, pg *sql.DB, playID, eventType, status, reason, providerRef string) error {
	_, err := pg.ExecContext(ctx, `
		INSERT INTO play_audit (play_id, event_type, status, reason, provider_ref, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW())`,
		playID, eventType, status, reason, providerRef,
	)
	return err
}
