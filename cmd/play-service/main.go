package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/lottery-play-platform-poc/internal/play-service/banca"
	phttp "github.com/radieske/lottery-play-platform-poc/internal/play-service/http"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/idem"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/producer"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/repo"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/service"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/webhook"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/worker"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/bus"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/cache"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/config"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/db"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/kafka"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/logger"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres: sistema de registro das jogadas (índice único em request_id)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: guard consultivo de reenvio
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}

	// Kafka writers: fan-out do ciclo de vida para workers downstream
	createdWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPlayCreated)
	confirmedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPlayConfirmed)
	rejectedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPlayRejected)
	failedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPlayFailed)
	defer createdWriter.Close()
	defer confirmedWriter.Close()
	defer rejectedWriter.Close()
	defer failedWriter.Close()

	// Bus interno: um único dono, criado no boot, injetado por referência
	eventBus := bus.New(log)

	repository := repo.NewPostgres(pg)
	guard := idem.New(log, rdb, 30*time.Second)
	plays := service.New(log, repository, eventBus, guard)

	// Adapter da banca (trocável pelo simulador via BANCA_API_URL)
	adapter := banca.NewAPIAdapter(log, cfg.BancaAPIURL, cfg.BancaHMACSecret, cfg.BancaTimeout)

	// Worker de despacho consome PlayCreated do bus
	dispatch := worker.New(log, repository, adapter, plays, worker.Config{
		MaxAttempts: cfg.WorkerMaxRetries,
		RetryDelay:  cfg.WorkerRetryDelay,
	})
	dispatch.Register(eventBus)

	// Mirror replica os eventos nos tópicos Kafka
	mirror := producer.NewKafkaMirror(log, createdWriter, confirmedWriter, rejectedWriter, failedWriter)
	mirror.Register(eventBus)

	ctx := context.Background()
	eventBus.Start(ctx)
	defer eventBus.Close()

	// Webhook de confirmação assinado pela banca
	wh := webhook.NewHandler(log, plays, cfg.HMACSecret, cfg.TimestampTolerance)

	api := phttp.NewServer(log, plays, wh)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health: inclui a saúde da banca junto com pg/redis
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		if !adapter.IsHealthy(ctx) {
			return fmt.Errorf("banca unreachable")
		}
		return nil
	})

	log.Info("play-service listening",
		zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)),
		zap.String("banca_api", cfg.BancaAPIURL),
		zap.Int("worker_max_retries", cfg.WorkerMaxRetries),
	)
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
