package producer

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/lottery-play-platform-poc/internal/play"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/bus"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/kafka"
	cevents "github.com/radieske/lottery-play-platform-poc/pkg/contracts/events"
)

// KafkaMirror assina os eventos do bus interno e os replica nos tópicos
// Kafka para consumidores downstream (auditoria, liquidação). O bus interno
// continua sendo o gatilho do despacho; Kafka é só fan-out.
type KafkaMirror struct {
	log       *zap.Logger
	created   *kafkago.Writer
	confirmed *kafkago.Writer
	rejected  *kafkago.Writer
	failed    *kafkago.Writer
}

func NewKafkaMirror(log *zap.Logger, created, confirmed, rejected, failed *kafkago.Writer) *KafkaMirror {
	return &KafkaMirror{log: log, created: created, confirmed: confirmed, rejected: rejected, failed: failed}
}

// Register inscreve o mirror em todos os eventos de ciclo de vida.
func (m *KafkaMirror) Register(b *bus.Bus) {
	b.Subscribe(play.EventPlayCreated, m.Handle)
	b.Subscribe(play.EventPlayConfirmed, m.Handle)
	b.Subscribe(play.EventPlayRejected, m.Handle)
	b.Subscribe(play.EventPlayFailed, m.Handle)
}

func (m *KafkaMirror) Handle(ctx context.Context, ev play.Event) error {
	switch e := ev.(type) {
	case play.Created:
		return m.write(ctx, m.created, e.PlayID, cevents.PlayCreated{
			PlayID:    e.PlayID,
			RequestID: e.RequestID,
			UserID:    e.UserID,
			LotteryID: e.LotteryID,
			Amount:    e.Amount.String(),
			TsUnixMs:  e.At.UnixMilli(),
		})
	case play.Confirmed:
		return m.write(ctx, m.confirmed, e.PlayID, cevents.PlayConfirmed{
			PlayID:      e.PlayID,
			PlayIDBanca: e.PlayIDBanca,
			TicketCode:  e.TicketCode,
			Ts:          e.At,
		})
	case play.Rejected:
		return m.write(ctx, m.rejected, e.PlayID, cevents.PlayRejected{
			PlayID: e.PlayID,
			Reason: e.Reason,
			Ts:     e.At,
		})
	case play.Failed:
		return m.write(ctx, m.failed, e.PlayID, cevents.PlayFailed{
			PlayID:     e.PlayID,
			Error:      e.Err,
			RetryCount: e.RetryCount,
			Ts:         e.At,
		})
	default:
		return fmt.Errorf("no kafka topic for event %s", ev.EventType())
	}
}

func (m *KafkaMirror) write(ctx context.Context, w *kafkago.Writer, key string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := kafka.WriteJSON(ctx, w, key, b); err != nil {
		return fmt.Errorf("kafka write %s: %w", w.Topic, err)
	}
	return nil
}
