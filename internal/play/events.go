package play

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de evento de domínio publicados no bus interno.
const (
	EventPlayCreated   = "play.created"
	EventPlayConfirmed = "play.confirmed"
	EventPlayRejected  = "play.rejected"
	EventPlayFailed    = "play.failed"
)

// Event é a variante etiquetada que trafega no bus interno.
type Event interface {
	EventType() string
	OccurredAt() time.Time
}

type Created struct {
	At        time.Time
	PlayID    string
	RequestID string
	UserID    string
	LotteryID string
	Amount    decimal.Decimal
}

func NewCreated(p *Play) Created {
	return Created{
		At:        time.Now().UTC(),
		PlayID:    p.ID,
		RequestID: p.RequestID,
		UserID:    p.UserID,
		LotteryID: p.LotteryID,
		Amount:    p.Amount,
	}
}

func (e Created) EventType() string     { return EventPlayCreated }
func (e Created) OccurredAt() time.Time { return e.At }

type Confirmed struct {
	At          time.Time
	PlayID      string
	PlayIDBanca string
	TicketCode  string
}

func NewConfirmed(playID, playIDBanca, ticketCode string) Confirmed {
	return Confirmed{At: time.Now().UTC(), PlayID: playID, PlayIDBanca: playIDBanca, TicketCode: ticketCode}
}

func (e Confirmed) EventType() string     { return EventPlayConfirmed }
func (e Confirmed) OccurredAt() time.Time { return e.At }

type Rejected struct {
	At     time.Time
	PlayID string
	Reason string
}

func NewRejected(playID, reason string) Rejected {
	return Rejected{At: time.Now().UTC(), PlayID: playID, Reason: reason}
}

func (e Rejected) EventType() string     { return EventPlayRejected }
func (e Rejected) OccurredAt() time.Time { return e.At }

type Failed struct {
	At         time.Time
	PlayID     string
	Err        string
	RetryCount int
}

func NewFailed(playID, errMsg string, retryCount int) Failed {
	return Failed{At: time.Now().UTC(), PlayID: playID, Err: errMsg, RetryCount: retryCount}
}

func (e Failed) EventType() string     { return EventPlayFailed }
func (e Failed) OccurredAt() time.Time { return e.At }
