package play

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status do ciclo de vida de uma jogada.
// PENDING -> PROCESSING -> {CONFIRMED, REJECTED, FAILED}
// CANCELLED é terminal reservado (fluxo operacional futuro).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusRejected   Status = "rejected"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal indica se o status não admite mais transições.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusRejected, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Modalidades de aposta aceitas pelas bancas.
type BetType string

const (
	BetQuiniela BetType = "quiniela"
	BetPale     BetType = "pale"
	BetTripleta BetType = "tripleta"
	BetPega3    BetType = "pega3"
	BetToca3    BetType = "toca3"
	BetStraight BetType = "straight"
	BetBox      BetType = "box"
)

type Currency string

const (
	CurrencyDOP Currency = "DOP"
	CurrencyUSD Currency = "USD"
)

// Payment referencia o pagamento já efetuado antes da criação da jogada.
type Payment struct {
	Method    string // "wallet" | "card" | "bank"
	Reference string // id da transação no meio de pagamento
}

// Play é a raiz de agregado da jogada. Os campos são exportados para
// mapeamento de persistência, mas toda mudança de estado passa pelos
// métodos de transição abaixo.
type Play struct {
	ID          string
	RequestID   string // chave de idempotência fornecida pelo cliente, única
	UserID      string
	LotteryID   string
	Numbers     []string
	BetType     BetType
	Amount      decimal.Decimal
	Currency    Currency
	Payment     Payment
	Status      Status
	PlayIDBanca string // preenchido somente na confirmação
	TicketCode  string // preenchido somente na confirmação
	BancaID     string // banca designada, opcional
	LastReason  string // último motivo de rejeição/falha, retido após reload
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	MinNumbers = 1
	MaxNumbers = 10
)

// New valida a entrada e constrói uma jogada em PENDING.
func New(requestID, userID, lotteryID string, numbers []string, betType BetType, amount decimal.Decimal, currency Currency, payment Payment) (*Play, error) {
	if requestID == "" {
		return nil, &ValidationError{Field: "requestId", Reason: "required"}
	}
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "required"}
	}
	if lotteryID == "" {
		return nil, &ValidationError{Field: "lotteryId", Reason: "required"}
	}
	if len(numbers) < MinNumbers || len(numbers) > MaxNumbers {
		return nil, &ValidationError{Field: "numbers", Reason: "must contain 1 to 10 tokens"}
	}
	for _, n := range numbers {
		if n == "" {
			return nil, &ValidationError{Field: "numbers", Reason: "empty token"}
		}
	}
	if amount.LessThan(decimal.NewFromInt(1)) {
		return nil, &ValidationError{Field: "amount", Reason: "must be >= 1"}
	}
	if payment.Method == "" {
		return nil, &ValidationError{Field: "payment.method", Reason: "required"}
	}

	now := time.Now().UTC()
	return &Play{
		ID:        uuid.NewString(),
		RequestID: requestID,
		UserID:    userID,
		LotteryID: lotteryID,
		Numbers:   numbers,
		BetType:   betType,
		Amount:    amount,
		Currency:  currency,
		Payment:   payment,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkProcessing move PENDING -> PROCESSING. Usado pelo worker antes da
// primeira tentativa na banca.
func (p *Play) MarkProcessing() error {
	if p.Status != StatusPending {
		return &InvalidTransitionError{PlayID: p.ID, From: p.Status, To: StatusProcessing}
	}
	p.Status = StatusProcessing
	p.touch()
	return nil
}

// Confirm encerra a jogada como CONFIRMED e grava os identificadores da
// banca. playIDBanca e ticketCode são write-once: só este método os define.
func (p *Play) Confirm(playIDBanca, ticketCode string) error {
	if p.Status != StatusPending && p.Status != StatusProcessing {
		return &InvalidTransitionError{PlayID: p.ID, From: p.Status, To: StatusConfirmed}
	}
	p.Status = StatusConfirmed
	p.PlayIDBanca = playIDBanca
	p.TicketCode = ticketCode
	p.touch()
	return nil
}

// Reject encerra a jogada como REJECTED (decisão de negócio da banca,
// nunca re-tentada).
func (p *Play) Reject(reason string) error {
	if p.Status != StatusPending && p.Status != StatusProcessing {
		return &InvalidTransitionError{PlayID: p.ID, From: p.Status, To: StatusRejected}
	}
	p.Status = StatusRejected
	p.LastReason = reason
	p.touch()
	return nil
}

// Fail encerra a jogada como FAILED após esgotar as tentativas de despacho.
func (p *Play) Fail(reason string) error {
	if p.Status != StatusPending && p.Status != StatusProcessing {
		return &InvalidTransitionError{PlayID: p.ID, From: p.Status, To: StatusFailed}
	}
	p.Status = StatusFailed
	p.LastReason = reason
	p.touch()
	return nil
}

// AssignBanca designa a banca responsável. Não é transição de status.
func (p *Play) AssignBanca(bancaID string) {
	p.BancaID = bancaID
	p.touch()
}

func (p *Play) touch() {
	p.UpdatedAt = time.Now().UTC()
}
