package banca

import (
	"context"

	"github.com/shopspring/decimal"
)

// Status retornado pela banca para um registro de jogada.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusAccepted  Status = "accepted" // aceita, confirmação virá por webhook
	StatusRejected  Status = "rejected"
	StatusPending   Status = "pending"
)

// RegisterRequest é o payload enviado à banca.
type RegisterRequest struct {
	RequestID string         `json:"requestId"`
	Play      PlayPayload    `json:"play"`
	Payment   PaymentPayload `json:"payment"`
	User      UserPayload    `json:"user"`
}

type PlayPayload struct {
	LotteryID string          `json:"lotteryId"`
	Numbers   []string        `json:"numbers"`
	BetType   string          `json:"betType"`
	Amount    decimal.Decimal `json:"amount"`
}

type PaymentPayload struct {
	Method        string `json:"method"`
	TransactionID string `json:"transactionId,omitempty"`
}

type UserPayload struct {
	UserID string `json:"userId"`
}

type RegisterResponse struct {
	Status      Status `json:"status"`
	PlayIDBanca string `json:"playIdBanca,omitempty"`
	TicketCode  string `json:"ticketCode,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Adapter é o contrato com a banca. O worker de despacho depende somente
// desta interface; trocar a integração concreta (ou o simulador) não muda a
// lógica do worker. Timeouts de transporte são responsabilidade do adapter;
// o retry de negócio fica no worker.
type Adapter interface {
	RegisterPlay(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	CheckStatus(ctx context.Context, playIDBanca string) (*RegisterResponse, error)
	IsHealthy(ctx context.Context) bool
}
