package dto

import "github.com/shopspring/decimal"

// Payload recebido do play-service em /v1/plays/register.
type RegisterReq struct {
	RequestID string `json:"requestId"`
	Play      struct {
		LotteryID string          `json:"lotteryId"`
		Numbers   []string        `json:"numbers"`
		BetType   string          `json:"betType"`
		Amount    decimal.Decimal `json:"amount"`
	} `json:"play"`
	Payment struct {
		Method        string `json:"method"`
		TransactionID string `json:"transactionId,omitempty"`
	} `json:"payment"`
	User struct {
		UserID string `json:"userId"`
	} `json:"user"`
}

type RegisterResp struct {
	Status      string `json:"status"` // confirmed | rejected | pending
	PlayIDBanca string `json:"playIdBanca,omitempty"`
	TicketCode  string `json:"ticketCode,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Corpo do webhook assinado enviado de volta ao play-service.
type WebhookConfirmation struct {
	RequestID   string `json:"requestId"`
	PlayIDBanca string `json:"playIdBanca"`
	TicketCode  string `json:"ticketCode"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

const (
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusPending   = "pending"
)
