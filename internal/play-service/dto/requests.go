package dto

import "github.com/shopspring/decimal"

type PaymentInput struct {
	Method    string `json:"method"`    // "wallet" | "card" | "bank"
	Reference string `json:"reference"` // id da transação, opcional p/ card
}

type CreatePlayRequest struct {
	RequestID string          `json:"requestId"` // UUIDv4, chave de idempotência
	UserID    string          `json:"userId"`
	LotteryID string          `json:"lotteryId"`
	Numbers   []string        `json:"numbers"` // 1..10 tokens
	BetType   string          `json:"betType"`
	Amount    decimal.Decimal `json:"amount"` // >= 1
	Currency  string          `json:"currency"`
	Payment   PaymentInput    `json:"payment"`
	BancaID   string          `json:"bancaId,omitempty"`
}
