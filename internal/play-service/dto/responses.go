package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreatePlayResponse struct {
	PlayID                string    `json:"playId"`
	Status                string    `json:"status"`
	TicketCode            string    `json:"ticketCode,omitempty"`
	EstimatedConfirmation string    `json:"estimatedConfirmation,omitempty"` // só enquanto pending
	CreatedAt             time.Time `json:"createdAt"`
}

type PlayResponse struct {
	PlayID      string          `json:"playId"`
	RequestID   string          `json:"requestId"`
	UserID      string          `json:"userId"`
	LotteryID   string          `json:"lotteryId"`
	Numbers     []string        `json:"numbers"`
	BetType     string          `json:"betType"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	PlayIDBanca string          `json:"playIdBanca,omitempty"`
	TicketCode  string          `json:"ticketCode,omitempty"`
	BancaID     string          `json:"bancaId,omitempty"`
	LastReason  string          `json:"lastReason,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
