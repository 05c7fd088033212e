package events

import "time"

// Eventos emitidos quando uma jogada atinge estado terminal. Consumidos
// pelo play-audit-worker e por qualquer worker downstream (liquidação etc).

type PlayConfirmed struct {
	PlayID      string    `json:"play_id"`
	PlayIDBanca string    `json:"play_id_banca"`
	TicketCode  string    `json:"ticket_code"`
	Ts          time.Time `json:"ts"`
}

type PlayRejected struct {
	PlayID string    `json:"play_id"`
	Reason string    `json:"reason,omitempty"`
	Ts     time.Time `json:"ts"`
}

type PlayFailed struct {
	PlayID     string    `json:"play_id"`
	Error      string    `json:"error"`
	RetryCount int       `json:"retry_count"`
	Ts         time.Time `json:"ts"`
}
