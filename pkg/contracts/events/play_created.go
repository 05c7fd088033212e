package events

// Evento publicado no tópico "play_created" após a criação idempotente.
type PlayCreated struct {
	PlayID    string `json:"play_id"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	LotteryID string `json:"lottery_id"`
	Amount    string `json:"amount"` // decimal serializado como string
	TsUnixMs  int64  `json:"ts_unix_ms"`
}
