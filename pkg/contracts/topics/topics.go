package topics

const (
	// Ciclo de vida das jogadas
	PlayCreated   = "play_created"
	PlayConfirmed = "play_confirmed"
	PlayRejected  = "play_rejected"
	PlayFailed    = "play_failed"

	// DLQ
	PlayOutcomesDLQ = "play_outcomes_dlq"
)
