package play

import (
	"errors"
	"fmt"
)

// ErrNotFound indica jogada inexistente (por id ou requestId).
var ErrNotFound = errors.New("play not found")

// ValidationError rejeita entrada inválida antes de chegar ao pipeline.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError sinaliza uma transição fora da máquina de estados.
// É o mecanismo que transforma um escritor atrasado (worker vs webhook) em
// no-op seguro: quem chega depois de um estado terminal recebe este erro e
// deve logar e parar, sem novos efeitos colaterais. Nunca deve ser re-tentado.
type InvalidTransitionError struct {
	PlayID string
	From   Status
	To     Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("play %s: cannot transition from %s to %s", e.PlayID, e.From, e.To)
}
