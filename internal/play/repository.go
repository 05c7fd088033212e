package play

import "context"

// Repository é a porta de persistência das jogadas.
//
// Save deve respeitar a unicidade do requestId: se outra jogada com o mesmo
// requestId já estiver persistida (inclusive por uma escrita concorrente),
// a implementação retorna a linha vencedora em vez de inserir outra. É a
// constraint de unicidade, não lock de aplicação, que garante a exclusão.
type Repository interface {
	Save(ctx context.Context, p *Play) (*Play, error)
	FindByID(ctx context.Context, id string) (*Play, error)
	FindByRequestID(ctx context.Context, requestID string) (*Play, error)
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*Play, error)
	Update(ctx context.Context, p *Play) error
}
