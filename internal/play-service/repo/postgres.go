package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/lottery-play-platform-poc/internal/play"
)

// uniqueViolation é o SQLSTATE de violação de constraint única.
const uniqueViolation = "23505"

// Postgres implementa play.Repository sobre a tabela plays.
// O índice único em request_id é o mecanismo real de idempotência da criação.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Save insere a jogada. Se o request_id já existir (outra chamada venceu a
// corrida), retorna a linha vencedora em vez de erro; chamadas concorrentes
// convergem para um único playId.
func (r *Postgres) Save(ctx context.Context, p *play.Play) (*play.Play, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO plays (
			id, request_id, user_id, lottery_id, numbers, bet_type, amount,
			currency, payment_method, payment_reference, status, banca_id,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, p.RequestID, p.UserID, p.LotteryID, pq.Array(p.Numbers),
		string(p.BetType), p.Amount.String(), string(p.Currency),
		p.Payment.Method, p.Payment.Reference, string(p.Status),
		nullable(p.BancaID), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return r.FindByRequestID(ctx, p.RequestID)
		}
		return nil, fmt.Errorf("insert play: %w", err)
	}
	return p, nil
}

func (r *Postgres) FindByID(ctx context.Context, id string) (*play.Play, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectPlay+` WHERE id=$1`, id))
}

func (r *Postgres) FindByRequestID(ctx context.Context, requestID string) (*play.Play, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectPlay+` WHERE request_id=$1`, requestID))
}

func (r *Postgres) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*play.Play, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPlay+` WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query plays by user: %w", err)
	}
	defer rows.Close()

	var out []*play.Play
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update grava o resultado das transições de estado. Campos imutáveis
// (request_id, numbers, amount...) ficam de fora de propósito.
func (r *Postgres) Update(ctx context.Context, p *play.Play) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE plays SET
			status=$1, play_id_banca=$2, ticket_code=$3, banca_id=$4,
			last_reason=$5, updated_at=$6
		WHERE id=$7`,
		string(p.Status), nullable(p.PlayIDBanca), nullable(p.TicketCode),
		nullable(p.BancaID), nullable(p.LastReason), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update play: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return play.ErrNotFound
	}
	return nil
}

const selectPlay = `
	SELECT id, request_id, user_id, lottery_id, numbers, bet_type, amount,
	       currency, payment_method, payment_reference, status,
	       play_id_banca, ticket_code, banca_id, last_reason,
	       created_at, updated_at
	FROM plays`

type rowScanner interface{ Scan(dest ...any) error }

func (r *Postgres) scanOne(row *sql.Row) (*play.Play, error) {
	p, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, play.ErrNotFound
	}
	return p, err
}

func scan(row rowScanner) (*play.Play, error) {
	var (
		p          play.Play
		numbers    pq.StringArray
		amount     string
		betType    string
		currency   string
		status     string
		playIDB    sql.NullString
		ticketCode sql.NullString
		bancaID    sql.NullString
		lastReason sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.RequestID, &p.UserID, &p.LotteryID, &numbers, &betType,
		&amount, &currency, &p.Payment.Method, &p.Payment.Reference, &status,
		&playIDB, &ticketCode, &bancaID, &lastReason, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Numbers = numbers
	p.BetType = play.BetType(betType)
	p.Currency = play.Currency(currency)
	p.Status = play.Status(status)
	p.PlayIDBanca = playIDB.String
	p.TicketCode = ticketCode.String
	p.BancaID = bancaID.String
	p.LastReason = lastReason.String
	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &p, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
