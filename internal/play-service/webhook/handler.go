package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Caminho assinado pela banca nas confirmações.
const ConfirmationPath = "/webhooks/plays/confirmation"

var (
	// ErrUnauthorized indica assinatura HMAC inválida.
	ErrUnauthorized = errors.New("invalid webhook signature")
	// ErrStaleRequest indica timestamp fora da janela de tolerância. É a
	// única defesa contra replay: a assinatura sozinha é determinística e
	// re-apresentável para sempre.
	ErrStaleRequest = errors.New("webhook timestamp out of range")
)

// Confirmation é o corpo enviado pela banca.
type Confirmation struct {
	RequestID   string `json:"requestId"`
	PlayIDBanca string `json:"playIdBanca"`
	TicketCode  string `json:"ticketCode"`
	Status      string `json:"status"` // "confirmed" | "rejected"
	Reason      string `json:"reason,omitempty"`
}

type Response struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	ProcessedAt time.Time `json:"processedAt"`
}

// PlayTransitions é o recorte do serviço de jogadas que o webhook usa.
type PlayTransitions interface {
	ConfirmByRequestID(ctx context.Context, requestID, playIDBanca, ticketCode string) error
	RejectByRequestID(ctx context.Context, requestID, reason string) error
}

// Handler autentica e aplica confirmações assíncronas da banca.
// Duas verificações precedem qualquer mudança de estado, nesta ordem:
// assinatura HMAC sobre os bytes crus recebidos, depois janela de frescor
// do timestamp (ambas as direções).
type Handler struct {
	log       *zap.Logger
	plays     PlayTransitions
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewHandler(log *zap.Logger, plays PlayTransitions, secret string, tolerance time.Duration) *Handler {
	return &Handler{
		log:       log,
		plays:     plays,
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Process valida e aplica uma confirmação. body são os bytes crus da
// requisição; assinar uma re-serialização quebraria chamadores legítimos
// sempre que ordem de campos ou espaços divergissem.
func (h *Handler) Process(ctx context.Context, method, path, signature, timestamp string, body []byte) (*Response, error) {
	if err := h.verifySignature(method, path, timestamp, body, signature); err != nil {
		return nil, err
	}
	if err := h.verifyFreshness(timestamp); err != nil {
		return nil, err
	}

	var conf Confirmation
	if err := json.Unmarshal(body, &conf); err != nil {
		return nil, fmt.Errorf("decode confirmation: %w", err)
	}

	switch conf.Status {
	case "confirmed":
		if err := h.plays.ConfirmByRequestID(ctx, conf.RequestID, conf.PlayIDBanca, conf.TicketCode); err != nil {
			return nil, err
		}
	case "rejected":
		if err := h.plays.RejectByRequestID(ctx, conf.RequestID, conf.Reason); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported confirmation status %q", conf.Status)
	}

	h.log.Info("webhook confirmation applied",
		zap.String("request_id", conf.RequestID),
		zap.String("status", conf.Status),
	)
	return &Response{
		Success:     true,
		Message:     fmt.Sprintf("Play %s successfully processed", conf.Status),
		ProcessedAt: h.now().UTC(),
	}, nil
}

// Signature calcula o HMAC-SHA256 em base64 sobre {method}{path}{timestamp}{body}.
func (h *Handler) Signature(method, path, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (h *Handler) verifySignature(method, path, timestamp string, body []byte, signature string) error {
	provided, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrUnauthorized
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	// comparação em tempo constante; != simples vazaria timing
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return ErrUnauthorized
	}
	return nil
}

// verifyFreshness rejeita igualmente replay antigo e relógio adiantado.
func (h *Handler) verifyFreshness(timestamp string) error {
	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return ErrStaleRequest
	}
	diff := h.now().Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	if diff > h.tolerance {
		return ErrStaleRequest
	}
	return nil
}
