package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/lottery-play-platform-poc/internal/play"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/dto"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/service"
	"github.com/radieske/lottery-play-platform-poc/internal/play-service/webhook"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/metrics"
)

// estimativa devolvida ao cliente enquanto a confirmação não chega
const estimatedConfirmationWindow = 30 * time.Second

type Server struct {
	log   *zap.Logger
	plays *service.PlayService
	wh    *webhook.Handler
}

func NewServer(log *zap.Logger, plays *service.PlayService, wh *webhook.Handler) *Server {
	return &Server{log: log, plays: plays, wh: wh}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/plays", s.playsCollection)                        // POST cria, GET lista por usuário
	mux.HandleFunc("/plays/", s.getPlay)                               // GET /plays/{id}
	mux.HandleFunc(webhook.ConfirmationPath, s.webhookConfirmation)    // POST banca -> sistema
	return mux
}

func (s *Server) playsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createPlay(w, r)
	case http.MethodGet:
		s.listPlays(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) createPlay(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(req.RequestID); err != nil {
		http.Error(w, "requestId must be a UUID", http.StatusBadRequest)
		return
	}

	p, _, err := s.plays.CreatePlay(r.Context(), service.CreatePlayInput{
		RequestID: req.RequestID,
		UserID:    req.UserID,
		LotteryID: req.LotteryID,
		Numbers:   req.Numbers,
		BetType:   play.BetType(req.BetType),
		Amount:    req.Amount,
		Currency:  play.Currency(req.Currency),
		Payment:   play.Payment{Method: req.Payment.Method, Reference: req.Payment.Reference},
		BancaID:   req.BancaID,
	})
	if err != nil {
		var verr *play.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error("create play", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := dto.CreatePlayResponse{
		PlayID:     p.ID,
		Status:     string(p.Status),
		TicketCode: p.TicketCode,
		CreatedAt:  p.CreatedAt,
	}
	if p.Status == play.StatusPending {
		resp.EstimatedConfirmation = time.Now().UTC().Add(estimatedConfirmationWindow).Format(time.RFC3339)
	}
	writeJSON(w, resp)
}

func (s *Server) listPlays(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	plays, err := s.plays.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		s.log.Error("list plays", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]dto.PlayResponse, 0, len(plays))
	for _, p := range plays {
		out = append(out, toPlayResponse(p))
	}
	writeJSON(w, out)
}

func (s *Server) getPlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// path: /plays/{id}
	id := r.URL.Path[len("/plays/"):]
	if id == "" {
		http.Error(w, "playId required", http.StatusBadRequest)
		return
	}

	p, err := s.plays.GetPlay(r.Context(), id)
	if errors.Is(err, play.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("get play", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, toPlayResponse(p))
}

// webhookConfirmation repassa os bytes crus ao handler; a assinatura cobre
// exatamente o corpo recebido.
func (s *Server) webhookConfirmation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	resp, err := s.wh.Process(
		r.Context(),
		r.Method,
		r.URL.Path,
		r.Header.Get("X-Signature"),
		r.Header.Get("X-Timestamp"),
		body,
	)
	if err != nil {
		status := webhookErrorStatus(err)
		metrics.WebhookRequests.WithLabelValues(strconv.Itoa(status)).Inc()
		s.log.Warn("webhook rejected", zap.Int("status", status), zap.Error(err))
		http.Error(w, err.Error(), status)
		return
	}

	metrics.WebhookRequests.WithLabelValues("200").Inc()
	writeJSON(w, resp)
}

// webhookErrorStatus mapeia a taxonomia de erros para HTTP. Nenhum código
// instrui o chamador a repetir o mesmo payload assinado: repetir só volta a
// falhar quando o timestamp envelhecer.
func webhookErrorStatus(err error) int {
	var inv *play.InvalidTransitionError
	switch {
	case errors.Is(err, webhook.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, webhook.ErrStaleRequest):
		return http.StatusBadRequest
	case errors.Is(err, play.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &inv):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func toPlayResponse(p *play.Play) dto.PlayResponse {
	return dto.PlayResponse{
		PlayID:      p.ID,
		RequestID:   p.RequestID,
		UserID:      p.UserID,
		LotteryID:   p.LotteryID,
		Numbers:     p.Numbers,
		BetType:     string(p.BetType),
		Amount:      p.Amount,
		Currency:    string(p.Currency),
		Status:      string(p.Status),
		PlayIDBanca: p.PlayIDBanca,
		TicketCode:  p.TicketCode,
		BancaID:     p.BancaID,
		LastReason:  p.LastReason,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
