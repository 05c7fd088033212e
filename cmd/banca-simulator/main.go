package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	bdto "github.com/radieske/lottery-play-platform-poc/internal/banca-simulator/dto"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/config"
	"github.com/radieske/lottery-play-platform-poc/internal/shared/logger"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Catálogo fixo de loterias simuladas para o feed de resultados
	lotteryCatalog = []string{"LNAC", "LEIDSA", "REAL", "LOTEKA"}

	// Métricas Prometheus
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "banca_ws_connections",
		Help: "Clientes WebSocket conectados ao feed de resultados",
	})
	playsRegistered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "banca_plays_registered_total",
		Help: "Jogadas registradas no simulador, por desfecho",
	}, []string{"outcome"})
	webhooksSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "banca_webhooks_sent_total",
		Help: "Webhooks de confirmação enviados ao play-service",
	})
)

// drawResult é a mensagem do feed WS de resultados de sorteio.
type drawResult struct {
	LotteryID      string    `json:"lottery_id"`
	WinningNumbers []string  `json:"winning_numbers"`
	DrawnAt        time.Time `json:"drawn_at"`
	Source         string    `json:"source"`
}

type clientConn struct {
	id   string
	conn *websocket.Conn
}

// hub gerencia os clientes do feed WS e faz broadcast dos resultados.
type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{clients: make(map[string]*clientConn), log: log}
}

func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		}
	}
}

// Comportamento simulado da banca
type behavior struct {
	syncResponseRate float64       // chance de responder síncrono
	confirmRate      float64       // chance de confirmar
	asyncDelay       time.Duration // atraso do webhook assíncrono
}

type server struct {
	log         *zap.Logger
	cfg         config.Config
	behavior    behavior
	mu          sync.Mutex
	plays       map[string]*bdto.RegisterResp // Idempotency-Key -> resposta já dada
	byBancaRef  map[string]*bdto.RegisterResp // playIdBanca -> estado atual
	webhookHTTP *http.Client
}

func newServer(log *zap.Logger, cfg config.Config) *server {
	return &server{
		log: log,
		cfg: cfg,
		behavior: behavior{
			syncResponseRate: 0.7,
			confirmRate:      0.95,
			asyncDelay:       5 * time.Second,
		},
		plays:       make(map[string]*bdto.RegisterResp),
		byBancaRef:  make(map[string]*bdto.RegisterResp),
		webhookHTTP: &http.Client{Timeout: 5 * time.Second},
	}
}

// registerHandler recebe jogadas do play-service. Verifica a assinatura do
// adapter, deduplica por Idempotency-Key e decide entre resposta síncrona
// ou 202 + webhook assinado depois do atraso configurado.
func (s *server) registerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if !s.verifySignature(r, body) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var req bdto.RegisterReq
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.log.Info("register received", zap.String("request_id", req.RequestID))

	idemKey := r.Header.Get("Idempotency-Key")
	s.mu.Lock()
	if idemKey != "" {
		if existing, ok := s.plays[idemKey]; ok {
			s.mu.Unlock()
			s.log.Info("idempotent register, replaying response",
				zap.String("play_id_banca", existing.PlayIDBanca))
			writeJSON(w, http.StatusOK, existing)
			return
		}
	}
	s.mu.Unlock()

	playIDBanca := "BANCA-" + strings.ToUpper(uuid.NewString()[:8])
	ticketCode := generateTicketCode()
	respondSync := rand.Float64() < s.behavior.syncResponseRate
	confirmed := rand.Float64() < s.behavior.confirmRate

	var resp *bdto.RegisterResp
	if respondSync {
		if confirmed {
			resp = &bdto.RegisterResp{
				Status:      bdto.StatusConfirmed,
				PlayIDBanca: playIDBanca,
				TicketCode:  ticketCode,
				Message:     "Play registered successfully",
			}
			playsRegistered.WithLabelValues("sync_confirmed").Inc()
		} else {
			resp = &bdto.RegisterResp{
				Status:  bdto.StatusRejected,
				Message: "Play rejected due to limits",
			}
			playsRegistered.WithLabelValues("sync_rejected").Inc()
		}
		s.store(idemKey, playIDBanca, resp)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	// Caminho assíncrono: 202 pending agora, webhook assinado depois
	resp = &bdto.RegisterResp{
		Status:      bdto.StatusPending,
		PlayIDBanca: playIDBanca,
		Message:     "Play accepted for processing",
	}
	s.store(idemKey, playIDBanca, resp)
	playsRegistered.WithLabelValues("async_pending").Inc()

	go s.sendWebhookLater(req.RequestID, playIDBanca, ticketCode, confirmed)

	writeJSON(w, http.StatusAccepted, resp)
}

// statusHandler implementa GET /v1/plays/{playIdBanca}.
func (s *server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ref := strings.TrimPrefix(r.URL.Path, "/v1/plays/")
	s.mu.Lock()
	resp, ok := s.byBancaRef[ref]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusOK, &bdto.RegisterResp{
			Status:      bdto.StatusPending,
			PlayIDBanca: ref,
			Message:     "Play not found or still processing",
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// sendWebhookLater simula o processamento interno da banca e envia a
// confirmação assinada para o play-service.
func (s *server) sendWebhookLater(requestID, playIDBanca, ticketCode string, confirmed bool) {
	time.Sleep(s.behavior.asyncDelay)

	status := bdto.StatusConfirmed
	reason := ""
	if !confirmed {
		status = bdto.StatusRejected
		reason = "Play rejected after review"
		ticketCode = ""
	}

	payload := bdto.WebhookConfirmation{
		RequestID:   requestID,
		PlayIDBanca: playIDBanca,
		TicketCode:  ticketCode,
		Status:      status,
		Reason:      reason,
	}
	body, _ := json.Marshal(payload)
	timestamp := time.Now().UTC().Format(time.RFC3339)
	signature := sign([]byte(s.cfg.HMACSecret), http.MethodPost, "/webhooks/plays/confirmation", timestamp, body)

	req, err := http.NewRequest(http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		s.log.Error("webhook build", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", signature)
	req.Header.Set("X-Timestamp", timestamp)

	resp, err := s.webhookHTTP.Do(req)
	if err != nil {
		s.log.Error("webhook send", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	webhooksSent.Inc()

	s.mu.Lock()
	s.byBancaRef[playIDBanca] = &bdto.RegisterResp{
		Status:      status,
		PlayIDBanca: playIDBanca,
		TicketCode:  ticketCode,
		Message:     reason,
	}
	s.mu.Unlock()

	s.log.Info("webhook sent",
		zap.String("request_id", requestID),
		zap.String("status", status),
		zap.Int("http_status", resp.StatusCode),
	)
}

func (s *server) store(idemKey, playIDBanca string, resp *bdto.RegisterResp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idemKey != "" {
		s.plays[idemKey] = resp
	}
	s.byBancaRef[playIDBanca] = resp
}

// verifySignature confere o HMAC do adapter sobre os bytes crus recebidos.
func (s *server) verifySignature(r *http.Request, body []byte) bool {
	provided, err := base64.StdEncoding.DecodeString(r.Header.Get("X-Signature"))
	if err != nil {
		return false
	}
	expected := signRaw([]byte(s.cfg.BancaHMACSecret), r.Method, r.URL.Path, r.Header.Get("X-Timestamp"), body)
	return hmac.Equal(provided, expected)
}

func sign(secret []byte, method, path, timestamp string, body []byte) string {
	return base64.StdEncoding.EncodeToString(signRaw(secret, method, path, timestamp, body))
}

func signRaw(secret []byte, method, path, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return mac.Sum(nil)
}

func generateTicketCode() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 8)
	for i := range b {
		b[i] = chars[rand.Intn(len(chars))]
	}
	return "TKT-" + string(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, playsRegistered, webhooksSent)

	h := newHub(log)
	s := newServer(log, cfg)

	// Publica resultados de sorteio simulados no feed WS a cada 30 segundos
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			for _, lotteryID := range lotteryCatalog {
				h.broadcast(drawResult{
					LotteryID:      lotteryID,
					WinningNumbers: randomNumbers(3),
					DrawnAt:        time.Now().UTC(),
					Source:         cfg.ServiceName,
				})
			}
		}
	}()

	// ==== MUX PÚBLICO: registro de jogadas, status, health e feed WS
	appMux := http.NewServeMux()
	appMux.HandleFunc("/v1/plays/register", s.registerHandler)
	appMux.HandleFunc("/v1/plays/", s.statusHandler)
	appMux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	appMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		c := &clientConn{id: id, conn: conn}
		h.add(c)

		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			for {
				// Lê e descarta mensagens do cliente para manter o socket limpo
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// ==== MUX DE MÉTRICAS
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())

	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("banca simulator (metrics) running", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("banca simulator (public) running",
		zap.String("addr", publicAddr),
		zap.String("webhook_target", cfg.WebhookURL),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}

func randomNumbers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%02d", rand.Intn(100))
	}
	return out
}
