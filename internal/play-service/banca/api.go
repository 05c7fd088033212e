package banca

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const registerPath = "/v1/plays/register"

// APIAdapter integra com bancas que expõem API direta. Cada requisição é
// assinada com HMAC-SHA256 sobre {method}{path}{timestamp}{body}.
type APIAdapter struct {
	log     *zap.Logger
	baseURL string
	secret  []byte
	http    *http.Client
}

func NewAPIAdapter(log *zap.Logger, baseURL, secret string, timeout time.Duration) *APIAdapter {
	return &APIAdapter{
		log:     log,
		baseURL: baseURL,
		secret:  []byte(secret),
		http:    &http.Client{Timeout: timeout},
	}
}

func (a *APIAdapter) RegisterPlay(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal register request: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+registerPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Signature", a.sign(http.MethodPost, registerPath, timestamp, body))
	httpReq.Header.Set("X-Timestamp", timestamp)
	httpReq.Header.Set("X-Request-Id", req.RequestID)
	// A banca deduplica reenvios do mesmo registro por esta chave
	httpReq.Header.Set("Idempotency-Key", req.RequestID)

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("banca register: %w", err)
	}
	defer resp.Body.Close()

	// 5xx é transiente (o worker decide re-tentar); 4xx é decisão da banca
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("banca http %s", resp.Status)
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		a.log.Warn("banca rejected register",
			zap.String("request_id", req.RequestID),
			zap.Int("status", resp.StatusCode),
		)
		return &RegisterResponse{
			Status:  StatusRejected,
			Message: fmt.Sprintf("banca rejected: %d %s", resp.StatusCode, string(msg)),
		}, nil
	}

	var out RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode banca response: %w", err)
	}
	if out.Status == "" {
		out.Status = StatusAccepted
	}
	return &out, nil
}

func (a *APIAdapter) CheckStatus(ctx context.Context, playIDBanca string) (*RegisterResponse, error) {
	path := "/v1/plays/" + playIDBanca
	timestamp := time.Now().UTC().Format(time.RFC3339)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-Signature", a.sign(http.MethodGet, path, timestamp, nil))
	httpReq.Header.Set("X-Timestamp", timestamp)

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("banca status check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &RegisterResponse{
			Status:      StatusPending,
			PlayIDBanca: playIDBanca,
			Message:     fmt.Sprintf("status check failed: %d", resp.StatusCode),
		}, nil
	}

	var out RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode banca status: %w", err)
	}
	out.PlayIDBanca = playIDBanca
	return &out, nil
}

func (a *APIAdapter) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 300
}

func (a *APIAdapter) sign(method, path, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
