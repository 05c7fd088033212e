package banca

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAPIAdapterSignsOutboundRegister(t *testing.T) {
	const secret = "default_banca_secret"

	var captured struct {
		signature string
		timestamp string
		idemKey   string
		body      []byte
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, registerPath, r.URL.Path)
		captured.signature = r.Header.Get("X-Signature")
		captured.timestamp = r.Header.Get("X-Timestamp")
		captured.idemKey = r.Header.Get("Idempotency-Key")
		captured.body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"confirmed","playIdBanca":"BANCA-AAAA1111","ticketCode":"TKT-XYZ12345"}`))
	}))
	defer srv.Close()

	adapter := NewAPIAdapter(zap.NewNop(), srv.URL, secret, 5*time.Second)
	resp, err := adapter.RegisterPlay(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, resp.Status)
	assert.Equal(t, "BANCA-AAAA1111", resp.PlayIDBanca)
	assert.Equal(t, "req-1", captured.idemKey)
	require.NotEmpty(t, captured.timestamp)

	// recomputa a assinatura do lado receptor sobre os bytes recebidos
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(http.MethodPost))
	mac.Write([]byte(registerPath))
	mac.Write([]byte(captured.timestamp))
	mac.Write(captured.body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, expected, captured.signature)
}

func TestAPIAdapterMapsEmptyStatusToAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"queued for async confirmation"}`))
	}))
	defer srv.Close()

	adapter := NewAPIAdapter(zap.NewNop(), srv.URL, "s", 5*time.Second)
	resp, err := adapter.RegisterPlay(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, resp.Status)
}

func TestAPIAdapterTreatsClientErrorAsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid bet type", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	adapter := NewAPIAdapter(zap.NewNop(), srv.URL, "s", 5*time.Second)
	resp, err := adapter.RegisterPlay(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, resp.Status)
	assert.Contains(t, resp.Message, "422")
}

func TestAPIAdapterTreatsServerErrorAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := NewAPIAdapter(zap.NewNop(), srv.URL, "s", 5*time.Second)
	resp, err := adapter.RegisterPlay(context.Background(), testRequest())
	assert.Nil(t, resp)
	require.Error(t, err)
}

func TestAPIAdapterCheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/plays/BANCA-AAAA1111", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"confirmed","ticketCode":"TKT-XYZ12345"}`))
	}))
	defer srv.Close()

	adapter := NewAPIAdapter(zap.NewNop(), srv.URL, "s", 5*time.Second)
	resp, err := adapter.CheckStatus(context.Background(), "BANCA-AAAA1111")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, resp.Status)
	assert.Equal(t, "BANCA-AAAA1111", resp.PlayIDBanca)
}

func TestAPIAdapterHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	adapter := NewAPIAdapter(zap.NewNop(), srv.URL, "s", 5*time.Second)
	assert.True(t, adapter.IsHealthy(context.Background()))

	srv.Close()
	assert.False(t, adapter.IsHealthy(context.Background()))
}
