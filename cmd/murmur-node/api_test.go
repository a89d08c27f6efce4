package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MurmurLink/murmur-core/pkg/storage"
)

func testAPIServer(t *testing.T) (*http.Server, *storage.DB) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "api.db"), "test-password")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	require.NoError(t, store.SetIdentity(seed))

	return newAPIServer(store, zap.NewNop(), 0), store
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testAPIServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	srv.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	t.Log("✅ Health endpoint responds ok")
}

func TestStatusEndpoint(t *testing.T) {
	srv, store := testAPIServer(t)

	threadID, err := store.GetOrCreateThread("conv-1")
	require.NoError(t, err)
	require.NotZero(t, threadID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	srv.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		AccountID string `json:"account_id"`
		UptimeSec int    `json:"uptime_sec"`
		Store     struct {
			Threads  int `json:"threads"`
			Messages int `json:"messages"`
		} `json:"store"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, store.UserPublicKey(), body.AccountID)
	assert.Equal(t, 1, body.Store.Threads)
	assert.Equal(t, 0, body.Store.Messages)
	t.Logf("✅ Status reports account %s with %d thread(s)", body.AccountID[:8], body.Store.Threads)
}

func TestUnknownRouteReturns404(t *testing.T) {
	srv, _ := testAPIServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	srv.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	t.Log("✅ No message content exposed over the API")
}
