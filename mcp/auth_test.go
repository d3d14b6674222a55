package mcp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const initializeBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`

func post(h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHTTPHandlerAuth(t *testing.T) {
	f := newFixture(t)
	h := NewHTTPHandler(f.server, "secret-key")
	listTools := `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`

	t.Run("initialize is allowed without a key", func(t *testing.T) {
		w := post(h, initializeBody, nil)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("missing key", func(t *testing.T) {
		w := post(h, listTools, nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		var terr ToolError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &terr))
		assert.Equal(t, "API_KEY_REQUIRED", terr.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		w := post(h, listTools, map[string]string{"X-API-Key": "nope"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("bearer key passes the guard", func(t *testing.T) {
		w := post(h, initializeBody, map[string]string{"Authorization": "Bearer secret-key"})
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})
}

func TestHTTPHandlerWithoutKey(t *testing.T) {
	f := newFixture(t)
	h := NewHTTPHandler(f.server, "")

	w := post(h, initializeBody, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t)
	h := NewHTTPHandler(f.server, "k")
	now := time.Unix(1000, 0)
	h.now = func() time.Time { return now }

	for i := 0; i < requestsPerMinute; i++ {
		require.True(t, h.checkRateLimit("k"), "request %d", i)
	}
	assert.False(t, h.checkRateLimit("k"))
	assert.True(t, h.checkRateLimit("other"), "limits are per key")

	now = now.Add(61 * time.Second)
	assert.True(t, h.checkRateLimit("k"), "window slides")
}
