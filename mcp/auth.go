package mcp

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"
)

const requestsPerMinute = 100

// HTTPHandler serves the tools over streamable HTTP at /mcp behind an API
// key check. An empty apiKey disables the check.
type HTTPHandler struct {
	inner  http.Handler
	apiKey string

	mu          sync.Mutex
	rateLimiter map[string][]time.Time
	now         func() time.Time
}

// NewHTTPHandler wraps s for HTTP transport.
func NewHTTPHandler(s *MCPServer, apiKey string) *HTTPHandler {
	return &HTTPHandler{
		inner:       server.NewStreamableHTTPServer(s.GetMCPServer(), server.WithEndpointPath("/mcp")),
		apiKey:      apiKey,
		rateLimiter: make(map[string][]time.Time),
		now:         time.Now,
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.authWrap(h.inner.ServeHTTP)(w, r)
}

// checkRateLimit reports whether key is still under its per-minute budget.
func (h *HTTPHandler) checkRateLimit(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	window := now.Add(-time.Minute)
	times := h.rateLimiter[key]
	valid := make([]time.Time, 0, len(times))
	for _, t := range times {
		if t.After(window) {
			valid = append(valid, t)
		}
	}
	if len(valid) >= requestsPerMinute {
		h.rateLimiter[key] = valid
		return false
	}
	h.rateLimiter[key] = append(valid, now)
	return true
}

func (h *HTTPHandler) authWrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("AUDIT: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		if h.apiKey == "" {
			next(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if key == "" && allowUnauthMCP(r) {
			next(w, r)
			return
		}
		if key == "" {
			log.Printf("AUDIT: Missing API key for %s %s", r.Method, r.URL.Path)
			writeHTTPError(w, http.StatusUnauthorized, "API_KEY_REQUIRED", "API key required", "Send X-API-Key or Authorization: Bearer <key>.")
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
			log.Printf("AUDIT: Invalid API key for %s %s", r.Method, r.URL.Path)
			writeHTTPError(w, http.StatusForbidden, "API_KEY_INVALID", "Invalid API key", "Double-check the X-API-Key header value.")
			return
		}
		if !h.checkRateLimit(key) {
			log.Printf("AUDIT: Rate limit exceeded on %s %s", r.Method, r.URL.Path)
			writeHTTPError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "Rate limit exceeded", "Retry after a short delay.")
			return
		}
		next(w, r)
	}
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
}

// allowUnauthMCP lets the handshake through so clients can discover that a
// key is needed.
func allowUnauthMCP(r *http.Request) bool {
	if r == nil || r.URL == nil || r.Method != http.MethodPost {
		return false
	}
	if r.URL.Path != "/mcp" && r.URL.Path != "/mcp/" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) == 0 {
		return false
	}
	var req jsonRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return false
	}
	switch req.Method {
	case "initialize", "notifications/initialized":
		return true
	default:
		return false
	}
}

func writeHTTPError(w http.ResponseWriter, status int, code, message, hint string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&ToolError{Code: code, Message: message, Hint: hint, HttpStatus: status})
}
