package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})
}

func errorCode(t *testing.T, body io.Reader) response.ErrCode {
	t.Helper()
	var resp response.Response
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil {
		return ""
	}
	return resp.Error.Code
}

func TestRequireCandidateJWT(t *testing.T) {
	auth := newAuth()
	candidate, _ := auth.GenerateToken("u-1", service.TokenTypeCandidate)
	admin, _ := auth.GenerateToken("a-1", service.TokenTypeAdmin)

	r := gin.New()
	r.GET("/me", RequireCandidateJWT(auth), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).UserID)
	})

	tests := []struct {
		name   string
		header string
		query  string
		status int
		code   response.ErrCode
	}{
		{"missing", "", "", http.StatusUnauthorized, response.ErrTokenRequired},
		{"query not accepted", "", candidate, http.StatusUnauthorized, response.ErrTokenRequired},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized, response.ErrTokenInvalid},
		{"admin token", "Bearer " + admin, "", http.StatusForbidden, response.ErrCandidateAccessOnly},
		{"candidate", "Bearer " + candidate, "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/me"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if tt.code != "" {
				if got := errorCode(t, w.Body); got != tt.code {
					t.Fatalf("expected %s, got %s", tt.code, got)
				}
			} else if w.Body.String() != "u-1" {
				t.Fatalf("unexpected body %q", w.Body.String())
			}
		})
	}
}

func TestRequireAdminJWTAcceptsQueryToken(t *testing.T) {
	auth := newAuth()
	admin, _ := auth.GenerateToken("a-1", service.TokenTypeAdmin)

	r := gin.New()
	r.GET("/stream", RequireAdminJWT(auth), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream?token="+admin, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestRequireCandidateWSAuth(t *testing.T) {
	auth := newAuth()
	candidate, _ := auth.GenerateToken("u-1", service.TokenTypeCandidate)
	admin, _ := auth.GenerateToken("a-1", service.TokenTypeAdmin)

	r := gin.New()
	r.GET("/ws", RequireCandidateWSAuth(auth), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for token, want := range map[string]int{
		"":        http.StatusUnauthorized,
		"bad":     http.StatusUnauthorized,
		admin:     http.StatusForbidden,
		candidate: http.StatusNoContent,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
		if w.Code != want {
			t.Fatalf("token %q: expected %d, got %d", token, want, w.Code)
		}
	}
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	large := strings.Repeat("answer ", 400)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("expected br encoding, got %q", w.Header().Get("Content-Encoding"))
	}
	if w.Header().Get("Vary") != "Accept-Encoding" {
		t.Fatalf("expected Vary header")
	}
	plain, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(plain) != large {
		t.Fatalf("round trip mismatch: %d bytes", len(plain))
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Fatalf("small body should pass through, got %q %q", w.Header().Get("Content-Encoding"), w.Body.String())
	}
}

func TestBrotliSkipsEventStreams(t *testing.T) {
	r := gin.New()
	r.Use(Brotli())
	r.GET("/events", func(c *gin.Context) { c.String(http.StatusOK, strings.Repeat("x", 4096)) })

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Accept-Encoding", "br")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "" || w.Body.Len() != 4096 {
		t.Fatalf("event stream must not be compressed")
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)

	r := gin.New()
	r.GET("/ws", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := hit("10.0.0.1"); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, w.Code)
		}
	}
	w := hit("10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := errorCode(t, w.Body); got != response.ErrRateLimitExceeded {
		t.Fatalf("expected %s, got %s", response.ErrRateLimitExceeded, got)
	}
	if w := hit("10.0.0.2"); w.Code != http.StatusNoContent {
		t.Fatalf("other client should not be limited, got %d", w.Code)
	}
}

func TestCacheControl(t *testing.T) {
	r := gin.New()
	r.GET("/private", CacheControl(0), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/public", CacheControl(60), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	if got := w.Header().Get("Cache-Control"); got != "private, no-store" {
		t.Fatalf("unexpected header %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/public", nil))
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=60" {
		t.Fatalf("unexpected header %q", got)
	}
}
