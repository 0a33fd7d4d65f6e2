// README: Tests for Firebase auth, role gating, recovery and the pass-through paths of optional middleware.
package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"ridebook/internal/http/middleware"
	"ridebook/internal/infra"
	"ridebook/internal/logging"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

func newTestRouter(verifier infra.TokenVerifier, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(verifier))
	if len(roles) > 0 {
		r.Use(middleware.RequireRole(roles...))
	}
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": middleware.CallerUID(c), "role": middleware.CallerRole(c)})
	})
	return r
}

func get(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_Rejections(t *testing.T) {
	ok := &stubVerifier{token: &infra.FirebaseToken{UID: "user1"}}
	cases := []struct {
		name     string
		verifier infra.TokenVerifier
		header   string
	}{
		{"missing header", ok, ""},
		{"wrong prefix", ok, "Token sometoken"},
		{"empty bearer", ok, "Bearer   "},
		{"verifier error", &stubVerifier{err: errors.New("bad token")}, "Bearer invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := get(newTestRouter(tc.verifier), tc.header); w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestAuth_ValidToken_UIDAndRolePopulated(t *testing.T) {
	token := &infra.FirebaseToken{UID: "driver123", Claims: map[string]interface{}{"role": "driver"}}
	w := get(newTestRouter(&stubVerifier{token: token}), "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["uid"] != "driver123" || body["role"] != "driver" {
		t.Errorf("unexpected caller %v", body)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{"admin", http.StatusOK},
		{"driver", http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tc := range cases {
		claims := map[string]interface{}{}
		if tc.role != "" {
			claims["role"] = tc.role
		}
		v := &stubVerifier{token: &infra.FirebaseToken{UID: "u", Claims: claims}}
		if w := get(newTestRouter(v, middleware.RoleAdmin), "Bearer t"); w.Code != tc.want {
			t.Errorf("role %q: got %d, want %d", tc.role, w.Code, tc.want)
		}
	}
}

func TestRecovery_Returns500AndLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(middleware.Recovery(logging.NewWithWriter(&buf, "info")))
	r.GET("/test", func(c *gin.Context) { panic("boom") })

	w := get(r, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("expected panic log, got %q", buf.String())
	}
}

func TestLogging_RecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(middleware.Logging(logging.NewWithWriter(&buf, "info")))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	get(r, "")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log: %v (%q)", err, buf.String())
	}
	if rec["route"] != "/test" || rec["status"] != float64(http.StatusNoContent) || rec["action"] != "http" {
		t.Errorf("unexpected log record %v", rec)
	}
}

func TestOptionalMiddleware_PassThroughWhenUnconfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.NewRelic(nil), middleware.NewRateLimiter(nil, 1, 0).Handler())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		if w := get(r, ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, w.Code)
		}
	}
}
