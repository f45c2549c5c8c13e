// README: Tests for Firebase auth middleware, request logging and panic recovery.
package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"scout/internal/http/middleware"
	"scout/internal/infra"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

func newTestRouter(auth gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(auth)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": middleware.CallerUID(c), "role": middleware.CallerRole(c)})
	})
	return r
}

func serve(r http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(middleware.Auth(&stubVerifier{token: &infra.FirebaseToken{UID: "user1"}}))
	if w := serve(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(middleware.Auth(&stubVerifier{token: &infra.FirebaseToken{UID: "user1"}}))
	if w := serve(r, "Token sometoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	r := newTestRouter(middleware.Auth(&stubVerifier{err: errors.New("bad token")}))
	if w := serve(r, "Bearer invalidtoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ValidToken_UIDAndRolePopulated(t *testing.T) {
	token := &infra.FirebaseToken{UID: "user123", Claims: map[string]interface{}{"role": "tester"}}
	w := serve(newTestRouter(middleware.Auth(&stubVerifier{token: token})), "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "user123") {
		t.Errorf("expected uid user123 in body, got %s", body)
	}
	if !strings.Contains(body, "tester") {
		t.Errorf("expected role tester in body, got %s", body)
	}
}

func TestAuth_NilVerifierIsAnonymous(t *testing.T) {
	w := serve(newTestRouter(middleware.Auth(nil)), "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	token := &infra.FirebaseToken{UID: "user456", Claims: map[string]interface{}{}}

	w := serve(newTestRouter(middleware.OptionalAuth(&stubVerifier{token: token})), "")
	if w.Code != http.StatusOK {
		t.Errorf("anonymous: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"uid":""`) {
		t.Errorf("anonymous: expected empty uid, got %s", w.Body.String())
	}

	w = serve(newTestRouter(middleware.OptionalAuth(&stubVerifier{token: token})), "Bearer ok")
	if !strings.Contains(w.Body.String(), "user456") {
		t.Errorf("expected uid user456, got %s", w.Body.String())
	}

	w = serve(newTestRouter(middleware.OptionalAuth(&stubVerifier{err: errors.New("expired")})), "Bearer stale")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", w.Code)
	}
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery(zap.New(core)))
	r.GET("/test", func(*gin.Context) { panic("boom") })

	w := serve(r, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if logs.FilterMessage("handler panic").Len() != 1 {
		t.Errorf("expected one panic log entry, got %d", logs.Len())
	}
}

func TestLogging_OneEntryPerRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Logging(zap.New(core)))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(r, "")
	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(http.StatusNoContent) {
		t.Errorf("expected status 204, got %v", got)
	}
	if got := entries[0].ContextMap()["route"]; got != "/test" {
		t.Errorf("expected route /test, got %v", got)
	}
}
