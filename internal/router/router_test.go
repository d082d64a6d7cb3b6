package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/actuallystonmai/progress-service/internal/auth"
	"github.com/actuallystonmai/progress-service/internal/handler"
	"github.com/actuallystonmai/progress-service/internal/memstore"
	"github.com/actuallystonmai/progress-service/internal/progress"
	"github.com/actuallystonmai/progress-service/internal/service"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func setup(t *testing.T, health Pinger) (http.Handler, *auth.JWTService) {
	t.Helper()
	svc := service.NewService(memstore.New(), nil, 0, nil)
	tracker := progress.NewTracker(svc.GetProgress, svc.SaveProgress, progress.DefaultPolicy(), nil)
	sessions := progress.NewRegistry(tracker, time.Minute, nil)
	t.Cleanup(func() { sessions.Shutdown(context.Background()) })

	jwt := auth.NewJWTService("test-secret", time.Hour)
	h := handler.NewHandler(svc, tracker, sessions, nil)
	return Setup(h, jwt, health, zap.NewNop()), jwt
}

func TestHealthIsPublic(t *testing.T) {
	r, _ := setup(t, stubPinger{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthReportsUnavailableStore(t *testing.T) {
	r, _ := setup(t, stubPinger{err: errors.New("down")})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, jwt := setup(t, stubPinger{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/continue-watching", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token, err := jwt.Generate("user-1")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/continue-watching", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSessionRoutes(t *testing.T) {
	r, jwt := setup(t, stubPinger{})
	token, _ := jwt.Generate("user-1")

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"title_id":"tt001","duration_seconds":5400}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := setup(t, stubPinger{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
