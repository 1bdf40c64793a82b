package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"heartlink.io/trustengine/internal/api/middleware"
	"heartlink.io/trustengine/internal/config"
	"heartlink.io/trustengine/internal/pkg/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.InitForTest()
	m.Run()
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Security: config.SecurityConfig{JWTVerificationKey: "test-key"},
		Worker:   config.WorkerConfig{AuditPoolSize: 4, LifecyclePoolSize: 2},
		RateLimit: config.RateLimitConfig{
			Auth:    config.RateLimitPolicy{Points: 5, Window: 15 * time.Minute, Block: 15 * time.Minute},
			API:     config.RateLimitPolicy{Points: 100, Window: 15 * time.Minute},
			Upload:  config.RateLimitPolicy{Points: 10, Window: time.Hour},
			Message: config.RateLimitPolicy{Points: 50, Window: time.Hour},
			Match:   config.RateLimitPolicy{Points: 100, Window: time.Hour},
		},
		Moderation: config.ModerationConfig{NSFWThreshold: 0.6, EscalationReportThreshold: 3},
		Audit: config.AuditConfig{
			Retention:        365 * 24 * time.Hour,
			DefaultPageSize:  100,
			MaxPageSize:      1000,
			PurgeSchedule:    "@daily",
			AnomalyLoginIPs:  3,
			AnomalyBurstSize: 50,
		},
		Lifecycle: config.LifecycleConfig{
			ExportExpiry:  7 * 24 * time.Hour,
			GracePeriod:   30 * 24 * time.Hour,
			SweepSchedule: "@hourly",
		},
	}
}

func TestBootstrap_ServesRequests(t *testing.T) {
	cfg := testConfig()
	application, err := Bootstrap(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	defer application.Shutdown()

	// Public health endpoint.
	w := httptest.NewRecorder()
	application.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}

	// Protected endpoint without a token.
	w = httptest.NewRecorder()
	application.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/privacy/consent", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", w.Code)
	}

	// With a valid token the request reaches the domain layer. The user is
	// unknown to the fresh store, so the handler answers 404 rather than 401.
	claims := middleware.JWTClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Security.JWTVerificationKey))
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/privacy/consent", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	application.Router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("authenticated status = %d, want 404 (body %s)", w.Code, w.Body.String())
	}
}

func TestBootstrap_InvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Lifecycle.SweepSchedule = "definitely not cron"
	if _, err := Bootstrap(context.Background(), cfg); err == nil {
		t.Fatal("expected error for invalid sweep schedule")
	}
}
