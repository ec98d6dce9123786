package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/taskhub/taskhub-api/internal/app"
	"github.com/taskhub/taskhub-api/internal/config"
	"github.com/taskhub/taskhub-api/internal/domain/realtime"
	"github.com/taskhub/taskhub-api/internal/domain/settings"
	"github.com/taskhub/taskhub-api/internal/pkg/cache"
	"github.com/taskhub/taskhub-api/internal/pkg/jwt"
)

// testApp has no database; only routes that answer before touching storage
// are exercised.
func testApp() *app.App {
	return &app.App{
		Config: &config.Config{
			AllowedOrigins: []string{"http://localhost:3000"},
			WebhookRPS:     100,
			WebhookBurst:   100,
		},
		JWT:      jwt.NewService("test-secret", time.Minute),
		Hub:      realtime.NewPublisher(nil),
		Settings: settings.NewService(settings.NewRepository(nil), cache.New(nil, 0)),
	}
}

func TestRouterComposition(t *testing.T) {
	router := newRouter(testApp())

	cases := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"public fee calculator validates", http.MethodGet, "/api/wallet/fees?amount=x", http.StatusBadRequest},
		{"webhook health is public", http.MethodGet, "/api/wallet/webhook/bank", http.StatusOK},
		{"balance requires token", http.MethodGet, "/api/wallet/balance", http.StatusUnauthorized},
		{"payment requires token", http.MethodPost, "/api/wallet/payment", http.StatusUnauthorized},
		{"deposit requires token", http.MethodPost, "/api/wallet/deposit", http.StatusUnauthorized},
		{"booking requires token", http.MethodGet, "/api/booking/list", http.StatusUnauthorized},
		{"admin requires token", http.MethodGet, "/api/admin/wallet/stats", http.StatusUnauthorized},
		{"admin settings require token", http.MethodPut, "/api/admin/wallet/settings", http.StatusUnauthorized},
		{"cron disabled without secret", http.MethodPost, "/api/cron/release-escrows", http.StatusServiceUnavailable},
		{"socket requires token", http.MethodGet, "/ws", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			if rec.Code != tc.want {
				t.Fatalf("%s %s: expected %d, got %d (%s)", tc.method, tc.path, tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}
