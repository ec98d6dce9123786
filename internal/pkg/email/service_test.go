package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAlertIsDeliveredThroughSendGrid(t *testing.T) {
	received := make(chan sendGridRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var req sendGridRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		received <- req
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	svc := NewService(SendGridConfig{APIKey: "key", FromEmail: "noreply@taskhub.test", BaseURL: srv.URL}, "ops@taskhub.test")
	svc.ManualWithdrawal("tx-1", "user-1", decimal.RequireFromString("42.5"), "OCB", "0349", "Nguyen Van A")
	svc.Close()

	req := <-received
	if req.Personalizations[0].To[0].Email != "ops@taskhub.test" {
		t.Fatalf("unexpected recipient %+v", req.Personalizations)
	}
	if !strings.Contains(req.Subject, "$42.50") {
		t.Fatalf("unexpected subject %q", req.Subject)
	}
	if len(req.Content) != 1 || !strings.Contains(req.Content[0].Value, "tx-1") {
		t.Fatalf("unexpected content %+v", req.Content)
	}
}

func TestAlertWithoutAPIKeyIsOnlyLogged(t *testing.T) {
	svc := NewService(SendGridConfig{}, "ops@taskhub.test")
	svc.EscrowDisputed("esc-1", "user-1", decimal.NewFromInt(100), "work not delivered")
	svc.Close()
}
