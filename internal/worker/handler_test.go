package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-api/internal/domain"
)

func newTestHandler(url string) *NotificationHandler {
	return NewNotificationHandler(url, &http.Client{Timeout: time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func eventPayload(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(domain.OrderPlacedEvent{
		OrderID: "order-1",
		UserID:  "user-1",
		Email:   "buyer@example.com",
		Total:   decimal.RequireFromString("130"),
		Items: []domain.OrderPlacedItem{
			{ProductID: "a", Quantity: 2, Price: decimal.RequireFromString("25")},
			{ProductID: "b", Quantity: 1, Price: decimal.RequireFromString("80")},
		},
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func isPermanent(err error) bool {
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}

func TestHandle_SendsConfirmation(t *testing.T) {
	var got emailRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/send" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestHandler(server.URL).Handle(context.Background(), eventPayload(t)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got.To != "buyer@example.com" {
		t.Errorf("unexpected recipient %q", got.To)
	}
	if got.Subject != "Order Confirmation: order-1" {
		t.Errorf("unexpected subject %q", got.Subject)
	}
	if !strings.Contains(got.Body, "3 item(s)") || !strings.Contains(got.Body, "130.00") {
		t.Errorf("unexpected body %q", got.Body)
	}
}

func TestHandle_Failures(t *testing.T) {
	tests := []struct {
		name          string
		payload       []byte
		status        int
		wantPermanent bool
	}{
		{name: "malformed payload", payload: []byte("{"), status: http.StatusOK, wantPermanent: true},
		{name: "missing email", payload: []byte(`{"order_id":"o"}`), status: http.StatusOK, wantPermanent: true},
		{name: "email rejected", status: http.StatusBadRequest, wantPermanent: true},
		{name: "email service down", status: http.StatusServiceUnavailable, wantPermanent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			payload := tt.payload
			if payload == nil {
				payload = eventPayload(t)
			}

			err := newTestHandler(server.URL).Handle(context.Background(), payload)
			if err == nil {
				t.Fatal("expected error")
			}
			if isPermanent(err) != tt.wantPermanent {
				t.Errorf("expected permanent=%v, got %v", tt.wantPermanent, err)
			}
		})
	}
}

func TestHandle_UnreachableServiceIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := newTestHandler(url).Handle(context.Background(), eventPayload(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if isPermanent(err) {
		t.Errorf("expected retryable error, got permanent %v", err)
	}
}
