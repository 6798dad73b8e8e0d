package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCreatePayment_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/payments" {
			t.Fatalf("path = %s, want /api/payments", r.URL.Path)
		}

		var req PaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Email != "user@example.com" {
			t.Fatalf("email = %s, want user@example.com", req.Email)
		}

		resp := PaymentInit{
			Status:      StatusSuccess,
			PaymentLink: "https://pay.example.com/link/1",
			TxRef:       "TX-1",
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.CreatePayment(ctx, PaymentRequest{
		Email:         "user@example.com",
		ProductTitle:  "Ebook",
		Amount:        decimal.RequireFromString("149.99"),
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("CreatePayment error: %v", err)
	}
	if res.Status != StatusSuccess || res.TxRef != "TX-1" {
		t.Fatalf("unexpected response: %+v", res)
	}
	if res.PaymentLink == "" {
		t.Fatalf("expected payment link")
	}
}

func TestCreatePayment_GatewayFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := PaymentInit{
			Status:  StatusFailed,
			Message: "insufficient merchant balance",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.CreatePayment(ctx, PaymentRequest{Email: "user@example.com"})
	if err != nil {
		t.Fatalf("CreatePayment error: %v", err)
	}
	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if res.Message == "" {
		t.Fatalf("expected failure message")
	}
}

func TestCreatePayment_NotConfigured(t *testing.T) {
	client := NewClient("")

	_, err := client.CreatePayment(context.Background(), PaymentRequest{})
	if err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}

func TestVerifyPayment_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/payments/TX-1" {
			t.Fatalf("path = %s, want /api/payments/TX-1", r.URL.Path)
		}

		resp := Verification{Status: StatusSuccess, PaymentType: "card"}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.VerifyPayment(ctx, "TX-1")
	if err != nil {
		t.Fatalf("VerifyPayment error: %v", err)
	}
	if res.Status != StatusSuccess || res.PaymentType != "card" {
		t.Fatalf("unexpected verification: %+v", res)
	}
}

func TestVerifyPayment_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.VerifyPayment(ctx, "TX-missing")
	if err != nil {
		t.Fatalf("VerifyPayment error: %v", err)
	}
	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
}

func TestProcessWebhook(t *testing.T) {
	client := NewClient("gateway:8080")

	payload := []byte(`{"status":"success","action":"payment_completed","tx_ref":"TX-7"}`)

	event, err := client.ProcessWebhook(payload)
	if err != nil {
		t.Fatalf("ProcessWebhook error: %v", err)
	}
	if event.Status != StatusSuccess || event.Action != ActionPaymentCompleted || event.TxRef != "TX-7" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestProcessWebhook_MissingTxRef(t *testing.T) {
	client := NewClient("gateway:8080")

	_, err := client.ProcessWebhook([]byte(`{"status":"success","action":"payment_completed"}`))
	if err == nil {
		t.Fatalf("expected error for payload without tx_ref")
	}
}

func TestProcessWebhook_BadJSON(t *testing.T) {
	client := NewClient("gateway:8080")

	_, err := client.ProcessWebhook([]byte(`{not json`))
	if err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
