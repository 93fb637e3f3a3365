// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestBalance(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
	}{
		{"number", `{"balance": 0.42}`, 0.42},
		{"numeric string", `{"balance": "1.05"}`, 1.05},
		{"padded string", `{"balance": " 0.10 "}`, 0.10},
		{"garbage string", `{"balance": "lots"}`, 0},
		{"missing field", `{}`, 0},
		{"null", `{"balance": null}`, 0},
		{"negative clamps", `{"balance": -0.5}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/credits/balance" {
					t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer sk" {
					t.Errorf("Authorization = %q", got)
				}
				respond(w, http.StatusOK, tt.body)
			}))
			defer srv.Close()

			got, err := NewClient(srv.URL, "sk").Balance(context.Background())
			if err != nil {
				t.Fatalf("Balance failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Balance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBalance_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusUnauthorized, `{"error": "bad key"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "sk").Balance(context.Background())
	if err == nil || err.Error() != "bad key" {
		t.Errorf("err = %v, want the server-provided message", err)
	}
}

func TestCreateInvoice_FieldSynonyms(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"lightning_invoice", `{"lightning_invoice": "lnbc-a", "invoice_id": "1"}`, "lnbc-a"},
		{"invoice", `{"invoice": "lnbc-b", "invoice_id": "2"}`, "lnbc-b"},
		{"payment_request", `{"payment_request": "lnbc-c", "invoice_id": "3"}`, "lnbc-c"},
		{"lightning_invoice wins", `{"lightning_invoice": "lnbc-a", "payment_request": "lnbc-c"}`, "lnbc-a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req map[string]any
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("bad request body: %v", err)
				}
				if req["amount"] != 0.10 || req["currency"] != "USD" {
					t.Errorf("request = %v", req)
				}
				respond(w, http.StatusOK, tt.body)
			}))
			defer srv.Close()

			inv, err := NewClient(srv.URL, "sk").CreateInvoice(context.Background(), 0.10, "USD")
			if err != nil {
				t.Fatalf("CreateInvoice failed: %v", err)
			}
			if inv.Encoded != tt.want {
				t.Errorf("Encoded = %q, want %q", inv.Encoded, tt.want)
			}
		})
	}
}

func TestCreateInvoice_MissingInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"invoice_id": "only-an-id"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "sk").CreateInvoice(context.Background(), 0.10, "USD")
	if !errors.Is(err, ErrNoInvoice) {
		t.Errorf("expected ErrNoInvoice, got %v", err)
	}
}

func TestInvoiceStatus_Confirmed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"pending", `{"status": "pending"}`, false},
		{"completed", `{"status": "completed"}`, true},
		{"confirmed", `{"status": "confirmed"}`, true},
		{"paid flag only", `{"status": "pending", "paid": true}`, true},
		{"empty", `{}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/topup/status/inv-9" {
					t.Errorf("path = %s", r.URL.Path)
				}
				respond(w, http.StatusOK, tt.body)
			}))
			defer srv.Close()

			st, err := NewClient(srv.URL, "sk").InvoiceStatus(context.Background(), "inv-9")
			if err != nil {
				t.Fatalf("InvoiceStatus failed: %v", err)
			}
			if st.Confirmed() != tt.want {
				t.Errorf("Confirmed = %v, want %v", st.Confirmed(), tt.want)
			}
		})
	}
}

func TestDo_HTTPStatusFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusBadGateway, `not json at all`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "sk").Balance(context.Background())
	if err == nil || err.Error() != "HTTP 502" {
		t.Errorf("err = %v, want HTTP status fallback", err)
	}
}
