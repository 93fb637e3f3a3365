// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ppq

import (
	"context"
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

func TestCreateAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/accounts/create" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("account creation must not send an Authorization header")
		}
		respond(w, http.StatusOK, `{"api_key": "sk-new", "credit_id": "cr-new"}`)
	}))
	defer srv.Close()

	acct, err := NewClient(srv.URL, "").CreateAccount(context.Background())
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if acct.APIKey != "sk-new" || acct.CreditID != "cr-new" {
		t.Errorf("account = %+v", acct)
	}
}

func TestCreateAccount_MissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"api_key": "sk-only"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").CreateAccount(context.Background())
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		respond(w, http.StatusOK, `{"data": [{"id": "alpha"}, {"id": "beta"}]}`)
	}))
	defer srv.Close()

	models, err := NewClient(srv.URL, "sk-test").ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 2 || models[0].ID != "alpha" {
		t.Errorf("models = %+v", models)
	}
}

func TestListModels_NotConfigured(t *testing.T) {
	_, err := NewClient("http://localhost:1", "").ListModels(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"choices": [{"message": {"role": "assistant", "content": "hi!"}}]}`)
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "sk").Chat(context.Background(), ChatRequest{
		Model:       "m",
		Messages:    []ChatMessage{{Role: "user", Content: "hello"}},
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if got := resp.Content(); got != "hi!" {
		t.Errorf("Content = %q", got)
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"choices": []}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "sk").Chat(context.Background(), ChatRequest{Model: "m"})
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusInternalServerError, `{"error": "boom"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "sk").Chat(context.Background(), ChatRequest{Model: "m"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusInternalServerError || apiErr.Message != "boom" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestExtractError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string form", `{"error": "balance too low"}`, "balance too low"},
		{"object form", `{"error": {"message": "rate limited"}}`, "rate limited"},
		{"no error field", `{"ok": true}`, ""},
		{"not json", `<html>oops</html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractError([]byte(tt.body)); got != tt.want {
				t.Errorf("extractError(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestIsBalanceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrInsufficientBalance, true},
		{"payment required", &APIError{Status: http.StatusPaymentRequired}, true},
		{"rate limited", &APIError{Status: http.StatusTooManyRequests}, true},
		{"message mentions balance", &APIError{Status: http.StatusBadRequest, Message: "insufficient balance"}, true},
		{"unrelated api error", &APIError{Status: http.StatusInternalServerError, Message: "boom"}, false},
		{"plain error", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBalanceError(tt.err); got != tt.want {
				t.Errorf("IsBalanceError = %v, want %v", got, tt.want)
			}
		})
	}
}
