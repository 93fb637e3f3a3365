// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package billing fronts the prepaid-credit endpoints: balance checks,
// Lightning invoice creation and invoice status polling.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrNoInvoice indicates a 2xx invoice response without an invoice string.
var ErrNoInvoice = errors.New("no invoice received")

// maxResponseSize caps response bodies to bound memory use.
const maxResponseSize = 1 * 1024 * 1024 // 1MB

var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
	Timeout: 30 * time.Second,
}

// =============================================================================
// TYPES
// =============================================================================

// Invoice is an ephemeral Lightning top-up invoice. It lives for one
// top-up attempt and is discarded afterwards.
type Invoice struct {
	ID      string
	Encoded string
}

// Status is the reported state of a pending invoice.
type Status struct {
	Status string `json:"status"`
	Paid   bool   `json:"paid"`
}

// Confirmed reports whether the payment has been credited.
func (s Status) Confirmed() bool {
	return s.Status == "completed" || s.Status == "confirmed" || s.Paid
}

// invoiceResponse tolerates the three field names deployed servers have
// used for the encoded invoice.
type invoiceResponse struct {
	LightningInvoice string `json:"lightning_invoice"`
	Invoice          string `json:"invoice"`
	PaymentRequest   string `json:"payment_request"`
	InvoiceID        string `json:"invoice_id"`
}

func (r invoiceResponse) encoded() string {
	switch {
	case r.LightningInvoice != "":
		return r.LightningInvoice
	case r.Invoice != "":
		return r.Invoice
	default:
		return r.PaymentRequest
	}
}

type balanceResponse struct {
	// Balance arrives as a numeric string on some deployments and as a
	// number on others.
	Balance json.RawMessage `json:"balance"`
}

type errorBody struct {
	Error string `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the billing endpoints with bearer auth.
type Client struct {
	baseURL string
	apiKey  string
}

// NewClient creates a billing client for the given base URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
	}
}

// Balance fetches the current prepaid balance. A non-numeric balance
// coerces to 0 rather than erroring: a zero reading feeds the low-balance
// path, which is the safe direction to fail in.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	body, err := c.do(ctx, http.MethodPost, "/credits/balance", nil)
	if err != nil {
		return 0, err
	}

	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse balance response: %w", err)
	}
	return parseBalance(resp.Balance), nil
}

// parseBalance accepts a JSON number or a numeric string; anything else
// is 0. Negative readings clamp to 0, balances are never negative.
func parseBalance(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
	}
	if f < 0 {
		return 0
	}
	return f
}

// CreateInvoice requests a Lightning invoice for the given amount.
func (c *Client) CreateInvoice(ctx context.Context, amount float64, currency string) (*Invoice, error) {
	req := map[string]any{
		"amount":   amount,
		"currency": currency,
	}
	body, err := c.do(ctx, http.MethodPost, "/topup/create/btc-lightning", req)
	if err != nil {
		return nil, err
	}

	var resp invoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse invoice response: %w", err)
	}
	encoded := resp.encoded()
	if encoded == "" {
		return nil, ErrNoInvoice
	}
	return &Invoice{ID: resp.InvoiceID, Encoded: encoded}, nil
}

// InvoiceStatus checks whether an invoice has been paid. Callers poll
// this; individual failures are tolerated by the poll loop.
func (c *Client) InvoiceStatus(ctx context.Context, invoiceID string) (Status, error) {
	body, err := c.do(ctx, http.MethodGet, "/topup/status/"+invoiceID, nil)
	if err != nil {
		return Status{}, err
	}

	var st Status
	if err := json.Unmarshal(body, &st); err != nil {
		return Status{}, fmt.Errorf("failed to parse status response: %w", err)
	}
	return st, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do issues a request and returns the body. Non-2xx responses become an
// error carrying the server-provided message, falling back to the HTTP
// status.
func (c *Client) do(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var reader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	log.Printf("billing response: %s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start))

	limited := io.LimitReader(resp.Body, maxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			return nil, errors.New(eb.Error)
		}
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return body, nil
}
