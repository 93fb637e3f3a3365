// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ppq implements the client for the PPQ completion API:
// account provisioning, model listing and chat completions.
package ppq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Configuration constants for the API client.
const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.ppq.ai"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps response bodies to bound memory use.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

// Shared HTTP client with connection pooling for all API requests.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
	Timeout: DefaultTimeout,
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrInsufficientBalance indicates the prepaid balance cannot cover
	// the request. The send path reacts by starting a top-up instead of
	// surfacing a generic error.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidResponse indicates a 2xx response missing required fields.
	ErrInvalidResponse = errors.New("invalid response from server")
)

// APIError represents a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// errorBody is the error envelope the API returns. The error field is a
// plain string on this API, but an object form is tolerated too.
type errorBody struct {
	Error json.RawMessage `json:"error"`
}

// extractError pulls a human-readable message out of an error body.
// Returns "" when the body carries none.
func extractError(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Error) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(eb.Error, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(eb.Error, &obj); err == nil {
		return obj.Message
	}
	return ""
}

// IsBalanceError reports whether an error is the balance-exhaustion
// signal: HTTP 402 or 429, or an error message mentioning "balance".
func IsBalanceError(err error) bool {
	if errors.Is(err, ErrInsufficientBalance) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusPaymentRequired || apiErr.Status == http.StatusTooManyRequests {
			return true
		}
		return strings.Contains(apiErr.Message, "balance")
	}
	return false
}

// =============================================================================
// TYPES
// =============================================================================

// ChatMessage is a single message in the completion request history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a chat completion request.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// ChatResponse is the body of a chat completion response.
type ChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// Content returns the content of the first choice, or empty string.
func (r *ChatResponse) Content() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// Account is the result of account provisioning.
type Account struct {
	APIKey   string `json:"api_key"`
	CreditID string `json:"credit_id"`
}

// ModelInfo describes one available model.
type ModelInfo struct {
	ID string `json:"id"`
}

type modelsResponse struct {
	Data []ModelInfo `json:"data"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the completion API. The zero credential is valid for
// CreateAccount only; everything else requires a key.
type Client struct {
	baseURL string
	apiKey  string
}

// NewClient creates a client for the given base URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
	}
}

// WithAPIKey returns a copy of the client using the given key. Used after
// provisioning, when the key arrives at runtime.
func (c *Client) WithAPIKey(apiKey string) *Client {
	clone := *c
	clone.apiKey = strings.TrimSpace(apiKey)
	return &clone
}

// IsConfigured returns true if the client has an API key.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// CreateAccount provisions a new account and returns its credential pair.
// No authentication required.
func (c *Client) CreateAccount(ctx context.Context) (*Account, error) {
	body, err := c.do(ctx, http.MethodPost, "/accounts/create", nil, false)
	if err != nil {
		return nil, err
	}

	var acct Account
	if err := json.Unmarshal(body, &acct); err != nil {
		return nil, fmt.Errorf("failed to parse account response: %w", err)
	}
	if acct.APIKey == "" || acct.CreditID == "" {
		return nil, ErrInvalidResponse
	}
	return &acct, nil
}

// ListModels retrieves the available models. Failures here are non-fatal
// to the caller, which falls back to the configured model.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	body, err := c.do(ctx, http.MethodGet, "/v1/models", nil, true)
	if err != nil {
		return nil, err
	}

	var resp modelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}
	return resp.Data, nil
}

// Chat performs a chat completion request with the given history.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	body, err := c.do(ctx, http.MethodPost, "/chat/completions", req, true)
	if err != nil {
		return nil, err
	}

	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrInvalidResponse
	}
	return &resp, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do issues a request and returns the response body, converting non-2xx
// responses into *APIError.
func (c *Client) do(ctx context.Context, method, path string, reqBody any, auth bool) ([]byte, error) {
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
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	logRequest(req)
	start := time.Now()
	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	logResponse(resp, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Message: extractError(body)}
	}
	return body, nil
}

// readResponse reads the body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// logRequest logs a request without headers or body; either may carry
// credentials or user content.
func logRequest(req *http.Request) {
	log.Printf("API request: %s %s", req.Method, req.URL.Path)
}

// logResponse logs only the status and duration.
func logResponse(resp *http.Response, duration time.Duration) {
	log.Printf("API response: %d (%v)", resp.StatusCode, duration)
}
