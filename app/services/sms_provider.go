// Package services contains external service integrations and client implementations
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SMSProvider submits a single message to the upstream SMS gateway and
// returns the provider-assigned message identifier.
type SMSProvider interface {
	Send(ctx context.Context, from, to, text string) (string, error)
}

// ProviderError is a failed provider call. StatusCode is zero when no usable
// provider response exists, either a transport failure or a success response
// whose body could not be parsed.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider request failed: %s", e.Body)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable classifies the failure. Transport errors, provider-side errors
// and throttling are worth retrying; any other client error is final.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// HTTPSMSProvider is the production SMS gateway client
type HTTPSMSProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPSMSProvider creates an SMS provider client
func NewHTTPSMSProvider(baseURL, apiKey string, timeout time.Duration) SMSProvider {
	return &HTTPSMSProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type providerSendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

type providerSendResponse struct {
	MessageID string `json:"message_id"`
}

// Send submits one message. Timeouts come from both the HTTP client and the
// caller's context, whichever fires first.
func (p *HTTPSMSProvider) Send(ctx context.Context, from, to, text string) (string, error) {
	payload, err := json.Marshal(providerSendRequest{From: from, To: to, Text: text})
	if err != nil {
		return "", &ProviderError{Body: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", &ProviderError{Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &ProviderError{Body: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	// A 2xx with an unreadable body proves nothing about the submission,
	// so it stays retryable rather than failing the message
	var parsed providerSendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProviderError{Body: fmt.Sprintf("malformed provider response (status %d)", resp.StatusCode)}
	}
	if parsed.MessageID == "" {
		return "", &ProviderError{Body: fmt.Sprintf("provider response missing message_id (status %d)", resp.StatusCode)}
	}
	return parsed.MessageID, nil
}

// SentMessage records one mock submission
type SentMessage struct {
	From string
	To   string
	Text string
}

// MockSMSProvider is an in-memory provider for tests and local development
type MockSMSProvider struct {
	mu           sync.Mutex
	SentMessages []SentMessage

	// FailWith, when set, is returned for every Send until cleared
	FailWith *ProviderError
	// FailTimes limits how many calls fail before succeeding again
	FailTimes int
}

// NewMockSMSProvider creates a mock provider
func NewMockSMSProvider() *MockSMSProvider {
	return &MockSMSProvider{}
}

// Send records the message and returns a generated provider ID
func (p *MockSMSProvider) Send(ctx context.Context, from, to, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailWith != nil {
		failure := p.FailWith
		if p.FailTimes > 0 {
			p.FailTimes--
			if p.FailTimes == 0 {
				p.FailWith = nil
			}
		}
		return "", failure
	}

	p.SentMessages = append(p.SentMessages, SentMessage{From: from, To: to, Text: text})
	return "mock-" + uuid.NewString(), nil
}

// Sent returns a copy of the recorded submissions
func (p *MockSMSProvider) Sent() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SentMessage, len(p.SentMessages))
	copy(out, p.SentMessages)
	return out
}
