// Package email sends transactional email through Resend.
// Callers pass rendered subjects and bodies; this package never logs recipients
// or the API key.
package email

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
	// IdempotencyKey deduplicates retried sends on the provider side.
	IdempotencyKey string
}

// Client sends messages with the Resend SDK.
type Client struct {
	rc   *resend.Client
	from string
}

// New returns a client for the given API key and sender address.
func New(apiKey, from string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("email: RESEND_API_KEY not set")
	}
	if from == "" {
		return nil, fmt.Errorf("email: sender address is empty")
	}
	rc := resend.NewCustomClient(&http.Client{Timeout: 10 * time.Second}, apiKey)
	return &Client{rc: rc, from: from}, nil
}

// WithEndpoint points the client at another base URL. Tests use it with httptest.
func (c *Client) WithEndpoint(base string) (*Client, error) {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("email: endpoint: %w", err)
	}
	c.rc.BaseURL = u
	return c, nil
}

// Send delivers m and returns the provider's message id.
func (c *Client) Send(ctx context.Context, m Message) (string, error) {
	if m.To == "" {
		return "", fmt.Errorf("email: recipient is empty")
	}
	req := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{m.To},
		Subject: m.Subject,
		Html:    m.HTML,
	}
	// An empty key sends no Idempotency-Key header.
	opts := &resend.SendEmailOptions{IdempotencyKey: m.IdempotencyKey}
	resp, err := c.rc.Emails.SendWithOptions(ctx, req, opts)
	if err != nil {
		return "", fmt.Errorf("email: send: %w", err)
	}
	return resp.Id, nil
}
