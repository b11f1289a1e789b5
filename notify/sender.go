package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// Sender delivers one message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// LogSender only logs messages. Used when no webhook is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	subject, _ := Content(msg)
	s.logger.InfoContext(ctx, "notification",
		slog.String("to", msg.To),
		slog.String("type", string(msg.Type)),
		slog.String("agreement_id", msg.AgreementID),
		slog.String("subject", subject),
	)
	return nil
}

// webhookBody is Message plus the rendered email so the receiving function
// does not need its own templates.
type webhookBody struct {
	Message
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// WebhookSender POSTs each message as JSON to a delivery endpoint.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewSafeHTTPClient returns a client that refuses private, loopback and
// metadata addresses after DNS resolution.
func NewSafeHTTPClient(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https", "http").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(cfg).Client
}

func NewWebhookSender(url string, client *http.Client) *WebhookSender {
	if client == nil {
		client = NewSafeHTTPClient(10 * time.Second)
	}
	return &WebhookSender{url: url, client: client}
}

func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	subject, html := Content(msg)
	body, err := json.Marshal(webhookBody{Message: msg, Subject: subject, HTML: html})
	if err != nil {
		return fmt.Errorf("notify: marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
