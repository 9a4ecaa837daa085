package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"restockd/lib/telemetry"
	"restockd/lib/timezone"

	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
)

type WebhookConfig struct {
	Url string `json:"url"`
	// Secret enables HMAC-SHA256 signing of the payload. When set, the
	// POST carries an X-Signature-256 header with the github-style
	// `sha256=<hex>` encoding of the body digest.
	Secret string `json:"secret"`
}

// webhookPayload is the JSON body POSTed to the configured endpoint.
// EventId lets receivers de-duplicate redelivered alerts.
type webhookPayload struct {
	EventId string `json:"event_id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	SentAt  int64  `json:"sent_at"`
}

type WebhookChannel struct {
	config WebhookConfig
	client *resty.Client
}

func NewWebhookChannel(config WebhookConfig) (*WebhookChannel, error) {
	if config.Url == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}

	client := resty.New()
	client.SetTimeout(time.Second * 15)
	telemetry.InstrumentResty(client, "restockd.services.notify.webhook")

	return &WebhookChannel{
		config: config,
		client: client,
	}, nil
}

func (c *WebhookChannel) Name() string {
	return "webhook"
}

func (c *WebhookChannel) Send(ctx context.Context, title, body string) error {
	eventId, err := random.String(16)
	if err != nil {
		return fmt.Errorf("webhook: generate event id: %w", err)
	}

	payload, err := json.Marshal(webhookPayload{
		EventId: eventId,
		Title:   title,
		Body:    body,
		SentAt:  timezone.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(payload)

	if c.config.Secret != "" {
		mac := hmac.New(sha256.New, []byte(c.config.Secret))
		mac.Write(payload)
		req.SetHeader("X-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	res, err := req.Post(c.config.Url)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return fmt.Errorf("webhook: endpoint returned status %d", res.StatusCode())
	}
	return nil
}
