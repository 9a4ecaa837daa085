package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"restockd/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

type TelegramConfig struct {
	// BotToken comes from @BotFather.
	BotToken string `json:"bot_token"`
	ChatId   string `json:"chat_id"`
	// BaseUrl overrides the bot API host, used by tests.
	BaseUrl string `json:"base_url"`
}

type TelegramChannel struct {
	config TelegramConfig
	client *resty.Client
}

func NewTelegramChannel(config TelegramConfig) (*TelegramChannel, error) {
	if config.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot_token is required")
	}
	if config.ChatId == "" {
		return nil, fmt.Errorf("telegram: chat_id is required")
	}
	if config.BaseUrl == "" {
		config.BaseUrl = "https://api.telegram.org"
	}

	client := resty.New()
	client.SetTimeout(time.Second * 15)
	telemetry.InstrumentResty(client, "restockd.services.notify.telegram")

	return &TelegramChannel{
		config: config,
		client: client,
	}, nil
}

func (c *TelegramChannel) Name() string {
	return "telegram"
}

func (c *TelegramChannel) Send(ctx context.Context, title, body string) error {
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(map[string]string{
			"chat_id": c.config.ChatId,
			"text":    fmt.Sprintf("%s\n\n%s", title, body),
		}).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", c.config.BaseUrl, c.config.BotToken))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if res.StatusCode() != 200 {
		return fmt.Errorf("telegram: sendMessage returned status %d", res.StatusCode())
	}

	// the bot api reports some failures with a 200 status
	var reply struct {
		Ok          bool   `json:"ok"`
		Description string `json:"description"`
	}
	err = json.Unmarshal(res.Body(), &reply)
	if err != nil {
		return fmt.Errorf("telegram: unmarshal sendMessage reply: %w", err)
	}
	if !reply.Ok {
		return fmt.Errorf("telegram: sendMessage rejected: %s", reply.Description)
	}
	return nil
}
