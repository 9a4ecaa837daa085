package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"restockd/lib/telemetry"

	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	name  string
	err   error
	delay time.Duration
	sent  int
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(ctx context.Context, title, body string) error {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.sent++
	return c.err
}

func TestFanoutEmpty(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/notify")
	defer cleanup()

	result := Fanout(context.Background(), nil, "title", "body")
	require.Equal(t, Result{}, result)
	require.False(t, result.Ok())
}

func TestFanoutIsolatesFailures(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/notify")
	defer cleanup()

	broken := &fakeChannel{name: "broken", err: fmt.Errorf("boom")}
	slow := &fakeChannel{name: "slow", delay: time.Millisecond * 50}
	healthy := &fakeChannel{name: "healthy"}

	result := Fanout(context.Background(), []Channel{broken, slow, healthy}, "t", "b")

	require.Equal(t, 3, result.Attempted)
	require.Equal(t, 2, result.Sent)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, []string{"broken: boom"}, result.Errors)
	require.True(t, result.Ok())

	// every channel was still attempted
	require.Equal(t, 1, slow.sent)
	require.Equal(t, 1, healthy.sent)
}

func TestFanoutAllFail(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/notify")
	defer cleanup()

	a := &fakeChannel{name: "a", err: fmt.Errorf("x")}
	b := &fakeChannel{name: "b", err: fmt.Errorf("y")}

	result := Fanout(context.Background(), []Channel{a, b}, "t", "b")
	require.False(t, result.Ok())
	require.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
}

func TestTelegramChannel(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/notify")
	defer cleanup()

	var gotPath string
	var gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req struct {
			ChatId string `json:"chat_id"`
			Text   string `json:"text"`
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)
		gotText = req.Text
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	channel, err := NewTelegramChannel(TelegramConfig{
		BotToken: "123:abc",
		ChatId:   "42",
		BaseUrl:  server.URL,
	})
	if err != nil {
		t.Fatal(err)
	}

	err = channel.Send(context.Background(), "Restock: widget", "now purchasable")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "/bot123:abc/sendMessage", gotPath)
	require.True(t, strings.HasPrefix(gotText, "Restock: widget"))
	require.Contains(t, gotText, "now purchasable")
}

func TestTelegramRejectedReply(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/notify")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer server.Close()

	channel, err := NewTelegramChannel(TelegramConfig{
		BotToken: "123:abc",
		ChatId:   "42",
		BaseUrl:  server.URL,
	})
	if err != nil {
		t.Fatal(err)
	}

	err = channel.Send(context.Background(), "t", "b")
	require.ErrorContains(t, err, "chat not found")
}

func TestWebhookChannelSigning(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/notify")
	defer cleanup()

	const secret = "hmac_key"

	var gotSignature string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature-256")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(WebhookConfig{Url: server.URL, Secret: secret})
	if err != nil {
		t.Fatal(err)
	}

	err = channel.Send(context.Background(), "Restock: widget", "now purchasable")
	if err != nil {
		t.Fatal(err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	require.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSignature)

	var payload struct {
		EventId string `json:"event_id"`
		Title   string `json:"title"`
		Body    string `json:"body"`
	}
	err = json.Unmarshal(gotBody, &payload)
	if err != nil {
		t.Fatal(err)
	}
	require.NotEmpty(t, payload.EventId)
	require.Equal(t, "Restock: widget", payload.Title)
	require.Equal(t, "now purchasable", payload.Body)
}

func TestWebhookChannelNon2xx(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/notify")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(WebhookConfig{Url: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	err = channel.Send(context.Background(), "t", "b")
	require.ErrorContains(t, err, "status 502")
}

func TestChannelConfigValidation(t *testing.T) {
	_, err := NewTelegramChannel(TelegramConfig{ChatId: "42"})
	require.Error(t, err)
	_, err = NewTelegramChannel(TelegramConfig{BotToken: "x"})
	require.Error(t, err)
	_, err = NewWebhookChannel(WebhookConfig{})
	require.Error(t, err)
	_, err = NewEmailChannel(SmtpConfig{Server: "smtp.example.com"})
	require.Error(t, err)
	_, err = NewEmailChannel(SmtpConfig{Recipients: []string{"ops@example.com"}})
	require.Error(t, err)
}
