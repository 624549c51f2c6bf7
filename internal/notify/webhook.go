package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"siteguard/internal/config"
	"siteguard/internal/model"
)

// ChatWebhook posts severe alerts to a chat channel webhook.
type ChatWebhook struct {
	client *resty.Client
	cfg    config.WebhookConfig
}

type webhookPayload struct {
	Text string `json:"text"`
}

func NewChatWebhook(cfg config.WebhookConfig) *ChatWebhook {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetHeader("Content-Type", "application/json")
	return &ChatWebhook{client: client, cfg: cfg}
}

func (w *ChatWebhook) Name() string { return "chat-webhook" }

func (w *ChatWebhook) MinimumLevel() model.RiskLevel { return model.LevelSevere }

func (w *ChatWebhook) Send(ctx context.Context, alert model.Alert) (string, error) {
	text := fmt.Sprintf("[%s] %s %s in zone %s: %s (measured %.2f)",
		alert.Level, alert.TargetKind, alert.TargetID, alert.ZoneID, alert.Message, alert.MeasuredValue)
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{Text: text}).
		Post(w.cfg.URL)
	if err != nil {
		return w.cfg.URL, err
	}
	if resp.IsError() {
		return w.cfg.URL, fmt.Errorf("webhook returned %s", resp.Status())
	}
	return w.cfg.URL, nil
}
