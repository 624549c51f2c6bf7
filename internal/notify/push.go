package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"siteguard/internal/config"
	"siteguard/internal/model"
)

// MobilePush delivers elevated and severe alerts to the mobile push
// gateway, addressed by the device tokens registered for the alert's zone.
type MobilePush struct {
	client *resty.Client
	cfg    config.PushConfig
}

type pushPayload struct {
	Tokens  []string `json:"tokens"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	ZoneID  string   `json:"zone_id"`
	Level   string   `json:"level"`
	Created string   `json:"created"`
}

func NewMobilePush(cfg config.PushConfig) *MobilePush {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &MobilePush{client: client, cfg: cfg}
}

func (p *MobilePush) Name() string { return "mobile-push" }

func (p *MobilePush) MinimumLevel() model.RiskLevel { return model.LevelElevated }

func (p *MobilePush) Send(ctx context.Context, alert model.Alert) (string, error) {
	target := "zone:" + alert.ZoneID
	payload := pushPayload{
		Tokens:  p.cfg.ZoneTokens[alert.ZoneID],
		Title:   fmt.Sprintf("%s risk in %s", alert.Level, alert.ZoneID),
		Body:    alert.Message,
		ZoneID:  alert.ZoneID,
		Level:   alert.Level.String(),
		Created: alert.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post("")
	if err != nil {
		return target, err
	}
	if resp.IsError() {
		return target, fmt.Errorf("push gateway returned %s", resp.Status())
	}
	return target, nil
}
