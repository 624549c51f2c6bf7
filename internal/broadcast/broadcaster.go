package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"siteguard/internal/config"
	"siteguard/internal/model"
)

// Envelope is the JSON frame published on every live channel.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Broadcaster publishes live updates to Redis pub/sub channels and, when a
// hub is attached, to connected WebSocket dashboards. Publishing is
// best-effort: failures are logged and never returned to the hot path.
type Broadcaster struct {
	client *redis.Client
	cfg    config.RedisConfig
	hub    *Hub
	logger *slog.Logger
}

func New(cfg config.RedisConfig, client *redis.Client, hub *Hub, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{client: client, cfg: cfg, hub: hub, logger: logger}
}

func (b *Broadcaster) HeatPoint(ctx context.Context, p model.HeatPoint) {
	b.publish(ctx, b.cfg.HeatmapChannel, "heatmap", p)
}

func (b *Broadcaster) UnreadCount(ctx context.Context, count int) {
	b.publish(ctx, b.cfg.UnreadChannel, "unread", map[string]int{"count": count})
}

func (b *Broadcaster) ControlStatus(ctx context.Context, action model.ControlAction) {
	b.publish(ctx, b.cfg.ControlChannel, "control", action)
}

func (b *Broadcaster) Alert(ctx context.Context, alert model.Alert) {
	b.publish(ctx, b.cfg.AlertChannel, "alert", alert)
}

func (b *Broadcaster) publish(ctx context.Context, channel, event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("broadcast encode error", "event", event, "err", err)
		}
		return
	}
	if b.client != nil && channel != "" {
		if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
			if b.logger != nil {
				b.logger.Warn("broadcast publish error", "channel", channel, "err", err)
			}
		}
	}
	if b.hub != nil {
		b.hub.Broadcast(data)
	}
}
