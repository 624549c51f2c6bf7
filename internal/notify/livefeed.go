package notify

import (
	"context"

	"siteguard/internal/broadcast"
	"siteguard/internal/model"
)

// LiveFeed pushes every alert to the real-time dashboard channels. It is
// registered at the normal tier so it always fires.
type LiveFeed struct {
	broadcaster *broadcast.Broadcaster
}

func NewLiveFeed(b *broadcast.Broadcaster) *LiveFeed {
	return &LiveFeed{broadcaster: b}
}

func (f *LiveFeed) Name() string { return "live-feed" }

func (f *LiveFeed) MinimumLevel() model.RiskLevel { return model.LevelNormal }

func (f *LiveFeed) Send(ctx context.Context, alert model.Alert) (string, error) {
	f.broadcaster.Alert(ctx, alert)
	return "dashboard", nil
}
