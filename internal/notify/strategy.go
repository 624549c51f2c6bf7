package notify

import (
	"context"

	"siteguard/internal/model"
)

// Strategy is one delivery channel. MinimumLevel is the lowest alert level
// the channel responds to; Send returns the delivery target for the audit
// trail along with the delivery outcome.
type Strategy interface {
	Name() string
	MinimumLevel() model.RiskLevel
	Send(ctx context.Context, alert model.Alert) (target string, err error)
}

type Registry struct {
	strategies []Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

func (r *Registry) Register(s Strategy) {
	if s == nil {
		return
	}
	r.strategies = append(r.strategies, s)
}

// Applicable returns every strategy whose minimum level is at or below the
// observed level, in registration order. Strategies stack by severity: a
// severe alert fires the normal-, elevated- and severe-tier channels.
func (r *Registry) Applicable(level model.RiskLevel) []Strategy {
	out := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		if s.MinimumLevel() <= level {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.strategies)
}
