package ratelimit

import (
	"context"
	"time"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/config"
)

// Tier names applied by the HTTP layer.
const (
	TierAuth      = "auth"
	TierDataWrite = "data_write"
	TierDataRead  = "data_read"
	TierDefault   = "default"
)

type Rule struct {
	Requests int
	Window   time.Duration
}

func (r Rule) Enabled() bool {
	return r.Requests > 0 && r.Window > 0
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Decision, error)
}

// RulesFromConfig converts configured tiers; the default tier backs any missing one.
func RulesFromConfig(tiers map[string]config.TierRule) map[string]Rule {
	out := map[string]Rule{
		TierAuth:      {Requests: 10, Window: time.Minute},
		TierDataWrite: {Requests: 50, Window: time.Minute},
		TierDataRead:  {Requests: 200, Window: time.Minute},
		TierDefault:   {Requests: 100, Window: time.Minute},
	}
	for name, t := range tiers {
		out[name] = Rule{Requests: t.Requests, Window: t.Window}
	}
	return out
}

func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

func decide(count int64, rule Rule, now time.Time) Decision {
	d := Decision{Limit: rule.Requests}
	remaining := int64(rule.Requests) - count
	if remaining >= 0 {
		d.Allowed = true
		d.Remaining = int(remaining)
		return d
	}
	d.RetryAfter = windowStart(now, rule.Window).Add(rule.Window).Sub(now)
	if d.RetryAfter < time.Second {
		d.RetryAfter = time.Second
	}
	return d
}
